// Command client is a minimal terminal client for the chat server, useful
// for manual testing. Lines starting with '/' are commands; everything else
// is sent as chat.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/YuriiFridman/TS3/pkg/protocol"
)

func main() {
	addr := flag.String("addr", "localhost:12345", "chat server TCP address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	fmt.Printf("connected to %s\n", *addr)
	fmt.Println("commands: /login user pass | /register user pass | /join room | /create room")
	fmt.Println("          /rooms | /users | /history [n] | /admin cmd target | /quit")

	go printLoop(conn)

	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}
		msg, quit := parseLine(line)
		if quit {
			return
		}
		if msg == nil {
			continue
		}
		if err := protocol.WriteMessage(conn, msg); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			return
		}
	}
}

func parseLine(line string) (msg *protocol.Message, quit bool) {
	if !strings.HasPrefix(line, "/") {
		return &protocol.Message{Type: protocol.TypeChat, Message: line}, false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return nil, true
	case "/login":
		if len(fields) != 3 {
			fmt.Println("usage: /login user pass")
			return nil, false
		}
		return &protocol.Message{Type: protocol.TypeLogin, Username: fields[1], Password: fields[2]}, false
	case "/register":
		if len(fields) != 3 {
			fmt.Println("usage: /register user pass")
			return nil, false
		}
		return &protocol.Message{Type: protocol.TypeRegister, Username: fields[1], Password: fields[2]}, false
	case "/join":
		if len(fields) != 2 {
			fmt.Println("usage: /join room")
			return nil, false
		}
		return &protocol.Message{Type: protocol.TypeJoinRoom, Room: fields[1]}, false
	case "/create":
		if len(fields) != 2 {
			fmt.Println("usage: /create room")
			return nil, false
		}
		return &protocol.Message{Type: protocol.TypeCreateRoom, RoomName: fields[1]}, false
	case "/rooms":
		return &protocol.Message{Type: protocol.TypeGetRooms}, false
	case "/users":
		return &protocol.Message{Type: protocol.TypeGetUsers}, false
	case "/history":
		limit := 0
		if len(fields) == 2 {
			limit, _ = strconv.Atoi(fields[1])
		}
		return &protocol.Message{Type: protocol.TypeGetHistory, Limit: limit}, false
	case "/admin":
		if len(fields) != 3 {
			fmt.Println("usage: /admin mute|unmute|ban|unban|kick target")
			return nil, false
		}
		return &protocol.Message{Type: protocol.TypeAdminCommand, Command: fields[1], Target: fields[2]}, false
	default:
		fmt.Printf("unknown command %s\n", fields[0])
		return nil, false
	}
}

func printLoop(conn net.Conn) {
	reader := protocol.NewReader(conn)
	for {
		msg, err := reader.Read()
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "\nread: %v\n", err)
			}
			fmt.Println("\ndisconnected")
			os.Exit(0)
		}
		printMessage(msg)
	}
}

func printMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeChatMessage:
		fmt.Printf("[%s] %s: %s\n", msg.Room, msg.Username, msg.Message)
	case protocol.TypeUserJoined:
		fmt.Printf("* %s joined (%s)\n", msg.Username, msg.Timestamp)
	case protocol.TypeUserLeft:
		fmt.Printf("* %s left (%s)\n", msg.Username, msg.Timestamp)
	case protocol.TypeLoginSuccess:
		fmt.Printf("* logged in as %s (admin=%t)\n", msg.Username, msg.IsAdmin)
	case protocol.TypeRegisterSuccess:
		fmt.Printf("* %s\n", msg.Message)
	case protocol.TypeRoomJoined:
		fmt.Printf("* joined room %s\n", msg.Room)
	case protocol.TypeRoomCreated:
		fmt.Printf("* created room %s\n", msg.Room)
	case protocol.TypeRoomsList:
		for name, count := range msg.Rooms {
			fmt.Printf("  %s (%d)\n", name, count)
		}
	case protocol.TypeUsersList:
		fmt.Printf("users in %s: %s\n", msg.Room, strings.Join(msg.Users, ", "))
	case protocol.TypeHistory:
		for _, e := range msg.History {
			fmt.Printf("  [%s] %s: %s\n", e.Timestamp, e.Username, e.Message)
		}
	case protocol.TypeAdminResponse:
		fmt.Printf("* %s\n", msg.Message)
	case protocol.TypeError:
		fmt.Printf("! %s\n", msg.Message)
	default:
		fmt.Printf("? %s\n", msg.Type)
	}
}
