// Package protocol defines the chat wire format: one JSON object per line,
// UTF-8 encoded, newline-delimited. The newline framing is what the
// WebSocket bridge translates to and from discrete frames.
package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxMessageSize is the maximum encoded message size (64KB), newline included.
	MaxMessageSize = 65536

	// MaxVoicePacket is the maximum UDP voice datagram size.
	MaxVoicePacket = 4096

	// TimestampLayout is the wall-clock format carried in event messages.
	TimestampLayout = "15:04:05"
)

// ErrMessageTooLarge is returned when a message exceeds MaxMessageSize.
var ErrMessageTooLarge = errors.New("protocol: message too large")

// Inbound message types.
const (
	TypeLogin        = "login"
	TypeRegister     = "register"
	TypeChat         = "chat"
	TypeJoinRoom     = "join_room"
	TypeCreateRoom   = "create_room"
	TypeGetRooms     = "get_rooms"
	TypeGetUsers     = "get_users"
	TypeGetHistory   = "get_history"
	TypeAdminCommand = "admin_command"
	TypeVoiceJoin    = "voice_join"
)

// Outbound message types.
const (
	TypeLoginSuccess    = "login_success"
	TypeRegisterSuccess = "register_success"
	TypeError           = "error"
	TypeChatMessage     = "chat_message"
	TypeUserJoined      = "user_joined"
	TypeUserLeft        = "user_left"
	TypeRoomJoined      = "room_joined"
	TypeRoomCreated     = "room_created"
	TypeRoomsList       = "rooms_list"
	TypeUsersList       = "users_list"
	TypeHistory         = "history"
	TypeAdminResponse   = "admin_response"
)

// Admin commands carried in admin_command messages.
const (
	CmdMute   = "mute"
	CmdUnmute = "unmute"
	CmdBan    = "ban"
	CmdUnban  = "unban"
	CmdKick   = "kick"
)

// Message is the tagged wire record. Type selects the kind; the remaining
// fields are populated per kind and omitted otherwise.
type Message struct {
	Type string `json:"type"`

	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	Message   string `json:"message,omitempty"`
	Room      string `json:"room,omitempty"`
	RoomName  string `json:"room_name,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	Command string `json:"command,omitempty"`
	Target  string `json:"target,omitempty"`

	IsAdmin bool           `json:"is_admin,omitempty"`
	Rooms   map[string]int `json:"rooms,omitempty"`
	Users   []string       `json:"users,omitempty"`

	Limit   int            `json:"limit,omitempty"`
	History []HistoryEntry `json:"history,omitempty"`
}

// HistoryEntry is one persisted chat message in a history response.
type HistoryEntry struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
}

// WriteMessage encodes msg as a single JSON line and writes it in one Write
// call, so each message maps to exactly one line on the wire.
func WriteMessage(w io.Writer, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("protocol: marshal: %w", err)
	}
	if len(data)+1 > MaxMessageSize {
		return fmt.Errorf("protocol: %w: %d bytes", ErrMessageTooLarge, len(data))
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}
	return nil
}

// Reader reads newline-delimited messages from a stream. Lines longer than
// MaxMessageSize are rejected rather than buffered indefinitely.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r for message reading.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxMessageSize)
	return &Reader{scanner: scanner}
}

// Read returns the next message. It returns io.EOF on clean stream end.
func (r *Reader) Read() (*Message, error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue // tolerate blank lines
		}
		msg := &Message{}
		if err := json.Unmarshal(line, msg); err != nil {
			return nil, fmt.Errorf("protocol: unmarshal: %w", err)
		}
		return msg, nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, ErrMessageTooLarge
		}
		return nil, fmt.Errorf("protocol: read: %w", err)
	}
	return nil, io.EOF
}
