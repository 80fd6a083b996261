package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/YuriiFridman/TS3/pkg/crypto"
	"github.com/YuriiFridman/TS3/pkg/datastore"
	"github.com/YuriiFridman/TS3/pkg/model"
	"github.com/YuriiFridman/TS3/pkg/protocol"
)

const maxChatLength = 2000

// ControlHandler handles TCP chat plane connections and message fan-out.
type ControlHandler struct {
	server  *Server
	store   datastore.UserStore
	mu      sync.RWMutex
	connMap map[uint32]*clientConn // sessionID -> transport + send queue
}

// newControlHandler creates a control handler.
func newControlHandler(srv *Server, st datastore.UserStore) *ControlHandler {
	return &ControlHandler{
		server:  srv,
		store:   st,
		connMap: make(map[uint32]*clientConn),
	}
}

// setConn registers a session's connection for outbound delivery.
func (ch *ControlHandler) setConn(sessionID uint32, cc *clientConn) {
	ch.mu.Lock()
	ch.connMap[sessionID] = cc
	ch.mu.Unlock()
}

// removeConn removes a session's connection.
func (ch *ControlHandler) removeConn(sessionID uint32) {
	ch.mu.Lock()
	delete(ch.connMap, sessionID)
	ch.mu.Unlock()
}

// getConn looks up a session's connection.
func (ch *ControlHandler) getConn(sessionID uint32) (*clientConn, bool) {
	ch.mu.RLock()
	cc, ok := ch.connMap[sessionID]
	ch.mu.RUnlock()
	return cc, ok
}

// sendTo queues a message for one session. Drops are counted, not fatal.
func (ch *ControlHandler) sendTo(sessionID uint32, msg *protocol.Message) {
	cc, ok := ch.getConn(sessionID)
	if !ok {
		return
	}
	if !cc.enqueue(msg) {
		ch.server.metrics.MessagesDropped.Add(1)
		slog.Warn("send queue full, message dropped", "session", sessionID, "type", msg.Type)
	}
}

// broadcastToRoom queues msg for every registered session whose username is
// a member of the room, skipping excludeSession when nonzero. A full queue
// on one recipient never aborts delivery to the others.
func (ch *ControlHandler) broadcastToRoom(room string, msg *protocol.Message, excludeSession uint32) {
	members := ch.server.rooms.MemberSet(room)
	if members == nil {
		return
	}
	for _, sess := range ch.server.sessions.All() {
		if sess.ID == excludeSession || sess.State != model.StateAuthenticated {
			continue
		}
		if !members.Contains(sess.Username) {
			continue
		}
		ch.sendTo(sess.ID, msg)
	}
}

// closeAll closes every registered connection. Used at shutdown; each close
// makes that session's read loop run the normal disconnect cleanup.
func (ch *ControlHandler) closeAll() {
	ch.mu.RLock()
	conns := make([]*clientConn, 0, len(ch.connMap))
	for _, cc := range ch.connMap {
		conns = append(conns, cc)
	}
	ch.mu.RUnlock()
	for _, cc := range conns {
		cc.close()
	}
}

// StartControl starts the TCP chat listener.
func (s *Server) StartControl() error {
	ln, err := net.Listen("tcp", s.cfg.TextAddr)
	if err != nil {
		return fmt.Errorf("server: listen text: %w", err)
	}
	s.textLn = ln

	slog.Info("chat plane listening", "addr", s.cfg.TextAddr)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					slog.Error("accept error", "err", err)
					continue
				}
			}
			s.wg.Add(1)
			go s.handleConn(conn)
		}
	}()

	return nil
}

// handleConn owns a single connection's lifecycle: register, read loop,
// dispatch, and the one cleanup pass on exit. Cleanup runs exactly once per
// session no matter which trigger ends the read loop (client close, read
// error, administrative kick/ban, shutdown).
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()

	remoteAddr := conn.RemoteAddr().String()
	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	slog.Debug("new connection", "remote", remoteAddr)

	sess := s.sessions.Register()
	cc := newClientConn(sess.ID, conn)
	s.control.setConn(sess.ID, cc)
	go cc.writePump()

	defer s.disconnect(cc)

	reader := protocol.NewReader(conn)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		msg, err := reader.Read()
		if err != nil {
			if err == io.EOF || isClosedErr(err) {
				return
			}
			// Malformed or oversized input: drop the connection, never
			// the server.
			slog.Error("read error, closing connection", "remote", remoteAddr, "err", err)
			return
		}

		s.handleMessage(cc, msg)
	}
}

// disconnect tears a session down: transport closed, username removed from
// its room's member set, departure broadcast to the vacated room.
func (s *Server) disconnect(cc *clientConn) {
	cc.close()
	s.control.removeConn(cc.sessionID)

	snap, ok := s.sessions.GetSnapshot(cc.sessionID)
	s.sessions.Remove(cc.sessionID)

	if ok && snap.State == model.StateAuthenticated {
		s.transitionMu.Lock()
		s.rooms.Leave(snap.Room, snap.Username)
		s.control.broadcastToRoom(snap.Room, &protocol.Message{
			Type:      protocol.TypeUserLeft,
			Username:  snap.Username,
			Timestamp: time.Now().Format(protocol.TimestampLayout),
		}, 0)
		s.transitionMu.Unlock()

		// Drop the voice pairing when this was the user's last session.
		if len(s.sessions.ByUsername(snap.Username)) == 0 {
			s.voice.RemoveUser(snap.Username)
		}
		slog.Info("client disconnected", "user", snap.Username, "session", cc.sessionID)
	} else {
		slog.Debug("client disconnected", "session", cc.sessionID)
	}

	s.metrics.ActiveConnections.Add(-1)
	s.metrics.TotalDisconnects.Add(1)
}

// handleMessage dispatches one inbound message. Room and chat requests from
// unauthenticated sessions are silently ignored; unknown types are ignored.
func (s *Server) handleMessage(cc *clientConn, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeLogin:
		s.handleLogin(cc, msg)
	case protocol.TypeRegister:
		s.handleRegister(cc, msg)
	case protocol.TypeChat:
		s.handleChat(cc, msg)
	case protocol.TypeJoinRoom:
		s.handleJoinRoom(cc, msg)
	case protocol.TypeCreateRoom:
		s.handleCreateRoom(cc, msg)
	case protocol.TypeGetRooms:
		s.handleGetRooms(cc)
	case protocol.TypeGetUsers:
		s.handleGetUsers(cc)
	case protocol.TypeGetHistory:
		s.handleGetHistory(cc, msg)
	case protocol.TypeAdminCommand:
		s.handleAdminCommand(cc, msg)
	}
}

func (s *Server) handleLogin(cc *clientConn, msg *protocol.Message) {
	snap, ok := s.sessions.GetSnapshot(cc.sessionID)
	if !ok {
		return
	}
	if snap.State != model.StateUnauthenticated {
		s.sendError(cc, "already logged in")
		return
	}

	username := msg.Username
	if err := model.ValidateUsername(username); err != nil {
		s.metrics.FailedAuths.Add(1)
		s.sendError(cc, "invalid username or password")
		return
	}

	// Bans apply before authentication is finalized.
	if s.moderation.IsBanned(username) {
		s.metrics.FailedAuths.Add(1)
		s.sendError(cc, "you are banned from this server")
		return
	}

	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		slog.Error("login lookup failed", "user", username, "err", err)
		s.sendError(cc, "internal error")
		return
	}
	if user != nil {
		match, verr := crypto.VerifyPassword(msg.Password, user.PasswordHash)
		if verr != nil {
			slog.Error("password verify failed", "user", username, "err", verr)
			user = nil
		} else if !match {
			user = nil
		}
	}
	if user == nil {
		s.metrics.FailedAuths.Add(1)
		s.sendError(cc, "invalid username or password")
		return
	}

	s.transitionMu.Lock()
	if err := s.sessions.Authenticate(cc.sessionID, user.Username, user.IsAdmin); err != nil {
		s.transitionMu.Unlock()
		s.sendError(cc, "internal error")
		return
	}
	s.rooms.Join(model.DefaultRoom, user.Username)

	s.sendTo(cc, &protocol.Message{
		Type:     protocol.TypeLoginSuccess,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
	s.control.broadcastToRoom(model.DefaultRoom, &protocol.Message{
		Type:      protocol.TypeUserJoined,
		Username:  user.Username,
		Timestamp: time.Now().Format(protocol.TimestampLayout),
	}, cc.sessionID)
	s.transitionMu.Unlock()

	s.metrics.SuccessfulAuths.Add(1)
	slog.Info("client authenticated", "user", user.Username, "admin", user.IsAdmin, "session", cc.sessionID)
}

func (s *Server) handleRegister(cc *clientConn, msg *protocol.Message) {
	if err := model.ValidateUsername(msg.Username); err != nil {
		s.sendError(cc, err.Error())
		return
	}
	if msg.Password == "" {
		s.sendError(cc, "password must not be empty")
		return
	}

	hash, err := crypto.HashPassword(msg.Password)
	if err != nil {
		slog.Error("password hash failed", "err", err)
		s.sendError(cc, "internal error")
		return
	}

	if _, err := s.store.CreateUser(msg.Username, hash, false); err != nil {
		if errors.Is(err, model.ErrUserExists) {
			s.sendError(cc, "a user with this name already exists")
			return
		}
		slog.Error("register failed", "user", msg.Username, "err", err)
		s.sendError(cc, "internal error")
		return
	}

	s.sendTo(cc, &protocol.Message{
		Type:    protocol.TypeRegisterSuccess,
		Message: "registration successful, you can now log in",
	})
	slog.Info("new user registered", "user", msg.Username)
}

func (s *Server) handleChat(cc *clientConn, msg *protocol.Message) {
	snap, ok := s.authedSnapshot(cc)
	if !ok {
		return
	}

	if s.moderation.IsMuted(snap.Username) {
		s.sendError(cc, "you are muted and cannot send messages")
		return
	}

	text := sanitizeText(strings.TrimSpace(msg.Message))
	if len(text) == 0 || len(text) > maxChatLength {
		return // empty or too long, silently drop
	}

	now := time.Now()
	s.control.broadcastToRoom(snap.Room, &protocol.Message{
		Type:      protocol.TypeChatMessage,
		Username:  snap.Username,
		Message:   text,
		Room:      snap.Room,
		Timestamp: now.Format(protocol.TimestampLayout),
	}, 0) // no exclusion: sender sees its own echo via the broadcast
	s.metrics.ChatMessagesSent.Add(1)

	if err := s.store.CreateMessage(&model.Message{
		Room:      snap.Room,
		Sender:    snap.Username,
		Body:      text,
		CreatedAt: now.UTC(),
	}); err != nil {
		slog.Error("persist chat message failed", "err", err)
	}
}

func (s *Server) handleJoinRoom(cc *clientConn, msg *protocol.Message) {
	snap, ok := s.authedSnapshot(cc)
	if !ok {
		return
	}

	newRoom := msg.Room
	if err := model.ValidateRoomName(newRoom); err != nil {
		s.sendError(cc, err.Error())
		return
	}

	// Rejoining the current room is legal and re-runs the full
	// leave/join broadcast sequence.
	s.transitionMu.Lock()
	s.rooms.Leave(snap.Room, snap.Username)
	s.control.broadcastToRoom(snap.Room, &protocol.Message{
		Type:      protocol.TypeUserLeft,
		Username:  snap.Username,
		Timestamp: time.Now().Format(protocol.TimestampLayout),
	}, 0)

	s.rooms.Join(newRoom, snap.Username)
	s.sessions.SetRoom(cc.sessionID, newRoom)

	s.sendTo(cc, &protocol.Message{
		Type: protocol.TypeRoomJoined,
		Room: newRoom,
	})
	s.control.broadcastToRoom(newRoom, &protocol.Message{
		Type:      protocol.TypeUserJoined,
		Username:  snap.Username,
		Timestamp: time.Now().Format(protocol.TimestampLayout),
	}, cc.sessionID)
	s.transitionMu.Unlock()

	slog.Debug("room change", "user", snap.Username, "from", snap.Room, "to", newRoom)
}

func (s *Server) handleCreateRoom(cc *clientConn, msg *protocol.Message) {
	snap, ok := s.authedSnapshot(cc)
	if !ok {
		return
	}

	name := msg.RoomName
	if err := model.ValidateRoomName(name); err != nil {
		s.sendError(cc, err.Error())
		return
	}

	if err := s.rooms.CreateExplicit(name); err != nil {
		s.sendError(cc, "a room with this name already exists")
		return
	}

	s.sendTo(cc, &protocol.Message{
		Type: protocol.TypeRoomCreated,
		Room: name,
	})
	s.metrics.RoomsCreated.Add(1)
	slog.Info("room created", "room", name, "by", snap.Username)
}

func (s *Server) handleGetRooms(cc *clientConn) {
	if _, ok := s.authedSnapshot(cc); !ok {
		return
	}
	s.sendTo(cc, &protocol.Message{
		Type:  protocol.TypeRoomsList,
		Rooms: s.rooms.Snapshot(),
	})
}

func (s *Server) handleGetUsers(cc *clientConn) {
	snap, ok := s.authedSnapshot(cc)
	if !ok {
		return
	}
	users := s.rooms.Members(snap.Room)
	if users == nil {
		users = []string{}
	}
	s.sendTo(cc, &protocol.Message{
		Type:  protocol.TypeUsersList,
		Users: users,
		Room:  snap.Room,
	})
}

func (s *Server) handleGetHistory(cc *clientConn, msg *protocol.Message) {
	snap, ok := s.authedSnapshot(cc)
	if !ok {
		return
	}

	limit := msg.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	records, err := s.store.ListMessages(snap.Room, limit)
	if err != nil {
		slog.Error("history lookup failed", "room", snap.Room, "err", err)
		s.sendError(cc, "internal error")
		return
	}

	entries := make([]protocol.HistoryEntry, 0, len(records))
	for _, m := range records {
		entries = append(entries, protocol.HistoryEntry{
			Username:  m.Sender,
			Message:   m.Body,
			Room:      m.Room,
			Timestamp: m.CreatedAt.Format(protocol.TimestampLayout),
		})
	}
	s.sendTo(cc, &protocol.Message{
		Type:    protocol.TypeHistory,
		Room:    snap.Room,
		History: entries,
	})
}

func (s *Server) handleAdminCommand(cc *clientConn, msg *protocol.Message) {
	snap, ok := s.authedSnapshot(cc)
	if !ok {
		return
	}
	if !snap.IsAdmin {
		s.sendError(cc, "you do not have administrator privileges")
		return
	}

	target := msg.Target
	if target == "" {
		s.sendError(cc, "admin command requires a target")
		return
	}

	switch msg.Command {
	case protocol.CmdMute:
		s.moderation.Mute(target)
		s.metrics.MuteCount.Add(1)
		s.adminResponse(cc, fmt.Sprintf("user %s has been muted", target))

	case protocol.CmdUnmute:
		s.moderation.Unmute(target)
		s.adminResponse(cc, fmt.Sprintf("user %s has been unmuted", target))

	case protocol.CmdBan:
		s.moderation.Ban(target)
		s.metrics.BanCount.Add(1)
		// Force-disconnect every session authenticated as the target.
		s.kickSessions(target, "you have been banned from this server")
		s.adminResponse(cc, fmt.Sprintf("user %s has been banned", target))

	case protocol.CmdUnban:
		s.moderation.Unban(target)
		s.adminResponse(cc, fmt.Sprintf("user %s has been unbanned", target))

	case protocol.CmdKick:
		if len(s.sessions.ByUsername(target)) == 0 {
			s.sendError(cc, "user not online")
			return
		}
		s.metrics.KickCount.Add(1)
		s.kickSessions(target, "you have been kicked from the server")
		s.adminResponse(cc, fmt.Sprintf("user %s has been kicked", target))

	default:
		s.sendError(cc, "unknown admin command")
	}
	slog.Info("admin command", "command", msg.Command, "target", target, "by", snap.Username)
}

// kickSessions closes the connection of every session authenticated as
// username, after a best-effort notice. The closes make each session's read
// loop run the normal disconnect cleanup.
func (s *Server) kickSessions(username, notice string) {
	for _, sess := range s.sessions.ByUsername(username) {
		if target, ok := s.control.getConn(sess.ID); ok {
			target.enqueue(&protocol.Message{Type: protocol.TypeError, Message: notice})
			target.close()
		}
	}
}

// authedSnapshot returns the session snapshot when it is authenticated.
// Requests from unauthenticated sessions are silently ignored.
func (s *Server) authedSnapshot(cc *clientConn) (model.Session, bool) {
	snap, ok := s.sessions.GetSnapshot(cc.sessionID)
	if !ok || snap.State != model.StateAuthenticated {
		return model.Session{}, false
	}
	return snap, true
}

func (s *Server) sendTo(cc *clientConn, msg *protocol.Message) {
	if !cc.enqueue(msg) {
		s.metrics.MessagesDropped.Add(1)
	}
}

func (s *Server) sendError(cc *clientConn, message string) {
	s.sendTo(cc, &protocol.Message{Type: protocol.TypeError, Message: message})
}

func (s *Server) adminResponse(cc *clientConn, message string) {
	s.sendTo(cc, &protocol.Message{Type: protocol.TypeAdminResponse, Message: message})
}

func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "use of closed network connection")
}

// sanitizeText strips control characters (except newline) from user-supplied
// text to prevent UI spoofing, terminal escape injection, and null-byte attacks.
func sanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' ' // collapse newlines to spaces
		}
		if unicode.IsControl(r) {
			return -1 // strip all other control chars (null, bell, ANSI escapes, etc.)
		}
		return r
	}, s)
}
