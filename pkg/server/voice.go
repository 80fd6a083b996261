package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/YuriiFridman/TS3/pkg/protocol"
)

// VoiceRegistry maps datagram source addresses to usernames. A client pairs
// its voice socket by sending a voice_join handshake datagram; from then on
// payloads from that address are relayed to the rest of the sender's room.
type VoiceRegistry struct {
	mu     sync.RWMutex
	byAddr map[string]string       // addr.String() -> username
	byUser map[string]*net.UDPAddr // username -> paired address
}

// NewVoiceRegistry creates an empty voice registry.
func NewVoiceRegistry() *VoiceRegistry {
	return &VoiceRegistry{
		byAddr: make(map[string]string),
		byUser: make(map[string]*net.UDPAddr),
	}
}

// Pair records addr as username's voice endpoint, replacing any previous one.
func (vr *VoiceRegistry) Pair(username string, addr *net.UDPAddr) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	if old, ok := vr.byUser[username]; ok {
		delete(vr.byAddr, old.String())
	}
	vr.byAddr[addr.String()] = username
	vr.byUser[username] = addr
}

// UserFor returns the username paired with addr, if any.
func (vr *VoiceRegistry) UserFor(addr *net.UDPAddr) (string, bool) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()
	username, ok := vr.byAddr[addr.String()]
	return username, ok
}

// AddrFor returns the paired address for username, if any.
func (vr *VoiceRegistry) AddrFor(username string) (*net.UDPAddr, bool) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()
	addr, ok := vr.byUser[username]
	return addr, ok
}

// RemoveUser drops username's pairing. No-op when absent.
func (vr *VoiceRegistry) RemoveUser(username string) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	if addr, ok := vr.byUser[username]; ok {
		delete(vr.byAddr, addr.String())
		delete(vr.byUser, username)
	}
}

// StartVoice starts the UDP voice relay.
func (s *Server) StartVoice() error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.VoiceAddr)
	if err != nil {
		return fmt.Errorf("server: resolve voice addr: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("server: listen voice: %w", err)
	}
	s.voiceConn = conn

	// Increase UDP buffer size for better throughput under load
	if err := conn.SetReadBuffer(1024 * 1024); err != nil {
		slog.Warn("failed to set UDP read buffer", "err", err)
	}
	if err := conn.SetWriteBuffer(1024 * 1024); err != nil {
		slog.Warn("failed to set UDP write buffer", "err", err)
	}

	slog.Info("voice plane listening", "addr", s.cfg.VoiceAddr)

	go s.voiceLoop()
	return nil
}

// voiceLoop reads UDP datagrams and forwards payloads to room members. The
// relay never mixes or interprets audio; unknown senders are dropped. This
// loop runs independently of the chat plane and never blocks it.
func (s *Server) voiceLoop() {
	buf := make([]byte, protocol.MaxVoicePacket)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		n, remoteAddr, err := s.voiceConn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				slog.Error("voice read error", "err", err)
				continue
			}
		}

		s.metrics.VoicePacketsIn.Add(1)
		s.metrics.VoiceBytesIn.Add(int64(n))

		if s.tryVoiceJoin(buf[:n], remoteAddr) {
			continue
		}

		s.relayVoice(buf[:n], remoteAddr)
	}
}

// tryVoiceJoin handles the pairing handshake: a JSON voice_join datagram
// binds the sender's address to an authenticated username. Returns true when
// the datagram was a handshake (valid or not).
func (s *Server) tryVoiceJoin(data []byte, remoteAddr *net.UDPAddr) bool {
	if len(data) == 0 || data[0] != '{' {
		return false
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != protocol.TypeVoiceJoin {
		return false
	}

	// Only currently authenticated users may pair a voice endpoint.
	if len(s.sessions.ByUsername(msg.Username)) == 0 {
		s.metrics.VoicePacketsDropped.Add(1)
		slog.Debug("voice join rejected, no session", "user", msg.Username, "remote", remoteAddr)
		return true
	}

	s.voice.Pair(msg.Username, remoteAddr)
	slog.Debug("voice endpoint paired", "user", msg.Username, "remote", remoteAddr)
	return true
}

// relayVoice forwards a raw payload to every other paired member of the
// sender's room.
func (s *Server) relayVoice(data []byte, remoteAddr *net.UDPAddr) {
	sender, ok := s.voice.UserFor(remoteAddr)
	if !ok {
		s.metrics.VoicePacketsDropped.Add(1)
		return // unpaired source, discard
	}

	// Don't forward from muted users
	if s.moderation.IsMuted(sender) {
		s.metrics.VoicePacketsDropped.Add(1)
		return
	}

	sessions := s.sessions.ByUsername(sender)
	if len(sessions) == 0 {
		s.voice.RemoveUser(sender)
		s.metrics.VoicePacketsDropped.Add(1)
		return
	}
	room := sessions[0].Room

	for _, member := range s.rooms.Members(room) {
		if member == sender {
			continue // don't echo back to sender
		}
		addr, ok := s.voice.AddrFor(member)
		if !ok {
			continue
		}
		if _, err := s.voiceConn.WriteToUDP(data, addr); err != nil {
			slog.Debug("voice forward error", "target", member, "err", err)
		} else {
			s.metrics.VoicePacketsOut.Add(1)
			s.metrics.VoiceBytesOut.Add(int64(len(data)))
		}
	}
}
