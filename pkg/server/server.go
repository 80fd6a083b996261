// Package server implements the chat core: connection lifecycle,
// authentication, room membership, message fan-out, moderation, and the UDP
// voice relay.
package server

import (
	"context"
	"net"
	"sync"

	"github.com/YuriiFridman/TS3/pkg/datastore"
)

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store datastore.UserStore
}

// Server is the chat core. One goroutine per accepted TCP connection, one
// for the UDP voice loop; the shared registries are mutex-protected.
type Server struct {
	cfg        Config
	sessions   *SessionRegistry
	rooms      *RoomDirectory
	moderation *Moderation
	voice      *VoiceRegistry
	metrics    *Metrics
	store      datastore.UserStore
	control    *ControlHandler

	// transitionMu makes a room membership mutation and its resulting
	// notification broadcast appear atomic to other mutators, so no
	// broadcast targets a stale member list.
	transitionMu sync.Mutex

	textLn    net.Listener
	voiceConn *net.UDPConn

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		sessions:   NewSessionRegistry(),
		rooms:      NewRoomDirectory(),
		moderation: NewModeration(),
		voice:      NewVoiceRegistry(),
		metrics:    NewMetrics(),
		store:      deps.Store,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.control = newControlHandler(s, deps.Store)
	return s
}

// Sessions returns the session registry.
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

// Rooms returns the room directory.
func (s *Server) Rooms() *RoomDirectory {
	return s.rooms
}

// Moderation returns the moderation state.
func (s *Server) Moderation() *Moderation {
	return s.moderation
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
