package server

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/YuriiFridman/TS3/pkg/model"
)

// ErrSessionNotFound is returned when operating on an unknown session ID.
var ErrSessionNotFound = errors.New("server: session not found")

// SessionRegistry owns the set of live sessions. Transport handles are kept
// separately in the ControlHandler's connection map; the registry tracks
// identity and room state.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uint32]*model.Session // sessionID -> session
}

// NewSessionRegistry creates an empty session registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[uint32]*model.Session),
	}
}

// Register creates a new unauthenticated session and returns its snapshot.
func (sr *SessionRegistry) Register() model.Session {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	// Generate random session ID
	var id uint32
	for {
		b := make([]byte, 4)
		if _, err := rand.Read(b); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		id = binary.BigEndian.Uint32(b)
		if id != 0 {
			if _, exists := sr.sessions[id]; !exists {
				break
			}
		}
	}

	sess := &model.Session{
		ID:    id,
		State: model.StateUnauthenticated,
	}
	sr.sessions[id] = sess
	return *sess
}

// Authenticate upgrades a session to the authenticated state, recording its
// identity and placing it in the default room. Fails for unknown IDs.
func (sr *SessionRegistry) Authenticate(id uint32, username string, isAdmin bool) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sess, ok := sr.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Username = username
	sess.IsAdmin = isAdmin
	sess.Room = model.DefaultRoom
	sess.State = model.StateAuthenticated
	return nil
}

// SetRoom records the room a session currently belongs to.
func (sr *SessionRegistry) SetRoom(id uint32, room string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sess, ok := sr.sessions[id]; ok {
		sess.Room = room
	}
}

// GetSnapshot returns a copy of a session's state.
func (sr *SessionRegistry) GetSnapshot(id uint32) (model.Session, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	sess, ok := sr.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	return *sess, true
}

// Remove deletes a session and marks it disconnected. Idempotent.
func (sr *SessionRegistry) Remove(id uint32) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sess, ok := sr.sessions[id]; ok {
		sess.State = model.StateDisconnected
		delete(sr.sessions, id)
	}
}

// ByUsername returns snapshots of every session authenticated as username.
func (sr *SessionRegistry) ByUsername(username string) []model.Session {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	var result []model.Session
	for _, s := range sr.sessions {
		if s.State == model.StateAuthenticated && s.Username == username {
			result = append(result, *s)
		}
	}
	return result
}

// All returns snapshots of all live sessions.
func (sr *SessionRegistry) All() []model.Session {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	result := make([]model.Session, 0, len(sr.sessions))
	for _, s := range sr.sessions {
		result = append(result, *s)
	}
	return result
}

// Count returns the number of live sessions.
func (sr *SessionRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.sessions)
}
