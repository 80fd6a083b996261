// Package store provides an in-memory datastore.UserStore for tests.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/YuriiFridman/TS3/pkg/datastore"
	"github.com/YuriiFridman/TS3/pkg/model"
)

// MemoryStore is an in-memory UserStore implementation. It mirrors SQLite
// behavior for validation and error mapping so server tests exercise the
// same paths as production.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	nextUserID    int64
	nextMessageID int64

	usersByUsername map[string]*model.User
	messages        []model.Message
}

// Compile-time check: *MemoryStore implements datastore.UserStore.
var _ datastore.UserStore = (*MemoryStore)(nil)

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:             now,
		nextUserID:      1,
		nextMessageID:   1,
		usersByUsername: make(map[string]*model.User),
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateUser inserts a new user, enforcing username uniqueness.
func (s *MemoryStore) CreateUser(username, passwordHash string, isAdmin bool) (*model.User, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[username]; exists {
		return nil, fmt.Errorf("store: create user: %w", model.ErrUserExists)
	}
	user := &model.User{
		ID:           s.nextUserID,
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    s.now().UTC(),
	}
	s.nextUserID++
	s.usersByUsername[username] = user

	out := *user
	return &out, nil
}

// GetUserByUsername returns a copy of the user record, or (nil, nil).
func (s *MemoryStore) GetUserByUsername(username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByUsername[username]
	if !ok {
		return nil, nil
	}
	out := *user
	return &out, nil
}

// ListUsers returns all users ordered by ID.
func (s *MemoryStore) ListUsers() ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]model.User, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, *u)
	}
	for i := 1; i < len(users); i++ {
		for j := i; j > 0 && users[j-1].ID > users[j].ID; j-- {
			users[j-1], users[j] = users[j], users[j-1]
		}
	}
	return users, nil
}

// CreateMessage persists one chat message.
func (s *MemoryStore) CreateMessage(msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = s.nextMessageID
	s.nextMessageID++
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	s.messages = append(s.messages, *msg)
	return nil
}

// ListMessages returns up to limit most recent messages for a room, oldest first.
func (s *MemoryStore) ListMessages(room string, limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []model.Message
	for _, m := range s.messages {
		if m.Room == room {
			matched = append(matched, m)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}
