// Package datastore persists user records and chat history.
package datastore

import (
	"github.com/YuriiFridman/TS3/pkg/model"
)

// UserStore defines the persistence interface the server depends on.
// Implementations include the default SQLite store and the in-memory
// store used by tests.
type UserStore interface {
	UserReadProvider
	UserWriteProvider

	MessageReadProvider
	MessageWriteProvider

	Close() error
}

// Compile-time check: *Store implements UserStore.
var _ UserStore = (*Store)(nil)

type UserReadProvider interface {
	// GetUserByUsername returns the user record, or (nil, nil) when no such
	// username is registered.
	GetUserByUsername(username string) (*model.User, error)
	ListUsers() ([]model.User, error)
}

type UserWriteProvider interface {
	// CreateUser inserts a new user record. Returns model.ErrUserExists when
	// the username is already taken.
	CreateUser(username, passwordHash string, isAdmin bool) (*model.User, error)
}

type MessageReadProvider interface {
	// ListMessages returns up to limit most recent messages for a room,
	// oldest first.
	ListMessages(room string, limit int) ([]model.Message, error)
}

type MessageWriteProvider interface {
	CreateMessage(msg *model.Message) error
}
