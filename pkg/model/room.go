package model

import (
	"errors"
	"fmt"
)

const MaxRoomNameLength = 32

// DefaultRoom is the room every freshly authenticated session lands in.
// It exists from server startup and is never deleted.
const DefaultRoom = "general"

var ErrRoomNameEmpty = errors.New("room name must not be empty")
var ErrRoomNameTooLong = fmt.Errorf("room name must not exceed %d characters", MaxRoomNameLength)
var ErrRoomNameInvalidChars = errors.New("room name must contain only alphanumeric characters, underscores, or hyphens")

// ErrRoomExists is returned by explicit room creation when the name is taken.
var ErrRoomExists = errors.New("room already exists")

// ValidateRoomName checks that a room name is 1-32 ASCII alphanumeric,
// underscore, or hyphen characters.
func ValidateRoomName(name string) error {
	if len(name) == 0 {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrRoomNameInvalidChars
		}
	}
	return nil
}
