package server

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/YuriiFridman/TS3/pkg/model"
)

// RoomDirectory owns the set of rooms and their member usernames. Rooms are
// created lazily on first join and are never garbage-collected; the default
// room exists from startup.
type RoomDirectory struct {
	mu    sync.RWMutex
	rooms map[string]mapset.Set[string] // room name -> member usernames
}

// NewRoomDirectory creates a directory containing only the default room.
func NewRoomDirectory() *RoomDirectory {
	rd := &RoomDirectory{
		rooms: make(map[string]mapset.Set[string]),
	}
	rd.rooms[model.DefaultRoom] = mapset.NewSet[string]()
	return rd
}

// Ensure creates the room if absent. No-op when it already exists.
func (rd *RoomDirectory) Ensure(name string) {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if _, ok := rd.rooms[name]; !ok {
		rd.rooms[name] = mapset.NewSet[string]()
	}
}

// CreateExplicit creates a room for a client-facing create request.
// Unlike Ensure it fails visibly with model.ErrRoomExists.
func (rd *RoomDirectory) CreateExplicit(name string) error {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if _, ok := rd.rooms[name]; ok {
		return model.ErrRoomExists
	}
	rd.rooms[name] = mapset.NewSet[string]()
	return nil
}

// Join adds username to the room's member set, creating the room if needed.
// Always succeeds.
func (rd *RoomDirectory) Join(room, username string) {
	rd.mu.Lock()
	members, ok := rd.rooms[room]
	if !ok {
		members = mapset.NewSet[string]()
		rd.rooms[room] = members
	}
	rd.mu.Unlock()
	members.Add(username)
}

// Leave removes username from the room if present. No-op otherwise.
func (rd *RoomDirectory) Leave(room, username string) {
	rd.mu.RLock()
	members, ok := rd.rooms[room]
	rd.mu.RUnlock()
	if ok {
		members.Remove(username)
	}
}

// Contains reports whether username is a member of room.
func (rd *RoomDirectory) Contains(room, username string) bool {
	rd.mu.RLock()
	members, ok := rd.rooms[room]
	rd.mu.RUnlock()
	return ok && members.Contains(username)
}

// MemberCount returns the number of members in a room; zero for unknown rooms.
func (rd *RoomDirectory) MemberCount(room string) int {
	rd.mu.RLock()
	members, ok := rd.rooms[room]
	rd.mu.RUnlock()
	if !ok {
		return 0
	}
	return members.Cardinality()
}

// Members returns the member usernames of a room; empty for unknown rooms.
func (rd *RoomDirectory) Members(room string) []string {
	rd.mu.RLock()
	members, ok := rd.rooms[room]
	rd.mu.RUnlock()
	if !ok {
		return nil
	}
	return members.ToSlice()
}

// MemberSet returns the live member set of a room, or nil for unknown rooms.
func (rd *RoomDirectory) MemberSet(room string) mapset.Set[string] {
	rd.mu.RLock()
	defer rd.mu.RUnlock()
	return rd.rooms[room]
}

// Snapshot returns room name -> member count for every room.
func (rd *RoomDirectory) Snapshot() map[string]int {
	rd.mu.RLock()
	defer rd.mu.RUnlock()
	counts := make(map[string]int, len(rd.rooms))
	for name, members := range rd.rooms {
		counts[name] = members.Cardinality()
	}
	return counts
}
