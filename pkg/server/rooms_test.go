package server

import (
	"errors"
	"testing"

	"github.com/YuriiFridman/TS3/pkg/model"
)

func TestDefaultRoomExists(t *testing.T) {
	rd := NewRoomDirectory()
	if rd.MemberCount(model.DefaultRoom) != 0 {
		t.Fatal("default room not empty at startup")
	}
	snapshot := rd.Snapshot()
	if _, ok := snapshot[model.DefaultRoom]; !ok {
		t.Fatalf("Snapshot missing default room: %v", snapshot)
	}
}

func TestJoinCreatesRoomLazily(t *testing.T) {
	rd := NewRoomDirectory()

	rd.Join("dev", "alice")
	if !rd.Contains("dev", "alice") {
		t.Fatal("Contains: alice not in dev after Join")
	}
	if rd.MemberCount("dev") != 1 {
		t.Fatalf("MemberCount(dev) = %d, want 1", rd.MemberCount("dev"))
	}

	// Joining again is a no-op on the member set.
	rd.Join("dev", "alice")
	if rd.MemberCount("dev") != 1 {
		t.Fatalf("MemberCount(dev) after rejoin = %d, want 1", rd.MemberCount("dev"))
	}
}

func TestLeave(t *testing.T) {
	rd := NewRoomDirectory()
	rd.Join("dev", "alice")
	rd.Join("dev", "bob")

	rd.Leave("dev", "alice")
	if rd.Contains("dev", "alice") {
		t.Fatal("Contains: alice still in dev after Leave")
	}
	if !rd.Contains("dev", "bob") {
		t.Fatal("Contains: bob removed by another user's Leave")
	}

	// Leaves of absent members and unknown rooms are no-ops.
	rd.Leave("dev", "carol")
	rd.Leave("nonexistent", "alice")
	if rd.MemberCount("dev") != 1 {
		t.Fatalf("MemberCount(dev) = %d, want 1", rd.MemberCount("dev"))
	}
}

func TestCreateExplicitDuplicate(t *testing.T) {
	rd := NewRoomDirectory()

	if err := rd.CreateExplicit("dev"); err != nil {
		t.Fatalf("CreateExplicit: %v", err)
	}
	if err := rd.CreateExplicit("dev"); !errors.Is(err, model.ErrRoomExists) {
		t.Fatalf("CreateExplicit duplicate: got %v, want ErrRoomExists", err)
	}
	if err := rd.CreateExplicit(model.DefaultRoom); !errors.Is(err, model.ErrRoomExists) {
		t.Fatalf("CreateExplicit default room: got %v, want ErrRoomExists", err)
	}
}

func TestEnsureIdempotent(t *testing.T) {
	rd := NewRoomDirectory()
	rd.Join("dev", "alice")

	rd.Ensure("dev") // must not wipe existing members
	if !rd.Contains("dev", "alice") {
		t.Fatal("Ensure wiped existing members")
	}
}

func TestSnapshotCounts(t *testing.T) {
	rd := NewRoomDirectory()
	rd.Join("dev", "alice")
	rd.Join("dev", "bob")
	rd.Join("ops", "carol")

	snapshot := rd.Snapshot()
	want := map[string]int{model.DefaultRoom: 0, "dev": 2, "ops": 1}
	for room, count := range want {
		if snapshot[room] != count {
			t.Errorf("Snapshot[%q] = %d, want %d", room, snapshot[room], count)
		}
	}
	if len(snapshot) != len(want) {
		t.Errorf("Snapshot has %d rooms, want %d", len(snapshot), len(want))
	}
}

func TestMembersUnknownRoom(t *testing.T) {
	rd := NewRoomDirectory()
	if members := rd.Members("nonexistent"); members != nil {
		t.Fatalf("Members(nonexistent) = %v, want nil", members)
	}
	if set := rd.MemberSet("nonexistent"); set != nil {
		t.Fatal("MemberSet(nonexistent) != nil")
	}
}

func TestModerationSets(t *testing.T) {
	m := NewModeration()

	if m.IsMuted("alice") || m.IsBanned("alice") {
		t.Fatal("fresh moderation state not empty")
	}

	m.Mute("alice")
	if !m.IsMuted("alice") {
		t.Fatal("IsMuted false after Mute")
	}
	m.Unmute("alice")
	if m.IsMuted("alice") {
		t.Fatal("IsMuted true after Unmute")
	}

	m.Ban("bob")
	if !m.IsBanned("bob") {
		t.Fatal("IsBanned false after Ban")
	}
	if m.IsMuted("bob") {
		t.Fatal("Ban leaked into the muted set")
	}
	m.Unban("bob")
	if m.IsBanned("bob") {
		t.Fatal("IsBanned true after Unban")
	}

	// Lifting a state that was never applied is a no-op.
	m.Unmute("carol")
	m.Unban("carol")
}
