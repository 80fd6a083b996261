package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	content := `
text_addr: ":9999"
db_path: /tmp/other.db
rooms:
  - dev
  - ops
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := DefaultConfig()
	roomNames, err := LoadConfigFile(path, &cfg)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	if cfg.TextAddr != ":9999" {
		t.Errorf("TextAddr = %q, want :9999", cfg.TextAddr)
	}
	if cfg.DBPath != "/tmp/other.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	// Fields absent from the file keep their prior values.
	if cfg.VoiceAddr != DefaultConfig().VoiceAddr {
		t.Errorf("VoiceAddr = %q, want default", cfg.VoiceAddr)
	}
	if len(roomNames) != 2 || roomNames[0] != "dev" || roomNames[1] != "ops" {
		t.Errorf("rooms = %v", roomNames)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err == nil {
		t.Fatal("LoadConfigFile: expected error for missing file")
	}
}

func TestSeedRoomsSkipsInvalidNames(t *testing.T) {
	rd := NewRoomDirectory()
	if err := SeedRooms([]string{"dev", "bad name", "", "ops"}, rd); err != nil {
		t.Fatalf("SeedRooms: %v", err)
	}

	snapshot := rd.Snapshot()
	if _, ok := snapshot["dev"]; !ok {
		t.Error("dev not seeded")
	}
	if _, ok := snapshot["ops"]; !ok {
		t.Error("ops not seeded")
	}
	if _, ok := snapshot["bad name"]; ok {
		t.Error("invalid room name was seeded")
	}
}

func TestLoadRoomsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	if err := os.WriteFile(path, []byte("rooms:\n  - lounge\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rd := NewRoomDirectory()
	if err := LoadRoomsFromYAML(path, rd); err != nil {
		t.Fatalf("LoadRoomsFromYAML: %v", err)
	}
	if _, ok := rd.Snapshot()["lounge"]; !ok {
		t.Fatal("lounge not created")
	}
}
