package server

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuriiFridman/TS3/pkg/model"
)

// Config holds server configuration.
type Config struct {
	TextAddr    string // TCP bind address for the chat/control plane (e.g. ":12345")
	VoiceAddr   string // UDP bind address for the voice relay (e.g. ":12346")
	MetricsAddr string // HTTP bind address for /metrics (empty = disabled)
	DBPath      string // SQLite database path
	RoomsFile   string // YAML file defining rooms to create on startup

	AdminUser     string // seed administrator username
	AdminPassword string // seed administrator password (first startup only)
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TextAddr:      ":12345",
		VoiceAddr:     ":12346",
		MetricsAddr:   ":12348",
		DBPath:        "chat.db",
		AdminUser:     "admin",
		AdminPassword: "admin123",
	}
}

// FileConfig is the YAML shape of an optional server config file. Only
// non-zero fields override the flag/default values.
type FileConfig struct {
	TextAddr      string   `yaml:"text_addr,omitempty"`
	VoiceAddr     string   `yaml:"voice_addr,omitempty"`
	MetricsAddr   string   `yaml:"metrics_addr,omitempty"`
	DBPath        string   `yaml:"db_path,omitempty"`
	AdminUser     string   `yaml:"admin_user,omitempty"`
	AdminPassword string   `yaml:"admin_password,omitempty"`
	Rooms         []string `yaml:"rooms,omitempty"`
}

// LoadConfigFile overlays a YAML config file onto cfg. Rooms listed in the
// file are returned for seeding at startup.
func LoadConfigFile(path string, cfg *Config) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if fc.TextAddr != "" {
		cfg.TextAddr = fc.TextAddr
	}
	if fc.VoiceAddr != "" {
		cfg.VoiceAddr = fc.VoiceAddr
	}
	if fc.MetricsAddr != "" {
		cfg.MetricsAddr = fc.MetricsAddr
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.AdminUser != "" {
		cfg.AdminUser = fc.AdminUser
	}
	if fc.AdminPassword != "" {
		cfg.AdminPassword = fc.AdminPassword
	}
	return fc.Rooms, nil
}

// RoomsConfig is the top-level YAML config for a standalone rooms file.
type RoomsConfig struct {
	Rooms []string `yaml:"rooms"`
}

// LoadRoomsFromYAML reads a rooms YAML file and ensures each room exists.
func LoadRoomsFromYAML(path string, rooms *RoomDirectory) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read rooms config: %w", err)
	}
	var cfg RoomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse rooms config: %w", err)
	}
	return SeedRooms(cfg.Rooms, rooms)
}

// SeedRooms ensures each named room exists, skipping invalid names.
func SeedRooms(names []string, rooms *RoomDirectory) error {
	created := 0
	for _, name := range names {
		if err := model.ValidateRoomName(name); err != nil {
			slog.Error("skipping invalid room name from config", "name", name, "err", err)
			continue
		}
		rooms.Ensure(name)
		created++
	}
	slog.Info("seeded rooms from config", "count", created)
	return nil
}
