package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/YuriiFridman/TS3/pkg/datastore"
	"github.com/YuriiFridman/TS3/pkg/logging"
	"github.com/YuriiFridman/TS3/pkg/server"
	"github.com/YuriiFridman/TS3/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	configFile := flag.String("config", "", "YAML config file (flags override it)")
	flag.StringVar(&cfg.TextAddr, "text", cfg.TextAddr, "TCP chat plane bind address")
	flag.StringVar(&cfg.VoiceAddr, "voice", cfg.VoiceAddr, "UDP voice plane bind address")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database file path")
	flag.StringVar(&cfg.RoomsFile, "rooms-file", "", "YAML file defining rooms to create on startup")
	flag.StringVar(&cfg.AdminUser, "admin-user", cfg.AdminUser, "seed administrator username")
	flag.StringVar(&cfg.AdminPassword, "admin-password", cfg.AdminPassword, "seed administrator password (first startup only)")
	showVersion := flag.Bool("version", false, "print version and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	// File values fill in anything not set explicitly on the command line.
	var seedRooms []string
	if *configFile != "" {
		setFlags := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

		fileCfg := cfg
		rooms, err := server.LoadConfigFile(*configFile, &fileCfg)
		if err != nil {
			slog.Error("load config file", "err", err)
			os.Exit(1)
		}
		seedRooms = rooms

		if !setFlags["text"] {
			cfg.TextAddr = fileCfg.TextAddr
		}
		if !setFlags["voice"] {
			cfg.VoiceAddr = fileCfg.VoiceAddr
		}
		if !setFlags["metrics"] {
			cfg.MetricsAddr = fileCfg.MetricsAddr
		}
		if !setFlags["db"] {
			cfg.DBPath = fileCfg.DBPath
		}
		if !setFlags["admin-user"] {
			cfg.AdminUser = fileCfg.AdminUser
		}
		if !setFlags["admin-password"] {
			cfg.AdminPassword = fileCfg.AdminPassword
		}
	}

	st, err := datastore.New(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	srv := server.New(cfg, server.Dependencies{Store: st})
	if len(seedRooms) > 0 {
		_ = server.SeedRooms(seedRooms, srv.Rooms())
	}
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
