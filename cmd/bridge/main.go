package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuriiFridman/TS3/pkg/bridge"
	"github.com/YuriiFridman/TS3/pkg/logging"
	"github.com/YuriiFridman/TS3/pkg/version"
)

func main() {
	cfg := bridge.DefaultConfig()

	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "WebSocket bind address")
	flag.StringVar(&cfg.CoreAddr, "core", cfg.CoreAddr, "chat core TCP address")
	flag.StringVar(&cfg.Path, "path", cfg.Path, "WebSocket endpoint path")
	showVersion := flag.Bool("version", false, "print version and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bridge.New(cfg)
	if err := b.Run(ctx); err != nil {
		slog.Error("bridge error", "err", err)
		os.Exit(1)
	}
}
