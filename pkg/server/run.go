package server

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YuriiFridman/TS3/pkg/crypto"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	defer func() { _ = s.store.Close() }()

	// Provision the seed administrator record on first startup
	if err := s.ensureAdminUser(); err != nil {
		return err
	}

	// Create rooms from YAML config if provided
	if s.cfg.RoomsFile != "" {
		if err := LoadRoomsFromYAML(s.cfg.RoomsFile, s.rooms); err != nil {
			slog.Error("failed to load rooms config", "err", err)
		}
	}

	// Start listeners
	if err := s.StartControl(); err != nil {
		return err
	}
	if err := s.StartVoice(); err != nil {
		return err
	}

	slog.Info("chat server running",
		"text", s.cfg.TextAddr,
		"voice", s.cfg.VoiceAddr,
	)

	// Prometheus metrics HTTP endpoint
	s.StartMetricsHTTP()

	// Periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown stops the server: listeners first, then every session (each runs
// its normal disconnect/broadcast cleanup). The credential store is closed
// by Run after Shutdown returns. Already-closed resources are tolerated.
func (s *Server) Shutdown() {
	s.cancel()
	if s.textLn != nil {
		_ = s.textLn.Close()
	}
	if s.voiceConn != nil {
		_ = s.voiceConn.Close()
	}
	s.control.closeAll()
	s.wg.Wait()
	slog.Info("server stopped")
}

// ensureAdminUser creates the configured admin account only when the
// username is not yet registered.
func (s *Server) ensureAdminUser() error {
	existing, err := s.store.GetUserByUsername(s.cfg.AdminUser)
	if err != nil {
		return fmt.Errorf("server: check admin user: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := crypto.HashPassword(s.cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("server: hash admin password: %w", err)
	}
	if _, err := s.store.CreateUser(s.cfg.AdminUser, hash, true); err != nil {
		return fmt.Errorf("server: create admin user: %w", err)
	}

	slog.Info("created administrator account", "user", s.cfg.AdminUser)
	if s.cfg.AdminPassword == DefaultConfig().AdminPassword {
		slog.Warn("administrator uses the default password, change it")
	}
	return nil
}
