// Package bridge relays traffic between browser WebSocket clients and the
// chat core's TCP plane. Each WebSocket connection is paired 1:1 with one
// TCP connection for its lifetime; frames and newline-delimited messages are
// translated byte-for-byte with message boundaries preserved, and no message
// interpretation happens here.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/YuriiFridman/TS3/pkg/protocol"
)

const (
	writeTimeout = 10 * time.Second
	dialTimeout  = 5 * time.Second
)

// Config holds bridge configuration.
type Config struct {
	ListenAddr string // HTTP/WebSocket bind address (e.g. ":12347")
	CoreAddr   string // chat core TCP address (e.g. "localhost:12345")
	Path       string // WebSocket endpoint path (default "/ws")
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":12347",
		CoreAddr:   "localhost:12345",
		Path:       "/ws",
	}
}

// pairing links one WebSocket client with its backend TCP connection.
// Either side closing tears the whole pairing down exactly once.
type pairing struct {
	ws  *websocket.Conn
	tcp net.Conn

	wsWriteMu sync.Mutex
	closeOnce sync.Once
}

func (p *pairing) close() {
	p.closeOnce.Do(func() {
		_ = p.ws.Close()
		_ = p.tcp.Close()
	})
}

// writeFrame sends one text frame, serializing writers.
func (p *pairing) writeFrame(data []byte) error {
	p.wsWriteMu.Lock()
	defer p.wsWriteMu.Unlock()
	if err := p.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return p.ws.WriteMessage(websocket.TextMessage, data)
}

// Bridge is the WebSocket-to-TCP protocol bridge.
type Bridge struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu       sync.Mutex
	pairings map[*pairing]struct{}
}

// New creates a Bridge.
func New(cfg Config) *Bridge {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	return &Bridge{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bridge relays to a server that authenticates every
			// client itself; browser origin is not a trust boundary here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pairings: make(map[*pairing]struct{}),
	}
}

// PairingCount returns the number of active pairings.
func (b *Bridge) PairingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pairings)
}

// Run serves the WebSocket endpoint until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(b.cfg.Path, b.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              b.cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
		b.closeAll()
	}()

	slog.Info("websocket bridge listening", "addr", b.cfg.ListenAddr, "path", b.cfg.Path, "core", b.cfg.CoreAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("bridge: listen: %w", err)
	}
	return nil
}

func (b *Bridge) closeAll() {
	b.mu.Lock()
	active := make([]*pairing, 0, len(b.pairings))
	for p := range b.pairings {
		active = append(active, p)
	}
	b.mu.Unlock()
	for _, p := range active {
		p.close()
	}
}

func (b *Bridge) addPairing(p *pairing) {
	b.mu.Lock()
	b.pairings[p] = struct{}{}
	b.mu.Unlock()
}

func (b *Bridge) removePairing(p *pairing) {
	b.mu.Lock()
	delete(b.pairings, p)
	b.mu.Unlock()
}

// handleWS upgrades one client and runs the two copy loops for the lifetime
// of the pairing.
func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	tcp, err := net.DialTimeout("tcp", b.cfg.CoreAddr, dialTimeout)
	if err != nil {
		slog.Error("core dial failed", "core", b.cfg.CoreAddr, "err", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "core unavailable"),
			time.Now().Add(writeTimeout))
		_ = ws.Close()
		return
	}

	p := &pairing{ws: ws, tcp: tcp}
	b.addPairing(p)
	slog.Info("client paired", "remote", r.RemoteAddr, "core", b.cfg.CoreAddr)

	defer func() {
		p.close()
		b.removePairing(p)
		slog.Info("client unpaired", "remote", r.RemoteAddr)
	}()

	// Core-side reads are blocking, so they run in their own goroutine and
	// never stall frame delivery to other clients.
	go p.tcpToWS()

	p.wsToTCP()
}

// wsToTCP forwards each received frame as exactly one newline-terminated
// write on the TCP side.
func (p *pairing) wsToTCP() {
	defer p.close()

	p.ws.SetReadLimit(protocol.MaxMessageSize)
	for {
		_, data, err := p.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) && !isClosedErr(err) {
				slog.Debug("websocket read error", "err", err)
			}
			return
		}
		if _, err := p.tcp.Write(append(data, '\n')); err != nil {
			slog.Debug("core write error", "err", err)
			return
		}
	}
}

// tcpToWS forwards each newline-delimited message from the core as exactly
// one text frame.
func (p *pairing) tcpToWS() {
	defer p.close()

	scanner := bufio.NewScanner(p.tcp)
	scanner.Buffer(make([]byte, 0, 4096), protocol.MaxMessageSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := p.writeFrame(line); err != nil {
			slog.Debug("websocket write error", "err", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !isClosedErr(err) {
		slog.Debug("core read error", "err", err)
	}
}

func isClosedErr(err error) bool {
	return err != nil && errors.Is(err, net.ErrClosed)
}
