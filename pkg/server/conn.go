package server

import (
	"log/slog"
	"net"
	"sync"

	"github.com/YuriiFridman/TS3/pkg/protocol"
)

// sendQueueSize is the per-session outbound buffer. A session whose queue is
// full has messages dropped rather than stalling the broadcast loop.
const sendQueueSize = 64

// clientConn pairs a session with its transport handle and serializes all
// outbound writes through a single writer goroutine, so delivery to one
// session preserves enqueue order and a slow or failing recipient never
// affects delivery to the others.
type clientConn struct {
	sessionID uint32
	conn      net.Conn
	send      chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once
}

func newClientConn(sessionID uint32, conn net.Conn) *clientConn {
	return &clientConn{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan *protocol.Message, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// enqueue queues a message for delivery. Returns false when the session's
// queue is full and the message was dropped.
func (c *clientConn) enqueue(msg *protocol.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writePump drains the send queue onto the transport. A write error closes
// the connection, which makes the session's read loop exit and run cleanup.
func (c *clientConn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := protocol.WriteMessage(c.conn, msg); err != nil {
				slog.Debug("session write failed", "session", c.sessionID, "err", err)
				c.close()
				return
			}
		}
	}
}

// close shuts the transport down. Safe to call from any goroutine, any
// number of times.
func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
