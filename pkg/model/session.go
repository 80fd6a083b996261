package model

// SessionState tracks where a connection is in its lifecycle.
type SessionState int

const (
	StateUnauthenticated SessionState = iota // connected, no identity yet
	StateAuthenticated                       // identity set, member of exactly one room
	StateDisconnected                        // terminal; cleanup has run
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session represents an active client connection (in-memory only).
// Username is empty until the session reaches StateAuthenticated.
type Session struct {
	ID       uint32
	Username string
	Room     string
	IsAdmin  bool
	State    SessionState
}
