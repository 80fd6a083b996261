package server

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Moderation holds the server-wide muted and banned username sets. Both are
// keyed on username, independent of live sessions: a ban persists across
// reconnect attempts and is checked before authentication completes.
// Neither set is persisted; both last for the process lifetime.
type Moderation struct {
	muted  mapset.Set[string]
	banned mapset.Set[string]
}

// NewModeration creates empty moderation sets.
func NewModeration() *Moderation {
	return &Moderation{
		muted:  mapset.NewSet[string](),
		banned: mapset.NewSet[string](),
	}
}

// Mute blocks a username from sending chat messages.
func (m *Moderation) Mute(username string) {
	m.muted.Add(username)
}

// Unmute lifts a mute. No-op when the username is not muted.
func (m *Moderation) Unmute(username string) {
	m.muted.Remove(username)
}

// IsMuted reports whether a username is muted.
func (m *Moderation) IsMuted(username string) bool {
	return m.muted.Contains(username)
}

// Ban blocks a username from authenticating.
func (m *Moderation) Ban(username string) {
	m.banned.Add(username)
}

// Unban lifts a ban. No-op when the username is not banned.
func (m *Moderation) Unban(username string) {
	m.banned.Remove(username)
}

// IsBanned reports whether a username is banned.
func (m *Moderation) IsBanned(username string) bool {
	return m.banned.Contains(username)
}
