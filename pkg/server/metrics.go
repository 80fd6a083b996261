package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime TCP connections accepted
	ActiveConnections atomic.Int64 // current active connections
	FailedAuths       atomic.Int64 // failed login attempts
	SuccessfulAuths   atomic.Int64 // successful login attempts
	TotalDisconnects  atomic.Int64 // total client disconnects (clean + unclean)

	// Chat counters
	ChatMessagesSent atomic.Int64 // total chat messages fanned out
	MessagesDropped  atomic.Int64 // outbound messages dropped on full queues
	RoomsCreated     atomic.Int64 // rooms created by explicit request

	// Voice counters
	VoicePacketsIn      atomic.Int64 // total UDP voice datagrams received
	VoicePacketsOut     atomic.Int64 // total UDP voice datagrams forwarded
	VoicePacketsDropped atomic.Int64 // dropped datagrams (unpaired, muted)
	VoiceBytesIn        atomic.Int64 // total voice bytes received
	VoiceBytesOut       atomic.Int64 // total voice bytes forwarded

	// Moderation counters
	MuteCount atomic.Int64 // users muted
	BanCount  atomic.Int64 // users banned
	KickCount atomic.Int64 // users kicked
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	SuccessfulAuths   int64 `json:"successful_auths"`
	FailedAuths       int64 `json:"failed_auths"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	ChatMessagesSent int64 `json:"chat_messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
	RoomsCreated     int64 `json:"rooms_created"`

	VoicePacketsIn      int64 `json:"voice_packets_in"`
	VoicePacketsOut     int64 `json:"voice_packets_out"`
	VoicePacketsDropped int64 `json:"voice_packets_dropped"`
	VoiceBytesIn        int64 `json:"voice_bytes_in"`
	VoiceBytesOut       int64 `json:"voice_bytes_out"`

	MuteCount int64 `json:"mute_count"`
	BanCount  int64 `json:"ban_count"`
	KickCount int64 `json:"kick_count"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:              uptime.Truncate(time.Second).String(),
		UptimeSeconds:       int64(uptime.Seconds()),
		ActiveConnections:   m.ActiveConnections.Load(),
		TotalConnections:    m.TotalConnections.Load(),
		SuccessfulAuths:     m.SuccessfulAuths.Load(),
		FailedAuths:         m.FailedAuths.Load(),
		TotalDisconnects:    m.TotalDisconnects.Load(),
		ChatMessagesSent:    m.ChatMessagesSent.Load(),
		MessagesDropped:     m.MessagesDropped.Load(),
		RoomsCreated:        m.RoomsCreated.Load(),
		VoicePacketsIn:      m.VoicePacketsIn.Load(),
		VoicePacketsOut:     m.VoicePacketsOut.Load(),
		VoicePacketsDropped: m.VoicePacketsDropped.Load(),
		VoiceBytesIn:        m.VoiceBytesIn.Load(),
		VoiceBytesOut:       m.VoiceBytesOut.Load(),
		MuteCount:           m.MuteCount.Load(),
		BanCount:            m.BanCount.Load(),
		KickCount:           m.KickCount.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"chat_msgs", s.ChatMessagesSent,
		"msgs_dropped", s.MessagesDropped,
		"voice_pkts_in", s.VoicePacketsIn,
		"voice_pkts_out", s.VoicePacketsOut,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
