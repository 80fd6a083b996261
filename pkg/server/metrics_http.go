package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("ts3_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("ts3_connections_active", "Current active chat connections.", "gauge",
		m.ActiveConnections.Load())
	write("ts3_connections_total", "Lifetime TCP chat connections accepted.", "counter",
		m.TotalConnections.Load())
	write("ts3_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())

	write("ts3_auth_success_total", "Successful login attempts.", "counter",
		m.SuccessfulAuths.Load())
	write("ts3_auth_failed_total", "Failed login attempts.", "counter",
		m.FailedAuths.Load())

	write("ts3_chat_messages_total", "Total chat messages fanned out.", "counter",
		m.ChatMessagesSent.Load())
	write("ts3_messages_dropped_total", "Outbound messages dropped on full queues.", "counter",
		m.MessagesDropped.Load())
	write("ts3_rooms_created_total", "Rooms created by explicit request.", "counter",
		m.RoomsCreated.Load())

	write("ts3_voice_packets_in_total", "Total UDP voice datagrams received.", "counter",
		m.VoicePacketsIn.Load())
	write("ts3_voice_packets_out_total", "Total UDP voice datagrams forwarded.", "counter",
		m.VoicePacketsOut.Load())
	write("ts3_voice_packets_dropped_total", "Dropped voice datagrams.", "counter",
		m.VoicePacketsDropped.Load())
	write("ts3_voice_bytes_in_total", "Total voice bytes received.", "counter",
		m.VoiceBytesIn.Load())
	write("ts3_voice_bytes_out_total", "Total voice bytes forwarded.", "counter",
		m.VoiceBytesOut.Load())

	write("ts3_mutes_total", "Users muted.", "counter",
		m.MuteCount.Load())
	write("ts3_bans_total", "Users banned.", "counter",
		m.BanCount.Load())
	write("ts3_kicks_total", "Users kicked.", "counter",
		m.KickCount.Load())
}
