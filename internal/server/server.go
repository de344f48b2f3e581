package server

import (
	"encoding/json"
	"net/http"
	"time"

	"ctf-notify-bot/internal/config"
	"ctf-notify-bot/internal/scheduler"
	"ctf-notify-bot/internal/tracker"
)

// New builds the status HTTP server: a liveness probe and a small JSON
// snapshot of what the bot is currently watching.
func New(cfg config.Config, sched *scheduler.Scheduler, tr *tracker.Manager) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"active_sessions":   tr.ActiveCount(),
			"pending_reminders": sched.PendingCount(),
			"ts":                time.Now().UTC().Format(time.RFC3339),
		})
	})

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}
