package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rabbitlink/internal/connmgr"
)

// Lifecycle commands accepted by POST /api/v1/connection/{command}.
const (
	CommandConnect    = "connect"
	CommandDisconnect = "disconnect"
	CommandReconnect  = "reconnect"
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Broker        string        `json:"broker"`
	State         connmgr.State `json:"state"`
	Attempt       int           `json:"attempt"`
	Reconnects    int           `json:"reconnects"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	LastError     string        `json:"last_error,omitempty"`
	Subscribers   int           `json:"subscribers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stats := s.manager.Stats()
	writeJSON(w, http.StatusOK, StatusResponse{
		Broker:        s.broker,
		State:         stats.State,
		Attempt:       stats.Attempt,
		Reconnects:    stats.Reconnects,
		UptimeSeconds: stats.Uptime.Seconds(),
		LastError:     stats.LastError,
		Subscribers:   s.hub.ClientCount(),
	})
}

// handleConnectionCommand starts a lifecycle command in the background and
// answers 202. Connect blocks for a whole retry cycle, so progress is
// reported through the event stream rather than the response. Only one
// command runs at a time; others are rejected with 409.
func (s *Server) handleConnectionCommand(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")

	var fn func(ctx context.Context) error
	switch command {
	case CommandConnect:
		fn = s.manager.Connect
	case CommandDisconnect:
		fn = s.manager.Disconnect
	case CommandReconnect:
		fn = s.reconnect
	default:
		writeError(w, http.StatusNotFound, "unknown connection command: "+command)
		return
	}

	if !s.busy.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "another connection command is running")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		if err := fn(s.ctx); err != nil {
			s.logger.Warn("connection command failed", "command", command, "error", err)
		}
	}()

	s.logger.Info("connection command accepted",
		"command", command,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"command": command,
		"status":  "accepted",
	})
}

func (s *Server) reconnect(ctx context.Context) error {
	if err := s.manager.Disconnect(ctx); err != nil {
		return err
	}
	return s.manager.Connect(ctx)
}
