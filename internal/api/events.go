package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/rabbitlink/internal/connmgr"
	"github.com/nerrad567/rabbitlink/internal/journal"
)

// handleListEvents returns journalled lifecycle events, newest first.
//
// Query parameters: kind, since, until (RFC 3339), limit, offset.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal is disabled")
		return
	}

	filter, msg := parseEventFilter(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list journal entries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseEventFilter builds a journal filter from query parameters.
// A non-empty message describes the first invalid parameter.
func parseEventFilter(r *http.Request) (journal.Filter, string) {
	q := r.URL.Query()
	filter := journal.Filter{
		Kind:   connmgr.EventKind(q.Get("kind")),
		Broker: q.Get("broker"),
	}

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{
		{"since", &filter.Since},
		{"until", &filter.Until},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, p.name + " must be an RFC 3339 timestamp"
		}
		*p.dst = t
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, p.name + " must be a non-negative integer"
		}
		*p.dst = n
	}

	return filter, ""
}
