package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// dateFromQuery parses an optional date=YYYY-MM-DD parameter, defaulting
// to today (UTC).
func dateFromQuery(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

// handleDeviceEvents returns a device's journaled status transitions for
// one UTC day.
func (s *Server) handleDeviceEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "journal not configured")
		return
	}

	id := chi.URLParam(r, "id")
	day, err := dateFromQuery(r)
	if err != nil {
		writeBadRequest(w, "invalid date, want YYYY-MM-DD")
		return
	}

	events, err := s.journal.EventsForDevice(id, day)
	if err != nil {
		s.logger.Error("journal read failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to read journal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deviceId": id,
		"date":     day.Format("2006-01-02"),
		"events":   events,
		"count":    len(events),
	})
}

// handleHealthSummaries returns the per-tick status summaries for one
// UTC day.
func (s *Server) handleHealthSummaries(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "journal not configured")
		return
	}

	day, err := dateFromQuery(r)
	if err != nil {
		writeBadRequest(w, "invalid date, want YYYY-MM-DD")
		return
	}

	summaries, err := s.journal.SummariesForDay(day)
	if err != nil {
		s.logger.Error("summary read failed", "error", err)
		writeInternalError(w, "failed to read summaries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":      day.Format("2006-01-02"),
		"summaries": summaries,
		"count":     len(summaries),
	})
}
