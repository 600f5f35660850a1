package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JakeFAU/harvester/internal/progress/sinks"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// listRuns handles GET /v1/status?state=&limit=. Runs are newest first.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	limit, err := parseLimit(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var state sinks.RunState
	if raw := strings.TrimSpace(r.URL.Query().Get("state")); raw != "" {
		state, err = parseState(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	runs := make([]sinks.RunStatus, 0, limit)
	for _, run := range s.status.Runs() {
		if state != "" && run.State != state {
			continue
		}
		runs = append(runs, run)
		if len(runs) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// getRun handles GET /v1/status/{run_id}.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run_id")
		return
	}
	for _, run := range s.status.Runs() {
		if run.RunID == id.String() {
			writeJSON(w, http.StatusOK, run)
			return
		}
	}
	writeError(w, http.StatusNotFound, "run not found")
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	return min(val, maxLimit), nil
}

func parseState(input string) (sinks.RunState, error) {
	switch strings.ToLower(input) {
	case "running":
		return sinks.RunRunning, nil
	case "done", "success":
		return sinks.RunDone, nil
	case "failed", "error":
		return sinks.RunFailed, nil
	default:
		return "", errors.New("invalid state")
	}
}
