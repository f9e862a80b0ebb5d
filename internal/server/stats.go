package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/docqa/docqa-go/internal/logging"
)

// maxRecentRecords caps the ?recent=N parameter on GET /api/stats.
const maxRecentRecords = 100

// handleStats handles GET /api/stats. It returns aggregate answer statistics
// and, when ?recent=N is given, the N most recently answered questions.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.answerLog == nil {
		writeError(w, http.StatusServiceUnavailable, "answer log not configured")
		return
	}

	stats, err := s.answerLog.Stats(r.Context())
	if err != nil {
		log.Error("stats query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to read answer statistics")
		return
	}
	resp := statsResponse{Stats: stats}

	if raw := r.URL.Query().Get("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "recent must be a positive integer")
			return
		}
		n = min(n, maxRecentRecords)
		recent, err := s.answerLog.Recent(r.Context(), n)
		if err != nil {
			log.Error("recent query failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to read recent answers")
			return
		}
		resp.Recent = recent
	}

	writeJSON(w, http.StatusOK, resp)
}
