package handler

import (
	"net/http"
)

// PostRefreshLines handles POST /internal/refresh-lines: replaces the cached
// line catalogue with the upstream's current list. Meant to be hit from a
// scheduler (cron), guarded by the internal shared secret.
func (s *Server) PostRefreshLines(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeInternal(w, r) {
		return
	}

	count, err := s.schedule.RefreshLines(r.Context())
	if err != nil {
		s.logger.Error("refresh line catalogue", "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "line catalogue refresh failed")
		return
	}

	s.logger.Info("line catalogue refreshed", "lines", count)
	writeJSON(w, http.StatusOK, map[string]any{"lines": count})
}
