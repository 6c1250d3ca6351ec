package handler

import (
	"context"
	"net/http"
	"strconv"
)

// GetTrackWorker handles GET /internal/track-worker. The launcher fires this
// endpoint to run one session's polling loop; the loop executes while this
// request is being handled. The response is committed immediately so the
// caller's tight trigger budget is satisfied, and the loop runs on a context
// detached from the request: the trigger hangs up on purpose, which must not
// kill the loop.
func (s *Server) GetTrackWorker(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeInternal(w, r) {
		return
	}

	token := r.URL.Query().Get("token")
	rawChatID := r.URL.Query().Get("chat_id")
	if token == "" || rawChatID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "chat_id and token are required")
		return
	}
	chatID, err := strconv.ParseInt(rawChatID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "chat_id must be an integer")
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	s.logger.Info("worker loop starting", "chat_id", chatID, "token", token)
	if err := s.tracker.RunLoop(context.WithoutCancel(r.Context()), chatID, token); err != nil {
		s.logger.Error("worker loop", "chat_id", chatID, "token", token, "error", err)
	}
}
