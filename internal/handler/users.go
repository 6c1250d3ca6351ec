package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/denizatli/hattakip/internal/domain"
)

type upsertUserRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
}

// PostUser handles POST /api/users: adds a chat to the access list or
// renames an existing entry. 201 on create, 200 on rename.
func (s *Server) PostUser(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "malformed request body")
		return
	}

	user, created, err := s.users.Upsert(r.Context(), req.TelegramID, req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err))
			return
		}
		s.logger.Error("upsert user", "telegram_id", req.TelegramID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, user)
}

// ListUsers handles GET /api/users.
func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": users})
}

// DeleteUser handles DELETE /api/users/{telegramID}.
func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	telegramID, err := strconv.ParseInt(chi.URLParam(r, "telegramID"), 10, 64)
	if err != nil || telegramID <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "telegramID must be a positive integer")
		return
	}

	if err := s.users.Delete(r.Context(), telegramID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		s.logger.Error("delete user", "telegram_id", telegramID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
