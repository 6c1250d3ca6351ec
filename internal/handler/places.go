package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/denizatli/hattakip/internal/domain"
)

type createPlaceRequest struct {
	ChatID int64    `json:"chat_id"`
	Name   string   `json:"name"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

// PostPlace handles POST /api/places.
func (s *Server) PostPlace(w http.ResponseWriter, r *http.Request) {
	var req createPlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "malformed request body")
		return
	}
	if req.ChatID == 0 || req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "chat_id, lat and lng are required")
		return
	}

	created, err := s.places.Create(r.Context(), domain.Place{
		ChatID: req.ChatID,
		Name:   req.Name,
		Coords: domain.Coordinates{Lat: *req.Lat, Lng: *req.Lng},
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err))
		case errors.Is(err, domain.ErrConflict):
			writeError(w, http.StatusConflict, "conflict", "a place with this name already exists")
		default:
			s.logger.Error("create place", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListPlaces handles GET /api/places?chat_id=N.
func (s *Server) ListPlaces(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "chat_id query parameter is required")
		return
	}

	places, err := s.places.ListByChat(r.Context(), chatID)
	if err != nil {
		s.logger.Error("list places", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": places})
}

// DeletePlace handles DELETE /api/places/{id}?chat_id=N.
func (s *Server) DeletePlace(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "id must be a UUID")
		return
	}
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "chat_id query parameter is required")
		return
	}

	if err := s.places.Delete(r.Context(), chatID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "place not found")
			return
		}
		s.logger.Error("delete place", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
