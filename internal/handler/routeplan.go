package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/denizatli/hattakip/internal/domain"
)

type coordinatesPayload struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type routePlanRequest struct {
	Origin *coordinatesPayload `json:"origin"`
	Dest   *coordinatesPayload `json:"dest"`
}

// routePlanOption is one trackable boarding option in the API response.
type routePlanOption struct {
	Solution     string `json:"solution,omitempty"`
	LineCode     string `json:"line_code"`
	LineDisplay  string `json:"line_display"`
	LineName     string `json:"line_name,omitempty"`
	StopID       string `json:"stop_id"`
	StopName     string `json:"stop_name,omitempty"`
	DestStopName string `json:"dest_stop_name,omitempty"`
	Minutes      *int   `json:"minutes,omitempty"`
	Status       string `json:"status,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Token        string `json:"token"`
}

type routePlanResponse struct {
	Options []routePlanOption `json:"options"`
}

// PostRoutePlans handles POST /api/route-plans: plan routes between two
// coordinates and return the trackable options, each carrying the token a
// track:start callback redeems.
func (s *Server) PostRoutePlans(w http.ResponseWriter, r *http.Request) {
	var req routePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "malformed request body")
		return
	}
	origin, ok := req.Origin.toCoordinates()
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "origin lat/lng are required")
		return
	}
	dest, ok := req.Dest.toCoordinates()
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "dest lat/lng are required")
		return
	}

	options, err := s.planner.Plan(r.Context(), origin, dest)
	if err != nil {
		if errors.Is(err, domain.ErrUpstream) {
			writeError(w, http.StatusBadGateway, "upstream_unavailable", "transit service unavailable")
			return
		}
		s.logger.Error("plan routes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	resp := routePlanResponse{Options: make([]routePlanOption, len(options))}
	for i, opt := range options {
		resp.Options[i] = routePlanOption{
			Solution:     opt.Route.Solution,
			LineCode:     opt.Route.LineCode,
			LineDisplay:  opt.Route.LineDisplay,
			LineName:     opt.Route.LineName,
			StopID:       opt.Route.StopID,
			StopName:     opt.Route.StopName,
			DestStopName: opt.Route.DestStopName,
			Minutes:      opt.ETA.Minutes,
			Status:       opt.ETA.Status,
			Summary:      opt.ETA.Text,
			Token:        opt.Token,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *coordinatesPayload) toCoordinates() (domain.Coordinates, bool) {
	if c == nil || c.Lat == nil || c.Lng == nil {
		return domain.Coordinates{}, false
	}
	return domain.Coordinates{Lat: *c.Lat, Lng: *c.Lng}, true
}
