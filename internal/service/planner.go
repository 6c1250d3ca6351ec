package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/transit"
)

// RouteSuggester is the slice of the transit client the planner needs:
// route alternatives between two coordinates.
type RouteSuggester interface {
	RouteSuggestions(ctx context.Context, origin, dest domain.Coordinates) ([]map[string]any, error)
}

// PlanOption is one trackable boarding option: a parsed route alternative,
// its live snapshot, and the tracking request token a confirmation redeems.
type PlanOption struct {
	Route domain.RouteAlternative
	ETA   domain.LiveETA
	Token string
}

// Planner turns a route query into trackable options. For each alternative
// the upstream suggests, it checks live stop data and keeps only lines with
// a vehicle currently visible, each pre-armed with a tracking request.
type Planner struct {
	routes  RouteSuggester
	stops   StopStatusFetcher
	tracker *Tracker
	logger  *slog.Logger
}

// NewPlanner constructs a Planner.
func NewPlanner(routes RouteSuggester, stops StopStatusFetcher, tracker *Tracker, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{routes: routes, stops: stops, tracker: tracker, logger: logger}
}

// Plan fetches route alternatives between origin and dest and returns the
// trackable ones ordered by countdown, shortest first (options without a
// countdown sort last). An upstream with no alternatives yields an empty
// slice, not an error.
func (p *Planner) Plan(ctx context.Context, origin, dest domain.Coordinates) ([]PlanOption, error) {
	routes, err := p.routes.RouteSuggestions(ctx, origin, dest)
	if err != nil {
		return nil, fmt.Errorf("service.Planner.Plan: %w", err)
	}

	// Alternatives frequently share a boarding stop; fetch each stop once.
	stopCache := map[string]any{}

	options := []PlanOption{}
	for _, raw := range routes {
		alt := transit.ParseRouteAlternative(raw)
		if alt.LineCode == "" || alt.StopID == "" {
			continue
		}

		payload, cached := stopCache[alt.StopID]
		if !cached {
			payload, err = p.stops.StopStatus(ctx, alt.StopID)
			if err != nil {
				p.logger.Warn("stop status fetch failed during planning",
					"stop", alt.StopID, "error", err)
				payload = nil
			}
			stopCache[alt.StopID] = payload
		}
		if payload == nil {
			continue
		}

		node, found := transit.FindLine(payload, alt.LineCode)
		if !found {
			p.logger.Debug("suggested line not in live stop data",
				"line", alt.LineCode, "stop", alt.StopID,
				"available", transit.ListLines(payload))
			continue
		}
		eta := transit.LiveETAFromNode(node)
		if eta.Status == transit.StatusAbsent {
			continue
		}

		token, err := p.tracker.CreateRequest(ctx, domain.TrackingRequest{
			LineCode:     alt.LineCode,
			LineDisplay:  alt.LineDisplay,
			LineName:     alt.LineName,
			StopID:       alt.StopID,
			StopName:     alt.StopName,
			StopCoords:   alt.StopCoords,
			DestStopID:   alt.DestStopID,
			DestStopName: alt.DestStopName,
			DestCoords:   alt.DestCoords,
			Minutes:      eta.Minutes,
			Status:       eta.Status,
		})
		if err != nil {
			return nil, fmt.Errorf("service.Planner.Plan: %w", err)
		}

		options = append(options, PlanOption{Route: alt, ETA: eta, Token: token})
	}

	sort.SliceStable(options, func(i, j int) bool {
		mi, mj := options[i].ETA.Minutes, options[j].ETA.Minutes
		switch {
		case mi == nil:
			return false
		case mj == nil:
			return true
		default:
			return *mi < *mj
		}
	})
	return options, nil
}
