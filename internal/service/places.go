package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/repo"
)

// PlaceService implements business logic for saved places.
type PlaceService struct {
	places repo.PlaceRepo
	now    func() time.Time
}

// NewPlaceService constructs a PlaceService backed by the given repo.
// A nil now defaults to time.Now.
func NewPlaceService(places repo.PlaceRepo, now func() time.Time) *PlaceService {
	if now == nil {
		now = time.Now
	}
	return &PlaceService{places: places, now: now}
}

// Create validates and persists a new place, assigning its ID and creation
// time. Returns domain.ErrValidation for an empty name or out-of-range
// coordinates; domain.ErrConflict when the chat already has the name.
func (s *PlaceService) Create(ctx context.Context, place domain.Place) (domain.Place, error) {
	place.Name = strings.TrimSpace(place.Name)
	if err := validatePlace(place); err != nil {
		return domain.Place{}, err
	}

	place.ID = uuid.New()
	place.CreatedAt = s.now()
	if err := s.places.Create(ctx, place); err != nil {
		return domain.Place{}, fmt.Errorf("service.PlaceService.Create: %w", err)
	}
	return place, nil
}

// ListByChat returns the chat's places ordered by creation time.
// Always returns a non-nil slice so callers can safely range over it.
func (s *PlaceService) ListByChat(ctx context.Context, chatID int64) ([]domain.Place, error) {
	places, err := s.places.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("service.PlaceService.ListByChat: %w", err)
	}
	if places == nil {
		return []domain.Place{}, nil
	}
	return places, nil
}

// Get returns one place by id, scoped to the chat: a place belonging to
// another chat is reported as domain.ErrNotFound, never leaked.
func (s *PlaceService) Get(ctx context.Context, chatID int64, id uuid.UUID) (domain.Place, error) {
	place, err := s.places.Get(ctx, id)
	if err != nil {
		return domain.Place{}, fmt.Errorf("service.PlaceService.Get: %w", err)
	}
	if place.ChatID != chatID {
		return domain.Place{}, fmt.Errorf("service.PlaceService.Get: %w", domain.ErrNotFound)
	}
	return place, nil
}

// Delete removes a place by id, scoped to the chat.
func (s *PlaceService) Delete(ctx context.Context, chatID int64, id uuid.UUID) error {
	if _, err := s.Get(ctx, chatID, id); err != nil {
		return fmt.Errorf("service.PlaceService.Delete: %w", err)
	}
	if err := s.places.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.PlaceService.Delete: %w", err)
	}
	return nil
}

func validatePlace(place domain.Place) error {
	if place.Name == "" {
		return fmt.Errorf("%w: place name must not be empty", domain.ErrValidation)
	}
	if place.Coords.Lat < -90 || place.Coords.Lat > 90 {
		return fmt.Errorf("%w: latitude out of range", domain.ErrValidation)
	}
	if place.Coords.Lng < -180 || place.Coords.Lng > 180 {
		return fmt.Errorf("%w: longitude out of range", domain.ErrValidation)
	}
	return nil
}
