package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/denizatli/hattakip/internal/domain"
)

// PlaceRepo defines persistence for saved places: named coordinates a chat
// can reuse as route planning endpoints.
type PlaceRepo interface {
	// Create inserts a new place. Returns domain.ErrConflict when the chat
	// already has a place with the same name.
	Create(ctx context.Context, place domain.Place) error

	// Get retrieves one place by id. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (domain.Place, error)

	// ListByChat returns the chat's places ordered by creation time.
	ListByChat(ctx context.Context, chatID int64) ([]domain.Place, error)

	// Delete removes a place by id. Returns domain.ErrNotFound if absent.
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgPlaceRepo struct {
	db db
}

// NewPlaceRepo constructs a PlaceRepo backed by the provided db connection.
func NewPlaceRepo(db db) PlaceRepo {
	return &pgPlaceRepo{db: db}
}

func (r *pgPlaceRepo) Create(ctx context.Context, place domain.Place) error {
	const q = `
		INSERT INTO places (id, chat_id, name, lat, lng, created_at)
		VALUES (@id, @chat_id, @name, @lat, @lng, @created_at)`

	args := pgx.NamedArgs{
		"id":         place.ID,
		"chat_id":    place.ChatID,
		"name":       place.Name,
		"lat":        place.Coords.Lat,
		"lng":        place.Coords.Lng,
		"created_at": place.CreatedAt,
	}

	if _, err := r.db.Exec(ctx, q, args); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("repo.PlaceRepo.Create: name %q: %w", place.Name, domain.ErrConflict)
		}
		return fmt.Errorf("repo.PlaceRepo.Create: %w", err)
	}
	return nil
}

func (r *pgPlaceRepo) Get(ctx context.Context, id uuid.UUID) (domain.Place, error) {
	const q = `
		SELECT id, chat_id, name, lat, lng, created_at
		FROM places
		WHERE id = @id`

	var place domain.Place
	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	err := row.Scan(&place.ID, &place.ChatID, &place.Name, &place.Coords.Lat, &place.Coords.Lng, &place.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Place{}, fmt.Errorf("repo.PlaceRepo.Get: %w", domain.ErrNotFound)
		}
		return domain.Place{}, fmt.Errorf("repo.PlaceRepo.Get: %w", err)
	}
	return place, nil
}

func (r *pgPlaceRepo) ListByChat(ctx context.Context, chatID int64) ([]domain.Place, error) {
	const q = `
		SELECT id, chat_id, name, lat, lng, created_at
		FROM places
		WHERE chat_id = @chat_id
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"chat_id": chatID})
	if err != nil {
		return nil, fmt.Errorf("repo.PlaceRepo.ListByChat: %w", err)
	}
	defer rows.Close()

	places := []domain.Place{}
	for rows.Next() {
		var place domain.Place
		err := rows.Scan(&place.ID, &place.ChatID, &place.Name, &place.Coords.Lat, &place.Coords.Lng, &place.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repo.PlaceRepo.ListByChat: %w", err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.PlaceRepo.ListByChat: %w", err)
	}
	return places, nil
}

func (r *pgPlaceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM places WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.PlaceRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.PlaceRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}
