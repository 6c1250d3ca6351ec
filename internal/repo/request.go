package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/denizatli/hattakip/internal/domain"
)

// RequestRepo defines persistence for tracking requests: the short-lived
// token → route snapshot handoff. TTL policy (when a request counts as
// expired) lives in the service layer; the repo only stores and deletes.
type RequestRepo interface {
	// Create inserts a new request under its token.
	// Returns domain.ErrConflict when the token already exists.
	Create(ctx context.Context, req domain.TrackingRequest) error

	// Get retrieves a request by token.
	// Returns domain.ErrNotFound if the token does not exist.
	Get(ctx context.Context, token string) (domain.TrackingRequest, error)

	// Delete removes a request by token. Deleting an absent token is a no-op.
	Delete(ctx context.Context, token string) error

	// DeleteOlderThan removes every request created before the cutoff and
	// returns how many were purged.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// pgRequestRepo is the Postgres implementation of RequestRepo. The route
// snapshot is stored as one JSONB document per token mirroring the handoff
// record shape; token and created_at are real columns so purge and lookup
// never parse JSON.
type pgRequestRepo struct {
	db db
}

// NewRequestRepo constructs a RequestRepo backed by the provided db
// connection. In production pass *pgxpool.Pool; in tests pass a pgx.Tx for
// rollback isolation.
func NewRequestRepo(db db) RequestRepo {
	return &pgRequestRepo{db: db}
}

func (r *pgRequestRepo) Create(ctx context.Context, req domain.TrackingRequest) error {
	const q = `
		INSERT INTO tracking_requests (token, payload, created_at)
		VALUES (@token, @payload, @created_at)`

	args := pgx.NamedArgs{
		"token":      req.Token,
		"payload":    req, // pgx encodes structs to JSONB via encoding/json
		"created_at": req.CreatedAt,
	}

	if _, err := r.db.Exec(ctx, q, args); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("repo.RequestRepo.Create: token %s: %w", req.Token, domain.ErrConflict)
		}
		return fmt.Errorf("repo.RequestRepo.Create: %w", err)
	}
	return nil
}

func (r *pgRequestRepo) Get(ctx context.Context, token string) (domain.TrackingRequest, error) {
	const q = `
		SELECT token, payload, created_at
		FROM tracking_requests
		WHERE token = @token`

	var (
		req       domain.TrackingRequest
		createdAt time.Time
	)
	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"token": token})
	if err := row.Scan(&token, &req, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TrackingRequest{}, fmt.Errorf("repo.RequestRepo.Get: %w", domain.ErrNotFound)
		}
		return domain.TrackingRequest{}, fmt.Errorf("repo.RequestRepo.Get: %w", err)
	}

	// Token and created_at columns are authoritative over the JSON copy.
	req.Token = token
	req.CreatedAt = createdAt
	return req, nil
}

func (r *pgRequestRepo) Delete(ctx context.Context, token string) error {
	const q = `DELETE FROM tracking_requests WHERE token = @token`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"token": token}); err != nil {
		return fmt.Errorf("repo.RequestRepo.Delete: %w", err)
	}
	return nil
}

func (r *pgRequestRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM tracking_requests WHERE created_at < @cutoff`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("repo.RequestRepo.DeleteOlderThan: %w", err)
	}
	return tag.RowsAffected(), nil
}
