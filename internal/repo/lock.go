package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/denizatli/hattakip/internal/domain"
)

// LockRepo defines persistence for worker spawn locks. A lock records when a
// worker for a token was last launched; freshness interpretation belongs to
// the launcher, not the repo.
type LockRepo interface {
	// Get returns the lock for the token, or domain.ErrNotFound.
	Get(ctx context.Context, token string) (domain.WorkerLock, error)

	// Upsert writes the lock timestamp for the token, creating or
	// overwriting as needed.
	Upsert(ctx context.Context, token string, lockedAt time.Time) error

	// Delete releases the lock. Releasing an absent lock is a no-op.
	Delete(ctx context.Context, token string) error
}

type pgLockRepo struct {
	db db
}

// NewLockRepo constructs a LockRepo backed by the provided db connection.
func NewLockRepo(db db) LockRepo {
	return &pgLockRepo{db: db}
}

func (r *pgLockRepo) Get(ctx context.Context, token string) (domain.WorkerLock, error) {
	const q = `SELECT token, locked_at FROM worker_locks WHERE token = @token`

	var lock domain.WorkerLock
	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"token": token})
	if err := row.Scan(&lock.Token, &lock.LockedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WorkerLock{}, fmt.Errorf("repo.LockRepo.Get: %w", domain.ErrNotFound)
		}
		return domain.WorkerLock{}, fmt.Errorf("repo.LockRepo.Get: %w", err)
	}
	return lock, nil
}

func (r *pgLockRepo) Upsert(ctx context.Context, token string, lockedAt time.Time) error {
	const q = `
		INSERT INTO worker_locks (token, locked_at)
		VALUES (@token, @locked_at)
		ON CONFLICT (token)
		DO UPDATE SET locked_at = EXCLUDED.locked_at`

	args := pgx.NamedArgs{
		"token":     token,
		"locked_at": lockedAt,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.LockRepo.Upsert: %w", err)
	}
	return nil
}

func (r *pgLockRepo) Delete(ctx context.Context, token string) error {
	const q = `DELETE FROM worker_locks WHERE token = @token`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"token": token}); err != nil {
		return fmt.Errorf("repo.LockRepo.Delete: %w", err)
	}
	return nil
}
