package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/denizatli/hattakip/internal/domain"
)

// UserRepo defines persistence for the authorized-user access list.
type UserRepo interface {
	// Upsert inserts or updates a user by Telegram ID and reports whether a
	// new row was created. created_at is kept on update.
	Upsert(ctx context.Context, user domain.AuthorizedUser) (bool, error)

	// Get retrieves one user. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, telegramID int64) (domain.AuthorizedUser, error)

	// List returns every user ordered by creation time.
	List(ctx context.Context) ([]domain.AuthorizedUser, error)

	// Delete removes a user. Returns domain.ErrNotFound if absent.
	Delete(ctx context.Context, telegramID int64) error
}

type pgUserRepo struct {
	db db
}

// NewUserRepo constructs a UserRepo backed by the provided db connection.
func NewUserRepo(db db) UserRepo {
	return &pgUserRepo{db: db}
}

func (r *pgUserRepo) Upsert(ctx context.Context, user domain.AuthorizedUser) (bool, error) {
	const q = `
		INSERT INTO authorized_users (telegram_id, name, created_at, updated_at)
		VALUES (@telegram_id, @name, @now, @now)
		ON CONFLICT (telegram_id) DO UPDATE
		SET name = EXCLUDED.name,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at = updated_at`

	now := user.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	args := pgx.NamedArgs{
		"telegram_id": user.TelegramID,
		"name":        user.Name,
		"now":         now,
	}

	var created bool
	if err := r.db.QueryRow(ctx, q, args).Scan(&created); err != nil {
		return false, fmt.Errorf("repo.UserRepo.Upsert: %w", err)
	}
	return created, nil
}

func (r *pgUserRepo) Get(ctx context.Context, telegramID int64) (domain.AuthorizedUser, error) {
	const q = `
		SELECT telegram_id, name, created_at, updated_at
		FROM authorized_users
		WHERE telegram_id = @telegram_id`

	var user domain.AuthorizedUser
	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"telegram_id": telegramID})
	err := row.Scan(&user.TelegramID, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AuthorizedUser{}, fmt.Errorf("repo.UserRepo.Get: %w", domain.ErrNotFound)
		}
		return domain.AuthorizedUser{}, fmt.Errorf("repo.UserRepo.Get: %w", err)
	}
	return user, nil
}

func (r *pgUserRepo) List(ctx context.Context) ([]domain.AuthorizedUser, error) {
	const q = `
		SELECT telegram_id, name, created_at, updated_at
		FROM authorized_users
		ORDER BY created_at, telegram_id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.UserRepo.List: %w", err)
	}
	defer rows.Close()

	users := []domain.AuthorizedUser{}
	for rows.Next() {
		var user domain.AuthorizedUser
		if err := rows.Scan(&user.TelegramID, &user.Name, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repo.UserRepo.List: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.UserRepo.List: %w", err)
	}
	return users, nil
}

func (r *pgUserRepo) Delete(ctx context.Context, telegramID int64) error {
	const q = `DELETE FROM authorized_users WHERE telegram_id = @telegram_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"telegram_id": telegramID})
	if err != nil {
		return fmt.Errorf("repo.UserRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.UserRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}
