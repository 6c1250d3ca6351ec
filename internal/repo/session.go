package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/denizatli/hattakip/internal/domain"
)

// SessionRepo defines persistence for active tracking sessions. Sessions are
// stored per chat as a token → session map, so the concurrency cap and the
// oldest-session eviction both operate on a single document read.
type SessionRepo interface {
	// GetChat returns all sessions for a chat keyed by token. A chat with no
	// sessions yields an empty, non-nil map.
	GetChat(ctx context.Context, chatID int64) (map[string]domain.TrackingSession, error)

	// PutChat replaces the chat's session map atomically. An empty map
	// removes the chat's row entirely.
	PutChat(ctx context.Context, chatID int64, sessions map[string]domain.TrackingSession) error

	// DeleteSession removes one session from the chat's map. Removing an
	// absent token or chat is a no-op.
	DeleteSession(ctx context.Context, chatID int64, token string) error
}

// pgSessionRepo stores each chat's sessions as one JSONB document in
// tracking_sessions. Writers in this codebase serialize per chat at the
// service level, so read-modify-write on the document is safe.
type pgSessionRepo struct {
	db db
}

// NewSessionRepo constructs a SessionRepo backed by the provided db
// connection.
func NewSessionRepo(db db) SessionRepo {
	return &pgSessionRepo{db: db}
}

func (r *pgSessionRepo) GetChat(ctx context.Context, chatID int64) (map[string]domain.TrackingSession, error) {
	const q = `SELECT sessions FROM tracking_sessions WHERE chat_id = @chat_id`

	sessions := map[string]domain.TrackingSession{}
	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"chat_id": chatID})
	if err := row.Scan(&sessions); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return map[string]domain.TrackingSession{}, nil
		}
		return nil, fmt.Errorf("repo.SessionRepo.GetChat: %w", err)
	}
	if sessions == nil {
		sessions = map[string]domain.TrackingSession{}
	}
	return sessions, nil
}

func (r *pgSessionRepo) PutChat(ctx context.Context, chatID int64, sessions map[string]domain.TrackingSession) error {
	if len(sessions) == 0 {
		const del = `DELETE FROM tracking_sessions WHERE chat_id = @chat_id`
		if _, err := r.db.Exec(ctx, del, pgx.NamedArgs{"chat_id": chatID}); err != nil {
			return fmt.Errorf("repo.SessionRepo.PutChat: %w", err)
		}
		return nil
	}

	const q = `
		INSERT INTO tracking_sessions (chat_id, sessions, updated_at)
		VALUES (@chat_id, @sessions, now())
		ON CONFLICT (chat_id)
		DO UPDATE SET sessions = EXCLUDED.sessions, updated_at = now()`

	args := pgx.NamedArgs{
		"chat_id":  chatID,
		"sessions": sessions,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.SessionRepo.PutChat: %w", err)
	}
	return nil
}

func (r *pgSessionRepo) DeleteSession(ctx context.Context, chatID int64, token string) error {
	sessions, err := r.GetChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("repo.SessionRepo.DeleteSession: %w", err)
	}
	if _, ok := sessions[token]; !ok {
		return nil
	}
	delete(sessions, token)
	if err := r.PutChat(ctx, chatID, sessions); err != nil {
		return fmt.Errorf("repo.SessionRepo.DeleteSession: %w", err)
	}
	return nil
}
