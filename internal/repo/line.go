package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/denizatli/hattakip/internal/domain"
)

// LineRepo defines persistence for the municipal line catalogue. The
// catalogue is a cache of the upstream's full line list and is only ever
// replaced wholesale by a refresh.
type LineRepo interface {
	// ReplaceAll swaps the whole catalogue for the given lines.
	ReplaceAll(ctx context.Context, lines []domain.BusLine) error

	// List returns the catalogue ordered by line number and direction.
	List(ctx context.Context) ([]domain.BusLine, error)

	// FindByPost retrieves one line by its composite key.
	// Returns domain.ErrNotFound if absent.
	FindByPost(ctx context.Context, post string) (domain.BusLine, error)
}

type pgLineRepo struct {
	db db
}

// NewLineRepo constructs a LineRepo backed by the provided db connection.
func NewLineRepo(db db) LineRepo {
	return &pgLineRepo{db: db}
}

func (r *pgLineRepo) ReplaceAll(ctx context.Context, lines []domain.BusLine) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM bus_lines`); err != nil {
		return fmt.Errorf("repo.LineRepo.ReplaceAll: %w", err)
	}

	const q = `
		INSERT INTO bus_lines (post, line_no, direction, name, region)
		VALUES (@post, @line_no, @direction, @name, @region)
		ON CONFLICT (post) DO UPDATE
		SET line_no = EXCLUDED.line_no,
		    direction = EXCLUDED.direction,
		    name = EXCLUDED.name,
		    region = EXCLUDED.region`

	for _, line := range lines {
		args := pgx.NamedArgs{
			"post":      line.Post,
			"line_no":   line.LineNo,
			"direction": line.Direction,
			"name":      line.Name,
			"region":    line.Region,
		}
		if _, err := r.db.Exec(ctx, q, args); err != nil {
			return fmt.Errorf("repo.LineRepo.ReplaceAll: post %q: %w", line.Post, err)
		}
	}
	return nil
}

func (r *pgLineRepo) List(ctx context.Context) ([]domain.BusLine, error) {
	const q = `
		SELECT post, line_no, direction, name, region
		FROM bus_lines
		ORDER BY line_no, direction`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.LineRepo.List: %w", err)
	}
	defer rows.Close()

	lines := []domain.BusLine{}
	for rows.Next() {
		var line domain.BusLine
		if err := rows.Scan(&line.Post, &line.LineNo, &line.Direction, &line.Name, &line.Region); err != nil {
			return nil, fmt.Errorf("repo.LineRepo.List: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.LineRepo.List: %w", err)
	}
	return lines, nil
}

func (r *pgLineRepo) FindByPost(ctx context.Context, post string) (domain.BusLine, error) {
	const q = `
		SELECT post, line_no, direction, name, region
		FROM bus_lines
		WHERE post = @post`

	var line domain.BusLine
	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"post": post})
	err := row.Scan(&line.Post, &line.LineNo, &line.Direction, &line.Name, &line.Region)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BusLine{}, fmt.Errorf("repo.LineRepo.FindByPost: %w", domain.ErrNotFound)
		}
		return domain.BusLine{}, fmt.Errorf("repo.LineRepo.FindByPost: %w", err)
	}
	return line, nil
}
