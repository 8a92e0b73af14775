// apps/go-server/internal/history/store.go
//
// SQLite-backed record of each game's lifecycle.
// Responsibilities:
//   - Insert a row when a game starts (mode, puzzle name, start time).
//   - Update the row when a game finishes (final status, mistakes, groups solved).
//   - Read a row back for diagnostics and tests.
//
// Notes:
//   - Rows are observational only. A restarted server does not resume games.
//   - Timestamps are stored as RFC3339 UTC text, like the rest of the schema.

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("history: game not found")

// Record is one row of the games table.
type Record struct {
	ID           string     `json:"id"`
	Mode         string     `json:"mode"`
	Puzzle       string     `json:"puzzle"`
	Status       string     `json:"status"`
	MistakesUsed int        `json:"mistakesUsed"`
	GroupsSolved int        `json:"groupsSolved"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Start inserts the opening row for a game. A repeated id is ignored.
func (s *Store) Start(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO games (id, mode, puzzle, status, started_at)
        VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.Puzzle, r.Status, r.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("history start %s: %w", r.ID, err)
	}
	return nil
}

// Finish stores the final outcome. FinishedAt defaults to now.
func (s *Store) Finish(ctx context.Context, r Record) error {
	fin := time.Now().UTC()
	if r.FinishedAt != nil {
		fin = r.FinishedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE games
        SET status=?, mistakes_used=?, groups_solved=?, finished_at=?
        WHERE id=?`,
		r.Status, r.MistakesUsed, r.GroupsSolved, fin.Format(time.RFC3339), r.ID,
	)
	if err != nil {
		return fmt.Errorf("history finish %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one record.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var (
		r        Record
		started  string
		finished sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT id, mode, puzzle, status, mistakes_used, groups_solved, started_at, finished_at
        FROM games WHERE id=?`, id,
	).Scan(&r.ID, &r.Mode, &r.Puzzle, &r.Status, &r.MistakesUsed, &r.GroupsSolved, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history get %s: %w", id, err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339, started)
	if finished.Valid {
		t, _ := time.Parse(time.RFC3339, finished.String)
		r.FinishedAt = &t
	}
	return &r, nil
}
