package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/roundscope/internal/model"
)

// RecordingRepo handles recording database operations.
type RecordingRepo struct {
	db *sql.DB
}

// NewRecordingRepo creates a RecordingRepo.
func NewRecordingRepo(db *sql.DB) *RecordingRepo {
	return &RecordingRepo{db: db}
}

// Create inserts a recording row.
func (r *RecordingRepo) Create(ctx context.Context, matchID, mapName, source string, rounds int) (*model.Recording, error) {
	var rec model.Recording
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO recordings (match_id, map_name, source, rounds)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, match_id, map_name, source, rounds, created_at`,
		matchID, mapName, source, rounds,
	).Scan(&rec.ID, &rec.MatchID, &rec.MapName, &rec.Source, &rec.Rounds, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	return &rec, nil
}

// FindByID returns a recording, or nil if it does not exist.
func (r *RecordingRepo) FindByID(ctx context.Context, id string) (*model.Recording, error) {
	var rec model.Recording
	err := r.db.QueryRowContext(ctx,
		`SELECT id, match_id, map_name, source, rounds, created_at FROM recordings WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.MatchID, &rec.MapName, &rec.Source, &rec.Rounds, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recording: %w", err)
	}
	return &rec, nil
}

// ListByMap returns the recordings of a map, oldest first.
func (r *RecordingRepo) ListByMap(ctx context.Context, mapName string) ([]model.Recording, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, match_id, map_name, source, rounds, created_at
		 FROM recordings WHERE map_name = $1 ORDER BY created_at, id`, mapName,
	)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var recs []model.Recording
	for rows.Next() {
		var rec model.Recording
		if err := rows.Scan(&rec.ID, &rec.MatchID, &rec.MapName, &rec.Source, &rec.Rounds, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes a recording and, by cascade, its metric series.
func (r *RecordingRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return nil
}
