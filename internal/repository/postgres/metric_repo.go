package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/freeeve/roundscope/internal/model"
)

// MetricRepo handles metric series database operations.
type MetricRepo struct {
	db *sql.DB
}

// NewMetricRepo creates a MetricRepo.
func NewMetricRepo(db *sql.DB) *MetricRepo {
	return &MetricRepo{db: db}
}

// SaveSeries stores every series of a recording in one transaction. A series
// already stored for the same metric and round is replaced.
func (r *MetricRepo) SaveSeries(ctx context.Context, recordingID string, series []model.MetricSeries) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO metric_series (recording_id, metric, round, samples)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (recording_id, metric, round) DO UPDATE SET samples = EXCLUDED.samples`)
	if err != nil {
		return fmt.Errorf("prepare series insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range series {
		samples, err := json.Marshal(s.Samples)
		if err != nil {
			return fmt.Errorf("marshal samples: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, recordingID, s.Metric, s.Round, samples); err != nil {
			return fmt.Errorf("save series %s round %d: %w", s.Metric, s.Round, err)
		}
	}
	return tx.Commit()
}

// ListSeries returns a metric's series for a recording, ordered by round.
func (r *MetricRepo) ListSeries(ctx context.Context, recordingID, metric string) ([]model.MetricSeries, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT recording_id, metric, round, samples, created_at
		 FROM metric_series WHERE recording_id = $1 AND metric = $2
		 ORDER BY round`, recordingID, metric,
	)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var out []model.MetricSeries
	for rows.Next() {
		var s model.MetricSeries
		var samples []byte
		if err := rows.Scan(&s.RecordingID, &s.Metric, &s.Round, &samples, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		if err := json.Unmarshal(samples, &s.Samples); err != nil {
			return nil, fmt.Errorf("unmarshal samples: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Metrics returns the distinct metric names stored for a recording.
func (r *MetricRepo) Metrics(ctx context.Context, recordingID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT metric FROM metric_series WHERE recording_id = $1 ORDER BY metric`, recordingID,
	)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
