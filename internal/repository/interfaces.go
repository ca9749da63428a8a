package repository

import (
	"context"
	"errors"

	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/pkg/spatial"
)

// RecordingRepository defines analyzed recording operations.
type RecordingRepository interface {
	Create(ctx context.Context, matchID, mapName, source string, rounds int) (*model.Recording, error)
	FindByID(ctx context.Context, id string) (*model.Recording, error)
	ListByMap(ctx context.Context, mapName string) ([]model.Recording, error)
	Delete(ctx context.Context, id string) error
}

// MetricRepository defines per-round metric series operations.
type MetricRepository interface {
	SaveSeries(ctx context.Context, recordingID string, series []model.MetricSeries) error
	ListSeries(ctx context.Context, recordingID, metric string) ([]model.MetricSeries, error)
	Metrics(ctx context.Context, recordingID string) ([]string, error)
}

// ErrSnapshotsChanged is returned by TrackerStore.Replace when a snapshot it
// was asked to replace has already been removed.
var ErrSnapshotsChanged = errors.New("tracker snapshots changed")

// TrackerStore defines routine tracker snapshot operations (Redis). Each
// snapshot holds a tracker and, optionally, the position heatmap of the same
// recordings.
type TrackerStore interface {
	Save(ctx context.Context, t *spatial.RoutineTracker, heat *spatial.PositionCounter) (*model.TrackerSnapshot, error)
	Get(ctx context.Context, id string) (*spatial.RoutineTracker, *spatial.PositionCounter, error)
	List(ctx context.Context, cfg spatial.Config) ([]model.TrackerSnapshot, error)
	Replace(ctx context.Context, ids []string, t *spatial.RoutineTracker, heat *spatial.PositionCounter) (*model.TrackerSnapshot, error)
	Configs(ctx context.Context) ([]spatial.Config, error)
	Delete(ctx context.Context, id string) error
}
