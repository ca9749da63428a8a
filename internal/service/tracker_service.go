package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/freeeve/roundscope/internal/aggregate"
	"github.com/freeeve/roundscope/internal/logger"
	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/internal/repository"
	"github.com/freeeve/roundscope/pkg/navmesh"
	"github.com/freeeve/roundscope/pkg/spatial"
	"github.com/freeeve/roundscope/pkg/tile"
)

var ErrNoRecordings = errors.New("no recordings aggregated")

// AggregateRequest describes a directory aggregation.
type AggregateRequest struct {
	Dir           string  `json:"dir"`
	MapName       string  `json:"map"`
	TileLength    float64 `json:"tile_length"`
	RoutineLength int     `json:"routine_length"`
	Limit         int     `json:"limit"`
}

// AggregateResult summarizes a stored aggregation.
type AggregateResult struct {
	Snapshot   *model.TrackerSnapshot `json:"snapshot"`
	Aggregated int                    `json:"aggregated"`
	Skipped    int                    `json:"skipped"`
	Failed     int                    `json:"failed"`
}

// OriginRoutines lists the most common routines starting in one tile.
type OriginRoutines struct {
	Origin   tile.Coord             `json:"origin"`
	Routines []spatial.RoutineCount `json:"routines"`
}

// TrackerView is the combined tracker and heatmap of a config.
type TrackerView struct {
	Config     spatial.Config   `json:"config"`
	Snapshots  int              `json:"snapshots"`
	Recordings int              `json:"recordings"`
	Routines   uint64           `json:"routines"`
	Origins    []OriginRoutines `json:"origins"`

	// Positions counts every player position behind the heatmap; Heatmap
	// lists the most visited tiles, most visited first.
	Positions uint64              `json:"positions"`
	Heatmap   []spatial.TileCount `json:"heatmap"`
}

// TrackerService aggregates recordings into routine trackers and stores them.
type TrackerService struct {
	store   repository.TrackerStore
	meshes  *navmesh.Registry
	workers int
}

// NewTrackerService creates a TrackerService.
func NewTrackerService(store repository.TrackerStore, meshes *navmesh.Registry, workers int) *TrackerService {
	return &TrackerService{store: store, meshes: meshes, workers: max(workers, 1)}
}

// Aggregate builds a tracker from a directory of recordings and stores it.
// The radar transform of the map's mesh is applied when the map is known.
func (s *TrackerService) Aggregate(ctx context.Context, req AggregateRequest) (*AggregateResult, error) {
	opts := aggregate.Options{
		MapName:       req.MapName,
		TileLength:    req.TileLength,
		RoutineLength: req.RoutineLength,
		Workers:       s.workers,
		Limit:         req.Limit,
	}
	if mesh, err := s.meshes.Lookup(req.MapName); err == nil {
		opts.Radar = mesh.Radar()
	}

	res, err := aggregate.Directory(ctx, req.Dir, opts)
	if err != nil {
		return nil, err
	}
	out := &AggregateResult{
		Aggregated: len(res.Aggregated),
		Skipped:    len(res.SkippedMap),
		Failed:     len(res.Failed),
	}
	if out.Aggregated == 0 {
		return out, fmt.Errorf("aggregate %s for %s: %w", req.Dir, req.MapName, ErrNoRecordings)
	}
	snap, err := s.store.Save(ctx, res.Tracker, res.Positions)
	if err != nil {
		return nil, err
	}
	l := logger.ForAggregation(ctx, req.Dir, res.Tracker.Config().String())
	l.Info().Str("snapshot", snap.ID).Uint64("routines", snap.Routines).
		Uint64("positions", snap.Positions).Msg("Tracker snapshot stored")
	out.Snapshot = snap
	return out, nil
}

// merged is the merge of a set of stored snapshots.
type merged struct {
	tracker *spatial.RoutineTracker
	heat    *spatial.PositionCounter
	loaded  int
}

// load merges exactly the snapshots listed in snaps. Snapshots deleted since
// they were listed are skipped, or fail with repository.ErrSnapshotsChanged
// when strict. The heatmap covers the snapshots that stored one and is nil
// if none did.
func (s *TrackerService) load(ctx context.Context, snaps []model.TrackerSnapshot, strict bool) (*merged, error) {
	out := &merged{}
	trackers := make([]*spatial.RoutineTracker, 0, len(snaps))
	for _, snap := range snaps {
		t, heat, err := s.store.Get(ctx, snap.ID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			if strict {
				return nil, fmt.Errorf("%w: %s is gone", repository.ErrSnapshotsChanged, snap.ID)
			}
			continue
		}
		trackers = append(trackers, t)
		if heat == nil {
			continue
		}
		if out.heat == nil {
			out.heat = heat
		} else if out.heat, err = spatial.MergePositions(out.heat, heat); err != nil {
			return nil, err
		}
	}
	t, err := spatial.MergeAll(trackers...)
	if err != nil {
		return nil, err
	}
	out.tracker = t
	out.loaded = len(trackers)
	return out, nil
}

// Combined merges every stored snapshot of cfg and reports the top routines
// of each origin tile and the top heatmap tiles. top <= 0 returns all of them.
func (s *TrackerService) Combined(ctx context.Context, cfg spatial.Config, top int) (*TrackerView, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	snaps, err := s.store.List(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m, err := s.load(ctx, snaps, false)
	if err != nil {
		return nil, fmt.Errorf("combine %s: %w", cfg, err)
	}
	if top <= 0 {
		top = -1
	}
	t := m.tracker
	view := &TrackerView{
		Config:     cfg,
		Snapshots:  m.loaded,
		Recordings: len(t.Sources()),
		Routines:   t.Len(),
		Heatmap:    []spatial.TileCount{},
	}
	for _, origin := range t.Origins() {
		view.Origins = append(view.Origins, OriginRoutines{Origin: origin, Routines: t.TopRoutines(origin, top)})
	}
	if m.heat != nil {
		view.Positions = m.heat.Total()
		view.Heatmap = m.heat.Top(top)
	}
	return view, nil
}

// Compact replaces the snapshots of cfg with their merge once more than
// threshold are stored. Only the listed snapshots are merged, and the merge
// is swapped in atomically, so snapshots saved meanwhile survive untouched.
// It reports whether anything was compacted; losing a race to another
// compaction or delete is not an error.
func (s *TrackerService) Compact(ctx context.Context, cfg spatial.Config, threshold int) (bool, error) {
	l := logger.ForAggregation(ctx, "", cfg.String())
	snaps, err := s.store.List(ctx, cfg)
	if err != nil {
		return false, err
	}
	if len(snaps) <= max(threshold, 1) {
		return false, nil
	}
	ids := make([]string, len(snaps))
	for i, snap := range snaps {
		ids[i] = snap.ID
	}

	m, err := s.load(ctx, snaps, true)
	if err != nil {
		return false, compactFailed(l, cfg, err)
	}
	snap, err := s.store.Replace(ctx, ids, m.tracker, m.heat)
	if err != nil {
		return false, compactFailed(l, cfg, err)
	}
	l.Info().Int("merged", len(ids)).Str("snapshot", snap.ID).Msg("Tracker snapshots compacted")
	return true, nil
}

func compactFailed(l zerolog.Logger, cfg spatial.Config, err error) error {
	if errors.Is(err, repository.ErrSnapshotsChanged) {
		l.Debug().Err(err).Msg("Snapshots changed during compaction, retrying later")
		return nil
	}
	return fmt.Errorf("compact %s: %w", cfg, err)
}
