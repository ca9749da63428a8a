// Package aggregate builds routine trackers and position heatmaps from a
// directory of recordings.
package aggregate

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/freeeve/roundscope/internal/logger"
	"github.com/freeeve/roundscope/internal/metrics"
	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/internal/recording"
	"github.com/freeeve/roundscope/pkg/navmesh"
	"github.com/freeeve/roundscope/pkg/spatial"
)

// Options controls directory aggregation.
type Options struct {
	MapName       string
	TileLength    float64
	RoutineLength int
	Workers       int
	Radar         navmesh.Radar

	// Limit caps how many matching recordings are aggregated, taken in file
	// name order. Zero means no cap.
	Limit int
}

func (o Options) config() spatial.Config {
	return spatial.Config{MapName: o.MapName, TileLength: o.TileLength, RoutineLength: o.RoutineLength}
}

// Result is the outcome of aggregating a directory.
type Result struct {
	Tracker    *spatial.RoutineTracker
	Positions  *spatial.PositionCounter
	Aggregated []string
	SkippedMap []string
	Failed     []string
}

// FromGame builds the tracker and heatmap of one loaded recording.
func FromGame(g *model.Game, source string, opts Options) (*spatial.RoutineTracker, *spatial.PositionCounter, error) {
	if g.MapName != opts.MapName {
		return nil, nil, fmt.Errorf("%w: recording is on %s, want %s", spatial.ErrIncompatibleTrackers, g.MapName, opts.MapName)
	}
	tracker, err := spatial.NewRoutineTracker(opts.config())
	if err != nil {
		return nil, nil, err
	}
	positions, err := spatial.NewPositionCounter(opts.MapName, opts.TileLength)
	if err != nil {
		return nil, nil, err
	}

	routines, err := recording.GameRoutines(g, opts.RoutineLength, opts.Radar)
	if err != nil {
		return nil, nil, fmt.Errorf("build routines: %w", err)
	}
	for _, r := range routines {
		if _, err := tracker.AddRoutine(r); err != nil {
			return nil, nil, fmt.Errorf("add routine of %s: %w", r.Player, err)
		}
	}
	metrics.RoutinesTotal.WithLabelValues(opts.MapName).Add(float64(len(routines)))

	for ri := range g.Rounds {
		for fi := range g.Rounds[ri].Frames {
			f := &g.Rounds[ri].Frames[fi]
			for _, team := range []*model.TeamFrame{&f.T, &f.CT} {
				for _, p := range team.Players {
					positions.Add(opts.Radar.Apply(p.X, p.Y))
				}
			}
		}
	}

	tracker.AddSource(recording.Source(g, source))
	return tracker, positions, nil
}

type outcome struct {
	tracker    *spatial.RoutineTracker
	positions  *spatial.PositionCounter
	skippedMap bool
	err        error
}

func processFile(path string, opts Options) outcome {
	mapName, err := recording.PeekMapName(path)
	if err != nil {
		return outcome{err: err}
	}
	if mapName != opts.MapName {
		return outcome{skippedMap: true}
	}
	g, err := recording.Load(path)
	if err != nil {
		return outcome{err: err}
	}
	tracker, positions, err := FromGame(g, path, opts)
	if err != nil {
		return outcome{err: fmt.Errorf("%s: %w", path, err)}
	}
	return outcome{tracker: tracker, positions: positions}
}

// Directory aggregates every *.json recording in dir that was recorded on
// opts.MapName. Recordings on other maps are skipped; recordings that fail to
// load are logged and skipped. Files are processed opts.Workers at a time and
// combined with spatial.MergeAll.
func Directory(ctx context.Context, dir string, opts Options) (*Result, error) {
	empty, err := spatial.NewRoutineTracker(opts.config())
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", dir, err)
	}
	positions, err := spatial.NewPositionCounter(opts.MapName, opts.TileLength)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", dir, err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob recordings: %w", err)
	}
	sort.Strings(paths)

	l := logger.ForAggregation(ctx, dir, opts.config().String())
	workers := max(opts.Workers, 1)
	res := &Result{Positions: positions}
	var trackers []*spatial.RoutineTracker

	for start := 0; start < len(paths); start += workers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.Limit > 0 && len(res.Aggregated) >= opts.Limit {
			break
		}
		batch := paths[start:min(start+workers, len(paths))]

		// Each file writes its own slot; accepting results in file order keeps
		// the limit deterministic.
		outcomes := make([]outcome, len(batch))
		var wg sync.WaitGroup
		for i, path := range batch {
			wg.Add(1)
			go func(i int, path string) {
				defer wg.Done()
				outcomes[i] = processFile(path, opts)
			}(i, path)
		}
		wg.Wait()

		for i, o := range outcomes {
			path := batch[i]
			switch {
			case o.skippedMap:
				res.SkippedMap = append(res.SkippedMap, path)
				metrics.RecordingsTotal.WithLabelValues(metrics.OutcomeSkippedMap).Inc()
				l.Debug().Str("file", path).Msg("Recording is on another map, skipping")
			case o.err != nil:
				res.Failed = append(res.Failed, path)
				metrics.RecordingsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
				l.Warn().Err(o.err).Str("file", path).Msg("Failed to load recording, skipping")
			case opts.Limit > 0 && len(res.Aggregated) >= opts.Limit:
				metrics.RecordingsTotal.WithLabelValues(metrics.OutcomeOverLimit).Inc()
			default:
				res.Aggregated = append(res.Aggregated, path)
				trackers = append(trackers, o.tracker)
				merged, err := spatial.MergePositions(res.Positions, o.positions)
				if err != nil {
					return nil, err
				}
				res.Positions = merged
				metrics.RecordingsTotal.WithLabelValues(metrics.OutcomeAggregated).Inc()
			}
		}
	}

	if len(trackers) == 0 {
		res.Tracker = empty
	} else {
		start := time.Now()
		merged, err := spatial.MergeAll(trackers...)
		if err != nil {
			return nil, fmt.Errorf("merge trackers: %w", err)
		}
		metrics.MergeDuration.Observe(time.Since(start).Seconds())
		res.Tracker = merged
	}

	l.Info().
		Int("aggregated", len(res.Aggregated)).
		Int("skipped", len(res.SkippedMap)).
		Int("failed", len(res.Failed)).
		Uint64("routines", res.Tracker.Len()).
		Msg("Aggregation complete")
	return res, nil
}
