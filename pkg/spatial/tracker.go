package spatial

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/freeeve/roundscope/pkg/tile"
)

// Config identifies what a tracker counts. Trackers merge only when their
// configs are equal.
type Config struct {
	MapName       string  `json:"map_name"`
	TileLength    float64 `json:"tile_length"`
	RoutineLength int     `json:"routine_length"`
}

// Validate checks that the config describes a usable tracker.
func (c Config) Validate() error {
	if c.MapName == "" {
		return fmt.Errorf("%w: empty map name", ErrInvalidConfig)
	}
	if err := tile.Validate(c.TileLength); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.RoutineLength < 1 {
		return fmt.Errorf("%w: routine length %d", ErrInvalidConfig, c.RoutineLength)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("%s/tile=%v/routine=%d", c.MapName, c.TileLength, c.RoutineLength)
}

// RoutineCount is a routine identity and how often it was seen.
type RoutineCount struct {
	Key   RoutineKey `json:"key"`
	Count uint64     `json:"count"`
}

// RoutineTracker counts routines per origin tile. A tracker has a single
// writer; Merge never mutates its inputs.
type RoutineTracker struct {
	cfg      Config
	routines map[tile.Coord]map[RoutineKey]uint64
	sources  []Source
}

// NewRoutineTracker creates an empty tracker.
func NewRoutineTracker(cfg Config) (*RoutineTracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new routine tracker: %w", err)
	}
	return &RoutineTracker{cfg: cfg, routines: make(map[tile.Coord]map[RoutineKey]uint64)}, nil
}

// Config returns the tracker configuration.
func (t *RoutineTracker) Config() Config { return t.cfg }

// Add counts tr under its origin tile and returns the routine's new count.
func (t *RoutineTracker) Add(tr TilizedRoutine) (uint64, error) {
	if len(tr.Tiles) == 0 {
		return 0, fmt.Errorf("add routine of %q: %w", tr.Player, ErrEmptyRoutine)
	}
	if tr.TileLength != t.cfg.TileLength {
		return 0, fmt.Errorf("%w: tile length %v, tracker %v", ErrRoutineMismatch, tr.TileLength, t.cfg.TileLength)
	}
	if tr.MapName != "" && tr.MapName != t.cfg.MapName {
		return 0, fmt.Errorf("%w: map %s, tracker %s", ErrRoutineMismatch, tr.MapName, t.cfg.MapName)
	}
	if len(tr.Tiles) > t.cfg.RoutineLength {
		return 0, fmt.Errorf("%w: %d positions, routine length %d", ErrRoutineMismatch, len(tr.Tiles), t.cfg.RoutineLength)
	}

	origin := tr.Origin()
	byKey := t.routines[origin]
	if byKey == nil {
		byKey = make(map[RoutineKey]uint64)
		t.routines[origin] = byKey
	}
	key := tr.Key()
	byKey[key]++
	return byKey[key], nil
}

// AddRoutine quantizes r with the tracker's tile length and adds it.
func (t *RoutineTracker) AddRoutine(r Routine) (uint64, error) {
	tr, err := Tilize(r, t.cfg.TileLength)
	if err != nil {
		return 0, err
	}
	return t.Add(tr)
}

// AddSource records provenance for the tracker.
func (t *RoutineTracker) AddSource(s Source) {
	t.sources = append(t.sources, s)
}

// Sources returns the recordings that contributed to the tracker.
func (t *RoutineTracker) Sources() []Source { return slices.Clone(t.sources) }

// Count returns how often the routine key was seen starting at origin.
func (t *RoutineTracker) Count(origin tile.Coord, key RoutineKey) uint64 {
	return t.routines[origin][key]
}

// Origins returns every origin tile with at least one routine, row-major.
func (t *RoutineTracker) Origins() []tile.Coord {
	out := slices.Collect(maps.Keys(t.routines))
	slices.SortFunc(out, tile.Compare)
	return out
}

// Routines returns a copy of the routine counts starting at origin.
func (t *RoutineTracker) Routines(origin tile.Coord) map[RoutineKey]uint64 {
	return maps.Clone(t.routines[origin])
}

// TopRoutines returns up to n of the most frequent routines from origin,
// most frequent first, ties ordered by key.
func (t *RoutineTracker) TopRoutines(origin tile.Coord, n int) []RoutineCount {
	out := make([]RoutineCount, 0, len(t.routines[origin]))
	for k, v := range t.routines[origin] {
		out = append(out, RoutineCount{Key: k, Count: v})
	}
	slices.SortFunc(out, func(a, b RoutineCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Len returns the total number of routines counted.
func (t *RoutineTracker) Len() uint64 {
	var n uint64
	for _, byKey := range t.routines {
		for _, v := range byKey {
			n += v
		}
	}
	return n
}

// Distinct returns the number of distinct (origin, routine) slots.
func (t *RoutineTracker) Distinct() int {
	n := 0
	for _, byKey := range t.routines {
		n += len(byKey)
	}
	return n
}

// Clone returns a deep copy of t.
func (t *RoutineTracker) Clone() *RoutineTracker {
	out := &RoutineTracker{
		cfg:      t.cfg,
		routines: make(map[tile.Coord]map[RoutineKey]uint64, len(t.routines)),
		sources:  slices.Clone(t.sources),
	}
	for origin, byKey := range t.routines {
		out.routines[origin] = maps.Clone(byKey)
	}
	return out
}

// Merge is shorthand for Merge(t, other).
func (t *RoutineTracker) Merge(other *RoutineTracker) (*RoutineTracker, error) {
	return Merge(t, other)
}

// Merge returns a new tracker holding the key-wise sum of a and b, with b's
// sources appended after a's. Trackers with different configs are rejected.
func Merge(a, b *RoutineTracker) (*RoutineTracker, error) {
	if a.cfg != b.cfg {
		return nil, fmt.Errorf("merge %s with %s: %w", a.cfg, b.cfg, ErrIncompatibleTrackers)
	}
	out := a.Clone()
	for origin, byKey := range b.routines {
		dst := out.routines[origin]
		if dst == nil {
			dst = make(map[RoutineKey]uint64, len(byKey))
			out.routines[origin] = dst
		}
		for k, v := range byKey {
			dst[k] += v
		}
	}
	out.sources = append(out.sources, b.sources...)
	return out, nil
}

// MergeAll reduces trackers pairwise, each level of the tree in parallel.
// The counts equal those of any sequential fold.
func MergeAll(trackers ...*RoutineTracker) (*RoutineTracker, error) {
	if len(trackers) == 0 {
		return nil, ErrNoTrackers
	}
	for _, t := range trackers[1:] {
		if t.cfg != trackers[0].cfg {
			return nil, fmt.Errorf("merge %s with %s: %w", trackers[0].cfg, t.cfg, ErrIncompatibleTrackers)
		}
	}
	if len(trackers) == 1 {
		return trackers[0].Clone(), nil
	}

	level := trackers
	for len(level) > 1 {
		next := make([]*RoutineTracker, (len(level)+1)/2)
		errs := make([]error, len(next))
		var wg sync.WaitGroup
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next[i/2] = level[i]
				continue
			}
			wg.Add(1)
			go func(slot int, a, b *RoutineTracker) {
				defer wg.Done()
				next[slot], errs[slot] = Merge(a, b)
			}(i/2, level[i], level[i+1])
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		level = next
	}
	return level[0], nil
}

// EqualCounts reports whether a and b have the same config and identical
// per-tile routine counts. Provenance is ignored.
func EqualCounts(a, b *RoutineTracker) bool {
	if a.cfg != b.cfg || len(a.routines) != len(b.routines) {
		return false
	}
	for origin, byKey := range a.routines {
		if !maps.Equal(byKey, b.routines[origin]) {
			return false
		}
	}
	return true
}
