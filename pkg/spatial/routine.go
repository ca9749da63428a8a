// Package spatial accumulates tile-quantized movement: per-tile position
// heatmaps and counters of recurring movement routines. Trackers built from
// independent recordings combine with Merge, which is commutative and
// associative.
package spatial

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/freeeve/roundscope/pkg/tile"
)

var (
	ErrEmptyRoutine         = errors.New("empty routine")
	ErrRoutineMismatch      = errors.New("routine does not match tracker")
	ErrIncompatibleTrackers = errors.New("incompatible trackers")
	ErrInvalidConfig        = errors.New("invalid tracker config")
	ErrNoTrackers           = errors.New("no trackers to merge")
)

// Position is a point in radar space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Routine is a player's positions over consecutive frames of one round.
type Routine struct {
	Player    string     `json:"player"`
	Side      string     `json:"side"`
	MapName   string     `json:"map_name"`
	Positions []Position `json:"positions"`
}

// RoutineKey is the canonical identity of a routine: its quantized path.
// Routines with different raw positions but the same tile sequence share a key.
type RoutineKey string

// KeyOf builds the key for a tile path.
func KeyOf(path []tile.Coord) RoutineKey {
	var b strings.Builder
	for i, c := range path {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(c.X))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(c.Y))
	}
	return RoutineKey(b.String())
}

// Path decodes the tile sequence of k.
func (k RoutineKey) Path() ([]tile.Coord, error) {
	if k == "" {
		return nil, nil
	}
	parts := strings.Split(string(k), "|")
	out := make([]tile.Coord, len(parts))
	for i, p := range parts {
		xs, ys, ok := strings.Cut(p, ",")
		if !ok {
			return nil, fmt.Errorf("parse routine key %q: missing separator", k)
		}
		x, err := strconv.Atoi(xs)
		if err != nil {
			return nil, fmt.Errorf("parse routine key %q: %w", k, err)
		}
		y, err := strconv.Atoi(ys)
		if err != nil {
			return nil, fmt.Errorf("parse routine key %q: %w", k, err)
		}
		out[i] = tile.Coord{X: x, Y: y}
	}
	return out, nil
}

// TilizedRoutine is a routine with its positions quantized to tiles.
type TilizedRoutine struct {
	Routine
	TileLength float64      `json:"tile_length"`
	Tiles      []tile.Coord `json:"tiles"`
}

// Tilize quantizes every position of r with the given tile length.
func Tilize(r Routine, tileLength float64) (TilizedRoutine, error) {
	if len(r.Positions) == 0 {
		return TilizedRoutine{}, fmt.Errorf("tilize %s routine of %q: %w", r.MapName, r.Player, ErrEmptyRoutine)
	}
	if err := tile.Validate(tileLength); err != nil {
		return TilizedRoutine{}, fmt.Errorf("tilize: %w", err)
	}
	tiles := make([]tile.Coord, len(r.Positions))
	for i, p := range r.Positions {
		tiles[i] = tile.Quantize(p.X, p.Y, tileLength)
	}
	return TilizedRoutine{Routine: r, TileLength: tileLength, Tiles: tiles}, nil
}

// Key returns the routine's identity.
func (tr TilizedRoutine) Key() RoutineKey { return KeyOf(tr.Tiles) }

// Origin returns the first tile of the routine.
func (tr TilizedRoutine) Origin() tile.Coord { return tr.Tiles[0] }
