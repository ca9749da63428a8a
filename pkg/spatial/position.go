package spatial

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/freeeve/roundscope/pkg/tile"
)

// TileCount is a tile and its visit count.
type TileCount struct {
	Tile  tile.Coord `json:"tile"`
	Count uint64     `json:"count"`
}

// PositionCounter counts visits per tile. It is not safe for concurrent
// writers.
type PositionCounter struct {
	mapName    string
	tileLength float64
	counts     map[tile.Coord]uint64
}

// NewPositionCounter creates an empty heatmap for mapName.
func NewPositionCounter(mapName string, tileLength float64) (*PositionCounter, error) {
	if err := tile.Validate(tileLength); err != nil {
		return nil, fmt.Errorf("new position counter: %w", err)
	}
	return &PositionCounter{
		mapName:    mapName,
		tileLength: tileLength,
		counts:     make(map[tile.Coord]uint64),
	}, nil
}

// MapName returns the map the counter belongs to.
func (c *PositionCounter) MapName() string { return c.mapName }

// TileLength returns the quantization tile side.
func (c *PositionCounter) TileLength() float64 { return c.tileLength }

// Add counts one visit at (x, y) and returns the tile's new count.
func (c *PositionCounter) Add(x, y float64) uint64 {
	tc := tile.Quantize(x, y, c.tileLength)
	c.counts[tc]++
	return c.counts[tc]
}

// Count returns the visits recorded for tc.
func (c *PositionCounter) Count(tc tile.Coord) uint64 { return c.counts[tc] }

// Counts returns a copy of every non-zero tile count.
func (c *PositionCounter) Counts() map[tile.Coord]uint64 { return maps.Clone(c.counts) }

// Total returns the number of recorded visits.
func (c *PositionCounter) Total() uint64 {
	var n uint64
	for _, v := range c.counts {
		n += v
	}
	return n
}

// Hottest returns the most visited tile, preferring the lowest coordinate on
// ties. ok is false for an empty counter.
func (c *PositionCounter) Hottest() (tc tile.Coord, count uint64, ok bool) {
	for k, v := range c.counts {
		if !ok || v > count || (v == count && k.Less(tc)) {
			tc, count, ok = k, v, true
		}
	}
	return tc, count, ok
}

// Top returns up to n of the most visited tiles, most visited first, ties
// ordered by coordinate. A negative n returns every tile.
func (c *PositionCounter) Top(n int) []TileCount {
	out := make([]TileCount, 0, len(c.counts))
	for k, v := range c.counts {
		out = append(out, TileCount{Tile: k, Count: v})
	}
	slices.SortFunc(out, func(a, b TileCount) int {
		if d := cmp.Compare(b.Count, a.Count); d != 0 {
			return d
		}
		return tile.Compare(a.Tile, b.Tile)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// MergePositions returns the tile-wise sum of a and b.
func MergePositions(a, b *PositionCounter) (*PositionCounter, error) {
	if a.mapName != b.mapName || a.tileLength != b.tileLength {
		return nil, fmt.Errorf("%w: heatmap %s/%v vs %s/%v",
			ErrIncompatibleTrackers, a.mapName, a.tileLength, b.mapName, b.tileLength)
	}
	out := &PositionCounter{
		mapName:    a.mapName,
		tileLength: a.tileLength,
		counts:     maps.Clone(a.counts),
	}
	for k, v := range b.counts {
		out.counts[k] += v
	}
	return out, nil
}
