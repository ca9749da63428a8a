package mapcontrol

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/freeeve/roundscope/pkg/navmesh"
)

// Norm selects how the area-weighted control value is scaled.
type Norm int

const (
	// NormSigned maps the weighted mean onto [-1, 1]; positive favours T.
	NormSigned Norm = 0
	// NormUnit returns the weighted mean in [0, 1].
	NormUnit Norm = 1
	// NormNone returns the weighted sum without dividing by the total area.
	NormNone Norm = 2
)

// ReduceOptions configures Reduce.
type ReduceOptions struct {
	// OccupiedOnly restricts the candidate tiles to those either team reached.
	// When false every mesh tile counts, which requires Absolute.
	OccupiedOnly bool `json:"occupied_only"`

	// Norm scales the weighted mean.
	Norm Norm `json:"norm"`

	// Absolute uses the raw T control sum per tile instead of T's share of
	// the combined control.
	Absolute bool `json:"absolute"`
}

// DefaultReduceOptions returns the signed relative score over reached tiles.
func DefaultReduceOptions() ReduceOptions {
	return ReduceOptions{OccupiedOnly: true, Norm: NormSigned}
}

// Validate rejects unknown norms and the relative score over every tile.
func (o ReduceOptions) Validate() error {
	if o.Norm < NormSigned || o.Norm > NormNone {
		return fmt.Errorf("%w: norm=%d", ErrInvalidParameter, o.Norm)
	}
	if !o.OccupiedOnly && !o.Absolute {
		return fmt.Errorf("%w: occupied_only=false requires absolute=true", ErrInvalidParameter)
	}
	return nil
}

// Tiles returns the union of tiles either team reached, ascending.
func (fc *FrameControl) Tiles() []navmesh.TileID {
	seen := make(map[navmesh.TileID]bool, len(fc.T)+len(fc.CT))
	out := make([]navmesh.TileID, 0, len(fc.T)+len(fc.CT))
	for _, m := range []map[navmesh.TileID][]Contribution{fc.T, fc.CT} {
		for id := range m {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	slices.Sort(out)
	return out
}

func sum(cs []Contribution) float64 {
	s := 0.0
	for _, c := range cs {
		s += c.Value
	}
	return s
}

// Reduce collapses frame control values into a single area-weighted score.
func Reduce(g Graph, fc *FrameControl, opts ReduceOptions) (float64, error) {
	if err := opts.Validate(); err != nil {
		return 0, fmt.Errorf("reduce %s: %w", fc.MapName, err)
	}

	var tiles []navmesh.TileID
	if opts.OccupiedOnly {
		tiles = fc.Tiles()
	} else {
		tiles = g.TileIDs()
	}
	if len(tiles) == 0 {
		return 0, fmt.Errorf("reduce %s: %w", fc.MapName, ErrNoControllableArea)
	}

	values := make([]float64, len(tiles))
	weights := make([]float64, len(tiles))
	for i, id := range tiles {
		t := sum(fc.T[id])
		if opts.Absolute {
			values[i] = t
		} else if total := t + sum(fc.CT[id]); total > 0 {
			values[i] = t / total
		}
		weights[i] = g.Area(id)
	}

	area := floats.Sum(weights)
	if area == 0 {
		return 0, fmt.Errorf("reduce %s: %w: candidate tiles have zero area", fc.MapName, ErrNoControllableArea)
	}
	weighted := floats.Dot(values, weights)

	switch opts.Norm {
	case NormSigned:
		return 2*(weighted/area) - 1, nil
	case NormUnit:
		return weighted / area, nil
	default:
		return weighted, nil
	}
}
