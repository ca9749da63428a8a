// Package mapcontrol estimates how much of a map each team controls at a
// single instant. Every occupied tile spreads a decaying control value over
// the navigation graph until it has claimed a fixed share of the map's area;
// the resulting per-tile values are then reduced to one score.
package mapcontrol

import (
	"errors"
	"fmt"
	"math"

	"github.com/freeeve/roundscope/pkg/navmesh"
)

var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNoControllableArea = errors.New("no controllable area")
)

// MinControl is the floor of the decayed control value.
const MinControl = 0.1

// Graph is the view of a navigation mesh the estimator needs.
type Graph interface {
	Contains(id navmesh.TileID) bool
	Neighbors(id navmesh.TileID) []navmesh.TileID
	ApproximateNeighbors(id navmesh.TileID) []navmesh.TileID
	Area(id navmesh.TileID) float64
	TileIDs() []navmesh.TileID
	TotalArea() float64
}

// Params tunes the propagation.
type Params struct {
	// AreaThreshold is the share of total navigable area a single origin may
	// claim before its search stops.
	AreaThreshold float64 `json:"area_threshold"`

	// Steps sets the decay slope: each hop lowers the value by 1/Steps.
	Steps int `json:"steps"`
}

// DefaultParams returns a 1/20 area share and 10 decay steps.
func DefaultParams() Params {
	return Params{AreaThreshold: 1.0 / 20, Steps: 10}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if !(p.AreaThreshold > 0) || math.IsInf(p.AreaThreshold, 0) {
		return fmt.Errorf("%w: area_threshold=%v must be > 0", ErrInvalidParameter, p.AreaThreshold)
	}
	if p.Steps < 1 {
		return fmt.Errorf("%w: steps=%d must be >= 1", ErrInvalidParameter, p.Steps)
	}
	return nil
}

// Occupancy lists the tiles occupied by each team's living players. A tile
// appears once per player standing on it.
type Occupancy struct {
	T  []navmesh.TileID `json:"t"`
	CT []navmesh.TileID `json:"ct"`
}

// Contribution is one origin's control value on a tile.
type Contribution struct {
	Value  float64        `json:"value"`
	Origin navmesh.TileID `json:"origin"`
}

// FrameControl holds every team's contributions per visited tile.
type FrameControl struct {
	MapName string                            `json:"map_name"`
	T       map[navmesh.TileID][]Contribution `json:"t"`
	CT      map[navmesh.TileID][]Contribution `json:"ct"`
}

// Visit is a tile reached by a single propagation run.
type Visit struct {
	Tile  navmesh.TileID
	Value float64
	Depth int
}

type queued struct {
	tile      navmesh.TileID
	value     float64
	remaining int
	depth     int
}

// Spread runs the bounded breadth-first propagation from origin and returns
// the visited tiles in visit order. The search stops dequeuing as soon as the
// visited area reaches p.AreaThreshold of the map, or the reachable graph is
// exhausted. Tiles without graph neighbours continue through their
// approximate neighbours.
func Spread(g Graph, origin navmesh.TileID, p Params) []Visit {
	bound := p.AreaThreshold * g.TotalArea()
	steps := float64(p.Steps)

	var visits []Visit
	visited := make(map[navmesh.TileID]bool)
	queue := []queued{{tile: origin, value: 1.0, remaining: p.Steps}}
	area := 0.0
	for len(queue) > 0 && area < bound {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.tile] {
			continue
		}
		visited[cur.tile] = true
		visits = append(visits, Visit{Tile: cur.tile, Value: cur.value, Depth: cur.depth})

		next := g.Neighbors(cur.tile)
		if len(next) == 0 {
			next = g.ApproximateNeighbors(cur.tile)
		}
		value := max(float64(cur.remaining-1)/steps, MinControl)
		for _, nb := range next {
			if !visited[nb] {
				queue = append(queue, queued{tile: nb, value: value, remaining: cur.remaining - 1, depth: cur.depth + 1})
			}
		}
		area += g.Area(cur.tile)
	}
	return visits
}

// Estimate propagates control from every occupied tile of both teams.
func Estimate(g Graph, mapName string, occ Occupancy, p Params) (*FrameControl, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("estimate %s: %w", mapName, err)
	}
	t, err := spreadTeam(g, occ.T, p)
	if err != nil {
		return nil, fmt.Errorf("estimate %s t: %w", mapName, err)
	}
	ct, err := spreadTeam(g, occ.CT, p)
	if err != nil {
		return nil, fmt.Errorf("estimate %s ct: %w", mapName, err)
	}
	return &FrameControl{MapName: mapName, T: t, CT: ct}, nil
}

func spreadTeam(g Graph, origins []navmesh.TileID, p Params) (map[navmesh.TileID][]Contribution, error) {
	out := make(map[navmesh.TileID][]Contribution)
	for _, origin := range origins {
		if !g.Contains(origin) {
			return nil, fmt.Errorf("%w: occupied tile %d is not on the mesh", ErrInvalidParameter, origin)
		}
		for _, v := range Spread(g, origin, p) {
			out[v.Tile] = append(out[v.Tile], Contribution{Value: v.Value, Origin: origin})
		}
	}
	return out, nil
}
