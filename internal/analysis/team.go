package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/pkg/navmesh"
)

var (
	ErrNoPlayers  = errors.New("no players")
	ErrNoBomb     = errors.New("bomb not in frame")
	ErrNoBombsite = errors.New("map has no bombsite tiles")
)

// BombsiteRegion prefixes the region names of bombsite tiles.
const BombsiteRegion = "Bombsite"

// TeamHP sums the health of a side's living players.
type TeamHP struct {
	Side model.Side
}

func (m TeamHP) Name() string { return string(m.Side) + "_hp" }

func (m TeamHP) Reset() {}

func (m TeamHP) Compute(f *model.Frame) (float64, error) {
	total := 0
	for _, p := range f.Team(m.Side).Players {
		if p.IsAlive {
			total += p.HP
		}
	}
	return float64(total), nil
}

type vec3 struct{ x, y, z float64 }

// Distance measures how far a side's players moved, as the sum of absolute
// per-axis displacement since the previous frame. With Cumulative set the
// value is the running total for the round.
type Distance struct {
	Side       model.Side
	Cumulative bool

	prev  map[string]vec3
	total float64
}

func (m *Distance) Name() string {
	if m.Cumulative {
		return string(m.Side) + "_distance_total"
	}
	return string(m.Side) + "_distance"
}

func (m *Distance) Reset() {
	m.prev = nil
	m.total = 0
}

func (m *Distance) Compute(f *model.Frame) (float64, error) {
	cur := make(map[string]vec3)
	for _, p := range f.Team(m.Side).Players {
		cur[p.Name] = vec3{p.X, p.Y, p.Z}
	}
	if m.prev == nil {
		m.prev = cur
		return 0, nil
	}
	delta := 0.0
	for name, c := range cur {
		if p, ok := m.prev[name]; ok {
			delta += math.Abs(c.x-p.x) + math.Abs(c.y-p.y) + math.Abs(c.z-p.z)
		}
	}
	m.prev = cur
	m.total += delta
	if m.Cumulative {
		return m.total, nil
	}
	return delta, nil
}

// VelocityDeviation is the population standard deviation of the players'
// planar speeds (|vx| + |vy|) on a side.
type VelocityDeviation struct {
	Side model.Side
}

func (m VelocityDeviation) Name() string { return string(m.Side) + "_velocity_deviation" }

func (m VelocityDeviation) Reset() {}

func (m VelocityDeviation) Compute(f *model.Frame) (float64, error) {
	players := f.Team(m.Side).Players
	if len(players) == 0 {
		return 0, fmt.Errorf("velocity deviation %s: %w", m.Side, ErrNoPlayers)
	}
	speeds := make([]float64, len(players))
	for i, p := range players {
		speeds[i] = math.Abs(p.VelocityX) + math.Abs(p.VelocityY)
	}
	_, variance := stat.PopMeanVariance(speeds, nil)
	return math.Sqrt(variance), nil
}

// BombsiteDistance is the walking distance from the bomb to the nearest
// bombsite tile.
type BombsiteDistance struct {
	mesh  *navmesh.Mesh
	sites []navmesh.TileID
}

// NewBombsiteDistance prepares the metric for mesh.
func NewBombsiteDistance(mesh *navmesh.Mesh) (*BombsiteDistance, error) {
	sites := mesh.TilesInRegion(BombsiteRegion)
	if len(sites) == 0 {
		return nil, fmt.Errorf("%s: %w", mesh.Name(), ErrNoBombsite)
	}
	return &BombsiteDistance{mesh: mesh, sites: sites}, nil
}

func (m *BombsiteDistance) Name() string { return "bomb_distance" }

func (m *BombsiteDistance) Reset() {}

func (m *BombsiteDistance) Compute(f *model.Frame) (float64, error) {
	if f.Bomb == nil {
		return 0, ErrNoBomb
	}
	from, err := m.mesh.NearestTile(navmesh.Point{X: f.Bomb.X, Y: f.Bomb.Y, Z: f.Bomb.Z})
	if err != nil {
		return 0, err
	}
	best := math.Inf(1)
	for _, site := range m.sites {
		d, err := m.mesh.GeodesicDistance(from, site)
		if err != nil {
			continue
		}
		best = min(best, d)
	}
	if math.IsInf(best, 1) {
		return 0, fmt.Errorf("bomb distance from tile %d: %w", from, navmesh.ErrUnreachable)
	}
	return best, nil
}
