// Package navmesh holds per-map navigation meshes: navigable tiles, their
// adjacency, polygon area, region names and geometry.
//
// A Mesh is immutable once built and safe for concurrent use.
package navmesh

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
)

var (
	ErrMapNotFound = errors.New("map not found")
	ErrUnknownTile = errors.New("unknown tile")
	ErrInvalidMesh = errors.New("invalid mesh")
	ErrEmptyMesh   = errors.New("mesh has no tiles")
	ErrUnreachable = errors.New("tile unreachable")
)

// DefaultApproximateNeighbors is the number of nearest tiles returned by
// ApproximateNeighbors unless overridden with WithApproximateNeighbors.
const DefaultApproximateNeighbors = 5

// TileID is the mesh's native tile key.
type TileID int

// Point is a position in world (or radar) space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p Point) dist(o Point) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Tile is one navigable polygon of a map.
type Tile struct {
	ID        TileID   `json:"id"`
	Region    string   `json:"region,omitempty"`
	Area      float64  `json:"area,omitempty"`
	Center    Point    `json:"center"`
	NorthWest *Point   `json:"northwest,omitempty"`
	SouthEast *Point   `json:"southeast,omitempty"`
	Neighbors []TileID `json:"neighbors,omitempty"`
}

// Mesh is the navigation graph of a single map.
type Mesh struct {
	name      string
	radar     Radar
	tiles     map[TileID]*Tile
	ids       []TileID
	index     map[TileID]int
	totalArea float64
	approxK   int
	approx    map[TileID][]TileID

	cacheDistances bool
	distOnce       sync.Once
	dist           []float64 // flat [i*n + j]; +Inf = unreachable
}

// Option customizes mesh construction.
type Option func(*Mesh)

// WithApproximateNeighbors sets how many nearest tiles stand in for the
// adjacency of a tile that has none.
func WithApproximateNeighbors(k int) Option {
	return func(m *Mesh) { m.approxK = k }
}

// WithRadar attaches the world-to-radar transform of the map.
func WithRadar(r Radar) Option {
	return func(m *Mesh) { m.radar = r }
}

// WithDistanceCache enables the all-pairs geodesic distance matrix. It is
// built on first use.
func WithDistanceCache() Option {
	return func(m *Mesh) { m.cacheDistances = true }
}

// New validates tiles and builds a mesh. Tile areas missing from the input
// are derived from the NorthWest/SouthEast corners when present.
func New(name string, tiles []Tile, opts ...Option) (*Mesh, error) {
	m := &Mesh{
		name:    name,
		tiles:   make(map[TileID]*Tile, len(tiles)),
		index:   make(map[TileID]int, len(tiles)),
		approxK: DefaultApproximateNeighbors,
		approx:  make(map[TileID][]TileID),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.approxK < 1 {
		return nil, fmt.Errorf("%w: approximate neighbour count %d", ErrInvalidMesh, m.approxK)
	}

	for i := range tiles {
		t := tiles[i]
		if _, dup := m.tiles[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate tile %d in %s", ErrInvalidMesh, t.ID, name)
		}
		if t.NorthWest != nil && t.SouthEast != nil {
			if t.Area == 0 {
				t.Area = math.Abs(t.SouthEast.X-t.NorthWest.X) * math.Abs(t.SouthEast.Y-t.NorthWest.Y)
			}
			if t.Center == (Point{}) {
				t.Center = Point{
					X: (t.NorthWest.X + t.SouthEast.X) / 2,
					Y: (t.NorthWest.Y + t.SouthEast.Y) / 2,
					Z: (t.NorthWest.Z + t.SouthEast.Z) / 2,
				}
			}
		}
		if t.Area < 0 || math.IsNaN(t.Area) {
			return nil, fmt.Errorf("%w: tile %d has area %v", ErrInvalidMesh, t.ID, t.Area)
		}
		t.Neighbors = slices.Clone(t.Neighbors)
		m.tiles[t.ID] = &t
		m.ids = append(m.ids, t.ID)
		m.totalArea += t.Area
	}
	slices.Sort(m.ids)
	for i, id := range m.ids {
		m.index[id] = i
	}

	for _, id := range m.ids {
		t := m.tiles[id]
		for _, n := range t.Neighbors {
			if _, ok := m.tiles[n]; !ok {
				return nil, fmt.Errorf("%w: tile %d lists unknown neighbour %d", ErrInvalidMesh, id, n)
			}
		}
		if len(t.Neighbors) == 0 {
			m.approx[id] = m.nearest(id, m.approxK)
		}
	}
	return m, nil
}

// Name returns the map name.
func (m *Mesh) Name() string { return m.name }

// Radar returns the map's world-to-radar transform.
func (m *Mesh) Radar() Radar { return m.radar }

// Len returns the number of tiles.
func (m *Mesh) Len() int { return len(m.ids) }

// TileIDs returns every tile id in ascending order.
func (m *Mesh) TileIDs() []TileID { return slices.Clone(m.ids) }

// Contains reports whether id is a tile of the mesh.
func (m *Mesh) Contains(id TileID) bool {
	_, ok := m.tiles[id]
	return ok
}

// Tile returns the tile with the given id.
func (m *Mesh) Tile(id TileID) (Tile, bool) {
	t, ok := m.tiles[id]
	if !ok {
		return Tile{}, false
	}
	return *t, true
}

// Neighbors returns the graph neighbours of id. The slice must not be modified.
func (m *Mesh) Neighbors(id TileID) []TileID {
	if t, ok := m.tiles[id]; ok {
		return t.Neighbors
	}
	return nil
}

// ApproximateNeighbors returns the k tiles whose centres are closest to id's
// centre, nearest first, ties broken by id. Used to bridge mesh gaps where a
// tile has no graph neighbours.
func (m *Mesh) ApproximateNeighbors(id TileID) []TileID {
	if cached, ok := m.approx[id]; ok {
		return cached
	}
	if _, ok := m.tiles[id]; !ok {
		return nil
	}
	return m.nearest(id, m.approxK)
}

func (m *Mesh) nearest(id TileID, k int) []TileID {
	type cand struct {
		id TileID
		d  float64
	}
	origin := m.tiles[id].Center
	cands := make([]cand, 0, len(m.ids))
	for _, other := range m.ids {
		if other == id {
			continue
		}
		cands = append(cands, cand{other, origin.dist(m.tiles[other].Center)})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].d != cands[j].d {
			return cands[i].d < cands[j].d
		}
		return cands[i].id < cands[j].id
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]TileID, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}

// Area returns the polygon area of id, or 0 for unknown tiles.
func (m *Mesh) Area(id TileID) float64 {
	if t, ok := m.tiles[id]; ok {
		return t.Area
	}
	return 0
}

// Region returns the named region id belongs to.
func (m *Mesh) Region(id TileID) string {
	if t, ok := m.tiles[id]; ok {
		return t.Region
	}
	return ""
}

// TotalArea returns the summed area of every navigable tile.
func (m *Mesh) TotalArea() float64 { return m.totalArea }

// TilesInRegion returns the tiles whose region name starts with prefix.
func (m *Mesh) TilesInRegion(prefix string) []TileID {
	var out []TileID
	for _, id := range m.ids {
		if strings.HasPrefix(m.tiles[id].Region, prefix) {
			out = append(out, id)
		}
	}
	return out
}

// NearestTile returns the tile whose centre is closest to p.
func (m *Mesh) NearestTile(p Point) (TileID, error) {
	if len(m.ids) == 0 {
		return 0, fmt.Errorf("nearest tile on %s: %w", m.name, ErrEmptyMesh)
	}
	best, bestDist := m.ids[0], math.Inf(1)
	for _, id := range m.ids {
		if d := p.dist(m.tiles[id].Center); d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, nil
}
