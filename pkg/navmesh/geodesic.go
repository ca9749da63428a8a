package navmesh

import (
	"container/heap"
	"fmt"
	"math"
)

type distItem struct {
	idx  int
	dist float64
}

// distHeap is a min-heap of tentative distances for Dijkstra.
type distHeap []distItem

func (h distHeap) Len() int           { return len(h) }
func (h distHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *distHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// shortestFrom runs Dijkstra from src over the directed tile graph, using the
// distance between tile centres as edge weight. Unreachable tiles are +Inf.
func (m *Mesh) shortestFrom(src int) []float64 {
	n := len(m.ids)
	dist := make([]float64, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[src] = 0

	h := &distHeap{{src, 0}}
	for h.Len() > 0 {
		cur := heap.Pop(h).(distItem)
		if cur.dist > dist[cur.idx] {
			continue
		}
		from := m.tiles[m.ids[cur.idx]]
		for _, nb := range from.Neighbors {
			ni := m.index[nb]
			d := cur.dist + from.Center.dist(m.tiles[nb].Center)
			if d < dist[ni] {
				dist[ni] = d
				heap.Push(h, distItem{ni, d})
			}
		}
	}
	return dist
}

func (m *Mesh) distanceMatrix() []float64 {
	m.distOnce.Do(func() {
		n := len(m.ids)
		m.dist = make([]float64, 0, n*n)
		for src := range n {
			m.dist = append(m.dist, m.shortestFrom(src)...)
		}
	})
	return m.dist
}

// CachedDistance returns the geodesic distance between a and b from the
// precomputed matrix. ok is false when the mesh was built without
// WithDistanceCache or either tile is unknown.
func (m *Mesh) CachedDistance(a, b TileID) (float64, bool) {
	if !m.cacheDistances {
		return 0, false
	}
	ai, ok1 := m.index[a]
	bi, ok2 := m.index[b]
	if !ok1 || !ok2 {
		return 0, false
	}
	return m.distanceMatrix()[ai*len(m.ids)+bi], true
}

// GeodesicDistance returns the shortest walking distance from a to b,
// consulting the cache first.
func (m *Mesh) GeodesicDistance(a, b TileID) (float64, error) {
	if d, ok := m.CachedDistance(a, b); ok {
		if math.IsInf(d, 1) {
			return d, fmt.Errorf("distance %d -> %d on %s: %w", a, b, m.name, ErrUnreachable)
		}
		return d, nil
	}
	ai, ok := m.index[a]
	if !ok {
		return 0, fmt.Errorf("distance from %d on %s: %w", a, m.name, ErrUnknownTile)
	}
	bi, ok := m.index[b]
	if !ok {
		return 0, fmt.Errorf("distance to %d on %s: %w", b, m.name, ErrUnknownTile)
	}
	d := m.shortestFrom(ai)[bi]
	if math.IsInf(d, 1) {
		return d, fmt.Errorf("distance %d -> %d on %s: %w", a, b, m.name, ErrUnreachable)
	}
	return d, nil
}
