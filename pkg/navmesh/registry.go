package navmesh

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Registry holds the loaded mesh of every known map.
type Registry struct {
	mu     sync.RWMutex
	meshes map[string]*Mesh
}

// NewRegistry creates a Registry pre-populated with meshes.
func NewRegistry(meshes ...*Mesh) *Registry {
	r := &Registry{meshes: make(map[string]*Mesh, len(meshes))}
	for _, m := range meshes {
		r.meshes[m.Name()] = m
	}
	return r
}

// Register adds or replaces the mesh for m.Name().
func (r *Registry) Register(m *Mesh) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meshes[m.Name()] = m
}

// Lookup returns the mesh for mapName.
func (r *Registry) Lookup(mapName string) (*Mesh, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meshes[mapName]
	if !ok {
		return nil, fmt.Errorf("lookup %q: %w", mapName, ErrMapNotFound)
	}
	return m, nil
}

// Names returns the registered map names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.meshes))
	for n := range r.meshes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// meshFile is the on-disk JSON layout of a mesh.
type meshFile struct {
	MapName              string `json:"map_name"`
	Radar                Radar  `json:"radar"`
	ApproximateNeighbors int    `json:"approximate_neighbors,omitempty"`
	Tiles                []Tile `json:"tiles"`
}

// Decode reads a JSON mesh document.
func Decode(r io.Reader, opts ...Option) (*Mesh, error) {
	var f meshFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode mesh: %w", err)
	}
	if f.MapName == "" {
		return nil, fmt.Errorf("%w: missing map_name", ErrInvalidMesh)
	}
	base := []Option{WithRadar(f.Radar)}
	if f.ApproximateNeighbors > 0 {
		base = append(base, WithApproximateNeighbors(f.ApproximateNeighbors))
	}
	return New(f.MapName, f.Tiles, append(base, opts...)...)
}

// LoadFile reads a single JSON mesh file.
func LoadFile(path string, opts ...Option) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh: %w", err)
	}
	defer f.Close()
	m, err := Decode(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// LoadDir loads every *.json mesh in dir into a new Registry.
func LoadDir(dir string, opts ...Option) (*Registry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob meshes: %w", err)
	}
	sort.Strings(paths)
	reg := NewRegistry()
	for _, p := range paths {
		m, err := LoadFile(p, opts...)
		if err != nil {
			return nil, err
		}
		reg.Register(m)
	}
	return reg, nil
}
