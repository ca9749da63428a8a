package mapcontrol

import (
	"fmt"

	"github.com/freeeve/roundscope/pkg/navmesh"
)

// MeshLookup resolves a map name to its navigation mesh.
type MeshLookup interface {
	Lookup(mapName string) (*navmesh.Mesh, error)
}

// Estimator binds Estimate and Reduce to a set of loaded meshes. It holds no
// mutable state and may be shared across goroutines.
type Estimator struct {
	meshes MeshLookup
}

// NewEstimator creates an Estimator over meshes.
func NewEstimator(meshes MeshLookup) *Estimator {
	return &Estimator{meshes: meshes}
}

// Estimate propagates control for occ on mapName.
func (e *Estimator) Estimate(mapName string, occ Occupancy, p Params) (*FrameControl, error) {
	m, err := e.meshes.Lookup(mapName)
	if err != nil {
		return nil, fmt.Errorf("estimate map control: %w", err)
	}
	return Estimate(m, mapName, occ, p)
}

// Reduce scores fc on the mesh it was estimated against.
func (e *Estimator) Reduce(fc *FrameControl, opts ReduceOptions) (float64, error) {
	m, err := e.meshes.Lookup(fc.MapName)
	if err != nil {
		return 0, fmt.Errorf("reduce map control: %w", err)
	}
	return Reduce(m, fc, opts)
}

// Metric estimates and reduces in one call.
func (e *Estimator) Metric(mapName string, occ Occupancy, p Params, opts ReduceOptions) (float64, *FrameControl, error) {
	if err := opts.Validate(); err != nil {
		return 0, nil, fmt.Errorf("map control %s: %w", mapName, err)
	}
	fc, err := e.Estimate(mapName, occ, p)
	if err != nil {
		return 0, nil, err
	}
	v, err := e.Reduce(fc, opts)
	if err != nil {
		return 0, fc, err
	}
	return v, fc, nil
}
