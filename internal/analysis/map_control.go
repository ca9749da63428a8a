package analysis

import (
	"fmt"
	"time"

	"github.com/freeeve/roundscope/internal/metrics"
	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/pkg/mapcontrol"
	"github.com/freeeve/roundscope/pkg/navmesh"
)

// MapControlName is the series name of MapControl.
const MapControlName = "map_control"

// Occupancy resolves every living player of f to the nearest tile of mesh.
func Occupancy(mesh *navmesh.Mesh, f *model.Frame) (mapcontrol.Occupancy, error) {
	var occ mapcontrol.Occupancy
	for _, side := range []model.Side{model.SideT, model.SideCT} {
		for _, p := range f.Team(side).Players {
			if !p.IsAlive {
				continue
			}
			id, err := mesh.NearestTile(navmesh.Point{X: p.X, Y: p.Y, Z: p.Z})
			if err != nil {
				return occ, fmt.Errorf("locate %s: %w", p.Name, err)
			}
			if side == model.SideT {
				occ.T = append(occ.T, id)
			} else {
				occ.CT = append(occ.CT, id)
			}
		}
	}
	return occ, nil
}

// MapControl scores each frame with the map-control estimator.
type MapControl struct {
	estimator *mapcontrol.Estimator
	mesh      *navmesh.Mesh
	params    mapcontrol.Params
	opts      mapcontrol.ReduceOptions
}

// NewMapControl binds the metric to the mesh of mapName.
func NewMapControl(meshes *navmesh.Registry, mapName string, p mapcontrol.Params, opts mapcontrol.ReduceOptions) (*MapControl, error) {
	mesh, err := meshes.Lookup(mapName)
	if err != nil {
		return nil, fmt.Errorf("map control metric: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("map control metric: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("map control metric: %w", err)
	}
	return &MapControl{
		estimator: mapcontrol.NewEstimator(meshes),
		mesh:      mesh,
		params:    p,
		opts:      opts,
	}, nil
}

func (m *MapControl) Name() string { return MapControlName }

func (m *MapControl) Reset() {}

func (m *MapControl) Compute(f *model.Frame) (float64, error) {
	start := time.Now()
	defer func() {
		metrics.EstimateDuration.WithLabelValues(m.mesh.Name()).Observe(time.Since(start).Seconds())
	}()
	occ, err := Occupancy(m.mesh, f)
	if err != nil {
		return 0, err
	}
	v, _, err := m.estimator.Metric(m.mesh.Name(), occ, m.params, m.opts)
	return v, err
}
