package navmesh

// Radar maps world coordinates onto a map's overview image.
type Radar struct {
	PosX  float64 `json:"pos_x"`
	PosY  float64 `json:"pos_y"`
	Scale float64 `json:"scale"`
}

// Apply converts a world-space point to radar space. The zero Radar is the
// identity transform.
func (r Radar) Apply(x, y float64) (float64, float64) {
	if r.Scale == 0 {
		return x, y
	}
	return (x - r.PosX) / r.Scale, (r.PosY - y) / r.Scale
}
