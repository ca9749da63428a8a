package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/pkg/mapcontrol"
	"github.com/freeeve/roundscope/pkg/navmesh"
)

var errOdd = errors.New("odd frame")

// tickMetric returns the tick, failing on odd ticks.
type tickMetric struct{ resets int }

func (m *tickMetric) Name() string { return "tick" }
func (m *tickMetric) Reset()       { m.resets++ }
func (m *tickMetric) Compute(f *model.Frame) (float64, error) {
	if f.Tick%2 == 1 {
		return 0, errOdd
	}
	return float64(f.Tick), nil
}

func player(name string, x, y float64) model.PlayerFrame {
	return model.PlayerFrame{Name: name, X: x, Y: y, HP: 100, IsAlive: true}
}

func values(s model.MetricSeries) []any {
	out := make([]any, len(s.Samples))
	for i, smp := range s.Samples {
		if smp.Value == nil {
			out[i] = "NA"
		} else {
			out[i] = *smp.Value
		}
	}
	return out
}

func TestAnalyzerRecordsMissingFrames(t *testing.T) {
	m := &tickMetric{}
	a := NewAnalyzer(m)
	var seen int
	a.OnSample(func(round int, metric string, s model.Sample) {
		if round != 3 || metric != "tick" {
			t.Errorf("OnSample(%d, %q)", round, metric)
		}
		seen++
	})
	r := &model.Round{Number: 3, Frames: []model.Frame{{Tick: 0}, {Tick: 1}, {Tick: 2}, {Tick: 3}}}
	series := a.Round(r)
	if len(series) != 1 {
		t.Fatalf("got %d series, want 1", len(series))
	}
	want := []any{0.0, "NA", 2.0, "NA"}
	if diff := cmp.Diff(want, values(series[0])); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
	if series[0].Round != 3 || series[0].Metric != "tick" {
		t.Errorf("series = round %d metric %q", series[0].Round, series[0].Metric)
	}
	if seen != 4 {
		t.Errorf("OnSample called %d times, want 4", seen)
	}
}

func TestAnalyzerGameResetsPerRound(t *testing.T) {
	m := &tickMetric{}
	g := &model.Game{Rounds: []model.Round{
		{Number: 1, Frames: []model.Frame{{Tick: 0}}},
		{Number: 2, Frames: []model.Frame{{Tick: 2}}},
	}}
	series := NewAnalyzer(m).Game(g)
	if len(series) != 2 {
		t.Fatalf("got %d series, want 2", len(series))
	}
	if m.resets != 2 {
		t.Errorf("resets = %d, want 2", m.resets)
	}
}

func TestTeamHP(t *testing.T) {
	dead := player("c", 0, 0)
	dead.IsAlive = false
	f := &model.Frame{T: model.TeamFrame{Players: []model.PlayerFrame{player("a", 0, 0), player("b", 0, 0), dead}}}
	f.T.Players[1].HP = 42
	got, err := TeamHP{Side: model.SideT}.Compute(f)
	if err != nil || got != 142 {
		t.Errorf("TeamHP = %v, %v; want 142", got, err)
	}
	got, _ = TeamHP{Side: model.SideCT}.Compute(f)
	if got != 0 {
		t.Errorf("TeamHP(ct) = %v, want 0", got)
	}
}

func TestDistance(t *testing.T) {
	frames := []model.Frame{
		{CT: model.TeamFrame{Players: []model.PlayerFrame{player("a", 0, 0), player("b", 5, 5)}}},
		{CT: model.TeamFrame{Players: []model.PlayerFrame{player("a", 1, 2), player("b", 5, 4)}}},
		{CT: model.TeamFrame{Players: []model.PlayerFrame{player("a", 1, 2), player("b", 7, 4)}}},
	}
	cases := []struct {
		cumulative bool
		want       []float64
	}{
		{false, []float64{0, 4, 2}},
		{true, []float64{0, 4, 6}},
	}
	for _, c := range cases {
		m := &Distance{Side: model.SideCT, Cumulative: c.cumulative}
		for round := range 2 {
			m.Reset()
			for i := range frames {
				got, err := m.Compute(&frames[i])
				if err != nil || got != c.want[i] {
					t.Errorf("cumulative=%v round %d frame %d = %v, %v; want %v", c.cumulative, round, i, got, err, c.want[i])
				}
			}
		}
	}
}

func TestVelocityDeviation(t *testing.T) {
	f := &model.Frame{T: model.TeamFrame{Players: []model.PlayerFrame{
		{VelocityX: 1, VelocityY: -1},
		{VelocityX: -4, VelocityY: 0},
	}}}
	got, err := VelocityDeviation{Side: model.SideT}.Compute(f)
	if err != nil || math.Abs(got-1) > 1e-12 {
		t.Errorf("VelocityDeviation = %v, %v; want 1", got, err)
	}
	if _, err := (VelocityDeviation{Side: model.SideCT}).Compute(f); !errors.Is(err, ErrNoPlayers) {
		t.Errorf("empty side err = %v, want ErrNoPlayers", err)
	}
}

func lineMesh(t *testing.T) *navmesh.Mesh {
	t.Helper()
	var tiles []navmesh.Tile
	for i := range 4 {
		tile := navmesh.Tile{ID: navmesh.TileID(i), Area: 1, Center: navmesh.Point{X: float64(i)}}
		if i > 0 {
			tile.Neighbors = append(tile.Neighbors, navmesh.TileID(i-1))
		}
		if i < 3 {
			tile.Neighbors = append(tile.Neighbors, navmesh.TileID(i+1))
		}
		tiles = append(tiles, tile)
	}
	tiles[3].Region = "BombsiteA"
	m, err := navmesh.New("de_line", tiles)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestBombsiteDistance(t *testing.T) {
	m, err := NewBombsiteDistance(lineMesh(t))
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Compute(&model.Frame{Bomb: &model.BombState{X: 0.2}})
	if err != nil || got != 3 {
		t.Errorf("bomb distance = %v, %v; want 3", got, err)
	}
	if _, err := m.Compute(&model.Frame{}); !errors.Is(err, ErrNoBomb) {
		t.Errorf("no bomb err = %v, want ErrNoBomb", err)
	}

	grid, _ := navmesh.NewGrid("de_grid", 2, 2, 1)
	if _, err := NewBombsiteDistance(grid); !errors.Is(err, ErrNoBombsite) {
		t.Errorf("no bombsite err = %v, want ErrNoBombsite", err)
	}
}

func TestOccupancy(t *testing.T) {
	grid, _ := navmesh.NewGrid("de_grid", 3, 3, 1)
	dead := player("x", 1.5, 1.5)
	dead.IsAlive = false
	f := &model.Frame{
		T:  model.TeamFrame{Players: []model.PlayerFrame{player("a", 0.4, 0.6), dead}},
		CT: model.TeamFrame{Players: []model.PlayerFrame{player("b", 2.5, 2.4)}},
	}
	occ, err := Occupancy(grid, f)
	if err != nil {
		t.Fatal(err)
	}
	want := mapcontrol.Occupancy{T: []navmesh.TileID{0}, CT: []navmesh.TileID{8}}
	if diff := cmp.Diff(want, occ); diff != "" {
		t.Errorf("Occupancy mismatch (-want +got):\n%s", diff)
	}
}

func TestMapControl(t *testing.T) {
	grid, _ := navmesh.NewGrid("de_grid", 3, 3, 1)
	reg := navmesh.NewRegistry(grid)

	whole, err := NewMapControl(reg, "de_grid", mapcontrol.Params{AreaThreshold: 1, Steps: 10}, mapcontrol.DefaultReduceOptions())
	if err != nil {
		t.Fatal(err)
	}
	f := &model.Frame{T: model.TeamFrame{Players: []model.PlayerFrame{player("a", 1.5, 1.5)}}}
	if got, err := whole.Compute(f); err != nil || math.Abs(got-1) > 1e-12 {
		t.Errorf("lone T control = %v, %v; want 1", got, err)
	}

	tight, _ := NewMapControl(reg, "de_grid", mapcontrol.Params{AreaThreshold: 0.1, Steps: 10}, mapcontrol.DefaultReduceOptions())
	f.CT.Players = []model.PlayerFrame{player("b", 2.5, 2.5)}
	f.T.Players[0] = player("a", 0.5, 0.5)
	if got, err := tight.Compute(f); err != nil || got != 0 {
		t.Errorf("opposed corners control = %v, %v; want 0", got, err)
	}

	if _, err := NewMapControl(reg, "de_missing", mapcontrol.DefaultParams(), mapcontrol.DefaultReduceOptions()); !errors.Is(err, navmesh.ErrMapNotFound) {
		t.Errorf("unknown map err = %v, want ErrMapNotFound", err)
	}
	if _, err := NewMapControl(reg, "de_grid", mapcontrol.Params{}, mapcontrol.DefaultReduceOptions()); !errors.Is(err, mapcontrol.ErrInvalidParameter) {
		t.Errorf("bad params err = %v, want ErrInvalidParameter", err)
	}
}
