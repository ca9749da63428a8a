package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/freeeve/roundscope/internal/aggregate"
	"github.com/freeeve/roundscope/pkg/spatial"
	"github.com/freeeve/roundscope/pkg/tile"
)

func TestSummarize(t *testing.T) {
	cfg := spatial.Config{MapName: "de_grid", TileLength: 10, RoutineLength: 2}
	tracker, err := spatial.NewRoutineTracker(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.AddRoutine(spatial.Routine{Player: "a", Side: "t", MapName: "de_grid", Positions: []spatial.Position{{X: 1, Y: 1}, {X: 12, Y: 1}}}); err != nil {
		t.Fatal(err)
	}
	positions, err := spatial.NewPositionCounter("de_grid", 10)
	if err != nil {
		t.Fatal(err)
	}
	positions.Add(1, 1)
	positions.Add(12, 1)
	positions.Add(13, 2)

	got := summarize(&aggregate.Result{
		Tracker:    tracker,
		Positions:  positions,
		Aggregated: []string{"a.json"},
		SkippedMap: []string{"b.json", "c.json"},
		Failed:     []string{"d.json"},
	}, "de_grid")

	want := summary{
		Map:        "de_grid",
		Aggregated: 1,
		Skipped:    2,
		Failed:     []string{"d.json"},
		Routines:   1,
		Distinct:   1,
		Positions:  3,
		Hottest:    &tile.Coord{X: 1, Y: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summarize mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	tracker, _ := spatial.NewRoutineTracker(spatial.Config{MapName: "de_grid", TileLength: 10, RoutineLength: 2})
	positions, _ := spatial.NewPositionCounter("de_grid", 10)
	got := summarize(&aggregate.Result{Tracker: tracker, Positions: positions}, "de_grid")
	if got.Hottest != nil || got.Routines != 0 {
		t.Errorf("summarize(empty) = %+v", got)
	}
}

func TestRadarForWithoutNavDir(t *testing.T) {
	r, err := radarFor("", "de_grid")
	if err != nil {
		t.Fatal(err)
	}
	if x, y := r.Apply(3, 4); x != 3 || y != 4 {
		t.Errorf("identity radar moved (3,4) to (%v,%v)", x, y)
	}
}

func TestWriteBlobs(t *testing.T) {
	cfg := spatial.Config{MapName: "de_grid", TileLength: 10, RoutineLength: 2}
	tracker, _ := spatial.NewRoutineTracker(cfg)
	tracker.AddRoutine(spatial.Routine{Player: "a", MapName: "de_grid", Positions: []spatial.Position{{X: 1, Y: 1}}})
	positions, _ := spatial.NewPositionCounter("de_grid", 10)
	positions.Add(1, 1)
	positions.Add(1, 2)
	res := &aggregate.Result{Tracker: tracker, Positions: positions}

	dir := t.TempDir()
	out, heatOut := filepath.Join(dir, "a.trk"), filepath.Join(dir, "a.heat")
	if err := writeBlobs(res, out, heatOut); err != nil {
		t.Fatalf("writeBlobs: %v", err)
	}
	blob, _ := os.ReadFile(out)
	if got, err := spatial.UnmarshalRoutineTracker(blob); err != nil || !spatial.EqualCounts(tracker, got) {
		t.Errorf("tracker file does not restore the tracker: %v", err)
	}
	blob, _ = os.ReadFile(heatOut)
	if got, err := spatial.UnmarshalPositionCounter(blob); err != nil || got.Total() != 2 {
		t.Errorf("heatmap file does not restore the heatmap: %v", err)
	}

	// Only the heatmap is requested.
	heatOnly := filepath.Join(dir, "b.heat")
	if err := writeBlobs(res, "", heatOnly); err != nil {
		t.Fatalf("writeBlobs(heat only): %v", err)
	}
	if _, err := os.Stat(heatOnly); err != nil {
		t.Errorf("heatmap not written: %v", err)
	}
	if err := writeBlobs(res, filepath.Join(dir, "missing", "a.trk"), ""); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}
