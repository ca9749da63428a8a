package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/pkg/spatial"
)

var opts = Options{MapName: "A", TileLength: 20, RoutineLength: 5, Workers: 3}

// game builds a recording whose players walk diagonally from a seed offset.
func game(matchID, mapName string, seed float64, rounds, frames int) *model.Game {
	g := &model.Game{MatchID: matchID, MapName: mapName}
	for r := range rounds {
		round := model.Round{Number: r + 1, CTTeam: "Blue", TTeam: "Red"}
		for f := range frames {
			step := float64(f) * 7
			round.Frames = append(round.Frames, model.Frame{
				T: model.TeamFrame{Players: []model.PlayerFrame{
					{Name: "r1", X: seed + step, Y: seed, IsAlive: true},
					{Name: "r2", X: seed, Y: seed + step + float64(r), IsAlive: true},
				}},
				CT: model.TeamFrame{Players: []model.PlayerFrame{
					{Name: "b1", X: 200 - step, Y: 200 - seed, IsAlive: true},
				}},
			})
		}
		g.Rounds = append(g.Rounds, round)
	}
	return g
}

func write(t *testing.T, dir, name string, g *model.Game) string {
	t.Helper()
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDirectoryMatchesPerRecordingMerge(t *testing.T) {
	dir := t.TempDir()
	g1 := game("m1", "A", 3, 3, 12)
	g2 := game("m2", "A", 17, 2, 9)
	p1 := write(t, dir, "m1.json", g1)
	p2 := write(t, dir, "m2.json", g2)

	res, err := Directory(context.Background(), dir, opts)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if diff := cmp.Diff([]string{p1, p2}, res.Aggregated); diff != "" {
		t.Errorf("Aggregated mismatch (-want +got):\n%s", diff)
	}

	t1, h1, err := FromGame(g1, p1, opts)
	if err != nil {
		t.Fatalf("FromGame(g1): %v", err)
	}
	t2, h2, err := FromGame(g2, p2, opts)
	if err != nil {
		t.Fatalf("FromGame(g2): %v", err)
	}
	reversed, err := spatial.Merge(t2, t1)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !spatial.EqualCounts(res.Tracker, reversed) {
		t.Error("directory aggregation differs from merging recordings in reverse order")
	}
	if res.Tracker.Len() == 0 {
		t.Error("aggregated tracker is empty")
	}

	heat, _ := spatial.MergePositions(h2, h1)
	if diff := cmp.Diff(heat.Counts(), res.Positions.Counts()); diff != "" {
		t.Errorf("heatmap mismatch (-want +got):\n%s", diff)
	}

	sources := res.Tracker.Sources()
	if len(sources) != 2 || sources[0].MatchID != "m1" || sources[1].MatchID != "m2" {
		t.Errorf("Sources = %+v, want m1 then m2", sources)
	}
}

func TestDirectorySkipsAndFailures(t *testing.T) {
	dir := t.TempDir()
	good := write(t, dir, "a.json", game("m1", "A", 0, 1, 5))
	other := write(t, dir, "b.json", game("m2", "B", 0, 1, 5))
	broken := filepath.Join(dir, "c.json")
	os.WriteFile(broken, []byte(`{"mapName":"A","gameRounds":[{"frames":`), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a recording"), 0o644)

	res, err := Directory(context.Background(), dir, opts)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if diff := cmp.Diff([]string{good}, res.Aggregated); diff != "" {
		t.Errorf("Aggregated (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{other}, res.SkippedMap); diff != "" {
		t.Errorf("SkippedMap (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{broken}, res.Failed); diff != "" {
		t.Errorf("Failed (-want +got):\n%s", diff)
	}
}

func TestDirectoryLimitTakesFirstMatches(t *testing.T) {
	dir := t.TempDir()
	var want []string
	for i, name := range []string{"r0.json", "r1.json", "r2.json", "r3.json", "r4.json", "r5.json"} {
		mapName := "A"
		if i == 1 {
			mapName = "B"
		}
		p := write(t, dir, name, game(name, mapName, float64(i*11), 1, 6))
		if mapName == "A" && len(want) < 3 {
			want = append(want, p)
		}
	}

	for _, workers := range []int{1, 2, 4, 10} {
		o := opts
		o.Limit = 3
		o.Workers = workers
		res, err := Directory(context.Background(), dir, o)
		if err != nil {
			t.Fatalf("workers=%d: Directory: %v", workers, err)
		}
		if diff := cmp.Diff(want, res.Aggregated); diff != "" {
			t.Errorf("workers=%d: Aggregated (-want +got):\n%s", workers, diff)
		}
		if got := len(res.Tracker.Sources()); got != 3 {
			t.Errorf("workers=%d: %d sources, want 3", workers, got)
		}
	}
}

func TestDirectoryWorkersAgree(t *testing.T) {
	dir := t.TempDir()
	for i := range 7 {
		write(t, dir, fmt.Sprintf("%c.json", 'a'+i), game("m", "A", float64(i*5), 2, 8))
	}
	o := opts
	o.Workers = 1
	seq, err := Directory(context.Background(), dir, o)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	o.Workers = 8
	par, err := Directory(context.Background(), dir, o)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if !spatial.EqualCounts(seq.Tracker, par.Tracker) {
		t.Error("parallel aggregation differs from sequential")
	}
}

func TestDirectoryEmptyAndInvalid(t *testing.T) {
	res, err := Directory(context.Background(), t.TempDir(), opts)
	if err != nil {
		t.Fatalf("Directory(empty): %v", err)
	}
	if res.Tracker == nil || res.Tracker.Len() != 0 || res.Tracker.Config().MapName != "A" {
		t.Errorf("empty directory tracker = %+v", res.Tracker)
	}

	bad := opts
	bad.TileLength = 0
	if _, err := Directory(context.Background(), t.TempDir(), bad); err == nil {
		t.Error("expected error for zero tile length")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	write(t, dir, "a.json", game("m", "A", 0, 1, 2))
	if _, err := Directory(ctx, dir, opts); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestFromGameKeepsDeadPlayers(t *testing.T) {
	g := game("m1", "A", 0, 1, 10)
	for fi := 5; fi < 10; fi++ {
		g.Rounds[0].Frames[fi].T.Players[1].IsAlive = false
	}
	tracker, heat, err := FromGame(g, "m1.json", opts)
	if err != nil {
		t.Fatalf("FromGame: %v", err)
	}
	// Three players over ten frames, dead or not.
	if got := heat.Total(); got != 30 {
		t.Errorf("heatmap total = %d, want 30", got)
	}
	// Two windows of five frames for each of the three players.
	if got := tracker.Len(); got != 6 {
		t.Errorf("tracker routines = %d, want 6", got)
	}
}
