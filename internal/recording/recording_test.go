package recording

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/pkg/navmesh"
	"github.com/freeeve/roundscope/pkg/spatial"
)

func player(name string, x, y float64) model.PlayerFrame {
	return model.PlayerFrame{Name: name, X: x, Y: y, HP: 100, IsAlive: true}
}

func frame(t, ct []model.PlayerFrame) model.Frame {
	return model.Frame{T: model.TeamFrame{Players: t}, CT: model.TeamFrame{Players: ct}}
}

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	g := model.Game{MatchID: "m1", MapName: "de_a", Rounds: []model.Round{{Number: 1, Frames: []model.Frame{frame(nil, nil)}}}}
	got, err := Load(writeJSON(t, dir, "m1.json", g))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(&g, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"matchID": "x"`), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected error for truncated recording")
	}
	noMap := writeJSON(t, dir, "nomap.json", model.Game{MatchID: "m2"})
	if _, err := Load(noMap); !errors.Is(err, ErrInvalidRecording) {
		t.Errorf("Load without map error = %v, want ErrInvalidRecording", err)
	}
}

func TestPeekMapName(t *testing.T) {
	dir := t.TempDir()
	head := writeJSON(t, dir, "head.json", model.Game{MatchID: "m1", MapName: "de_a"})
	if got, err := PeekMapName(head); err != nil || got != "de_a" {
		t.Errorf("PeekMapName(head) = %q, %v; want de_a", got, err)
	}

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"late", `{"padding":"` + strings.Repeat("x", 2*peekSize) + `","gameRounds":[],"mapName":"de_b"}`, "de_b"},
		{"nested first", `{"meta":{"mapName":"de_nested"},"mapName":"de_c"}`, "de_c"},
		{"nested in rounds", `{"gameRounds":[{"mapName":"de_x"}],"mapName":"de_d"}`, "de_d"},
		{"escaped key in string", `{"note":"\"mapName\":\"de_y\"","mapName":"de_e"}`, "de_e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".json")
			if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if got, err := PeekMapName(path); err != nil || got != tt.want {
				t.Errorf("PeekMapName = %q, %v; want %s", got, err, tt.want)
			}
		})
	}

	missing := filepath.Join(dir, "missing.json")
	os.WriteFile(missing, []byte(`{"matchID":"x","meta":{"mapName":"de_z"}}`), 0o644)
	if _, err := PeekMapName(missing); !errors.Is(err, ErrInvalidRecording) {
		t.Errorf("PeekMapName(missing) error = %v, want ErrInvalidRecording", err)
	}
}

func TestBuildRoutinesChunks(t *testing.T) {
	// Seven frames with routine length 3 give windows [0,3), [3,6), [6,7).
	// bob dies after frame 3; dead players keep contributing routines.
	var frames []model.Frame
	for i := range 7 {
		ts := []model.PlayerFrame{player("alice", float64(i), 0)}
		if i < 4 {
			ts = append(ts, player("bob", 100, float64(i)))
		} else {
			dead := player("bob", 100, float64(i))
			dead.IsAlive = false
			ts = append(ts, dead)
		}
		frames = append(frames, frame(ts, []model.PlayerFrame{player("carol", 50, 50)}))
	}
	round := &model.Round{Number: 1, Frames: frames}

	idx := NewPlayerIndex()
	got, err := BuildRoutines(round, "de_a", model.SideT, 3, navmesh.Radar{}, idx)
	if err != nil {
		t.Fatalf("BuildRoutines: %v", err)
	}
	want := []spatial.Routine{
		{Player: "alice", Side: "t", MapName: "de_a", Positions: []spatial.Position{{X: 0}, {X: 1}, {X: 2}}},
		{Player: "bob", Side: "t", MapName: "de_a", Positions: []spatial.Position{{X: 100, Y: 0}, {X: 100, Y: 1}, {X: 100, Y: 2}}},
		{Player: "alice", Side: "t", MapName: "de_a", Positions: []spatial.Position{{X: 3}, {X: 4}, {X: 5}}},
		{Player: "bob", Side: "t", MapName: "de_a", Positions: []spatial.Position{{X: 100, Y: 3}, {X: 100, Y: 4}, {X: 100, Y: 5}}},
		{Player: "alice", Side: "t", MapName: "de_a", Positions: []spatial.Position{{X: 6}}},
		{Player: "bob", Side: "t", MapName: "de_a", Positions: []spatial.Position{{X: 100, Y: 6}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildRoutines mismatch (-want +got):\n%s", diff)
	}
	for _, r := range got {
		if len(r.Positions) == 0 || len(r.Positions) > 3 {
			t.Errorf("routine of %s has %d positions", r.Player, len(r.Positions))
		}
	}

	if _, err := BuildRoutines(round, "de_a", model.SideT, 0, navmesh.Radar{}, idx); err == nil {
		t.Error("expected error for routine length 0")
	}
}

func TestBuildRoutinesRadar(t *testing.T) {
	round := &model.Round{Frames: []model.Frame{frame(nil, []model.PlayerFrame{player("carol", 110, 90)})}}
	got, _ := BuildRoutines(round, "de_a", model.SideCT, 5, navmesh.Radar{PosX: 100, PosY: 100, Scale: 2}, NewPlayerIndex())
	if len(got) != 1 || got[0].Positions[0] != (spatial.Position{X: 5, Y: 5}) {
		t.Errorf("BuildRoutines with radar = %+v, want one routine at (5,5)", got)
	}
}

func TestPlayerIndexSwap(t *testing.T) {
	idx := NewPlayerIndex()
	idx.Index(model.SideT, "alice")
	idx.Index(model.SideT, "bob")
	idx.Index(model.SideCT, "carol")
	if got := idx.Index(model.SideT, "alice"); got != 0 {
		t.Errorf("Index(alice) = %d, want 0", got)
	}
	idx.Swap()
	if diff := cmp.Diff([]string{"alice", "bob"}, idx.Players(model.SideCT)); diff != "" {
		t.Errorf("CT after swap (-want +got):\n%s", diff)
	}
	if got := idx.Index(model.SideT, "carol"); got != 0 {
		t.Errorf("Index(t, carol) after swap = %d, want 0", got)
	}
}

func TestGameRoutinesAndSource(t *testing.T) {
	g := &model.Game{
		MatchID: "m1",
		MapName: "de_a",
		Rounds: []model.Round{
			{Number: 1, CTTeam: "Blue", TTeam: "Red", EndCTScore: 1, Frames: []model.Frame{
				frame([]model.PlayerFrame{player("r1", 0, 0)}, []model.PlayerFrame{player("b1", 9, 9)}),
			}},
			{Number: 2, CTTeam: "Red", TTeam: "Blue", CTScore: 0, TScore: 1, EndCTScore: 1, EndTScore: 1, Frames: []model.Frame{
				frame([]model.PlayerFrame{player("b1", 9, 9)}, []model.PlayerFrame{player("r1", 0, 0)}),
			}},
		},
	}
	routines, err := GameRoutines(g, 5, navmesh.Radar{})
	if err != nil {
		t.Fatalf("GameRoutines: %v", err)
	}
	if len(routines) != 4 {
		t.Fatalf("GameRoutines returned %d routines, want 4", len(routines))
	}
	if routines[2].Player != "b1" || routines[2].Side != "t" {
		t.Errorf("round 2 first routine = %s/%s, want b1/t", routines[2].Player, routines[2].Side)
	}

	src := Source(g, "m1.json")
	want := spatial.Source{
		Path:    "m1.json",
		MatchID: "m1",
		MapName: "de_a",
		Rounds:  2,
		CT:      spatial.TeamRecord{Name: "Blue", Score: 1, StartingSide: "ct"},
		T:       spatial.TeamRecord{Name: "Red", Score: 1, StartingSide: "t"},
	}
	if diff := cmp.Diff(want, src); diff != "" {
		t.Errorf("Source mismatch (-want +got):\n%s", diff)
	}
}
