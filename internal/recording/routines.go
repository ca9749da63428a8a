package recording

import (
	"fmt"

	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/pkg/navmesh"
	"github.com/freeeve/roundscope/pkg/spatial"
)

// BuildRoutines splits the frames of round into consecutive windows of
// routineLength frames (the last may be shorter) and returns, per window, one
// routine for every player of side listed in it, alive or not. Routines are
// ordered by window, then by the player's slot in idx. Positions are mapped
// through radar.
func BuildRoutines(round *model.Round, mapName string, side model.Side, routineLength int, radar navmesh.Radar, idx *PlayerIndex) ([]spatial.Routine, error) {
	if routineLength < 1 {
		return nil, fmt.Errorf("build routines: routine length %d", routineLength)
	}
	var out []spatial.Routine
	for start := 0; start < len(round.Frames); start += routineLength {
		end := min(start+routineLength, len(round.Frames))

		positions := make(map[int][]spatial.Position)
		names := make(map[int]string)
		maxSlot := -1
		for i := start; i < end; i++ {
			for _, p := range round.Frames[i].Team(side).Players {
				slot := idx.Index(side, p.Name)
				x, y := radar.Apply(p.X, p.Y)
				positions[slot] = append(positions[slot], spatial.Position{X: x, Y: y})
				names[slot] = p.Name
				maxSlot = max(maxSlot, slot)
			}
		}
		for slot := 0; slot <= maxSlot; slot++ {
			if len(positions[slot]) == 0 {
				continue
			}
			out = append(out, spatial.Routine{
				Player:    names[slot],
				Side:      string(side),
				MapName:   mapName,
				Positions: positions[slot],
			})
		}
	}
	return out, nil
}

// GameRoutines builds the routines of both sides for every round of g. A
// single PlayerIndex is carried through the game and swapped whenever the
// team names change sides.
func GameRoutines(g *model.Game, routineLength int, radar navmesh.Radar) ([]spatial.Routine, error) {
	idx := NewPlayerIndex()
	var out []spatial.Routine
	for i := range g.Rounds {
		r := &g.Rounds[i]
		if i > 0 && sidesSwapped(&g.Rounds[i-1], r) {
			idx.Swap()
		}
		for _, side := range []model.Side{model.SideT, model.SideCT} {
			routines, err := BuildRoutines(r, g.MapName, side, routineLength, radar, idx)
			if err != nil {
				return nil, fmt.Errorf("round %d: %w", r.Number, err)
			}
			out = append(out, routines...)
		}
	}
	return out, nil
}

func sidesSwapped(prev, cur *model.Round) bool {
	return prev.CTTeam != "" && prev.CTTeam == cur.TTeam && prev.TTeam == cur.CTTeam
}

// Source summarizes g for tracker provenance. Team records are keyed by the
// side each team started on; scores are the final ones.
func Source(g *model.Game, path string) spatial.Source {
	s := spatial.Source{Path: path, MatchID: g.MatchID, MapName: g.MapName, Rounds: len(g.Rounds)}
	if len(g.Rounds) == 0 {
		return s
	}
	first, last := g.Rounds[0], g.Rounds[len(g.Rounds)-1]
	score := func(team string) int {
		if team == last.CTTeam {
			return last.EndCTScore
		}
		return last.EndTScore
	}
	s.CT = spatial.TeamRecord{Name: first.CTTeam, Score: score(first.CTTeam), StartingSide: string(model.SideCT)}
	s.T = spatial.TeamRecord{Name: first.TTeam, Score: score(first.TTeam), StartingSide: string(model.SideT)}
	return s
}
