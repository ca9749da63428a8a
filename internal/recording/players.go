package recording

import "github.com/freeeve/roundscope/internal/model"

// PlayerIndex assigns each player a stable slot per side. It is owned by the
// caller and threaded through every round of one recording; Swap moves the
// slots across when teams change sides.
type PlayerIndex struct {
	slots map[model.Side]map[string]int
}

// NewPlayerIndex creates an empty index.
func NewPlayerIndex() *PlayerIndex {
	return &PlayerIndex{slots: map[model.Side]map[string]int{
		model.SideT:  {},
		model.SideCT: {},
	}}
}

// Index returns the slot of name on side, assigning the next free one for a
// player not seen before.
func (p *PlayerIndex) Index(side model.Side, name string) int {
	m := p.slots[side]
	if i, ok := m[name]; ok {
		return i
	}
	i := len(m)
	m[name] = i
	return i
}

// Players returns the players of side ordered by slot.
func (p *PlayerIndex) Players(side model.Side) []string {
	m := p.slots[side]
	out := make([]string, len(m))
	for name, i := range m {
		out[i] = name
	}
	return out
}

// Swap exchanges the T and CT slots.
func (p *PlayerIndex) Swap() {
	p.slots[model.SideT], p.slots[model.SideCT] = p.slots[model.SideCT], p.slots[model.SideT]
}
