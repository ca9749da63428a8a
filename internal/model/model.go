package model

import (
	"strings"
	"time"

	"github.com/freeeve/roundscope/pkg/spatial"
)

// Side is a team side within a round.
type Side string

const (
	SideT  Side = "t"
	SideCT Side = "ct"
)

// ParseSide normalizes side names such as "T", "CT" or "ct".
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "terrorist":
		return SideT, true
	case "ct", "counterterrorist", "counter-terrorist":
		return SideCT, true
	}
	return "", false
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideT {
		return SideCT
	}
	return SideT
}

// Game is a parsed match recording.
type Game struct {
	MatchID  string  `json:"matchID"`
	MapName  string  `json:"mapName"`
	TickRate int     `json:"tickRate,omitempty"`
	Rounds   []Round `json:"gameRounds"`
}

// Round is one round of a recording.
type Round struct {
	Number      int     `json:"roundNum"`
	CTTeam      string  `json:"ctTeam"`
	TTeam       string  `json:"tTeam"`
	CTScore     int     `json:"ctScore"`
	TScore      int     `json:"tScore"`
	EndCTScore  int     `json:"endCTScore"`
	EndTScore   int     `json:"endTScore"`
	WinningSide string  `json:"winningSide,omitempty"`
	Frames      []Frame `json:"frames"`
}

// Frame is a snapshot of a round at one tick.
type Frame struct {
	Tick      int        `json:"tick"`
	ClockTime string     `json:"clockTime,omitempty"`
	T         TeamFrame  `json:"t"`
	CT        TeamFrame  `json:"ct"`
	Bomb      *BombState `json:"bomb,omitempty"`
}

// Team returns the frame of the given side.
func (f *Frame) Team(s Side) *TeamFrame {
	if s == SideCT {
		return &f.CT
	}
	return &f.T
}

// TeamFrame holds one side's players at a tick.
type TeamFrame struct {
	TeamName string        `json:"teamName"`
	Side     string        `json:"side"`
	Players  []PlayerFrame `json:"players"`
}

// PlayerFrame is a player's state at a tick.
type PlayerFrame struct {
	Name      string  `json:"name"`
	SteamID   int64   `json:"steamID"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
	HP        int     `json:"hp"`
	IsAlive   bool    `json:"isAlive"`
}

// BombState is the bomb position at a tick.
type BombState struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Recording is a stored, analyzed recording.
type Recording struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	MapName   string    `json:"map_name"`
	Source    string    `json:"source,omitempty"`
	Rounds    int       `json:"rounds"`
	CreatedAt time.Time `json:"created_at"`
}

// Sample is one frame's metric value. A nil Value marks a frame the metric
// could not be computed for.
type Sample struct {
	Frame int      `json:"frame"`
	Value *float64 `json:"value"`
}

// MetricSeries is a per-round series of one metric.
type MetricSeries struct {
	RecordingID string    `json:"recording_id"`
	Metric      string    `json:"metric"`
	Round       int       `json:"round"`
	Samples     []Sample  `json:"samples"`
	CreatedAt   time.Time `json:"created_at"`
}

// TrackerSnapshot describes a stored routine tracker blob.
type TrackerSnapshot struct {
	ID            string    `json:"id"`
	MapName       string    `json:"map_name"`
	TileLength    float64   `json:"tile_length"`
	RoutineLength int       `json:"routine_length"`
	Recordings    int       `json:"recordings"`
	Routines      uint64    `json:"routines"`
	Positions     uint64    `json:"positions"`
	CreatedAt     time.Time `json:"created_at"`
}

// Config returns the tracker config the snapshot was built with.
func (s TrackerSnapshot) Config() spatial.Config {
	return spatial.Config{MapName: s.MapName, TileLength: s.TileLength, RoutineLength: s.RoutineLength}
}
