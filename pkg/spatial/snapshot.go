package spatial

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"slices"

	"github.com/freeeve/roundscope/pkg/tile"
)

const snapshotVersion = 1

type routineEntry struct {
	Origin tile.Coord
	Key    RoutineKey
	Count  uint64
}

type trackerSnapshot struct {
	Version  int
	Config   Config
	Routines []routineEntry
	Sources  []Source
}

type positionEntry struct {
	Tile  tile.Coord
	Count uint64
}

type positionSnapshot struct {
	Version    int
	MapName    string
	TileLength float64
	Counts     []positionEntry
}

// encode writes v as gob inside gzip.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(v); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(blob []byte, v any) error {
	if len(blob) == 0 {
		return fmt.Errorf("empty snapshot blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()
	if err := gob.NewDecoder(gz).Decode(v); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return nil
}

// MarshalBinary encodes the tracker as an opaque, compressed blob. Entries
// are written in a fixed order so equal trackers produce equal blobs.
func (t *RoutineTracker) MarshalBinary() ([]byte, error) {
	snap := trackerSnapshot{Version: snapshotVersion, Config: t.cfg, Sources: t.sources}
	for _, origin := range t.Origins() {
		for _, rc := range t.TopRoutines(origin, -1) {
			snap.Routines = append(snap.Routines, routineEntry{Origin: origin, Key: rc.Key, Count: rc.Count})
		}
	}
	blob, err := encode(snap)
	if err != nil {
		return nil, fmt.Errorf("encode tracker %s: %w", t.cfg, err)
	}
	return blob, nil
}

// UnmarshalBinary replaces t with the tracker encoded in blob.
func (t *RoutineTracker) UnmarshalBinary(blob []byte) error {
	var snap trackerSnapshot
	if err := decode(blob, &snap); err != nil {
		return err
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported tracker snapshot version %d", snap.Version)
	}
	restored, err := NewRoutineTracker(snap.Config)
	if err != nil {
		return fmt.Errorf("restore tracker: %w", err)
	}
	for _, e := range snap.Routines {
		byKey := restored.routines[e.Origin]
		if byKey == nil {
			byKey = make(map[RoutineKey]uint64)
			restored.routines[e.Origin] = byKey
		}
		byKey[e.Key] += e.Count
	}
	restored.sources = snap.Sources
	*t = *restored
	return nil
}

// UnmarshalRoutineTracker decodes a blob produced by MarshalBinary.
func UnmarshalRoutineTracker(blob []byte) (*RoutineTracker, error) {
	t := &RoutineTracker{}
	if err := t.UnmarshalBinary(blob); err != nil {
		return nil, err
	}
	return t, nil
}

// MarshalBinary encodes the heatmap as an opaque, compressed blob.
func (c *PositionCounter) MarshalBinary() ([]byte, error) {
	snap := positionSnapshot{Version: snapshotVersion, MapName: c.mapName, TileLength: c.tileLength}
	for k, v := range c.counts {
		snap.Counts = append(snap.Counts, positionEntry{Tile: k, Count: v})
	}
	slices.SortFunc(snap.Counts, func(a, b positionEntry) int { return tile.Compare(a.Tile, b.Tile) })
	blob, err := encode(snap)
	if err != nil {
		return nil, fmt.Errorf("encode heatmap %s: %w", c.mapName, err)
	}
	return blob, nil
}

// UnmarshalPositionCounter decodes a blob produced by PositionCounter.MarshalBinary.
func UnmarshalPositionCounter(blob []byte) (*PositionCounter, error) {
	var snap positionSnapshot
	if err := decode(blob, &snap); err != nil {
		return nil, err
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported heatmap snapshot version %d", snap.Version)
	}
	c, err := NewPositionCounter(snap.MapName, snap.TileLength)
	if err != nil {
		return nil, fmt.Errorf("restore heatmap: %w", err)
	}
	for _, e := range snap.Counts {
		c.counts[e.Tile] += e.Count
	}
	return c, nil
}
