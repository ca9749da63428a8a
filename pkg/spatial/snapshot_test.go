package spatial

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTrackerSnapshotRoundTrip(t *testing.T) {
	orig := randomTracker(t, 42, 300)
	orig.AddSource(Source{
		Path:    "match.json",
		MatchID: "m-1",
		MapName: "de_a",
		Rounds:  24,
		CT:      TeamRecord{Name: "Blue", Score: 13, StartingSide: "ct"},
		T:       TeamRecord{Name: "Red", Score: 11, StartingSide: "t"},
	})

	blob, err := orig.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	got, err := UnmarshalRoutineTracker(blob)
	if err != nil {
		t.Fatalf("UnmarshalRoutineTracker: %v", err)
	}
	if !EqualCounts(orig, got) {
		t.Error("restored tracker counts differ")
	}
	if diff := cmp.Diff(orig.Sources(), got.Sources()); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}

	again, _ := got.MarshalBinary()
	if !bytes.Equal(blob, again) {
		t.Error("re-encoding a restored tracker changed the blob")
	}
}

func TestMergeAfterRestore(t *testing.T) {
	a := randomTracker(t, 1, 100)
	b := randomTracker(t, 2, 100)
	blobA, _ := a.MarshalBinary()
	blobB, _ := b.MarshalBinary()
	ra, _ := UnmarshalRoutineTracker(blobA)
	rb, _ := UnmarshalRoutineTracker(blobB)

	want, _ := Merge(a, b)
	got, err := Merge(ra, rb)
	if err != nil {
		t.Fatalf("Merge restored: %v", err)
	}
	if !EqualCounts(want, got) {
		t.Error("merge of restored trackers differs from merge of originals")
	}
}

func TestEmptyTrackerSnapshot(t *testing.T) {
	orig := newTracker(t, testConfig)
	blob, err := orig.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	got, err := UnmarshalRoutineTracker(blob)
	if err != nil {
		t.Fatalf("UnmarshalRoutineTracker: %v", err)
	}
	if got.Config() != testConfig || got.Len() != 0 {
		t.Errorf("restored %v with %d routines", got.Config(), got.Len())
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	for _, blob := range [][]byte{nil, []byte("not gzip")} {
		if _, err := UnmarshalRoutineTracker(blob); err == nil {
			t.Errorf("UnmarshalRoutineTracker(%q) succeeded", blob)
		}
		if _, err := UnmarshalPositionCounter(blob); err == nil {
			t.Errorf("UnmarshalPositionCounter(%q) succeeded", blob)
		}
	}
}

func TestPositionSnapshotRoundTrip(t *testing.T) {
	c, _ := NewPositionCounter("de_a", 12.5)
	for i := range 50 {
		c.Add(float64(i*7%90), float64(i*13%70))
	}
	blob, err := c.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	got, err := UnmarshalPositionCounter(blob)
	if err != nil {
		t.Fatalf("UnmarshalPositionCounter: %v", err)
	}
	if got.MapName() != "de_a" || got.TileLength() != 12.5 {
		t.Errorf("restored config %s/%v", got.MapName(), got.TileLength())
	}
	if diff := cmp.Diff(c.Counts(), got.Counts()); diff != "" {
		t.Errorf("Counts mismatch (-want +got):\n%s", diff)
	}
}
