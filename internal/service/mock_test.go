package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/internal/repository"
	"github.com/freeeve/roundscope/pkg/spatial"
)

type mockRecordingRepo struct {
	recordings map[string]*model.Recording
}

func newMockRecordingRepo() *mockRecordingRepo {
	return &mockRecordingRepo{recordings: make(map[string]*model.Recording)}
}

func (m *mockRecordingRepo) Create(_ context.Context, matchID, mapName, source string, rounds int) (*model.Recording, error) {
	r := &model.Recording{
		ID:        fmt.Sprintf("rec-%d", len(m.recordings)+1),
		MatchID:   matchID,
		MapName:   mapName,
		Source:    source,
		Rounds:    rounds,
		CreatedAt: time.Now(),
	}
	m.recordings[r.ID] = r
	return r, nil
}

func (m *mockRecordingRepo) FindByID(_ context.Context, id string) (*model.Recording, error) {
	r, ok := m.recordings[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *mockRecordingRepo) ListByMap(_ context.Context, mapName string) ([]model.Recording, error) {
	var out []model.Recording
	for _, r := range m.recordings {
		if r.MapName == mapName {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRecordingRepo) Delete(_ context.Context, id string) error {
	delete(m.recordings, id)
	return nil
}

type mockMetricRepo struct {
	series map[string][]model.MetricSeries
}

func newMockMetricRepo() *mockMetricRepo {
	return &mockMetricRepo{series: make(map[string][]model.MetricSeries)}
}

func (m *mockMetricRepo) SaveSeries(_ context.Context, recordingID string, series []model.MetricSeries) error {
	m.series[recordingID] = append(m.series[recordingID], series...)
	return nil
}

func (m *mockMetricRepo) ListSeries(_ context.Context, recordingID, metric string) ([]model.MetricSeries, error) {
	var out []model.MetricSeries
	for _, s := range m.series[recordingID] {
		if s.Metric == metric {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockMetricRepo) Metrics(_ context.Context, recordingID string) ([]string, error) {
	var names []string
	for _, s := range m.series[recordingID] {
		if !slices.Contains(names, s.Metric) {
			names = append(names, s.Metric)
		}
	}
	slices.Sort(names)
	return names, nil
}

// mockTrackerStore keeps snapshots as marshalled blobs, like the Redis store.
type mockTrackerStore struct {
	blobs map[string][]byte
	heats map[string][]byte
	meta  map[string]model.TrackerSnapshot
	seq   int

	// replaceErr, when set, fails Replace before anything is written.
	replaceErr error
}

func newMockTrackerStore() *mockTrackerStore {
	return &mockTrackerStore{
		blobs: make(map[string][]byte),
		heats: make(map[string][]byte),
		meta:  make(map[string]model.TrackerSnapshot),
	}
}

func (m *mockTrackerStore) Save(_ context.Context, t *spatial.RoutineTracker, heat *spatial.PositionCounter) (*model.TrackerSnapshot, error) {
	blob, err := t.MarshalBinary()
	if err != nil {
		return nil, err
	}
	m.seq++
	cfg := t.Config()
	snap := model.TrackerSnapshot{
		ID:            fmt.Sprintf("snap-%03d", m.seq),
		MapName:       cfg.MapName,
		TileLength:    cfg.TileLength,
		RoutineLength: cfg.RoutineLength,
		Recordings:    len(t.Sources()),
		Routines:      t.Len(),
	}
	if heat != nil {
		hb, err := heat.MarshalBinary()
		if err != nil {
			return nil, err
		}
		m.heats[snap.ID] = hb
		snap.Positions = heat.Total()
	}
	m.blobs[snap.ID] = blob
	m.meta[snap.ID] = snap
	return &snap, nil
}

func (m *mockTrackerStore) Replace(ctx context.Context, ids []string, t *spatial.RoutineTracker, heat *spatial.PositionCounter) (*model.TrackerSnapshot, error) {
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	for _, id := range ids {
		if _, ok := m.meta[id]; !ok {
			return nil, fmt.Errorf("%w: %s", repository.ErrSnapshotsChanged, id)
		}
	}
	snap, err := m.Save(ctx, t, heat)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		m.Delete(ctx, id)
	}
	return snap, nil
}

func (m *mockTrackerStore) Get(_ context.Context, id string) (*spatial.RoutineTracker, *spatial.PositionCounter, error) {
	blob, ok := m.blobs[id]
	if !ok {
		return nil, nil, nil
	}
	t, err := spatial.UnmarshalRoutineTracker(blob)
	if err != nil {
		return nil, nil, err
	}
	hb, ok := m.heats[id]
	if !ok {
		return t, nil, nil
	}
	heat, err := spatial.UnmarshalPositionCounter(hb)
	return t, heat, err
}

func (m *mockTrackerStore) List(_ context.Context, cfg spatial.Config) ([]model.TrackerSnapshot, error) {
	var out []model.TrackerSnapshot
	for _, s := range m.meta {
		if s.Config() == cfg {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b model.TrackerSnapshot) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *mockTrackerStore) Configs(_ context.Context) ([]spatial.Config, error) {
	var out []spatial.Config
	for _, s := range m.meta {
		if cfg := s.Config(); !slices.Contains(out, cfg) {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (m *mockTrackerStore) Delete(_ context.Context, id string) error {
	delete(m.blobs, id)
	delete(m.heats, id)
	delete(m.meta, id)
	return nil
}

// routines sums the routines of every stored snapshot of cfg.
func (m *mockTrackerStore) routines(cfg spatial.Config) uint64 {
	var n uint64
	for _, s := range m.meta {
		if s.Config() == cfg {
			n += s.Routines
		}
	}
	return n
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []RecordingEvent
}

func (b *recordingBroadcaster) BroadcastRecordingEvent(e RecordingEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}
