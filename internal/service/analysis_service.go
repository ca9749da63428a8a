package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/roundscope/internal/analysis"
	"github.com/freeeve/roundscope/internal/logger"
	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/internal/repository"
	"github.com/freeeve/roundscope/pkg/mapcontrol"
	"github.com/freeeve/roundscope/pkg/navmesh"
)

var ErrRecordingNotFound = errors.New("recording not found")

// Events broadcast while a recording is analyzed.
const (
	EventAnalysisStarted = "analysis_started"
	EventFrameMetric     = "frame_metric"
	EventAnalysisDone    = "analysis_done"
)

// AnalysisStartedEvent is the payload of EventAnalysisStarted.
type AnalysisStartedEvent struct {
	MatchID string `json:"match_id"`
	Rounds  int    `json:"rounds"`
}

// AnalysisDoneEvent is the payload of EventAnalysisDone.
type AnalysisDoneEvent struct {
	Series int `json:"series"`
}

// FrameMetricEvent is the payload of EventFrameMetric.
type FrameMetricEvent struct {
	Round  int      `json:"round"`
	Metric string   `json:"metric"`
	Frame  int      `json:"frame"`
	Value  *float64 `json:"value"`
}

// AnalysisService computes and stores per-frame metric series of recordings.
type AnalysisService struct {
	meshes      *navmesh.Registry
	recordings  repository.RecordingRepository
	series      repository.MetricRepository
	broadcaster Broadcaster
	params      mapcontrol.Params
	opts        mapcontrol.ReduceOptions
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(meshes *navmesh.Registry, recordings repository.RecordingRepository, series repository.MetricRepository, b Broadcaster, p mapcontrol.Params, opts mapcontrol.ReduceOptions) *AnalysisService {
	if b == nil {
		b = NoopBroadcaster{}
	}
	return &AnalysisService{meshes: meshes, recordings: recordings, series: series, broadcaster: b, params: p, opts: opts}
}

// frameMetrics builds the metric set for a map. Bombsite distance is only
// computed on meshes that name bombsite regions.
func (s *AnalysisService) frameMetrics(mapName string) ([]analysis.FrameMetric, error) {
	mc, err := analysis.NewMapControl(s.meshes, mapName, s.params, s.opts)
	if err != nil {
		return nil, err
	}
	ms := []analysis.FrameMetric{
		mc,
		analysis.TeamHP{Side: model.SideT},
		analysis.TeamHP{Side: model.SideCT},
		&analysis.Distance{Side: model.SideT, Cumulative: true},
		&analysis.Distance{Side: model.SideCT, Cumulative: true},
		analysis.VelocityDeviation{Side: model.SideT},
		analysis.VelocityDeviation{Side: model.SideCT},
	}
	mesh, _ := s.meshes.Lookup(mapName)
	bomb, err := analysis.NewBombsiteDistance(mesh)
	if err != nil {
		log.Debug().Err(err).Str("map", mapName).Msg("Bombsite distance disabled")
		return ms, nil
	}
	return append(ms, bomb), nil
}

// Analyze stores g as a recording and computes every metric for every round.
// Samples are broadcast to subscribers of the recording as they are produced.
func (s *AnalysisService) Analyze(ctx context.Context, g *model.Game, source string) (*model.Recording, []model.MetricSeries, error) {
	ms, err := s.frameMetrics(g.MapName)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze %s: %w", g.MatchID, err)
	}
	rec, err := s.recordings.Create(ctx, g.MatchID, g.MapName, source, len(g.Rounds))
	if err != nil {
		return nil, nil, err
	}
	l := logger.ForRecording(ctx, rec.ID, g.MapName)
	broadcast := func(eventType, metric string, data any) {
		s.broadcaster.BroadcastRecordingEvent(RecordingEvent{
			RecordingID: rec.ID, MapName: g.MapName, Type: eventType, Metric: metric, Data: data,
		})
	}
	broadcast(EventAnalysisStarted, "", AnalysisStartedEvent{MatchID: g.MatchID, Rounds: len(g.Rounds)})

	a := analysis.NewAnalyzer(ms...)
	a.OnSample(func(round int, metric string, smp model.Sample) {
		broadcast(EventFrameMetric, metric, FrameMetricEvent{
			Round: round, Metric: metric, Frame: smp.Frame, Value: smp.Value,
		})
	})

	var series []model.MetricSeries
	for i := range g.Rounds {
		if err := ctx.Err(); err != nil {
			l.Warn().Err(err).Int("round", g.Rounds[i].Number).Msg("Analysis cancelled")
			return nil, nil, err
		}
		series = append(series, a.Round(&g.Rounds[i])...)
	}
	for i := range series {
		series[i].RecordingID = rec.ID
	}
	if err := s.series.SaveSeries(ctx, rec.ID, series); err != nil {
		return nil, nil, err
	}
	broadcast(EventAnalysisDone, "", AnalysisDoneEvent{Series: len(series)})

	l.Info().Str("match", g.MatchID).Int("rounds", len(g.Rounds)).Int("series", len(series)).
		Msg("Recording analyzed")
	return rec, series, nil
}

// Recording returns a stored recording, or ErrRecordingNotFound.
func (s *AnalysisService) Recording(ctx context.Context, id string) (*model.Recording, error) {
	rec, err := s.recordings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecordingNotFound
	}
	return rec, nil
}

// HasMap reports whether a nav mesh is loaded for mapName.
func (s *AnalysisService) HasMap(mapName string) bool {
	_, err := s.meshes.Lookup(mapName)
	return err == nil
}

// Series returns the stored series of one metric for a recording.
func (s *AnalysisService) Series(ctx context.Context, recordingID, metric string) ([]model.MetricSeries, error) {
	if _, err := s.Recording(ctx, recordingID); err != nil {
		return nil, err
	}
	return s.series.ListSeries(ctx, recordingID, metric)
}

// Control computes the map control of a single set of player positions.
func (s *AnalysisService) Control(mapName string, t, ct []navmesh.Point, p mapcontrol.Params, opts mapcontrol.ReduceOptions) (float64, *mapcontrol.FrameControl, error) {
	mesh, err := s.meshes.Lookup(mapName)
	if err != nil {
		return 0, nil, err
	}
	var occ mapcontrol.Occupancy
	for _, pt := range t {
		id, err := mesh.NearestTile(pt)
		if err != nil {
			return 0, nil, err
		}
		occ.T = append(occ.T, id)
	}
	for _, pt := range ct {
		id, err := mesh.NearestTile(pt)
		if err != nil {
			return 0, nil, err
		}
		occ.CT = append(occ.CT, id)
	}
	return mapcontrol.NewEstimator(s.meshes).Metric(mapName, occ, p, opts)
}

// Defaults returns the estimator parameters the service was configured with.
func (s *AnalysisService) Defaults() (mapcontrol.Params, mapcontrol.ReduceOptions) {
	return s.params, s.opts
}
