// Package analysis turns recorded rounds into per-frame metric series.
//
// Metrics fail per frame; a failing frame is logged and recorded as a sample
// without a value so the series stays aligned with the round's frames.
package analysis

import (
	"github.com/rs/zerolog/log"

	"github.com/freeeve/roundscope/internal/metrics"
	"github.com/freeeve/roundscope/internal/model"
)

// FrameMetric computes one value per frame. Implementations may carry state
// between consecutive frames of a round and must clear it in Reset.
type FrameMetric interface {
	Name() string
	Reset()
	Compute(f *model.Frame) (float64, error)
}

// SampleFunc receives every sample as it is computed.
type SampleFunc func(round int, metric string, s model.Sample)

// Analyzer runs a fixed set of metrics over rounds.
type Analyzer struct {
	metrics  []FrameMetric
	onSample SampleFunc
}

// NewAnalyzer creates an Analyzer for ms.
func NewAnalyzer(ms ...FrameMetric) *Analyzer {
	return &Analyzer{metrics: ms}
}

// OnSample registers fn to receive samples as they are produced.
func (a *Analyzer) OnSample(fn SampleFunc) {
	a.onSample = fn
}

// Round computes every metric over the frames of r, in frame order.
func (a *Analyzer) Round(r *model.Round) []model.MetricSeries {
	out := make([]model.MetricSeries, 0, len(a.metrics))
	for _, m := range a.metrics {
		m.Reset()
		series := model.MetricSeries{Metric: m.Name(), Round: r.Number, Samples: make([]model.Sample, 0, len(r.Frames))}
		for i := range r.Frames {
			s := model.Sample{Frame: i}
			v, err := m.Compute(&r.Frames[i])
			if err != nil {
				log.Warn().Err(err).Str("metric", m.Name()).Int("round", r.Number).Int("frame", i).Msg("Metric failed, recording NA")
				metrics.FrameErrors.WithLabelValues(m.Name()).Inc()
			} else {
				s.Value = &v
			}
			series.Samples = append(series.Samples, s)
			if a.onSample != nil {
				a.onSample(r.Number, m.Name(), s)
			}
		}
		out = append(out, series)
	}
	return out
}

// Game computes every metric for every round of g.
func (a *Analyzer) Game(g *model.Game) []model.MetricSeries {
	var out []model.MetricSeries
	for i := range g.Rounds {
		out = append(out, a.Round(&g.Rounds[i])...)
	}
	return out
}
