package handler

import (
	"net/http"

	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/internal/recording"
	"github.com/freeeve/roundscope/internal/service"
)

// RecordingHandler ingests recordings and serves their metric series.
type RecordingHandler struct {
	analysis *service.AnalysisService
}

// NewRecordingHandler creates a RecordingHandler.
func NewRecordingHandler(analysis *service.AnalysisService) *RecordingHandler {
	return &RecordingHandler{analysis: analysis}
}

// Create handles POST /recordings. The body is a recording document; the
// optional ?source= names where it came from.
func (h *RecordingHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	g, err := recording.Decode(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !checkScope(w, r, g.MapName) {
		return
	}

	rec, series, err := h.analysis.Analyze(r.Context(), g, r.URL.Query().Get("source"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"recording_id": rec.ID,
		"map":          rec.MapName,
		"rounds":       rec.Rounds,
		"series":       len(series),
	})
}

// Series handles GET /recordings/{id}/series/{metric}.
func (h *RecordingHandler) Series(w http.ResponseWriter, r *http.Request) {
	rec, err := h.analysis.Recording(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !checkScope(w, r, rec.MapName) {
		return
	}

	series, err := h.analysis.Series(r.Context(), rec.ID, r.PathValue("metric"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if series == nil {
		series = []model.MetricSeries{}
	}
	writeJSON(w, http.StatusOK, series)
}
