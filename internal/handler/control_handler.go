package handler

import (
	"net/http"

	"github.com/freeeve/roundscope/internal/service"
	"github.com/freeeve/roundscope/pkg/mapcontrol"
	"github.com/freeeve/roundscope/pkg/navmesh"
)

// ControlHandler scores map control for ad hoc player positions.
type ControlHandler struct {
	analysis *service.AnalysisService
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(analysis *service.AnalysisService) *ControlHandler {
	return &ControlHandler{analysis: analysis}
}

// controlRequest carries positions and optional estimator overrides.
type controlRequest struct {
	T             []navmesh.Point `json:"t"`
	CT            []navmesh.Point `json:"ct"`
	AreaThreshold *float64        `json:"area_threshold"`
	Steps         *int            `json:"steps"`
	OccupiedOnly  *bool           `json:"occupied_only"`
	Norm          *int            `json:"norm"`
	Absolute      *bool           `json:"absolute"`
}

type controlResponse struct {
	Map     string  `json:"map"`
	Metric  float64 `json:"metric"`
	TTiles  int     `json:"t_tiles"`
	CTTiles int     `json:"ct_tiles"`
}

// Control handles POST /maps/{map}/control.
func (h *ControlHandler) Control(w http.ResponseWriter, r *http.Request) {
	mapName := r.PathValue("map")
	if !checkScope(w, r, mapName) {
		return
	}

	var req controlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, opts := h.analysis.Defaults()
	if req.AreaThreshold != nil {
		p.AreaThreshold = *req.AreaThreshold
	}
	if req.Steps != nil {
		p.Steps = *req.Steps
	}
	if req.OccupiedOnly != nil {
		opts.OccupiedOnly = *req.OccupiedOnly
	}
	if req.Norm != nil {
		opts.Norm = mapcontrol.Norm(*req.Norm)
	}
	if req.Absolute != nil {
		opts.Absolute = *req.Absolute
	}

	metric, fc, err := h.analysis.Control(mapName, req.T, req.CT, p, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, controlResponse{
		Map:     mapName,
		Metric:  metric,
		TTiles:  len(fc.T),
		CTTiles: len(fc.CT),
	})
}
