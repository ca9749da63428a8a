package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/freeeve/roundscope/internal/logger"
	"github.com/freeeve/roundscope/internal/service"
	"github.com/freeeve/roundscope/pkg/spatial"
)

// TrackerHandler aggregates recording directories into routine trackers.
type TrackerHandler struct {
	trackers *service.TrackerService
	root     string
	defaults spatial.Config
}

// NewTrackerHandler creates a TrackerHandler. Aggregation requests name
// directories relative to root; defaults fill in omitted tile and routine
// lengths.
func NewTrackerHandler(trackers *service.TrackerService, root string, defaults spatial.Config) *TrackerHandler {
	return &TrackerHandler{trackers: trackers, root: root, defaults: defaults}
}

// Aggregate handles POST /trackers.
func (h *TrackerHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	var req service.AggregateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MapName == "" {
		writeError(w, http.StatusBadRequest, "map is required")
		return
	}
	if !checkScope(w, r, req.MapName) {
		return
	}
	if req.Dir == "" {
		req.Dir = "."
	}
	dir, err := resolveDir(h.root, req.Dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "dir not found")
		return
	case errors.Is(err, errOutsideRoot):
		l := logger.ForRequest(r.Context())
		l.Warn().Str("dir", req.Dir).Msg("Rejected aggregation directory outside root")
		writeError(w, http.StatusBadRequest, "dir must be a relative path inside the recordings directory")
		return
	case errors.Is(err, errNotDir):
		writeError(w, http.StatusBadRequest, "dir is not a directory")
		return
	case err != nil:
		writeServiceError(w, err)
		return
	}
	req.Dir = dir
	if req.TileLength == 0 {
		req.TileLength = h.defaults.TileLength
	}
	if req.RoutineLength == 0 {
		req.RoutineLength = h.defaults.RoutineLength
	}

	res, err := h.trackers.Aggregate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Combined handles GET /trackers/{map}?tile_length=&routine_length=&top=.
func (h *TrackerHandler) Combined(w http.ResponseWriter, r *http.Request) {
	cfg := h.defaults
	cfg.MapName = r.PathValue("map")
	if !checkScope(w, r, cfg.MapName) {
		return
	}

	q := r.URL.Query()
	if v := q.Get("tile_length"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tile_length")
			return
		}
		cfg.TileLength = f
	}
	if v := q.Get("routine_length"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid routine_length")
			return
		}
		cfg.RoutineLength = n
	}
	top := 10
	if v := q.Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid top")
			return
		}
		top = n
	}

	view, err := h.trackers.Combined(r.Context(), cfg, top)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

var (
	errOutsideRoot = errors.New("path escapes root")
	errNotDir      = errors.New("not a directory")
)

// resolveDir joins dir onto root and returns the result with symlinks
// resolved. It fails with errOutsideRoot when dir is not local or resolves
// outside root, with fs.ErrNotExist when it does not exist and with errNotDir
// when it is a file.
func resolveDir(root, dir string) (string, error) {
	if !filepath.IsLocal(dir) {
		return "", errOutsideRoot
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(filepath.Join(realRoot, dir))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(realRoot, resolved)
	if err != nil || !filepath.IsLocal(rel) {
		return "", errOutsideRoot
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", errNotDir
	}
	return resolved, nil
}
