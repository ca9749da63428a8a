package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/roundscope/internal/auth"
	"github.com/freeeve/roundscope/internal/logger"
	"github.com/freeeve/roundscope/internal/recording"
	"github.com/freeeve/roundscope/internal/service"
	"github.com/freeeve/roundscope/pkg/mapcontrol"
	"github.com/freeeve/roundscope/pkg/navmesh"
	"github.com/freeeve/roundscope/pkg/spatial"
	"github.com/freeeve/roundscope/pkg/tile"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// checkScope writes a 403 and returns false when the authenticated client may
// not analyze mapName.
func checkScope(w http.ResponseWriter, r *http.Request, mapName string) bool {
	if auth.MapAllowed(r.Context(), mapName) {
		return true
	}
	l := logger.ForRequest(r.Context())
	l.Warn().Str("map", mapName).Msg("Map outside client scope")
	writeError(w, http.StatusForbidden, "client "+auth.ClientIDFromContext(r.Context())+" may not analyze "+mapName)
	return false
}

// writeServiceError maps domain errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, navmesh.ErrMapNotFound),
		errors.Is(err, service.ErrRecordingNotFound),
		errors.Is(err, spatial.ErrNoTrackers):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, mapcontrol.ErrInvalidParameter),
		errors.Is(err, spatial.ErrInvalidConfig),
		errors.Is(err, tile.ErrInvalidTileLength),
		errors.Is(err, recording.ErrInvalidRecording):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, mapcontrol.ErrNoControllableArea),
		errors.Is(err, spatial.ErrIncompatibleTrackers),
		errors.Is(err, service.ErrNoRecordings):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
