package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/roundscope/internal/auth"
)

// AuthHandler exchanges API keys for access tokens.
type AuthHandler struct {
	keys   *auth.APIKeys
	jwtMgr *auth.JWTManager
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(keys *auth.APIKeys, jwtMgr *auth.JWTManager) *AuthHandler {
	return &AuthHandler{keys: keys, jwtMgr: jwtMgr}
}

// Token handles POST /auth/token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	client, err := h.keys.Client(req.APIKey)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	tokens, err := h.jwtMgr.GenerateTokenPair(client)
	if err != nil {
		log.Error().Err(err).Str("client", client.ID).Msg("Failed to generate tokens")
		writeError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}
	log.Info().Str("client", client.ID).Strs("maps", client.Maps).Msg("API client authenticated")
	writeJSON(w, http.StatusOK, tokens)
}

// RefreshToken exchanges a refresh token for a new token pair.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims, err := h.jwtMgr.ValidateToken(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	tokens, err := h.jwtMgr.GenerateTokenPair(claims.Client())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}
