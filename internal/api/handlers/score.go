// Package handlers contains the HTTP handler implementations for the
// WAISPATH routing API. Each handler depends on locally-defined service
// interfaces for testability and to avoid coupling to concrete
// implementations.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"waispath/internal/core"
	"waispath/internal/types"
)

// AccessibilityScorer grades a sidewalk segment for one mobility profile.
type AccessibilityScorer interface {
	Score(snapshot types.SidewalkSnapshot, profile types.MobilityProfile) types.AccessibilityScore
}

// ScoreRequest is the request body for POST /v1/score.
type ScoreRequest struct {
	Snapshot types.SidewalkSnapshot `json:"snapshot" validate:"required"`
	Profile  types.MobilityProfile  `json:"profile" validate:"required"`
}

// ScoreHandler exposes on-demand segment scoring.
type ScoreHandler struct {
	scorer    AccessibilityScorer
	validator *core.Validator
	logger    *slog.Logger
}

// NewScoreHandler creates a ScoreHandler with the provided dependencies.
func NewScoreHandler(scorer AccessibilityScorer, v *core.Validator, l *slog.Logger) *ScoreHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ScoreHandler{scorer: scorer, validator: v, logger: l}
}

// RegisterRoutes mounts scoring routes on the provided chi.Router.
func (h *ScoreHandler) RegisterRoutes(r chi.Router) {
	r.Post("/score", h.Score)
}

// Score handles POST /v1/score. Scoring is pure computation: no session, no
// persistence, deterministic for identical input.
func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	score := h.scorer.Score(req.Snapshot, req.Profile)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: score})
}
