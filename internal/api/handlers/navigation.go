package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"waispath/internal/core"
	"waispath/internal/session"
	"waispath/internal/types"
)

// ProximityScanner checks for community-reported obstacles ahead of the
// rider on the active route.
type ProximityScanner interface {
	DetectAhead(ctx context.Context, sess *session.State, loc types.Location, route []types.Location, profile types.MobilityProfile) []types.ProximityAlert
}

// ValidationEngine selects validation prompts near the rider and records
// their answers as votes.
type ValidationEngine interface {
	CheckForPrompts(ctx context.Context, sess *session.State, loc types.Location) []types.ValidationPrompt
	ProcessResponse(ctx context.Context, sess *session.State, obstacleID string, response types.ValidationResponse, loc *types.Location) error
}

// SessionRegistry tracks the active navigation sessions.
type SessionRegistry interface {
	Start(riderID string) *session.State
	Get(id string) (*session.State, bool)
	End(id string)
}

// --- Request/Response Models ---

// StartSessionRequest is the request body for POST /v1/sessions.
type StartSessionRequest struct {
	RiderID string `json:"rider_id" validate:"required,max=100"`
}

// SessionResponse describes a started navigation session.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	RiderID   string `json:"rider_id"`
}

// DetectRequest is the request body for POST /v1/alerts/detect.
type DetectRequest struct {
	SessionID string                `json:"session_id" validate:"required"`
	Location  types.Location        `json:"location" validate:"required"`
	Route     []types.Location      `json:"route" validate:"required,min=2"`
	Profile   types.MobilityProfile `json:"profile" validate:"required"`
}

// DetectResponse carries the alerts for one detection pass.
type DetectResponse struct {
	Alerts []types.ProximityAlert `json:"alerts"`
}

// ValidationCheckRequest is the request body for POST /v1/validation/check.
type ValidationCheckRequest struct {
	SessionID string         `json:"session_id" validate:"required"`
	Location  types.Location `json:"location" validate:"required"`
}

// ValidationCheckResponse carries at most one prompt per check.
type ValidationCheckResponse struct {
	Prompts []types.ValidationPrompt `json:"prompts"`
}

// ValidationRespondRequest is the request body for POST /v1/validation/respond.
type ValidationRespondRequest struct {
	SessionID  string                   `json:"session_id" validate:"required"`
	ObstacleID string                   `json:"obstacle_id" validate:"required"`
	Response   types.ValidationResponse `json:"response" validate:"required,oneof=still_there cleared skip"`
	Location   *types.Location          `json:"location,omitempty"`
}

// --- Handler ---

// NavigationHandler manages navigation sessions and the per-tick detection
// and validation operations driven by the rider's client.
type NavigationHandler struct {
	sessions  SessionRegistry
	scanner   ProximityScanner
	consensus ValidationEngine
	validator *core.Validator
	logger    *slog.Logger
}

// NewNavigationHandler creates a NavigationHandler with the provided
// dependencies.
func NewNavigationHandler(
	sessions SessionRegistry,
	scanner ProximityScanner,
	consensus ValidationEngine,
	v *core.Validator,
	l *slog.Logger,
) *NavigationHandler {
	if l == nil {
		l = slog.Default()
	}
	return &NavigationHandler{
		sessions:  sessions,
		scanner:   scanner,
		consensus: consensus,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts session, alert, and validation routes.
func (h *NavigationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.StartSession)
		r.Delete("/{id}", h.EndSession)
	})
	r.Post("/alerts/detect", h.Detect)
	r.Route("/validation", func(r chi.Router) {
		r.Post("/check", h.ValidationCheck)
		r.Post("/respond", h.ValidationRespond)
	})
}

// StartSession handles POST /v1/sessions.
func (h *NavigationHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	sess := h.sessions.Start(req.RiderID)
	h.logger.Info("navigation session started", "session_id", sess.ID, "rider_id", sess.RiderID)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: SessionResponse{
		SessionID: sess.ID,
		RiderID:   sess.RiderID,
	}})
}

// EndSession handles DELETE /v1/sessions/{id}. Ending an unknown session is
// idempotent and still returns 204.
func (h *NavigationHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.sessions.End(id)
	w.WriteHeader(http.StatusNoContent)
}

// Detect handles POST /v1/alerts/detect. A pass that finds nothing, or that
// is skipped by the movement gate, returns an empty alert list rather than
// an error.
func (h *NavigationHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	sess, ok := h.sessions.Get(req.SessionID)
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundSession, "session not found", nil))
		return
	}

	alerts := h.scanner.DetectAhead(r.Context(), sess, req.Location, req.Route, req.Profile)
	if alerts == nil {
		alerts = []types.ProximityAlert{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: DetectResponse{Alerts: alerts}})
}

// ValidationCheck handles POST /v1/validation/check.
func (h *NavigationHandler) ValidationCheck(w http.ResponseWriter, r *http.Request) {
	var req ValidationCheckRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	sess, ok := h.sessions.Get(req.SessionID)
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundSession, "session not found", nil))
		return
	}

	prompts := h.consensus.CheckForPrompts(r.Context(), sess, req.Location)
	if prompts == nil {
		prompts = []types.ValidationPrompt{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: ValidationCheckResponse{Prompts: prompts}})
}

// ValidationRespond handles POST /v1/validation/respond.
func (h *NavigationHandler) ValidationRespond(w http.ResponseWriter, r *http.Request) {
	var req ValidationRespondRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	sess, ok := h.sessions.Get(req.SessionID)
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundSession, "session not found", nil))
		return
	}

	if err := h.consensus.ProcessResponse(r.Context(), sess, req.ObstacleID, req.Response, req.Location); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "recorded"}})
}
