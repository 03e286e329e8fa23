package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"waispath/internal/core"
	"waispath/internal/types"
)

// DetourPlanner searches for a micro-detour around a single reported
// obstacle.
type DetourPlanner interface {
	CreateDetour(ctx context.Context, current types.Location, obstacle types.Obstacle, destination types.Location, profile types.MobilityProfile) (*types.MicroDetour, error)
	DirectRoute(ctx context.Context, origin, dest types.Location) (*types.Route, error)
}

// RouteProvider returns direct walking route alternatives from the external
// routing provider.
type RouteProvider interface {
	Routes(ctx context.Context, origin, dest types.Location) ([]types.Route, error)
}

// --- Request/Response Models ---

// DetourRequest is the request body for POST /v1/detours.
type DetourRequest struct {
	Current     types.Location        `json:"current" validate:"required"`
	Destination types.Location        `json:"destination" validate:"required"`
	Obstacle    types.Obstacle        `json:"obstacle" validate:"required"`
	Profile     types.MobilityProfile `json:"profile" validate:"required"`
}

// DetourResponse reports the search outcome. Found is false when no
// qualifying bypass exists; that is a normal answer, not an error, and
// Advice carries the obstacle type's static fallback guidance for it.
type DetourResponse struct {
	Found  bool               `json:"found"`
	Detour *types.MicroDetour `json:"detour,omitempty"`
	Advice string             `json:"advice,omitempty"`
}

// RoutesRequest is the request body for POST /v1/routes.
type RoutesRequest struct {
	Origin      types.Location `json:"origin" validate:"required"`
	Destination types.Location `json:"destination" validate:"required"`
}

// RoutesResponse carries the provider's walking route alternatives.
type RoutesResponse struct {
	Routes []types.Route `json:"routes"`
}

// --- Handler ---

// DetourHandler exposes detour search and direct route planning.
type DetourHandler struct {
	planner   DetourPlanner
	provider  RouteProvider
	validator *core.Validator
	logger    *slog.Logger
}

// NewDetourHandler creates a DetourHandler with the provided dependencies.
func NewDetourHandler(planner DetourPlanner, provider RouteProvider, v *core.Validator, l *slog.Logger) *DetourHandler {
	if l == nil {
		l = slog.Default()
	}
	return &DetourHandler{planner: planner, provider: provider, validator: v, logger: l}
}

// RegisterRoutes mounts detour and route planning routes.
func (h *DetourHandler) RegisterRoutes(r chi.Router) {
	r.Post("/detours", h.CreateDetour)
	r.Post("/routes", h.Routes)
}

// CreateDetour handles POST /v1/detours.
func (h *DetourHandler) CreateDetour(w http.ResponseWriter, r *http.Request) {
	var req DetourRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	detour, err := h.planner.CreateDetour(r.Context(), req.Current, req.Obstacle, req.Destination, req.Profile)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := DetourResponse{Found: detour != nil, Detour: detour}
	if detour == nil {
		resp.Advice = req.Obstacle.Type.Info().Advice
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// Routes handles POST /v1/routes. Provider failures propagate: with no
// route at all the client has nothing to fall back on.
func (h *DetourHandler) Routes(w http.ResponseWriter, r *http.Request) {
	var req RoutesRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	routes, err := h.provider.Routes(r.Context(), req.Origin, req.Destination)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: RoutesResponse{Routes: routes}})
}
