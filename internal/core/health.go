package core

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout is the maximum time allowed for health probes to
// complete. If a probe exceeds this deadline, the health check returns 503.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is a subsystem health check. Each probe represents a critical
// dependency (database, routing provider) that must be operational for the
// service to function.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Service    string                     `json:"service"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// RegisterHealthProbe adds a probe to the set executed by HandleHealth.
// Called by the application entry point before MountRoutes.
func (s *Server) RegisterHealthProbe(p HealthProbe) {
	s.healthProbes = append(s.healthProbes, p)
}

// HandleHealth executes all registered health probes under a shared timeout.
// Returns 200 OK if all probes report healthy, 503 Service Unavailable
// otherwise. Mounted at GET /health; public, no authentication.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:  "healthy",
		Service: s.Config.Service,
	}

	if len(s.healthProbes) > 0 {
		resp.Components = make(map[string]componentStatus, len(s.healthProbes))
		for _, probe := range s.healthProbes {
			if err := probe.Check(ctx); err != nil {
				resp.Status = "unhealthy"
				resp.Components[probe.Name()] = componentStatus{
					Status:  "unhealthy",
					Message: err.Error(),
				}
				continue
			}
			resp.Components[probe.Name()] = componentStatus{Status: "healthy"}
		}
	}

	if resp.Status != "healthy" {
		JSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	JSON(w, r, http.StatusOK, resp)
}
