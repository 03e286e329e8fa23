// Package external is the anti-corruption layer between the routing domain
// and third-party provider APIs. Outbound calls go through a circuit breaker
// with consistent error mapping, so the engines upstream only ever see
// domain error codes.
package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	maps "googlemaps.github.io/maps"

	"waispath/internal/types"
)

// directionsAPI is the slice of *maps.Client the routing client uses.
// Narrowed to an interface so tests can stub the provider.
type directionsAPI interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// GoogleRoutingConfig holds the configuration for creating a GoogleRoutingClient.
type GoogleRoutingConfig struct {
	API    directionsAPI // Override for testing; defaults to a real maps.Client
	APIKey string
	Logger *slog.Logger
}

// GoogleRoutingClient plans walking routes via the Google Directions API.
// All calls run through a circuit breaker; a tripped breaker surfaces as a
// rate-limited error so callers back off instead of hammering a dead upstream.
type GoogleRoutingClient struct {
	api     directionsAPI
	breaker *gobreaker.CircuitBreaker[[]maps.Route]
	logger  *slog.Logger
}

// NewGoogleRoutingClient creates a GoogleRoutingClient. When cfg.API is nil a
// real maps.Client is constructed from cfg.APIKey.
func NewGoogleRoutingClient(cfg GoogleRoutingConfig) (*GoogleRoutingClient, error) {
	api := cfg.API
	if api == nil {
		client, err := maps.NewClient(maps.WithAPIKey(cfg.APIKey))
		if err != nil {
			return nil, fmt.Errorf("creating maps client: %w", err)
		}
		api = client
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[[]maps.Route](gobreaker.Settings{
		Name:        "google-directions",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &GoogleRoutingClient{
		api:     api,
		breaker: cb,
		logger:  logger,
	}, nil
}

// Route returns a single walking route from origin to dest through the given
// waypoints, picking the first alternative the provider offers.
func (c *GoogleRoutingClient) Route(ctx context.Context, origin, dest types.Location, waypoints []types.Location) (*types.Route, error) {
	req := &maps.DirectionsRequest{
		Origin:      formatLatLng(origin),
		Destination: formatLatLng(dest),
		Mode:        maps.TravelModeWalking,
		Units:       maps.UnitsMetric,
	}
	for _, wp := range waypoints {
		req.Waypoints = append(req.Waypoints, formatLatLng(wp))
	}

	routes, err := c.directions(ctx, req)
	if err != nil {
		return nil, err
	}
	route, err := convertRoute(routes[0])
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamRouting, "decoding provider route", err)
	}
	return route, nil
}

// Routes returns direct walking route alternatives between origin and dest.
func (c *GoogleRoutingClient) Routes(ctx context.Context, origin, dest types.Location) ([]types.Route, error) {
	req := &maps.DirectionsRequest{
		Origin:       formatLatLng(origin),
		Destination:  formatLatLng(dest),
		Mode:         maps.TravelModeWalking,
		Units:        maps.UnitsMetric,
		Alternatives: true,
	}

	raw, err := c.directions(ctx, req)
	if err != nil {
		return nil, err
	}

	routes := make([]types.Route, 0, len(raw))
	for _, r := range raw {
		converted, err := convertRoute(r)
		if err != nil {
			c.logger.Warn("skipping undecodable provider route", "summary", r.Summary, "error", err)
			continue
		}
		routes = append(routes, *converted)
	}
	if len(routes) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamRouting, "no decodable routes from provider", nil)
	}
	return routes, nil
}

func (c *GoogleRoutingClient) directions(ctx context.Context, req *maps.DirectionsRequest) ([]maps.Route, error) {
	routes, err := c.breaker.Execute(func() ([]maps.Route, error) {
		routes, _, err := c.api.Directions(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(routes) == 0 {
			return nil, errors.New("provider returned no routes")
		}
		return routes, nil
	})
	if err != nil {
		return nil, mapProviderError(err)
	}
	return routes, nil
}

// mapProviderError translates transport and provider failures into domain
// error codes. Quota exhaustion and an open breaker both map to rate-limited
// so the detour engine stops burning candidates.
func mapProviderError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "routing provider circuit open", err)
	}
	msg := err.Error()
	if strings.Contains(msg, "OVER_QUERY_LIMIT") || strings.Contains(msg, "OVER_DAILY_LIMIT") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "routing provider quota exceeded", err)
	}
	return types.NewAppError(types.ErrCodeUpstreamRouting, "routing provider request failed", err)
}

func formatLatLng(loc types.Location) string {
	return fmt.Sprintf("%f,%f", loc.Latitude, loc.Longitude)
}

// convertRoute flattens a provider route into the domain shape: decoded
// overview polyline, summed leg totals, and normalized steps.
func convertRoute(r maps.Route) (*types.Route, error) {
	points, err := r.OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding overview polyline: %w", err)
	}

	route := &types.Route{
		Polyline: make([]types.Location, 0, len(points)),
		Summary:  r.Summary,
	}
	for _, p := range points {
		route.Polyline = append(route.Polyline, types.Location{Latitude: p.Lat, Longitude: p.Lng})
	}

	for _, leg := range r.Legs {
		route.Duration += leg.Duration
		route.Distance += float64(leg.Distance.Meters)
		for _, step := range leg.Steps {
			instruction := stripHTML(step.HTMLInstructions)
			route.Steps = append(route.Steps, types.RouteStep{
				Instruction: instruction,
				TravelMode:  strings.ToLower(string(step.TravelMode)),
				Maneuver:    deriveManeuver(instruction),
				Distance:    float64(step.Distance.Meters),
				Duration:    step.Duration,
			})
		}
	}

	return route, nil
}

// deriveManeuver classifies a step instruction into the maneuver vocabulary
// the detour safety check understands. The provider SDK does not expose the
// maneuver field, so it is recovered from the instruction text.
func deriveManeuver(instruction string) string {
	s := strings.ToLower(instruction)
	switch {
	case strings.Contains(s, "ferry"):
		return "ferry"
	case strings.Contains(s, "merge"):
		return "merge"
	case strings.Contains(s, "ramp") && strings.Contains(s, "left"):
		return "ramp-left"
	case strings.Contains(s, "ramp") && strings.Contains(s, "right"):
		return "ramp-right"
	case strings.Contains(s, "u-turn"):
		return "uturn"
	case strings.Contains(s, "turn left"):
		return "turn-left"
	case strings.Contains(s, "turn right"):
		return "turn-right"
	case strings.Contains(s, "head ") || strings.Contains(s, "continue"):
		return "straight"
	default:
		return ""
	}
}

// stripHTML removes markup tags from a provider instruction string.
func stripHTML(s string) string {
	out := make([]rune, 0, len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out = append(out, r)
		}
	}
	return string(out)
}
