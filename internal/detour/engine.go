// Package detour implements the micro-detour search pipeline: generate
// candidate bypass waypoints around a blocking obstacle, pre-filter them
// against the rider's profile, evaluate survivors against the external
// routing provider, and safety-check the returned routes.
//
// Candidates are always evaluated in generation order (shorter offsets
// first) and the engine returns the first qualifying candidate, not the
// globally best one. Routing calls are costly; good enough and fast beats
// optimal and slow here.
//
// Evaluation results are cached by a typed quantized-coordinate key with a
// TTL and a bounded size, and concurrent evaluations of the same key are
// coalesced so only one provider call is ever in flight per key. A weighted
// semaphore caps outbound provider calls across all concurrent searches to
// protect the provider's rate limits.
package detour

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"waispath/internal/types"
)

// RoutePlanner is the external routing collaborator surface the engine needs.
type RoutePlanner interface {
	// Route returns a walking route from origin to dest through the given
	// waypoints.
	Route(ctx context.Context, origin, dest types.Location, waypoints []types.Location) (*types.Route, error)
	// Routes returns direct walking route alternatives, no waypoints.
	Routes(ctx context.Context, origin, dest types.Location) ([]types.Route, error)
}

// Engine searches for and evaluates micro-detours. Safe for concurrent use;
// the cache and in-flight evaluation group are its only shared mutable state.
type Engine struct {
	planner RoutePlanner
	cfg     types.DetourConfig
	sem     *semaphore.Weighted
	cache   *routeCache
	group   singleflight.Group
	logger  *slog.Logger
}

// Config holds the dependencies for creating an Engine.
type Config struct {
	Planner RoutePlanner
	Detour  types.DetourConfig
	Logger  *slog.Logger

	// Now overrides the cache clock for testing. Defaults to time.Now.
	Now func() time.Time
}

// NewEngine creates an Engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		planner: cfg.Planner,
		cfg:     cfg.Detour,
		sem:     semaphore.NewWeighted(cfg.Detour.MaxConcurrent),
		cache:   newRouteCache(cfg.Detour.CacheTTL, cfg.Detour.CacheMaxEntries, cfg.Now),
		logger:  logger,
	}
}

// CreateDetour proposes a short bypass around a single obstacle, or nil when
// no candidate qualifies. Callers fall back to the obstacle type's static
// advice in the nil case.
//
// Provider failures are fail-soft: a failed candidate evaluation is logged
// and the search moves on, except for quota/rate-limit errors, which abort
// the remaining candidate loop immediately.
func (e *Engine) CreateDetour(
	ctx context.Context,
	current types.Location,
	obstacle types.Obstacle,
	destination types.Location,
	profile types.MobilityProfile,
) (*types.MicroDetour, error) {
	if !current.Valid() || !destination.Valid() || !obstacle.Location.Valid() {
		return nil, nil
	}
	if !current.AccuracyWithin(types.MaxLocationAccuracy) {
		return nil, nil
	}

	direct, err := e.directRoute(ctx, current, destination)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.WarnContext(ctx, "direct route unavailable, no detour this cycle",
			"obstacle_id", obstacle.ID,
			"error", err,
		)
		return nil, nil
	}

	candidates := generateCandidates(obstacle.Location, profile, e.cfg.OffsetsMeters)

	for _, cand := range candidates {
		// Pre-filter on estimates before spending a routing call.
		if !withinProfileLimits(profile, cand.estExtraTime, cand.estExtraDistance) {
			continue
		}

		key := newRouteKey(current, destination, cand.waypoint)
		route, err := e.evaluate(ctx, key, current, destination, &cand.waypoint)
		if err != nil {
			if types.IsRateLimited(err) {
				e.logger.WarnContext(ctx, "routing quota exhausted, aborting detour search",
					"obstacle_id", obstacle.ID,
				)
				return nil, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.WarnContext(ctx, "candidate evaluation failed",
				"obstacle_id", obstacle.ID,
				"offset_meters", cand.offset,
				"error", err,
			)
			continue
		}

		extraTime := route.Duration - direct.Duration
		if extraTime < 0 {
			extraTime = 0
		}
		extraDistance := route.Distance - direct.Distance
		if extraDistance < 0 {
			extraDistance = 0
		}

		rating, _, ok := assessRoute(route, extraTime)
		if !ok {
			// Policy rejection: continue with the next candidate silently.
			continue
		}
		if !withinProfileLimits(profile, extraTime, extraDistance) {
			continue
		}
		if rating == types.SafetyLow && extraTime > e.cfg.LongDetourThreshold {
			continue
		}

		return &types.MicroDetour{
			Route:           *route,
			ExtraTime:       extraTime,
			ExtraDistance:   extraDistance,
			SafetyRating:    rating,
			Confidence:      e.confidence(rating, extraTime),
			Reason:          fmt.Sprintf("avoids reported %s", obstacle.Type.Info().Label),
			RouteSimilarity: routeSimilarity(extraDistance),
		}, nil
	}

	return nil, nil
}

// DirectRoute returns the first direct walking route from origin to dest.
// Unlike detour evaluation this is not fail-soft: a direct request with an
// unreachable provider is a genuinely exceptional state and the error
// propagates.
func (e *Engine) DirectRoute(ctx context.Context, origin, dest types.Location) (*types.Route, error) {
	return e.directRoute(ctx, origin, dest)
}

// directRoute fetches (and caches) the direct route used as the baseline for
// extra-time/extra-distance deltas.
func (e *Engine) directRoute(ctx context.Context, origin, dest types.Location) (*types.Route, error) {
	key := newRouteKey(origin, dest, types.Location{})
	return e.withFlight(ctx, key, func(ctx context.Context) (*types.Route, error) {
		routes, err := e.planner.Routes(ctx, origin, dest)
		if err != nil {
			return nil, err
		}
		if len(routes) == 0 {
			return nil, types.NewAppError(types.ErrCodeUpstreamRouting, "provider returned no direct route", nil)
		}
		return &routes[0], nil
	})
}

// evaluate fetches (and caches) the route through a candidate waypoint.
func (e *Engine) evaluate(ctx context.Context, key routeKey, origin, dest types.Location, waypoint *types.Location) (*types.Route, error) {
	return e.withFlight(ctx, key, func(ctx context.Context) (*types.Route, error) {
		return e.planner.Route(ctx, origin, dest, []types.Location{*waypoint})
	})
}

// withFlight wraps a provider call with the cache, the per-key coalescing
// group, and the outbound concurrency cap.
func (e *Engine) withFlight(ctx context.Context, key routeKey, fetch func(context.Context) (*types.Route, error)) (*types.Route, error) {
	if route, ok := e.cache.Get(key); ok {
		return route, nil
	}

	v, err, _ := e.group.Do(key.String(), func() (any, error) {
		// Re-check under the flight: a concurrent caller may have populated
		// the cache between the miss above and this flight starting.
		if route, ok := e.cache.Get(key); ok {
			return route, nil
		}

		acquireCtx, cancel := context.WithTimeout(ctx, e.cfg.AcquireTimeout)
		defer cancel()
		if err := e.sem.Acquire(acquireCtx, 1); err != nil {
			return nil, fmt.Errorf("waiting for evaluation slot: %w", err)
		}
		defer e.sem.Release(1)

		route, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		e.cache.Put(key, route)
		return route, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Route), nil
}

// confidence scores how sure the engine is the bypass will work out: a base
// value adjusted by safety rating and extra time, clamped to [0, 1].
func (e *Engine) confidence(rating types.SafetyRating, extraTime time.Duration) float64 {
	c := 0.7
	switch rating {
	case types.SafetyHigh:
		c += 0.15
	case types.SafetyLow:
		c -= 0.25
	}
	if extraTime > e.cfg.LongDetourThreshold {
		c -= 0.1
	}
	if c < 0 {
		c = 0
	} else if c > 1 {
		c = 1
	}
	return c
}

// routeSimilarity approximates how close the bypass stays to the original
// line: 1 at zero extra distance, falling to 0 at a kilometer of extra walk.
func routeSimilarity(extraDistance float64) float64 {
	s := 1 - extraDistance/1000
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
