// Package proximity implements the obstacle-ahead detector. On each tick it
// fetches reported obstacles around the rider, keeps those lying on the
// active route polyline, and returns alerts ranked by urgency.
//
// Failure semantics are fail-soft throughout: invalid input or a store
// failure yields an empty alert list for that tick, never an error surfaced
// to the navigation loop.
package proximity

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"waispath/internal/geo"
	"waispath/internal/session"
	"waispath/internal/types"
)

// ObstacleSource is the read side of the obstacle store the detector needs.
type ObstacleSource interface {
	// GetObstaclesInArea returns obstacles within radiusKm of the coordinate.
	// The store is eventually consistent; no stable snapshot is assumed
	// across calls.
	GetObstaclesInArea(ctx context.Context, lat, lng, radiusKm float64) ([]types.Obstacle, error)
}

// Detector evaluates which reported obstacles lie ahead on the active route.
// It holds no per-rider state; the movement-gate memo lives in the session.
type Detector struct {
	store  ObstacleSource
	cfg    types.ProximityConfig
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Config holds the dependencies for creating a Detector.
type Config struct {
	Store       ObstacleSource
	Proximity   types.ProximityConfig
	ObstacleTTL time.Duration
	Logger      *slog.Logger

	// Now overrides the clock for testing. Defaults to time.Now.
	Now func() time.Time
}

// NewDetector creates a Detector with the given configuration.
func NewDetector(cfg Config) *Detector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.ObstacleTTL
	if ttl == 0 {
		ttl = types.DefaultConsensusConfig().ObstacleTTL
	}
	return &Detector{
		store:  cfg.Store,
		cfg:    cfg.Proximity,
		ttl:    ttl,
		logger: logger,
		now:    now,
	}
}

// DetectAhead runs one detection tick for the session.
//
// The tick is skipped (empty result) when:
//   - the location is missing, malformed, or too inaccurate,
//   - the route polyline has fewer than two points,
//   - the rider has moved less than the minimum-movement threshold since the
//     last successful tick (bounds store-query frequency).
//
// Returned alerts are sorted by non-increasing urgency and truncated to the
// configured maximum.
func (d *Detector) DetectAhead(
	ctx context.Context,
	sess *session.State,
	loc types.Location,
	route []types.Location,
	profile types.MobilityProfile,
) []types.ProximityAlert {
	if !loc.Valid() || !loc.AccuracyWithin(types.MaxLocationAccuracy) || len(route) < 2 {
		sess.ClearLastDetection()
		return nil
	}

	if last, ok := sess.LastDetection(); ok {
		if geo.Haversine(last, loc) < d.cfg.MinMovementMeters {
			return nil
		}
	}

	obstacles, err := d.store.GetObstaclesInArea(ctx, loc.Latitude, loc.Longitude, d.cfg.FetchRadiusMeters/1000)
	if err != nil {
		d.logger.WarnContext(ctx, "obstacle fetch failed, skipping tick",
			"session_id", sess.ID,
			"error", err,
		)
		return nil
	}

	now := d.now()
	alerts := make([]types.ProximityAlert, 0, len(obstacles))
	for _, obs := range obstacles {
		if !obs.Location.Valid() {
			d.logger.WarnContext(ctx, "dropping obstacle with malformed location",
				"obstacle_id", obs.ID,
			)
			continue
		}
		if obs.Expired(now, d.ttl) {
			continue
		}

		perpendicular, _ := geo.DistanceToPolyline(obs.Location, route)
		if perpendicular > d.cfg.RouteToleranceMeters {
			continue
		}

		distance := geo.Haversine(loc, obs.Location)
		confidence := obs.Confidence()

		alerts = append(alerts, types.ProximityAlert{
			Obstacle:        obs,
			Distance:        distance,
			TimeToEncounter: time.Duration(distance / profile.WalkingSpeed() * float64(time.Second)),
			Severity:        obs.Severity,
			Confidence:      confidence,
			Urgency:         d.urgency(obs, distance, confidence, profile),
		})
	}

	sortByUrgency(alerts)
	if len(alerts) > d.cfg.MaxAlerts {
		alerts = alerts[:d.cfg.MaxAlerts]
	}

	sess.SetLastDetection(loc)
	return alerts
}

// urgency combines a severity base, a distance-decay term (closer means
// higher), the profile's device sensitivity, and community confidence.
// Capped at 100.
func (d *Detector) urgency(obs types.Obstacle, distance, confidence float64, profile types.MobilityProfile) float64 {
	decay := 1 - distance/d.cfg.FetchRadiusMeters
	if decay < 0 {
		decay = 0
	}

	u := (obs.Severity.BaseUrgency() + 25*decay) * profile.UrgencyMultiplier() * (0.6 + 0.4*confidence)
	if u > 100 {
		u = 100
	}
	return u
}

// sortByUrgency orders alerts by non-increasing urgency. Stable so equal
// urgencies keep store order, which keeps ticks deterministic for tests.
func sortByUrgency(alerts []types.ProximityAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Urgency > alerts[j].Urgency
	})
}
