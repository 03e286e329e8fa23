package types

import "time"

// MaxLocationAccuracy is the worst GPS accuracy (meters) accepted for
// location-dependent computation. Poorer fixes are discarded upstream of
// every engine.
const MaxLocationAccuracy = 50.0

// ProximityConfig tunes the obstacle-ahead detector.
type ProximityConfig struct {
	FetchRadiusMeters    float64       // obstacle store query radius around the rider
	RouteToleranceMeters float64       // max perpendicular distance from the route polyline
	MinMovementMeters    float64       // movement gate between successful ticks
	MaxAlerts            int           // alert list truncation, avoids overwhelming the rider
	TickInterval         time.Duration // fast navigation-loop cadence
}

// DefaultProximityConfig returns the production tuning.
func DefaultProximityConfig() ProximityConfig {
	return ProximityConfig{
		FetchRadiusMeters:    100,
		RouteToleranceMeters: 15,
		MinMovementMeters:    10,
		MaxAlerts:            2,
		TickInterval:         3 * time.Second,
	}
}

// DetourConfig tunes the micro-detour search pipeline.
type DetourConfig struct {
	OffsetsMeters       []float64     // candidate waypoint offsets, evaluated shorter-first
	MaxConcurrent       int64         // outbound routing-call cap
	AcquireTimeout      time.Duration // max wait for an evaluation slot
	CacheTTL            time.Duration
	CacheMaxEntries     int
	LongDetourThreshold time.Duration // beyond this, a low safety rating disqualifies
}

// DefaultDetourConfig returns the production tuning.
func DefaultDetourConfig() DetourConfig {
	return DetourConfig{
		OffsetsMeters:       []float64{50, 70, 100},
		MaxConcurrent:       3,
		AcquireTimeout:      2 * time.Second,
		CacheTTL:            5 * time.Minute,
		CacheMaxEntries:     64,
		LongDetourThreshold: 120 * time.Second,
	}
}

// ConsensusConfig tunes obstacle validation and prompt selection.
type ConsensusConfig struct {
	PromptRadiusMeters     float64       // how close an obstacle must be to prompt about it
	CommunityVoteThreshold int           // total votes promoting a report to community_verified
	ValidationCooldown     time.Duration // per (rider, obstacle) re-prompt suppression
	SessionPromptCap       int           // hard per-session prompt budget
	ObstacleTTL            time.Duration // report retirement age
	TickInterval           time.Duration // slow navigation-loop cadence
}

// DefaultConsensusConfig returns the production tuning.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		PromptRadiusMeters:     50,
		CommunityVoteThreshold: 8,
		ValidationCooldown:     24 * time.Hour,
		SessionPromptCap:       3,
		ObstacleTTL:            30 * 24 * time.Hour,
		TickInterval:           10 * time.Second,
	}
}
