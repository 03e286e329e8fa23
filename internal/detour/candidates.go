package detour

import (
	"time"

	"waispath/internal/geo"
	"waispath/internal/types"
)

// cardinalBearings are the four directions bypass waypoints are projected in,
// always in this order so candidate generation is deterministic.
var cardinalBearings = []float64{0, 90, 180, 270}

// candidate is one prospective bypass waypoint. Internal working type, never
// exposed outside the engine.
type candidate struct {
	waypoint types.Location
	offset   float64 // meters from the obstacle

	// Estimates used for pre-filtering before any routing call. The walk out
	// to the waypoint and back to the original line roughly doubles the
	// offset.
	estExtraDistance float64
	estExtraTime     time.Duration
}

// generateCandidates projects waypoints at each configured offset in the four
// cardinal directions around the obstacle, shorter offsets first. Offsets
// beyond the profile's search radius are clipped out entirely: a rider with a
// tight radius gets fewer, closer candidates rather than distant ones.
func generateCandidates(obstacle types.Location, profile types.MobilityProfile, offsets []float64) []candidate {
	speed := profile.WalkingSpeed()
	maxRadius := profile.MaxSearchRadius()

	var out []candidate
	for _, offset := range offsets {
		if offset > maxRadius {
			continue
		}
		extraDist := 2 * offset
		extraTime := time.Duration(extraDist / speed * float64(time.Second))
		for _, bearing := range cardinalBearings {
			out = append(out, candidate{
				waypoint:         geo.Destination(obstacle, bearing, offset),
				offset:           offset,
				estExtraDistance: extraDist,
				estExtraTime:     extraTime,
			})
		}
	}
	return out
}

// withinProfileLimits reports whether an extra time/distance pair is
// acceptable for the profile. Used both for pre-filtering estimates and for
// judging evaluated routes.
func withinProfileLimits(profile types.MobilityProfile, extraTime time.Duration, extraDistance float64) bool {
	return extraTime <= profile.MaxDetourTime() && extraDistance <= profile.MaxDetourDistance()
}
