package detour

import (
	"strings"
	"time"

	"waispath/internal/types"
)

// unsafePhrases are instruction fragments indicating a route cuts through
// private or indoor passage a pedestrian cannot rely on.
var unsafePhrases = []string{
	"through the building",
	"through building",
	"inside the mall",
	"indoor",
	"private road",
	"private property",
	"parking garage",
	"restricted access",
}

// cautionPhrases degrade the safety rating without rejecting the route.
var cautionPhrases = []string{
	"stairs",
	"steps",
	"overpass",
	"footbridge",
}

// blockedManeuvers reject a route outright: these are not walkable in a
// micro-detour context regardless of what the provider claims.
var blockedManeuvers = map[string]struct{}{
	"ferry":       {},
	"ferry-train": {},
	"ramp-left":   {},
	"ramp-right":  {},
	"merge":       {},
}

// assessRoute safety-checks an evaluated bypass route.
//
// A route is rejected (ok == false) when any step's travel mode is not
// walking, its maneuver is blacklisted, or its instructions mention
// private/indoor passage. An accepted route is rated high when it costs
// little extra time and raised no caution flags, low when caution phrases
// appear, medium otherwise.
func assessRoute(route *types.Route, extraTime time.Duration) (rating types.SafetyRating, reason string, ok bool) {
	caution := false

	for _, step := range route.Steps {
		if step.TravelMode != "" && !strings.EqualFold(step.TravelMode, "walking") {
			return types.SafetyLow, "route requires non-walking travel", false
		}
		if _, blocked := blockedManeuvers[strings.ToLower(step.Maneuver)]; blocked {
			return types.SafetyLow, "route includes a blocked maneuver", false
		}

		instruction := strings.ToLower(step.Instruction)
		for _, phrase := range unsafePhrases {
			if strings.Contains(instruction, phrase) {
				return types.SafetyLow, "route passes through private or indoor space", false
			}
		}
		for _, phrase := range cautionPhrases {
			if strings.Contains(instruction, phrase) {
				caution = true
			}
		}
	}

	switch {
	case caution:
		return types.SafetyLow, "route includes steps or elevated crossings", true
	case extraTime <= 60*time.Second:
		return types.SafetyHigh, "short street-level bypass", true
	default:
		return types.SafetyMedium, "street-level bypass", true
	}
}
