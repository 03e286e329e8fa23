// Package scoring implements the multi-criteria accessibility grader. A
// sidewalk snapshot plus a mobility profile is converted into a 0-100
// AccessibilityScore on three axes (traversability, safety, comfort) combined
// with fixed AHP weights into an overall score and a letter grade.
//
// Scoring is fully deterministic for identical inputs; route alternatives are
// ranked by comparing scores, which only works if repeated calls agree.
package scoring

import (
	"log/slog"

	"waispath/internal/types"
)

// Fixed AHP weights. Traversability dominates safety dominates comfort.
const (
	weightTraversability = 0.70
	weightSafety         = 0.20
	weightComfort        = 0.10
)

// maxSnapshotDeduction caps how much the snapshot's ambient conditions alone
// can pull an axis down. With zero obstacles every axis therefore stays at
// 90 or above, which keeps an empty segment at grade A.
const maxSnapshotDeduction = 10.0

// maxUserAdjustment bounds the signed profile-specific correction.
const maxUserAdjustment = 10.0

// Scorer grades sidewalk snapshots. It holds no mutable state; the logger is
// only used to flag malformed obstacle records being skipped.
type Scorer struct {
	logger *slog.Logger
}

// NewScorer creates a Scorer. A nil logger falls back to slog.Default().
func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{logger: logger}
}

// Score converts a snapshot and profile into an AccessibilityScore.
func (s *Scorer) Score(snapshot types.SidewalkSnapshot, profile types.MobilityProfile) types.AccessibilityScore {
	trav := 100 - snapshotDeductionTraversability(snapshot, profile)
	safety := 100 - snapshotDeductionSafety(snapshot)
	comfort := 100 - snapshotDeductionComfort(snapshot)

	for _, obs := range snapshot.Obstacles {
		if !obs.Type.Valid() {
			s.logger.Warn("skipping obstacle with unrecognized type",
				"obstacle_id", obs.ID,
				"type", string(obs.Type),
			)
			continue
		}

		info := obs.Type.Info()
		mult := obs.Severity.PenaltyMultiplier()

		travPenalty := info.Traversability * mult
		if profileStairSensitive(profile) && (obs.Type == types.ObstacleStairsNoRamp || obs.Type == types.ObstacleNoSidewalk) {
			travPenalty *= 1.75
		}

		trav -= travPenalty
		safety -= info.Safety * mult
		comfort -= info.Comfort * mult
	}

	adjustment := userAdjustment(snapshot, profile)

	trav = clampScore(trav)
	safety = clampScore(safety)
	comfort = clampScore(comfort)

	overall := clampScore(weightTraversability*trav + weightSafety*safety + weightComfort*comfort + adjustment)

	return types.AccessibilityScore{
		Traversability: trav,
		Safety:         safety,
		Comfort:        comfort,
		Overall:        overall,
		Grade:          types.GradeFor(overall),
		UserAdjustment: adjustment,
	}
}

// snapshotDeductionTraversability derives the ambient traversability
// deduction from segment geometry, capped at maxSnapshotDeduction.
func snapshotDeductionTraversability(snap types.SidewalkSnapshot, profile types.MobilityProfile) float64 {
	d := 0.0
	if snap.WidthMeters > 0 && snap.WidthMeters < 0.9 {
		d += 4
	}
	switch snap.Surface {
	case types.SurfacePoor:
		d += 3
	case types.SurfaceFair:
		d += 1
	}
	if snap.SlopeDegrees > 8 {
		d += 3
	}
	if !snap.HasRamp && profile.Type == types.DeviceWheelchair {
		d += 2
	}
	return capDeduction(d)
}

func snapshotDeductionSafety(snap types.SidewalkSnapshot) float64 {
	d := 0.0
	if !snap.Lit {
		d += 4
	}
	switch snap.Traffic {
	case types.TrafficHigh:
		d += 3
	case types.TrafficModerate:
		d += 1
	}
	switch snap.Surface {
	case types.SurfacePoor:
		d += 2
	}
	if !snap.HasHandrail && snap.SlopeDegrees > 5 {
		d += 2
	}
	return capDeduction(d)
}

func snapshotDeductionComfort(snap types.SidewalkSnapshot) float64 {
	d := 0.0
	if !snap.Shaded {
		d += 2
	}
	if snap.Traffic == types.TrafficHigh {
		d += 2
	}
	switch snap.Surface {
	case types.SurfacePoor:
		d += 2
	case types.SurfaceFair:
		d += 1
	}
	return capDeduction(d)
}

// userAdjustment is the signed correction applied when the profile's specific
// constraints are violated or satisfied by the segment. Negative terms are
// obstacle-triggered; ambient snapshot conditions already act through the
// capped per-axis deductions, which keeps an obstacle-free segment at
// grade A for every profile. Clamped to [-maxUserAdjustment, +maxUserAdjustment].
func userAdjustment(snap types.SidewalkSnapshot, profile types.MobilityProfile) float64 {
	adj := 0.0

	if profile.AvoidStairs && containsType(snap.Obstacles, types.ObstacleStairsNoRamp) {
		adj -= 10
	}
	if profile.AvoidCrowds && containsType(snap.Obstacles, types.ObstacleVendorBlocking) {
		adj -= 5
	}
	if profile.PreferShade && snap.Shaded {
		adj += 3
	}
	if profile.MinPathWidth > 0 && snap.WidthMeters > 0 && snap.WidthMeters < profile.MinPathWidth &&
		containsType(snap.Obstacles, types.ObstacleNarrowPassage) {
		adj -= 8
	}
	if profile.MaxRampSlope > 0 && snap.SlopeDegrees > profile.MaxRampSlope &&
		containsType(snap.Obstacles, types.ObstacleSteepSlope) {
		adj -= 8
	}
	if snap.HasRamp && profile.Type == types.DeviceWheelchair {
		adj += 5
	}

	if adj > maxUserAdjustment {
		adj = maxUserAdjustment
	} else if adj < -maxUserAdjustment {
		adj = -maxUserAdjustment
	}
	return adj
}

// profileStairSensitive reports whether stairs and missing sidewalks are
// hard blockers for the rider's device rather than an inconvenience.
func profileStairSensitive(profile types.MobilityProfile) bool {
	return profile.Type == types.DeviceWheelchair || profile.Type == types.DeviceWalker
}

func containsType(obstacles []types.Obstacle, t types.ObstacleType) bool {
	for _, o := range obstacles {
		if o.Type == t {
			return true
		}
	}
	return false
}

func capDeduction(d float64) float64 {
	if d > maxSnapshotDeduction {
		return maxSnapshotDeduction
	}
	return d
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
