package types

// ObstacleType is the closed set of reportable physical barriers.
type ObstacleType string

const (
	ObstacleVendorBlocking  ObstacleType = "vendor_blocking"
	ObstacleParkedVehicles  ObstacleType = "parked_vehicles"
	ObstacleStairsNoRamp    ObstacleType = "stairs_no_ramp"
	ObstacleNarrowPassage   ObstacleType = "narrow_passage"
	ObstacleBrokenPavement  ObstacleType = "broken_pavement"
	ObstacleFlooding        ObstacleType = "flooding"
	ObstacleConstruction    ObstacleType = "construction"
	ObstacleElectricalPost  ObstacleType = "electrical_post"
	ObstacleTreeObstruction ObstacleType = "tree_obstruction"
	ObstacleNoSidewalk      ObstacleType = "no_sidewalk"
	ObstacleSteepSlope      ObstacleType = "steep_slope"
	ObstacleOther           ObstacleType = "other"
)

// ObstacleTypeInfo carries the per-type metadata used by scoring and by the
// caller-facing fallback messaging when no micro-detour can be found.
type ObstacleTypeInfo struct {
	Label string

	// Base score deductions per axis, before severity scaling.
	Traversability float64
	Safety         float64
	Comfort        float64

	// Advice is the static fallback shown when no bypass qualifies.
	Advice string
}

// obstacleTypeTable is the single source of truth for per-type metadata.
// Every ObstacleType constant MUST have an entry; Info falls back to the
// ObstacleOther entry for unrecognized values.
var obstacleTypeTable = map[ObstacleType]ObstacleTypeInfo{
	ObstacleVendorBlocking:  {Label: "Vendor blocking sidewalk", Traversability: 12, Safety: 4, Comfort: 8, Advice: "Wait for the vendor to clear, or ask for assistance passing through."},
	ObstacleParkedVehicles:  {Label: "Parked vehicles on path", Traversability: 14, Safety: 8, Comfort: 6, Advice: "Check for a gap between vehicles wide enough for your device."},
	ObstacleStairsNoRamp:    {Label: "Stairs without ramp", Traversability: 25, Safety: 10, Comfort: 5, Advice: "No ramp is available here. Backtrack to the previous intersection."},
	ObstacleNarrowPassage:   {Label: "Narrow passage", Traversability: 18, Safety: 6, Comfort: 8, Advice: "The passage may be narrower than your device. Proceed slowly or turn back."},
	ObstacleBrokenPavement:  {Label: "Broken pavement", Traversability: 12, Safety: 12, Comfort: 10, Advice: "Uneven surface ahead. Keep to the most even side of the path."},
	ObstacleFlooding:        {Label: "Flooding", Traversability: 15, Safety: 18, Comfort: 15, Advice: "Standing water ahead. Depth is hard to judge; avoid crossing if possible."},
	ObstacleConstruction:    {Label: "Construction", Traversability: 16, Safety: 14, Comfort: 10, Advice: "Construction zone ahead. Look for a signed pedestrian diversion."},
	ObstacleElectricalPost:  {Label: "Electrical post on path", Traversability: 10, Safety: 8, Comfort: 4, Advice: "A post narrows the path. Check clearance before committing."},
	ObstacleTreeObstruction: {Label: "Tree obstruction", Traversability: 10, Safety: 6, Comfort: 6, Advice: "Low branches or roots ahead. Pass on the street side with care."},
	ObstacleNoSidewalk:      {Label: "No sidewalk", Traversability: 20, Safety: 16, Comfort: 10, Advice: "The sidewalk ends here. Travel facing traffic and keep as far from the road as possible."},
	ObstacleSteepSlope:      {Label: "Steep slope", Traversability: 18, Safety: 10, Comfort: 12, Advice: "The gradient ahead may exceed your limit. Consider the longer flat route."},
	ObstacleOther:           {Label: "Obstacle", Traversability: 8, Safety: 6, Comfort: 6, Advice: "An obstacle was reported ahead. Proceed with caution."},
}

// Info returns the metadata for the obstacle type. Unrecognized types map to
// the ObstacleOther entry so a malformed record degrades instead of panicking.
func (t ObstacleType) Info() ObstacleTypeInfo {
	if info, ok := obstacleTypeTable[t]; ok {
		return info
	}
	return obstacleTypeTable[ObstacleOther]
}

// Valid reports whether the type is a member of the closed set.
func (t ObstacleType) Valid() bool {
	_, ok := obstacleTypeTable[t]
	return ok
}

// AllObstacleTypes returns every member of the closed set. Used by tests to
// enforce table exhaustiveness and by callers rendering pick lists.
func AllObstacleTypes() []ObstacleType {
	return []ObstacleType{
		ObstacleVendorBlocking, ObstacleParkedVehicles, ObstacleStairsNoRamp,
		ObstacleNarrowPassage, ObstacleBrokenPavement, ObstacleFlooding,
		ObstacleConstruction, ObstacleElectricalPost, ObstacleTreeObstruction,
		ObstacleNoSidewalk, ObstacleSteepSlope, ObstacleOther,
	}
}

// Severity classifies how strongly an obstacle impedes passage.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityBlocking Severity = "blocking"
)

// BaseUrgency returns the urgency floor contributed by severity alone.
func (s Severity) BaseUrgency() float64 {
	switch s {
	case SeverityBlocking:
		return 70
	case SeverityHigh:
		return 55
	case SeverityMedium:
		return 40
	case SeverityLow:
		return 25
	default:
		return 25
	}
}

// PenaltyMultiplier scales the per-type score deductions.
func (s Severity) PenaltyMultiplier() float64 {
	switch s {
	case SeverityBlocking:
		return 2.0
	case SeverityHigh:
		return 1.5
	case SeverityMedium:
		return 1.0
	case SeverityLow:
		return 0.5
	default:
		return 1.0
	}
}

// ObstacleStatus is the store-side lifecycle state of a report.
type ObstacleStatus string

const (
	ObstacleStatusPending     ObstacleStatus = "pending"
	ObstacleStatusVerified    ObstacleStatus = "verified"
	ObstacleStatusResolved    ObstacleStatus = "resolved"
	ObstacleStatusFalseReport ObstacleStatus = "false_report"
)

// DeviceType identifies the rider's mobility device.
type DeviceType string

const (
	DeviceWheelchair DeviceType = "wheelchair"
	DeviceWalker     DeviceType = "walker"
	DeviceCrutches   DeviceType = "crutches"
	DeviceCane       DeviceType = "cane"
	DeviceNone       DeviceType = "none"
)

// deviceParams holds the per-device movement and detour tuning.
type deviceParams struct {
	WalkingSpeed      float64 // meters per second
	UrgencyMultiplier float64
	MaxDetourTime     float64 // seconds
	MaxDetourDistance float64 // meters
	MaxSearchRadius   float64 // meters, clips bypass waypoint offsets
}

var deviceParamsTable = map[DeviceType]deviceParams{
	DeviceWheelchair: {WalkingSpeed: 0.9, UrgencyMultiplier: 1.2, MaxDetourTime: 420, MaxDetourDistance: 400, MaxSearchRadius: 100},
	DeviceWalker:     {WalkingSpeed: 0.6, UrgencyMultiplier: 1.2, MaxDetourTime: 480, MaxDetourDistance: 300, MaxSearchRadius: 80},
	DeviceCrutches:   {WalkingSpeed: 0.7, UrgencyMultiplier: 1.2, MaxDetourTime: 420, MaxDetourDistance: 300, MaxSearchRadius: 80},
	DeviceCane:       {WalkingSpeed: 1.0, UrgencyMultiplier: 1.0, MaxDetourTime: 300, MaxDetourDistance: 450, MaxSearchRadius: 100},
	DeviceNone:       {WalkingSpeed: 1.2, UrgencyMultiplier: 1.0, MaxDetourTime: 240, MaxDetourDistance: 500, MaxSearchRadius: 100},
}

func (d DeviceType) params() deviceParams {
	if p, ok := deviceParamsTable[d]; ok {
		return p
	}
	return deviceParamsTable[DeviceNone]
}

// ValidationTier is the derived trust classification of an obstacle.
type ValidationTier string

const (
	TierSingleReport      ValidationTier = "single_report"
	TierCommunityVerified ValidationTier = "community_verified"
	TierAdminResolved     ValidationTier = "admin_resolved"
)

// ConfidenceLevel is the coarse trust bucket attached to a ValidationStatus.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// SafetyRating grades an evaluated bypass route.
type SafetyRating string

const (
	SafetyLow    SafetyRating = "low"
	SafetyMedium SafetyRating = "medium"
	SafetyHigh   SafetyRating = "high"
)

// ValidationResponse is the rider's answer to a validation prompt.
type ValidationResponse string

const (
	ResponseStillThere ValidationResponse = "still_there"
	ResponseCleared    ValidationResponse = "cleared"
	ResponseSkip       ValidationResponse = "skip"
)

// Valid reports whether the response is one of the three accepted values.
func (r ValidationResponse) Valid() bool {
	switch r {
	case ResponseStillThere, ResponseCleared, ResponseSkip:
		return true
	}
	return false
}

// VoteDirection is the store-side vote increment issued for a response.
type VoteDirection string

const (
	VoteUp   VoteDirection = "upvote"
	VoteDown VoteDirection = "downvote"
)

// Grade is the letter grade derived from an overall accessibility score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradeFor maps an overall 0-100 score to its letter grade.
func GradeFor(overall float64) Grade {
	switch {
	case overall >= 85:
		return GradeA
	case overall >= 70:
		return GradeB
	case overall >= 55:
		return GradeC
	case overall >= 40:
		return GradeD
	default:
		return GradeF
	}
}

// SurfaceCondition describes the sidewalk surface quality in a snapshot.
type SurfaceCondition string

const (
	SurfaceGood SurfaceCondition = "good"
	SurfaceFair SurfaceCondition = "fair"
	SurfacePoor SurfaceCondition = "poor"
)

// TrafficLevel describes pedestrian/vehicle pressure around the segment.
type TrafficLevel string

const (
	TrafficLow      TrafficLevel = "low"
	TrafficModerate TrafficLevel = "moderate"
	TrafficHigh     TrafficLevel = "high"
)

// DetectorState is the proximity detector's session-scoped state machine.
type DetectorState string

const (
	DetectorIdle      DetectorState = "idle"
	DetectorDetecting DetectorState = "detecting"
)
