package types

import (
	"math"
	"time"
)

// Location represents a geographic coordinate fix. AccuracyMeters, when
// positive, is the reported horizontal accuracy of the fix; poor-accuracy
// fixes are discarded before any location-dependent computation runs.
type Location struct {
	Latitude       float64 `json:"latitude" validate:"latitude"`
	Longitude      float64 `json:"longitude" validate:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters,omitempty"`
}

// Valid reports whether the coordinate is a usable fix. The null island
// coordinate (0,0) is treated as malformed because it is the classic
// zero-value sentinel of a failed geocode.
func (l Location) Valid() bool {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) {
		return false
	}
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return false
	}
	if l.Latitude == 0 && l.Longitude == 0 {
		return false
	}
	return true
}

// AccuracyWithin reports whether the fix is precise enough for
// location-dependent work. A zero AccuracyMeters means the source did not
// report accuracy and the fix is accepted as-is.
func (l Location) AccuracyWithin(maxMeters float64) bool {
	return l.AccuracyMeters <= 0 || l.AccuracyMeters <= maxMeters
}

// MobilityProfile is the rider's immutable accessibility configuration.
// It is owned by an external profile source; the core only reads it.
type MobilityProfile struct {
	Type               DeviceType `json:"type" validate:"required,oneof=wheelchair walker crutches cane none"`
	MaxRampSlope       float64    `json:"max_ramp_slope"` // degrees
	MinPathWidth       float64    `json:"min_path_width"` // meters
	AvoidStairs        bool       `json:"avoid_stairs"`
	AvoidCrowds        bool       `json:"avoid_crowds"`
	PreferShade        bool       `json:"prefer_shade"`
	MaxWalkingDistance float64    `json:"max_walking_distance,omitempty"` // meters, 0 = unlimited
}

// WalkingSpeed returns the rider's expected speed in meters per second.
func (p MobilityProfile) WalkingSpeed() float64 {
	return p.Type.params().WalkingSpeed
}

// UrgencyMultiplier weights alert urgency for riders whose device makes
// rerouting slower and riskier.
func (p MobilityProfile) UrgencyMultiplier() float64 {
	return p.Type.params().UrgencyMultiplier
}

// MaxDetourTime is the longest acceptable extra travel time for a bypass.
func (p MobilityProfile) MaxDetourTime() time.Duration {
	return time.Duration(p.Type.params().MaxDetourTime) * time.Second
}

// MaxDetourDistance is the longest acceptable extra distance for a bypass,
// further capped by MaxWalkingDistance when the profile sets one.
func (p MobilityProfile) MaxDetourDistance() float64 {
	d := p.Type.params().MaxDetourDistance
	if p.MaxWalkingDistance > 0 && p.MaxWalkingDistance < d {
		return p.MaxWalkingDistance
	}
	return d
}

// MaxSearchRadius clips how far from the obstacle bypass waypoints may be
// generated.
func (p MobilityProfile) MaxSearchRadius() float64 {
	return p.Type.params().MaxSearchRadius
}

// Obstacle is a community- or admin-reported physical barrier. Created
// externally on report submission; this core reads it and issues vote
// increments back to the store through consensus processing.
type Obstacle struct {
	ID             string         `json:"id"`
	Location       Location       `json:"location"`
	Type           ObstacleType   `json:"type"`
	Severity       Severity       `json:"severity"`
	Description    string         `json:"description,omitempty"`
	ReportedBy     string         `json:"reported_by"`
	ReportedAt     time.Time      `json:"reported_at"`
	Upvotes        int            `json:"upvotes"`
	Downvotes      int            `json:"downvotes"`
	Status         ObstacleStatus `json:"status"`
	Verified       bool           `json:"verified"`
	LastVerifiedAt *time.Time     `json:"last_verified_at,omitempty"`
}

// TotalVotes is the combined community vote count.
func (o Obstacle) TotalVotes() int {
	return o.Upvotes + o.Downvotes
}

// ExpiresAt is the moment the report retires regardless of votes.
func (o Obstacle) ExpiresAt(ttl time.Duration) time.Time {
	return o.ReportedAt.Add(ttl)
}

// Expired reports whether the obstacle has aged out. Expired obstacles are
// never offered for validation and carry no alerting weight; they may still
// be rendered read-only by callers.
func (o Obstacle) Expired(now time.Time, ttl time.Duration) bool {
	return now.After(o.ExpiresAt(ttl))
}

// Confidence is the community trust in the report on a 0-1 scale: a Laplace
// vote ratio (up+1)/(up+down+2) with a bonus for admin verification, capped
// at 1.0. An unvoted report sits at 0.5.
func (o Obstacle) Confidence() float64 {
	c := float64(o.Upvotes+1) / float64(o.TotalVotes()+2)
	if o.Verified || o.Status == ObstacleStatusVerified {
		c += 0.2
	}
	if c > 1 {
		c = 1
	}
	return c
}

// SidewalkSnapshot is a point-in-time description of the segment being
// graded, including the obstacle reports that contribute to it.
type SidewalkSnapshot struct {
	WidthMeters  float64          `json:"width_meters"`
	Surface      SurfaceCondition `json:"surface"`
	SlopeDegrees float64          `json:"slope_degrees"`
	Lit          bool             `json:"lit"`
	Shaded       bool             `json:"shaded"`
	Traffic      TrafficLevel     `json:"traffic"`
	HasRamp      bool             `json:"has_ramp"`
	HasHandrail  bool             `json:"has_handrail"`
	Obstacles    []Obstacle       `json:"obstacles"`
}

// AccessibilityScore is the multi-criteria grade for a segment, personalized
// to one mobility profile. Computed fresh on every call, never persisted.
type AccessibilityScore struct {
	Traversability float64 `json:"traversability"`
	Safety         float64 `json:"safety"`
	Comfort        float64 `json:"comfort"`
	Overall        float64 `json:"overall"`
	Grade          Grade   `json:"grade"`
	UserAdjustment float64 `json:"user_adjustment"`
}

// ProximityAlert is one ranked "obstacle ahead" result. Ephemeral: recomputed
// every detection cycle because obstacle and rider state both drift.
type ProximityAlert struct {
	Obstacle        Obstacle      `json:"obstacle"`
	Distance        float64       `json:"distance_meters"`
	TimeToEncounter time.Duration `json:"time_to_encounter"`
	Severity        Severity      `json:"severity"`
	Confidence      float64       `json:"confidence"`
	Urgency         float64       `json:"urgency"`
}

// ValidationStatus is the derived trust classification of an obstacle.
// It is a pure function of the obstacle's current vote counts and status;
// it has no independent lifecycle.
type ValidationStatus struct {
	Tier               ValidationTier  `json:"tier"`
	Confidence         ConfidenceLevel `json:"confidence"`
	ValidationCount    int             `json:"validation_count"`
	ConflictingReports bool            `json:"conflicting_reports"`
	NeedsValidation    bool            `json:"needs_validation"`
	AutoExpireAt       time.Time       `json:"auto_expire_at"`
}

// ValidationPrompt asks the current rider whether a nearby report still holds.
type ValidationPrompt struct {
	Obstacle Obstacle `json:"obstacle"`
	Distance float64  `json:"distance_meters"`
	Question string   `json:"question"`
}

// ValidationEvent is the best-effort analytics record written when a rider
// answers a prompt. Write failures never block or fail the vote itself.
type ValidationEvent struct {
	ID         string             `json:"id"`
	ObstacleID string             `json:"obstacle_id"`
	Action     ValidationResponse `json:"action"`
	Timestamp  time.Time          `json:"timestamp"`
	Location   *Location          `json:"location,omitempty"`
	Method     string             `json:"method"`
}

// RouteStep is one instruction of a provider route, carrying the fields the
// detour safety check needs.
type RouteStep struct {
	Instruction string        `json:"instruction"`
	TravelMode  string        `json:"travel_mode"`
	Maneuver    string        `json:"maneuver,omitempty"`
	Distance    float64       `json:"distance_meters"`
	Duration    time.Duration `json:"duration"`
}

// Route is a walking route returned by the external routing provider.
type Route struct {
	Polyline []Location    `json:"polyline"`
	Duration time.Duration `json:"duration"`
	Distance float64       `json:"distance_meters"`
	Summary  string        `json:"summary,omitempty"`
	Steps    []RouteStep   `json:"steps"`
}

// MicroDetour is a short street-level bypass around a single obstacle.
// Built once per accepted candidate evaluation; not persisted.
type MicroDetour struct {
	Route           Route         `json:"route"`
	ExtraTime       time.Duration `json:"extra_time"`
	ExtraDistance   float64       `json:"extra_distance_meters"`
	SafetyRating    SafetyRating  `json:"safety_rating"`
	Confidence      float64       `json:"confidence"`
	Reason          string        `json:"reason"`
	RouteSimilarity float64       `json:"route_similarity"`
}
