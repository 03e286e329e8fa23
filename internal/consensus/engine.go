// Package consensus implements the tiered obstacle-validation subsystem.
// Repeated community votes move a report through an increasing-trust
// classification (single_report, community_verified, admin_resolved), and a
// weighted random draw decides which nearby obstacle the current rider is
// asked to validate next.
//
// The engine never mutates consensus state itself: tier classification is a
// pure function of the obstacle's current vote counts and status, and vote
// processing delegates a single increment to the store's own atomicity
// guarantees.
package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"waispath/internal/geo"
	"waispath/internal/session"
	"waispath/internal/types"
)

// ObstacleStore is the obstacle-store surface the engine needs.
type ObstacleStore interface {
	GetObstaclesInArea(ctx context.Context, lat, lng, radiusKm float64) ([]types.Obstacle, error)
	IncrementVote(ctx context.Context, obstacleID string, direction types.VoteDirection) error
}

// EventRecorder receives best-effort validation analytics. Implementations
// may fail freely; the engine discards recorder errors.
type EventRecorder interface {
	RecordValidationEvent(ctx context.Context, event types.ValidationEvent) error
}

// eventRecordTimeout bounds the detached best-effort analytics write.
const eventRecordTimeout = 5 * time.Second

// Engine classifies obstacle trust and selects validation prompts.
type Engine struct {
	store  ObstacleStore
	events EventRecorder
	cfg    types.ConsensusConfig
	logger *slog.Logger
	now    func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	// recordWG lets tests wait for detached analytics writes.
	recordWG sync.WaitGroup
}

// Config holds the dependencies for creating an Engine.
type Config struct {
	Store     ObstacleStore
	Events    EventRecorder
	Consensus types.ConsensusConfig
	Logger    *slog.Logger

	// Now overrides the clock for testing. Defaults to time.Now.
	Now func() time.Time
	// Rand overrides the sampling source for testing. Defaults to a
	// time-seeded source.
	Rand *rand.Rand
}

// NewEngine creates an Engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		store:  cfg.Store,
		events: cfg.Events,
		cfg:    cfg.Consensus,
		logger: logger,
		now:    now,
		rng:    rng,
	}
}

// Classify derives the obstacle's trust classification from its current vote
// counts and status.
func (e *Engine) Classify(obstacle types.Obstacle) types.ValidationStatus {
	tier := types.TierSingleReport
	switch {
	case obstacle.Verified || obstacle.Status == types.ObstacleStatusResolved:
		tier = types.TierAdminResolved
	case obstacle.Status == types.ObstacleStatusVerified || obstacle.TotalVotes() >= e.cfg.CommunityVoteThreshold:
		tier = types.TierCommunityVerified
	}

	conflicting := obstacle.Downvotes > 0 && obstacle.Upvotes <= obstacle.Downvotes

	confidence := types.ConfidenceLow
	if tier == types.TierCommunityVerified && obstacle.Upvotes > obstacle.Downvotes {
		confidence = types.ConfidenceMedium
	}
	if tier == types.TierAdminResolved {
		confidence = types.ConfidenceHigh
	}

	return types.ValidationStatus{
		Tier:               tier,
		Confidence:         confidence,
		ValidationCount:    obstacle.TotalVotes(),
		ConflictingReports: conflicting,
		// A disputed obstacle is re-offered for validation regardless of tier.
		NeedsValidation: tier == types.TierSingleReport || conflicting,
		AutoExpireAt:    obstacle.ExpiresAt(e.cfg.ObstacleTTL),
	}
}

// CheckForPrompts decides whether to ask the current rider to validate a
// nearby obstacle, returning at most one prompt per check.
//
// Excluded from consideration: obstacles the rider authored, obstacles this
// rider validated within the cooldown window, admin-resolved obstacles,
// expired obstacles, and anything outside the prompt radius. The survivors
// are weighted by inverse distance and one is drawn at random, spreading
// validation load across pending obstacles over a session instead of hammering
// the closest one.
//
// Store failures and invalid input yield an empty result, never an error.
func (e *Engine) CheckForPrompts(ctx context.Context, sess *session.State, loc types.Location) []types.ValidationPrompt {
	if !loc.Valid() || !loc.AccuracyWithin(types.MaxLocationAccuracy) {
		return nil
	}
	if sess.PromptCount() >= e.cfg.SessionPromptCap {
		return nil
	}

	obstacles, err := e.store.GetObstaclesInArea(ctx, loc.Latitude, loc.Longitude, e.cfg.PromptRadiusMeters/1000)
	if err != nil {
		e.logger.WarnContext(ctx, "obstacle fetch failed, no validation prompt this cycle",
			"session_id", sess.ID,
			"error", err,
		)
		return nil
	}

	now := e.now()
	type weighted struct {
		obstacle types.Obstacle
		distance float64
		weight   float64
	}
	var candidates []weighted
	var totalWeight float64

	for _, obs := range obstacles {
		if !obs.Location.Valid() {
			e.logger.WarnContext(ctx, "dropping obstacle with malformed location",
				"obstacle_id", obs.ID,
			)
			continue
		}
		if obs.Expired(now, e.cfg.ObstacleTTL) {
			continue
		}
		if obs.ReportedBy != "" && obs.ReportedBy == sess.RiderID {
			continue
		}
		if last, ok := sess.LastValidated(obs.ID); ok && now.Sub(last) < e.cfg.ValidationCooldown {
			continue
		}
		if !e.Classify(obs).NeedsValidation {
			continue
		}

		distance := geo.Haversine(loc, obs.Location)
		if distance > e.cfg.PromptRadiusMeters {
			continue
		}

		// Closer obstacles draw more validation attention.
		w := 1 / (1 + distance/10)
		candidates = append(candidates, weighted{obstacle: obs, distance: distance, weight: w})
		totalWeight += w
	}

	if len(candidates) == 0 {
		return nil
	}

	pick := candidates[len(candidates)-1]
	target := e.randFloat() * totalWeight
	for _, c := range candidates {
		if target < c.weight {
			pick = c
			break
		}
		target -= c.weight
	}

	sess.IncrementPromptCount()
	return []types.ValidationPrompt{{
		Obstacle: pick.obstacle,
		Distance: pick.distance,
		Question: fmt.Sprintf("Is the %s still there?", pick.obstacle.Type.Info().Label),
	}}
}

// ProcessResponse turns a rider's answer into exactly one vote increment:
// upvote for still_there, downvote for cleared, none for skip. The response
// also starts the rider's cooldown for this obstacle and, detached and
// best-effort, records an analytics event -- recorder failures never block or
// fail the vote.
func (e *Engine) ProcessResponse(ctx context.Context, sess *session.State, obstacleID string, response types.ValidationResponse, loc *types.Location) error {
	if !response.Valid() {
		return types.NewAppError(types.ErrCodeValidationInvalidResponse,
			fmt.Sprintf("unrecognized validation response %q", response), nil)
	}

	switch response {
	case types.ResponseStillThere:
		if err := e.store.IncrementVote(ctx, obstacleID, types.VoteUp); err != nil {
			return fmt.Errorf("recording upvote for %s: %w", obstacleID, err)
		}
	case types.ResponseCleared:
		if err := e.store.IncrementVote(ctx, obstacleID, types.VoteDown); err != nil {
			return fmt.Errorf("recording downvote for %s: %w", obstacleID, err)
		}
	case types.ResponseSkip:
		// No vote; the rider declined to judge.
	}

	sess.MarkValidated(obstacleID, e.now())

	if e.events != nil {
		event := types.ValidationEvent{
			ID:         uuid.NewString(),
			ObstacleID: obstacleID,
			Action:     response,
			Timestamp:  e.now(),
			Location:   loc,
			Method:     "prompt",
		}
		e.recordWG.Add(1)
		go func() {
			defer e.recordWG.Done()
			recordCtx, cancel := context.WithTimeout(context.Background(), eventRecordTimeout)
			defer cancel()
			if err := e.events.RecordValidationEvent(recordCtx, event); err != nil {
				e.logger.Warn("validation event record failed",
					"obstacle_id", obstacleID,
					"error", err,
				)
			}
		}()
	}

	return nil
}

// WaitForEventWrites blocks until detached analytics writes have finished.
// Intended for tests and graceful shutdown.
func (e *Engine) WaitForEventWrites() {
	e.recordWG.Wait()
}

func (e *Engine) randFloat() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}
