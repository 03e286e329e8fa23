// Package navigation drives the server-side tick loops for one active
// navigation session: a fast proximity pass over the rider's route and a
// slower community-validation pass. Deployments whose clients stream
// locations run a Runner per session; request-driven clients call the same
// engines through the HTTP handlers instead and skip this package entirely.
package navigation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"waispath/internal/session"
	"waispath/internal/types"
)

// LocationSource yields the rider's most recent location fix. The second
// return is false when no fix has arrived yet.
type LocationSource interface {
	Current() (types.Location, bool)
}

// Scanner checks for obstacles ahead on the route.
type Scanner interface {
	DetectAhead(ctx context.Context, sess *session.State, loc types.Location, route []types.Location, profile types.MobilityProfile) []types.ProximityAlert
}

// Prompter selects community-validation prompts near the rider.
type Prompter interface {
	CheckForPrompts(ctx context.Context, sess *session.State, loc types.Location) []types.ValidationPrompt
}

// Sink receives the loop's output for delivery to the rider's client.
// Implementations must not block; a slow sink stalls the ticks.
type Sink interface {
	PublishAlerts(sessionID string, alerts []types.ProximityAlert)
	PublishPrompts(sessionID string, prompts []types.ValidationPrompt)
}

// Config holds the dependencies and timing for a Runner.
type Config struct {
	Session *session.State
	Route   []types.Location
	Profile types.MobilityProfile

	Scanner  Scanner
	Prompter Prompter
	Source   LocationSource
	Sink     Sink

	ProximityInterval  time.Duration
	ValidationInterval time.Duration

	Logger *slog.Logger
}

// Runner ticks one session's proximity and validation loops until stopped.
type Runner struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a Runner. Intervals left at zero get the service
// defaults (3s proximity, 10s validation).
func NewRunner(cfg Config) *Runner {
	if cfg.ProximityInterval <= 0 {
		cfg.ProximityInterval = 3 * time.Second
	}
	if cfg.ValidationInterval <= 0 {
		cfg.ValidationInterval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Start launches the tick loop. Calling Start on a running Runner is a
// no-op. The loop stops when Stop is called or ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	go r.run(ctx, done)

	r.logger.Info("navigation loop started",
		"session_id", r.cfg.Session.ID,
		"proximity_interval", r.cfg.ProximityInterval,
		"validation_interval", r.cfg.ValidationInterval,
	)
}

// Stop halts the loop and clears the detector's movement-gate memo so a
// restarted session begins with a fresh detection pass. Safe to call more
// than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	r.cfg.Session.ClearLastDetection()
	r.logger.Info("navigation loop stopped", "session_id", r.cfg.Session.ID)
}

// run services both tickers, dispatching each pass on its own goroutine so
// one pass pending a slow store response never delays the other cadence or
// the next tick of its own. Session state carries its own lock, and the
// in-flight guard keeps validation checks from stacking.
func (r *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	proximity := time.NewTicker(r.cfg.ProximityInterval)
	defer proximity.Stop()
	validation := time.NewTicker(r.cfg.ValidationInterval)
	defer validation.Stop()

	var ticks sync.WaitGroup
	defer ticks.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-proximity.C:
			ticks.Add(1)
			go func() {
				defer ticks.Done()
				r.proximityTick(ctx)
			}()
		case <-validation.C:
			ticks.Add(1)
			go func() {
				defer ticks.Done()
				r.validationTick(ctx)
			}()
		}
	}
}

// proximityTick runs one detection pass. A pass with no fix yet, or one the
// movement gate skips, publishes nothing.
func (r *Runner) proximityTick(ctx context.Context) {
	loc, ok := r.cfg.Source.Current()
	if !ok {
		return
	}

	alerts := r.cfg.Scanner.DetectAhead(ctx, r.cfg.Session, loc, r.cfg.Route, r.cfg.Profile)
	if len(alerts) == 0 {
		return
	}
	r.cfg.Sink.PublishAlerts(r.cfg.Session.ID, alerts)
}

// validationTick runs one prompt-selection pass. The in-flight guard keeps a
// slow store from stacking concurrent checks for the same session.
func (r *Runner) validationTick(ctx context.Context) {
	loc, ok := r.cfg.Source.Current()
	if !ok {
		return
	}

	if !r.cfg.Session.BeginValidationCheck() {
		return
	}
	defer r.cfg.Session.EndValidationCheck()

	prompts := r.cfg.Prompter.CheckForPrompts(ctx, r.cfg.Session, loc)
	if len(prompts) == 0 {
		return
	}
	r.cfg.Sink.PublishPrompts(r.cfg.Session.ID, prompts)
}
