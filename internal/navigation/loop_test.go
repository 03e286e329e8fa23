package navigation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waispath/internal/session"
	"waispath/internal/types"
)

type stubSource struct {
	mu  sync.Mutex
	loc *types.Location
}

func (s *stubSource) set(loc types.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loc = &loc
}

func (s *stubSource) Current() (types.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc == nil {
		return types.Location{}, false
	}
	return *s.loc, true
}

type stubScanner struct {
	mu     sync.Mutex
	alerts []types.ProximityAlert
	calls  int
	gate   chan struct{} // when set, DetectAhead blocks until it is closed
}

func (s *stubScanner) DetectAhead(_ context.Context, _ *session.State, _ types.Location, _ []types.Location, _ types.MobilityProfile) []types.ProximityAlert {
	s.mu.Lock()
	s.calls++
	alerts := s.alerts
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return alerts
}

func (s *stubScanner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubPrompter struct {
	mu      sync.Mutex
	prompts []types.ValidationPrompt
	calls   int
}

func (s *stubPrompter) CheckForPrompts(_ context.Context, _ *session.State, _ types.Location) []types.ValidationPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.prompts
}

func (s *stubPrompter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSink struct {
	mu      sync.Mutex
	alerts  [][]types.ProximityAlert
	prompts [][]types.ValidationPrompt
}

func (s *recordingSink) PublishAlerts(_ string, alerts []types.ProximityAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alerts)
}

func (s *recordingSink) PublishPrompts(_ string, prompts []types.ValidationPrompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompts)
}

func (s *recordingSink) alertBatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func (s *recordingSink) promptBatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func testRoute() []types.Location {
	return []types.Location{
		{Latitude: 14.5764, Longitude: 121.0851},
		{Latitude: 14.5800, Longitude: 121.0900},
	}
}

func newRunner(sess *session.State, scanner Scanner, prompter Prompter, source LocationSource, sink Sink) *Runner {
	return NewRunner(Config{
		Session:            sess,
		Route:              testRoute(),
		Profile:            types.MobilityProfile{Type: types.DeviceWheelchair},
		Scanner:            scanner,
		Prompter:           prompter,
		Source:             source,
		Sink:               sink,
		ProximityInterval:  5 * time.Millisecond,
		ValidationInterval: 8 * time.Millisecond,
	})
}

func TestRunner_PublishesAlertsAndPrompts(t *testing.T) {
	sess := session.New("rider_1")
	source := &stubSource{}
	source.set(types.Location{Latitude: 14.5764, Longitude: 121.0851, AccuracyMeters: 5})
	scanner := &stubScanner{alerts: []types.ProximityAlert{{Distance: 40, Urgency: 80}}}
	prompter := &stubPrompter{prompts: []types.ValidationPrompt{{Distance: 25, Question: "Is it still there?"}}}
	sink := &recordingSink{}

	runner := newRunner(sess, scanner, prompter, source, sink)
	runner.Start(context.Background())
	defer runner.Stop()

	require.Eventually(t, func() bool {
		return sink.alertBatches() > 0 && sink.promptBatches() > 0
	}, time.Second, 2*time.Millisecond)
}

func TestRunner_NoFixPublishesNothing(t *testing.T) {
	sess := session.New("rider_1")
	scanner := &stubScanner{alerts: []types.ProximityAlert{{Urgency: 80}}}
	prompter := &stubPrompter{prompts: []types.ValidationPrompt{{Question: "?"}}}
	sink := &recordingSink{}

	runner := newRunner(sess, scanner, prompter, &stubSource{}, sink)
	runner.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	runner.Stop()

	assert.Zero(t, scanner.callCount())
	assert.Zero(t, prompter.callCount())
	assert.Zero(t, sink.alertBatches())
	assert.Zero(t, sink.promptBatches())
}

func TestRunner_EmptyResultsNotPublished(t *testing.T) {
	sess := session.New("rider_1")
	source := &stubSource{}
	source.set(types.Location{Latitude: 14.5764, Longitude: 121.0851})
	scanner := &stubScanner{}
	prompter := &stubPrompter{}
	sink := &recordingSink{}

	runner := newRunner(sess, scanner, prompter, source, sink)
	runner.Start(context.Background())

	require.Eventually(t, func() bool {
		return scanner.callCount() > 2 && prompter.callCount() > 2
	}, time.Second, 2*time.Millisecond)
	runner.Stop()

	assert.Zero(t, sink.alertBatches())
	assert.Zero(t, sink.promptBatches())
}

func TestRunner_ValidationGuardSkipsHeldSession(t *testing.T) {
	sess := session.New("rider_1")
	source := &stubSource{}
	source.set(types.Location{Latitude: 14.5764, Longitude: 121.0851})
	prompter := &stubPrompter{}
	sink := &recordingSink{}

	// Another caller (an HTTP validation check, say) holds the in-flight
	// guard; the loop must skip its ticks instead of stacking behind it.
	require.True(t, sess.BeginValidationCheck())

	runner := newRunner(sess, &stubScanner{}, prompter, source, sink)
	runner.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, prompter.callCount())

	sess.EndValidationCheck()
	require.Eventually(t, func() bool {
		return prompter.callCount() > 0
	}, time.Second, 2*time.Millisecond)

	runner.Stop()
}

func TestRunner_StopClearsDetectionMemo(t *testing.T) {
	sess := session.New("rider_1")
	sess.SetLastDetection(types.Location{Latitude: 14.5764, Longitude: 121.0851})
	source := &stubSource{}
	source.set(types.Location{Latitude: 14.5764, Longitude: 121.0851})

	runner := newRunner(sess, &stubScanner{}, &stubPrompter{}, source, &recordingSink{})
	runner.Start(context.Background())
	runner.Stop()

	_, ok := sess.LastDetection()
	assert.False(t, ok)
	assert.Equal(t, types.DetectorIdle, sess.DetectorState())
}

func TestRunner_StopRightAfterStart(t *testing.T) {
	sess := session.New("rider_1")
	runner := newRunner(sess, &stubScanner{}, &stubPrompter{}, &stubSource{}, &recordingSink{})

	// Stop may land before the loop goroutine has run at all; every cycle
	// must shut down cleanly.
	for i := 0; i < 25; i++ {
		runner.Start(context.Background())
		runner.Stop()
	}
}

func TestRunner_SlowDetectionDoesNotStallTicks(t *testing.T) {
	sess := session.New("rider_1")
	source := &stubSource{}
	source.set(types.Location{Latitude: 14.5764, Longitude: 121.0851})
	gate := make(chan struct{})
	scanner := &stubScanner{gate: gate}
	prompter := &stubPrompter{}

	runner := newRunner(sess, scanner, prompter, source, &recordingSink{})
	runner.Start(context.Background())

	// Every detection pass is stuck on the store; validation must keep
	// ticking and fresh detection passes must keep starting.
	require.Eventually(t, func() bool {
		return scanner.callCount() > 1 && prompter.callCount() > 0
	}, time.Second, 2*time.Millisecond)

	close(gate)
	runner.Stop()
}

func TestRunner_StartTwiceAndStopTwice(t *testing.T) {
	sess := session.New("rider_1")
	source := &stubSource{}

	runner := newRunner(sess, &stubScanner{}, &stubPrompter{}, source, &recordingSink{})
	runner.Start(context.Background())
	runner.Start(context.Background()) // no-op
	runner.Stop()
	runner.Stop() // no-op
}

func TestRunner_ContextCancelStopsLoop(t *testing.T) {
	sess := session.New("rider_1")
	source := &stubSource{}
	source.set(types.Location{Latitude: 14.5764, Longitude: 121.0851})
	scanner := &stubScanner{}

	ctx, cancel := context.WithCancel(context.Background())
	runner := newRunner(sess, scanner, &stubPrompter{}, source, &recordingSink{})
	runner.Start(ctx)

	require.Eventually(t, func() bool {
		return scanner.callCount() > 0
	}, time.Second, 2*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	before := scanner.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, scanner.callCount())
}
