// Package session holds the per-rider navigation session state: validation
// prompt budget, per-obstacle cooldown timestamps, and the proximity
// detector's last-detection memo. The engines are stateless; every call
// receives the session it should read and update. This keeps multi-rider and
// test isolation clean -- there is no module-level state anywhere in the core.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"waispath/internal/types"
)

// State is one rider's navigation session. Safe for concurrent use; the fast
// proximity tick and the slower validation tick share it.
type State struct {
	ID      string
	RiderID string

	mu                 sync.Mutex
	promptCount        int
	validatedAt        map[string]time.Time
	lastDetection      *types.Location
	detectorState      types.DetectorState
	validationInFlight bool
}

// New creates a session for the given rider with a fresh uuid.
func New(riderID string) *State {
	return &State{
		ID:            uuid.NewString(),
		RiderID:       riderID,
		validatedAt:   make(map[string]time.Time),
		detectorState: types.DetectorIdle,
	}
}

// Reset clears the session counters and memos. Called when a new navigation
// session starts so prompt budgets and the movement gate start from scratch.
// Per-obstacle validation cooldowns survive a reset: they suppress re-asking
// the same rider about the same report across sessions.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promptCount = 0
	s.lastDetection = nil
	s.detectorState = types.DetectorIdle
	s.validationInFlight = false
}

// PromptCount returns how many validation prompts this session has issued.
func (s *State) PromptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptCount
}

// IncrementPromptCount records that a prompt was issued.
func (s *State) IncrementPromptCount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promptCount++
}

// LastValidated returns when this rider last answered a prompt for the
// obstacle, if ever.
func (s *State) LastValidated(obstacleID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.validatedAt[obstacleID]
	return t, ok
}

// MarkValidated records a cooldown timestamp for the obstacle.
func (s *State) MarkValidated(obstacleID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validatedAt[obstacleID] = at
}

// LastDetection returns the location of the last successful detection tick.
func (s *State) LastDetection() (types.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastDetection == nil {
		return types.Location{}, false
	}
	return *s.lastDetection, true
}

// SetLastDetection stores the movement-gate memo.
func (s *State) SetLastDetection(loc types.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDetection = &loc
	s.detectorState = types.DetectorDetecting
}

// ClearLastDetection drops the movement-gate memo and returns the detector to
// idle. Called when navigation stops so resuming re-evaluates from scratch
// instead of reusing a stale "insufficient movement" gate.
func (s *State) ClearLastDetection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDetection = nil
	s.detectorState = types.DetectorIdle
}

// DetectorState reports the detector's current state for this session.
func (s *State) DetectorState() types.DetectorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detectorState
}

// BeginValidationCheck acquires the in-flight guard for a validation-prompt
// check. Returns false if one is already running; the caller skips this tick.
func (s *State) BeginValidationCheck() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.validationInFlight {
		return false
	}
	s.validationInFlight = true
	return true
}

// EndValidationCheck releases the in-flight guard.
func (s *State) EndValidationCheck() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validationInFlight = false
}

// Manager is a registry of active sessions keyed by session ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*State)}
}

// Start creates and registers a session for the rider.
func (m *Manager) Start(riderID string) *State {
	s := New(riderID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

// Get returns the session for the given ID.
func (m *Manager) Get(id string) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// End removes the session from the registry.
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
