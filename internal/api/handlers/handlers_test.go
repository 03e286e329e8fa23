package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waispath/internal/core"
	"waispath/internal/session"
	"waispath/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockScorer struct {
	scoreFn func(snapshot types.SidewalkSnapshot, profile types.MobilityProfile) types.AccessibilityScore
}

func (m *mockScorer) Score(snapshot types.SidewalkSnapshot, profile types.MobilityProfile) types.AccessibilityScore {
	if m.scoreFn != nil {
		return m.scoreFn(snapshot, profile)
	}
	return types.AccessibilityScore{
		Traversability: 95,
		Safety:         90,
		Comfort:        88,
		Overall:        93,
		Grade:          types.GradeA,
	}
}

type mockScanner struct {
	alerts   []types.ProximityAlert
	lastLoc  types.Location
	lastSess *session.State
}

func (m *mockScanner) DetectAhead(_ context.Context, sess *session.State, loc types.Location, _ []types.Location, _ types.MobilityProfile) []types.ProximityAlert {
	m.lastSess = sess
	m.lastLoc = loc
	return m.alerts
}

type mockValidation struct {
	prompts    []types.ValidationPrompt
	respondErr error

	respondedObstacle string
	respondedWith     types.ValidationResponse
}

func (m *mockValidation) CheckForPrompts(_ context.Context, _ *session.State, _ types.Location) []types.ValidationPrompt {
	return m.prompts
}

func (m *mockValidation) ProcessResponse(_ context.Context, _ *session.State, obstacleID string, response types.ValidationResponse, _ *types.Location) error {
	m.respondedObstacle = obstacleID
	m.respondedWith = response
	return m.respondErr
}

type mockPlanner struct {
	detour    *types.MicroDetour
	detourErr error
}

func (m *mockPlanner) CreateDetour(_ context.Context, _ types.Location, _ types.Obstacle, _ types.Location, _ types.MobilityProfile) (*types.MicroDetour, error) {
	return m.detour, m.detourErr
}

func (m *mockPlanner) DirectRoute(_ context.Context, _, _ types.Location) (*types.Route, error) {
	return &types.Route{Duration: 600 * time.Second, Distance: 800}, nil
}

type mockRouteProvider struct {
	routes []types.Route
	err    error
}

func (m *mockRouteProvider) Routes(_ context.Context, _, _ types.Location) ([]types.Route, error) {
	return m.routes, m.err
}

// =============================================================================
// Helpers
// =============================================================================

func postJSON(t *testing.T, router chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func validProfile() types.MobilityProfile {
	return types.MobilityProfile{Type: types.DeviceWheelchair}
}

func validLocation() types.Location {
	return types.Location{Latitude: 14.5764, Longitude: 121.0851, AccuracyMeters: 5}
}

// =============================================================================
// ScoreHandler Tests
// =============================================================================

func newScoreRouter(scorer AccessibilityScorer) chi.Router {
	r := chi.NewRouter()
	NewScoreHandler(scorer, core.NewValidator(), nil).RegisterRoutes(r)
	return r
}

func TestScoreHandler_Success(t *testing.T) {
	router := newScoreRouter(&mockScorer{})

	rec := postJSON(t, router, "/score", ScoreRequest{
		Snapshot: types.SidewalkSnapshot{WidthMeters: 1.5, Surface: types.SurfaceGood},
		Profile:  validProfile(),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data types.AccessibilityScore `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.GradeA, resp.Data.Grade)
	assert.Equal(t, 93.0, resp.Data.Overall)
}

func TestScoreHandler_MalformedJSON(t *testing.T) {
	router := newScoreRouter(&mockScorer{})

	req := httptest.NewRequest(http.MethodPost, "/score", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_invalid_json", decodeErrorCode(t, rec))
}

func TestScoreHandler_UnknownField(t *testing.T) {
	router := newScoreRouter(&mockScorer{})

	req := httptest.NewRequest(http.MethodPost, "/score", bytes.NewReader([]byte(`{"bogus": true}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_invalid_json", decodeErrorCode(t, rec))
}

func TestScoreHandler_InvalidProfile(t *testing.T) {
	router := newScoreRouter(&mockScorer{})

	rec := postJSON(t, router, "/score", ScoreRequest{
		Snapshot: types.SidewalkSnapshot{WidthMeters: 1.5},
		Profile:  types.MobilityProfile{Type: "hoverboard"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeErrorCode(t, rec))
}

// =============================================================================
// NavigationHandler Tests
// =============================================================================

func newNavRouter(sessions SessionRegistry, scanner ProximityScanner, consensus ValidationEngine) chi.Router {
	r := chi.NewRouter()
	NewNavigationHandler(sessions, scanner, consensus, core.NewValidator(), nil).RegisterRoutes(r)
	return r
}

func TestNavigationHandler_SessionLifecycle(t *testing.T) {
	manager := session.NewManager()
	router := newNavRouter(manager, &mockScanner{}, &mockValidation{})

	rec := postJSON(t, router, "/sessions", StartSessionRequest{RiderID: "rider_1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.SessionID)
	assert.Equal(t, "rider_1", resp.Data.RiderID)

	_, ok := manager.Get(resp.Data.SessionID)
	assert.True(t, ok)

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+resp.Data.SessionID, nil)
	del := httptest.NewRecorder()
	router.ServeHTTP(del, req)
	require.Equal(t, http.StatusNoContent, del.Code)

	_, ok = manager.Get(resp.Data.SessionID)
	assert.False(t, ok)
}

func TestNavigationHandler_StartSession_MissingRider(t *testing.T) {
	router := newNavRouter(session.NewManager(), &mockScanner{}, &mockValidation{})

	rec := postJSON(t, router, "/sessions", StartSessionRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeErrorCode(t, rec))
}

func TestNavigationHandler_Detect_Success(t *testing.T) {
	manager := session.NewManager()
	sess := manager.Start("rider_1")
	scanner := &mockScanner{alerts: []types.ProximityAlert{
		{Distance: 40, Severity: types.SeverityBlocking, Urgency: 82},
	}}
	router := newNavRouter(manager, scanner, &mockValidation{})

	rec := postJSON(t, router, "/alerts/detect", DetectRequest{
		SessionID: sess.ID,
		Location:  validLocation(),
		Route:     []types.Location{validLocation(), {Latitude: 14.5800, Longitude: 121.0900}},
		Profile:   validProfile(),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data DetectResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Alerts, 1)
	assert.Equal(t, 82.0, resp.Data.Alerts[0].Urgency)
	assert.Same(t, sess, scanner.lastSess)
}

func TestNavigationHandler_Detect_EmptyAlertsNotNull(t *testing.T) {
	manager := session.NewManager()
	sess := manager.Start("rider_1")
	router := newNavRouter(manager, &mockScanner{}, &mockValidation{})

	rec := postJSON(t, router, "/alerts/detect", DetectRequest{
		SessionID: sess.ID,
		Location:  validLocation(),
		Route:     []types.Location{validLocation(), {Latitude: 14.5800, Longitude: 121.0900}},
		Profile:   validProfile(),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alerts":[]`)
}

func TestNavigationHandler_Detect_UnknownSession(t *testing.T) {
	router := newNavRouter(session.NewManager(), &mockScanner{}, &mockValidation{})

	rec := postJSON(t, router, "/alerts/detect", DetectRequest{
		SessionID: "missing",
		Location:  validLocation(),
		Route:     []types.Location{validLocation(), {Latitude: 14.5800, Longitude: 121.0900}},
		Profile:   validProfile(),
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found_session", decodeErrorCode(t, rec))
}

func TestNavigationHandler_Detect_ShortRoute(t *testing.T) {
	manager := session.NewManager()
	sess := manager.Start("rider_1")
	router := newNavRouter(manager, &mockScanner{}, &mockValidation{})

	rec := postJSON(t, router, "/alerts/detect", DetectRequest{
		SessionID: sess.ID,
		Location:  validLocation(),
		Route:     []types.Location{validLocation()},
		Profile:   validProfile(),
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeErrorCode(t, rec))
}

func TestNavigationHandler_ValidationCheck(t *testing.T) {
	manager := session.NewManager()
	sess := manager.Start("rider_1")
	validation := &mockValidation{prompts: []types.ValidationPrompt{
		{Distance: 30, Question: "Is the Flooded section still there?"},
	}}
	router := newNavRouter(manager, &mockScanner{}, validation)

	rec := postJSON(t, router, "/validation/check", ValidationCheckRequest{
		SessionID: sess.ID,
		Location:  validLocation(),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data ValidationCheckResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Prompts, 1)
	assert.Contains(t, resp.Data.Prompts[0].Question, "still there")
}

func TestNavigationHandler_ValidationRespond(t *testing.T) {
	manager := session.NewManager()
	sess := manager.Start("rider_1")
	validation := &mockValidation{}
	router := newNavRouter(manager, &mockScanner{}, validation)

	loc := validLocation()
	rec := postJSON(t, router, "/validation/respond", ValidationRespondRequest{
		SessionID:  sess.ID,
		ObstacleID: "obs_1",
		Response:   types.ResponseCleared,
		Location:   &loc,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "obs_1", validation.respondedObstacle)
	assert.Equal(t, types.ResponseCleared, validation.respondedWith)
}

func TestNavigationHandler_ValidationRespond_InvalidAnswer(t *testing.T) {
	manager := session.NewManager()
	sess := manager.Start("rider_1")
	validation := &mockValidation{}
	router := newNavRouter(manager, &mockScanner{}, validation)

	rec := postJSON(t, router, "/validation/respond", ValidationRespondRequest{
		SessionID:  sess.ID,
		ObstacleID: "obs_1",
		Response:   "maybe",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, validation.respondedObstacle)
}

func TestNavigationHandler_ValidationRespond_EngineError(t *testing.T) {
	manager := session.NewManager()
	sess := manager.Start("rider_1")
	validation := &mockValidation{
		respondErr: types.NewAppError(types.ErrCodeUpstreamStore, "vote write failed", nil),
	}
	router := newNavRouter(manager, &mockScanner{}, validation)

	rec := postJSON(t, router, "/validation/respond", ValidationRespondRequest{
		SessionID:  sess.ID,
		ObstacleID: "obs_1",
		Response:   types.ResponseStillThere,
	})

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_store_unavailable", decodeErrorCode(t, rec))
}

// =============================================================================
// DetourHandler Tests
// =============================================================================

func newDetourRouter(planner DetourPlanner, provider RouteProvider) chi.Router {
	r := chi.NewRouter()
	NewDetourHandler(planner, provider, core.NewValidator(), nil).RegisterRoutes(r)
	return r
}

func sampleObstacle() types.Obstacle {
	return types.Obstacle{
		ID:         "obs_1",
		Location:   types.Location{Latitude: 14.5770, Longitude: 121.0860},
		Type:       types.ObstacleFlooding,
		Severity:   types.SeverityBlocking,
		ReportedBy: "rider_2",
		ReportedAt: time.Now().UTC(),
		Status:     types.ObstacleStatusPending,
	}
}

func TestDetourHandler_Found(t *testing.T) {
	planner := &mockPlanner{detour: &types.MicroDetour{
		Route:        types.Route{Duration: 690 * time.Second, Distance: 950},
		ExtraTime:    90 * time.Second,
		SafetyRating: types.SafetyMedium,
		Confidence:   0.7,
		Reason:       "avoids reported Flooded section",
	}}
	router := newDetourRouter(planner, &mockRouteProvider{})

	rec := postJSON(t, router, "/detours", DetourRequest{
		Current:     validLocation(),
		Destination: types.Location{Latitude: 14.5800, Longitude: 121.0900},
		Obstacle:    sampleObstacle(),
		Profile:     validProfile(),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data DetourResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Found)
	require.NotNil(t, resp.Data.Detour)
	assert.Equal(t, 90*time.Second, resp.Data.Detour.ExtraTime)
	assert.Empty(t, resp.Data.Advice)
}

func TestDetourHandler_NotFoundIsNormalAnswer(t *testing.T) {
	router := newDetourRouter(&mockPlanner{}, &mockRouteProvider{})

	rec := postJSON(t, router, "/detours", DetourRequest{
		Current:     validLocation(),
		Destination: types.Location{Latitude: 14.5800, Longitude: 121.0900},
		Obstacle:    sampleObstacle(),
		Profile:     validProfile(),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data DetourResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Found)
	assert.Nil(t, resp.Data.Detour)
	assert.Equal(t, types.ObstacleFlooding.Info().Advice, resp.Data.Advice,
		"caller gets the obstacle type's fallback guidance")
}

func TestDetourHandler_Routes(t *testing.T) {
	provider := &mockRouteProvider{routes: []types.Route{
		{Summary: "C. Raymundo Ave", Duration: 600 * time.Second, Distance: 800},
		{Summary: "Ortigas Ave", Duration: 720 * time.Second, Distance: 950},
	}}
	router := newDetourRouter(&mockPlanner{}, provider)

	rec := postJSON(t, router, "/routes", RoutesRequest{
		Origin:      validLocation(),
		Destination: types.Location{Latitude: 14.5800, Longitude: 121.0900},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data RoutesResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Routes, 2)
	assert.Equal(t, "Ortigas Ave", resp.Data.Routes[1].Summary)
}

func TestDetourHandler_Routes_RateLimited(t *testing.T) {
	provider := &mockRouteProvider{
		err: types.NewAppError(types.ErrCodeUpstreamRateLimited, "routing provider quota exceeded", nil),
	}
	router := newDetourRouter(&mockPlanner{}, provider)

	rec := postJSON(t, router, "/routes", RoutesRequest{
		Origin:      validLocation(),
		Destination: types.Location{Latitude: 14.5800, Longitude: 121.0900},
	})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "upstream_rate_limited", decodeErrorCode(t, rec))
}
