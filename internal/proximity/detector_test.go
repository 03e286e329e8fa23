package proximity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waispath/internal/session"
	"waispath/internal/types"
)

// mockObstacleSource is an in-memory ObstacleSource with call tracking.
type mockObstacleSource struct {
	obstacles []types.Obstacle
	err       error
	calls     int
}

func (m *mockObstacleSource) GetObstaclesInArea(_ context.Context, _, _, _ float64) ([]types.Obstacle, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.obstacles, nil
}

var testNow = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

// A straight east-west route along latitude 14.5800.
var testRoute = []types.Location{
	{Latitude: 14.5800, Longitude: 121.0600},
	{Latitude: 14.5800, Longitude: 121.0650},
	{Latitude: 14.5800, Longitude: 121.0700},
}

var riderLoc = types.Location{Latitude: 14.5800, Longitude: 121.0610}

func onRouteObstacle(id string, sev types.Severity, lng float64) types.Obstacle {
	return types.Obstacle{
		ID:         id,
		Location:   types.Location{Latitude: 14.5800, Longitude: lng},
		Type:       types.ObstacleVendorBlocking,
		Severity:   sev,
		Status:     types.ObstacleStatusPending,
		ReportedAt: testNow.Add(-48 * time.Hour),
	}
}

func newTestDetector(store ObstacleSource) *Detector {
	return NewDetector(Config{
		Store:     store,
		Proximity: types.DefaultProximityConfig(),
		Now:       func() time.Time { return testNow },
	})
}

func TestDetectAheadSortsAndTruncates(t *testing.T) {
	store := &mockObstacleSource{obstacles: []types.Obstacle{
		onRouteObstacle("low", types.SeverityLow, 121.0612),
		onRouteObstacle("blocking", types.SeverityBlocking, 121.0614),
		onRouteObstacle("high", types.SeverityHigh, 121.0616),
		onRouteObstacle("medium", types.SeverityMedium, 121.0618),
	}}
	d := newTestDetector(store)
	sess := session.New("rider-1")

	alerts := d.DetectAhead(context.Background(), sess, riderLoc, testRoute, types.MobilityProfile{Type: types.DeviceWheelchair})

	require.Len(t, alerts, 2, "alert list is truncated to MaxAlerts")
	assert.Equal(t, "blocking", alerts[0].Obstacle.ID)
	assert.Equal(t, "high", alerts[1].Obstacle.ID)
	for i := 1; i < len(alerts); i++ {
		assert.GreaterOrEqual(t, alerts[i-1].Urgency, alerts[i].Urgency)
	}
}

func TestDetectAheadExcludesOffRouteObstacles(t *testing.T) {
	// ~55 m north of the route, beyond the 15 m tolerance.
	offRoute := types.Obstacle{
		ID:         "off-route",
		Location:   types.Location{Latitude: 14.5805, Longitude: 121.0612},
		Type:       types.ObstacleFlooding,
		Severity:   types.SeverityBlocking,
		ReportedAt: testNow.Add(-time.Hour),
	}
	store := &mockObstacleSource{obstacles: []types.Obstacle{offRoute}}
	d := newTestDetector(store)

	alerts := d.DetectAhead(context.Background(), session.New("r"), riderLoc, testRoute, types.MobilityProfile{Type: types.DeviceNone})
	assert.Empty(t, alerts)
}

func TestDetectAheadInvalidInput(t *testing.T) {
	store := &mockObstacleSource{}
	d := newTestDetector(store)

	t.Run("short route", func(t *testing.T) {
		sess := session.New("r")
		alerts := d.DetectAhead(context.Background(), sess, riderLoc, testRoute[:1], types.MobilityProfile{Type: types.DeviceNone})
		assert.Empty(t, alerts)
		assert.Equal(t, types.DetectorIdle, sess.DetectorState())
		assert.Zero(t, store.calls)
	})

	t.Run("malformed location", func(t *testing.T) {
		alerts := d.DetectAhead(context.Background(), session.New("r"), types.Location{}, testRoute, types.MobilityProfile{Type: types.DeviceNone})
		assert.Empty(t, alerts)
	})

	t.Run("poor accuracy fix", func(t *testing.T) {
		loc := riderLoc
		loc.AccuracyMeters = 120
		alerts := d.DetectAhead(context.Background(), session.New("r"), loc, testRoute, types.MobilityProfile{Type: types.DeviceNone})
		assert.Empty(t, alerts)
	})
}

func TestDetectAheadMovementGate(t *testing.T) {
	store := &mockObstacleSource{}
	d := newTestDetector(store)
	sess := session.New("r")

	d.DetectAhead(context.Background(), sess, riderLoc, testRoute, types.MobilityProfile{Type: types.DeviceNone})
	require.Equal(t, 1, store.calls)
	assert.Equal(t, types.DetectorDetecting, sess.DetectorState())

	// ~5 m east: below the 10 m movement threshold, tick skipped.
	nearby := types.Location{Latitude: 14.5800, Longitude: 121.06105}
	d.DetectAhead(context.Background(), sess, nearby, testRoute, types.MobilityProfile{Type: types.DeviceNone})
	assert.Equal(t, 1, store.calls)

	// ~50 m east: gate passes, store queried again.
	farther := types.Location{Latitude: 14.5800, Longitude: 121.0615}
	d.DetectAhead(context.Background(), sess, farther, testRoute, types.MobilityProfile{Type: types.DeviceNone})
	assert.Equal(t, 2, store.calls)

	// Clearing the memo (navigation stop) re-enables detection in place.
	sess.ClearLastDetection()
	d.DetectAhead(context.Background(), sess, farther, testRoute, types.MobilityProfile{Type: types.DeviceNone})
	assert.Equal(t, 3, store.calls)
}

func TestDetectAheadStoreFailureIsFailSoft(t *testing.T) {
	store := &mockObstacleSource{err: errors.New("store down")}
	d := newTestDetector(store)
	sess := session.New("r")

	alerts := d.DetectAhead(context.Background(), sess, riderLoc, testRoute, types.MobilityProfile{Type: types.DeviceNone})
	assert.Empty(t, alerts)

	// A failed tick does not set the movement memo; the next tick retries.
	_, ok := sess.LastDetection()
	assert.False(t, ok)
}

func TestDetectAheadSkipsMalformedAndExpired(t *testing.T) {
	malformed := onRouteObstacle("malformed", types.SeverityHigh, 121.0612)
	malformed.Location = types.Location{Latitude: 0, Longitude: 0}

	expired := onRouteObstacle("expired", types.SeverityBlocking, 121.0613)
	expired.ReportedAt = testNow.Add(-40 * 24 * time.Hour)

	ok := onRouteObstacle("ok", types.SeverityLow, 121.0614)

	store := &mockObstacleSource{obstacles: []types.Obstacle{malformed, expired, ok}}
	d := newTestDetector(store)

	alerts := d.DetectAhead(context.Background(), session.New("r"), riderLoc, testRoute, types.MobilityProfile{Type: types.DeviceNone})
	require.Len(t, alerts, 1)
	assert.Equal(t, "ok", alerts[0].Obstacle.ID)
}

func TestUrgencyBlockingCloseInTopBand(t *testing.T) {
	// Scenario: blocking severity, unvoted report, 10 m ahead on the route.
	obs := onRouteObstacle("blocking", types.SeverityBlocking, 121.06109)
	store := &mockObstacleSource{obstacles: []types.Obstacle{obs}}
	d := newTestDetector(store)

	for _, device := range []types.DeviceType{types.DeviceWheelchair, types.DeviceNone} {
		sess := session.New("r")
		alerts := d.DetectAhead(context.Background(), sess, riderLoc, testRoute, types.MobilityProfile{Type: device})
		require.Len(t, alerts, 1, "device %s", device)
		assert.GreaterOrEqual(t, alerts[0].Urgency, 60.0, "device %s", device)
		assert.LessOrEqual(t, alerts[0].Urgency, 100.0, "device %s", device)
	}
}

func TestTimeToEncounterUsesProfileSpeed(t *testing.T) {
	obs := onRouteObstacle("ahead", types.SeverityMedium, 121.0615)
	store := &mockObstacleSource{obstacles: []types.Obstacle{obs}}
	d := newTestDetector(store)

	walker := d.DetectAhead(context.Background(), session.New("a"), riderLoc, testRoute, types.MobilityProfile{Type: types.DeviceWalker})
	none := d.DetectAhead(context.Background(), session.New("b"), riderLoc, testRoute, types.MobilityProfile{Type: types.DeviceNone})

	require.Len(t, walker, 1)
	require.Len(t, none, 1)
	assert.Greater(t, walker[0].TimeToEncounter, none[0].TimeToEncounter)
}
