package db

import (
	"context"
	"fmt"

	"waispath/internal/types"
)

// ObstacleRepository provides data access for the obstacles and
// validation_events tables. The core only reads obstacles and issues vote
// increments; report creation belongs to the submission surface, not here.
type ObstacleRepository struct {
	db DBTX
}

// NewObstacleRepository creates an ObstacleRepository backed by the given
// database connection (pool or transaction).
func NewObstacleRepository(db DBTX) *ObstacleRepository {
	return &ObstacleRepository{db: db}
}

// obstacleColumns is the standard column set for obstacle queries.
const obstacleColumns = `o.id, o.latitude, o.longitude, o.type, o.severity,
	o.description, o.reported_by, o.reported_at,
	o.upvotes, o.downvotes, o.status, o.verified, o.last_verified_at`

// GetObstaclesInArea returns obstacles within radiusKm of the coordinate.
// A bounding-box prefilter keeps the lat/lng index usable; the haversine
// expression then trims the box's corners.
func (r *ObstacleRepository) GetObstaclesInArea(ctx context.Context, lat, lng, radiusKm float64) ([]types.Obstacle, error) {
	// 1 degree of latitude is ~111.32 km; longitude degrees shrink with
	// latitude. The box is intentionally slightly generous.
	latDelta := radiusKm / 111.32
	lngDelta := radiusKm / 111.32 * 1.2

	query := fmt.Sprintf(`
		SELECT %s
		FROM obstacles o
		WHERE o.latitude BETWEEN $1 - $4 AND $1 + $4
		  AND o.longitude BETWEEN $2 - $5 AND $2 + $5
		  AND (6371 * acos(
			least(1.0,
				cos(radians($1)) * cos(radians(o.latitude)) *
				cos(radians(o.longitude) - radians($2)) +
				sin(radians($1)) * sin(radians(o.latitude))
			))) <= $3
		ORDER BY o.reported_at DESC`, obstacleColumns)

	rows, err := r.db.Query(ctx, query, lat, lng, radiusKm, latDelta, lngDelta)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStore, "querying obstacles in area", err)
	}
	defer rows.Close()

	var obstacles []types.Obstacle
	for rows.Next() {
		var o types.Obstacle
		if err := rows.Scan(
			&o.ID, &o.Location.Latitude, &o.Location.Longitude,
			&o.Type, &o.Severity, &o.Description,
			&o.ReportedBy, &o.ReportedAt,
			&o.Upvotes, &o.Downvotes, &o.Status, &o.Verified, &o.LastVerifiedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamStore, "scanning obstacle row", err)
		}
		obstacles = append(obstacles, o)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStore, "iterating obstacle rows", err)
	}

	return obstacles, nil
}

// IncrementVote applies exactly one vote to the obstacle. Atomicity is the
// store's: the increment is a single UPDATE, never a read-modify-write.
func (r *ObstacleRepository) IncrementVote(ctx context.Context, obstacleID string, direction types.VoteDirection) error {
	var column string
	switch direction {
	case types.VoteUp:
		column = "upvotes"
	case types.VoteDown:
		column = "downvotes"
	default:
		return types.NewAppError(types.ErrCodeValidationInvalidResponse,
			fmt.Sprintf("unrecognized vote direction %q", direction), nil)
	}

	query := fmt.Sprintf(`UPDATE obstacles SET %s = %s + 1 WHERE id = $1`, column, column)
	tag, err := r.db.Exec(ctx, query, obstacleID)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStore, "incrementing vote", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundObstacle,
			fmt.Sprintf("obstacle %s not found", obstacleID), nil)
	}
	return nil
}

// RecordValidationEvent inserts a validation analytics row. Callers treat
// this as fire-and-forget; an error here is logged and discarded upstream.
func (r *ObstacleRepository) RecordValidationEvent(ctx context.Context, event types.ValidationEvent) error {
	var lat, lng *float64
	if event.Location != nil {
		lat = &event.Location.Latitude
		lng = &event.Location.Longitude
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO validation_events (id, obstacle_id, action, occurred_at, latitude, longitude, method)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.ObstacleID, string(event.Action), event.Timestamp, lat, lng, event.Method,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStore, "recording validation event", err)
	}
	return nil
}
