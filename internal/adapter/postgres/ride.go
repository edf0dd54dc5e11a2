package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/internal/domain/types"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/postgres"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

type RideRepo struct {
	db *pgxpool.Pool
}

func NewRideRepo(db *pgxpool.Pool) *RideRepo {
	return &RideRepo{db: db}
}

const rideColumns = `
	r.id, r.rider_id, r.driver_id, r.status, r.rating,
	r.origin_lat, r.origin_lon,
	r.dest_lat, r.dest_lon, r.dest_name,
	r.created_at, r.accepted_at, r.started_at, r.completed_at, r.cancelled_at`

// Create inserts a new ride in status 'requested'. A partial unique index on
// rider_id over non-terminal statuses backs the one-active-ride-per-rider
// guard, so a concurrent duplicate create loses here, not in application code.
func (r *RideRepo) Create(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO rides (id, rider_id, status, origin_lat, origin_lon, dest_lat, dest_lon, dest_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at;`

	err := q.QueryRow(ctx, query,
		ride.ID, ride.RiderID, ride.Status,
		ride.Origin.Latitude, ride.Origin.Longitude,
		ride.Destination.Latitude, ride.Destination.Longitude, ride.Destination.Name,
	).Scan(&ride.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, types.ErrActiveRideExists
		}
		return nil, wrap.Error(ctx, fmt.Errorf("ride repo: Create: %w", err))
	}

	return ride, nil
}

// Get returns the latest committed snapshot of a ride.
func (r *RideRepo) Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + rideColumns + ` FROM rides r WHERE r.id = $1;`

	ride, err := scanRide(q.QueryRow(ctx, query, rideID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, wrap.Error(ctx, fmt.Errorf("ride repo: Get: %w", err))
	}

	return ride, nil
}

// ActiveFor returns the caller's non-terminal ride, if any. Riders match on
// rider_id, drivers on driver_id.
func (r *RideRepo) ActiveFor(ctx context.Context, userID uuid.UUID) (*models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + rideColumns + `
		FROM rides r
		WHERE (r.rider_id = $1 OR r.driver_id = $1)
		  AND r.status IN ('requested', 'accepted', 'in_progress')
		ORDER BY r.created_at DESC
		LIMIT 1;`

	ride, err := scanRide(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, wrap.Error(ctx, fmt.Errorf("ride repo: ActiveFor: %w", err))
	}

	return ride, nil
}

// ListRequested returns rides still in 'requested', for driver listings and
// the timeout sweeper.
func (r *RideRepo) ListRequested(ctx context.Context) ([]*models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + rideColumns + ` FROM rides r WHERE r.status = 'requested' ORDER BY r.created_at;`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("ride repo: ListRequested: %w", err))
	}
	defer rows.Close()

	var rides []*models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, wrap.Error(ctx, fmt.Errorf("ride repo: ListRequested scan: %w", err))
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("ride repo: ListRequested rows: %w", err))
	}

	return rides, nil
}

// Transition performs the atomic compare-and-swap that serializes every
// lifecycle race in the engine: the row is updated only when its stored
// status equals expected. On a CAS miss it returns ErrStatusConflict along
// with the status that actually won, so the caller can name the loser's
// outcome. The WHERE clause makes the check-and-set a single statement, which
// keeps it correct across coordinator instances.
func (r *RideRepo) Transition(ctx context.Context, rideID uuid.UUID, expected, next types.RideStatus, fields models.TransitionFields) (types.RideStatus, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET
			status = $3,
			driver_id = COALESCE($4, driver_id),
			rating = COALESCE($5, rating),
			accepted_at = COALESCE($6, accepted_at),
			started_at = COALESCE($7, started_at),
			completed_at = COALESCE($8, completed_at),
			cancelled_at = COALESCE($9, cancelled_at),
			updated_at = now()
		WHERE id = $1 AND status = $2;`

	cmdTag, err := q.Exec(ctx, query,
		rideID, expected, next,
		fields.DriverID, fields.Rating,
		fields.AcceptedAt, fields.StartedAt, fields.CompletedAt, fields.CancelledAt,
	)
	if err != nil {
		return "", wrap.Error(ctx, fmt.Errorf("ride repo: Transition: %w", err))
	}

	if cmdTag.RowsAffected() > 0 {
		return next, nil
	}

	// CAS miss: distinguish a lost race from an unknown ride.
	var current types.RideStatus
	err = q.QueryRow(ctx, `SELECT status FROM rides WHERE id = $1;`, rideID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.ErrRideNotFound
		}
		return "", wrap.Error(ctx, fmt.Errorf("ride repo: Transition status read: %w", err))
	}

	return current, types.ErrStatusConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var ride models.Ride
	err := row.Scan(
		&ride.ID, &ride.RiderID, &ride.DriverID, &ride.Status, &ride.Rating,
		&ride.Origin.Latitude, &ride.Origin.Longitude,
		&ride.Destination.Latitude, &ride.Destination.Longitude, &ride.Destination.Name,
		&ride.CreatedAt, &ride.AcceptedAt, &ride.StartedAt, &ride.CompletedAt, &ride.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}
