package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// SessionRepo keeps durable presence rows so every dispatch instance sees the
// same online-driver set. Rows are hints only; the WebSocket hub on each
// instance is the delivery truth.
type SessionRepo struct {
	db *pgxpool.Pool
}

func NewSessionRepo(db *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{db: db}
}

// Open closes any previous open session for the user and opens a fresh one.
// A reconnect therefore supersedes rather than duplicates presence.
func (r *SessionRepo) Open(ctx context.Context, session *models.Session) (*models.Session, error) {
	const op = "SessionRepo.Open"

	closeQuery := `
		UPDATE sessions
		SET ended_at = now()
		WHERE user_id = $1 AND ended_at IS NULL;`

	q := TxorDB(ctx, r.db)
	if _, err := q.Exec(ctx, closeQuery, session.UserID); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	openQuery := `
		INSERT INTO sessions (id, user_id, role, lat, lon)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING connected_at;`

	var lat, lon *float64
	if session.Location != nil {
		lat, lon = &session.Location.Latitude, &session.Location.Longitude
	}

	err := q.QueryRow(ctx, openQuery, session.ID, session.UserID, session.Role, lat, lon).
		Scan(&session.ConnectedAt)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	return session, nil
}

// Close ends a specific session row. A row already superseded by a newer
// connection was closed by Open, so this is a no-op for it.
func (r *SessionRepo) Close(ctx context.Context, sessionID uuid.UUID) error {
	const op = "SessionRepo.Close"

	query := `
		UPDATE sessions
		SET ended_at = now()
		WHERE id = $1 AND ended_at IS NULL;`

	if _, err := TxorDB(ctx, r.db).Exec(ctx, query, sessionID); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// UpdateLocation refreshes the last reported coordinates of an open session.
func (r *SessionRepo) UpdateLocation(ctx context.Context, sessionID uuid.UUID, loc models.Location) error {
	const op = "SessionRepo.UpdateLocation"

	query := `
		UPDATE sessions
		SET lat = $2, lon = $3
		WHERE id = $1 AND ended_at IS NULL;`

	if _, err := TxorDB(ctx, r.db).Exec(ctx, query, sessionID, loc.Latitude, loc.Longitude); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// IsOnline reports whether the user has an open session anywhere.
func (r *SessionRepo) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	const op = "SessionRepo.IsOnline"

	query := `SELECT 1 FROM sessions WHERE user_id = $1 AND ended_at IS NULL LIMIT 1;`

	var one int
	err := TxorDB(ctx, r.db).QueryRow(ctx, query, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return true, nil
}

// OnlineDrivers returns every driver with an open session and a known
// location, ordered by driver id for deterministic selector input.
func (r *SessionRepo) OnlineDrivers(ctx context.Context) ([]models.OnlineDriver, error) {
	const op = "SessionRepo.OnlineDrivers"

	query := `
		SELECT user_id, lat, lon
		FROM sessions
		WHERE role = 'driver' AND ended_at IS NULL AND lat IS NOT NULL AND lon IS NOT NULL
		ORDER BY user_id;`

	rows, err := TxorDB(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	defer rows.Close()

	var drivers []models.OnlineDriver
	for rows.Next() {
		d, err := scanOnlineDriver(rows)
		if err != nil {
			return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
		}
		drivers = append(drivers, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	return drivers, nil
}

// scanOnlineDriver scans into locals first: OnlineDriver.Location is a nil
// pointer on a zero value and must not be dereferenced as a scan target.
func scanOnlineDriver(row rowScanner) (models.OnlineDriver, error) {
	var (
		d        models.OnlineDriver
		lat, lon float64
	)
	if err := row.Scan(&d.DriverID, &lat, &lon); err != nil {
		return models.OnlineDriver{}, err
	}
	d.Location = &models.Location{Latitude: lat, Longitude: lon}
	return d, nil
}
