package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ticketdrop/backend/internal/payload/entity"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
)

// ReservationRepository defines interface for reservation data operations
type ReservationRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CreateTx(ctx context.Context, tx *sql.Tx, reservation *entity.Reservation) error
	GetByID(ctx context.Context, id string) (*entity.Reservation, error)
	GetByIDWithLock(ctx context.Context, tx *sql.Tx, id string) (*entity.Reservation, error)
	GetActiveByEventUser(ctx context.Context, eventID, userID string) (*entity.Reservation, error)
	HasActiveForEventUserTx(ctx context.Context, tx *sql.Tx, eventID, userID string) (bool, error)
	SumActiveForTier(ctx context.Context, tierID string) (int, error)
	SumActiveForTierTx(ctx context.Context, tx *sql.Tx, tierID string) (int, error)
	SumActiveForEventUserTx(ctx context.Context, tx *sql.Tx, eventID, userID string) (int, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error
	ExtendExpiry(ctx context.Context, id string, until time.Time) error
	ExpireStaleTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]entity.Reservation, error)
}

// reservationRepository implements ReservationRepository interface
type reservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates new reservation repository instance
func NewReservationRepository(db *sqlx.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

const reservationColumns = `id, event_id, tier_id, user_id, quantity, status, expires_at, created_at, updated_at`

// BeginTx starts a new transaction for the critical reserve path
func (r *reservationRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.DB.BeginTx(ctx, nil)
}

// CreateTx inserts a new reservation within an open transaction
func (r *reservationRepository) CreateTx(ctx context.Context, tx *sql.Tx, reservation *entity.Reservation) error {
	reservation.ID = uuid.New().String()

	query := `
		INSERT INTO reservations (id, event_id, tier_id, user_id, quantity, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowContext(ctx, query,
		reservation.ID,
		reservation.EventID,
		reservation.TierID,
		reservation.UserID,
		reservation.Quantity,
		reservation.Status,
		reservation.ExpiresAt,
	).Scan(&reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	return nil
}

// GetByID retrieves a reservation by ID
func (r *reservationRepository) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	var reservation entity.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	err := r.db.GetContext(ctx, &reservation, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	return &reservation, nil
}

// GetByIDWithLock retrieves a reservation with a row-level lock
// (SELECT FOR UPDATE). This serialises confirmation outcomes: at most
// one of order creation, expiration or cancellation wins. MUST be
// called within a transaction.
func (r *reservationRepository) GetByIDWithLock(ctx context.Context, tx *sql.Tx, id string) (*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`

	reservation := &entity.Reservation{}
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&reservation.ID,
		&reservation.EventID,
		&reservation.TierID,
		&reservation.UserID,
		&reservation.Quantity,
		&reservation.Status,
		&reservation.ExpiresAt,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation with lock: %w", err)
	}

	return reservation, nil
}

// GetActiveByEventUser returns the most recent active, unexpired
// reservation for the user on the event, or ErrReservationNotFound.
func (r *reservationRepository) GetActiveByEventUser(ctx context.Context, eventID, userID string) (*entity.Reservation, error) {
	var reservation entity.Reservation
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE event_id = $1 AND user_id = $2 AND status = $3 AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &reservation, query, eventID, userID, entity.ReservationStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active reservation: %w", err)
	}

	return &reservation, nil
}

// HasActiveForEventUserTx reports whether the user already holds an
// active unexpired reservation on the event (one in-flight hold per
// user per event).
func (r *reservationRepository) HasActiveForEventUserTx(ctx context.Context, tx *sql.Tx, eventID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE event_id = $1 AND user_id = $2 AND status = $3 AND expires_at > NOW()
		)
	`

	var exists bool
	if err := tx.QueryRowContext(ctx, query, eventID, userID, entity.ReservationStatusActive).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active reservation: %w", err)
	}

	return exists, nil
}

// SumActiveForTier sums active unexpired held quantities on a tier.
// Unlocked read for display; the reserve path uses the Tx variant.
func (r *reservationRepository) SumActiveForTier(ctx context.Context, tierID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM reservations
		WHERE tier_id = $1 AND status = $2 AND expires_at > NOW()
	`

	var total int
	if err := r.db.QueryRowContext(ctx, query, tierID, entity.ReservationStatusActive).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum reserved quantity: %w", err)
	}

	return total, nil
}

// SumActiveForTierTx sums the quantities of active unexpired holds on a
// tier. Callers must hold the tier row lock for the result to be stable.
func (r *reservationRepository) SumActiveForTierTx(ctx context.Context, tx *sql.Tx, tierID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM reservations
		WHERE tier_id = $1 AND status = $2 AND expires_at > NOW()
	`

	var total int
	if err := tx.QueryRowContext(ctx, query, tierID, entity.ReservationStatusActive).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum reserved quantity: %w", err)
	}

	return total, nil
}

// SumActiveForEventUserTx sums the user's active unexpired held
// quantities across the whole event, for the per-event purchase cap.
func (r *reservationRepository) SumActiveForEventUserTx(ctx context.Context, tx *sql.Tx, eventID, userID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM reservations
		WHERE event_id = $1 AND user_id = $2 AND status = $3 AND expires_at > NOW()
	`

	var total int
	if err := tx.QueryRowContext(ctx, query, eventID, userID, entity.ReservationStatusActive).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum held quantity: %w", err)
	}

	return total, nil
}

// UpdateStatusTx transitions a reservation within an open transaction
func (r *reservationRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrReservationNotFound
	}

	return nil
}

// ExtendExpiry pushes the reservation deadline out so the buyer has a
// fresh window to pay. Only active reservations are extended.
func (r *reservationRepository) ExtendExpiry(ctx context.Context, id string, until time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET expires_at = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		until, id, entity.ReservationStatusActive)
	if err != nil {
		return fmt.Errorf("failed to extend reservation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrReservationNotFound
	}

	return nil
}

// ExpireStaleTx flips every active reservation whose deadline has
// passed to expired and returns the affected rows. Idempotent by
// construction: expired rows never re-match the WHERE clause.
func (r *reservationRepository) ExpireStaleTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]entity.Reservation, error) {
	query := `
		UPDATE reservations
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at <= $3
		RETURNING ` + reservationColumns

	rows, err := tx.QueryContext(ctx, query, entity.ReservationStatusExpired, entity.ReservationStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale reservations: %w", err)
	}
	defer rows.Close()

	expired := []entity.Reservation{}
	for rows.Next() {
		var reservation entity.Reservation
		err := rows.Scan(
			&reservation.ID,
			&reservation.EventID,
			&reservation.TierID,
			&reservation.UserID,
			&reservation.Quantity,
			&reservation.Status,
			&reservation.ExpiresAt,
			&reservation.CreatedAt,
			&reservation.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired reservation: %w", err)
		}
		expired = append(expired, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expired reservations: %w", err)
	}

	return expired, nil
}
