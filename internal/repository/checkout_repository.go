package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ticketdrop/backend/internal/payload/entity"
)

var (
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrIdempotencyKeyTaken = errors.New("idempotency key already used")
)

// CheckoutRepository defines interface for checkout session data operations
type CheckoutRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	Create(ctx context.Context, session *entity.CheckoutSession) error
	GetByID(ctx context.Context, id string) (*entity.CheckoutSession, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*entity.CheckoutSession, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.CheckoutSession, error)
	GetPendingByReservation(ctx context.Context, reservationID string) (*entity.CheckoutSession, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error
}

// checkoutRepository implements CheckoutRepository interface
type checkoutRepository struct {
	db *sqlx.DB
}

// NewCheckoutRepository creates new checkout repository instance
func NewCheckoutRepository(db *sqlx.DB) CheckoutRepository {
	return &checkoutRepository{db: db}
}

const sessionColumns = `id, reservation_id, user_id, idempotency_key, status, created_at, updated_at`

// BeginTx starts a new transaction for the confirmation path
func (r *checkoutRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.DB.BeginTx(ctx, nil)
}

// Create inserts a new checkout session. The unique index on
// idempotency_key is the coordination point between concurrent callers;
// the loser receives ErrIdempotencyKeyTaken and must re-read.
func (r *checkoutRepository) Create(ctx context.Context, session *entity.CheckoutSession) error {
	session.ID = uuid.New().String()

	query := `
		INSERT INTO checkout_sessions (id, reservation_id, user_id, idempotency_key, status, created_at, updated_at)
		VALUES (:id, :reservation_id, :user_id, :idempotency_key, :status, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, session)
	if err != nil {
		if IsUniqueViolation(err, "checkout_sessions_idempotency_key_key") {
			return ErrIdempotencyKeyTaken
		}
		return fmt.Errorf("failed to create checkout session: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&session.CreatedAt, &session.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan created session: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a checkout session by ID
func (r *checkoutRepository) GetByID(ctx context.Context, id string) (*entity.CheckoutSession, error) {
	var session entity.CheckoutSession
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE id = $1`

	err := r.db.GetContext(ctx, &session, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}

	return &session, nil
}

// GetByIDTx retrieves a checkout session inside an open transaction
func (r *checkoutRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*entity.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE id = $1`

	session := &entity.CheckoutSession{}
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.ReservationID,
		&session.UserID,
		&session.IdempotencyKey,
		&session.Status,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}

	return session, nil
}

// GetByIdempotencyKey retrieves a session by its idempotency key
func (r *checkoutRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.CheckoutSession, error) {
	var session entity.CheckoutSession
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE idempotency_key = $1`

	err := r.db.GetContext(ctx, &session, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by idempotency key: %w", err)
	}

	return &session, nil
}

// GetPendingByReservation returns the pending session already attached
// to a reservation, if any. Prevents parallel idempotency keys from
// opening competing sessions for the same hold.
func (r *checkoutRepository) GetPendingByReservation(ctx context.Context, reservationID string) (*entity.CheckoutSession, error) {
	var session entity.CheckoutSession
	query := `
		SELECT ` + sessionColumns + `
		FROM checkout_sessions
		WHERE reservation_id = $1 AND status = $2
		ORDER BY created_at ASC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &session, query, reservationID, entity.SessionStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by reservation: %w", err)
	}

	return &session, nil
}

// UpdateStatusTx transitions a session within an open transaction
func (r *checkoutRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE checkout_sessions SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}

	return nil
}
