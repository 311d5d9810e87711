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
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketAlreadyUsed = errors.New("ticket already used")
)

// TicketRepository defines interface for ticket data operations
type TicketRepository interface {
	InsertTx(ctx context.Context, tx *sql.Tx, ticket *entity.Ticket) (bool, error)
	GetByID(ctx context.Context, id string) (*entity.Ticket, error)
	GetByCode(ctx context.Context, code string) (*entity.Ticket, error)
	GetByOrderID(ctx context.Context, orderID string) ([]entity.Ticket, error)
	GetByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID string) ([]entity.Ticket, error)
	GetByUserID(ctx context.Context, userID string) ([]entity.Ticket, error)
	CountByOrderTx(ctx context.Context, tx *sql.Tx, orderID string) (int, error)
	MarkAsUsed(ctx context.Context, ticketID string) error
}

// ticketRepository implements TicketRepository interface
type ticketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates new ticket repository instance
func NewTicketRepository(db *sqlx.DB) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, order_id, event_id, tier_id, user_id, code, qr_sig, status, validated_at, created_at, updated_at`

// InsertTx inserts a ticket with ON CONFLICT (code) DO NOTHING so a
// concurrent recovery sweep cannot double-insert the same code.
// Returns false when the code already existed.
func (r *ticketRepository) InsertTx(ctx context.Context, tx *sql.Tx, ticket *entity.Ticket) (bool, error) {
	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}

	query := `
		INSERT INTO tickets (id, order_id, event_id, tier_id, user_id, code, qr_sig, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (code) DO NOTHING
	`

	result, err := tx.ExecContext(ctx, query,
		ticket.ID,
		ticket.OrderID,
		ticket.EventID,
		ticket.TierID,
		ticket.UserID,
		ticket.Code,
		ticket.QRSig,
		ticket.Status,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert ticket: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// GetByID retrieves a ticket by ID
func (r *ticketRepository) GetByID(ctx context.Context, id string) (*entity.Ticket, error) {
	var ticket entity.Ticket
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	err := r.db.GetContext(ctx, &ticket, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return &ticket, nil
}

// GetByCode retrieves a ticket by its globally unique code
func (r *ticketRepository) GetByCode(ctx context.Context, code string) (*entity.Ticket, error) {
	var ticket entity.Ticket
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE code = $1`

	err := r.db.GetContext(ctx, &ticket, query, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket by code: %w", err)
	}

	return &ticket, nil
}

// GetByOrderID retrieves all tickets for an order
func (r *ticketRepository) GetByOrderID(ctx context.Context, orderID string) ([]entity.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE order_id = $1 ORDER BY created_at ASC`

	tickets := []entity.Ticket{}
	if err := r.db.SelectContext(ctx, &tickets, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to get tickets by order: %w", err)
	}

	return tickets, nil
}

// GetByOrderIDTx retrieves an order's tickets inside an open transaction
func (r *ticketRepository) GetByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID string) ([]entity.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE order_id = $1 ORDER BY created_at ASC`

	rows, err := tx.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets by order: %w", err)
	}
	defer rows.Close()

	tickets := []entity.Ticket{}
	for rows.Next() {
		var ticket entity.Ticket
		err := rows.Scan(
			&ticket.ID,
			&ticket.OrderID,
			&ticket.EventID,
			&ticket.TierID,
			&ticket.UserID,
			&ticket.Code,
			&ticket.QRSig,
			&ticket.Status,
			&ticket.ValidatedAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tickets: %w", err)
	}

	return tickets, nil
}

// GetByUserID retrieves all tickets for a user, newest first
func (r *ticketRepository) GetByUserID(ctx context.Context, userID string) ([]entity.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = $1 ORDER BY created_at DESC`

	tickets := []entity.Ticket{}
	if err := r.db.SelectContext(ctx, &tickets, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get user tickets: %w", err)
	}

	return tickets, nil
}

// CountByOrderTx counts an order's tickets inside an open transaction.
// The repair pass uses this under the order row lock.
func (r *ticketRepository) CountByOrderTx(ctx context.Context, tx *sql.Tx, orderID string) (int, error) {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE order_id = $1`, orderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return count, nil
}

// MarkAsUsed marks a ticket as used at the gate. The status guard in
// the WHERE clause makes a second scan fail rather than double-admit.
func (r *ticketRepository) MarkAsUsed(ctx context.Context, ticketID string) error {
	now := time.Now()
	result, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = $1, validated_at = $2, updated_at = NOW() WHERE id = $3 AND status = $4`,
		entity.TicketStatusUsed, now, ticketID, entity.TicketStatusValid)
	if err != nil {
		return fmt.Errorf("failed to mark ticket as used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTicketAlreadyUsed
	}

	return nil
}
