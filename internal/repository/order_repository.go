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
	ErrOrderNotFound = errors.New("order not found")
)

// OrderShortfall pairs a paid order with its missing-ticket count
type OrderShortfall struct {
	Order       entity.Order
	TicketCount int
}

// OrderRepository defines interface for order data operations
type OrderRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CreateTx(ctx context.Context, tx *sql.Tx, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	GetByIDWithLock(ctx context.Context, tx *sql.Tx, id string) (*entity.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*entity.Order, error)
	GetBySessionIDTx(ctx context.Context, tx *sql.Tx, sessionID string) (*entity.Order, error)
	GetByUserID(ctx context.Context, userID string) ([]entity.Order, error)
	SumPaidForTier(ctx context.Context, tierID string) (int, error)
	SumPaidForTierTx(ctx context.Context, tx *sql.Tx, tierID string) (int, error)
	SumPaidForEventUserTx(ctx context.Context, tx *sql.Tx, eventID, userID string) (int, error)
	GetPaidWithTicketShortfall(ctx context.Context, limit int) ([]OrderShortfall, error)
}

// orderRepository implements OrderRepository interface
type orderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates new order repository instance
func NewOrderRepository(db *sqlx.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, session_id, event_id, tier_id, user_id, quantity, total_price_cents, status, created_at, updated_at`

// BeginTx starts a new transaction
func (r *orderRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.DB.BeginTx(ctx, nil)
}

// CreateTx inserts a new order within an open transaction. The unique
// index on session_id enforces at most one order per checkout session.
func (r *orderRepository) CreateTx(ctx context.Context, tx *sql.Tx, order *entity.Order) error {
	order.ID = uuid.New().String()

	query := `
		INSERT INTO orders (id, session_id, event_id, tier_id, user_id, quantity, total_price_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowContext(ctx, query,
		order.ID,
		order.SessionID,
		order.EventID,
		order.TierID,
		order.UserID,
		order.Quantity,
		order.TotalPriceCents,
		order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by ID
func (r *orderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	var order entity.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	err := r.db.GetContext(ctx, &order, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

// GetByIDWithLock retrieves an order with a row-level lock
// (SELECT FOR UPDATE). Used by the ticket-repair pass so two sweeps
// cannot compute the same shortfall concurrently. MUST be called
// within a transaction.
func (r *orderRepository) GetByIDWithLock(ctx context.Context, tx *sql.Tx, id string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	order := &entity.Order{}
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.SessionID,
		&order.EventID,
		&order.TierID,
		&order.UserID,
		&order.Quantity,
		&order.TotalPriceCents,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order with lock: %w", err)
	}

	return order, nil
}

// GetBySessionID retrieves the order belonging to a checkout session
func (r *orderRepository) GetBySessionID(ctx context.Context, sessionID string) (*entity.Order, error) {
	var order entity.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE session_id = $1`

	err := r.db.GetContext(ctx, &order, query, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by session: %w", err)
	}

	return &order, nil
}

// GetBySessionIDTx retrieves the order for a session inside an open
// transaction. The confirm path uses this for its idempotent replay
// check before touching any state.
func (r *orderRepository) GetBySessionIDTx(ctx context.Context, tx *sql.Tx, sessionID string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE session_id = $1`

	order := &entity.Order{}
	err := tx.QueryRowContext(ctx, query, sessionID).Scan(
		&order.ID,
		&order.SessionID,
		&order.EventID,
		&order.TierID,
		&order.UserID,
		&order.Quantity,
		&order.TotalPriceCents,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by session: %w", err)
	}

	return order, nil
}

// GetByUserID retrieves all orders for a user, newest first
func (r *orderRepository) GetByUserID(ctx context.Context, userID string) ([]entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	orders := []entity.Order{}
	if err := r.db.SelectContext(ctx, &orders, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get user orders: %w", err)
	}

	return orders, nil
}

// SumPaidForTier sums sold quantities on a tier. Unlocked read for
// display; the reserve path uses the Tx variant.
func (r *orderRepository) SumPaidForTier(ctx context.Context, tierID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM orders
		WHERE tier_id = $1 AND status = $2
	`

	var total int
	if err := r.db.QueryRowContext(ctx, query, tierID, entity.OrderStatusPaid).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum sold quantity: %w", err)
	}

	return total, nil
}

// SumPaidForTierTx sums sold quantities on a tier. Callers must hold
// the tier row lock for the result to be stable.
func (r *orderRepository) SumPaidForTierTx(ctx context.Context, tx *sql.Tx, tierID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM orders
		WHERE tier_id = $1 AND status = $2
	`

	var total int
	if err := tx.QueryRowContext(ctx, query, tierID, entity.OrderStatusPaid).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum sold quantity: %w", err)
	}

	return total, nil
}

// SumPaidForEventUserTx sums the user's paid quantities across an
// event, for the per-event purchase cap.
func (r *orderRepository) SumPaidForEventUserTx(ctx context.Context, tx *sql.Tx, eventID, userID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM orders
		WHERE event_id = $1 AND user_id = $2 AND status = $3
	`

	var total int
	if err := tx.QueryRowContext(ctx, query, eventID, userID, entity.OrderStatusPaid).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum paid quantity: %w", err)
	}

	return total, nil
}

// GetPaidWithTicketShortfall finds paid orders whose ticket count is
// below their quantity. The recovery worker repairs these.
func (r *orderRepository) GetPaidWithTicketShortfall(ctx context.Context, limit int) ([]OrderShortfall, error) {
	query := `
		SELECT o.id, o.session_id, o.event_id, o.tier_id, o.user_id, o.quantity,
		       o.total_price_cents, o.status, o.created_at, o.updated_at,
		       COUNT(t.id) AS ticket_count
		FROM orders o
		LEFT JOIN tickets t ON t.order_id = o.id
		WHERE o.status = $1
		GROUP BY o.id
		HAVING COUNT(t.id) < o.quantity
		ORDER BY o.created_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, entity.OrderStatusPaid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders with ticket shortfall: %w", err)
	}
	defer rows.Close()

	shortfalls := []OrderShortfall{}
	for rows.Next() {
		var s OrderShortfall
		err := rows.Scan(
			&s.Order.ID,
			&s.Order.SessionID,
			&s.Order.EventID,
			&s.Order.TierID,
			&s.Order.UserID,
			&s.Order.Quantity,
			&s.Order.TotalPriceCents,
			&s.Order.Status,
			&s.Order.CreatedAt,
			&s.Order.UpdatedAt,
			&s.TicketCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order shortfall: %w", err)
		}
		shortfalls = append(shortfalls, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order shortfalls: %w", err)
	}

	return shortfalls, nil
}
