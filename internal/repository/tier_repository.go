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
	ErrTierNotFound   = errors.New("tier not found")
	ErrTierNameExists = errors.New("tier name already exists for event")
)

// TierRepository defines interface for tier data operations
type TierRepository interface {
	Create(ctx context.Context, tier *entity.Tier) error
	GetByID(ctx context.Context, id string) (*entity.Tier, error)
	GetByEventID(ctx context.Context, eventID string) ([]entity.Tier, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*entity.Tier, error)
	GetByIDWithLock(ctx context.Context, tx *sql.Tx, id string) (*entity.Tier, error)
}

// tierRepository implements TierRepository interface
type tierRepository struct {
	db *sqlx.DB
}

// NewTierRepository creates new tier repository instance
func NewTierRepository(db *sqlx.DB) TierRepository {
	return &tierRepository{db: db}
}

const tierColumns = `id, event_id, name, price_cents, capacity, per_user_limit, created_at, updated_at`

// Create inserts a new tier; tier names are unique per event
func (r *tierRepository) Create(ctx context.Context, tier *entity.Tier) error {
	tier.ID = uuid.New().String()

	query := `
		INSERT INTO tiers (id, event_id, name, price_cents, capacity, per_user_limit, created_at, updated_at)
		VALUES (:id, :event_id, :name, :price_cents, :capacity, :per_user_limit, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, tier)
	if err != nil {
		if IsUniqueViolation(err, "tiers_event_id_name_key") {
			return ErrTierNameExists
		}
		return fmt.Errorf("failed to create tier: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&tier.CreatedAt, &tier.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan created tier: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a tier by ID
func (r *tierRepository) GetByID(ctx context.Context, id string) (*entity.Tier, error) {
	var tier entity.Tier
	query := `SELECT ` + tierColumns + ` FROM tiers WHERE id = $1`

	err := r.db.GetContext(ctx, &tier, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}

	return &tier, nil
}

// GetByEventID retrieves all tiers under an event
func (r *tierRepository) GetByEventID(ctx context.Context, eventID string) ([]entity.Tier, error) {
	query := `SELECT ` + tierColumns + ` FROM tiers WHERE event_id = $1 ORDER BY price_cents ASC, name ASC`

	tiers := []entity.Tier{}
	if err := r.db.SelectContext(ctx, &tiers, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to get tiers: %w", err)
	}

	return tiers, nil
}

// GetByIDTx retrieves a tier inside an open transaction without locking
func (r *tierRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*entity.Tier, error) {
	query := `SELECT ` + tierColumns + ` FROM tiers WHERE id = $1`

	tier := &entity.Tier{}
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&tier.ID,
		&tier.EventID,
		&tier.Name,
		&tier.PriceCents,
		&tier.Capacity,
		&tier.PerUserLimit,
		&tier.CreatedAt,
		&tier.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}

	return tier, nil
}

// GetByIDWithLock retrieves a tier with a row-level lock (SELECT FOR UPDATE).
// This lock is the serialisation point for all availability math on the
// tier: any two concurrent reservation attempts on the same tier queue
// behind it. MUST be called within a transaction.
func (r *tierRepository) GetByIDWithLock(ctx context.Context, tx *sql.Tx, id string) (*entity.Tier, error) {
	query := `SELECT ` + tierColumns + ` FROM tiers WHERE id = $1 FOR UPDATE`

	tier := &entity.Tier{}
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&tier.ID,
		&tier.EventID,
		&tier.Name,
		&tier.PriceCents,
		&tier.Capacity,
		&tier.PerUserLimit,
		&tier.CreatedAt,
		&tier.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tier with lock: %w", err)
	}

	return tier, nil
}
