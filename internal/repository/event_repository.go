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
	ErrEventNotFound = errors.New("event not found")
)

// EventRepository defines interface for event data operations
type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	GetByID(ctx context.Context, id string) (*entity.Event, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*entity.Event, error)
	List(ctx context.Context) ([]entity.Event, error)
	SetPaused(ctx context.Context, id string, paused bool) error
	SetStatus(ctx context.Context, id, status string) error
}

// eventRepository implements EventRepository interface
type eventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates new event repository instance
func NewEventRepository(db *sqlx.DB) EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `id, name, venue, starts_at, on_sale_at, status, paused, created_at, updated_at`

// Create inserts a new event
func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	event.ID = uuid.New().String()

	query := `
		INSERT INTO events (id, name, venue, starts_at, on_sale_at, status, paused, created_at, updated_at)
		VALUES (:id, :name, :venue, :starts_at, :on_sale_at, :status, :paused, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&event.CreatedAt, &event.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan created event: %w", err)
		}
	}

	return nil
}

// GetByID retrieves an event by ID
func (r *eventRepository) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	var event entity.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	err := r.db.GetContext(ctx, &event, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return &event, nil
}

// GetByIDTx retrieves an event inside an open transaction
func (r *eventRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event := &entity.Event{}
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Name,
		&event.Venue,
		&event.StartsAt,
		&event.OnSaleAt,
		&event.Status,
		&event.Paused,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// List retrieves all non-draft events, soonest sale first
func (r *eventRepository) List(ctx context.Context) ([]entity.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status <> $1
		ORDER BY on_sale_at ASC
	`

	events := []entity.Event{}
	if err := r.db.SelectContext(ctx, &events, query, entity.EventStatusDraft); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}

// SetPaused toggles the pause flag
func (r *eventRepository) SetPaused(ctx context.Context, id string, paused bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET paused = $1, updated_at = NOW() WHERE id = $2`, paused, id)
	if err != nil {
		return fmt.Errorf("failed to update event pause flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrEventNotFound
	}

	return nil
}

// SetStatus transitions the event lifecycle status
func (r *eventRepository) SetStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrEventNotFound
	}

	return nil
}
