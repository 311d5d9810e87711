package entity

import "time"

// Tier represents a named inventory bucket under an event
type Tier struct {
	ID           string    `db:"id"`
	EventID      string    `db:"event_id"`
	Name         string    `db:"name"`
	PriceCents   int64     `db:"price_cents"`
	Capacity     int       `db:"capacity"`
	PerUserLimit int       `db:"per_user_limit"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
