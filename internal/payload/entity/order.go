package entity

import "time"

// Order is the immutable record of a paid purchase
type Order struct {
	ID              string    `db:"id"`
	SessionID       string    `db:"session_id"`
	EventID         string    `db:"event_id"`
	TierID          string    `db:"tier_id"`
	UserID          string    `db:"user_id"`
	Quantity        int       `db:"quantity"`
	TotalPriceCents int64     `db:"total_price_cents"`
	Status          string    `db:"status"` // paid, refunded, canceled
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Order status constants
const (
	OrderStatusPaid     = "paid"
	OrderStatusRefunded = "refunded"
	OrderStatusCanceled = "canceled"
)

// IsPaid checks if the order still counts toward sold inventory
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}
