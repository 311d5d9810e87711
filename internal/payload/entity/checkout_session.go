package entity

import "time"

// CheckoutSession is the idempotency envelope around a pending payment
type CheckoutSession struct {
	ID             string    `db:"id"`
	ReservationID  string    `db:"reservation_id"`
	UserID         string    `db:"user_id"`
	IdempotencyKey string    `db:"idempotency_key"`
	Status         string    `db:"status"` // pending, completed, failed, expired
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Checkout session status constants
const (
	SessionStatusPending   = "pending"   // Awaiting payment confirmation
	SessionStatusCompleted = "completed" // Payment succeeded, order issued
	SessionStatusFailed    = "failed"    // Payment failed
	SessionStatusExpired   = "expired"   // Underlying reservation lapsed
)
