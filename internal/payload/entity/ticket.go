package entity

import "time"

// Ticket represents one issued seat
type Ticket struct {
	ID          string     `db:"id"`
	OrderID     string     `db:"order_id"`
	EventID     string     `db:"event_id"`
	TierID      string     `db:"tier_id"`
	UserID      string     `db:"user_id"`
	Code        string     `db:"code"`   // Globally unique opaque string
	QRSig       string     `db:"qr_sig"` // HMAC over code, order id and event id
	Status      string     `db:"status"` // valid, used
	ValidatedAt *time.Time `db:"validated_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// Ticket status constants
const (
	TicketStatusValid = "valid" // Can be scanned at the gate
	TicketStatusUsed  = "used"  // Already scanned
)

// CanBeUsed checks if the ticket can still be scanned at the gate
func (t *Ticket) CanBeUsed() bool {
	return t.Status == TicketStatusValid
}
