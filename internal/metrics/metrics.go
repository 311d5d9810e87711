package metrics

import "sync/atomic"

// Counters are process-local monotonic counters. They are the contract
// with the telemetry collaborator; exposition formats live outside this
// service. The admin status endpoint surfaces a snapshot.
type Counters struct {
	QueueJoins          atomic.Int64
	ReservationsCreated atomic.Int64
	OversellAttempts    atomic.Int64
	PurchaseLimitHits   atomic.Int64
	OrdersCreated       atomic.Int64
	ConfirmSuccess      atomic.Int64
	ConfirmFail         atomic.Int64
	RateLimitHits       atomic.Int64
	TicketsRecovered    atomic.Int64
}

// Snapshot is a point-in-time copy of all counters
type Snapshot struct {
	QueueJoins          int64 `json:"queue_joins"`
	ReservationsCreated int64 `json:"reservations_created"`
	OversellAttempts    int64 `json:"oversell_attempts"`
	PurchaseLimitHits   int64 `json:"purchase_limit_hits"`
	OrdersCreated       int64 `json:"orders_created"`
	ConfirmSuccess      int64 `json:"confirm_success"`
	ConfirmFail         int64 `json:"confirm_fail"`
	RateLimitHits       int64 `json:"rate_limit_hits"`
	TicketsRecovered    int64 `json:"tickets_recovered"`
}

// Default is the process-wide counter set
var Default = &Counters{}

// Snapshot returns a point-in-time copy of the counters
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		QueueJoins:          c.QueueJoins.Load(),
		ReservationsCreated: c.ReservationsCreated.Load(),
		OversellAttempts:    c.OversellAttempts.Load(),
		PurchaseLimitHits:   c.PurchaseLimitHits.Load(),
		OrdersCreated:       c.OrdersCreated.Load(),
		ConfirmSuccess:      c.ConfirmSuccess.Load(),
		ConfirmFail:         c.ConfirmFail.Load(),
		RateLimitHits:       c.RateLimitHits.Load(),
		TicketsRecovered:    c.TicketsRecovered.Load(),
	}
}
