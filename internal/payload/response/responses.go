package response

import (
	"time"

	"github.com/ticketdrop/backend/internal/payload/entity"
)

// Waiting-room status states
const (
	StatusStateWaiting  = "waiting"
	StatusStateSaleOpen = "sale_open"
)

// StatusView is the poll response. Before the sale opens only the
// countdown fields are present; afterwards the queue fields are.
type StatusView struct {
	State              string    `json:"state"`
	OnSaleAt           time.Time `json:"on_sale_at"`
	SecondsUntilOnSale *int64    `json:"seconds_until_on_sale,omitempty"`
	Position           *int64    `json:"position,omitempty"`
	Total              *int64    `json:"total,omitempty"`
	CanEnter           *bool     `json:"can_enter,omitempty"`
	EtaSeconds         *int64    `json:"eta_seconds,omitempty"`
	Paused             *bool     `json:"paused,omitempty"`
}

// EventResponse is the public event view
type EventResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Venue    string    `json:"venue"`
	StartsAt time.Time `json:"starts_at"`
	OnSaleAt time.Time `json:"on_sale_at"`
	Status   string    `json:"status"`
	Paused   bool      `json:"paused"`
}

// TierResponse is the public tier view
type TierResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	Capacity     int    `json:"capacity"`
	PerUserLimit int    `json:"per_user_limit"`
}

// TierAvailability reports the capacity math for one tier
type TierAvailability struct {
	TierID     string `json:"tier_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Capacity   int    `json:"capacity"`
	Reserved   int    `json:"reserved"`
	Sold       int    `json:"sold"`
	Available  int    `json:"available"`
}

// ReservationResponse is the hold view returned on create and lookup
type ReservationResponse struct {
	ID         string        `json:"id"`
	EventID    string        `json:"event_id"`
	TierID     string        `json:"tier_id"`
	UserID     string        `json:"user_id"`
	Quantity   int           `json:"quantity"`
	Status     string        `json:"status"`
	ExpiresAt  time.Time     `json:"expires_at"`
	Tier       *TierResponse `json:"tier,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// SessionResponse is the checkout session view. Idempotent marks a
// replayed response; the remaining fields are byte-for-byte identical
// between the first response and every replay.
type SessionResponse struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reservation_id"`
	Status        string    `json:"status"`
	Idempotent    bool      `json:"idempotent"`
	CreatedAt     time.Time `json:"created_at"`
}

// OrderResponse is the paid purchase view
type OrderResponse struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	EventID         string    `json:"event_id"`
	TierID          string    `json:"tier_id"`
	Quantity        int       `json:"quantity"`
	TotalPriceCents int64     `json:"total_price_cents"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// TicketResponse is one issued seat
type TicketResponse struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	EventID string `json:"event_id"`
	TierID  string `json:"tier_id"`
	Code    string `json:"code"`
	QRSig   string `json:"qr_sig"`
	Status  string `json:"status"`
}

// ConfirmResponse assembles the full view after settlement
type ConfirmResponse struct {
	Session     SessionResponse      `json:"session"`
	Reservation ReservationResponse  `json:"reservation"`
	Order       *OrderResponse       `json:"order,omitempty"`
	Tickets     []TicketResponse     `json:"tickets,omitempty"`
	Replayed    bool                 `json:"replayed"`
}

// ValidationResponse is the gate-side scan result
type ValidationResponse struct {
	Valid       bool       `json:"valid"`
	TicketID    string     `json:"ticket_id"`
	Status      string     `json:"status"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
}

// ToEventResponse maps an event entity to its public view
func ToEventResponse(e *entity.Event) EventResponse {
	return EventResponse{
		ID:       e.ID,
		Name:     e.Name,
		Venue:    e.Venue,
		StartsAt: e.StartsAt,
		OnSaleAt: e.OnSaleAt,
		Status:   e.Status,
		Paused:   e.Paused,
	}
}

// ToTierResponse maps a tier entity to its public view
func ToTierResponse(t *entity.Tier) TierResponse {
	return TierResponse{
		ID:           t.ID,
		Name:         t.Name,
		PriceCents:   t.PriceCents,
		Capacity:     t.Capacity,
		PerUserLimit: t.PerUserLimit,
	}
}

// ToReservationResponse maps a reservation, optionally joined with its tier
func ToReservationResponse(r *entity.Reservation, tier *entity.Tier) ReservationResponse {
	resp := ReservationResponse{
		ID:        r.ID,
		EventID:   r.EventID,
		TierID:    r.TierID,
		UserID:    r.UserID,
		Quantity:  r.Quantity,
		Status:    r.Status,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
	if tier != nil {
		t := ToTierResponse(tier)
		resp.Tier = &t
	}
	return resp
}

// ToSessionResponse maps a checkout session to its view
func ToSessionResponse(s *entity.CheckoutSession, idempotent bool) SessionResponse {
	return SessionResponse{
		ID:            s.ID,
		ReservationID: s.ReservationID,
		Status:        s.Status,
		Idempotent:    idempotent,
		CreatedAt:     s.CreatedAt,
	}
}

// ToOrderResponse maps an order to its view
func ToOrderResponse(o *entity.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		SessionID:       o.SessionID,
		EventID:         o.EventID,
		TierID:          o.TierID,
		Quantity:        o.Quantity,
		TotalPriceCents: o.TotalPriceCents,
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
	}
}

// ToTicketResponses maps issued tickets to their views
func ToTicketResponses(tickets []entity.Ticket) []TicketResponse {
	out := make([]TicketResponse, len(tickets))
	for i, t := range tickets {
		out[i] = TicketResponse{
			ID:      t.ID,
			OrderID: t.OrderID,
			EventID: t.EventID,
			TierID:  t.TierID,
			Code:    t.Code,
			QRSig:   t.QRSig,
			Status:  t.Status,
		}
	}
	return out
}
