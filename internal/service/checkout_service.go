package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ticketdrop/backend/internal/metrics"
	"github.com/ticketdrop/backend/internal/payload/entity"
	"github.com/ticketdrop/backend/internal/payload/response"
	"github.com/ticketdrop/backend/internal/repository"
)

var (
	ErrSessionNotFound      = errors.New("checkout session not found")
	ErrSessionStateMismatch = errors.New("checkout session is not pending")
	ErrReservationInvalid   = errors.New("reservation expired or invalid")
)

// Payment outcomes supplied by the caller. Payment is an oracle here;
// real settlement lives with an external collaborator.
const (
	PaymentOutcomeSuccess = "success"
	PaymentOutcomeFail    = "fail"
)

// CheckoutService drives the two-phase checkout: idempotent session
// creation followed by payment confirmation and ticket issuance.
type CheckoutService interface {
	CreateSession(ctx context.Context, userID, reservationID, idempotencyKey string) (*response.SessionResponse, bool, error)
	Confirm(ctx context.Context, userID, checkoutID, outcome string) (*response.ConfirmResponse, error)
}

// checkoutService implements CheckoutService interface
type checkoutService struct {
	checkoutRepo    repository.CheckoutRepository
	reservationRepo repository.ReservationRepository
	orderRepo       repository.OrderRepository
	ticketRepo      repository.TicketRepository
	tierRepo        repository.TierRepository
	ticketService   TicketService
	reservationTTL  time.Duration
}

// NewCheckoutService creates new checkout service instance
func NewCheckoutService(
	checkoutRepo repository.CheckoutRepository,
	reservationRepo repository.ReservationRepository,
	orderRepo repository.OrderRepository,
	ticketRepo repository.TicketRepository,
	tierRepo repository.TierRepository,
	ticketService TicketService,
	reservationTTL time.Duration,
) CheckoutService {
	return &checkoutService{
		checkoutRepo:    checkoutRepo,
		reservationRepo: reservationRepo,
		orderRepo:       orderRepo,
		ticketRepo:      ticketRepo,
		tierRepo:        tierRepo,
		ticketService:   ticketService,
		reservationTTL:  reservationTTL,
	}
}

// CreateSession opens (or replays) the checkout session for a hold.
// The unique index on idempotency_key makes retries safe: repeats of
// the same key return the original session, field for field. The
// second return value reports whether a new session was created.
func (s *checkoutService) CreateSession(ctx context.Context, userID, reservationID, idempotencyKey string) (*response.SessionResponse, bool, error) {
	// Replay check first: a repeated key must not mutate anything.
	existing, err := s.checkoutRepo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err == nil {
		resp := response.ToSessionResponse(existing, true)
		return &resp, false, nil
	}
	if !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, false, err
	}

	reservation, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, false, ErrReservationInvalid
		}
		return nil, false, err
	}
	if reservation.UserID != userID || !reservation.IsHolding(time.Now()) {
		return nil, false, ErrReservationInvalid
	}

	// A different key may already have opened a session for this hold;
	// hand that one back instead of competing with it.
	pending, err := s.checkoutRepo.GetPendingByReservation(ctx, reservationID)
	if err == nil {
		resp := response.ToSessionResponse(pending, true)
		return &resp, false, nil
	}
	if !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, false, err
	}

	// Fresh window to pay.
	if err := s.reservationRepo.ExtendExpiry(ctx, reservationID, time.Now().Add(s.reservationTTL)); err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, false, ErrReservationInvalid
		}
		return nil, false, err
	}

	session := &entity.CheckoutSession{
		ReservationID:  reservationID,
		UserID:         userID,
		IdempotencyKey: idempotencyKey,
		Status:         entity.SessionStatusPending,
	}
	err = s.checkoutRepo.Create(ctx, session)
	if err == nil {
		resp := response.ToSessionResponse(session, false)
		return &resp, true, nil
	}

	// Lost the unique-key race; the winner's session is the session.
	if errors.Is(err, repository.ErrIdempotencyKeyTaken) {
		winner, lookupErr := s.checkoutRepo.GetByIdempotencyKey(ctx, idempotencyKey)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		resp := response.ToSessionResponse(winner, true)
		return &resp, false, nil
	}

	return nil, false, err
}

// Confirm settles a pending session with the caller-supplied payment
// outcome. The reservation row lock serialises every outcome: at most
// one of order creation, expiration or cancellation wins, and repeated
// success confirmations replay the original order and tickets.
func (s *checkoutService) Confirm(ctx context.Context, userID, checkoutID, outcome string) (resp *response.ConfirmResponse, err error) {
	tx, err := s.checkoutRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	session, err := s.checkoutRepo.GetByIDTx(ctx, tx, checkoutID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		err = ErrSessionNotFound
		return nil, err
	}

	// Idempotent replay: an order already settled this session.
	existingOrder, err := s.orderRepo.GetBySessionIDTx(ctx, tx, session.ID)
	if err == nil {
		return s.replayTx(ctx, tx, session, existingOrder)
	}
	if !errors.Is(err, repository.ErrOrderNotFound) {
		return nil, err
	}
	err = nil

	if session.Status != entity.SessionStatusPending {
		err = ErrSessionStateMismatch
		return nil, err
	}

	// Serialisation point for confirmation outcomes.
	reservation, err := s.reservationRepo.GetByIDWithLock(ctx, tx, session.ReservationID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if reservation.Status == entity.ReservationStatusActive && !reservation.ExpiresAt.After(now) {
		// The hold lapsed before payment settled: terminal failure for both.
		if err = s.reservationRepo.UpdateStatusTx(ctx, tx, reservation.ID, entity.ReservationStatusExpired); err != nil {
			return nil, err
		}
		if err = s.checkoutRepo.UpdateStatusTx(ctx, tx, session.ID, entity.SessionStatusExpired); err != nil {
			return nil, err
		}
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil, ErrReservationInvalid
	}
	if reservation.Status != entity.ReservationStatusActive {
		if err = s.checkoutRepo.UpdateStatusTx(ctx, tx, session.ID, entity.SessionStatusFailed); err != nil {
			return nil, err
		}
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil, ErrReservationInvalid
	}

	if outcome == PaymentOutcomeFail {
		if err = s.checkoutRepo.UpdateStatusTx(ctx, tx, session.ID, entity.SessionStatusFailed); err != nil {
			return nil, err
		}
		if err = s.reservationRepo.UpdateStatusTx(ctx, tx, reservation.ID, entity.ReservationStatusCanceled); err != nil {
			return nil, err
		}
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		metrics.Default.ConfirmFail.Add(1)

		session.Status = entity.SessionStatusFailed
		reservation.Status = entity.ReservationStatusCanceled
		return &response.ConfirmResponse{
			Session:     response.ToSessionResponse(session, false),
			Reservation: response.ToReservationResponse(reservation, nil),
		}, nil
	}

	tier, err := s.tierRepo.GetByIDTx(ctx, tx, reservation.TierID)
	if err != nil {
		return nil, err
	}

	order := &entity.Order{
		SessionID:       session.ID,
		EventID:         reservation.EventID,
		TierID:          reservation.TierID,
		UserID:          reservation.UserID,
		Quantity:        reservation.Quantity,
		TotalPriceCents: int64(reservation.Quantity) * tier.PriceCents,
		Status:          entity.OrderStatusPaid,
	}
	if err = s.orderRepo.CreateTx(ctx, tx, order); err != nil {
		return nil, err
	}

	tickets, err := s.ticketService.IssueTicketsTx(ctx, tx, order, order.Quantity)
	if err != nil {
		return nil, err
	}

	if err = s.checkoutRepo.UpdateStatusTx(ctx, tx, session.ID, entity.SessionStatusCompleted); err != nil {
		return nil, err
	}
	if err = s.reservationRepo.UpdateStatusTx(ctx, tx, reservation.ID, entity.ReservationStatusConverted); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.Default.OrdersCreated.Add(1)
	metrics.Default.ConfirmSuccess.Add(1)
	log.Printf("[Checkout] order %s settled: %d ticket(s) for event %s", order.ID, len(tickets), order.EventID)

	session.Status = entity.SessionStatusCompleted
	reservation.Status = entity.ReservationStatusConverted
	orderResp := response.ToOrderResponse(order)
	return &response.ConfirmResponse{
		Session:     response.ToSessionResponse(session, false),
		Reservation: response.ToReservationResponse(reservation, nil),
		Order:       &orderResp,
		Tickets:     response.ToTicketResponses(tickets),
	}, nil
}

// replayTx assembles the idempotent response for a session that was
// already settled. Reads only; no state changes.
func (s *checkoutService) replayTx(ctx context.Context, tx *sql.Tx, session *entity.CheckoutSession, order *entity.Order) (*response.ConfirmResponse, error) {
	tickets, err := s.ticketRepo.GetByOrderIDTx(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	reservation, err := s.reservationRepo.GetByIDWithLock(ctx, tx, session.ReservationID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	orderResp := response.ToOrderResponse(order)
	return &response.ConfirmResponse{
		Session:     response.ToSessionResponse(session, false),
		Reservation: response.ToReservationResponse(reservation, nil),
		Order:       &orderResp,
		Tickets:     response.ToTicketResponses(tickets),
		Replayed:    true,
	}, nil
}
