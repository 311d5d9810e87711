package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ticketdrop/backend/internal/metrics"
	"github.com/ticketdrop/backend/internal/payload/entity"
	"github.com/ticketdrop/backend/internal/payload/request"
	"github.com/ticketdrop/backend/internal/payload/response"
	"github.com/ticketdrop/backend/internal/queue"
	"github.com/ticketdrop/backend/internal/repository"
)

var (
	ErrNotAdmitted           = errors.New("admission grant required")
	ErrSalesPaused           = errors.New("sales are paused for this event")
	ErrTierNotFound          = errors.New("tier not found")
	ErrPerTierLimitExceeded  = errors.New("quantity exceeds per-tier limit")
	ErrDoubleHold            = errors.New("an active reservation already exists for this event")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrNoActiveReservation   = errors.New("no active reservation")
)

// PurchaseLimitError carries the cap breakdown surfaced to the buyer
type PurchaseLimitError struct {
	AlreadyPurchased int
	Held             int
	Requested        int
	Limit            int
}

func (e *PurchaseLimitError) Error() string {
	return fmt.Sprintf("purchase limit exceeded: purchased=%d held=%d requested=%d limit=%d",
		e.AlreadyPurchased, e.Held, e.Requested, e.Limit)
}

// ReservationService places TTL-bounded holds on tier inventory.
// The whole check-then-insert runs under the tier row lock, which is
// the serialisation point that prevents overselling.
type ReservationService interface {
	Reserve(ctx context.Context, eventID, userID string, req *request.ReserveRequest) (*response.ReservationResponse, error)
	LookupActive(ctx context.Context, eventID, userID string) (*response.ReservationResponse, error)
	ExpireStaleHolds(ctx context.Context) (int, error)
}

// reservationService implements ReservationService interface
type reservationService struct {
	eventRepo       repository.EventRepository
	tierRepo        repository.TierRepository
	reservationRepo repository.ReservationRepository
	orderRepo       repository.OrderRepository
	store           *queue.WaitingRoomStore
	reservationTTL  time.Duration
	eventLimit      int
}

// NewReservationService creates new reservation service instance
func NewReservationService(
	eventRepo repository.EventRepository,
	tierRepo repository.TierRepository,
	reservationRepo repository.ReservationRepository,
	orderRepo repository.OrderRepository,
	store *queue.WaitingRoomStore,
	reservationTTL time.Duration,
	eventLimit int,
) ReservationService {
	return &reservationService{
		eventRepo:       eventRepo,
		tierRepo:        tierRepo,
		reservationRepo: reservationRepo,
		orderRepo:       orderRepo,
		store:           store,
		reservationTTL:  reservationTTL,
		eventLimit:      eventLimit,
	}
}

// Reserve creates an inventory hold for the caller. The admission grant
// is the entry capability; the tier row lock upholds the no-oversell
// invariant under concurrent attempts.
func (s *reservationService) Reserve(ctx context.Context, eventID, userID string, req *request.ReserveRequest) (*response.ReservationResponse, error) {
	if req.Quantity < 1 {
		return nil, ErrPerTierLimitExceeded
	}

	// The queue token must still resolve; a lapsed token cannot carry a grant.
	if _, err := s.store.TokenRecord(ctx, eventID, req.Token); err != nil {
		if errors.Is(err, queue.ErrTokenNotFound) {
			return nil, ErrNotAdmitted
		}
		return nil, err
	}

	admitted, err := s.store.HasGrant(ctx, eventID, req.Token)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, ErrNotAdmitted
	}

	tx, err := s.reservationRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	event, err := s.eventRepo.GetByIDTx(ctx, tx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if !event.IsVisible() {
		err = ErrEventNotFound
		return nil, err
	}
	if event.Paused {
		err = ErrSalesPaused
		return nil, err
	}

	// Serialisation point: every availability computation below happens
	// under this lock.
	tier, err := s.tierRepo.GetByIDWithLock(ctx, tx, req.TierID)
	if err != nil {
		if errors.Is(err, repository.ErrTierNotFound) {
			return nil, ErrTierNotFound
		}
		return nil, err
	}
	if tier.EventID != eventID {
		err = ErrTierNotFound
		return nil, err
	}

	alreadyPaid, err := s.orderRepo.SumPaidForEventUserTx(ctx, tx, eventID, userID)
	if err != nil {
		return nil, err
	}
	activeHeld, err := s.reservationRepo.SumActiveForEventUserTx(ctx, tx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if alreadyPaid+activeHeld+req.Quantity > s.eventLimit {
		metrics.Default.PurchaseLimitHits.Add(1)
		err = &PurchaseLimitError{
			AlreadyPurchased: alreadyPaid,
			Held:             activeHeld,
			Requested:        req.Quantity,
			Limit:            s.eventLimit,
		}
		return nil, err
	}

	if req.Quantity > tier.PerUserLimit {
		err = ErrPerTierLimitExceeded
		return nil, err
	}

	hasActive, err := s.reservationRepo.HasActiveForEventUserTx(ctx, tx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if hasActive {
		err = ErrDoubleHold
		return nil, err
	}

	reserved, err := s.reservationRepo.SumActiveForTierTx(ctx, tx, tier.ID)
	if err != nil {
		return nil, err
	}
	sold, err := s.orderRepo.SumPaidForTierTx(ctx, tx, tier.ID)
	if err != nil {
		return nil, err
	}
	if tier.Capacity-reserved-sold < req.Quantity {
		metrics.Default.OversellAttempts.Add(1)
		log.Printf("[Reservation] oversell attempt blocked: tier=%s capacity=%d reserved=%d sold=%d requested=%d",
			tier.ID, tier.Capacity, reserved, sold, req.Quantity)
		err = ErrInsufficientInventory
		return nil, err
	}

	reservation := &entity.Reservation{
		EventID:   eventID,
		TierID:    tier.ID,
		UserID:    userID,
		Quantity:  req.Quantity,
		Status:    entity.ReservationStatusActive,
		ExpiresAt: time.Now().Add(s.reservationTTL),
	}
	if err = s.reservationRepo.CreateTx(ctx, tx, reservation); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// The grant authorises one reservation attempt; spend it.
	if err := s.store.ConsumeGrant(ctx, eventID, req.Token); err != nil {
		log.Printf("[Reservation] failed to consume grant for token %s: %v", req.Token, err)
	}

	metrics.Default.ReservationsCreated.Add(1)

	resp := response.ToReservationResponse(reservation, tier)
	return &resp, nil
}

// LookupActive returns the caller's most recent active unexpired hold
// on the event, joined with its tier for display.
func (s *reservationService) LookupActive(ctx context.Context, eventID, userID string) (*response.ReservationResponse, error) {
	reservation, err := s.reservationRepo.GetActiveByEventUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, ErrNoActiveReservation
		}
		return nil, err
	}

	tier, err := s.tierRepo.GetByID(ctx, reservation.TierID)
	if err != nil {
		return nil, err
	}

	resp := response.ToReservationResponse(reservation, tier)
	return &resp, nil
}

// ExpireStaleHolds flips all lapsed active holds to expired in one
// statement. Capacity accounting corrects itself the moment the status
// changes, because availability only counts active unexpired rows.
func (s *reservationService) ExpireStaleHolds(ctx context.Context) (int, error) {
	tx, err := s.reservationRepo.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	expired, err := s.reservationRepo.ExpireStaleTx(ctx, tx, time.Now())
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(expired), nil
}
