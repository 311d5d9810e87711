package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ticketdrop/backend/internal/metrics"
	"github.com/ticketdrop/backend/internal/payload/response"
	"github.com/ticketdrop/backend/internal/queue"
	"github.com/ticketdrop/backend/internal/repository"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidToken  = errors.New("invalid or expired queue token")
)

// WaitingRoomService handles queue joins, status polls and wave-driven
// admission grants
type WaitingRoomService interface {
	Join(ctx context.Context, eventID, userID string) (string, error)
	Status(ctx context.Context, eventID, token string) (*response.StatusView, error)
	Clear(ctx context.Context, eventID string) error
}

// waitingRoomService implements WaitingRoomService interface
type waitingRoomService struct {
	eventRepo    repository.EventRepository
	store        *queue.WaitingRoomStore
	waveSize     int
	waveInterval time.Duration
}

// NewWaitingRoomService creates new waiting room service instance
func NewWaitingRoomService(
	eventRepo repository.EventRepository,
	store *queue.WaitingRoomStore,
	waveSize int,
	waveInterval time.Duration,
) WaitingRoomService {
	return &waitingRoomService{
		eventRepo:    eventRepo,
		store:        store,
		waveSize:     waveSize,
		waveInterval: waveInterval,
	}
}

// Join admits a prospective buyer into the waiting room and returns
// their queue token. Draft and absent events are indistinguishable.
func (s *waitingRoomService) Join(ctx context.Context, eventID, userID string) (string, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return "", ErrEventNotFound
		}
		return "", fmt.Errorf("failed to load event: %w", err)
	}
	if !event.IsVisible() {
		return "", ErrEventNotFound
	}

	token, err := s.store.Join(ctx, eventID, userID)
	if err != nil {
		return "", err
	}

	metrics.Default.QueueJoins.Add(1)
	return token, nil
}

// Status reports the caller's queue state. When the sale is open it
// also drives the wave cursor forward and, for eligible positions,
// issues the short-lived admission grant.
func (s *waitingRoomService) Status(ctx context.Context, eventID, token string) (*response.StatusView, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	if !event.IsVisible() {
		return nil, ErrEventNotFound
	}

	if _, err := s.store.TokenRecord(ctx, eventID, token); err != nil {
		if errors.Is(err, queue.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	now := time.Now()

	if !event.SaleOpen(now) {
		secondsUntil := int64(event.OnSaleAt.Sub(now).Seconds())
		if secondsUntil < 0 {
			secondsUntil = 0
		}
		return &response.StatusView{
			State:              response.StatusStateWaiting,
			OnSaleAt:           event.OnSaleAt,
			SecondsUntilOnSale: &secondsUntil,
		}, nil
	}

	position, total, err := s.store.Rank(ctx, eventID, token)
	if err != nil {
		if errors.Is(err, queue.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	waveEnd, err := s.store.AdvanceWave(ctx, eventID, total, s.waveSize, s.waveInterval)
	if err != nil {
		return nil, err
	}

	canEnter := position <= waveEnd && !event.Paused
	if canEnter {
		if err := s.store.IssueGrant(ctx, eventID, token); err != nil {
			return nil, err
		}
	}

	eta := etaSeconds(position, waveEnd, s.waveSize, s.waveInterval)
	paused := event.Paused

	return &response.StatusView{
		State:      response.StatusStateSaleOpen,
		OnSaleAt:   event.OnSaleAt,
		Position:   &position,
		Total:      &total,
		CanEnter:   &canEnter,
		EtaSeconds: &eta,
		Paused:     &paused,
	}, nil
}

// Clear is the administrative waiting-room reset for an event
func (s *waitingRoomService) Clear(ctx context.Context, eventID string) error {
	return s.store.Clear(ctx, eventID)
}

// etaSeconds estimates the wait until a position falls inside the wave:
// ceil(max(0, position - waveEnd) / waveSize) * waveInterval, rounded up
// to whole seconds.
func etaSeconds(position, waveEnd int64, waveSize int, waveInterval time.Duration) int64 {
	ahead := position - waveEnd
	if ahead <= 0 {
		return 0
	}
	waves := (ahead + int64(waveSize) - 1) / int64(waveSize)
	wait := time.Duration(waves) * waveInterval
	return int64((wait + time.Second - 1) / time.Second)
}
