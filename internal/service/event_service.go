package service

import (
	"context"
	"errors"

	"github.com/ticketdrop/backend/internal/metrics"
	"github.com/ticketdrop/backend/internal/payload/entity"
	"github.com/ticketdrop/backend/internal/payload/request"
	"github.com/ticketdrop/backend/internal/payload/response"
	"github.com/ticketdrop/backend/internal/queue"
	"github.com/ticketdrop/backend/internal/repository"
)

var (
	ErrInvalidSaleWindow = errors.New("on_sale_at must not be after starts_at")
	ErrTierNameExists    = errors.New("tier name already exists for event")
)

// AdminEventStatus is the organiser-facing summary of one event
type AdminEventStatus struct {
	Event    response.EventResponse      `json:"event"`
	Tiers    []response.TierAvailability `json:"tiers"`
	Queue    QueueStats                  `json:"queue"`
	Counters metrics.Snapshot            `json:"counters"`
}

// QueueStats summarises the waiting room for the admin view
type QueueStats struct {
	Total   int64 `json:"total"`
	WaveEnd int64 `json:"wave_end"`
}

// EventService handles event and tier administration plus public reads
type EventService interface {
	CreateEvent(ctx context.Context, req *request.CreateEventRequest) (*response.EventResponse, error)
	CreateTier(ctx context.Context, eventID string, req *request.CreateTierRequest) (*response.TierResponse, error)
	ListEvents(ctx context.Context) ([]response.EventResponse, error)
	GetEvent(ctx context.Context, id string) (*response.EventResponse, error)
	Availability(ctx context.Context, eventID string) ([]response.TierAvailability, error)
	SetPaused(ctx context.Context, eventID string, paused bool) error
	OpenSale(ctx context.Context, eventID string) error
	AdminStatus(ctx context.Context, eventID string) (*AdminEventStatus, error)
}

// eventService implements EventService interface
type eventService struct {
	eventRepo       repository.EventRepository
	tierRepo        repository.TierRepository
	reservationRepo repository.ReservationRepository
	orderRepo       repository.OrderRepository
	store           *queue.WaitingRoomStore
}

// NewEventService creates new event service instance
func NewEventService(
	eventRepo repository.EventRepository,
	tierRepo repository.TierRepository,
	reservationRepo repository.ReservationRepository,
	orderRepo repository.OrderRepository,
	store *queue.WaitingRoomStore,
) EventService {
	return &eventService{
		eventRepo:       eventRepo,
		tierRepo:        tierRepo,
		reservationRepo: reservationRepo,
		orderRepo:       orderRepo,
		store:           store,
	}
}

// CreateEvent declares a new show. The sale window must open no later
// than the show starts.
func (s *eventService) CreateEvent(ctx context.Context, req *request.CreateEventRequest) (*response.EventResponse, error) {
	if req.OnSaleAt.After(req.StartsAt) {
		return nil, ErrInvalidSaleWindow
	}

	status := req.Status
	if status == "" {
		status = entity.EventStatusScheduled
	}

	event := &entity.Event{
		Name:     req.Name,
		Venue:    req.Venue,
		StartsAt: req.StartsAt,
		OnSaleAt: req.OnSaleAt,
		Status:   status,
		Paused:   false,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, err
	}

	resp := response.ToEventResponse(event)
	return &resp, nil
}

// CreateTier adds an inventory bucket under an event
func (s *eventService) CreateTier(ctx context.Context, eventID string, req *request.CreateTierRequest) (*response.TierResponse, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	tier := &entity.Tier{
		EventID:      eventID,
		Name:         req.Name,
		PriceCents:   req.PriceCents,
		Capacity:     req.Capacity,
		PerUserLimit: req.PerUserLimit,
	}
	if err := s.tierRepo.Create(ctx, tier); err != nil {
		if errors.Is(err, repository.ErrTierNameExists) {
			return nil, ErrTierNameExists
		}
		return nil, err
	}

	resp := response.ToTierResponse(tier)
	return &resp, nil
}

// ListEvents returns all buyer-visible events
func (s *eventService) ListEvents(ctx context.Context) ([]response.EventResponse, error) {
	events, err := s.eventRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]response.EventResponse, len(events))
	for i := range events {
		out[i] = response.ToEventResponse(&events[i])
	}
	return out, nil
}

// GetEvent returns one buyer-visible event
func (s *eventService) GetEvent(ctx context.Context, id string) (*response.EventResponse, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if !event.IsVisible() {
		return nil, ErrEventNotFound
	}

	resp := response.ToEventResponse(event)
	return &resp, nil
}

// Availability reports the live capacity math per tier. Unlocked
// display reads; the reserve path re-derives everything under the tier
// row lock before committing.
func (s *eventService) Availability(ctx context.Context, eventID string) ([]response.TierAvailability, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if !event.IsVisible() {
		return nil, ErrEventNotFound
	}

	return s.tierAvailability(ctx, eventID)
}

// tierAvailability computes the capacity math for every tier of an
// event, without any visibility filtering.
func (s *eventService) tierAvailability(ctx context.Context, eventID string) ([]response.TierAvailability, error) {
	tiers, err := s.tierRepo.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	out := make([]response.TierAvailability, 0, len(tiers))
	for i := range tiers {
		tier := &tiers[i]

		reserved, err := s.reservationRepo.SumActiveForTier(ctx, tier.ID)
		if err != nil {
			return nil, err
		}
		sold, err := s.orderRepo.SumPaidForTier(ctx, tier.ID)
		if err != nil {
			return nil, err
		}

		available := tier.Capacity - reserved - sold
		if available < 0 {
			available = 0
		}

		out = append(out, response.TierAvailability{
			TierID:     tier.ID,
			Name:       tier.Name,
			PriceCents: tier.PriceCents,
			Capacity:   tier.Capacity,
			Reserved:   reserved,
			Sold:       sold,
			Available:  available,
		})
	}

	return out, nil
}

// SetPaused toggles admissions and reservations for an event without
// evicting queuers or cancelling outstanding holds
func (s *eventService) SetPaused(ctx context.Context, eventID string, paused bool) error {
	err := s.eventRepo.SetPaused(ctx, eventID, paused)
	if errors.Is(err, repository.ErrEventNotFound) {
		return ErrEventNotFound
	}
	return err
}

// OpenSale transitions the event to on_sale
func (s *eventService) OpenSale(ctx context.Context, eventID string) error {
	err := s.eventRepo.SetStatus(ctx, eventID, entity.EventStatusOnSale)
	if errors.Is(err, repository.ErrEventNotFound) {
		return ErrEventNotFound
	}
	return err
}

// AdminStatus assembles the organiser summary: event, per-tier
// availability, waiting-room stats and the telemetry counters.
func (s *eventService) AdminStatus(ctx context.Context, eventID string) (*AdminEventStatus, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	tiers, err := s.tierAvailability(ctx, eventID)
	if err != nil {
		return nil, err
	}

	total, waveEnd, err := s.store.Stats(ctx, eventID)
	if err != nil {
		// Waiting-room state is reconstructible; the summary degrades
		// rather than fails when the ephemeral store is unreachable.
		total, waveEnd = 0, 0
	}

	return &AdminEventStatus{
		Event:    response.ToEventResponse(event),
		Tiers:    tiers,
		Queue:    QueueStats{Total: total, WaveEnd: waveEnd},
		Counters: metrics.Default.Snapshot(),
	}, nil
}
