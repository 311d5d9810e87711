package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ticketdrop/backend/internal/metrics"
	"github.com/ticketdrop/backend/internal/payload/entity"
	"github.com/ticketdrop/backend/internal/payload/request"
	"github.com/ticketdrop/backend/internal/payload/response"
	"github.com/ticketdrop/backend/internal/repository"
	"github.com/ticketdrop/backend/internal/utility"
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketInvalid     = errors.New("ticket signature or reference mismatch")
	ErrTicketAlreadyUsed = errors.New("ticket has already been used")
)

// TicketService issues, lists, renders and validates tickets
type TicketService interface {
	IssueTicketsTx(ctx context.Context, tx *sql.Tx, order *entity.Order, count int) ([]entity.Ticket, error)
	ListUserTickets(ctx context.Context, userID string) ([]response.TicketResponse, error)
	TicketQR(ctx context.Context, userID, ticketID string) (string, error)
	TicketPDF(ctx context.Context, userID, ticketID string) ([]byte, error)
	Validate(ctx context.Context, req *request.ValidateTicketRequest) (*response.ValidationResponse, error)
	RepairMissingTickets(ctx context.Context) (int, error)
}

// ticketService implements TicketService interface
type ticketService struct {
	ticketRepo repository.TicketRepository
	orderRepo  repository.OrderRepository
	eventRepo  repository.EventRepository
	tierRepo   repository.TierRepository
	qrSecret   string
}

// NewTicketService creates new ticket service instance
func NewTicketService(
	ticketRepo repository.TicketRepository,
	orderRepo repository.OrderRepository,
	eventRepo repository.EventRepository,
	tierRepo repository.TierRepository,
	qrSecret string,
) TicketService {
	return &ticketService{
		ticketRepo: ticketRepo,
		orderRepo:  orderRepo,
		eventRepo:  eventRepo,
		tierRepo:   tierRepo,
		qrSecret:   qrSecret,
	}
}

// IssueTicketsTx mints count tickets for the order inside an open
// transaction. Each ticket gets a fresh unique code and an HMAC
// signature over code, order and event. The unique-code insert uses
// on-conflict-do-nothing, so a concurrent recovery sweep cannot
// double-insert; a skipped insert simply re-mints.
func (s *ticketService) IssueTicketsTx(ctx context.Context, tx *sql.Tx, order *entity.Order, count int) ([]entity.Ticket, error) {
	tickets := make([]entity.Ticket, 0, count)

	for i := 0; i < count; i++ {
		var inserted bool
		var ticket entity.Ticket

		// Codes are UUIDs; a collision is vanishingly rare but the
		// conflict clause makes re-minting cheap.
		for attempt := 0; attempt < 3; attempt++ {
			code := uuid.New().String()
			ticket = entity.Ticket{
				OrderID: order.ID,
				EventID: order.EventID,
				TierID:  order.TierID,
				UserID:  order.UserID,
				Code:    code,
				QRSig:   utility.SignTicket(s.qrSecret, code, order.ID, order.EventID),
				Status:  entity.TicketStatusValid,
			}

			ok, err := s.ticketRepo.InsertTx(ctx, tx, &ticket)
			if err != nil {
				return nil, err
			}
			if ok {
				inserted = true
				break
			}
		}
		if !inserted {
			return nil, fmt.Errorf("failed to mint unique ticket code for order %s", order.ID)
		}

		tickets = append(tickets, ticket)
	}

	return tickets, nil
}

// ListUserTickets returns all tickets owned by the user
func (s *ticketService) ListUserTickets(ctx context.Context, userID string) ([]response.TicketResponse, error) {
	tickets, err := s.ticketRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return response.ToTicketResponses(tickets), nil
}

// getOwnedTicket loads a ticket and enforces ownership
func (s *ticketService) getOwnedTicket(ctx context.Context, userID, ticketID string) (*entity.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if ticket.UserID != userID {
		return nil, ErrTicketNotFound
	}
	return ticket, nil
}

// TicketQR renders the ticket's QR payload as a base64 PNG
func (s *ticketService) TicketQR(ctx context.Context, userID, ticketID string) (string, error) {
	ticket, err := s.getOwnedTicket(ctx, userID, ticketID)
	if err != nil {
		return "", err
	}

	payload := utility.BuildTicketQRPayload(ticket.Code, ticket.OrderID, ticket.EventID, ticket.QRSig)
	return utility.GenerateQRCode(payload)
}

// TicketPDF renders a printable e-ticket with the embedded QR image
func (s *ticketService) TicketPDF(ctx context.Context, userID, ticketID string) ([]byte, error) {
	ticket, err := s.getOwnedTicket(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}

	event, err := s.eventRepo.GetByID(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	tier, err := s.tierRepo.GetByID(ctx, ticket.TierID)
	if err != nil {
		return nil, err
	}

	payload := utility.BuildTicketQRPayload(ticket.Code, ticket.OrderID, ticket.EventID, ticket.QRSig)
	qrBase64, err := utility.GenerateQRCode(payload)
	if err != nil {
		return nil, err
	}

	return utility.GenerateTicketPDF(&utility.TicketPDFData{
		TicketCode:     ticket.Code,
		TierName:       tier.Name,
		PriceCents:     tier.PriceCents,
		QRCodeBase64:   qrBase64,
		EventName:      event.Name,
		EventVenue:     event.Venue,
		EventStartTime: event.StartsAt.Format("Monday, 02 Jan 2006 15:04 MST"),
		OrderID:        ticket.OrderID,
	})
}

// Validate re-derives the QR signature, checks the ticket references
// and atomically marks a valid ticket as used. A second scan of the
// same ticket reports already_used.
func (s *ticketService) Validate(ctx context.Context, req *request.ValidateTicketRequest) (*response.ValidationResponse, error) {
	ticket, err := s.ticketRepo.GetByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return nil, ErrTicketInvalid
		}
		return nil, err
	}

	if ticket.OrderID != req.OrderID || ticket.EventID != req.EventID {
		return nil, ErrTicketInvalid
	}
	if !utility.VerifyTicketSignature(s.qrSecret, req.Code, req.OrderID, req.EventID, req.QRSig) {
		return nil, ErrTicketInvalid
	}

	if err := s.ticketRepo.MarkAsUsed(ctx, ticket.ID); err != nil {
		if errors.Is(err, repository.ErrTicketAlreadyUsed) {
			return nil, ErrTicketAlreadyUsed
		}
		return nil, err
	}

	used, err := s.ticketRepo.GetByID(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	return &response.ValidationResponse{
		Valid:       true,
		TicketID:    used.ID,
		Status:      used.Status,
		ValidatedAt: used.ValidatedAt,
	}, nil
}

// RepairMissingTickets finds paid orders short of tickets and mints the
// shortfall under the order row lock. Safe to run every cycle; a
// fully-ticketed order is a no-op.
func (s *ticketService) RepairMissingTickets(ctx context.Context) (int, error) {
	shortfalls, err := s.orderRepo.GetPaidWithTicketShortfall(ctx, 100)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, shortfall := range shortfalls {
		n, err := s.repairOrder(ctx, shortfall.Order.ID)
		if err != nil {
			log.Printf("[Recovery] failed to repair order %s: %v", shortfall.Order.ID, err)
			continue
		}
		repaired += n
	}

	if repaired > 0 {
		metrics.Default.TicketsRecovered.Add(int64(repaired))
	}

	return repaired, nil
}

// repairOrder re-checks the shortfall under the order lock and inserts
// the missing tickets in one transaction.
func (s *ticketService) repairOrder(ctx context.Context, orderID string) (n int, err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	order, err := s.orderRepo.GetByIDWithLock(ctx, tx, orderID)
	if err != nil {
		return 0, err
	}
	if !order.IsPaid() {
		return 0, tx.Commit()
	}

	have, err := s.ticketRepo.CountByOrderTx(ctx, tx, orderID)
	if err != nil {
		return 0, err
	}

	missing := order.Quantity - have
	if missing <= 0 {
		return 0, tx.Commit()
	}

	if _, err = s.IssueTicketsTx(ctx, tx, order, missing); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return missing, nil
}
