package service

import (
	"context"

	"github.com/ticketdrop/backend/internal/payload/response"
	"github.com/ticketdrop/backend/internal/repository"
)

// OrderView pairs an order with its issued tickets
type OrderView struct {
	Order   response.OrderResponse    `json:"order"`
	Tickets []response.TicketResponse `json:"tickets"`
}

// OrderService exposes the caller's purchase history
type OrderService interface {
	GetUserOrders(ctx context.Context, userID string) ([]OrderView, error)
}

// orderService implements OrderService interface
type orderService struct {
	orderRepo  repository.OrderRepository
	ticketRepo repository.TicketRepository
}

// NewOrderService creates new order service instance
func NewOrderService(orderRepo repository.OrderRepository, ticketRepo repository.TicketRepository) OrderService {
	return &orderService{orderRepo: orderRepo, ticketRepo: ticketRepo}
}

// GetUserOrders lists the user's orders, newest first, each with its tickets
func (s *orderService) GetUserOrders(ctx context.Context, userID string) ([]OrderView, error) {
	orders, err := s.orderRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		tickets, err := s.ticketRepo.GetByOrderID(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		views = append(views, OrderView{
			Order:   response.ToOrderResponse(&orders[i]),
			Tickets: response.ToTicketResponses(tickets),
		})
	}

	return views, nil
}
