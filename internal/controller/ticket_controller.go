package controller

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ticketdrop/backend/internal/message"
	"github.com/ticketdrop/backend/internal/payload/request"
	"github.com/ticketdrop/backend/internal/service"
	"github.com/ticketdrop/backend/middleware"
)

// TicketController handles HTTP requests for tickets and purchase history
type TicketController struct {
	ticketService service.TicketService
	orderService  service.OrderService
}

// NewTicketController creates new ticket controller instance
func NewTicketController(ticketService service.TicketService, orderService service.OrderService) *TicketController {
	return &TicketController{ticketService: ticketService, orderService: orderService}
}

// ListMyTickets handles GET /me/tickets
func (c *TicketController) ListMyTickets(ctx *gin.Context) {
	userID := middleware.UserID(ctx)

	tickets, err := c.ticketService.ListUserTickets(ctx.Request.Context(), userID)
	if err != nil {
		log.Printf("[ERROR] ListMyTickets failed for user %s (request %s): %v", userID, middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// ListMyOrders handles GET /me/orders
func (c *TicketController) ListMyOrders(ctx *gin.Context) {
	userID := middleware.UserID(ctx)

	orders, err := c.orderService.GetUserOrders(ctx.Request.Context(), userID)
	if err != nil {
		log.Printf("[ERROR] ListMyOrders failed for user %s (request %s): %v", userID, middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"orders": orders})
}

// TicketQR handles GET /me/tickets/:id/qr
func (c *TicketController) TicketQR(ctx *gin.Context) {
	userID := middleware.UserID(ctx)
	ticketID := ctx.Param("id")

	qr, err := c.ticketService.TicketQR(ctx.Request.Context(), userID, ticketID)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
			return
		}

		log.Printf("[ERROR] TicketQR failed for ticket %s (request %s): %v", ticketID, middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"ticket_id": ticketID, "qr_png_base64": qr})
}

// TicketPDF handles GET /me/tickets/:id/pdf
func (c *TicketController) TicketPDF(ctx *gin.Context) {
	userID := middleware.UserID(ctx)
	ticketID := ctx.Param("id")

	pdf, err := c.ticketService.TicketPDF(ctx.Request.Context(), userID, ticketID)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
			return
		}

		log.Printf("[ERROR] TicketPDF failed for ticket %s (request %s): %v", ticketID, middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.Header("Content-Disposition", "attachment; filename=ticket-"+ticketID+".pdf")
	ctx.Data(http.StatusOK, "application/pdf", pdf)
}

// Validate handles POST /tickets/validate (gate-side scan)
func (c *TicketController) Validate(ctx *gin.Context) {
	var req request.ValidateTicketRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   message.KindValidationError,
			"details": err.Error(),
		})
		return
	}

	result, err := c.ticketService.Validate(ctx.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTicketInvalid):
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindTicketInvalid})
		case errors.Is(err, service.ErrTicketAlreadyUsed):
			ctx.JSON(http.StatusConflict, gin.H{"error": message.KindTicketAlreadyUsed})
		default:
			log.Printf("[ERROR] Validate failed (request %s): %v", middleware.GetRequestID(ctx), err)
			ctx.JSON(http.StatusInternalServerError, gin.H{
				"error":      message.KindInternalError,
				"request_id": middleware.GetRequestID(ctx),
			})
		}
		return
	}

	ctx.JSON(http.StatusOK, result)
}
