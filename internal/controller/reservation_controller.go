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

// ReservationController handles HTTP requests for inventory holds
type ReservationController struct {
	reservationService service.ReservationService
}

// NewReservationController creates new reservation controller instance
func NewReservationController(reservationService service.ReservationService) *ReservationController {
	return &ReservationController{reservationService: reservationService}
}

// Reserve handles POST /events/:id/reservations
func (c *ReservationController) Reserve(ctx *gin.Context) {
	eventID := ctx.Param("id")
	userID := middleware.UserID(ctx)

	var req request.ReserveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   message.KindValidationError,
			"details": err.Error(),
		})
		return
	}

	reservation, err := c.reservationService.Reserve(ctx.Request.Context(), eventID, userID, &req)
	if err != nil {
		var limitErr *service.PurchaseLimitError
		switch {
		case errors.As(err, &limitErr):
			ctx.JSON(http.StatusForbidden, gin.H{
				"error":            message.KindPurchaseLimitExceeded,
				"alreadyPurchased": limitErr.AlreadyPurchased,
				"held":             limitErr.Held,
				"requested":        limitErr.Requested,
				"limit":            limitErr.Limit,
			})
		case errors.Is(err, service.ErrNotAdmitted):
			ctx.JSON(http.StatusForbidden, gin.H{"error": message.KindNotAdmitted})
		case errors.Is(err, service.ErrSalesPaused):
			ctx.JSON(http.StatusForbidden, gin.H{"error": message.KindSalesPaused})
		case errors.Is(err, service.ErrEventNotFound), errors.Is(err, service.ErrTierNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
		case errors.Is(err, service.ErrPerTierLimitExceeded):
			ctx.JSON(http.StatusForbidden, gin.H{"error": message.KindPerTierLimitExceeded})
		case errors.Is(err, service.ErrDoubleHold):
			ctx.JSON(http.StatusConflict, gin.H{"error": message.KindDoubleHold})
		case errors.Is(err, service.ErrInsufficientInventory):
			ctx.JSON(http.StatusConflict, gin.H{"error": message.KindInsufficientInventory})
		default:
			log.Printf("[ERROR] Reserve failed for user %s (request %s): %v", userID, middleware.GetRequestID(ctx), err)
			ctx.JSON(http.StatusInternalServerError, gin.H{
				"error":      message.KindInternalError,
				"request_id": middleware.GetRequestID(ctx),
			})
		}
		return
	}

	ctx.JSON(http.StatusCreated, reservation)
}

// Lookup handles GET /events/:id/reservations
func (c *ReservationController) Lookup(ctx *gin.Context) {
	eventID := ctx.Param("id")
	userID := middleware.UserID(ctx)

	reservation, err := c.reservationService.LookupActive(ctx.Request.Context(), eventID, userID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveReservation) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
			return
		}

		log.Printf("[ERROR] Lookup failed for user %s (request %s): %v", userID, middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, reservation)
}
