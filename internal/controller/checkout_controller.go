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

// CheckoutController handles HTTP requests for the checkout state machine
type CheckoutController struct {
	checkoutService service.CheckoutService
}

// NewCheckoutController creates new checkout controller instance
func NewCheckoutController(checkoutService service.CheckoutService) *CheckoutController {
	return &CheckoutController{checkoutService: checkoutService}
}

// CreateSession handles POST /checkout/sessions. New sessions return
// 201; a replayed idempotency key returns the original session with 200.
func (c *CheckoutController) CreateSession(ctx *gin.Context) {
	userID := middleware.UserID(ctx)

	idempotencyKey := ctx.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   message.KindValidationError,
			"message": "Idempotency-Key header is required",
		})
		return
	}

	var req request.CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   message.KindValidationError,
			"details": err.Error(),
		})
		return
	}

	session, created, err := c.checkoutService.CreateSession(ctx.Request.Context(), userID, req.ReservationID, idempotencyKey)
	if err != nil {
		if errors.Is(err, service.ErrReservationInvalid) {
			ctx.JSON(http.StatusConflict, gin.H{"error": message.KindReservationExpired})
			return
		}

		log.Printf("[ERROR] CreateSession failed for user %s (request %s): %v", userID, middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ctx.JSON(status, session)
}

// Confirm handles POST /checkout/confirm. A fresh settlement returns
// 201; an idempotent replay returns the original order with 200.
func (c *CheckoutController) Confirm(ctx *gin.Context) {
	userID := middleware.UserID(ctx)

	var req request.ConfirmRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   message.KindValidationError,
			"details": err.Error(),
		})
		return
	}

	result, err := c.checkoutService.Confirm(ctx.Request.Context(), userID, req.CheckoutID, req.Simulate)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
		case errors.Is(err, service.ErrSessionStateMismatch):
			ctx.JSON(http.StatusConflict, gin.H{"error": message.KindSessionStateMismatch})
		case errors.Is(err, service.ErrReservationInvalid):
			ctx.JSON(http.StatusConflict, gin.H{"error": message.KindReservationExpired})
		default:
			log.Printf("[ERROR] Confirm failed for user %s (request %s): %v", userID, middleware.GetRequestID(ctx), err)
			ctx.JSON(http.StatusInternalServerError, gin.H{
				"error":      message.KindInternalError,
				"request_id": middleware.GetRequestID(ctx),
			})
		}
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	ctx.JSON(status, result)
}
