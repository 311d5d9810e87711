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

// AdminController handles organiser-facing event administration
type AdminController struct {
	eventService       service.EventService
	waitingRoomService service.WaitingRoomService
}

// NewAdminController creates new admin controller instance
func NewAdminController(eventService service.EventService, waitingRoomService service.WaitingRoomService) *AdminController {
	return &AdminController{eventService: eventService, waitingRoomService: waitingRoomService}
}

// CreateEvent handles POST /admin/events
func (c *AdminController) CreateEvent(ctx *gin.Context) {
	var req request.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   message.KindValidationError,
			"details": err.Error(),
		})
		return
	}

	event, err := c.eventService.CreateEvent(ctx.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSaleWindow) {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"error":   message.KindValidationError,
				"message": err.Error(),
			})
			return
		}

		log.Printf("[ERROR] CreateEvent failed (request %s): %v", middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusCreated, event)
}

// CreateTier handles POST /admin/events/:id/tiers
func (c *AdminController) CreateTier(ctx *gin.Context) {
	var req request.CreateTierRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   message.KindValidationError,
			"details": err.Error(),
		})
		return
	}

	tier, err := c.eventService.CreateTier(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
		case errors.Is(err, service.ErrTierNameExists):
			ctx.JSON(http.StatusConflict, gin.H{
				"error":   message.KindValidationError,
				"message": err.Error(),
			})
		default:
			log.Printf("[ERROR] CreateTier failed (request %s): %v", middleware.GetRequestID(ctx), err)
			ctx.JSON(http.StatusInternalServerError, gin.H{
				"error":      message.KindInternalError,
				"request_id": middleware.GetRequestID(ctx),
			})
		}
		return
	}

	ctx.JSON(http.StatusCreated, tier)
}

// Pause handles POST /admin/events/:id/pause
func (c *AdminController) Pause(ctx *gin.Context) {
	c.setPaused(ctx, true)
}

// Resume handles POST /admin/events/:id/resume
func (c *AdminController) Resume(ctx *gin.Context) {
	c.setPaused(ctx, false)
}

func (c *AdminController) setPaused(ctx *gin.Context, paused bool) {
	eventID := ctx.Param("id")

	if err := c.eventService.SetPaused(ctx.Request.Context(), eventID, paused); err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
			return
		}

		log.Printf("[ERROR] SetPaused failed for event %s (request %s): %v", eventID, middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"event_id": eventID, "paused": paused})
}

// OpenSale handles POST /admin/events/:id/open-sale
func (c *AdminController) OpenSale(ctx *gin.Context) {
	eventID := ctx.Param("id")

	if err := c.eventService.OpenSale(ctx.Request.Context(), eventID); err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
			return
		}

		log.Printf("[ERROR] OpenSale failed for event %s (request %s): %v", eventID, middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"event_id": eventID, "status": "on_sale"})
}

// Status handles GET /admin/events/:id/status
func (c *AdminController) Status(ctx *gin.Context) {
	status, err := c.eventService.AdminStatus(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
			return
		}

		log.Printf("[ERROR] AdminStatus failed (request %s): %v", middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, status)
}

// ClearQueue handles POST /admin/events/:id/waiting-room/clear
func (c *AdminController) ClearQueue(ctx *gin.Context) {
	eventID := ctx.Param("id")

	if err := c.waitingRoomService.Clear(ctx.Request.Context(), eventID); err != nil {
		log.Printf("[ERROR] ClearQueue failed for event %s (request %s): %v", eventID, middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"event_id": eventID, "cleared": true})
}
