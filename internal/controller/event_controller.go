package controller

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ticketdrop/backend/internal/message"
	"github.com/ticketdrop/backend/internal/service"
	"github.com/ticketdrop/backend/middleware"
)

// EventController handles public event reads
type EventController struct {
	eventService service.EventService
}

// NewEventController creates new event controller instance
func NewEventController(eventService service.EventService) *EventController {
	return &EventController{eventService: eventService}
}

// List handles GET /events
func (c *EventController) List(ctx *gin.Context) {
	events, err := c.eventService.ListEvents(ctx.Request.Context())
	if err != nil {
		log.Printf("[ERROR] List events failed (request %s): %v", middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"events": events})
}

// Get handles GET /events/:id
func (c *EventController) Get(ctx *gin.Context) {
	event, err := c.eventService.GetEvent(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
			return
		}

		log.Printf("[ERROR] Get event failed (request %s): %v", middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, event)
}

// Availability handles GET /events/:id/availability
func (c *EventController) Availability(ctx *gin.Context) {
	tiers, err := c.eventService.Availability(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
			return
		}

		log.Printf("[ERROR] Availability failed (request %s): %v", middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tiers": tiers})
}
