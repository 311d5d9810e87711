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

// WaitingRoomController handles HTTP requests for the admission queue
type WaitingRoomController struct {
	waitingRoomService service.WaitingRoomService
}

// NewWaitingRoomController creates new waiting room controller instance
func NewWaitingRoomController(waitingRoomService service.WaitingRoomService) *WaitingRoomController {
	return &WaitingRoomController{waitingRoomService: waitingRoomService}
}

// Join handles POST /events/:id/waiting-room/join
func (c *WaitingRoomController) Join(ctx *gin.Context) {
	eventID := ctx.Param("id")
	userID := middleware.UserID(ctx)

	token, err := c.waitingRoomService.Join(ctx.Request.Context(), eventID, userID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
			return
		}

		log.Printf("[ERROR] Join failed for event %s (request %s): %v", eventID, middleware.GetRequestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":      message.KindInternalError,
			"request_id": middleware.GetRequestID(ctx),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": token})
}

// Status handles GET /events/:id/waiting-room/status?token=
func (c *WaitingRoomController) Status(ctx *gin.Context) {
	eventID := ctx.Param("id")
	token := ctx.Query("token")
	if token == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   message.KindValidationError,
			"message": "token query parameter is required",
		})
		return
	}

	view, err := c.waitingRoomService.Status(ctx.Request.Context(), eventID, token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindNotFound})
		case errors.Is(err, service.ErrInvalidToken):
			ctx.JSON(http.StatusNotFound, gin.H{"error": message.KindInvalidToken})
		default:
			log.Printf("[ERROR] Status failed for event %s (request %s): %v", eventID, middleware.GetRequestID(ctx), err)
			ctx.JSON(http.StatusInternalServerError, gin.H{
				"error":      message.KindInternalError,
				"request_id": middleware.GetRequestID(ctx),
			})
		}
		return
	}

	ctx.JSON(http.StatusOK, view)
}
