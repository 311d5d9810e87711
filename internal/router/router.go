package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ticketdrop/backend/config"
	"github.com/ticketdrop/backend/internal/controller"
	"github.com/ticketdrop/backend/internal/utility"
	"github.com/ticketdrop/backend/middleware"
)

// SetupRouter configures all routes
func SetupRouter(
	cfg *config.Config,
	redisClient *utility.RedisClient,
	waitingRoomController *controller.WaitingRoomController,
	reservationController *controller.ReservationController,
	checkoutController *controller.CheckoutController,
	ticketController *controller.TicketController,
	eventController *controller.EventController,
	adminController *controller.AdminController,
) *gin.Engine {
	r := gin.Default()

	corsConfig := cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-Id", "X-Request-Id", "Idempotency-Key"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	r.Use(cors.New(corsConfig))
	r.Use(middleware.RequestID())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "ticketdrop-backend",
		})
	})

	// Public event reads
	events := r.Group("/events")
	{
		events.GET("", eventController.List)
		events.GET("/:id", eventController.Get)
		events.GET("/:id/availability", eventController.Availability)

		// Waiting room
		events.POST("/:id/waiting-room/join",
			middleware.Identity(),
			middleware.RateLimit(redisClient, "join", cfg.RateLimit.JoinPerMin, middleware.ByIPAndEvent()),
			waitingRoomController.Join)
		events.GET("/:id/waiting-room/status", waitingRoomController.Status)

		// Reservations
		events.POST("/:id/reservations", middleware.Identity(), reservationController.Reserve)
		events.GET("/:id/reservations", middleware.Identity(), reservationController.Lookup)
	}

	// Checkout
	checkout := r.Group("/checkout")
	checkout.Use(middleware.Identity())
	{
		checkout.POST("/sessions",
			middleware.RateLimit(redisClient, "session", cfg.RateLimit.SessionPerMin, middleware.ByUser()),
			checkoutController.CreateSession)
		checkout.POST("/confirm",
			middleware.RateLimit(redisClient, "confirm", cfg.RateLimit.ConfirmPerMin, middleware.ByUser()),
			checkoutController.Confirm)
	}

	// Buyer's own tickets and orders
	me := r.Group("/me")
	me.Use(middleware.Identity())
	{
		me.GET("/tickets", ticketController.ListMyTickets)
		me.GET("/tickets/:id/qr", ticketController.TicketQR)
		me.GET("/tickets/:id/pdf", ticketController.TicketPDF)
		me.GET("/orders", ticketController.ListMyOrders)
	}

	// Gate-side validation (staff scanners; protected upstream)
	r.POST("/tickets/validate", ticketController.Validate)

	// Admin (protected upstream by the gateway)
	admin := r.Group("/admin")
	{
		admin.POST("/events", adminController.CreateEvent)
		admin.POST("/events/:id/tiers", adminController.CreateTier)
		admin.POST("/events/:id/pause", adminController.Pause)
		admin.POST("/events/:id/resume", adminController.Resume)
		admin.POST("/events/:id/open-sale", adminController.OpenSale)
		admin.GET("/events/:id/status", adminController.Status)
		admin.POST("/events/:id/waiting-room/clear", adminController.ClearQueue)
	}

	return r
}
