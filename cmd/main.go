package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ticketdrop/backend/config"
	"github.com/ticketdrop/backend/internal/controller"
	"github.com/ticketdrop/backend/internal/queue"
	"github.com/ticketdrop/backend/internal/repository"
	"github.com/ticketdrop/backend/internal/router"
	"github.com/ticketdrop/backend/internal/service"
	"github.com/ticketdrop/backend/internal/utility"
	"github.com/ticketdrop/backend/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or defaults")
	}

	cfg := config.Load()

	log.Printf("Starting TicketDrop backend on port %s...", cfg.Port)
	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Reservation TTL: %v, recovery interval: %v", cfg.Reservation.TTL, cfg.Reservation.RecoveryInterval)

	// Durable store: the only source of truth for money-bearing state
	db, err := utility.NewDatabase(utility.DatabaseConfig{
		URL:             cfg.GetDatabaseURL(),
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Database connected successfully")

	if err := utility.RunMigrations(db, "migrations"); err != nil {
		log.Fatalf("Migration error: %v", err)
	}

	// Ephemeral store: waiting room, grants, wave cursors, rate limits.
	// Without admission grants no reservations can be created, so a
	// failed Redis connection is fatal in every environment.
	redisClient, err := utility.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	log.Println("Redis connected successfully")

	// Repositories
	eventRepo := repository.NewEventRepository(db)
	tierRepo := repository.NewTierRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	checkoutRepo := repository.NewCheckoutRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	// Waiting-room store
	waitingRoomStore := queue.NewWaitingRoomStore(redisClient, cfg.Queue.TokenTTL, cfg.Queue.GrantTTL)

	// Services
	waitingRoomService := service.NewWaitingRoomService(eventRepo, waitingRoomStore, cfg.Queue.WaveSize, cfg.Queue.WaveInterval)
	reservationService := service.NewReservationService(
		eventRepo, tierRepo, reservationRepo, orderRepo,
		waitingRoomStore, cfg.Reservation.TTL, cfg.Reservation.EventLimit,
	)
	ticketService := service.NewTicketService(ticketRepo, orderRepo, eventRepo, tierRepo, cfg.QRSecret)
	checkoutService := service.NewCheckoutService(
		checkoutRepo, reservationRepo, orderRepo, ticketRepo, tierRepo,
		ticketService, cfg.Reservation.TTL,
	)
	orderService := service.NewOrderService(orderRepo, ticketRepo)
	eventService := service.NewEventService(eventRepo, tierRepo, reservationRepo, orderRepo, waitingRoomStore)

	log.Println("Services initialized")

	// Controllers
	waitingRoomController := controller.NewWaitingRoomController(waitingRoomService)
	reservationController := controller.NewReservationController(reservationService)
	checkoutController := controller.NewCheckoutController(checkoutService)
	ticketController := controller.NewTicketController(ticketService, orderService)
	eventController := controller.NewEventController(eventService)
	adminController := controller.NewAdminController(eventService, waitingRoomService)

	// Router
	r := router.SetupRouter(
		cfg,
		redisClient,
		waitingRoomController,
		reservationController,
		checkoutController,
		ticketController,
		eventController,
		adminController,
	)

	// Recovery worker
	recoveryWorker := worker.NewRecoveryWorker(reservationService, ticketService, cfg.Reservation.RecoveryInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go recoveryWorker.Start(ctx)

	// HTTP server with graceful shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("HTTP server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	recoveryWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}
