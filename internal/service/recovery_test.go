package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketdrop/backend/internal/payload/entity"
	"github.com/ticketdrop/backend/internal/repository"
)

// TestRepairMissingTickets inserts a paid order with zero tickets and
// verifies the repair pass mints exactly the shortfall, with distinct
// codes, and that re-running it changes nothing.
func TestRepairMissingTickets(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)
	now := time.Now()

	reservationID := repository.CreateTestReservation(t, db, eventID, tierID, "user-1", 3,
		entity.ReservationStatusConverted, now.Add(3*time.Minute))
	sessionID := repository.CreateTestSession(t, db, reservationID, "user-1", "k-repair", entity.SessionStatusCompleted)
	orderID := repository.CreateTestOrder(t, db, sessionID, eventID, tierID, "user-1", 3)

	eventRepo := repository.NewEventRepository(db)
	tierRepo := repository.NewTierRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	svc := NewTicketService(ticketRepo, orderRepo, eventRepo, tierRepo, "test-qr-secret")

	ctx := context.Background()

	repaired, err := svc.RepairMissingTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, repaired)

	tickets, err := ticketRepo.GetByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, tickets, 3)

	codes := map[string]bool{}
	for _, ticket := range tickets {
		assert.False(t, codes[ticket.Code], "codes must be distinct")
		codes[ticket.Code] = true
		assert.Equal(t, entity.TicketStatusValid, ticket.Status)
		assert.Len(t, ticket.QRSig, 64)
	}

	// Second run is a no-op
	repaired, err = svc.RepairMissingTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)

	tickets, err = ticketRepo.GetByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, tickets, 3)
}

// TestExpireStaleHolds_Idempotent runs the expire pass repeatedly over
// the same state and verifies identical results.
func TestExpireStaleHolds_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)
	now := time.Now()

	repository.CreateTestReservation(t, db, eventID, tierID, "user-1", 2,
		entity.ReservationStatusActive, now.Add(-time.Minute))
	repository.CreateTestReservation(t, db, eventID, tierID, "user-2", 1,
		entity.ReservationStatusActive, now.Add(10*time.Minute))

	redisClient := setupTestRedis(t)
	store, _ := setupWaitingRoom(t, redisClient, eventID, "seed-user")

	eventRepo := repository.NewEventRepository(db)
	tierRepo := repository.NewTierRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	svc := NewReservationService(eventRepo, tierRepo, reservationRepo, orderRepo, store, 3*time.Minute, 6)

	ctx := context.Background()

	expired, err := svc.ExpireStaleHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	for i := 0; i < 3; i++ {
		expired, err = svc.ExpireStaleHolds(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, expired, "re-running the sweep must be a no-op")
	}

	var activeCount, expiredCount int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM reservations WHERE status = 'active'").Scan(&activeCount))
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM reservations WHERE status = 'expired'").Scan(&expiredCount))
	assert.Equal(t, 1, activeCount)
	assert.Equal(t, 1, expiredCount)
}
