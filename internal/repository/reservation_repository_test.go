package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketdrop/backend/internal/payload/entity"
)

// TestExpireStale verifies the recovery pass flips only lapsed active
// holds, and that a second run is a no-op.
func TestExpireStale(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	repo := NewReservationRepository(db)
	ctx := context.Background()

	eventID := CreateTestEvent(t, db)
	tierID := CreateTestTier(t, db, eventID, 100, 4)
	now := time.Now()

	lapsed1 := CreateTestReservation(t, db, eventID, tierID, "user-1", 2, entity.ReservationStatusActive, now.Add(-5*time.Minute))
	lapsed2 := CreateTestReservation(t, db, eventID, tierID, "user-2", 1, entity.ReservationStatusActive, now.Add(-time.Second))
	alive := CreateTestReservation(t, db, eventID, tierID, "user-3", 1, entity.ReservationStatusActive, now.Add(10*time.Minute))
	converted := CreateTestReservation(t, db, eventID, tierID, "user-4", 1, entity.ReservationStatusConverted, now.Add(-time.Hour))

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	expired, err := repo.ExpireStaleTx(ctx, tx, time.Now())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Len(t, expired, 2)

	expiredIDs := map[string]bool{}
	for _, r := range expired {
		expiredIDs[r.ID] = true
		assert.Equal(t, entity.ReservationStatusExpired, r.Status)
	}
	assert.True(t, expiredIDs[lapsed1])
	assert.True(t, expiredIDs[lapsed2])
	assert.False(t, expiredIDs[alive])
	assert.False(t, expiredIDs[converted])

	// Second run matches nothing: expired rows never re-match
	tx2, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	again, err := repo.ExpireStaleTx(ctx, tx2, time.Now())
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())
	assert.Empty(t, again)
}

// TestAvailabilitySums verifies the aggregates that feed capacity math
func TestAvailabilitySums(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	reservationRepo := NewReservationRepository(db)
	orderRepo := NewOrderRepository(db)
	ctx := context.Background()

	eventID := CreateTestEvent(t, db)
	tierID := CreateTestTier(t, db, eventID, 100, 6)
	now := time.Now()

	// Two active holds (3 total), one lapsed, one converted
	CreateTestReservation(t, db, eventID, tierID, "user-1", 2, entity.ReservationStatusActive, now.Add(3*time.Minute))
	CreateTestReservation(t, db, eventID, tierID, "user-2", 1, entity.ReservationStatusActive, now.Add(3*time.Minute))
	CreateTestReservation(t, db, eventID, tierID, "user-3", 4, entity.ReservationStatusActive, now.Add(-time.Minute))
	convertedRes := CreateTestReservation(t, db, eventID, tierID, "user-4", 2, entity.ReservationStatusConverted, now.Add(3*time.Minute))

	// A paid order for the converted hold
	sessionID := CreateTestSession(t, db, convertedRes, "user-4", "key-sums-1", entity.SessionStatusCompleted)
	CreateTestOrder(t, db, sessionID, eventID, tierID, "user-4", 2)

	tx, err := reservationRepo.BeginTx(ctx)
	require.NoError(t, err)

	reserved, err := reservationRepo.SumActiveForTierTx(ctx, tx, tierID)
	require.NoError(t, err)
	assert.Equal(t, 3, reserved, "only active unexpired holds count")

	sold, err := orderRepo.SumPaidForTierTx(ctx, tx, tierID)
	require.NoError(t, err)
	assert.Equal(t, 2, sold)

	held, err := reservationRepo.SumActiveForEventUserTx(ctx, tx, eventID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, held)

	paid, err := orderRepo.SumPaidForEventUserTx(ctx, tx, eventID, "user-4")
	require.NoError(t, err)
	assert.Equal(t, 2, paid)

	require.NoError(t, tx.Commit())
}

// TestTicketShortfall verifies the repair pass discovers under-ticketed
// paid orders and that InsertTx respects the unique-code constraint.
func TestTicketShortfall(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	orderRepo := NewOrderRepository(db)
	ticketRepo := NewTicketRepository(db)
	ctx := context.Background()

	eventID := CreateTestEvent(t, db)
	tierID := CreateTestTier(t, db, eventID, 100, 6)
	now := time.Now()

	reservationID := CreateTestReservation(t, db, eventID, tierID, "user-1", 3, entity.ReservationStatusConverted, now.Add(3*time.Minute))
	sessionID := CreateTestSession(t, db, reservationID, "user-1", "key-shortfall-1", entity.SessionStatusCompleted)
	orderID := CreateTestOrder(t, db, sessionID, eventID, tierID, "user-1", 3)

	shortfalls, err := orderRepo.GetPaidWithTicketShortfall(ctx, 100)
	require.NoError(t, err)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, orderID, shortfalls[0].Order.ID)
	assert.Equal(t, 0, shortfalls[0].TicketCount)

	// Insert one ticket, shortfall shrinks but remains
	tx, err := orderRepo.BeginTx(ctx)
	require.NoError(t, err)
	ok, err := ticketRepo.InsertTx(ctx, tx, &entity.Ticket{
		OrderID: orderID, EventID: eventID, TierID: tierID, UserID: "user-1",
		Code: "fixed-code-1", QRSig: "sig", Status: entity.TicketStatusValid,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// Same code again is silently skipped
	dup, err := ticketRepo.InsertTx(ctx, tx, &entity.Ticket{
		OrderID: orderID, EventID: eventID, TierID: tierID, UserID: "user-1",
		Code: "fixed-code-1", QRSig: "sig", Status: entity.TicketStatusValid,
	})
	require.NoError(t, err)
	assert.False(t, dup)
	require.NoError(t, tx.Commit())

	shortfalls, err = orderRepo.GetPaidWithTicketShortfall(ctx, 100)
	require.NoError(t, err)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, 1, shortfalls[0].TicketCount)
}
