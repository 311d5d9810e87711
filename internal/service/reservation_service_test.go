package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketdrop/backend/internal/payload/entity"
	"github.com/ticketdrop/backend/internal/payload/request"
	"github.com/ticketdrop/backend/internal/repository"
)

func newTestReservationService(t *testing.T, eventID string, ttl time.Duration, eventLimit int) (ReservationService, func(userID string) string) {
	t.Helper()

	db := repository.SetupTestDB(t)
	t.Cleanup(func() { repository.CleanupTestDB(t, db) })

	redisClient := setupTestRedis(t)

	eventRepo := repository.NewEventRepository(db)
	tierRepo := repository.NewTierRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	store, _ := setupWaitingRoom(t, redisClient, eventID, "seed-user")

	svc := NewReservationService(eventRepo, tierRepo, reservationRepo, orderRepo, store, ttl, eventLimit)

	admit := func(userID string) string {
		token, err := store.Join(context.Background(), eventID, userID)
		require.NoError(t, err)
		require.NoError(t, store.IssueGrant(context.Background(), eventID, token))
		return token
	}

	return svc, admit
}

// TestReserve_NoOversell is the canonical oversell test: capacity 1,
// ten concurrent requesters of one seat each. Exactly one succeeds.
func TestReserve_NoOversell(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 1, 6)

	svc, admit := newTestReservationService(t, eventID, 3*time.Minute, 6)

	const requesters = 10
	type outcome struct {
		err error
	}
	results := make([]outcome, requesters)

	var wg sync.WaitGroup
	for i := 0; i < requesters; i++ {
		userID := string(rune('a'+i)) + "-oversell-user"
		token := admit(userID)

		wg.Add(1)
		go func(i int, userID, token string) {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), eventID, userID, &request.ReserveRequest{
				TierID:   tierID,
				Quantity: 1,
				Token:    token,
			})
			results[i] = outcome{err: err}
		}(i, userID, token)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, r := range results {
		switch {
		case r.err == nil:
			successes++
		case errors.Is(r.err, ErrInsufficientInventory):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one requester wins the seat")
	assert.Equal(t, requesters-1, conflicts)

	var activeCount int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM reservations WHERE tier_id = $1 AND status = 'active'", tierID,
	).Scan(&activeCount)
	require.NoError(t, err)
	assert.Equal(t, 1, activeCount)
}

// TestReserve_PurchaseLimitLadder walks the per-event cap: buy 3,
// attempt 4 (rejected with breakdown), buy 3 to the boundary, then any
// further quantity is rejected.
func TestReserve_PurchaseLimitLadder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)
	userID := "ladder-user"

	svc, admit := newTestReservationService(t, eventID, 3*time.Minute, 6)
	ctx := context.Background()

	// Simulate 3 already paid
	now := time.Now()
	paidRes := repository.CreateTestReservation(t, db, eventID, tierID, userID, 3, entity.ReservationStatusConverted, now.Add(3*time.Minute))
	sessionID := repository.CreateTestSession(t, db, paidRes, userID, "key-ladder-1", entity.SessionStatusCompleted)
	repository.CreateTestOrder(t, db, sessionID, eventID, tierID, userID, 3)

	// Attempt 4: 3 paid + 4 > 6
	token := admit(userID)
	_, err := svc.Reserve(ctx, eventID, userID, &request.ReserveRequest{TierID: tierID, Quantity: 4, Token: token})
	var limitErr *PurchaseLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 3, limitErr.AlreadyPurchased)
	assert.Equal(t, 4, limitErr.Requested)
	assert.Equal(t, 6, limitErr.Limit)

	// Boundary holds: 3 paid + 3 = 6 succeeds
	token = admit(userID)
	reservation, err := svc.Reserve(ctx, eventID, userID, &request.ReserveRequest{TierID: tierID, Quantity: 3, Token: token})
	require.NoError(t, err)
	require.NotNil(t, reservation)

	// Mark it paid so the next attempt sees 6 purchased
	_, err = db.Exec("UPDATE reservations SET status = 'converted' WHERE id = $1", reservation.ID)
	require.NoError(t, err)
	sessionID2 := repository.CreateTestSession(t, db, reservation.ID, userID, "key-ladder-2", entity.SessionStatusCompleted)
	repository.CreateTestOrder(t, db, sessionID2, eventID, tierID, userID, 3)

	token = admit(userID)
	_, err = svc.Reserve(ctx, eventID, userID, &request.ReserveRequest{TierID: tierID, Quantity: 1, Token: token})
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 6, limitErr.AlreadyPurchased)
}

// TestReserve_Gates covers the capability and state gates ahead of the
// availability math.
func TestReserve_Gates(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 10, 4)

	svc, admit := newTestReservationService(t, eventID, 3*time.Minute, 6)
	ctx := context.Background()

	// Unknown token: not admitted
	_, err := svc.Reserve(ctx, eventID, "gate-user", &request.ReserveRequest{TierID: tierID, Quantity: 1, Token: "bogus"})
	assert.ErrorIs(t, err, ErrNotAdmitted)

	// Per-tier limit
	token := admit("gate-user")
	_, err = svc.Reserve(ctx, eventID, "gate-user", &request.ReserveRequest{TierID: tierID, Quantity: 5, Token: token})
	assert.ErrorIs(t, err, ErrPerTierLimitExceeded)

	// Double hold: second reservation while one is active
	token = admit("gate-user")
	_, err = svc.Reserve(ctx, eventID, "gate-user", &request.ReserveRequest{TierID: tierID, Quantity: 1, Token: token})
	require.NoError(t, err)

	token = admit("gate-user")
	_, err = svc.Reserve(ctx, eventID, "gate-user", &request.ReserveRequest{TierID: tierID, Quantity: 1, Token: token})
	assert.ErrorIs(t, err, ErrDoubleHold)

	// Paused event refuses new holds
	_, err = db.Exec("UPDATE events SET paused = TRUE WHERE id = $1", eventID)
	require.NoError(t, err)

	token = admit("other-user")
	_, err = svc.Reserve(ctx, eventID, "other-user", &request.ReserveRequest{TierID: tierID, Quantity: 1, Token: token})
	assert.ErrorIs(t, err, ErrSalesPaused)
}

// TestReserve_ConsumesGrant verifies the grant is a one-shot capability
func TestReserve_ConsumesGrant(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 10, 4)

	svc, admit := newTestReservationService(t, eventID, 3*time.Minute, 6)
	ctx := context.Background()

	token := admit("grant-user")
	first, err := svc.Reserve(ctx, eventID, "grant-user", &request.ReserveRequest{TierID: tierID, Quantity: 1, Token: token})
	require.NoError(t, err)

	// Release the hold so the double-hold gate does not mask the grant check
	_, err = db.Exec("UPDATE reservations SET status = 'canceled' WHERE id = $1", first.ID)
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, eventID, "grant-user", &request.ReserveRequest{TierID: tierID, Quantity: 1, Token: token})
	assert.ErrorIs(t, err, ErrNotAdmitted, "spent grant no longer admits")
}
