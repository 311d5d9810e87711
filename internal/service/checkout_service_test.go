package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketdrop/backend/internal/payload/entity"
	"github.com/ticketdrop/backend/internal/repository"
	"github.com/ticketdrop/backend/internal/utility"
)

func newTestCheckoutService(t *testing.T, db *sqlx.DB) CheckoutService {
	t.Helper()

	eventRepo := repository.NewEventRepository(db)
	tierRepo := repository.NewTierRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	checkoutRepo := repository.NewCheckoutRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	ticketService := NewTicketService(ticketRepo, orderRepo, eventRepo, tierRepo, "test-qr-secret")

	return NewCheckoutService(checkoutRepo, reservationRepo, orderRepo, ticketRepo, tierRepo, ticketService, 3*time.Minute)
}

// TestCreateSession_Idempotent verifies that a repeated idempotency key
// returns the original session and that only one row exists.
func TestCreateSession_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)
	reservationID := repository.CreateTestReservation(t, db, eventID, tierID, "user-1", 2,
		entity.ReservationStatusActive, time.Now().Add(3*time.Minute))

	svc := newTestCheckoutService(t, db)
	ctx := context.Background()

	first, created, err := svc.CreateSession(ctx, "user-1", reservationID, "k1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, first.Idempotent)
	assert.Equal(t, entity.SessionStatusPending, first.Status)

	second, created, err := svc.CreateSession(ctx, "user-1", reservationID, "k1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, second.Idempotent)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ReservationID, second.ReservationID)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	var count int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM checkout_sessions WHERE idempotency_key = 'k1'").Scan(&count))
	assert.Equal(t, 1, count)
}

// TestCreateSession_ExtendsReservation verifies the fresh payment window
func TestCreateSession_ExtendsReservation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)

	originalExpiry := time.Now().Add(30 * time.Second)
	reservationID := repository.CreateTestReservation(t, db, eventID, tierID, "user-1", 1,
		entity.ReservationStatusActive, originalExpiry)

	svc := newTestCheckoutService(t, db)

	_, _, err := svc.CreateSession(context.Background(), "user-1", reservationID, "k-extend")
	require.NoError(t, err)

	var expiresAt time.Time
	require.NoError(t, db.QueryRow(
		"SELECT expires_at FROM reservations WHERE id = $1", reservationID).Scan(&expiresAt))
	assert.True(t, expiresAt.After(originalExpiry.Add(time.Minute)),
		"expiry should move out by roughly the reservation TTL")
}

// TestCreateSession_CompetingKeys verifies that a second idempotency key
// for the same hold is handed the existing pending session.
func TestCreateSession_CompetingKeys(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)
	reservationID := repository.CreateTestReservation(t, db, eventID, tierID, "user-1", 1,
		entity.ReservationStatusActive, time.Now().Add(3*time.Minute))

	svc := newTestCheckoutService(t, db)
	ctx := context.Background()

	first, _, err := svc.CreateSession(ctx, "user-1", reservationID, "key-a")
	require.NoError(t, err)

	second, created, err := svc.CreateSession(ctx, "user-1", reservationID, "key-b")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID, "the pending session wins over a new key")
}

// TestCreateSession_ExpiredReservation rejects holds past their deadline
func TestCreateSession_ExpiredReservation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)
	reservationID := repository.CreateTestReservation(t, db, eventID, tierID, "user-1", 1,
		entity.ReservationStatusActive, time.Now().Add(-time.Minute))

	svc := newTestCheckoutService(t, db)

	_, _, err := svc.CreateSession(context.Background(), "user-1", reservationID, "k-expired")
	assert.ErrorIs(t, err, ErrReservationInvalid)
}

// TestConfirm_SuccessAndReplay settles a session and verifies that a
// second success confirmation replays the same order and tickets.
func TestConfirm_SuccessAndReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)
	reservationID := repository.CreateTestReservation(t, db, eventID, tierID, "user-1", 2,
		entity.ReservationStatusActive, time.Now().Add(3*time.Minute))

	svc := newTestCheckoutService(t, db)
	ctx := context.Background()

	session, _, err := svc.CreateSession(ctx, "user-1", reservationID, "k-confirm")
	require.NoError(t, err)

	first, err := svc.Confirm(ctx, "user-1", session.ID, PaymentOutcomeSuccess)
	require.NoError(t, err)
	require.NotNil(t, first.Order)
	assert.False(t, first.Replayed)
	assert.Equal(t, 2, first.Order.Quantity)
	assert.Equal(t, int64(2*5000), first.Order.TotalPriceCents)
	assert.Len(t, first.Tickets, 2)
	assert.Equal(t, entity.SessionStatusCompleted, first.Session.Status)
	assert.Equal(t, entity.ReservationStatusConverted, first.Reservation.Status)

	// Signatures verify against the shared secret
	for _, ticket := range first.Tickets {
		assert.True(t, utility.VerifyTicketSignature("test-qr-secret", ticket.Code, first.Order.ID, eventID, ticket.QRSig))
	}

	second, err := svc.Confirm(ctx, "user-1", session.ID, PaymentOutcomeSuccess)
	require.NoError(t, err)
	require.NotNil(t, second.Order)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Len(t, second.Tickets, 2)

	var orderCount, ticketCount int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM orders WHERE session_id = $1", session.ID).Scan(&orderCount))
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM tickets WHERE order_id = $1", first.Order.ID).Scan(&ticketCount))
	assert.Equal(t, 1, orderCount)
	assert.Equal(t, 2, ticketCount)
}

// TestConfirm_Fail cancels the hold and fails the session
func TestConfirm_Fail(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)
	reservationID := repository.CreateTestReservation(t, db, eventID, tierID, "user-1", 1,
		entity.ReservationStatusActive, time.Now().Add(3*time.Minute))

	svc := newTestCheckoutService(t, db)
	ctx := context.Background()

	session, _, err := svc.CreateSession(ctx, "user-1", reservationID, "k-fail")
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, "user-1", session.ID, PaymentOutcomeFail)
	require.NoError(t, err)
	assert.Nil(t, result.Order)
	assert.Empty(t, result.Tickets)
	assert.Equal(t, entity.SessionStatusFailed, result.Session.Status)
	assert.Equal(t, entity.ReservationStatusCanceled, result.Reservation.Status)

	var orderCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&orderCount))
	assert.Equal(t, 0, orderCount)
}

// TestConfirm_ExpiredReservation drives both records to their terminal
// failure states and creates nothing.
func TestConfirm_ExpiredReservation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)
	reservationID := repository.CreateTestReservation(t, db, eventID, tierID, "user-1", 1,
		entity.ReservationStatusActive, time.Now().Add(3*time.Minute))

	svc := newTestCheckoutService(t, db)
	ctx := context.Background()

	session, _, err := svc.CreateSession(ctx, "user-1", reservationID, "k-stale")
	require.NoError(t, err)

	// Walk the deadline back past now before confirming
	_, err = db.Exec("UPDATE reservations SET expires_at = $1 WHERE id = $2",
		time.Now().Add(-time.Minute), reservationID)
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, "user-1", session.ID, PaymentOutcomeSuccess)
	assert.ErrorIs(t, err, ErrReservationInvalid)

	var sessionStatus, reservationStatus string
	require.NoError(t, db.QueryRow(
		"SELECT status FROM checkout_sessions WHERE id = $1", session.ID).Scan(&sessionStatus))
	require.NoError(t, db.QueryRow(
		"SELECT status FROM reservations WHERE id = $1", reservationID).Scan(&reservationStatus))
	assert.Equal(t, entity.SessionStatusExpired, sessionStatus)
	assert.Equal(t, entity.ReservationStatusExpired, reservationStatus)

	var orderCount, ticketCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&orderCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tickets").Scan(&ticketCount))
	assert.Equal(t, 0, orderCount)
	assert.Equal(t, 0, ticketCount)
}

// TestConfirm_WrongUser hides sessions from other identities
func TestConfirm_WrongUser(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := repository.SetupTestDB(t)
	defer repository.CleanupTestDB(t, db)
	repository.TruncateTables(t, db, "tickets", "orders", "checkout_sessions", "reservations", "tiers", "events")

	eventID := repository.CreateTestEvent(t, db)
	tierID := repository.CreateTestTier(t, db, eventID, 100, 6)
	reservationID := repository.CreateTestReservation(t, db, eventID, tierID, "user-1", 1,
		entity.ReservationStatusActive, time.Now().Add(3*time.Minute))

	svc := newTestCheckoutService(t, db)
	ctx := context.Background()

	session, _, err := svc.CreateSession(ctx, "user-1", reservationID, "k-owner")
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, "user-2", session.ID, PaymentOutcomeSuccess)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
