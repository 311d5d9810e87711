package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ticketdrop/backend/internal/queue"
	"github.com/ticketdrop/backend/internal/utility"
)

// setupTestRedis connects to the test Redis instance.
// Uses TEST_REDIS_ADDR or falls back to localhost.
func setupTestRedis(t *testing.T) *utility.RedisClient {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
		t.Logf("TEST_REDIS_ADDR not set, using default: %s", addr)
	}

	client, err := utility.NewRedisClient(addr, os.Getenv("TEST_REDIS_PASSWORD"), 1)
	if err != nil {
		t.Fatalf("Failed to connect to test Redis: %v\nMake sure Redis is running and TEST_REDIS_ADDR is set", err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

// setupWaitingRoom builds a waiting-room store with short test TTLs and
// admits userID into the event, returning the granted token.
func setupWaitingRoom(t *testing.T, redisClient *utility.RedisClient, eventID, userID string) (*queue.WaitingRoomStore, string) {
	t.Helper()

	store := queue.NewWaitingRoomStore(redisClient, time.Hour, 3*time.Minute)

	ctx := context.Background()
	token, err := store.Join(ctx, eventID, userID)
	if err != nil {
		t.Fatalf("Failed to join waiting room: %v", err)
	}
	if err := store.IssueGrant(ctx, eventID, token); err != nil {
		t.Fatalf("Failed to issue admission grant: %v", err)
	}

	t.Cleanup(func() { store.Clear(context.Background(), eventID) })
	return store, token
}
