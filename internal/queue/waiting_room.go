package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ticketdrop/backend/internal/utility"
)

var (
	ErrTokenNotFound = errors.New("queue token not found or expired")
)

// WaitingRoomStore keeps the per-event waiting room in Redis:
// a join-ordered sorted set of tokens, per-token records, admission
// grants and the wave cursor. Everything here is reconstructible;
// losing the store sends buyers back through the queue but never
// touches inventory, orders or tickets.
type WaitingRoomStore struct {
	redis    *utility.RedisClient
	tokenTTL time.Duration
	grantTTL time.Duration
}

// NewWaitingRoomStore creates a new waiting room store
func NewWaitingRoomStore(redisClient *utility.RedisClient, tokenTTL, grantTTL time.Duration) *WaitingRoomStore {
	return &WaitingRoomStore{
		redis:    redisClient,
		tokenTTL: tokenTTL,
		grantTTL: grantTTL,
	}
}

func queueKey(eventID string) string {
	return fmt.Sprintf("queue:%s", eventID)
}

func tokenKey(eventID, token string) string {
	return fmt.Sprintf("queue:%s:token:%s", eventID, token)
}

func grantKey(eventID, token string) string {
	return fmt.Sprintf("access:%s:%s", eventID, token)
}

func waveKey(eventID string) string {
	return fmt.Sprintf("wave:%s", eventID)
}

// Join mints a fresh opaque token, records it with the token TTL and
// appends it to the per-event ordered set scored by the join instant.
func (s *WaitingRoomStore) Join(ctx context.Context, eventID, userID string) (string, error) {
	token := uuid.New().String()
	now := time.Now()

	client := s.redis.GetClient()

	pipe := client.TxPipeline()
	pipe.HSet(ctx, tokenKey(eventID, token), "user_id", userID, "joined_at", now.UnixMilli())
	pipe.Expire(ctx, tokenKey(eventID, token), s.tokenTTL)
	pipe.ZAdd(ctx, queueKey(eventID), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: token,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to join waiting room: %w", err)
	}

	return token, nil
}

// TokenRecord loads the user behind a token. Returns ErrTokenNotFound
// when the record has expired or never existed.
func (s *WaitingRoomStore) TokenRecord(ctx context.Context, eventID, token string) (string, error) {
	userID, err := s.redis.GetClient().HGet(ctx, tokenKey(eventID, token), "user_id").Result()
	if err == redis.Nil {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token record: %w", err)
	}
	return userID, nil
}

// Rank returns the 1-indexed position of the token in the join order
// and the current queue cardinality. Members older than the token TTL
// are pruned first, so positions contract when earlier tokens expire
// out of the set; the source behaviour accepts this.
func (s *WaitingRoomStore) Rank(ctx context.Context, eventID, token string) (int64, int64, error) {
	client := s.redis.GetClient()

	cutoff := time.Now().Add(-s.tokenTTL).UnixMilli()
	if err := client.ZRemRangeByScore(ctx, queueKey(eventID), "-inf", fmt.Sprintf("(%d", cutoff)).Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to prune expired tokens: %w", err)
	}

	rank, err := client.ZRank(ctx, queueKey(eventID), token).Result()
	if err == redis.Nil {
		return 0, 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to rank token: %w", err)
	}

	total, err := client.ZCard(ctx, queueKey(eventID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count queue: %w", err)
	}

	return rank + 1, total, nil
}

// waveScript atomically initialises or advances the per-event wave
// cursor. Concurrent status polls race through here; the script is the
// compare-and-set point, losers simply observe the winning cursor.
var waveScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local total = tonumber(ARGV[2])
	local wave_size = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'wave_end', 'last_advance')
	local wave_end = tonumber(state[1])
	local last_advance = tonumber(state[2])

	if wave_end == nil or last_advance == nil then
		wave_end = math.min(total, wave_size)
		last_advance = now_ms
	elseif total > wave_end and (now_ms - last_advance) >= interval_ms then
		wave_end = math.min(total, wave_end + wave_size)
		last_advance = now_ms
	end

	redis.call('HMSET', key, 'wave_end', wave_end, 'last_advance', last_advance)
	redis.call('EXPIRE', key, ttl_seconds)

	return wave_end
`)

// AdvanceWave runs the wave cursor compare-and-set and returns the
// current (possibly just advanced) wave end.
func (s *WaitingRoomStore) AdvanceWave(ctx context.Context, eventID string, total int64, waveSize int, waveInterval time.Duration) (int64, error) {
	result, err := waveScript.Run(ctx, s.redis.GetClient(), []string{waveKey(eventID)},
		time.Now().UnixMilli(),
		total,
		waveSize,
		waveInterval.Milliseconds(),
		int64(s.tokenTTL/time.Second),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to advance wave cursor: %w", err)
	}
	return result, nil
}

// IssueGrant writes the short-lived admission grant for a token
func (s *WaitingRoomStore) IssueGrant(ctx context.Context, eventID, token string) error {
	if err := s.redis.Set(ctx, grantKey(eventID, token), 1, s.grantTTL); err != nil {
		return fmt.Errorf("failed to issue admission grant: %w", err)
	}
	return nil
}

// HasGrant reports whether the token currently holds an admission grant
func (s *WaitingRoomStore) HasGrant(ctx context.Context, eventID, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, grantKey(eventID, token))
	if err != nil {
		return false, fmt.Errorf("failed to check admission grant: %w", err)
	}
	return n > 0, nil
}

// ConsumeGrant removes the grant after it has authorised a reservation
func (s *WaitingRoomStore) ConsumeGrant(ctx context.Context, eventID, token string) error {
	return s.redis.Delete(ctx, grantKey(eventID, token))
}

// Stats reports the queue cardinality and the current wave cursor
// without advancing it. Used by the admin summary.
func (s *WaitingRoomStore) Stats(ctx context.Context, eventID string) (total, waveEnd int64, err error) {
	client := s.redis.GetClient()

	total, err = client.ZCard(ctx, queueKey(eventID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count queue: %w", err)
	}

	waveEnd, err = client.HGet(ctx, waveKey(eventID), "wave_end").Int64()
	if err == redis.Nil {
		return total, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read wave cursor: %w", err)
	}

	return total, waveEnd, nil
}

// Clear drops the ordered set, the wave cursor and all per-token
// records and grants for an event. Administrative reset only.
func (s *WaitingRoomStore) Clear(ctx context.Context, eventID string) error {
	client := s.redis.GetClient()

	if err := client.Del(ctx, queueKey(eventID), waveKey(eventID)).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	for _, pattern := range []string{tokenKey(eventID, "*"), grantKey(eventID, "*")} {
		iter := client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to clear queue keys: %w", err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan queue keys: %w", err)
		}
	}

	return nil
}
