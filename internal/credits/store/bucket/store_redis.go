package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"companion/internal/credits/models"
	id "companion/pkg/domain"
	"companion/pkg/platform/sentinel"
	"companion/pkg/requestcontext"
)

// RedisBucketStore keeps each user's buckets in one hash:
//
//	<prefix><user_id> -> {
//	  rollover, monthly_allowance, top_up: credits remaining
//	  <kind>:period_end, <kind>:updated_at: unix milliseconds
//	}
//
// Every mutation is a Lua script, so it is atomic with respect to other
// replicas sharing the same Redis.
type RedisBucketStore struct {
	client    goredis.Cmdable
	keyPrefix string
}

// RedisOption configures RedisBucketStore.
type RedisOption func(*RedisBucketStore)

// WithKeyPrefix sets the hash key prefix (default "companion:credits:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisBucketStore) { s.keyPrefix = prefix }
}

// NewRedis constructs a Redis-backed bucket store.
func NewRedis(client goredis.Cmdable, opts ...RedisOption) *RedisBucketStore {
	s := &RedisBucketStore{client: client, keyPrefix: "companion:credits:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisBucketStore) userKey(userID id.UserID) string {
	return s.keyPrefix + userID.String()
}

// decrementScript removes one credit if at least one remains.
// KEYS[1] = user hash
// ARGV[1] = kind
// ARGV[2] = now (unix ms)
// Returns the new balance, or -1 when the bucket is absent or empty.
var decrementScript = goredis.NewScript(`
local current = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
if current <= 0 then
    return -1
end
local remaining = redis.call("HINCRBY", KEYS[1], ARGV[1], -1)
redis.call("HSET", KEYS[1], ARGV[1] .. ":updated_at", ARGV[2])
return remaining
`)

// addScript adds credits, creating the bucket if absent.
// KEYS[1] = user hash
// ARGV[1] = kind
// ARGV[2] = amount
// ARGV[3] = period end (unix ms) or "" to keep the current one
// ARGV[4] = now (unix ms)
var addScript = goredis.NewScript(`
local total = redis.call("HINCRBY", KEYS[1], ARGV[1], tonumber(ARGV[2]))
if ARGV[3] ~= "" then
    redis.call("HSET", KEYS[1], ARGV[1] .. ":period_end", ARGV[3])
end
redis.call("HSET", KEYS[1], ARGV[1] .. ":updated_at", ARGV[4])
return total
`)

// renewScript folds the monthly remainder into rollover and resets monthly.
// KEYS[1] = user hash
// ARGV[1] = allowance
// ARGV[2] = period end (unix ms)
// ARGV[3] = now (unix ms)
// Returns the number of credits rolled over.
var renewScript = goredis.NewScript(`
local unused = tonumber(redis.call("HGET", KEYS[1], "monthly_allowance") or "0")
if unused > 0 then
    redis.call("HINCRBY", KEYS[1], "rollover", unused)
    redis.call("HSET", KEYS[1], "rollover:updated_at", ARGV[3])
end
redis.call("HSET", KEYS[1],
    "monthly_allowance", ARGV[1],
    "monthly_allowance:period_end", ARGV[2],
    "monthly_allowance:updated_at", ARGV[3])
return unused
`)

func (s *RedisBucketStore) ListBuckets(ctx context.Context, userID id.UserID) ([]models.CreditBucket, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list buckets: %w", err)
	}

	out := make([]models.CreditBucket, 0, len(models.AllKinds))
	for _, kind := range models.AllKinds {
		raw, ok := fields[string(kind)]
		if !ok {
			continue
		}
		credits, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("redis bucket %s: parse balance: %w", kind, err)
		}
		bucket := models.CreditBucket{
			UserID:           userID,
			Kind:             kind,
			CreditsRemaining: credits,
			PeriodEnd:        parseMillis(fields[string(kind)+":period_end"]),
		}
		if updated := parseMillis(fields[string(kind)+":updated_at"]); updated != nil {
			bucket.UpdatedAt = *updated
		}
		if kind == models.KindTopUp {
			bucket.PeriodEnd = nil
		}
		out = append(out, bucket)
	}
	return out, nil
}

func (s *RedisBucketStore) DecrementOne(ctx context.Context, userID id.UserID, kind models.CreditKind) (int, error) {
	remaining, err := decrementScript.Run(ctx, s.client,
		[]string{s.userKey(userID)},
		string(kind), requestcontext.Now(ctx).UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("redis decrement: %w", err)
	}
	if remaining < 0 {
		return 0, sentinel.ErrConflict
	}
	return remaining, nil
}

func (s *RedisBucketStore) AddCredits(ctx context.Context, userID id.UserID, kind models.CreditKind, amount int, periodEnd *time.Time) (*models.CreditBucket, error) {
	if amount <= 0 {
		return nil, sentinel.ErrInvalidInput
	}
	endArg := ""
	if periodEnd != nil && kind != models.KindTopUp {
		endArg = strconv.FormatInt(periodEnd.UnixMilli(), 10)
	}
	now := requestcontext.Now(ctx)

	if _, err := addScript.Run(ctx, s.client,
		[]string{s.userKey(userID)},
		string(kind), amount, endArg, now.UnixMilli(),
	).Int(); err != nil {
		return nil, fmt.Errorf("redis add credits: %w", err)
	}

	buckets, err := s.ListBuckets(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range buckets {
		if buckets[i].Kind == kind {
			return &buckets[i], nil
		}
	}
	return nil, fmt.Errorf("redis add credits: bucket %s missing after write", kind)
}

func (s *RedisBucketStore) RenewAllowance(ctx context.Context, userID id.UserID, allowance int, periodEnd time.Time) (int, error) {
	rolledOver, err := renewScript.Run(ctx, s.client,
		[]string{s.userKey(userID)},
		allowance, periodEnd.UnixMilli(), requestcontext.Now(ctx).UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("redis renew allowance: %w", err)
	}
	return rolledOver, nil
}

func parseMillis(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
