package main

import (
	"context"
	"fmt"
	"log/slog"

	"companion/internal/credits/handler"
	"companion/internal/credits/service/fulfillment"
	"companion/internal/credits/service/ledger"
	"companion/internal/credits/service/quota"
	"companion/internal/credits/store/bucket"
	"companion/internal/credits/store/idempotency"
	"companion/internal/credits/store/message"
	"companion/internal/credits/store/subscription"
	"companion/internal/credits/workers/renewal"
	"companion/internal/platform/config"
	"companion/internal/platform/database"
	"companion/internal/platform/health"
	"companion/internal/platform/redis"
)

type messageStore interface {
	quota.MessageCounter
	handler.MessageRecorder
}

type subscriptionStore interface {
	quota.SubscriptionReader
	fulfillment.SubscriptionWriter
	renewal.SubscriptionLister
}

// ledgerStores is the storage selected by LEDGER_BACKEND.
type ledgerStores struct {
	buckets       ledger.Store
	messages      messageStore
	subscriptions subscriptionStore
	keys          fulfillment.KeyStore
	tx            fulfillment.StoreTx // nil selects the in-memory unit of work

	pool  *database.Pool
	redis *redis.Client
}

// openStores connects the configured backend. Buckets live in Redis only for
// LEDGER_BACKEND=redis; everything else goes to Postgres whenever
// DATABASE_URL is set, and to process memory otherwise.
func openStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*ledgerStores, error) {
	s := &ledgerStores{}

	if cfg.DatabaseURL != "" && cfg.LedgerBackend != config.BackendMemory {
		pool, err := database.New(ctx, database.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.pool = pool
		db := pool.DB()
		s.buckets = bucket.NewPostgres(db)
		s.messages = message.NewPostgres(db)
		s.subscriptions = subscription.NewPostgres(db)
		s.keys = idempotency.NewPostgres(db)
		s.tx = newLedgerPostgresTx(db)
		log.Info("postgres ledger storage connected")
	} else {
		s.buckets = bucket.NewInMemoryBucketStore()
		s.messages = message.NewInMemoryMessageStore()
		s.subscriptions = subscription.NewInMemorySubscriptionStore()
		s.keys = idempotency.NewInMemoryKeyStore()
		log.Warn("ledger state is held in process memory and is lost on restart")
	}

	if cfg.LedgerBackend == config.BackendRedis {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redis = client
		s.buckets = bucket.NewRedis(client)
		log.Info("redis bucket storage connected")
	}

	return s, nil
}

func (s *ledgerStores) registerHealthChecks(h *health.Handler) {
	if s.pool != nil {
		h.RegisterCheck("postgres", s.pool.Health)
	}
	if s.redis != nil {
		h.RegisterCheck("redis", s.redis.Health)
	}
}

func (s *ledgerStores) Close() {
	if s.redis != nil {
		_ = s.redis.Close() //nolint:errcheck // shutdown path
	}
	if s.pool != nil {
		_ = s.pool.Close() //nolint:errcheck // shutdown path
	}
}
