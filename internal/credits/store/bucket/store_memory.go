package bucket

import (
	"context"
	"sync"
	"time"

	"companion/internal/credits/models"
	id "companion/pkg/domain"
	"companion/pkg/platform/sentinel"
	platformsync "companion/pkg/platform/sync"
	txcontext "companion/pkg/platform/tx"
	"companion/pkg/requestcontext"
)

// InMemoryBucketStore keeps balances in process memory. Mutations for one
// user are serialized by a sharded lock; different users never contend.
type InMemoryBucketStore struct {
	mu    sync.RWMutex
	users map[id.UserID]map[models.CreditKind]*models.CreditBucket
	locks *platformsync.ShardedMutex
}

// NewInMemoryBucketStore creates an empty store.
func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{
		users: make(map[id.UserID]map[models.CreditKind]*models.CreditBucket),
		locks: platformsync.NewShardedMutex(),
	}
}

// bucketsFor returns the user's bucket map, creating it when create is set.
// Callers must hold the user's shard lock before touching the returned map.
func (s *InMemoryBucketStore) bucketsFor(userID id.UserID, create bool) map[models.CreditKind]*models.CreditBucket {
	s.mu.RLock()
	buckets, ok := s.users[userID]
	s.mu.RUnlock()
	if ok || !create {
		return buckets
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if buckets, ok = s.users[userID]; !ok {
		buckets = make(map[models.CreditKind]*models.CreditBucket)
		s.users[userID] = buckets
	}
	return buckets
}

func (s *InMemoryBucketStore) ListBuckets(_ context.Context, userID id.UserID) ([]models.CreditBucket, error) {
	key := userID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	buckets := s.bucketsFor(userID, false)
	out := make([]models.CreditBucket, 0, len(buckets))
	for _, kind := range models.AllKinds {
		if b, ok := buckets[kind]; ok {
			out = append(out, copyBucket(b))
		}
	}
	return out, nil
}

func (s *InMemoryBucketStore) DecrementOne(ctx context.Context, userID id.UserID, kind models.CreditKind) (int, error) {
	remaining := 0
	err := s.locks.Do(userID.String(), func() error {
		b, ok := s.bucketsFor(userID, false)[kind]
		if !ok || b.CreditsRemaining <= 0 {
			return sentinel.ErrConflict
		}
		b.CreditsRemaining--
		b.UpdatedAt = requestcontext.Now(ctx)
		remaining = b.CreditsRemaining
		return nil
	})
	return remaining, err
}

func (s *InMemoryBucketStore) AddCredits(ctx context.Context, userID id.UserID, kind models.CreditKind, amount int, periodEnd *time.Time) (*models.CreditBucket, error) {
	if amount <= 0 {
		return nil, sentinel.ErrInvalidInput
	}
	var out models.CreditBucket
	err := s.locks.Do(userID.String(), func() error {
		now := requestcontext.Now(ctx)
		buckets := s.bucketsFor(userID, true)
		b, existed := buckets[kind]
		if !existed {
			created, err := models.NewCreditBucket(userID, kind, 0, nil, now)
			if err != nil {
				return err
			}
			b = created
			buckets[kind] = b
		}
		prevEnd := copyPeriodEnd(b.PeriodEnd)
		txcontext.OnRollback(ctx, func() {
			s.removeCredits(userID, kind, amount, prevEnd, !existed)
		})

		b.CreditsRemaining += amount
		if periodEnd != nil && kind != models.KindTopUp {
			end := periodEnd.UTC()
			b.PeriodEnd = &end
		}
		b.UpdatedAt = now
		out = copyBucket(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *InMemoryBucketStore) RenewAllowance(ctx context.Context, userID id.UserID, allowance int, periodEnd time.Time) (int, error) {
	rolledOver := 0
	err := s.locks.Do(userID.String(), func() error {
		now := requestcontext.Now(ctx)
		buckets := s.bucketsFor(userID, true)

		var prevMonthly *models.CreditBucket
		if monthly, ok := buckets[models.KindMonthlyAllowance]; ok {
			rolledOver = monthly.CreditsRemaining
			snapshot := copyBucket(monthly)
			prevMonthly = &snapshot
		}
		_, hadRollover := buckets[models.KindRollover]
		txcontext.OnRollback(ctx, func() {
			s.undoRenew(userID, allowance, rolledOver, prevMonthly, !hadRollover)
		})
		if rolledOver > 0 {
			rollover, ok := buckets[models.KindRollover]
			if !ok {
				rollover = &models.CreditBucket{UserID: userID, Kind: models.KindRollover}
				buckets[models.KindRollover] = rollover
			}
			rollover.CreditsRemaining += rolledOver
			rollover.UpdatedAt = now
		}

		end := periodEnd.UTC()
		buckets[models.KindMonthlyAllowance] = &models.CreditBucket{
			UserID:           userID,
			Kind:             models.KindMonthlyAllowance,
			CreditsRemaining: allowance,
			PeriodEnd:        &end,
			UpdatedAt:        now,
		}
		return nil
	})
	return rolledOver, err
}

// removeCredits reverses an AddCredits. Credits debited since are not
// refunded; the bucket floors at zero.
func (s *InMemoryBucketStore) removeCredits(userID id.UserID, kind models.CreditKind, amount int, prevEnd *time.Time, created bool) {
	s.locks.Do(userID.String(), func() error { //nolint:errcheck // never fails
		buckets := s.bucketsFor(userID, false)
		b, ok := buckets[kind]
		if !ok {
			return nil
		}
		b.CreditsRemaining = max(0, b.CreditsRemaining-amount)
		b.PeriodEnd = prevEnd
		if created && b.CreditsRemaining == 0 {
			delete(buckets, kind)
		}
		return nil
	})
}

// undoRenew reverses a RenewAllowance. Credits debited from the new
// allowance since are taken back out of the restored one.
func (s *InMemoryBucketStore) undoRenew(userID id.UserID, allowance, rolledOver int, prevMonthly *models.CreditBucket, rolloverCreated bool) {
	s.locks.Do(userID.String(), func() error { //nolint:errcheck // never fails
		buckets := s.bucketsFor(userID, false)
		if buckets == nil {
			return nil
		}
		spent := 0
		if monthly, ok := buckets[models.KindMonthlyAllowance]; ok {
			spent = max(0, allowance-monthly.CreditsRemaining)
		}
		if prevMonthly == nil {
			delete(buckets, models.KindMonthlyAllowance)
		} else {
			restored := *prevMonthly
			restored.CreditsRemaining = max(0, restored.CreditsRemaining-spent)
			buckets[models.KindMonthlyAllowance] = &restored
		}

		if rollover, ok := buckets[models.KindRollover]; ok && rolledOver > 0 {
			rollover.CreditsRemaining = max(0, rollover.CreditsRemaining-rolledOver)
			if rolloverCreated && rollover.CreditsRemaining == 0 {
				delete(buckets, models.KindRollover)
			}
		}
		return nil
	})
}

func copyPeriodEnd(end *time.Time) *time.Time {
	if end == nil {
		return nil
	}
	out := *end
	return &out
}

func copyBucket(b *models.CreditBucket) models.CreditBucket {
	out := *b
	if b.PeriodEnd != nil {
		end := *b.PeriodEnd
		out.PeriodEnd = &end
	}
	return out
}
