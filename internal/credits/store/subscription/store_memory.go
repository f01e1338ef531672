package subscription

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"companion/internal/credits/models"
	id "companion/pkg/domain"
	"companion/pkg/platform/sentinel"
	txcontext "companion/pkg/platform/tx"
)

// InMemorySubscriptionStore mirrors billing subscriptions in process memory.
type InMemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[id.UserID]models.Subscription
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{subs: make(map[id.UserID]models.Subscription)}
}

func (s *InMemorySubscriptionStore) FindByUserID(_ context.Context, userID id.UserID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &sub, nil
}

// Upsert stores sub. Inside a unit of work the previous row is restored if
// the work fails.
func (s *InMemorySubscriptionStore) Upsert(ctx context.Context, sub *models.Subscription) error {
	if sub == nil || sub.UserID.IsNil() || !sub.Tier.IsValid() {
		return sentinel.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *sub
	prev, existed := s.subs[sub.UserID]
	if existed && next.CurrentPeriodEnd.IsZero() {
		next.CurrentPeriodEnd = prev.CurrentPeriodEnd
	}
	s.subs[sub.UserID] = next

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.subs[sub.UserID] = prev
		} else {
			delete(s.subs, sub.UserID)
		}
	})
	return nil
}

// ListPro returns up to limit pro subscriptions with user IDs greater than
// after, ordered by user ID. Pass the nil UserID to start from the beginning.
func (s *InMemorySubscriptionStore) ListPro(_ context.Context, after id.UserID, limit int) ([]models.Subscription, error) {
	s.mu.RLock()
	out := make([]models.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.Tier != models.TierPro {
			continue
		}
		if compareUserIDs(sub.UserID, after) <= 0 {
			continue
		}
		out = append(out, sub)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.Subscription) int {
		return compareUserIDs(a.UserID, b.UserID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// compareUserIDs orders IDs bytewise, which matches Postgres uuid ordering.
func compareUserIDs(a, b id.UserID) int {
	ua, ub := uuid.UUID(a), uuid.UUID(b)
	return bytes.Compare(ua[:], ub[:])
}
