package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/internal/credits/models"
	id "companion/pkg/domain"
	"companion/pkg/platform/sentinel"
)

type subscriptionStore interface {
	FindByUserID(ctx context.Context, userID id.UserID) (*models.Subscription, error)
	Upsert(ctx context.Context, sub *models.Subscription) error
	ListPro(ctx context.Context, after id.UserID, limit int) ([]models.Subscription, error)
}

func runSubscriptionStoreContract(t *testing.T, newStore func(t *testing.T) subscriptionStore) {
	ctx := context.Background()
	periodEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("missing subscription is not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.FindByUserID(ctx, id.UserID(uuid.New()))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("upsert then downgrade keeps period end", func(t *testing.T) {
		store := newStore(t)
		user := id.UserID(uuid.New())
		require.NoError(t, store.Upsert(ctx, &models.Subscription{UserID: user, Tier: models.TierPro, CurrentPeriodEnd: periodEnd}))

		sub, err := store.FindByUserID(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, models.TierPro, sub.Tier)
		assert.True(t, periodEnd.Equal(sub.CurrentPeriodEnd))

		require.NoError(t, store.Upsert(ctx, &models.Subscription{UserID: user, Tier: models.TierFree}))
		sub, err = store.FindByUserID(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, models.TierFree, sub.Tier)
		assert.True(t, periodEnd.Equal(sub.CurrentPeriodEnd))
	})

	t.Run("upsert rejects invalid tier", func(t *testing.T) {
		store := newStore(t)
		err := store.Upsert(ctx, &models.Subscription{UserID: id.UserID(uuid.New()), Tier: "gold"})
		assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
	})

	t.Run("list pro pages in user id order", func(t *testing.T) {
		store := newStore(t)
		for range 5 {
			require.NoError(t, store.Upsert(ctx, &models.Subscription{UserID: id.UserID(uuid.New()), Tier: models.TierPro, CurrentPeriodEnd: periodEnd}))
		}
		require.NoError(t, store.Upsert(ctx, &models.Subscription{UserID: id.UserID(uuid.New()), Tier: models.TierFree}))

		var seen []models.Subscription
		after := id.UserID{}
		for {
			page, err := store.ListPro(ctx, after, 2)
			require.NoError(t, err)
			if len(page) == 0 {
				break
			}
			seen = append(seen, page...)
			after = page[len(page)-1].UserID
		}

		require.Len(t, seen, 5)
		for i := 1; i < len(seen); i++ {
			assert.Negative(t, compareUserIDs(seen[i-1].UserID, seen[i].UserID))
		}
	})
}
