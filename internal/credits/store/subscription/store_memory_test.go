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
	txcontext "companion/pkg/platform/tx"
)

func TestInMemorySubscriptionStore(t *testing.T) {
	runSubscriptionStoreContract(t, func(*testing.T) subscriptionStore {
		return NewInMemorySubscriptionStore()
	})
}

func TestInMemorySubscriptionStore_RollbackRestoresPrevious(t *testing.T) {
	store := NewInMemorySubscriptionStore()
	user := id.UserID(uuid.New())
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(context.Background(), &models.Subscription{
		UserID: user, Tier: models.TierFree, CurrentPeriodEnd: end,
	}))

	ctx, undo := txcontext.WithUndoLog(context.Background())
	require.NoError(t, store.Upsert(ctx, &models.Subscription{
		UserID: user, Tier: models.TierPro, CurrentPeriodEnd: end.AddDate(0, 1, 0),
	}))
	undo.Rollback()

	sub, err := store.FindByUserID(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, sub.Tier)
	assert.True(t, end.Equal(sub.CurrentPeriodEnd))
}

func TestInMemorySubscriptionStore_RollbackRemovesNew(t *testing.T) {
	store := NewInMemorySubscriptionStore()
	user := id.UserID(uuid.New())

	ctx, undo := txcontext.WithUndoLog(context.Background())
	require.NoError(t, store.Upsert(ctx, &models.Subscription{UserID: user, Tier: models.TierPro}))
	undo.Rollback()

	_, err := store.FindByUserID(context.Background(), user)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
