package bucket

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
	"companion/pkg/testutil"
)

type bucketStore interface {
	ListBuckets(ctx context.Context, userID id.UserID) ([]models.CreditBucket, error)
	DecrementOne(ctx context.Context, userID id.UserID, kind models.CreditKind) (int, error)
	AddCredits(ctx context.Context, userID id.UserID, kind models.CreditKind, amount int, periodEnd *time.Time) (*models.CreditBucket, error)
	RenewAllowance(ctx context.Context, userID id.UserID, allowance int, periodEnd time.Time) (int, error)
}

// runBucketStoreContract exercises behavior every backend must share.
func runBucketStoreContract(t *testing.T, newStore func(t *testing.T) bucketStore) {
	ctx := context.Background()
	periodEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	balances := func(t *testing.T, store bucketStore, userID id.UserID) models.Balance {
		t.Helper()
		buckets, err := store.ListBuckets(ctx, userID)
		require.NoError(t, err)
		return models.BalanceOf(buckets)
	}

	t.Run("unknown user has no buckets", func(t *testing.T) {
		store := newStore(t)
		buckets, err := store.ListBuckets(ctx, id.UserID(uuid.New()))
		require.NoError(t, err)
		assert.Empty(t, buckets)
	})

	t.Run("add credits is additive and keeps kind order", func(t *testing.T) {
		store := newStore(t)
		user := id.UserID(uuid.New())

		_, err := store.AddCredits(ctx, user, models.KindTopUp, 5, nil)
		require.NoError(t, err)
		b, err := store.AddCredits(ctx, user, models.KindTopUp, 7, nil)
		require.NoError(t, err)
		assert.Equal(t, 12, b.CreditsRemaining)
		assert.Nil(t, b.PeriodEnd)

		m, err := store.AddCredits(ctx, user, models.KindMonthlyAllowance, 300, &periodEnd)
		require.NoError(t, err)
		require.NotNil(t, m.PeriodEnd)
		assert.True(t, periodEnd.Equal(*m.PeriodEnd))

		buckets, err := store.ListBuckets(ctx, user)
		require.NoError(t, err)
		require.Len(t, buckets, 2)
		assert.Equal(t, models.KindMonthlyAllowance, buckets[0].Kind)
		assert.Equal(t, models.KindTopUp, buckets[1].Kind)
	})

	t.Run("add credits rejects non-positive amounts", func(t *testing.T) {
		store := newStore(t)
		_, err := store.AddCredits(ctx, id.UserID(uuid.New()), models.KindTopUp, 0, nil)
		assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
	})

	t.Run("decrement is guarded at zero", func(t *testing.T) {
		store := newStore(t)
		user := id.UserID(uuid.New())

		_, err := store.DecrementOne(ctx, user, models.KindRollover)
		assert.ErrorIs(t, err, sentinel.ErrConflict, "absent bucket")

		_, err = store.AddCredits(ctx, user, models.KindRollover, 1, nil)
		require.NoError(t, err)
		remaining, err := store.DecrementOne(ctx, user, models.KindRollover)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)

		_, err = store.DecrementOne(ctx, user, models.KindRollover)
		assert.ErrorIs(t, err, sentinel.ErrConflict, "drained bucket")
		assert.Equal(t, 0, balances(t, store, user).Rollover)
	})

	t.Run("renew folds unused allowance into rollover", func(t *testing.T) {
		store := newStore(t)
		user := id.UserID(uuid.New())
		_, err := store.AddCredits(ctx, user, models.KindRollover, 10, nil)
		require.NoError(t, err)
		_, err = store.AddCredits(ctx, user, models.KindMonthlyAllowance, 40, &periodEnd)
		require.NoError(t, err)
		_, err = store.AddCredits(ctx, user, models.KindTopUp, 3, nil)
		require.NoError(t, err)

		next := periodEnd.AddDate(0, 1, 0)
		rolled, err := store.RenewAllowance(ctx, user, 300, next)
		require.NoError(t, err)
		assert.Equal(t, 40, rolled)

		b := balances(t, store, user)
		assert.Equal(t, 50, b.Rollover)
		assert.Equal(t, 300, b.MonthlyAllowance)
		assert.Equal(t, 3, b.TopUp)
		require.NotNil(t, b.RenewalDate)
		assert.True(t, next.Equal(*b.RenewalDate))
	})

	t.Run("renew without prior allowance creates it", func(t *testing.T) {
		store := newStore(t)
		user := id.UserID(uuid.New())

		rolled, err := store.RenewAllowance(ctx, user, 300, periodEnd)
		require.NoError(t, err)
		assert.Equal(t, 0, rolled)

		b := balances(t, store, user)
		assert.Equal(t, 0, b.Rollover)
		assert.Equal(t, 300, b.MonthlyAllowance)
	})

	t.Run("concurrent decrements never overdraw", func(t *testing.T) {
		store := newStore(t)
		user := id.UserID(uuid.New())
		_, err := store.AddCredits(ctx, user, models.KindTopUp, 5, nil)
		require.NoError(t, err)

		result := testutil.RunConcurrent(20, func(int) error {
			_, err := store.DecrementOne(ctx, user, models.KindTopUp)
			return err
		})

		assert.Equal(t, int32(5), result.Successes)
		assert.Equal(t, int32(15), result.Conflicts)
		assert.Equal(t, 0, balances(t, store, user).TopUp)
	})
}
