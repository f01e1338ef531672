//go:build integration

package idempotency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/pkg/platform/sentinel"
	txcontext "companion/pkg/platform/tx"
	"companion/pkg/testutil/containers"
)

func TestPostgresKeyStore(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()
	require.NoError(t, pg.TruncateLedgerTables(ctx))
	store := NewPostgres(pg.DB)

	t.Run("duplicate claim maps unique violation", func(t *testing.T) {
		require.NoError(t, store.Claim(ctx, "top_up:pi_1"))
		assert.ErrorIs(t, store.Claim(ctx, "top_up:pi_1"), sentinel.ErrAlreadyUsed)
	})

	t.Run("claim inside rolled back tx is released", func(t *testing.T) {
		tx, err := pg.DB.BeginTx(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, store.Claim(txcontext.WithTx(ctx, tx), "renewal:u:1"))
		require.NoError(t, tx.Rollback())

		assert.NoError(t, store.Claim(ctx, "renewal:u:1"))
	})
}
