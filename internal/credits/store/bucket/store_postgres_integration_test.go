//go:build integration

package bucket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"companion/pkg/testutil/containers"
)

func TestPostgresBucketStore(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	runBucketStoreContract(t, func(t *testing.T) bucketStore {
		require.NoError(t, pg.TruncateLedgerTables(context.Background()))
		return NewPostgres(pg.DB)
	})
}
