//go:build integration

package bucket

import (
	"context"
	"testing"

	"companion/pkg/testutil/containers"
)

func TestRedisBucketStore(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	runBucketStoreContract(t, func(t *testing.T) bucketStore {
		prefix := "test:" + t.Name() + ":"
		t.Cleanup(func() {
			_ = rc.FlushPrefix(context.Background(), prefix)
		})
		return NewRedis(rc.Client, WithKeyPrefix(prefix))
	})
}
