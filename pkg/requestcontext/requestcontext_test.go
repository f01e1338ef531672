package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "companion/pkg/domain"
)

func TestRequestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RequestID(ctx))
	assert.True(t, UserID(ctx).IsNil())

	userID := id.UserID(uuid.New())
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, userID)
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, userID, UserID(ctx))
}

func TestNowUsesPinnedTime(t *testing.T) {
	pinned := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, pinned, Now(WithTime(context.Background(), pinned)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}
