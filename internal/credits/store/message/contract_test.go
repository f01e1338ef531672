package message

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/internal/credits/models"
	id "companion/pkg/domain"
)

type messageStore interface {
	Record(ctx context.Context, msg *models.ChatMessage) error
	CountUserMessages(ctx context.Context, userID id.UserID, from, to time.Time) (int, error)
}

func runMessageStoreContract(t *testing.T, newStore func(t *testing.T) messageStore) {
	ctx := context.Background()
	dayStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	record := func(t *testing.T, store messageStore, user id.UserID, role models.MessageRole, at time.Time) {
		t.Helper()
		msg, err := models.NewChatMessage(user, role, at)
		require.NoError(t, err)
		require.NoError(t, store.Record(ctx, msg))
	}

	t.Run("counts only user messages inside the half-open window", func(t *testing.T) {
		store := newStore(t)
		user := id.UserID(uuid.New())
		other := id.UserID(uuid.New())

		record(t, store, user, models.RoleUser, dayStart)                     // inclusive start
		record(t, store, user, models.RoleUser, dayStart.Add(12*time.Hour))   // inside
		record(t, store, user, models.RoleAssistant, dayStart.Add(time.Hour)) // wrong role
		record(t, store, user, models.RoleUser, dayStart.Add(-time.Second))   // yesterday
		record(t, store, user, models.RoleUser, dayEnd)                       // exclusive end
		record(t, store, other, models.RoleUser, dayStart.Add(2*time.Hour))   // other user

		count, err := store.CountUserMessages(ctx, user, dayStart, dayEnd)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("unknown user counts zero", func(t *testing.T) {
		store := newStore(t)
		count, err := store.CountUserMessages(ctx, id.UserID(uuid.New()), dayStart, dayEnd)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
