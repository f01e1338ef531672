package message

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"companion/internal/credits/models"
	id "companion/pkg/domain"
	"companion/pkg/platform/sentinel"
	txcontext "companion/pkg/platform/tx"
)

// PostgresMessageStore reads and appends chat_messages rows.
type PostgresMessageStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresMessageStore {
	return &PostgresMessageStore{db: db}
}

func (s *PostgresMessageStore) Record(ctx context.Context, msg *models.ChatMessage) error {
	if msg == nil {
		return sentinel.ErrInvalidInput
	}
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO chat_messages (id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`, msg.ID, uuid.UUID(msg.UserID), string(msg.Role), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("record chat message: %w", err)
	}
	return nil
}

// CountUserMessages counts role=user messages created in [from, to). Served
// by the (user_id, role, created_at) index.
func (s *PostgresMessageStore) CountUserMessages(ctx context.Context, userID id.UserID, from, to time.Time) (int, error) {
	var count int
	err := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_messages
		WHERE user_id = $1 AND role = $2 AND created_at >= $3 AND created_at < $4
	`, uuid.UUID(userID), string(models.RoleUser), from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return count, nil
}
