package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"companion/internal/credits/models"
	id "companion/pkg/domain"
	"companion/pkg/platform/sentinel"
	txcontext "companion/pkg/platform/tx"
	"companion/pkg/requestcontext"
)

// PostgresSubscriptionStore reads the subscriptions table written by billing
// deliveries.
type PostgresSubscriptionStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresSubscriptionStore {
	return &PostgresSubscriptionStore{db: db}
}

func (s *PostgresSubscriptionStore) FindByUserID(ctx context.Context, userID id.UserID) (*models.Subscription, error) {
	sub := models.Subscription{UserID: userID}
	var (
		tier      string
		periodEnd sql.NullTime
	)
	err := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT tier, current_period_end, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`, uuid.UUID(userID)).Scan(&tier, &periodEnd, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	sub.Tier = models.Tier(tier)
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = periodEnd.Time.UTC()
	}
	return &sub, nil
}

func (s *PostgresSubscriptionStore) Upsert(ctx context.Context, sub *models.Subscription) error {
	if sub == nil || sub.UserID.IsNil() || !sub.Tier.IsValid() {
		return sentinel.ErrInvalidInput
	}
	var periodEnd sql.NullTime
	if !sub.CurrentPeriodEnd.IsZero() {
		periodEnd = sql.NullTime{Time: sub.CurrentPeriodEnd.UTC(), Valid: true}
	}
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, tier, current_period_end, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			current_period_end = COALESCE(EXCLUDED.current_period_end, subscriptions.current_period_end),
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(sub.UserID), string(sub.Tier), periodEnd, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *PostgresSubscriptionStore) ListPro(ctx context.Context, after id.UserID, limit int) ([]models.Subscription, error) {
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx, `
		SELECT user_id, current_period_end, updated_at
		FROM subscriptions
		WHERE tier = $1 AND user_id > $2
		ORDER BY user_id
		LIMIT $3
	`, string(models.TierPro), uuid.UUID(after), limit)
	if err != nil {
		return nil, fmt.Errorf("list pro subscriptions: %w", err)
	}
	defer rows.Close()

	var out []models.Subscription
	for rows.Next() {
		var (
			uid       uuid.UUID
			periodEnd sql.NullTime
			sub       = models.Subscription{Tier: models.TierPro}
		)
		if err := rows.Scan(&uid, &periodEnd, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.UserID = id.UserID(uid)
		if periodEnd.Valid {
			sub.CurrentPeriodEnd = periodEnd.Time.UTC()
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}
