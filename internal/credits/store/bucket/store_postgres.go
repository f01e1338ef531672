package bucket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"companion/internal/credits/models"
	id "companion/pkg/domain"
	"companion/pkg/platform/sentinel"
	txcontext "companion/pkg/platform/tx"
	"companion/pkg/requestcontext"
)

// PostgresBucketStore persists balances in the credit_buckets table. Every
// mutation is a single guarded statement or a short row-locking transaction,
// so correctness holds across any number of replicas.
type PostgresBucketStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed bucket store.
func NewPostgres(db *sql.DB) *PostgresBucketStore {
	return &PostgresBucketStore{db: db}
}

func (s *PostgresBucketStore) ListBuckets(ctx context.Context, userID id.UserID) ([]models.CreditBucket, error) {
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx, `
		SELECT kind, credits_remaining, period_end, updated_at
		FROM credit_buckets
		WHERE user_id = $1
	`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list credit buckets: %w", err)
	}
	defer rows.Close()

	byKind := make(map[models.CreditKind]models.CreditBucket, len(models.AllKinds))
	for rows.Next() {
		var (
			kind      string
			bucket    = models.CreditBucket{UserID: userID}
			periodEnd sql.NullTime
		)
		if err := rows.Scan(&kind, &bucket.CreditsRemaining, &periodEnd, &bucket.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credit bucket: %w", err)
		}
		bucket.Kind = models.CreditKind(kind)
		if periodEnd.Valid {
			end := periodEnd.Time.UTC()
			bucket.PeriodEnd = &end
		}
		byKind[bucket.Kind] = bucket
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit buckets: %w", err)
	}

	out := make([]models.CreditBucket, 0, len(byKind))
	for _, kind := range models.AllKinds {
		if b, ok := byKind[kind]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// DecrementOne removes one credit only if the row still holds at least one.
// Zero affected rows means a concurrent debit drained it first.
func (s *PostgresBucketStore) DecrementOne(ctx context.Context, userID id.UserID, kind models.CreditKind) (int, error) {
	var remaining int
	err := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, `
		UPDATE credit_buckets
		SET credits_remaining = credits_remaining - 1, updated_at = $3
		WHERE user_id = $1 AND kind = $2 AND credits_remaining > 0
		RETURNING credits_remaining
	`, uuid.UUID(userID), string(kind), requestcontext.Now(ctx)).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("decrement credit bucket: %w", err)
	}
	return remaining, nil
}

func (s *PostgresBucketStore) AddCredits(ctx context.Context, userID id.UserID, kind models.CreditKind, amount int, periodEnd *time.Time) (*models.CreditBucket, error) {
	if amount <= 0 {
		return nil, sentinel.ErrInvalidInput
	}
	var end sql.NullTime
	if periodEnd != nil && kind != models.KindTopUp {
		end = sql.NullTime{Time: periodEnd.UTC(), Valid: true}
	}

	bucket := models.CreditBucket{UserID: userID, Kind: kind}
	var storedEnd sql.NullTime
	err := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO credit_buckets (user_id, kind, credits_remaining, period_end, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, kind) DO UPDATE SET
			credits_remaining = credit_buckets.credits_remaining + EXCLUDED.credits_remaining,
			period_end = COALESCE(EXCLUDED.period_end, credit_buckets.period_end),
			updated_at = EXCLUDED.updated_at
		RETURNING credits_remaining, period_end, updated_at
	`, uuid.UUID(userID), string(kind), amount, end, requestcontext.Now(ctx)).
		Scan(&bucket.CreditsRemaining, &storedEnd, &bucket.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("add credits: %w", err)
	}
	if storedEnd.Valid {
		t := storedEnd.Time.UTC()
		bucket.PeriodEnd = &t
	}
	return &bucket, nil
}

// RenewAllowance folds the monthly remainder into rollover and resets the
// monthly bucket in one transaction. The monthly row is locked first so a
// concurrent debit either lands before the fold or against the fresh allowance.
func (s *PostgresBucketStore) RenewAllowance(ctx context.Context, userID id.UserID, allowance int, periodEnd time.Time) (int, error) {
	var rolledOver int
	err := s.inTx(ctx, func(q txcontext.Querier) error {
		now := requestcontext.Now(ctx)
		uid := uuid.UUID(userID)

		err := q.QueryRowContext(ctx, `
			SELECT credits_remaining FROM credit_buckets
			WHERE user_id = $1 AND kind = $2
			FOR UPDATE
		`, uid, string(models.KindMonthlyAllowance)).Scan(&rolledOver)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock monthly allowance: %w", err)
		}

		if rolledOver > 0 {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO credit_buckets (user_id, kind, credits_remaining, period_end, updated_at)
				VALUES ($1, $2, $3, NULL, $4)
				ON CONFLICT (user_id, kind) DO UPDATE SET
					credits_remaining = credit_buckets.credits_remaining + EXCLUDED.credits_remaining,
					updated_at = EXCLUDED.updated_at
			`, uid, string(models.KindRollover), rolledOver, now); err != nil {
				return fmt.Errorf("fold into rollover: %w", err)
			}
		}

		if _, err := q.ExecContext(ctx, `
			INSERT INTO credit_buckets (user_id, kind, credits_remaining, period_end, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, kind) DO UPDATE SET
				credits_remaining = EXCLUDED.credits_remaining,
				period_end = EXCLUDED.period_end,
				updated_at = EXCLUDED.updated_at
		`, uid, string(models.KindMonthlyAllowance), allowance, periodEnd.UTC(), now); err != nil {
			return fmt.Errorf("reset monthly allowance: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rolledOver, nil
}

// inTx joins the ambient transaction when one is in ctx, else opens its own.
func (s *PostgresBucketStore) inTx(ctx context.Context, fn func(q txcontext.Querier) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin renewal tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit renewal tx: %w", err)
	}
	return nil
}
