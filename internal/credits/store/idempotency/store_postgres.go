package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"companion/pkg/platform/sentinel"
	txcontext "companion/pkg/platform/tx"
	"companion/pkg/requestcontext"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresKeyStore claims keys in ledger_idempotency_keys. Run Claim inside
// the same transaction as the ledger mutation it guards, so a failed mutation
// rolls the claim back with it.
type PostgresKeyStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresKeyStore {
	return &PostgresKeyStore{db: db}
}

func (s *PostgresKeyStore) Claim(ctx context.Context, key string) error {
	if key == "" {
		return sentinel.ErrInvalidInput
	}
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO ledger_idempotency_keys (key, claimed_at)
		VALUES ($1, $2)
	`, key, requestcontext.Now(ctx))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	return nil
}
