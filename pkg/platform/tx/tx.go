// Package tx carries an in-flight *sql.Tx through a context so stores invoked
// inside a RunInTx callback join the caller's transaction.
package tx

import (
	"context"
	"database/sql"
	"sync"
)

type contextKeyTx struct{}

// WithTx returns a context carrying the transaction.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, contextKeyTx{}, tx)
}

// From returns the transaction stored in ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(contextKeyTx{}).(*sql.Tx)
	return tx, ok && tx != nil
}

// Querier is the subset of *sql.DB and *sql.Tx used by stores.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QuerierFor returns the ambient transaction when present, otherwise db.
func QuerierFor(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

type contextKeyUndo struct{}

// UndoLog collects compensations for stores that cannot roll back natively,
// such as in-memory stores mutated inside a RunInTx callback.
type UndoLog struct {
	mu  sync.Mutex
	fns []func()
}

// WithUndoLog returns a context carrying a fresh UndoLog.
func WithUndoLog(ctx context.Context) (context.Context, *UndoLog) {
	log := &UndoLog{}
	return context.WithValue(ctx, contextKeyUndo{}, log), log
}

// OnRollback registers fn to run if the surrounding unit of work fails.
// It is a no-op when ctx carries no UndoLog.
func OnRollback(ctx context.Context, fn func()) {
	log, ok := ctx.Value(contextKeyUndo{}).(*UndoLog)
	if !ok || log == nil {
		return
	}
	log.mu.Lock()
	log.fns = append(log.fns, fn)
	log.mu.Unlock()
}

// Rollback runs registered compensations in reverse order, once.
func (l *UndoLog) Rollback() {
	l.mu.Lock()
	fns := l.fns
	l.fns = nil
	l.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
