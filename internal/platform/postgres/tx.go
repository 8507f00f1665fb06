package postgres

import (
	"context"
	"database/sql"
	"time"

	dErrors "dynforms/pkg/domain-errors"
	txcontext "dynforms/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// TxManager runs callbacks inside a single *sql.Tx carried by context.
type TxManager struct {
	db      *sql.DB
	timeout time.Duration
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db, timeout: defaultTxTimeout}
}

// WithTimeout overrides the deadline applied when ctx has none.
func (m *TxManager) WithTimeout(d time.Duration) *TxManager {
	m.timeout = d
	return m
}

func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
