/*
tx.go - Scoped transactions and the transactional writer

PURPOSE:
  Every mutating operation in the system runs inside a scoped transaction:
  begin, statements, commit on full success, rollback on any failure. This
  file provides that scoping once, so the Store engine and the domain
  packages (ledger posting, order transitions) share one mechanism.

RE-ENTRANCY:
  A unit of work that calls another transactional operation must NOT open a
  nested transaction. The ambient transaction travels in the context: when
  Run (or a Store write) finds one already present, it joins it and leaves
  commit/rollback to the outermost owner.

GUARANTEED RELEASE:
  The deferred Rollback is a no-op after a successful Commit, so every exit
  path - error, panic, success - releases the transaction.

USAGE:
  w := generic.NewWriter(db)
  err := w.Run(ctx, func(ctx context.Context) error {
      if _, err := movements.Save(ctx, m); err != nil {
          return err // whole unit rolls back
      }
      _, err := accounts.Update(ctx, acct)
      return err
  })

SEE ALSO:
  - store.go: Store writes route through the same scoping
  - finance/ledger.go: Multi-step postings built on Run
*/
package generic

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// withTx stashes the ambient transaction in the context.
func withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom returns the ambient transaction, or nil when the context carries
// none.
func TxFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// QuerierFrom resolves the statement target for the current call: the
// ambient transaction when present, the raw handle otherwise.
func QuerierFrom(ctx context.Context, db *sql.DB) Querier {
	if tx := TxFrom(ctx); tx != nil {
		return tx
	}
	return db
}

// =============================================================================
// WRITER - composes multiple store operations into one atomic unit
// =============================================================================

// Writer runs units of work inside a scoped transaction.
type Writer struct {
	DB *sql.DB
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{DB: db}
}

// Run executes fn inside a transaction. All statements issued through the
// passed context share it. If the incoming context already carries a
// transaction, fn joins that one instead of nesting.
func (w *Writer) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}
	return nil
}
