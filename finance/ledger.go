/*
ledger.go - Atomic movement posting and balance reconciliation

PURPOSE:
  The Ledger is the ONLY path that changes an account balance. Post writes
  the movement row and updates the stored balance inside one scoped
  transaction: they commit together or not at all, so balance and movement
  history can never diverge.

CRITICAL INVARIANTS:
  1. balance(account) == sum of signed amounts of committed movements
  2. Movements are immutable: corrections are offsetting posts, not edits
  3. A rejected post leaves both tables untouched

OVERDRAFT POLICY:
  A debit that would drive the balance negative is rejected unless the
  account's allow_overdraft flag is set. Default: disallow.

AUDIT:
  BalanceAsOf recomputes the balance from movement history, independent of
  the stored value. CheckConsistency compares the two and flags drift; the
  stored balance is a cache, the movement sum is the source of truth.

SEE ALSO:
  - types.go: SocietyAccount, Movement, descriptors
  - audit.go: Persisted consistency-check runs
  - generic/tx.go: The writer providing the transaction scope
*/
package finance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// ErrInsufficientFunds is returned when a debit would drive the balance
// negative on an account that disallows overdraft.
var ErrInsufficientFunds = errors.New("insufficient funds")

// =============================================================================
// LEDGER
// =============================================================================

// Ledger posts movements and reconciles account balances.
type Ledger struct {
	db        *sql.DB
	writer    *generic.Writer
	accounts  *generic.Store[SocietyAccount, int64]
	movements *generic.Store[Movement, int64]

	// now is swappable for tests; movements are stamped server-side.
	now func() time.Time
}

func NewLedger(db *sql.DB) *Ledger {
	return NewLedgerWithClock(db, func() time.Time { return time.Now().UTC() })
}

// NewLedgerWithClock builds a ledger with a controllable clock. Movements
// are always stamped server-side from this clock.
func NewLedgerWithClock(db *sql.DB, now func() time.Time) *Ledger {
	return &Ledger{
		db:        db,
		writer:    generic.NewWriter(db),
		accounts:  generic.NewStore(db, AccountDescriptor()),
		movements: generic.NewStore(db, MovementDescriptor()),
		now:       now,
	}
}

// Accounts exposes the account store for plain CRUD. Balance changes must
// still go through Post.
func (l *Ledger) Accounts() *generic.Store[SocietyAccount, int64] { return l.accounts }

// Movements exposes the movement store for reads. Writes other than posts
// are rejected by the row source: movements are immutable once committed.
func (l *Ledger) Movements() *generic.Store[Movement, int64] { return l.movements }

// =============================================================================
// POSTING
// =============================================================================

// Post records a movement against the account and updates the stored
// balance, atomically. amount must be a positive magnitude; the sign is
// derived from the movement type.
func (l *Ledger) Post(ctx context.Context, accountID int64, mvType MovementType, amount decimal.Decimal) (Movement, error) {
	// Rejected before any statement is issued.
	if !amount.IsPositive() {
		return Movement{}, &generic.ValidationError{Field: "amount", Message: "must be positive"}
	}
	switch mvType {
	case Credit, Debit:
	default:
		return Movement{}, &generic.ValidationError{Field: "type", Message: "unknown movement type"}
	}

	var posted Movement
	err := l.writer.Run(ctx, func(ctx context.Context) error {
		acct, err := l.accounts.FindByID(ctx, accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return &generic.ValidationError{Field: "account_id", Message: "no such account"}
		}

		next := acct.Balance.Add(SignedAmount(mvType, amount))
		if mvType == Debit && next.IsNegative() && !acct.AllowOverdraft {
			return fmt.Errorf("%w: balance %s, debit %s",
				ErrInsufficientFunds, acct.Balance, amount)
		}

		posted, err = l.movements.Save(ctx, Movement{
			AccountID:  accountID,
			Type:       mvType,
			Amount:     amount,
			RecordedAt: l.now(),
		})
		if err != nil {
			return err
		}

		acct.Balance = next
		_, err = l.accounts.Update(ctx, *acct)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	return posted, nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// BalanceAsOf recomputes the account balance from movement history up to
// and including the bound, independent of the stored balance.
func (l *Ledger) BalanceAsOf(ctx context.Context, accountID int64, bound time.Time) (decimal.Decimal, error) {
	q := generic.QuerierFrom(ctx, l.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, account_id, type, amount, recorded_at
		FROM movements
		WHERE account_id = ? AND recorded_at <= ?
		ORDER BY recorded_at ASC, id ASC
	`, accountID, bound.UTC().Format(time.RFC3339))
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance as of: %w", err)
	}
	defer rows.Close()

	movements, err := scanMovements(rows)
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, m := range movements {
		sum = sum.Add(m.Signed())
	}
	return sum, nil
}

// Drift is the result of one account consistency check.
type Drift struct {
	AccountID int64
	Stored    decimal.Decimal
	Computed  decimal.Decimal
}

// Amount returns stored - computed; zero means consistent.
func (d Drift) Amount() decimal.Decimal { return d.Stored.Sub(d.Computed) }

// CheckConsistency compares the stored balance against the recomputed
// movement sum. A nil result means the account is consistent (or absent).
func (l *Ledger) CheckConsistency(ctx context.Context, accountID int64) (*Drift, error) {
	acct, err := l.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, nil
	}

	computed, err := l.BalanceAsOf(ctx, accountID, l.now())
	if err != nil {
		return nil, err
	}
	if acct.Balance.Equal(computed) {
		return nil, nil
	}
	return &Drift{AccountID: accountID, Stored: acct.Balance, Computed: computed}, nil
}

// CheckAll sweeps every account and returns the drifting ones.
func (l *Ledger) CheckAll(ctx context.Context) ([]Drift, error) {
	accounts, err := l.accounts.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, a := range accounts {
		d, err := l.CheckConsistency(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if d != nil {
			drifts = append(drifts, *d)
		}
	}
	return drifts, nil
}

// =============================================================================
// MOVEMENT QUERIES - read-only, no transactional scoping needed
// =============================================================================

// MovementsByAccount returns the account's movements, chronologically.
func (l *Ledger) MovementsByAccount(ctx context.Context, accountID int64) ([]Movement, error) {
	return l.queryMovements(ctx, `
		SELECT id, account_id, type, amount, recorded_at
		FROM movements WHERE account_id = ?
		ORDER BY recorded_at ASC, id ASC
	`, accountID)
}

// MovementsByAccountAndType filters by credit/debit.
func (l *Ledger) MovementsByAccountAndType(ctx context.Context, accountID int64, mvType MovementType) ([]Movement, error) {
	return l.queryMovements(ctx, `
		SELECT id, account_id, type, amount, recorded_at
		FROM movements WHERE account_id = ? AND type = ?
		ORDER BY recorded_at ASC, id ASC
	`, accountID, mvType)
}

// MovementsByDateRange returns the account's movements in [from, to].
func (l *Ledger) MovementsByDateRange(ctx context.Context, accountID int64, from, to time.Time) ([]Movement, error) {
	return l.queryMovements(ctx, `
		SELECT id, account_id, type, amount, recorded_at
		FROM movements WHERE account_id = ?
		  AND recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at ASC, id ASC
	`, accountID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

func (l *Ledger) queryMovements(ctx context.Context, stmt string, args ...any) ([]Movement, error) {
	q := generic.QuerierFrom(ctx, l.db)
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()
	return scanMovements(rows)
}
