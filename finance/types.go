/*
Package finance holds the shareholder ledger: society accounts, their
movements, and the reconciler that keeps the two consistent.

PURPOSE:
  A SocietyAccount's balance must equal the signed sum of all committed
  Movements referencing it, at all times. Movements are immutable once
  committed - corrections are new offsetting movements, never edits.

KEY TYPES IN THIS FILE:
  - SocietyAccount: shareholder account with a stored (materialized) balance
  - Movement: an immutable signed posting (credit/debit + positive magnitude)

SEE ALSO:
  - ledger.go: Atomic posting and balance recomputation
  - audit.go: Recorded consistency-check runs
*/
package finance

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// =============================================================================
// MOVEMENT TYPES
// =============================================================================

// MovementType determines the sign applied to a movement's magnitude.
type MovementType string

const (
	Credit MovementType = "credit"
	Debit  MovementType = "debit"
)

// SignedAmount applies the movement type's sign to a positive magnitude.
func SignedAmount(t MovementType, amount decimal.Decimal) decimal.Decimal {
	if t == Debit {
		return amount.Neg()
	}
	return amount
}

// =============================================================================
// ENTITIES
// =============================================================================

// SocietyAccount is a per-shareholder account. Balance is a materialized
// view over the movement history, updated only through Ledger.Post; the
// movement sum is the source of truth for audits.
type SocietyAccount struct {
	ID             int64
	PersonnelID    int64
	AccountNumber  string
	Balance        decimal.Decimal
	AllowOverdraft bool
}

// Movement is one immutable posting. Amount is always a positive magnitude;
// the sign comes from Type.
type Movement struct {
	ID         int64
	AccountID  int64
	Type       MovementType
	Amount     decimal.Decimal
	RecordedAt time.Time
}

// Signed returns the movement's balance contribution.
func (m Movement) Signed() decimal.Decimal { return SignedAmount(m.Type, m.Amount) }

// =============================================================================
// DESCRIPTORS
// =============================================================================

func AccountDescriptor() generic.Descriptor[SocietyAccount, int64] {
	return generic.Descriptor[SocietyAccount, int64]{
		Table:    "society_accounts",
		IDColumn: "id",
		Columns:  []string{"personnel_id", "account_number", "balance", "allow_overdraft"},
		OrderBy:  "account_number ASC",
		Scan: func(r generic.RowScanner) (SocietyAccount, error) {
			var a SocietyAccount
			var balance string
			err := r.Scan(&a.ID, &a.PersonnelID, &a.AccountNumber, &balance, &a.AllowOverdraft)
			if err != nil {
				return a, err
			}
			a.Balance, _ = decimal.NewFromString(balance)
			return a, nil
		},
		Bind: func(a SocietyAccount) []any {
			return []any{a.PersonnelID, a.AccountNumber, a.Balance.String(), a.AllowOverdraft}
		},
		ID:      func(a SocietyAccount) (int64, bool) { return a.ID, a.ID != 0 },
		WithID:  func(a SocietyAccount, id int64) SocietyAccount { a.ID = id; return a },
		FromKey: func(k int64) int64 { return k },
		Validate: func(a SocietyAccount) error {
			switch {
			case a.PersonnelID == 0:
				return &generic.ValidationError{Field: "personnel_id", Message: "missing"}
			case a.AccountNumber == "":
				return &generic.ValidationError{Field: "account_number", Message: "blank"}
			}
			return nil
		},
	}
}

func MovementDescriptor() generic.Descriptor[Movement, int64] {
	return generic.Descriptor[Movement, int64]{
		Table:    "movements",
		IDColumn: "id",
		Columns:  []string{"account_id", "type", "amount", "recorded_at"},
		OrderBy:  "recorded_at ASC, id ASC",
		Scan: func(r generic.RowScanner) (Movement, error) {
			var m Movement
			var amount, recorded string
			err := r.Scan(&m.ID, &m.AccountID, &m.Type, &amount, &recorded)
			if err != nil {
				return m, err
			}
			m.Amount, _ = decimal.NewFromString(amount)
			m.RecordedAt, _ = time.Parse(time.RFC3339, recorded)
			return m, nil
		},
		Bind: func(m Movement) []any {
			return []any{
				m.AccountID, m.Type, m.Amount.String(),
				m.RecordedAt.UTC().Format(time.RFC3339),
			}
		},
		ID:      func(m Movement) (int64, bool) { return m.ID, m.ID != 0 },
		WithID:  func(m Movement, id int64) Movement { m.ID = id; return m },
		FromKey: func(k int64) int64 { return k },
		Validate: func(m Movement) error {
			switch {
			case m.AccountID == 0:
				return &generic.ValidationError{Field: "account_id", Message: "missing"}
			case !m.Amount.IsPositive():
				return &generic.ValidationError{Field: "amount", Message: "must be positive"}
			case m.RecordedAt.IsZero():
				return &generic.ValidationError{Field: "recorded_at", Message: "missing"}
			}
			switch m.Type {
			case Credit, Debit:
				return nil
			default:
				return &generic.ValidationError{Field: "type", Message: "unknown movement type"}
			}
		},
	}
}

// scanMovements materializes a movement result set.
func scanMovements(rows *sql.Rows) ([]Movement, error) {
	desc := MovementDescriptor()
	var out []Movement
	for rows.Next() {
		m, err := desc.Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
