/*
audit.go - Persisted consistency-check runs

PURPOSE:
  Each periodic consistency sweep is recorded so drift is visible after the
  fact, not just in logs. Runs carry an opaque identifier, the per-account
  result, and the checked-at timestamp.

SEE ALSO:
  - ledger.go: CheckConsistency / CheckAll
  - api/auditor.go: The background sweeper writing these records
*/
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/fleet-engine/generic"
)

// AuditStatus is the outcome of one account check.
type AuditStatus string

const (
	AuditConsistent AuditStatus = "consistent"
	AuditDrift      AuditStatus = "drift"
)

// AuditRun is one recorded account check.
type AuditRun struct {
	ID        string
	AccountID int64
	Stored    string
	Computed  string
	Drift     string
	Status    AuditStatus
	CheckedAt time.Time
}

// RecordAudit persists the outcome of checking one account.
func (l *Ledger) RecordAudit(ctx context.Context, accountID int64, drift *Drift) (AuditRun, error) {
	run := AuditRun{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Status:    AuditConsistent,
		CheckedAt: l.now(),
	}
	if drift != nil {
		run.Status = AuditDrift
		run.Stored = drift.Stored.String()
		run.Computed = drift.Computed.String()
		run.Drift = drift.Amount().String()
	}

	q := generic.QuerierFrom(ctx, l.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_audits (id, account_id, stored_balance, computed_balance, drift, status, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.AccountID, run.Stored, run.Computed, run.Drift, run.Status,
		run.CheckedAt.Format(time.RFC3339))
	if err != nil {
		return AuditRun{}, fmt.Errorf("record audit: %w", err)
	}
	return run, nil
}

// ListAudits returns the most recent audit runs, newest first.
func (l *Ledger) ListAudits(ctx context.Context, limit int) ([]AuditRun, error) {
	if limit <= 0 {
		limit = 50
	}

	q := generic.QuerierFrom(ctx, l.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, account_id, stored_balance, computed_balance, drift, status, checked_at
		FROM ledger_audits
		ORDER BY checked_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var runs []AuditRun
	for rows.Next() {
		var r AuditRun
		var checked string
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Stored, &r.Computed,
			&r.Drift, &r.Status, &checked); err != nil {
			return nil, err
		}
		r.CheckedAt, _ = time.Parse(time.RFC3339, checked)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
