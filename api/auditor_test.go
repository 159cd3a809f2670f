/*
auditor_test.go - Tests for the background ledger auditor

Tests for:
- Consistent sweeps recording per-account runs
- Drift detection after an out-of-band balance write, including the
  owner notification
*/
package api_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-engine/api"
	"github.com/warp/fleet-engine/finance"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/store/sqlite"
)

func TestAuditor_SweepRecordsRunsAndNotifiesDrift(t *testing.T) {
	// GIVEN: Two funded accounts, one corrupted by an out-of-band UPDATE
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	ledger := finance.NewLedger(db)
	notifications := generic.NewStore(db, fleet.NotificationDescriptor())

	fn, err := generic.NewStore(db, fleet.FunctionDescriptor()).Save(ctx, fleet.Function{Label: "driver"})
	require.NoError(t, err)
	svc, err := generic.NewStore(db, fleet.ServiceDescriptor()).Save(ctx, fleet.Service{Label: "logistics"})
	require.NoError(t, err)

	people := generic.NewStore(db, fleet.PersonnelDescriptor())
	newAccount := func(name, number string) finance.SocietyAccount {
		p, err := people.Save(ctx, fleet.Personnel{
			LastName: name, FunctionID: fn.ID, ServiceID: svc.ID, Shareholder: true,
		})
		require.NoError(t, err)
		a, err := ledger.Accounts().Save(ctx, finance.SocietyAccount{
			PersonnelID: p.ID, AccountNumber: number,
		})
		require.NoError(t, err)
		return a
	}

	clean := newAccount("Durand", "SOC-0001")
	corrupt := newAccount("Martin", "SOC-0002")

	_, err = ledger.Post(ctx, clean.ID, finance.Credit, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = ledger.Post(ctx, corrupt.ID, finance.Credit, decimal.NewFromInt(100))
	require.NoError(t, err)

	// Corrupt the stored balance behind the ledger's back
	_, err = db.ExecContext(ctx, "UPDATE society_accounts SET balance = '999' WHERE id = ?", corrupt.ID)
	require.NoError(t, err)

	// WHEN: One manual sweep
	auditor := api.NewLedgerAuditor(ledger)
	auditor.Notifications = notifications
	auditor.RunNow()

	// THEN: A run per account, one flagged
	runs, err := ledger.ListAudits(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byAccount := map[int64]finance.AuditRun{}
	for _, r := range runs {
		byAccount[r.AccountID] = r
	}
	assert.Equal(t, finance.AuditConsistent, byAccount[clean.ID].Status)
	assert.Equal(t, finance.AuditDrift, byAccount[corrupt.ID].Status)
	assert.Equal(t, "999", byAccount[corrupt.ID].Stored)
	assert.Equal(t, "100", byAccount[corrupt.ID].Computed)

	// AND: The corrupted account's owner was notified, the clean one was not
	notes, err := notifications.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, corrupt.PersonnelID, notes[0].PersonnelID)
	assert.Contains(t, notes[0].Message, "SOC-0002")
	assert.False(t, notes[0].Read)
}
