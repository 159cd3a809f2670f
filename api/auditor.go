/*
auditor.go - Automated ledger consistency auditor

PURPOSE:
  Periodically recomputes every account's balance from its movements and
  records whether the stored balance matches. Drift never corrects itself
  silently; each sweep leaves an audit trail for operators to act on.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Recomputes each account independently; one failure doesn't stop the sweep
  - Records a run per account, consistent or not
  - Drift is logged loudly and, when a notification store is wired, recorded
    as a message to the account owner - it means a write bypassed the ledger

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the auditor is active (default: true)

USAGE:
  auditor := NewLedgerAuditor(ledger)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - handlers.go: RunAudit endpoint (manual sweep)
  - finance/ledger.go: CheckConsistency
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/fleet-engine/finance"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
)

// LedgerAuditor handles automated balance consistency sweeps.
type LedgerAuditor struct {
	Ledger        *finance.Ledger
	CheckInterval time.Duration
	Enabled       bool

	// Notifications, when set, receives a message for the account owner on
	// every detected drift.
	Notifications *generic.Store[fleet.Notification, int64]

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewLedgerAuditor creates a new auditor.
func NewLedgerAuditor(ledger *finance.Ledger) *LedgerAuditor {
	return &LedgerAuditor{
		Ledger:        ledger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the auditor.
func (la *LedgerAuditor) Start() {
	la.mu.Lock()
	defer la.mu.Unlock()

	if !la.Enabled {
		log.Println("[Auditor] Disabled, not starting")
		return
	}

	la.ticker = time.NewTicker(la.CheckInterval)
	la.wg.Add(1)

	go la.run()

	log.Printf("[Auditor] Started with check interval: %v", la.CheckInterval)
}

// Stop stops the auditor.
func (la *LedgerAuditor) Stop() {
	la.mu.Lock()
	defer la.mu.Unlock()

	if la.ticker != nil {
		la.ticker.Stop()
		close(la.stop)
		la.wg.Wait()
		log.Println("[Auditor] Stopped")
	}
}

func (la *LedgerAuditor) run() {
	defer la.wg.Done()

	// Sweep immediately on start
	la.sweep()

	for {
		select {
		case <-la.ticker.C:
			la.sweep()
		case <-la.stop:
			return
		}
	}
}

func (la *LedgerAuditor) sweep() {
	ctx := context.Background()

	accounts, err := la.Ledger.Accounts().FindAll(ctx)
	if err != nil {
		log.Printf("[Auditor] Error listing accounts: %v", err)
		return
	}

	consistentCount := 0
	driftCount := 0

	for _, account := range accounts {
		drift, err := la.Ledger.CheckConsistency(ctx, account.ID)
		if err != nil {
			log.Printf("[Auditor] Error checking account %d: %v", account.ID, err)
			continue
		}

		if _, err := la.Ledger.RecordAudit(ctx, account.ID, drift); err != nil {
			log.Printf("[Auditor] Error recording run for account %d: %v", account.ID, err)
			continue
		}

		if drift == nil {
			consistentCount++
			continue
		}

		driftCount++
		log.Printf("[Auditor] DRIFT on account %d (%s): stored=%s computed=%s delta=%s",
			account.ID, account.AccountNumber,
			drift.Stored.String(), drift.Computed.String(), drift.Amount().String())
		la.notifyDrift(ctx, account, drift)
	}

	if driftCount > 0 {
		log.Printf("[Auditor] Completed: %d consistent, %d DRIFTED", consistentCount, driftCount)
	} else if consistentCount > 0 {
		log.Printf("[Auditor] Completed: %d accounts consistent", consistentCount)
	}
}

// notifyDrift records a message for the account owner. Best effort; a
// failed notification never fails the sweep.
func (la *LedgerAuditor) notifyDrift(ctx context.Context, account finance.SocietyAccount, drift *finance.Drift) {
	if la.Notifications == nil {
		return
	}

	now := time.Now().UTC()
	_, err := la.Notifications.Save(ctx, fleet.Notification{
		PersonnelID: account.PersonnelID,
		Message: fmt.Sprintf("Balance drift detected on account %s: stored %s, computed %s",
			account.AccountNumber, drift.Stored.String(), drift.Computed.String()),
		SentAt: &now,
	})
	if err != nil {
		log.Printf("[Auditor] Error notifying drift on account %d: %v", account.ID, err)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (la *LedgerAuditor) RunNow() {
	la.sweep()
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (la *LedgerAuditor) GetNextRunTime() time.Time {
	return time.Now().Add(la.CheckInterval)
}
