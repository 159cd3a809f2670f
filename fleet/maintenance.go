/*
maintenance.go - Maintenance due computation and order lifecycle

PURPOSE:
  Derives a vehicle's service state from its odometer and maintenance
  history, serves maintenance-history queries, and drives the order state
  machine (open -> closed / cancelled).

DUE RULE:
  A vehicle is due when it has no recorded service odometer at all, or when
      odometer - lastRecordedServiceOdometer >= thresholdKm
  where lastRecordedServiceOdometer is the MAXIMUM service-odometer value
  across the vehicle's maintenance records. A vehicle with no readings is
  perpetually due - the conservative default.

  Note: the historical reporting query coalesced missing service readings
  to zero, which conflates "never serviced" with "serviced at km 0". This
  implementation keeps the two distinct: only non-NULL readings enter the
  maximum, and the no-readings case short-circuits to due.

STATE MACHINE:
  open --close--> closed
  open --cancel--> cancelled
  closed and cancelled are terminal; any other transition is rejected with
  the invalid-transition classification.

SEE ALSO:
  - types.go: MaintenanceOrder and OrderStatus
  - generic/tx.go: The writer scoping close/cancel transitions
*/
package fleet

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler answers maintenance due-state and history queries and applies
// order lifecycle transitions.
type Scheduler struct {
	db       *sql.DB
	writer   *generic.Writer
	orders   *generic.Store[MaintenanceOrder, int64]
	vehicles *generic.Store[Vehicle, int64]
}

func NewScheduler(db *sql.DB) *Scheduler {
	return &Scheduler{
		db:       db,
		writer:   generic.NewWriter(db),
		orders:   generic.NewStore(db, MaintenanceOrderDescriptor()),
		vehicles: generic.NewStore(db, VehicleDescriptor()),
	}
}

// Orders exposes the underlying order store for plain CRUD.
func (s *Scheduler) Orders() *generic.Store[MaintenanceOrder, int64] { return s.orders }

// =============================================================================
// DUE COMPUTATION
// =============================================================================

// LastServiceOdometer returns the maximum recorded service odometer for the
// vehicle. ok is false when no record carries a reading.
func (s *Scheduler) LastServiceOdometer(ctx context.Context, vehicleID int64) (int64, bool, error) {
	q := generic.QuerierFrom(ctx, s.db)

	var max sql.NullInt64
	err := q.QueryRowContext(ctx, `
		SELECT MAX(service_odometer) FROM maintenance_orders
		WHERE vehicle_id = ? AND service_odometer IS NOT NULL
	`, vehicleID).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("last service odometer: %w", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return max.Int64, true, nil
}

// IsDue reports whether the vehicle needs service at the given threshold.
// No recorded service reading means due.
func (s *Scheduler) IsDue(ctx context.Context, v Vehicle, thresholdKm int64) (bool, error) {
	last, ok, err := s.LastServiceOdometer(ctx, v.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return v.OdometerKm-last >= thresholdKm, nil
}

// DueVehicles returns every vehicle currently due at the threshold, in
// plate-number order.
func (s *Scheduler) DueVehicles(ctx context.Context, thresholdKm int64) ([]Vehicle, error) {
	all, err := s.vehicles.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	var due []Vehicle
	for _, v := range all {
		d, err := s.IsDue(ctx, v, thresholdKm)
		if err != nil {
			return nil, err
		}
		if d {
			due = append(due, v)
		}
	}
	return due, nil
}

// =============================================================================
// HISTORY QUERIES
// =============================================================================

// FindScheduled returns the vehicle's open orders whose entry timestamp
// falls in [start, end], ascending by entry.
func (s *Scheduler) FindScheduled(ctx context.Context, vehicleID int64, start, end time.Time) ([]MaintenanceOrder, error) {
	q := generic.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, vehicle_id, entered_at, exited_at, service_odometer, cost, type, status
		FROM maintenance_orders
		WHERE vehicle_id = ? AND status = ?
		  AND entered_at >= ? AND entered_at <= ?
		ORDER BY entered_at ASC, id ASC
	`, vehicleID, OrderOpen, fmtTime(start), fmtTime(end))
	if err != nil {
		return nil, fmt.Errorf("find scheduled: %w", err)
	}
	defer rows.Close()

	desc := MaintenanceOrderDescriptor()
	var out []MaintenanceOrder
	for rows.Next() {
		o, err := desc.Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// FindByVehicle returns the vehicle's full maintenance history.
func (s *Scheduler) FindByVehicle(ctx context.Context, vehicleID int64) ([]MaintenanceOrder, error) {
	q := generic.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, vehicle_id, entered_at, exited_at, service_odometer, cost, type, status
		FROM maintenance_orders
		WHERE vehicle_id = ?
		ORDER BY entered_at ASC, id ASC
	`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("find by vehicle: %w", err)
	}
	defer rows.Close()

	desc := MaintenanceOrderDescriptor()
	var out []MaintenanceOrder
	for rows.Next() {
		o, err := desc.Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// =============================================================================
// LIFECYCLE TRANSITIONS
// =============================================================================

// OpenOrder creates an order in status open (shop intake). serviceOdometer
// may be nil when the reading was not captured.
func (s *Scheduler) OpenOrder(ctx context.Context, vehicleID int64, enteredAt time.Time, orderType string, serviceOdometer *int64) (MaintenanceOrder, error) {
	return s.orders.Save(ctx, MaintenanceOrder{
		VehicleID:       vehicleID,
		EnteredAt:       enteredAt,
		ServiceOdometer: serviceOdometer,
		Cost:            decimal.Zero,
		Type:            orderType,
		Status:          OrderOpen,
	})
}

// CloseOrder transitions open -> closed, recording exit timestamp and cost.
// Requires exitAt >= entry; rejects any order that is not currently open.
func (s *Scheduler) CloseOrder(ctx context.Context, orderID int64, exitAt time.Time, cost decimal.Decimal) (MaintenanceOrder, error) {
	var closed MaintenanceOrder
	err := s.writer.Run(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return &generic.ValidationError{Field: "order_id", Message: "no such order"}
		}
		if o.Status != OrderOpen {
			return &generic.TransitionError{From: string(o.Status), To: string(OrderClosed)}
		}
		if exitAt.Before(o.EnteredAt) {
			return &generic.ValidationError{Field: "exited_at", Message: "before entry"}
		}

		o.ExitedAt = &exitAt
		o.Cost = cost
		o.Status = OrderClosed

		closed, err = s.orders.Update(ctx, *o)
		return err
	})
	if err != nil {
		return MaintenanceOrder{}, err
	}
	return closed, nil
}

// CancelOrder transitions open -> cancelled. Terminal states reject.
func (s *Scheduler) CancelOrder(ctx context.Context, orderID int64) (MaintenanceOrder, error) {
	var cancelled MaintenanceOrder
	err := s.writer.Run(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return &generic.ValidationError{Field: "order_id", Message: "no such order"}
		}
		if o.Status != OrderOpen {
			return &generic.TransitionError{From: string(o.Status), To: string(OrderCancelled)}
		}

		o.Status = OrderCancelled
		cancelled, err = s.orders.Update(ctx, *o)
		return err
	})
	if err != nil {
		return MaintenanceOrder{}, err
	}
	return cancelled, nil
}
