package fleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestScheduler(t *testing.T) (*fleet.Scheduler, *generic.Store[fleet.Vehicle, int64]) {
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return fleet.NewScheduler(db), generic.NewStore(db, fleet.VehicleDescriptor())
}

func seedVehicle(t *testing.T, vehicles *generic.Store[fleet.Vehicle, int64], plate string, odometer int64) fleet.Vehicle {
	v, err := vehicles.Save(context.Background(), fleet.Vehicle{
		State:         fleet.VehicleInService,
		Energy:        fleet.EnergyDiesel,
		ChassisNumber: "VIN-" + plate,
		PlateNumber:   plate,
		OdometerKm:    odometer,
		Price:         decimal.NewFromInt(25000),
	})
	require.NoError(t, err)
	return v
}

func closedServiceAt(t *testing.T, s *fleet.Scheduler, vehicleID, serviceOdo int64, entered time.Time) fleet.MaintenanceOrder {
	o, err := s.OpenOrder(context.Background(), vehicleID, entered, "revision", &serviceOdo)
	require.NoError(t, err)
	closed, err := s.CloseOrder(context.Background(), o.ID, entered.Add(4*time.Hour), decimal.NewFromInt(300))
	require.NoError(t, err)
	return closed
}

func day(d int) time.Time {
	return time.Date(2025, time.June, d, 9, 0, 0, 0, time.UTC)
}

// =============================================================================
// DUE COMPUTATION
// =============================================================================

func TestScheduler_IsDue_NoRecords_AlwaysDue(t *testing.T) {
	// GIVEN: Vehicle at 50,000 km with zero maintenance records
	// WHEN: Checking due state at a 10,000 km threshold
	// THEN: Due - a never-serviced vehicle is perpetually due

	s, vehicles := newTestScheduler(t)
	v := seedVehicle(t, vehicles, "AB-123-CD", 50000)

	due, err := s.IsDue(context.Background(), v, 10000)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestScheduler_IsDue_OdometerDeltaFormula(t *testing.T) {
	// GIVEN: Vehicle at 50,000 km, last service recorded at 48,000 km
	// WHEN: Checking at a 10,000 km threshold
	// THEN: Not due - 50000-48000 = 2000 < 10000

	s, vehicles := newTestScheduler(t)
	v := seedVehicle(t, vehicles, "AB-123-CD", 50000)
	closedServiceAt(t, s, v.ID, 48000, day(1))

	due, err := s.IsDue(context.Background(), v, 10000)
	require.NoError(t, err)
	assert.False(t, due)
}

func TestScheduler_IsDue_ThresholdBoundary(t *testing.T) {
	// Due exactly at odometer - lastService == threshold, not one unit below.

	s, vehicles := newTestScheduler(t)
	v := seedVehicle(t, vehicles, "AB-123-CD", 58000)
	closedServiceAt(t, s, v.ID, 48000, day(1))

	due, err := s.IsDue(context.Background(), v, 10000)
	require.NoError(t, err)
	assert.True(t, due, "delta == threshold means due")

	due, err = s.IsDue(context.Background(), v, 10001)
	require.NoError(t, err)
	assert.False(t, due, "one unit below threshold means not due")
}

func TestScheduler_IsDue_UsesMaximumServiceOdometer(t *testing.T) {
	// GIVEN: Two service records; only the maximum reading counts

	s, vehicles := newTestScheduler(t)
	v := seedVehicle(t, vehicles, "AB-123-CD", 52000)
	closedServiceAt(t, s, v.ID, 30000, day(1))
	closedServiceAt(t, s, v.ID, 48000, day(2))

	due, err := s.IsDue(context.Background(), v, 10000)
	require.NoError(t, err)
	assert.False(t, due, "52000-48000 = 4000 < 10000")
}

func TestScheduler_IsDue_ServicedAtZero_IsNotNeverServiced(t *testing.T) {
	// GIVEN: A genuine service record at odometer 0 (pre-delivery check)
	// THEN: The delta rule applies; the vehicle is not treated as unserviced

	s, vehicles := newTestScheduler(t)
	v := seedVehicle(t, vehicles, "AB-123-CD", 5000)
	closedServiceAt(t, s, v.ID, 0, day(1))

	due, err := s.IsDue(context.Background(), v, 10000)
	require.NoError(t, err)
	assert.False(t, due, "5000-0 = 5000 < 10000")
}

func TestScheduler_DueVehicles(t *testing.T) {
	s, vehicles := newTestScheduler(t)

	never := seedVehicle(t, vehicles, "AA-111-AA", 50000)
	fresh := seedVehicle(t, vehicles, "BB-222-BB", 50000)
	closedServiceAt(t, s, fresh.ID, 49000, day(1))

	due, err := s.DueVehicles(context.Background(), 10000)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, never.ID, due[0].ID)
}

// =============================================================================
// HISTORY QUERIES
// =============================================================================

func TestScheduler_FindScheduled_OpenOrdersInRange(t *testing.T) {
	// GIVEN: Open orders inside and outside the range, plus a closed one inside
	// WHEN: Querying [day 5, day 10]
	// THEN: Only open in-range orders, ascending by entry

	s, vehicles := newTestScheduler(t)
	v := seedVehicle(t, vehicles, "AB-123-CD", 50000)
	ctx := context.Background()

	early, err := s.OpenOrder(ctx, v.ID, day(2), "brakes", nil)
	require.NoError(t, err)
	_, err = s.CloseOrder(ctx, early.ID, day(3), decimal.NewFromInt(120))
	require.NoError(t, err)

	_, err = s.OpenOrder(ctx, v.ID, day(12), "tires", nil)
	require.NoError(t, err)

	second, err := s.OpenOrder(ctx, v.ID, day(8), "revision", nil)
	require.NoError(t, err)
	first, err := s.OpenOrder(ctx, v.ID, day(6), "oil", nil)
	require.NoError(t, err)

	closedInRange, err := s.OpenOrder(ctx, v.ID, day(7), "filters", nil)
	require.NoError(t, err)
	_, err = s.CloseOrder(ctx, closedInRange.ID, day(7), decimal.NewFromInt(80))
	require.NoError(t, err)

	got, err := s.FindScheduled(ctx, v.ID, day(5), day(10))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID, "ascending by entry timestamp")
	assert.Equal(t, second.ID, got[1].ID)
}

// =============================================================================
// ORDER LIFECYCLE
// =============================================================================

func TestScheduler_CloseOrder_RecordsExitAndCost(t *testing.T) {
	s, vehicles := newTestScheduler(t)
	v := seedVehicle(t, vehicles, "AB-123-CD", 50000)
	ctx := context.Background()

	o, err := s.OpenOrder(ctx, v.ID, day(1), "revision", nil)
	require.NoError(t, err)
	assert.Equal(t, fleet.OrderOpen, o.Status)

	exit := day(2)
	closed, err := s.CloseOrder(ctx, o.ID, exit, decimal.RequireFromString("349.90"))
	require.NoError(t, err)
	assert.Equal(t, fleet.OrderClosed, closed.Status)
	require.NotNil(t, closed.ExitedAt)
	assert.True(t, closed.ExitedAt.Equal(exit))
	assert.True(t, closed.Cost.Equal(decimal.RequireFromString("349.90")))
}

func TestScheduler_CloseOrder_AlreadyClosed_InvalidTransition(t *testing.T) {
	s, vehicles := newTestScheduler(t)
	v := seedVehicle(t, vehicles, "AB-123-CD", 50000)
	ctx := context.Background()

	o, err := s.OpenOrder(ctx, v.ID, day(1), "revision", nil)
	require.NoError(t, err)
	_, err = s.CloseOrder(ctx, o.ID, day(2), decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = s.CloseOrder(ctx, o.ID, day(3), decimal.NewFromInt(100))
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	var terr *generic.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, string(fleet.OrderClosed), terr.From)
}

func TestScheduler_CloseOrder_ExitBeforeEntry_ValidationFailure(t *testing.T) {
	s, vehicles := newTestScheduler(t)
	v := seedVehicle(t, vehicles, "AB-123-CD", 50000)
	ctx := context.Background()

	o, err := s.OpenOrder(ctx, v.ID, day(5), "revision", nil)
	require.NoError(t, err)

	_, err = s.CloseOrder(ctx, o.ID, day(4), decimal.NewFromInt(100))
	assert.ErrorIs(t, err, generic.ErrValidation)

	// Order untouched
	got, err := s.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, fleet.OrderOpen, got.Status)
	assert.Nil(t, got.ExitedAt)
}

func TestScheduler_CancelOrder_TerminalStatesReject(t *testing.T) {
	s, vehicles := newTestScheduler(t)
	v := seedVehicle(t, vehicles, "AB-123-CD", 50000)
	ctx := context.Background()

	o, err := s.OpenOrder(ctx, v.ID, day(1), "revision", nil)
	require.NoError(t, err)

	cancelled, err := s.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, fleet.OrderCancelled, cancelled.Status)

	// cancelled is terminal
	_, err = s.CancelOrder(ctx, o.ID)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
	_, err = s.CloseOrder(ctx, o.ID, day(2), decimal.NewFromInt(50))
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}

func TestScheduler_CloseOrder_UnknownOrder_ValidationFailure(t *testing.T) {
	s, _ := newTestScheduler(t)

	_, err := s.CloseOrder(context.Background(), 777, day(1), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, generic.ErrValidation)
}
