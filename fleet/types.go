/*
Package fleet defines the fleet's persisted entities and the maintenance
scheduler.

PURPOSE:
  Entity types (vehicles, maintenance orders, missions, insurance contracts,
  personnel and their org tables, notifications) plus the closed status
  enums used at every transition site. Persistence is handled entirely by
  the generic engine via the descriptors in descriptors.go.

DESIGN PRINCIPLES:
  1. Closed enums: statuses are typed constants matched exhaustively,
     never free-text comparisons
  2. Absent timestamps are nil pointers, mapped to SQL NULL - never a
     sentinel date
  3. Money is decimal.Decimal to avoid floating-point drift

SEE ALSO:
  - descriptors.go: Column lists and row mappers per entity
  - maintenance.go: Maintenance due computation and order lifecycle
  - finance package: Accounts and movements
*/
package fleet

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

// VehicleState is the operational state of a vehicle.
type VehicleState string

const (
	VehicleInService     VehicleState = "in_service"
	VehicleInMaintenance VehicleState = "in_maintenance"
	VehicleRetired       VehicleState = "retired"
)

// EnergyType is the vehicle's fuel/energy source.
type EnergyType string

const (
	EnergyGasoline EnergyType = "gasoline"
	EnergyDiesel   EnergyType = "diesel"
	EnergyElectric EnergyType = "electric"
	EnergyHybrid   EnergyType = "hybrid"
)

// OrderStatus is the maintenance order lifecycle state.
//
// State machine: open --close--> closed, open --cancel--> cancelled.
// closed and cancelled are terminal.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderClosed    OrderStatus = "closed"
	OrderCancelled OrderStatus = "cancelled"
)

// =============================================================================
// ENTITIES
// =============================================================================

// Vehicle is a fleet vehicle. Chassis and plate numbers are unique; the
// odometer is non-negative and non-decreasing under normal operation.
type Vehicle struct {
	ID             int64
	State          VehicleState
	Energy         EnergyType
	ChassisNumber  string
	PlateNumber    string
	OdometerKm     int64
	Price          decimal.Decimal
	AcquiredAt     *time.Time
	CommissionedAt *time.Time
	DepreciatedAt  *time.Time
}

// MaintenanceOrder records one shop visit for a vehicle. Created open on
// intake; ExitedAt and Cost are set when the order closes. ServiceOdometer
// is the vehicle's odometer reading at service time and feeds the due
// computation - nil means the reading was never captured.
type MaintenanceOrder struct {
	ID              int64
	VehicleID       int64
	EnteredAt       time.Time
	ExitedAt        *time.Time
	ServiceOdometer *int64
	Cost            decimal.Decimal
	Type            string
	Status          OrderStatus
}

// Mission is a vehicle assignment to a driver for a trip.
type Mission struct {
	ID          int64
	VehicleID   int64
	PersonnelID int64
	Label       string
	Destination string
	StartsAt    time.Time
	EndsAt      *time.Time
}

// InsurancePolicy is a coverage contract for a vehicle.
type InsurancePolicy struct {
	ID             int64
	VehicleID      int64
	ContractNumber string
	Insurer        string
	Premium        decimal.Decimal
	StartsAt       time.Time
	EndsAt         *time.Time
}

// Personnel is an employee; shareholders additionally own a society
// account in the finance package.
type Personnel struct {
	ID          int64
	LastName    string
	FirstName   string
	FunctionID  int64
	ServiceID   int64
	Shareholder bool
}

// Function is a job function (org table).
type Function struct {
	ID    int64
	Label string
}

// Service is an organizational unit (org table).
type Service struct {
	ID    int64
	Label string
}

// Notification is a message delivered to one person. Delivery itself is an
// external concern; this is only the persisted record.
type Notification struct {
	ID          int64
	PersonnelID int64
	Message     string
	SentAt      *time.Time
	Read        bool
}
