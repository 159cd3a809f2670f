/*
dto.go - Request/response shapes for the HTTP API

PURPOSE:
  Wire-format structs and their mapping from domain types. Timestamps
  travel as RFC3339 strings (empty when absent), money as decimal strings.

SEE ALSO:
  - handlers.go: The handlers producing these
*/
package api

import (
	"time"

	"github.com/warp/fleet-engine/finance"
	"github.com/warp/fleet-engine/fleet"
)

// =============================================================================
// VEHICLES
// =============================================================================

type VehicleDTO struct {
	ID             int64  `json:"id"`
	State          string `json:"state"`
	Energy         string `json:"energy"`
	ChassisNumber  string `json:"chassis_number"`
	PlateNumber    string `json:"plate_number"`
	OdometerKm     int64  `json:"odometer_km"`
	Price          string `json:"price"`
	AcquiredAt     string `json:"acquired_at,omitempty"`
	CommissionedAt string `json:"commissioned_at,omitempty"`
	DepreciatedAt  string `json:"depreciated_at,omitempty"`
}

type SaveVehicleRequest struct {
	State          string `json:"state"`
	Energy         string `json:"energy"`
	ChassisNumber  string `json:"chassis_number"`
	PlateNumber    string `json:"plate_number"`
	OdometerKm     int64  `json:"odometer_km"`
	Price          string `json:"price"`
	AcquiredAt     string `json:"acquired_at"`
	CommissionedAt string `json:"commissioned_at"`
	DepreciatedAt  string `json:"depreciated_at"`
}

func vehicleDTO(v fleet.Vehicle) VehicleDTO {
	return VehicleDTO{
		ID:             v.ID,
		State:          string(v.State),
		Energy:         string(v.Energy),
		ChassisNumber:  v.ChassisNumber,
		PlateNumber:    v.PlateNumber,
		OdometerKm:     v.OdometerKm,
		Price:          v.Price.String(),
		AcquiredAt:     fmtOptional(v.AcquiredAt),
		CommissionedAt: fmtOptional(v.CommissionedAt),
		DepreciatedAt:  fmtOptional(v.DepreciatedAt),
	}
}

// =============================================================================
// MAINTENANCE
// =============================================================================

type MaintenanceOrderDTO struct {
	ID              int64  `json:"id"`
	VehicleID       int64  `json:"vehicle_id"`
	EnteredAt       string `json:"entered_at"`
	ExitedAt        string `json:"exited_at,omitempty"`
	ServiceOdometer *int64 `json:"service_odometer,omitempty"`
	Cost            string `json:"cost"`
	Type            string `json:"type"`
	Status          string `json:"status"`
}

type OpenOrderRequest struct {
	VehicleID       int64  `json:"vehicle_id"`
	EnteredAt       string `json:"entered_at"`
	Type            string `json:"type"`
	ServiceOdometer *int64 `json:"service_odometer"`
}

type CloseOrderRequest struct {
	ExitedAt string `json:"exited_at"`
	Cost     string `json:"cost"`
}

func orderDTO(o fleet.MaintenanceOrder) MaintenanceOrderDTO {
	return MaintenanceOrderDTO{
		ID:              o.ID,
		VehicleID:       o.VehicleID,
		EnteredAt:       o.EnteredAt.Format(time.RFC3339),
		ExitedAt:        fmtOptional(o.ExitedAt),
		ServiceOdometer: o.ServiceOdometer,
		Cost:            o.Cost.String(),
		Type:            o.Type,
		Status:          string(o.Status),
	}
}

// =============================================================================
// ACCOUNTS AND MOVEMENTS
// =============================================================================

type AccountDTO struct {
	ID             int64  `json:"id"`
	PersonnelID    int64  `json:"personnel_id"`
	AccountNumber  string `json:"account_number"`
	Balance        string `json:"balance"`
	AllowOverdraft bool   `json:"allow_overdraft"`
}

type CreateAccountRequest struct {
	PersonnelID    int64  `json:"personnel_id"`
	AccountNumber  string `json:"account_number"`
	AllowOverdraft bool   `json:"allow_overdraft"`
}

type MovementDTO struct {
	ID         int64  `json:"id"`
	AccountID  int64  `json:"account_id"`
	Type       string `json:"type"`
	Amount     string `json:"amount"`
	RecordedAt string `json:"recorded_at"`
}

type PostMovementRequest struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

type BalanceDTO struct {
	AccountID int64  `json:"account_id"`
	Balance   string `json:"balance"`
	AsOf      string `json:"as_of,omitempty"`
}

type AuditRunDTO struct {
	ID        string `json:"id"`
	AccountID int64  `json:"account_id"`
	Stored    string `json:"stored_balance,omitempty"`
	Computed  string `json:"computed_balance,omitempty"`
	Drift     string `json:"drift,omitempty"`
	Status    string `json:"status"`
	CheckedAt string `json:"checked_at"`
}

func accountDTO(a finance.SocietyAccount) AccountDTO {
	return AccountDTO{
		ID:             a.ID,
		PersonnelID:    a.PersonnelID,
		AccountNumber:  a.AccountNumber,
		Balance:        a.Balance.String(),
		AllowOverdraft: a.AllowOverdraft,
	}
}

func movementDTO(m finance.Movement) MovementDTO {
	return MovementDTO{
		ID:         m.ID,
		AccountID:  m.AccountID,
		Type:       string(m.Type),
		Amount:     m.Amount.String(),
		RecordedAt: m.RecordedAt.Format(time.RFC3339),
	}
}

func auditRunDTO(r finance.AuditRun) AuditRunDTO {
	return AuditRunDTO{
		ID:        r.ID,
		AccountID: r.AccountID,
		Stored:    r.Stored,
		Computed:  r.Computed,
		Drift:     r.Drift,
		Status:    string(r.Status),
		CheckedAt: r.CheckedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PERSONNEL
// =============================================================================

type PersonnelDTO struct {
	ID          int64  `json:"id"`
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name"`
	FunctionID  int64  `json:"function_id"`
	ServiceID   int64  `json:"service_id"`
	Shareholder bool   `json:"shareholder"`
}

type SavePersonnelRequest struct {
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name"`
	FunctionID  int64  `json:"function_id"`
	ServiceID   int64  `json:"service_id"`
	Shareholder bool   `json:"shareholder"`
}

func personnelDTO(p fleet.Personnel) PersonnelDTO {
	return PersonnelDTO{
		ID:          p.ID,
		LastName:    p.LastName,
		FirstName:   p.FirstName,
		FunctionID:  p.FunctionID,
		ServiceID:   p.ServiceID,
		Shareholder: p.Shareholder,
	}
}

// =============================================================================
// MISSIONS
// =============================================================================

type MissionDTO struct {
	ID          int64  `json:"id"`
	VehicleID   int64  `json:"vehicle_id"`
	PersonnelID int64  `json:"personnel_id"`
	Label       string `json:"label"`
	Destination string `json:"destination"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at,omitempty"`
}

type SaveMissionRequest struct {
	VehicleID   int64  `json:"vehicle_id"`
	PersonnelID int64  `json:"personnel_id"`
	Label       string `json:"label"`
	Destination string `json:"destination"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
}

func missionDTO(m fleet.Mission) MissionDTO {
	return MissionDTO{
		ID:          m.ID,
		VehicleID:   m.VehicleID,
		PersonnelID: m.PersonnelID,
		Label:       m.Label,
		Destination: m.Destination,
		StartsAt:    m.StartsAt.Format(time.RFC3339),
		EndsAt:      fmtOptional(m.EndsAt),
	}
}

// =============================================================================
// INSURANCE POLICIES
// =============================================================================

type InsurancePolicyDTO struct {
	ID             int64  `json:"id"`
	VehicleID      int64  `json:"vehicle_id"`
	ContractNumber string `json:"contract_number"`
	Insurer        string `json:"insurer"`
	Premium        string `json:"premium"`
	StartsAt       string `json:"starts_at"`
	EndsAt         string `json:"ends_at,omitempty"`
}

type SaveInsurancePolicyRequest struct {
	VehicleID      int64  `json:"vehicle_id"`
	ContractNumber string `json:"contract_number"`
	Insurer        string `json:"insurer"`
	Premium        string `json:"premium"`
	StartsAt       string `json:"starts_at"`
	EndsAt         string `json:"ends_at"`
}

func insuranceDTO(p fleet.InsurancePolicy) InsurancePolicyDTO {
	return InsurancePolicyDTO{
		ID:             p.ID,
		VehicleID:      p.VehicleID,
		ContractNumber: p.ContractNumber,
		Insurer:        p.Insurer,
		Premium:        p.Premium.String(),
		StartsAt:       p.StartsAt.Format(time.RFC3339),
		EndsAt:         fmtOptional(p.EndsAt),
	}
}

// =============================================================================
// ORG TABLES AND NOTIFICATIONS
// =============================================================================

type LabelDTO struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

type SaveLabelRequest struct {
	Label string `json:"label"`
}

type NotificationDTO struct {
	ID          int64  `json:"id"`
	PersonnelID int64  `json:"personnel_id"`
	Message     string `json:"message"`
	SentAt      string `json:"sent_at,omitempty"`
	Read        bool   `json:"read"`
}

type SaveNotificationRequest struct {
	PersonnelID int64  `json:"personnel_id"`
	Message     string `json:"message"`
}

func notificationDTO(n fleet.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          n.ID,
		PersonnelID: n.PersonnelID,
		Message:     n.Message,
		SentAt:      fmtOptional(n.SentAt),
		Read:        n.Read,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func fmtOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// parseOptional maps an empty string to an absent timestamp.
func parseOptional(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
