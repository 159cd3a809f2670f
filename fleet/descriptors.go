/*
descriptors.go - Entity metadata feeding the generic store engine

PURPOSE:
  One Descriptor per entity: the fixed, ordered column list, the row
  mappers, and the write validation. This is the entire per-entity surface;
  CRUD semantics live once, in generic.Store.

FIELD MAPPING CONTRACT:
  - Timestamps are RFC3339 TEXT; a nil *time.Time writes SQL NULL and a
    NULL column reads back as nil, never a sentinel date
  - Decimals are stored as their exact TEXT representation
  - Bind returns values in exactly the Columns order; Scan reads the id
    column first, then Columns in order

SEE ALSO:
  - types.go: The entity structs
  - store/sqlite: The backing schema (column order must match)
*/
package fleet

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/generic"
)

// =============================================================================
// MAPPING HELPERS
// =============================================================================

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// nullTime maps an absent timestamp to SQL NULL.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// parseNullTime maps a NULL column to an absent value.
func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

// id64 provides the identifier plumbing shared by every int64-keyed entity.
func id64(id int64) (int64, bool) { return id, id != 0 }

// =============================================================================
// VEHICLES
// =============================================================================

func VehicleDescriptor() generic.Descriptor[Vehicle, int64] {
	return generic.Descriptor[Vehicle, int64]{
		Table:    "vehicles",
		IDColumn: "id",
		Columns: []string{
			"state", "energy", "chassis_number", "plate_number",
			"odometer_km", "price", "acquired_at", "commissioned_at", "depreciated_at",
		},
		OrderBy: "plate_number ASC",
		Scan: func(r generic.RowScanner) (Vehicle, error) {
			var v Vehicle
			var price string
			var acquired, commissioned, depreciated sql.NullString
			err := r.Scan(&v.ID, &v.State, &v.Energy, &v.ChassisNumber, &v.PlateNumber,
				&v.OdometerKm, &price, &acquired, &commissioned, &depreciated)
			if err != nil {
				return v, err
			}
			v.Price = parseDec(price)
			v.AcquiredAt = parseNullTime(acquired)
			v.CommissionedAt = parseNullTime(commissioned)
			v.DepreciatedAt = parseNullTime(depreciated)
			return v, nil
		},
		Bind: func(v Vehicle) []any {
			return []any{
				v.State, v.Energy, v.ChassisNumber, v.PlateNumber,
				v.OdometerKm, v.Price.String(),
				nullTime(v.AcquiredAt), nullTime(v.CommissionedAt), nullTime(v.DepreciatedAt),
			}
		},
		ID:      func(v Vehicle) (int64, bool) { return id64(v.ID) },
		WithID:  func(v Vehicle, id int64) Vehicle { v.ID = id; return v },
		FromKey: func(k int64) int64 { return k },
		Validate: func(v Vehicle) error {
			switch {
			case v.ChassisNumber == "":
				return &generic.ValidationError{Field: "chassis_number", Message: "blank"}
			case v.PlateNumber == "":
				return &generic.ValidationError{Field: "plate_number", Message: "blank"}
			case v.OdometerKm < 0:
				return &generic.ValidationError{Field: "odometer_km", Message: "negative"}
			}
			switch v.State {
			case VehicleInService, VehicleInMaintenance, VehicleRetired:
			default:
				return &generic.ValidationError{Field: "state", Message: "unknown state"}
			}
			switch v.Energy {
			case EnergyGasoline, EnergyDiesel, EnergyElectric, EnergyHybrid:
			default:
				return &generic.ValidationError{Field: "energy", Message: "unknown energy type"}
			}
			return nil
		},
	}
}

// =============================================================================
// MAINTENANCE ORDERS
// =============================================================================

func MaintenanceOrderDescriptor() generic.Descriptor[MaintenanceOrder, int64] {
	return generic.Descriptor[MaintenanceOrder, int64]{
		Table:    "maintenance_orders",
		IDColumn: "id",
		Columns: []string{
			"vehicle_id", "entered_at", "exited_at", "service_odometer",
			"cost", "type", "status",
		},
		OrderBy: "entered_at ASC, id ASC",
		Scan: func(r generic.RowScanner) (MaintenanceOrder, error) {
			var o MaintenanceOrder
			var entered, cost string
			var exited sql.NullString
			var serviceOdo sql.NullInt64
			err := r.Scan(&o.ID, &o.VehicleID, &entered, &exited, &serviceOdo,
				&cost, &o.Type, &o.Status)
			if err != nil {
				return o, err
			}
			o.EnteredAt = parseTime(entered)
			o.ExitedAt = parseNullTime(exited)
			if serviceOdo.Valid {
				o.ServiceOdometer = &serviceOdo.Int64
			}
			o.Cost = parseDec(cost)
			return o, nil
		},
		Bind: func(o MaintenanceOrder) []any {
			return []any{
				o.VehicleID, fmtTime(o.EnteredAt), nullTime(o.ExitedAt),
				nullInt(o.ServiceOdometer), o.Cost.String(), o.Type, o.Status,
			}
		},
		ID:      func(o MaintenanceOrder) (int64, bool) { return id64(o.ID) },
		WithID:  func(o MaintenanceOrder, id int64) MaintenanceOrder { o.ID = id; return o },
		FromKey: func(k int64) int64 { return k },
		Validate: func(o MaintenanceOrder) error {
			switch {
			case o.VehicleID == 0:
				return &generic.ValidationError{Field: "vehicle_id", Message: "missing"}
			case o.EnteredAt.IsZero():
				return &generic.ValidationError{Field: "entered_at", Message: "missing"}
			case o.Type == "":
				return &generic.ValidationError{Field: "type", Message: "blank"}
			case o.ExitedAt != nil && o.ExitedAt.Before(o.EnteredAt):
				return &generic.ValidationError{Field: "exited_at", Message: "before entry"}
			}
			switch o.Status {
			case OrderOpen, OrderClosed, OrderCancelled:
				return nil
			default:
				return &generic.ValidationError{Field: "status", Message: "unknown status"}
			}
		},
	}
}

// =============================================================================
// MISSIONS
// =============================================================================

func MissionDescriptor() generic.Descriptor[Mission, int64] {
	return generic.Descriptor[Mission, int64]{
		Table:    "missions",
		IDColumn: "id",
		Columns: []string{
			"vehicle_id", "personnel_id", "label", "destination", "starts_at", "ends_at",
		},
		OrderBy: "starts_at ASC, id ASC",
		Scan: func(r generic.RowScanner) (Mission, error) {
			var m Mission
			var starts string
			var ends sql.NullString
			err := r.Scan(&m.ID, &m.VehicleID, &m.PersonnelID, &m.Label,
				&m.Destination, &starts, &ends)
			if err != nil {
				return m, err
			}
			m.StartsAt = parseTime(starts)
			m.EndsAt = parseNullTime(ends)
			return m, nil
		},
		Bind: func(m Mission) []any {
			return []any{
				m.VehicleID, m.PersonnelID, m.Label, m.Destination,
				fmtTime(m.StartsAt), nullTime(m.EndsAt),
			}
		},
		ID:      func(m Mission) (int64, bool) { return id64(m.ID) },
		WithID:  func(m Mission, id int64) Mission { m.ID = id; return m },
		FromKey: func(k int64) int64 { return k },
		Validate: func(m Mission) error {
			switch {
			case m.VehicleID == 0:
				return &generic.ValidationError{Field: "vehicle_id", Message: "missing"}
			case m.PersonnelID == 0:
				return &generic.ValidationError{Field: "personnel_id", Message: "missing"}
			case m.Label == "":
				return &generic.ValidationError{Field: "label", Message: "blank"}
			case m.StartsAt.IsZero():
				return &generic.ValidationError{Field: "starts_at", Message: "missing"}
			}
			return nil
		},
	}
}

// =============================================================================
// INSURANCE POLICIES
// =============================================================================

func InsurancePolicyDescriptor() generic.Descriptor[InsurancePolicy, int64] {
	return generic.Descriptor[InsurancePolicy, int64]{
		Table:    "insurance_policies",
		IDColumn: "id",
		Columns: []string{
			"vehicle_id", "contract_number", "insurer", "premium", "starts_at", "ends_at",
		},
		OrderBy: "contract_number ASC",
		Scan: func(r generic.RowScanner) (InsurancePolicy, error) {
			var p InsurancePolicy
			var premium, starts string
			var ends sql.NullString
			err := r.Scan(&p.ID, &p.VehicleID, &p.ContractNumber, &p.Insurer,
				&premium, &starts, &ends)
			if err != nil {
				return p, err
			}
			p.Premium = parseDec(premium)
			p.StartsAt = parseTime(starts)
			p.EndsAt = parseNullTime(ends)
			return p, nil
		},
		Bind: func(p InsurancePolicy) []any {
			return []any{
				p.VehicleID, p.ContractNumber, p.Insurer, p.Premium.String(),
				fmtTime(p.StartsAt), nullTime(p.EndsAt),
			}
		},
		ID:      func(p InsurancePolicy) (int64, bool) { return id64(p.ID) },
		WithID:  func(p InsurancePolicy, id int64) InsurancePolicy { p.ID = id; return p },
		FromKey: func(k int64) int64 { return k },
		Validate: func(p InsurancePolicy) error {
			switch {
			case p.VehicleID == 0:
				return &generic.ValidationError{Field: "vehicle_id", Message: "missing"}
			case p.ContractNumber == "":
				return &generic.ValidationError{Field: "contract_number", Message: "blank"}
			case p.StartsAt.IsZero():
				return &generic.ValidationError{Field: "starts_at", Message: "missing"}
			}
			return nil
		},
	}
}

// =============================================================================
// PERSONNEL AND ORG TABLES
// =============================================================================

func PersonnelDescriptor() generic.Descriptor[Personnel, int64] {
	return generic.Descriptor[Personnel, int64]{
		Table:    "personnel",
		IDColumn: "id",
		Columns: []string{
			"last_name", "first_name", "function_id", "service_id", "shareholder",
		},
		OrderBy: "last_name ASC, first_name ASC",
		Scan: func(r generic.RowScanner) (Personnel, error) {
			var p Personnel
			err := r.Scan(&p.ID, &p.LastName, &p.FirstName,
				&p.FunctionID, &p.ServiceID, &p.Shareholder)
			return p, err
		},
		Bind: func(p Personnel) []any {
			return []any{p.LastName, p.FirstName, p.FunctionID, p.ServiceID, p.Shareholder}
		},
		ID:      func(p Personnel) (int64, bool) { return id64(p.ID) },
		WithID:  func(p Personnel, id int64) Personnel { p.ID = id; return p },
		FromKey: func(k int64) int64 { return k },
		Validate: func(p Personnel) error {
			if p.LastName == "" {
				return &generic.ValidationError{Field: "last_name", Message: "blank"}
			}
			return nil
		},
	}
}

func FunctionDescriptor() generic.Descriptor[Function, int64] {
	return labelDescriptor[Function]("functions",
		func(f Function) (int64, string) { return f.ID, f.Label },
		func(id int64, label string) Function { return Function{ID: id, Label: label} })
}

func ServiceDescriptor() generic.Descriptor[Service, int64] {
	return labelDescriptor[Service]("services",
		func(s Service) (int64, string) { return s.ID, s.Label },
		func(id int64, label string) Service { return Service{ID: id, Label: label} })
}

// labelDescriptor covers the two id+label org tables.
func labelDescriptor[T any](table string,
	fields func(T) (int64, string),
	build func(int64, string) T,
) generic.Descriptor[T, int64] {
	return generic.Descriptor[T, int64]{
		Table:    table,
		IDColumn: "id",
		Columns:  []string{"label"},
		OrderBy:  "label ASC",
		Scan: func(r generic.RowScanner) (T, error) {
			var id int64
			var label string
			if err := r.Scan(&id, &label); err != nil {
				var zero T
				return zero, err
			}
			return build(id, label), nil
		},
		Bind: func(e T) []any {
			_, label := fields(e)
			return []any{label}
		},
		ID: func(e T) (int64, bool) {
			id, _ := fields(e)
			return id64(id)
		},
		WithID: func(e T, id int64) T {
			_, label := fields(e)
			return build(id, label)
		},
		FromKey: func(k int64) int64 { return k },
		Validate: func(e T) error {
			if _, label := fields(e); label == "" {
				return &generic.ValidationError{Field: "label", Message: "blank"}
			}
			return nil
		},
	}
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func NotificationDescriptor() generic.Descriptor[Notification, int64] {
	return generic.Descriptor[Notification, int64]{
		Table:    "notifications",
		IDColumn: "id",
		Columns:  []string{"personnel_id", "message", "sent_at", "read"},
		OrderBy:  "sent_at DESC, id DESC",
		Scan: func(r generic.RowScanner) (Notification, error) {
			var n Notification
			var sent sql.NullString
			err := r.Scan(&n.ID, &n.PersonnelID, &n.Message, &sent, &n.Read)
			if err != nil {
				return n, err
			}
			n.SentAt = parseNullTime(sent)
			return n, nil
		},
		Bind: func(n Notification) []any {
			return []any{n.PersonnelID, n.Message, nullTime(n.SentAt), n.Read}
		},
		ID:      func(n Notification) (int64, bool) { return id64(n.ID) },
		WithID:  func(n Notification, id int64) Notification { n.ID = id; return n },
		FromKey: func(k int64) int64 { return k },
		Validate: func(n Notification) error {
			switch {
			case n.PersonnelID == 0:
				return &generic.ValidationError{Field: "personnel_id", Message: "missing"}
			case n.Message == "":
				return &generic.ValidationError{Field: "message", Message: "blank"}
			}
			return nil
		},
	}
}
