/*
handlers.go - HTTP API handlers for the fleet engine

PURPOSE:
  Exposes the stores, the ledger, and the maintenance scheduler via REST.
  Handles HTTP request/response and JSON mapping; all persistence and
  invariant enforcement stays in the domain packages.

ENDPOINTS:
  Vehicles:
    GET    /api/vehicles              List (supports ?page=&size=)
    POST   /api/vehicles              Create
    GET    /api/vehicles/{id}         Get
    PUT    /api/vehicles/{id}         Update
    DELETE /api/vehicles/{id}         Delete (409 when in use)
    GET    /api/vehicles/due          Vehicles due for service (?threshold=)
    GET    /api/vehicles/{id}/maintenance  Service history

  Maintenance:
    POST   /api/maintenance           Open an order
    GET    /api/maintenance/scheduled Open orders in a range
    POST   /api/maintenance/{id}/close
    POST   /api/maintenance/{id}/cancel

  Accounts:
    GET    /api/accounts              List
    POST   /api/accounts              Create (balance starts at zero)
    GET    /api/accounts/{id}         Get
    POST   /api/accounts/{id}/movements  Post a credit/debit
    GET    /api/accounts/{id}/movements  Movement history (?type= or ?from=&to=)
    GET    /api/accounts/{id}/balance    Recomputed balance (?as_of=)

  Audit:
    GET    /api/audits                Recent consistency-check runs
    POST   /api/audits/run            Sweep all accounts now

  Personnel:
    GET    /api/personnel             List
    POST   /api/personnel             Create

ERROR HANDLING:
  Domain failures map to HTTP status via the error taxonomy:
  - 400: validation failures, invalid transitions, insufficient funds
  - 404: missing resources on targeted reads
  - 409: constraint violations (unique conflicts, in-use deletes)
  - 500: everything else

SEE ALSO:
  - dto.go: Wire shapes
  - server.go: Router and middleware
  - auditor.go: Background consistency sweeps
*/
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/finance"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
)

// DefaultDueThresholdKm is used when a due query names no threshold.
const DefaultDueThresholdKm = 10000

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	DB            *sql.DB
	Vehicles      *generic.Store[fleet.Vehicle, int64]
	Personnel     *generic.Store[fleet.Personnel, int64]
	Missions      *generic.Store[fleet.Mission, int64]
	Insurance     *generic.Store[fleet.InsurancePolicy, int64]
	Functions     *generic.Store[fleet.Function, int64]
	Services      *generic.Store[fleet.Service, int64]
	Notifications *generic.Store[fleet.Notification, int64]
	Scheduler     *fleet.Scheduler
	Ledger        *finance.Ledger
}

// NewHandler wires the stores, scheduler and ledger over one database.
func NewHandler(db *sql.DB) *Handler {
	return &Handler{
		DB:            db,
		Vehicles:      generic.NewStore(db, fleet.VehicleDescriptor()),
		Personnel:     generic.NewStore(db, fleet.PersonnelDescriptor()),
		Missions:      generic.NewStore(db, fleet.MissionDescriptor()),
		Insurance:     generic.NewStore(db, fleet.InsurancePolicyDescriptor()),
		Functions:     generic.NewStore(db, fleet.FunctionDescriptor()),
		Services:      generic.NewStore(db, fleet.ServiceDescriptor()),
		Notifications: generic.NewStore(db, fleet.NotificationDescriptor()),
		Scheduler:     fleet.NewScheduler(db),
		Ledger:        finance.NewLedger(db),
	}
}

// =============================================================================
// VEHICLE HANDLERS
// =============================================================================

func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	var (
		vehicles []fleet.Vehicle
		err      error
	)

	if r.URL.Query().Has("page") || r.URL.Query().Has("size") {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		vehicles, err = h.Vehicles.FindPage(r.Context(), page, size)
	} else {
		vehicles, err = h.Vehicles.FindAll(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vehicles", err)
		return
	}

	dtos := make([]VehicleDTO, len(vehicles))
	for i, v := range vehicles {
		dtos[i] = vehicleDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	v, err := h.Vehicles.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get vehicle", err)
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "Vehicle not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, vehicleDTO(*v))
}

func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	v, ok := h.decodeVehicle(w, r)
	if !ok {
		return
	}

	saved, err := h.Vehicles.Save(r.Context(), v)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vehicleDTO(saved))
}

func (h *Handler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	v, ok := h.decodeVehicle(w, r)
	if !ok {
		return
	}
	v.ID = pathID(r)

	updated, err := h.Vehicles.Update(r.Context(), v)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicleDTO(updated))
}

func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Vehicles.Delete(r.Context(), pathID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Vehicle not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListDueVehicles(w http.ResponseWriter, r *http.Request) {
	threshold := int64(DefaultDueThresholdKm)
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid threshold", err)
			return
		}
		threshold = parsed
	}

	due, err := h.Scheduler.DueVehicles(r.Context(), threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute due vehicles", err)
		return
	}

	dtos := make([]VehicleDTO, len(due))
	for i, v := range due {
		dtos[i] = vehicleDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListVehicleMaintenance(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Scheduler.FindByVehicle(r.Context(), pathID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list maintenance", err)
		return
	}

	dtos := make([]MaintenanceOrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = orderDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) decodeVehicle(w http.ResponseWriter, r *http.Request) (fleet.Vehicle, bool) {
	var req SaveVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return fleet.Vehicle{}, false
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return fleet.Vehicle{}, false
	}

	acquired, err := parseOptional(req.AcquiredAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid acquired_at (use RFC3339)", err)
		return fleet.Vehicle{}, false
	}
	commissioned, err := parseOptional(req.CommissionedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid commissioned_at (use RFC3339)", err)
		return fleet.Vehicle{}, false
	}
	depreciated, err := parseOptional(req.DepreciatedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid depreciated_at (use RFC3339)", err)
		return fleet.Vehicle{}, false
	}

	return fleet.Vehicle{
		State:          fleet.VehicleState(req.State),
		Energy:         fleet.EnergyType(req.Energy),
		ChassisNumber:  req.ChassisNumber,
		PlateNumber:    req.PlateNumber,
		OdometerKm:     req.OdometerKm,
		Price:          price,
		AcquiredAt:     acquired,
		CommissionedAt: commissioned,
		DepreciatedAt:  depreciated,
	}, true
}

// =============================================================================
// MAINTENANCE HANDLERS
// =============================================================================

func (h *Handler) OpenOrder(w http.ResponseWriter, r *http.Request) {
	var req OpenOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entered, err := time.Parse(time.RFC3339, req.EnteredAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entered_at (use RFC3339)", err)
		return
	}

	o, err := h.Scheduler.OpenOrder(r.Context(), req.VehicleID, entered, req.Type, req.ServiceOdometer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderDTO(o))
}

func (h *Handler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := strconv.ParseInt(r.URL.Query().Get("vehicle_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid vehicle_id", err)
		return
	}
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use RFC3339)", err)
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (use RFC3339)", err)
		return
	}

	orders, err := h.Scheduler.FindScheduled(r.Context(), vehicleID, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scheduled orders", err)
		return
	}

	dtos := make([]MaintenanceOrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = orderDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	var req CloseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	exitAt, err := time.Parse(time.RFC3339, req.ExitedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid exited_at (use RFC3339)", err)
		return
	}
	cost, err := decimal.NewFromString(req.Cost)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost", err)
		return
	}

	o, err := h.Scheduler.CloseOrder(r.Context(), pathID(r), exitAt, cost)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderDTO(o))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Scheduler.CancelOrder(r.Context(), pathID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderDTO(o))
}

// =============================================================================
// ACCOUNT AND LEDGER HANDLERS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Ledger.Accounts().FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = accountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.Ledger.Accounts().FindByID(r.Context(), pathID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get account", err)
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, accountDTO(*a))
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// Balance always starts at zero; funds arrive through postings.
	a, err := h.Ledger.Accounts().Save(r.Context(), finance.SocietyAccount{
		PersonnelID:    req.PersonnelID,
		AccountNumber:  req.AccountNumber,
		Balance:        decimal.Zero,
		AllowOverdraft: req.AllowOverdraft,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountDTO(a))
}

func (h *Handler) PostMovement(w http.ResponseWriter, r *http.Request) {
	var req PostMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	m, err := h.Ledger.Post(r.Context(), pathID(r), finance.MovementType(req.Type), amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, movementDTO(m))
}

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	accountID := pathID(r)

	var (
		movements []finance.Movement
		err       error
	)
	switch {
	case r.URL.Query().Get("type") != "":
		mvType := finance.MovementType(r.URL.Query().Get("type"))
		movements, err = h.Ledger.MovementsByAccountAndType(r.Context(), accountID, mvType)
	case r.URL.Query().Get("from") != "" || r.URL.Query().Get("to") != "":
		from, perr := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid from (use RFC3339)", perr)
			return
		}
		to, perr := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid to (use RFC3339)", perr)
			return
		}
		movements, err = h.Ledger.MovementsByDateRange(r.Context(), accountID, from, to)
	default:
		movements, err = h.Ledger.MovementsByAccount(r.Context(), accountID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list movements", err)
		return
	}

	dtos := make([]MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = movementDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := pathID(r)

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of (use RFC3339)", err)
			return
		}
		asOf = parsed
	}

	balance, err := h.Ledger.BalanceAsOf(r.Context(), accountID, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		AccountID: accountID,
		Balance:   balance.String(),
		AsOf:      asOf.Format(time.RFC3339),
	})
}

func (h *Handler) ListAudits(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.Ledger.ListAudits(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audits", err)
		return
	}

	dtos := make([]AuditRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = auditRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunAudit sweeps every account immediately and records the outcomes.
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.Ledger.Accounts().FindAll(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	var dtos []AuditRunDTO
	for _, a := range accounts {
		drift, err := h.Ledger.CheckConsistency(ctx, a.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Consistency check failed", err)
			return
		}
		run, err := h.Ledger.RecordAudit(ctx, a.ID, drift)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to record audit", err)
			return
		}
		dtos = append(dtos, auditRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PERSONNEL HANDLERS
// =============================================================================

func (h *Handler) ListPersonnel(w http.ResponseWriter, r *http.Request) {
	people, err := h.Personnel.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list personnel", err)
		return
	}

	dtos := make([]PersonnelDTO, len(people))
	for i, p := range people {
		dtos[i] = personnelDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePersonnel(w http.ResponseWriter, r *http.Request) {
	var req SavePersonnelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Personnel.Save(r.Context(), fleet.Personnel{
		LastName:    req.LastName,
		FirstName:   req.FirstName,
		FunctionID:  req.FunctionID,
		ServiceID:   req.ServiceID,
		Shareholder: req.Shareholder,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, personnelDTO(p))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, generic.ErrValidation),
		errors.Is(err, generic.ErrInvalidTransition),
		errors.Is(err, finance.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "Rejected", err)
	case errors.Is(err, generic.ErrConstraintViolation):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
