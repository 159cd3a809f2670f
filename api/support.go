/*
support.go - Handlers for the supporting entities

PURPOSE:
  CRUD over missions, insurance policies, org tables (functions, services)
  and notifications. All of these ride the generic store engine directly;
  there is no domain logic beyond descriptor validation, so the handlers are
  thin decode/map/respond wrappers.

ENDPOINTS:
  GET/POST        /api/missions          DELETE /api/missions/{id}
  GET/POST        /api/insurance         DELETE /api/insurance/{id}
  GET/POST        /api/functions
  GET/POST        /api/services
  GET             /api/notifications     (?personnel_id=)
  POST            /api/notifications
  POST            /api/notifications/{id}/read

SEE ALSO:
  - handlers.go: Vehicles, maintenance, ledger
  - dto.go: Wire shapes
  - fleet/descriptors.go: The descriptors backing these stores
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-engine/fleet"
)

// =============================================================================
// MISSIONS
// =============================================================================

func (h *Handler) ListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := h.Missions.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list missions", err)
		return
	}

	dtos := make([]MissionDTO, len(missions))
	for i, m := range missions {
		dtos[i] = missionDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateMission(w http.ResponseWriter, r *http.Request) {
	var req SaveMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	starts, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid starts_at (use RFC3339)", err)
		return
	}
	ends, err := parseOptional(req.EndsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ends_at (use RFC3339)", err)
		return
	}

	m, err := h.Missions.Save(r.Context(), fleet.Mission{
		VehicleID:   req.VehicleID,
		PersonnelID: req.PersonnelID,
		Label:       req.Label,
		Destination: req.Destination,
		StartsAt:    starts,
		EndsAt:      ends,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, missionDTO(m))
}

func (h *Handler) DeleteMission(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Missions.Delete(r.Context(), pathID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Mission not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// INSURANCE POLICIES
// =============================================================================

func (h *Handler) ListInsurancePolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Insurance.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}

	dtos := make([]InsurancePolicyDTO, len(policies))
	for i, p := range policies {
		dtos[i] = insuranceDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateInsurancePolicy(w http.ResponseWriter, r *http.Request) {
	var req SaveInsurancePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	premium, err := decimal.NewFromString(req.Premium)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid premium", err)
		return
	}
	starts, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid starts_at (use RFC3339)", err)
		return
	}
	ends, err := parseOptional(req.EndsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ends_at (use RFC3339)", err)
		return
	}

	p, err := h.Insurance.Save(r.Context(), fleet.InsurancePolicy{
		VehicleID:      req.VehicleID,
		ContractNumber: req.ContractNumber,
		Insurer:        req.Insurer,
		Premium:        premium,
		StartsAt:       starts,
		EndsAt:         ends,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, insuranceDTO(p))
}

func (h *Handler) DeleteInsurancePolicy(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Insurance.Delete(r.Context(), pathID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Policy not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ORG TABLES
// =============================================================================

func (h *Handler) ListFunctions(w http.ResponseWriter, r *http.Request) {
	functions, err := h.Functions.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list functions", err)
		return
	}

	dtos := make([]LabelDTO, len(functions))
	for i, f := range functions {
		dtos[i] = LabelDTO{ID: f.ID, Label: f.Label}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateFunction(w http.ResponseWriter, r *http.Request) {
	var req SaveLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	f, err := h.Functions.Save(r.Context(), fleet.Function{Label: req.Label})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, LabelDTO{ID: f.ID, Label: f.Label})
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.Services.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list services", err)
		return
	}

	dtos := make([]LabelDTO, len(services))
	for i, s := range services {
		dtos[i] = LabelDTO{ID: s.ID, Label: s.Label}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req SaveLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, err := h.Services.Save(r.Context(), fleet.Service{Label: req.Label})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, LabelDTO{ID: s.ID, Label: s.Label})
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	var (
		notifications []fleet.Notification
		err           error
	)

	if raw := r.URL.Query().Get("personnel_id"); raw != "" {
		personnelID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid personnel_id", perr)
			return
		}
		notifications, err = fleet.NotificationsByPersonnel(r.Context(), h.DB, personnelID)
	} else {
		notifications, err = h.Notifications.FindAll(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, len(notifications))
	for i, n := range notifications {
		dtos[i] = notificationDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req SaveNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := time.Now().UTC()
	n, err := h.Notifications.Save(r.Context(), fleet.Notification{
		PersonnelID: req.PersonnelID,
		Message:     req.Message,
		SentAt:      &now,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, notificationDTO(n))
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notifications.FindByID(r.Context(), pathID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get notification", err)
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "Notification not found", nil)
		return
	}

	n.Read = true
	updated, err := h.Notifications.Update(r.Context(), *n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationDTO(updated))
}
