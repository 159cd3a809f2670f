/*
handlers_test.go - HTTP-level tests for API handlers

Tests for:
- Vehicle CRUD over the wire and 404 on missing resources
- Ledger posting, overdraft rejection mapping, balance endpoint
- Maintenance lifecycle status mapping (invalid transition -> 400)
*/
package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-engine/api"
	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(db)))
	t.Cleanup(srv.Close)
	return srv, db
}

// seedOrg creates the function/service rows personnel rows depend on.
func seedOrg(t *testing.T, db *sql.DB) (functionID, serviceID int64) {
	ctx := context.Background()

	fn, err := generic.NewStore(db, fleet.FunctionDescriptor()).Save(ctx, fleet.Function{Label: "driver"})
	require.NoError(t, err)
	svc, err := generic.NewStore(db, fleet.ServiceDescriptor()).Save(ctx, fleet.Service{Label: "logistics"})
	require.NoError(t, err)
	return fn.ID, svc.ID
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// =============================================================================
// VEHICLES
// =============================================================================

func TestAPI_VehicleLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	// Create
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/vehicles", api.SaveVehicleRequest{
		State:         "in_service",
		Energy:        "diesel",
		ChassisNumber: "VIN-001",
		PlateNumber:   "AB-123-CD",
		OdometerKm:    42000,
		Price:         "25000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.VehicleDTO](t, resp)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "25000", created.Price)

	// Read back
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/vehicles/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.VehicleDTO](t, resp)
	assert.Equal(t, "AB-123-CD", got.PlateNumber)

	// Delete, then 404
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/vehicles/"+itoa(created.ID), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/vehicles/"+itoa(created.ID), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CreateVehicle_DuplicatePlate_Conflict(t *testing.T) {
	srv, _ := newTestServer(t)

	body := api.SaveVehicleRequest{
		State: "in_service", Energy: "diesel",
		ChassisNumber: "VIN-001", PlateNumber: "AB-123-CD", Price: "1000",
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/vehicles", body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body.ChassisNumber = "VIN-002" // same plate
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/vehicles", body)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestAPI_PostMovement_AndOverdraftRejection(t *testing.T) {
	srv, db := newTestServer(t)
	functionID, serviceID := seedOrg(t, db)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/personnel", api.SavePersonnelRequest{
		LastName: "Durand", FirstName: "Alice",
		FunctionID: functionID, ServiceID: serviceID, Shareholder: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	person := decode[api.PersonnelDTO](t, resp)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/accounts", api.CreateAccountRequest{
		PersonnelID: person.ID, AccountNumber: "SOC-0001",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	account := decode[api.AccountDTO](t, resp)
	assert.Equal(t, "0", account.Balance)

	// Credit 100
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/accounts/"+itoa(account.ID)+"/movements",
		api.PostMovementRequest{Type: "credit", Amount: "100.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Debit 200 would overdraw: rejected with 400, balance untouched
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/accounts/"+itoa(account.ID)+"/movements",
		api.PostMovementRequest{Type: "debit", Amount: "200.00"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/accounts/"+itoa(account.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[api.AccountDTO](t, resp)
	assert.Equal(t, "100", after.Balance)

	// Balance endpoint recomputes from movements
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/accounts/"+itoa(account.ID)+"/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, "100", balance.Balance)
}

// =============================================================================
// MAINTENANCE
// =============================================================================

func TestAPI_CloseOrderTwice_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/vehicles", api.SaveVehicleRequest{
		State: "in_service", Energy: "gasoline",
		ChassisNumber: "VIN-001", PlateNumber: "AB-123-CD", Price: "9000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	v := decode[api.VehicleDTO](t, resp)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/maintenance", api.OpenOrderRequest{
		VehicleID: v.ID, EnteredAt: "2025-06-01T09:00:00Z", Type: "revision",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[api.MaintenanceOrderDTO](t, resp)
	assert.Equal(t, "open", order.Status)

	closeBody := api.CloseOrderRequest{ExitedAt: "2025-06-02T09:00:00Z", Cost: "250.00"}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/maintenance/"+itoa(order.ID)+"/close", closeBody)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/maintenance/"+itoa(order.ID)+"/close", closeBody)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestAPI_Notifications_FilterByPersonnel(t *testing.T) {
	srv, db := newTestServer(t)
	functionID, serviceID := seedOrg(t, db)

	newPerson := func(name string) api.PersonnelDTO {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/personnel", api.SavePersonnelRequest{
			LastName: name, FunctionID: functionID, ServiceID: serviceID,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		return decode[api.PersonnelDTO](t, resp)
	}
	alice := newPerson("Durand")
	bob := newPerson("Martin")

	for _, n := range []api.SaveNotificationRequest{
		{PersonnelID: alice.ID, Message: "inspection due"},
		{PersonnelID: bob.ID, Message: "policy expiring"},
	} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/notifications", n)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Filtered: only the addressee's messages
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/notifications?personnel_id="+itoa(alice.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inbox := decode[[]api.NotificationDTO](t, resp)
	require.Len(t, inbox, 1)
	assert.Equal(t, alice.ID, inbox[0].PersonnelID)
	assert.Equal(t, "inspection due", inbox[0].Message)
	assert.False(t, inbox[0].Read)

	// Unfiltered: everything
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/notifications", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[[]api.NotificationDTO](t, resp)
	assert.Len(t, all, 2)

	// Mark read round-trips
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/notifications/"+itoa(inbox[0].ID)+"/read", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	read := decode[api.NotificationDTO](t, resp)
	assert.True(t, read.Read)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
