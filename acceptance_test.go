package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// apiClient talks to a running server over real HTTP
type apiClient struct {
	t    *testing.T
	base string
}

func (c apiClient) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (c apiClient) ok(method, path, token string, body interface{}) map[string]interface{} {
	c.t.Helper()
	status, decoded := c.do(method, path, token, body)
	require.Less(c.t, status, 300, "%s %s: %v", method, path, decoded)
	return decoded
}

// TestServerStartup verifies the full router builds with real token checks
func TestServerStartup(t *testing.T) {
	app := setupApp(t)
	assert.NotNil(t, app.router, "Router should be initialized")
}

// TestHealthEndpointAvailability tests that the health endpoint is available immediately
func TestHealthEndpointAvailability(t *testing.T) {
	server := httptest.NewServer(setupRouter())
	defer server.Close()

	for i := 0; i < 5; i++ {
		resp, err := http.Get(server.URL + "/api/v1/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, fmt.Sprintf("Request %d should succeed", i+1))
		resp.Body.Close()
	}
}

// TestHealthEndpointResponseTime tests that the endpoint responds quickly
func TestHealthEndpointResponseTime(t *testing.T) {
	router := setupRouter()

	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()

	start := time.Now()
	router.ServeHTTP(w, req)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Health endpoint should respond in less than 100ms")
}

// TestProcurementAcceptance drives a request from creation to delivery over
// a live listener and downloads the order register afterwards.
func TestProcurementAcceptance(t *testing.T) {
	app := setupApp(t)
	server := httptest.NewServer(app.router)
	defer server.Close()
	api := apiClient{t: t, base: server.URL + "/api/v1"}

	sup := app.register(t, "auth0|sam", workflow.RoleSupervisor)
	eng := app.register(t, "auth0|erin", workflow.RoleEngineer)
	pm := app.register(t, "auth0|pat", workflow.RoleProcurementManager)
	printer := app.register(t, "auth0|pete", workflow.RolePrinter)
	tracker := app.register(t, "auth0|tia", workflow.RoleDeliveryTracker)

	api.ok(http.MethodPut, "/settings/approval-limit", pm, map[string]interface{}{"approval_limit": 1000})
	project := payload(api.ok(http.MethodPost, "/projects", pm, map[string]string{"name": "North Tower"}))
	engineer := api.ok(http.MethodGet, "/users?role=engineer", sup, nil)["data"].([]interface{})[0].(map[string]interface{})

	request := payload(api.ok(http.MethodPost, "/requests", sup, map[string]interface{}{
		"project_id":  project["id"],
		"engineer_id": engineer["id"],
		"items": []map[string]interface{}{
			{"name": "cement", "quantity": 2, "unit": "bag"},
			{"name": "rebar", "quantity": 3, "unit": "pc"},
		},
	}))
	requestID := request["id"].(string)
	api.ok(http.MethodPost, "/requests/"+requestID+"/approve", eng, nil)

	order := payload(api.ok(http.MethodPost, "/orders", pm, map[string]interface{}{
		"request_id":   requestID,
		"item_indexes": []int{0, 1},
		"prices":       map[string]interface{}{"0": 100, "1": 50},
	}))
	assert.Equal(t, "PO-0001", order["order_number"])
	assert.Equal(t, float64(350), order["total_amount"])
	orderID := order["id"].(string)

	assert.Equal(t, "approved", payload(api.ok(http.MethodPost, "/orders/"+orderID+"/approve", pm, nil))["status"])
	assert.Equal(t, "printed", payload(api.ok(http.MethodPost, "/orders/"+orderID+"/print", printer, nil))["status"])
	assert.Equal(t, "shipped", payload(api.ok(http.MethodPost, "/orders/"+orderID+"/ship", pm, nil))["status"])

	status, body := api.do(http.MethodPost, "/orders/"+orderID+"/print", printer, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATE", errorCode(body))

	delivered := payload(api.ok(http.MethodPost, "/orders/"+orderID+"/deliveries", tracker, map[string]interface{}{
		"items": []map[string]interface{}{
			{"name": "cement", "quantity_delivered": 2},
			{"name": "rebar", "quantity_delivered": 3},
		},
	}))
	assert.Equal(t, "delivered", delivered["order"].(map[string]interface{})["status"])
	assert.Equal(t, "purchase_order_issued", payload(api.ok(http.MethodGet, "/requests/"+requestID, sup, nil))["status"])

	summary := payload(api.ok(http.MethodGet, "/reports/summary", pm, nil))
	assert.Equal(t, float64(350), summary["committed_spend"])
	assert.Equal(t, float64(1000), summary["approval_limit"])

	req, err := http.NewRequest(http.MethodGet, api.base+"/orders/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+pm)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Orders")
	require.NoError(t, err)
	require.Len(t, rows, 4, "header, one row per item and a total row")
	assert.Equal(t, "PO-0001", rows[1][0])
	assert.Equal(t, "Total", rows[3][0])
}
