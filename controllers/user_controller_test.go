package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/middleware"
	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/services"
	"github.com/kendall-kelly/procurement-api/testutil"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMockAuth0Server simulates Auth0's /userinfo endpoint, keyed by token
func setupMockAuth0Server(t *testing.T, profiles map[string]services.UserInfo) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		header := r.Header.Get("Authorization")
		if len(header) < 7 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		profile, ok := profiles[header[7:]]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(profile)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name           string
		auth0ID        string
		role           string
		body           map[string]interface{}
		expectedStatus int
		expectedError  string
		check          func(t *testing.T, data map[string]interface{})
	}{
		{
			name:           "Register a supervisor and assign a prefix",
			auth0ID:        "auth0|sup1",
			role:           "supervisor",
			body:           map[string]interface{}{"name": "Sam Site", "email": "sam@example.com"},
			expectedStatus: http.StatusCreated,
			check: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, "supervisor", data["role"])
				assert.Equal(t, "A", data["prefix"])
				assert.Equal(t, "auth0|sup1", data["auth0_id"])
			},
		},
		{
			name:           "Register an engineer without a prefix",
			auth0ID:        "auth0|eng1",
			role:           "engineer",
			body:           map[string]interface{}{"name": "Erin", "email": "erin@example.com"},
			expectedStatus: http.StatusCreated,
			check: func(t *testing.T, data map[string]interface{}) {
				assert.Nil(t, data["prefix"])
			},
		},
		{
			name:           "Token without role",
			auth0ID:        "auth0|norole",
			role:           "",
			body:           map[string]interface{}{"name": "N", "email": "n@example.com"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "MISSING_ROLE",
		},
		{
			name:           "Token with unknown role",
			auth0ID:        "auth0|bad",
			role:           "customer",
			body:           map[string]interface{}{"name": "C", "email": "c@example.com"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_ROLE",
		},
		{
			name:           "Invalid email",
			auth0ID:        "auth0|eng2",
			role:           "engineer",
			body:           map[string]interface{}{"name": "E", "email": "nope"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestDB(t)
			router := setupTestRouter()
			router.POST("/users", testutil.MockAuth(tt.auth0ID, tt.role), CreateUser)

			w := doJSON(router, http.MethodPost, "/users", tt.body)
			if tt.expectedError != "" {
				assertErrorCode(t, w, tt.expectedStatus, tt.expectedError)
				return
			}
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, dataOf(t, w))
			}
		})
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	testutil.CreateUser(t, db, "erin", workflow.RoleEngineer)

	router := setupTestRouter()
	router.POST("/users", testutil.MockAuth("auth0|erin", "engineer"), CreateUser)

	w := doJSON(router, http.MethodPost, "/users", map[string]interface{}{"name": "Erin", "email": "erin2@example.com"})
	assertErrorCode(t, w, http.StatusConflict, "USER_EXISTS")
}

func TestCreateUser_FromAuth0Profile(t *testing.T) {
	setupTestDB(t)
	server := setupMockAuth0Server(t, map[string]services.UserInfo{
		"mock-token": {Sub: "auth0|gm", Name: "Gail Manager", Email: "gail@example.com"},
	})
	config.SetConfig(&config.Config{Auth0Domain: server.URL, Auth0Audience: "https://api.test"})
	t.Cleanup(func() { config.SetConfig(nil) })

	router := setupTestRouter()
	router.POST("/users", testutil.MockAuth("auth0|gm", "general_manager"), CreateUser)

	w := doJSON(router, http.MethodPost, "/users", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataOf(t, w)
	assert.Equal(t, "Gail Manager", data["name"])
	assert.Equal(t, "gail@example.com", data["email"])
	assert.Equal(t, "general_manager", data["role"])
}

func TestCreateUser_Auth0Unavailable(t *testing.T) {
	setupTestDB(t)
	server := setupMockAuth0Server(t, map[string]services.UserInfo{})
	config.SetConfig(&config.Config{Auth0Domain: server.URL, Auth0Audience: "https://api.test"})
	t.Cleanup(func() { config.SetConfig(nil) })

	router := setupTestRouter()
	router.POST("/users", testutil.MockAuth("auth0|gm", "general_manager"), CreateUser)

	w := doJSON(router, http.MethodPost, "/users", nil)
	assertErrorCode(t, w, http.StatusBadGateway, "AUTH0_ERROR")
}

func TestGetMyProfile(t *testing.T) {
	db := setupTestDB(t)
	pat := testutil.CreateUser(t, db, "pat", workflow.RoleProcurementManager)

	router := setupTestRouter()
	mount(router, http.MethodGet, "/users/me", pat, GetMyProfile)
	router.GET("/stranger/me", append(asUser(&models.User{Auth0ID: "auth0|ghost", Role: workflow.RoleEngineer}), GetMyProfile)...)

	w := doJSON(router, http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, "pat", data["name"])
	assert.Equal(t, "procurement_manager", data["role"])

	w = doJSON(router, http.MethodGet, "/stranger/me", nil)
	assertErrorCode(t, w, http.StatusForbidden, "USER_NOT_REGISTERED")
}

func TestUpdateMyProfile(t *testing.T) {
	db := setupTestDB(t)
	pat := testutil.CreateUser(t, db, "pat", workflow.RoleProcurementManager)
	testutil.CreateUser(t, db, "erin", workflow.RoleEngineer)

	router := setupTestRouter()
	mount(router, http.MethodPut, "/users/me", pat, UpdateMyProfile)

	w := doJSON(router, http.MethodPut, "/users/me", map[string]interface{}{"name": "Patricia"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, w)
	assert.Equal(t, "Patricia", data["name"])
	assert.Equal(t, "pat@example.com", data["email"])

	w = doJSON(router, http.MethodPut, "/users/me", map[string]interface{}{"email": "not-an-email"})
	assertErrorCode(t, w, http.StatusBadRequest, "VALIDATION_ERROR")

	w = doJSON(router, http.MethodPut, "/users/me", map[string]interface{}{"email": "erin@example.com"})
	assertErrorCode(t, w, http.StatusConflict, "EMAIL_EXISTS")
}

func TestListUsers(t *testing.T) {
	db := setupTestDB(t)
	sam := testutil.CreateUser(t, db, "sam", workflow.RoleSupervisor)
	testutil.CreateUser(t, db, "erin", workflow.RoleEngineer)
	testutil.CreateUser(t, db, "eli", workflow.RoleEngineer)

	router := setupTestRouter()
	mount(router, http.MethodGet, "/users", sam, ListUsers)

	w := doJSON(router, http.MethodGet, "/users?role=engineer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	engineers := listOf(t, w)
	require.Len(t, engineers, 2)
	assert.Equal(t, "eli", engineers[0].(map[string]interface{})["name"])

	w = doJSON(router, http.MethodGet, "/users?role=wizard", nil)
	assertErrorCode(t, w, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestRoutesRequireRegisteredUser(t *testing.T) {
	setupTestDB(t)
	router := setupTestRouter()
	router.GET("/users", middleware.LoadCurrentUser(), ListUsers)
	router.GET("/anon", func(c *gin.Context) { GetMyProfile(c) })

	w := doJSON(router, http.MethodGet, "/users", nil)
	assertErrorCode(t, w, http.StatusUnauthorized, "UNAUTHORIZED")

	w = doJSON(router, http.MethodGet, "/anon", nil)
	assertErrorCode(t, w, http.StatusUnauthorized, "UNAUTHORIZED")
}
