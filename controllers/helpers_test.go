package controllers

import (
	"bytes"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB installs a fresh database and a recorder whose background
// writes are drained before the database closes.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.NewTestDB(t)
	config.SetDB(db)

	recorder := services.NewDBAuditRecorder(db)
	services.SetAuditRecorder(recorder)
	t.Cleanup(func() {
		recorder.Wait()
		services.SetAuditRecorder(nil)
	})
	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// asUser authenticates as user and loads the registered account
func asUser(user *models.User) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		testutil.MockAuth(user.Auth0ID, string(user.Role)),
		middleware.LoadCurrentUser(),
	}
}

func mount(router *gin.Engine, method, path string, user *models.User, handler gin.HandlerFunc) {
	handlers := append(asUser(user), handler)
	router.Handle(method, path, handlers...)
}

func doJSON(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return response
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) map[string]interface{} {
	t.Helper()
	assert.Equal(t, status, w.Code, "body: %s", w.Body.String())
	response := decode(t, w)
	assert.Equal(t, false, response["success"])
	errorData, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "error envelope missing")
	assert.Equal(t, code, errorData["code"])
	return errorData
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	response := decode(t, w)
	assert.Equal(t, true, response["success"])
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "data is not an object: %s", w.Body.String())
	return data
}

func listOf(t *testing.T, w *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	response := decode(t, w)
	assert.Equal(t, true, response["success"])
	data, ok := response["data"].([]interface{})
	require.True(t, ok, "data is not a list: %s", w.Body.String())
	return data
}
