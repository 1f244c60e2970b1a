package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/services"
)

// reasonRequest is the body of every rejection endpoint
type reasonRequest struct {
	Reason string `json:"reason" binding:"required,nonblank"`
}

type requestTransition func(s *services.RequestService, c *gin.Context, user *models.User, id string) (*models.MaterialRequest, error)

// runRequestTransition resolves the caller, runs fn and writes the
// refreshed request.
func runRequestTransition(c *gin.Context, fn requestTransition) {
	user, ok := actor(c)
	if !ok {
		return
	}
	req, err := fn(services.NewRequestService(config.GetDB()), c, user, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, req)
}

// CreateRequest handles POST /api/v1/requests (supervisors only)
func CreateRequest(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var in services.RequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	req, err := services.NewRequestService(config.GetDB()).Create(c.Request.Context(), user, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, req)
}

// ListRequests handles GET /api/v1/requests. Supervisors see their own
// requests and engineers those assigned to them.
func ListRequests(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var q services.RequestQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	requests, err := services.NewRequestService(config.GetDB()).List(c.Request.Context(), user, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, requests)
}

// GetRequest handles GET /api/v1/requests/:id
func GetRequest(c *gin.Context) {
	runRequestTransition(c, func(s *services.RequestService, c *gin.Context, user *models.User, id string) (*models.MaterialRequest, error) {
		return s.Find(c.Request.Context(), user, id)
	})
}

// UpdateRequest handles PUT /api/v1/requests/:id while the engineer has not
// yet decided
func UpdateRequest(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var in services.RequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	req, err := services.NewRequestService(config.GetDB()).Update(c.Request.Context(), user, c.Param("id"), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, req)
}

// ApproveRequest handles POST /api/v1/requests/:id/approve
func ApproveRequest(c *gin.Context) {
	runRequestTransition(c, func(s *services.RequestService, c *gin.Context, user *models.User, id string) (*models.MaterialRequest, error) {
		return s.Approve(c.Request.Context(), user, id)
	})
}

// RejectRequest handles POST /api/v1/requests/:id/reject
func RejectRequest(c *gin.Context) {
	var body reasonRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	runRequestTransition(c, func(s *services.RequestService, c *gin.Context, user *models.User, id string) (*models.MaterialRequest, error) {
		return s.RejectByEngineer(c.Request.Context(), user, id, body.Reason)
	})
}

// ManagerRejectRequest handles POST /api/v1/requests/:id/manager-reject
func ManagerRejectRequest(c *gin.Context) {
	var body reasonRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	runRequestTransition(c, func(s *services.RequestService, c *gin.Context, user *models.User, id string) (*models.MaterialRequest, error) {
		return s.RejectByManager(c.Request.Context(), user, id, body.Reason)
	})
}

// ResubmitRequest handles POST /api/v1/requests/:id/resubmit
func ResubmitRequest(c *gin.Context) {
	runRequestTransition(c, func(s *services.RequestService, c *gin.Context, user *models.User, id string) (*models.MaterialRequest, error) {
		return s.Resubmit(c.Request.Context(), user, id)
	})
}

// DeleteRequest handles DELETE /api/v1/requests/:id, removing its orders too
func DeleteRequest(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	if err := services.NewRequestService(config.GetDB()).Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Request deleted",
	})
}
