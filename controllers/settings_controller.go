package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/services"
	"github.com/shopspring/decimal"
)

type approvalLimitBody struct {
	ApprovalLimit decimal.Decimal `json:"approval_limit"`
}

// GetApprovalLimit handles GET /api/v1/settings/approval-limit
func GetApprovalLimit(c *gin.Context) {
	limit, err := services.NewSettingsService(config.GetDB()).ApprovalLimit(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, approvalLimitBody{ApprovalLimit: limit})
}

// UpdateApprovalLimit handles PUT /api/v1/settings/approval-limit
func UpdateApprovalLimit(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var req approvalLimitBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	limit, err := services.NewSettingsService(config.GetDB()).SetApprovalLimit(c.Request.Context(), user, req.ApprovalLimit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, approvalLimitBody{ApprovalLimit: limit})
}
