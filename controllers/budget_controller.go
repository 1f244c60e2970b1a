package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/services"
)

// CreateCategory handles POST /api/v1/categories
func CreateCategory(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var req services.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	category, err := services.NewBudgetService(config.GetDB()).CreateCategory(c.Request.Context(), user, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, category)
}

// ListCategories handles GET /api/v1/categories
func ListCategories(c *gin.Context) {
	categories, err := services.NewBudgetService(config.GetDB()).ListCategories(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, categories)
}

// BudgetReport handles GET /api/v1/categories/report
func BudgetReport(c *gin.Context) {
	report, err := services.NewBudgetService(config.GetDB()).Report(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, report)
}
