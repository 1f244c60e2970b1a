package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/services"
)

// CreateProject handles POST /api/v1/projects
func CreateProject(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var req services.ProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	project, err := services.NewDirectoryService(config.GetDB()).CreateProject(c.Request.Context(), user, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, project)
}

// ListProjects handles GET /api/v1/projects
func ListProjects(c *gin.Context) {
	projects, err := services.NewDirectoryService(config.GetDB()).ListProjects(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, projects)
}

// CreateSupplier handles POST /api/v1/suppliers
func CreateSupplier(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var req services.SupplierInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	supplier, err := services.NewDirectoryService(config.GetDB()).CreateSupplier(c.Request.Context(), user, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, supplier)
}

// ListSuppliers handles GET /api/v1/suppliers
func ListSuppliers(c *gin.Context) {
	suppliers, err := services.NewDirectoryService(config.GetDB()).ListSuppliers(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, suppliers)
}
