package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/services"
)

type aliasRequest struct {
	Alias string `json:"alias" binding:"required,nonblank"`
}

// CreateCatalogItem handles POST /api/v1/catalog
func CreateCatalogItem(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var req services.CatalogItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	item, err := services.NewCatalogService(config.GetDB()).Create(c.Request.Context(), user, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, item)
}

// ListCatalog handles GET /api/v1/catalog
func ListCatalog(c *gin.Context) {
	items, err := services.NewCatalogService(config.GetDB()).List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, items)
}

// AddCatalogAlias handles POST /api/v1/catalog/:id/aliases
func AddCatalogAlias(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req aliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	item, err := services.NewCatalogService(config.GetDB()).AddAlias(c.Request.Context(), user, id, req.Alias)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, item)
}

// MatchCatalogItem handles GET /api/v1/catalog/match?name=
func MatchCatalogItem(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name is required", nil)
		return
	}
	item, err := services.NewCatalogService(config.GetDB()).Match(c.Request.Context(), name)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, item)
}
