package main

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/controllers"
	"github.com/kendall-kelly/procurement-api/middleware"
	"github.com/kendall-kelly/procurement-api/workflow"
)

// newRouter wires every route under /api/v1. auth verifies the bearer
// token; routes other than registration also require a registered user.
func newRouter(cfg *config.Config, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(config.L()))
	router.Use(cors.New(corsConfig(cfg)))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	v1 := router.Group("/api/v1")
	v1.GET("/health", healthCheck)
	v1.GET("/database/status", databaseStatus)

	authed := v1.Group("", auth)
	authed.POST("/users", controllers.CreateUser)

	api := authed.Group("", middleware.LoadCurrentUser())
	{
		api.GET("/users/me", controllers.GetMyProfile)
		api.PUT("/users/me", controllers.UpdateMyProfile)
		api.GET("/users", controllers.ListUsers)

		api.GET("/projects", controllers.ListProjects)
		api.POST("/projects", controllers.CreateProject)
		api.GET("/suppliers", controllers.ListSuppliers)
		api.POST("/suppliers", controllers.CreateSupplier)
		api.GET("/categories", controllers.ListCategories)
		api.POST("/categories", controllers.CreateCategory)
		api.GET("/categories/report", controllers.BudgetReport)

		api.GET("/catalog", controllers.ListCatalog)
		api.POST("/catalog", controllers.CreateCatalogItem)
		api.GET("/catalog/match", controllers.MatchCatalogItem)
		api.POST("/catalog/:id/aliases", controllers.AddCatalogAlias)

		api.GET("/settings/approval-limit", controllers.GetApprovalLimit)
		api.PUT("/settings/approval-limit", controllers.UpdateApprovalLimit)

		api.POST("/requests", controllers.CreateRequest)
		api.GET("/requests", controllers.ListRequests)
		api.GET("/requests/:id", controllers.GetRequest)
		api.PUT("/requests/:id", controllers.UpdateRequest)
		api.DELETE("/requests/:id", controllers.DeleteRequest)
		api.POST("/requests/:id/approve", controllers.ApproveRequest)
		api.POST("/requests/:id/reject", controllers.RejectRequest)
		api.POST("/requests/:id/manager-reject", controllers.ManagerRejectRequest)
		api.POST("/requests/:id/resubmit", controllers.ResubmitRequest)

		managers := middleware.RequireRole(workflow.RoleProcurementManager, workflow.RoleGeneralManager, workflow.RoleAdmin)

		api.POST("/orders", controllers.CreateOrder)
		api.GET("/orders", controllers.ListOrders)
		api.GET("/orders/export", managers, controllers.ExportOrders)
		api.GET("/orders/:id", controllers.GetOrder)
		api.PUT("/orders/:id", controllers.UpdateOrder)
		api.DELETE("/orders/:id", controllers.DeleteOrder)
		api.POST("/orders/:id/approve", controllers.ApproveOrder)
		api.POST("/orders/:id/gm-approve", controllers.GMApproveOrder)
		api.POST("/orders/:id/gm-reject", controllers.GMRejectOrder)
		api.POST("/orders/:id/print", controllers.PrintOrder)
		api.POST("/orders/:id/ship", controllers.ShipOrder)
		api.POST("/orders/:id/deliveries", controllers.RecordDelivery)
		api.GET("/orders/:id/deliveries", controllers.ListDeliveries)

		api.POST("/orders/:id/attachments", controllers.UploadAttachment)
		api.GET("/orders/:id/attachments", controllers.ListAttachments)
		api.DELETE("/attachments/:id", controllers.DeleteAttachment)

		api.GET("/audit-logs", managers, controllers.ListAuditLogs)
		api.GET("/reports/summary", controllers.Summary)
	}

	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if cfg == nil || len(cfg.CORSAllowedOrigins) == 0 || slices.Contains(cfg.CORSAllowedOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSAllowedOrigins
	}
	return c
}
