package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/services"
	"go.uber.org/zap"
)

type gmRejectRequest struct {
	Reason string `json:"reason" binding:"required,nonblank"`
}

// respondOrderResult writes an order that may have been redirected to the
// general manager. The redirect is informational, not an error.
func respondOrderResult(c *gin.Context, result *services.OrderResult) {
	if !result.RedirectedToGM {
		respond(c, http.StatusOK, result.Order)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"data":             result.Order,
		"redirected_to_gm": true,
		"message":          result.Message,
	})
}

type orderTransition func(s *services.OrderService, c *gin.Context, user *models.User, id string) (*models.PurchaseOrder, error)

func runOrderTransition(c *gin.Context, fn orderTransition) {
	user, ok := actor(c)
	if !ok {
		return
	}
	order, err := fn(services.NewOrderService(config.GetDB()), c, user, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

// CreateOrder handles POST /api/v1/orders (procurement managers only)
func CreateOrder(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var in services.OrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	order, err := services.NewOrderService(config.GetDB()).Create(c.Request.Context(), user, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders with optional filters
func ListOrders(c *gin.Context) {
	var q services.OrderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	orders, err := services.NewOrderService(config.GetDB()).List(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, orders)
}

// ExportOrders handles GET /api/v1/orders/export and streams an .xlsx file
func ExportOrders(c *gin.Context) {
	var q services.OrderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	file, name, err := services.NewExportService(config.GetDB()).ExportOrders(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			config.L().Debug("closing export workbook", zap.Error(err))
		}
	}()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Status(http.StatusOK)
	if err := file.Write(c.Writer); err != nil {
		config.L().Error("writing order export", zap.Error(err))
	}
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	order, err := services.NewOrderService(config.GetDB()).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

// UpdateOrder handles PUT /api/v1/orders/:id. A price change that pushes the
// total over the approval limit sends the order to the general manager.
func UpdateOrder(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var in services.OrderUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := services.NewOrderService(config.GetDB()).Update(c.Request.Context(), user, c.Param("id"), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrderResult(c, result)
}

// ApproveOrder handles POST /api/v1/orders/:id/approve
func ApproveOrder(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	result, err := services.NewOrderService(config.GetDB()).Approve(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrderResult(c, result)
}

// GMApproveOrder handles POST /api/v1/orders/:id/gm-approve
func GMApproveOrder(c *gin.Context) {
	runOrderTransition(c, func(s *services.OrderService, c *gin.Context, user *models.User, id string) (*models.PurchaseOrder, error) {
		return s.GMApprove(c.Request.Context(), user, id)
	})
}

// GMRejectOrder handles POST /api/v1/orders/:id/gm-reject
func GMRejectOrder(c *gin.Context) {
	var body gmRejectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	runOrderTransition(c, func(s *services.OrderService, c *gin.Context, user *models.User, id string) (*models.PurchaseOrder, error) {
		return s.GMReject(c.Request.Context(), user, id, body.Reason)
	})
}

// PrintOrder handles POST /api/v1/orders/:id/print
func PrintOrder(c *gin.Context) {
	runOrderTransition(c, func(s *services.OrderService, c *gin.Context, user *models.User, id string) (*models.PurchaseOrder, error) {
		return s.Print(c.Request.Context(), user, id)
	})
}

// ShipOrder handles POST /api/v1/orders/:id/ship
func ShipOrder(c *gin.Context) {
	runOrderTransition(c, func(s *services.OrderService, c *gin.Context, user *models.User, id string) (*models.PurchaseOrder, error) {
		return s.Ship(c.Request.Context(), user, id)
	})
}

// RecordDelivery handles POST /api/v1/orders/:id/deliveries
func RecordDelivery(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var in services.DeliveryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBindError(c, err)
		return
	}
	order, record, err := services.NewOrderService(config.GetDB()).RecordDelivery(c.Request.Context(), user, c.Param("id"), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"order":    order,
		"delivery": record,
	})
}

// ListDeliveries handles GET /api/v1/orders/:id/deliveries
func ListDeliveries(c *gin.Context) {
	records, err := services.NewOrderService(config.GetDB()).Deliveries(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, records)
}

// DeleteOrder handles DELETE /api/v1/orders/:id
func DeleteOrder(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	if err := services.NewOrderService(config.GetDB()).Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order deleted",
	})
}
