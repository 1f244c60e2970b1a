package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderInput creates an order from selected request item positions. Prices
// are keyed by the same positions; a missing price is zero and prices for
// unselected positions are ignored.
type OrderInput struct {
	RequestID            string                  `json:"request_id" binding:"required"`
	ItemIndexes          []int                   `json:"item_indexes" binding:"required,min=1"`
	Prices               map[int]decimal.Decimal `json:"prices"`
	CategoryID           *uint                   `json:"category_id"`
	SupplierID           *uint                   `json:"supplier_id"`
	SupplierName         string                  `json:"supplier_name"`
	Notes                string                  `json:"notes"`
	TermsConditions      string                  `json:"terms_conditions"`
	ExpectedDeliveryDate *time.Time              `json:"expected_delivery_date"`
}

// OrderUpdate edits an order. Nil fields are left unchanged.
type OrderUpdate struct {
	Prices               map[int]decimal.Decimal `json:"prices"`
	CategoryID           *uint                   `json:"category_id"`
	SupplierID           *uint                   `json:"supplier_id"`
	SupplierName         *string                 `json:"supplier_name"`
	Notes                *string                 `json:"notes"`
	TermsConditions      *string                 `json:"terms_conditions"`
	InvoiceNumber        *string                 `json:"invoice_number"`
	ExpectedDeliveryDate *time.Time              `json:"expected_delivery_date"`
}

// DeliveryLineInput is one received item.
type DeliveryLineInput struct {
	Name              string `json:"name" binding:"required,nonblank"`
	QuantityDelivered int    `json:"quantity_delivered" binding:"required,gt=0"`
}

// DeliveryInput confirms a receipt against an order.
type DeliveryInput struct {
	Items                 []DeliveryLineInput `json:"items" binding:"required,min=1,dive"`
	DeliveryDate          *time.Time          `json:"delivery_date"`
	SupplierReceiptNumber string              `json:"supplier_receipt_number"`
}

// OrderQuery filters List.
type OrderQuery struct {
	Status     string `form:"status"`
	RequestID  string `form:"request_id"`
	CategoryID uint   `form:"category_id"`
	SupplierID uint   `form:"supplier_id"`
}

// OrderResult carries the order after an operation that may have routed it
// to the general manager instead of doing what was asked.
type OrderResult struct {
	Order          *models.PurchaseOrder
	RedirectedToGM bool
	Message        string
}

const redirectMessage = "Order total exceeds the current approval limit and was sent to the general manager"

// OrderService drives the purchase order lifecycle.
type OrderService struct {
	db     *gorm.DB
	seq    *SequenceAllocator
	audit  AuditRecorder
	notify *Dispatcher
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{
		db:     db,
		seq:    NewSequenceAllocator(nil),
		audit:  auditRecorderFor(db),
		notify: NewDispatcher(nil),
	}
}

// Wait blocks until background audit and notification work is done.
func (s *OrderService) Wait() {
	waitBackground(s.audit, s.notify)
}

// Prices are stored to the cent, so finer values are refused rather than
// rounded differently by the database and by the totals computed here.
func validatePrice(idx int, price decimal.Decimal) error {
	if price.IsNegative() {
		return workflow.Invalid("prices", fmt.Sprintf("price for item %d is negative", idx))
	}
	if !price.Equal(price.Round(2)) {
		return workflow.Invalid("prices", fmt.Sprintf("price for item %d has more than 2 decimal places", idx))
	}
	return nil
}

func validatePrices(prices map[int]decimal.Decimal) error {
	for idx, price := range prices {
		if err := validatePrice(idx, price); err != nil {
			return err
		}
	}
	return nil
}

func loadOrder(ctx context.Context, db *gorm.DB, id string) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, findErr(err, "order", id)
	}
	return &order, nil
}

func loadCategory(ctx context.Context, tx *gorm.DB, id uint) (*models.BudgetCategory, error) {
	var category models.BudgetCategory
	if err := tx.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, findErr(err, "category", id)
	}
	return &category, nil
}

func loadSupplier(ctx context.Context, tx *gorm.DB, id uint) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := tx.WithContext(ctx).First(&supplier, id).Error; err != nil {
		return nil, findErr(err, "supplier", id)
	}
	return &supplier, nil
}

// Create issues an order against an approved or partially ordered request
// and re-derives the request's fulfillment state.
func (s *OrderService) Create(ctx context.Context, actor *models.User, in OrderInput) (*models.PurchaseOrder, error) {
	if !actor.Is(workflow.RoleProcurementManager) {
		return nil, workflow.Forbidden("only procurement managers can create orders")
	}
	if len(in.ItemIndexes) == 0 {
		return nil, workflow.Invalid("item_indexes", "select at least one item")
	}

	var order models.PurchaseOrder
	var requestStatus workflow.RequestStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := loadRequest(ctx, tx, in.RequestID)
		if err != nil {
			return err
		}
		if !req.Status.AcceptsOrders() {
			return &workflow.InvalidStateError{
				Entity:  "request",
				Current: string(req.Status),
				Action:  "create_order",
				Allowed: workflow.RequestMachine.AllowedNames(req.Status),
			}
		}

		items := make([]models.OrderItem, 0, len(in.ItemIndexes))
		seen := make(map[int]bool, len(in.ItemIndexes))
		for _, idx := range in.ItemIndexes {
			if idx < 0 || idx >= len(req.Items) {
				return workflow.Invalid("item_indexes",
					fmt.Sprintf("index %d is out of range for a request with %d items", idx, len(req.Items)))
			}
			if seen[idx] {
				return workflow.Invalid("item_indexes", fmt.Sprintf("index %d is selected twice", idx))
			}
			seen[idx] = true

			src := req.Items[idx]
			price := in.Prices[idx]
			if err := validatePrice(idx, price); err != nil {
				return err
			}
			items = append(items, models.OrderItem{
				Position:      src.Position,
				Name:          src.Name,
				Quantity:      src.Quantity,
				Unit:          src.Unit,
				UnitPrice:     price,
				TotalPrice:    workflow.LineTotal(price, src.Quantity),
				CatalogItemID: resolveCatalogItemID(ctx, tx, src.Name),
			})
		}

		order = models.PurchaseOrder{
			RequestID:            req.ID,
			RequestNumber:        req.RequestNumber,
			ManagerID:            actor.ID,
			ManagerName:          actor.Name,
			Items:                items,
			SupplierName:         strings.TrimSpace(in.SupplierName),
			Notes:                in.Notes,
			TermsConditions:      in.TermsConditions,
			ExpectedDeliveryDate: in.ExpectedDeliveryDate,
		}
		order.TotalAmount = order.SumItems()

		if in.CategoryID != nil {
			category, err := loadCategory(ctx, tx, *in.CategoryID)
			if err != nil {
				return err
			}
			order.CategoryID, order.CategoryName = &category.ID, category.Name
		}
		if in.SupplierID != nil {
			supplier, err := loadSupplier(ctx, tx, *in.SupplierID)
			if err != nil {
				return err
			}
			order.SupplierID, order.SupplierName = &supplier.ID, supplier.Name
		}

		limit, err := approvalLimit(ctx, tx)
		if err != nil {
			return err
		}
		order.NeedsGMApproval = workflow.NeedsGMApproval(order.TotalAmount, limit)
		order.Status = workflow.InitialOrderStatus(order.NeedsGMApproval)

		number, seq, err := s.seq.NextOrderNumber(ctx, tx)
		if err != nil {
			return err
		}
		order.OrderNumber, order.OrderSeq = number, seq
		if err := tx.Create(&order).Error; err != nil {
			return writeErr(err, "order", number, "create order")
		}

		requestStatus, err = recomputeFulfillment(ctx, tx, req.ID)
		return err
	})
	if err != nil {
		return nil, passThrough(err, "create order")
	}

	s.audit.Record(ctx, AuditEntry{
		EntityType:  "order",
		EntityID:    order.ID,
		Action:      "create",
		Actor:       actor,
		Description: fmt.Sprintf("Order %s created for request %s", order.OrderNumber, order.RequestNumber),
		Changes: map[string]interface{}{
			"total_amount":      order.TotalAmount.String(),
			"status":            string(order.Status),
			"needs_gm_approval": order.NeedsGMApproval,
			"request_status":    string(requestStatus),
		},
	})
	if order.NeedsGMApproval {
		s.notifyGMs(ctx, &order)
	}
	return s.Get(ctx, order.ID)
}

// Update edits order details. Price changes recompute line and order totals;
// a total over the current limit forces GM approval and pulls a pending or
// approved order back to pending_gm_approval.
func (s *OrderService) Update(ctx context.Context, actor *models.User, id string, in OrderUpdate) (*OrderResult, error) {
	if !actor.Is(workflow.RoleProcurementManager) {
		return nil, workflow.Forbidden("only procurement managers can edit orders")
	}
	if err := validatePrices(in.Prices); err != nil {
		return nil, err
	}

	result := &OrderResult{}
	changes := map[string]interface{}{}
	var number string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		number = order.OrderNumber
		next, err := workflow.OrderMachine.Next(order.Status, workflow.OrderActionEdit)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if in.CategoryID != nil {
			category, err := loadCategory(ctx, tx, *in.CategoryID)
			if err != nil {
				return err
			}
			updates["category_id"], updates["category_name"] = category.ID, category.Name
		}
		if in.SupplierID != nil {
			supplier, err := loadSupplier(ctx, tx, *in.SupplierID)
			if err != nil {
				return err
			}
			updates["supplier_id"], updates["supplier_name"] = supplier.ID, supplier.Name
		} else if in.SupplierName != nil {
			updates["supplier_id"], updates["supplier_name"] = nil, strings.TrimSpace(*in.SupplierName)
		}
		if in.Notes != nil {
			updates["notes"] = *in.Notes
		}
		if in.TermsConditions != nil {
			updates["terms_conditions"] = *in.TermsConditions
		}
		if in.InvoiceNumber != nil {
			updates["invoice_number"] = *in.InvoiceNumber
		}
		if in.ExpectedDeliveryDate != nil {
			updates["expected_delivery_date"] = *in.ExpectedDeliveryDate
		}

		if len(in.Prices) > 0 {
			positions := make(map[int]bool, len(order.Items))
			for _, item := range order.Items {
				positions[item.Position] = true
			}
			for idx := range in.Prices {
				if !positions[idx] {
					return workflow.Invalid("prices", fmt.Sprintf("item %d is not on order %s", idx, order.OrderNumber))
				}
			}

			for i := range order.Items {
				item := &order.Items[i]
				price, ok := in.Prices[item.Position]
				if !ok {
					continue
				}
				item.UnitPrice = price
				item.TotalPrice = workflow.LineTotal(price, item.Quantity)
				if err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
					"unit_price":  item.UnitPrice,
					"total_price": item.TotalPrice,
				}).Error; err != nil {
					return errors.Wrap(err, "update order item price")
				}
			}

			total := order.SumItems()
			limit, err := approvalLimit(ctx, tx)
			if err != nil {
				return err
			}
			needs := workflow.NeedsGMApproval(total, limit)
			updates["total_amount"] = total
			updates["needs_gm_approval"] = needs
			changes["total_amount"] = map[string]string{"from": order.TotalAmount.String(), "to": total.String()}

			if needs && workflow.OrderMachine.Can(order.Status, workflow.OrderActionEscalate) {
				next, _ = workflow.OrderMachine.Next(order.Status, workflow.OrderActionEscalate)
				updates["approved_at"], updates["approved_by_id"] = nil, nil
				result.RedirectedToGM = true
				result.Message = redirectMessage
			}
		}

		updates["status"] = next
		if next != order.Status {
			changes["status"] = map[string]string{"from": string(order.Status), "to": string(next)}
		}
		res := tx.Model(&models.PurchaseOrder{}).Where("id = ? AND status = ?", id, order.Status).Updates(updates)
		if res.Error != nil {
			return errors.Wrap(res.Error, "update order")
		}
		if res.RowsAffected == 0 {
			return workflow.Conflict("order", id)
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "update order")
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Order = order
	s.audit.Record(ctx, AuditEntry{
		EntityType:  "order",
		EntityID:    id,
		Action:      "update",
		Actor:       actor,
		Description: "Order " + number + " edited",
		Changes:     changes,
	})
	if result.RedirectedToGM {
		s.notifyGMs(ctx, order)
	}
	return result, nil
}

type orderChange func(order *models.PurchaseOrder, now time.Time) map[string]interface{}

// transition re-reads the order, applies the table edge for action and
// writes conditionally on the status it read. It returns the state before
// the write.
func (s *OrderService) transition(ctx context.Context, id string, action workflow.OrderAction, change orderChange) (*models.PurchaseOrder, error) {
	var before *models.PurchaseOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := workflow.OrderMachine.Next(order.Status, action)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if change != nil {
			updates = change(order, time.Now())
		}
		updates["status"] = next

		res := tx.Model(&models.PurchaseOrder{}).Where("id = ? AND status = ?", id, order.Status).Updates(updates)
		if res.Error != nil {
			return errors.Wrapf(res.Error, "%s order", action)
		}
		if res.RowsAffected == 0 {
			return workflow.Conflict("order", id)
		}
		before = order
		return nil
	})
	if err != nil {
		return nil, passThrough(err, string(action)+" order")
	}
	return before, nil
}

// Approve is the procurement manager's approval. The limit is re-read and,
// if the total now exceeds it, the order is sent to the general manager
// instead.
func (s *OrderService) Approve(ctx context.Context, actor *models.User, id string) (*OrderResult, error) {
	if !actor.Is(workflow.RoleProcurementManager) {
		return nil, workflow.Forbidden("only procurement managers can approve orders")
	}

	result := &OrderResult{}
	var before *models.PurchaseOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := workflow.OrderMachine.Next(order.Status, workflow.OrderActionApprove)
		if err != nil {
			return err
		}
		limit, err := approvalLimit(ctx, tx)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{}
		if workflow.NeedsGMApproval(order.TotalAmount, limit) {
			next, err = workflow.OrderMachine.Next(order.Status, workflow.OrderActionEscalate)
			if err != nil {
				return err
			}
			updates["needs_gm_approval"] = true
			result.RedirectedToGM = true
			result.Message = redirectMessage
		} else {
			updates["approved_at"] = now
			updates["approved_by_id"] = actor.ID
		}
		updates["status"] = next

		res := tx.Model(&models.PurchaseOrder{}).Where("id = ? AND status = ?", id, order.Status).Updates(updates)
		if res.Error != nil {
			return errors.Wrap(res.Error, "approve order")
		}
		if res.RowsAffected == 0 {
			return workflow.Conflict("order", id)
		}
		before = order
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "approve order")
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Order = order
	if result.RedirectedToGM {
		s.recordTransition(ctx, actor, before, order, "escalate", "Sent to general manager on approval")
		s.notifyGMs(ctx, order)
	} else {
		s.recordTransition(ctx, actor, before, order, "approve", "Approved by procurement manager")
	}
	return result, nil
}

// GMApprove is the general manager's approval of an escalated order.
func (s *OrderService) GMApprove(ctx context.Context, actor *models.User, id string) (*models.PurchaseOrder, error) {
	if !actor.Is(workflow.RoleGeneralManager) {
		return nil, workflow.Forbidden("only the general manager can approve escalated orders")
	}
	before, err := s.transition(ctx, id, workflow.OrderActionGMApprove, func(_ *models.PurchaseOrder, now time.Time) map[string]interface{} {
		return map[string]interface{}{
			"gm_approved_at":      now,
			"gm_approved_by_id":   actor.ID,
			"gm_approved_by_name": actor.Name,
		}
	})
	if err != nil {
		return nil, err
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordTransition(ctx, actor, before, order, "gm_approve", "Approved by general manager")
	s.notify.Send(ctx, emailOf(ctx, s.db, order.ManagerID),
		fmt.Sprintf("Purchase order %s approved by the general manager", order.OrderNumber),
		messageBody(fmt.Sprintf("%s approved order %s.", actor.Name, order.OrderNumber)))
	return order, nil
}

// GMReject ends an escalated order. The reason is required.
func (s *OrderService) GMReject(ctx context.Context, actor *models.User, id, reason string) (*models.PurchaseOrder, error) {
	if !actor.Is(workflow.RoleGeneralManager) {
		return nil, workflow.Forbidden("only the general manager can reject escalated orders")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, workflow.Invalid("reason", "a rejection reason is required")
	}
	before, err := s.transition(ctx, id, workflow.OrderActionGMReject, func(_ *models.PurchaseOrder, now time.Time) map[string]interface{} {
		return map[string]interface{}{
			"gm_rejection_reason": reason,
			"gm_rejected_by_id":   actor.ID,
			"gm_rejected_by_name": actor.Name,
			"gm_rejected_at":      now,
		}
	})
	if err != nil {
		return nil, err
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordTransition(ctx, actor, before, order, "gm_reject", "Rejected by general manager: "+reason)
	s.notify.Send(ctx, emailOf(ctx, s.db, order.ManagerID),
		fmt.Sprintf("Purchase order %s rejected by the general manager", order.OrderNumber),
		messageBody(fmt.Sprintf("%s rejected order %s.", actor.Name, order.OrderNumber), "Reason: "+reason))
	return order, nil
}

// Print marks an approved order as printed.
func (s *OrderService) Print(ctx context.Context, actor *models.User, id string) (*models.PurchaseOrder, error) {
	if !actor.Is(workflow.RolePrinter) {
		return nil, workflow.Forbidden("only the printer role can print orders")
	}
	before, err := s.transition(ctx, id, workflow.OrderActionPrint, func(_ *models.PurchaseOrder, now time.Time) map[string]interface{} {
		return map[string]interface{}{"printed_at": now}
	})
	if err != nil {
		return nil, err
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordTransition(ctx, actor, before, order, "print", "Printed")
	return order, nil
}

// Ship marks a printed or approved order as shipped.
func (s *OrderService) Ship(ctx context.Context, actor *models.User, id string) (*models.PurchaseOrder, error) {
	if !actor.Is(workflow.RoleProcurementManager, workflow.RolePrinter) {
		return nil, workflow.Forbidden("only procurement managers or printers can ship orders")
	}
	before, err := s.transition(ctx, id, workflow.OrderActionShip, func(_ *models.PurchaseOrder, now time.Time) map[string]interface{} {
		return map[string]interface{}{"shipped_at": now}
	})
	if err != nil {
		return nil, err
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordTransition(ctx, actor, before, order, "ship", "Shipped")
	return order, nil
}

// RecordDelivery applies a receipt to the order items, appends a delivery
// record and moves the order to partially_delivered or delivered.
func (s *OrderService) RecordDelivery(ctx context.Context, actor *models.User, id string, in DeliveryInput) (*models.PurchaseOrder, *models.DeliveryRecord, error) {
	if !actor.Is(workflow.RoleSupervisor, workflow.RoleEngineer, workflow.RoleProcurementManager, workflow.RoleDeliveryTracker) {
		return nil, nil, workflow.Forbidden("your role cannot record deliveries")
	}
	if len(in.Items) == 0 {
		return nil, nil, workflow.Invalid("items", "at least one delivered item is required")
	}
	lines := make([]workflow.DeliveredLine, len(in.Items))
	recordLines := make(datatypes.JSONSlice[models.DeliveryLine], len(in.Items))
	for i, line := range in.Items {
		name := strings.TrimSpace(line.Name)
		lines[i] = workflow.DeliveredLine{Name: name, Quantity: line.QuantityDelivered}
		recordLines[i] = models.DeliveryLine{Name: name, QuantityDelivered: line.QuantityDelivered}
	}

	var before *models.PurchaseOrder
	var record models.DeliveryRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if !workflow.CanRecordDelivery(order.Status) {
			return &workflow.InvalidStateError{
				Entity:  "order",
				Current: string(order.Status),
				Action:  "record_delivery",
				Allowed: workflow.OrderMachine.AllowedNames(order.Status),
			}
		}

		applied, err := workflow.ApplyDelivery(order.LineItems(), lines)
		if err != nil {
			return err
		}
		next := order.Status
		if action, ok := workflow.ClassifyDelivery(applied).Action(); ok {
			if next, err = workflow.OrderMachine.Next(order.Status, action); err != nil {
				return err
			}
		}

		for i, item := range order.Items {
			if applied[i].Delivered == item.DeliveredQuantity {
				continue
			}
			res := tx.Model(&models.OrderItem{}).
				Where("id = ? AND delivered_quantity = ?", item.ID, item.DeliveredQuantity).
				Update("delivered_quantity", applied[i].Delivered)
			if res.Error != nil {
				return errors.Wrap(res.Error, "update delivered quantity")
			}
			if res.RowsAffected == 0 {
				return workflow.Conflict("order", id)
			}
		}

		now := time.Now()
		updates := map[string]interface{}{"status": next}
		if next == workflow.OrderDelivered {
			updates["delivered_at"] = now
		}
		res := tx.Model(&models.PurchaseOrder{}).Where("id = ? AND status = ?", id, order.Status).Updates(updates)
		if res.Error != nil {
			return errors.Wrap(res.Error, "record delivery")
		}
		if res.RowsAffected == 0 {
			return workflow.Conflict("order", id)
		}

		record = models.DeliveryRecord{
			OrderID:               id,
			Lines:                 recordLines,
			DeliveryDate:          now,
			ReceivedByID:          actor.ID,
			ReceivedBy:            actor.Name,
			SupplierReceiptNumber: in.SupplierReceiptNumber,
		}
		if in.DeliveryDate != nil {
			record.DeliveryDate = *in.DeliveryDate
		}
		if err := tx.Create(&record).Error; err != nil {
			return errors.Wrap(err, "append delivery record")
		}
		before = order
		return nil
	})
	if err != nil {
		return nil, nil, passThrough(err, "record delivery")
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	s.recordTransition(ctx, actor, before, order, "deliver", fmt.Sprintf("Delivery of %d lines recorded", len(recordLines)))
	if order.Status == workflow.OrderDelivered {
		var req models.MaterialRequest
		if err := s.db.WithContext(ctx).Select("supervisor_id").Where("id = ?", order.RequestID).Take(&req).Error; err == nil {
			s.notify.Send(ctx, emailOf(ctx, s.db, req.SupervisorID),
				fmt.Sprintf("Purchase order %s fully delivered", order.OrderNumber),
				messageBody(fmt.Sprintf("All items on order %s for request %s have arrived.", order.OrderNumber, order.RequestNumber)))
		}
	}
	return order, &record, nil
}

// Delete removes an order with its deliveries and attachments, then
// re-derives the request status from whatever orders remain.
func (s *OrderService) Delete(ctx context.Context, actor *models.User, id string) error {
	if !actor.Is(workflow.RoleProcurementManager) {
		return workflow.Forbidden("only procurement managers can delete orders")
	}

	var (
		order         *models.PurchaseOrder
		storedKeys    []string
		requestStatus workflow.RequestStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if order, err = loadOrder(ctx, tx, id); err != nil {
			return err
		}
		if storedKeys, err = deleteOrderRows(tx, []string{id}); err != nil {
			return err
		}
		requestStatus, err = recomputeFulfillment(ctx, tx, order.RequestID)
		if workflow.IsNotFound(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return passThrough(err, "delete order")
	}

	removeStoredObjects(ctx, storedKeys)
	s.audit.Record(ctx, AuditEntry{
		EntityType:  "order",
		EntityID:    id,
		Action:      "delete",
		Actor:       actor,
		Description: fmt.Sprintf("Order %s deleted", order.OrderNumber),
		Changes:     map[string]interface{}{"request_status": string(requestStatus)},
	})
	return nil
}

func (s *OrderService) recordTransition(ctx context.Context, actor *models.User, before, after *models.PurchaseOrder, action, description string) {
	s.audit.Record(ctx, AuditEntry{
		EntityType:  "order",
		EntityID:    after.ID,
		Action:      action,
		Actor:       actor,
		Description: fmt.Sprintf("%s (%s)", description, after.OrderNumber),
		Changes:     map[string]interface{}{"from_status": string(before.Status), "to_status": string(after.Status)},
	})
}

func (s *OrderService) notifyGMs(ctx context.Context, order *models.PurchaseOrder) {
	s.notify.Send(ctx, emailsByRole(ctx, s.db, workflow.RoleGeneralManager),
		fmt.Sprintf("Purchase order %s needs your approval", order.OrderNumber),
		messageBody(
			fmt.Sprintf("Order %s for request %s totals %s.", order.OrderNumber, order.RequestNumber, order.TotalAmount.StringFixed(2)),
			"It exceeds the approval limit and requires general manager approval.",
		))
}

// Get loads an order with its items.
func (s *OrderService) Get(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	return loadOrder(ctx, s.db, id)
}

// List returns orders newest first.
func (s *OrderService) List(ctx context.Context, q OrderQuery) ([]models.PurchaseOrder, error) {
	query := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Order("order_seq DESC")
	if q.Status != "" {
		status := workflow.OrderStatus(q.Status)
		if !status.IsValid() {
			return nil, workflow.Invalid("status", fmt.Sprintf("unknown order status %q", q.Status))
		}
		query = query.Where("status = ?", status)
	}
	if q.RequestID != "" {
		query = query.Where("request_id = ?", q.RequestID)
	}
	if q.CategoryID != 0 {
		query = query.Where("category_id = ?", q.CategoryID)
	}
	if q.SupplierID != 0 {
		query = query.Where("supplier_id = ?", q.SupplierID)
	}

	var orders []models.PurchaseOrder
	if err := query.Find(&orders).Error; err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Deliveries returns the delivery records of an order, oldest first.
func (s *OrderService) Deliveries(ctx context.Context, id string) ([]models.DeliveryRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	var records []models.DeliveryRecord
	err := s.db.WithContext(ctx).Where("order_id = ?", id).Order("created_at ASC").Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "list deliveries")
	}
	return records, nil
}
