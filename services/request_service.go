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

// RequestItemInput is one requested line.
type RequestItemInput struct {
	Name           string           `json:"name" binding:"required,nonblank"`
	Quantity       int              `json:"quantity" binding:"required,gt=0"`
	Unit           string           `json:"unit"`
	EstimatedPrice *decimal.Decimal `json:"estimated_price"`
}

// RequestInput is the body of a create or edit.
type RequestInput struct {
	ProjectID            uint               `json:"project_id" binding:"required"`
	EngineerID           uint               `json:"engineer_id" binding:"required"`
	Reason               string             `json:"reason"`
	ExpectedDeliveryDate *time.Time         `json:"expected_delivery_date"`
	Items                []RequestItemInput `json:"items" binding:"required,min=1,dive"`
}

// RequestQuery filters List.
type RequestQuery struct {
	Status    string `form:"status"`
	ProjectID uint   `form:"project_id"`
}

// RequestService drives the material request lifecycle.
type RequestService struct {
	db     *gorm.DB
	seq    *SequenceAllocator
	audit  AuditRecorder
	notify *Dispatcher
}

func NewRequestService(db *gorm.DB) *RequestService {
	return &RequestService{
		db:     db,
		seq:    NewSequenceAllocator(nil),
		audit:  auditRecorderFor(db),
		notify: NewDispatcher(nil),
	}
}

func validateRequestInput(in RequestInput) error {
	if in.ProjectID == 0 {
		return workflow.Invalid("project_id", "is required")
	}
	if in.EngineerID == 0 {
		return workflow.Invalid("engineer_id", "is required")
	}
	if len(in.Items) == 0 {
		return workflow.Invalid("items", "at least one item is required")
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.Name) == "" {
			return workflow.Invalid("items", fmt.Sprintf("item %d has no name", i))
		}
		if item.Quantity <= 0 {
			return workflow.Invalid("items", fmt.Sprintf("item %d quantity must be positive", i))
		}
		if item.EstimatedPrice != nil && item.EstimatedPrice.IsNegative() {
			return workflow.Invalid("items", fmt.Sprintf("item %d estimated price is negative", i))
		}
	}
	return nil
}

func buildRequestItems(requestID string, in []RequestItemInput) []models.MaterialItem {
	items := make([]models.MaterialItem, len(in))
	for i, item := range in {
		items[i] = models.MaterialItem{
			RequestID: requestID,
			Position:  i,
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			Unit:      item.Unit,
		}
		if item.EstimatedPrice != nil {
			items[i].EstimatedPrice = decimal.NewNullDecimal(*item.EstimatedPrice)
		}
	}
	return items
}

// resolveRequestRefs checks that the project exists and that the engineer is
// a user holding the engineer role.
func resolveRequestRefs(ctx context.Context, tx *gorm.DB, in RequestInput) (*models.Project, *models.User, error) {
	var project models.Project
	if err := tx.WithContext(ctx).First(&project, in.ProjectID).Error; err != nil {
		return nil, nil, findErr(err, "project", in.ProjectID)
	}
	var engineer models.User
	err := tx.WithContext(ctx).Where("id = ? AND role = ?", in.EngineerID, workflow.RoleEngineer).First(&engineer).Error
	if err != nil {
		return nil, nil, findErr(err, "engineer", in.EngineerID)
	}
	return &project, &engineer, nil
}

func loadRequest(ctx context.Context, db *gorm.DB, id string) (*models.MaterialRequest, error) {
	var req models.MaterialRequest
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, findErr(err, "request", id)
	}
	return &req, nil
}

// Create raises a new request for the acting supervisor.
func (s *RequestService) Create(ctx context.Context, actor *models.User, in RequestInput) (*models.MaterialRequest, error) {
	if !actor.Is(workflow.RoleSupervisor) {
		return nil, workflow.Forbidden("only supervisors can create requests")
	}
	if err := validateRequestInput(in); err != nil {
		return nil, err
	}

	var created models.MaterialRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, engineer, err := resolveRequestRefs(ctx, tx, in)
		if err != nil {
			return err
		}
		number, seq, err := s.seq.NextRequestNumber(ctx, tx, actor.ID)
		if err != nil {
			return err
		}

		created = models.MaterialRequest{
			RequestNumber:        number,
			RequestSeq:           seq,
			SupervisorID:         actor.ID,
			SupervisorName:       actor.Name,
			EngineerID:           engineer.ID,
			EngineerName:         engineer.Name,
			ProjectID:            project.ID,
			ProjectName:          project.Name,
			Reason:               in.Reason,
			ExpectedDeliveryDate: in.ExpectedDeliveryDate,
			Status:               workflow.RequestPendingEngineer,
			RejectionHistory:     datatypes.JSONSlice[models.RejectionNote]{},
			Items:                buildRequestItems("", in.Items),
		}
		if err := tx.Create(&created).Error; err != nil {
			return writeErr(err, "request", number, "create request")
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "create request")
	}

	s.audit.Record(ctx, AuditEntry{
		EntityType:  "request",
		EntityID:    created.ID,
		Action:      "create",
		Actor:       actor,
		Description: fmt.Sprintf("Request %s created with %d items", created.RequestNumber, len(created.Items)),
	})
	s.notify.Send(ctx, emailOf(ctx, s.db, created.EngineerID),
		fmt.Sprintf("Material request %s awaits your approval", created.RequestNumber),
		messageBody(
			fmt.Sprintf("%s raised request %s for project %s.", actor.Name, created.RequestNumber, created.ProjectName),
			fmt.Sprintf("Items: %d", len(created.Items)),
		))

	return s.Get(ctx, created.ID)
}

// Update replaces items, reason, engineer and project while the request
// still awaits the engineer.
func (s *RequestService) Update(ctx context.Context, actor *models.User, id string, in RequestInput) (*models.MaterialRequest, error) {
	if !actor.Is(workflow.RoleSupervisor) {
		return nil, workflow.Forbidden("only supervisors can edit requests")
	}
	if err := validateRequestInput(in); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := loadRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.SupervisorID != actor.ID {
			return workflow.Forbidden("only the supervisor who raised request %s can edit it", req.RequestNumber)
		}
		next, err := workflow.RequestMachine.Next(req.Status, workflow.RequestActionEdit)
		if err != nil {
			return err
		}
		project, engineer, err := resolveRequestRefs(ctx, tx, in)
		if err != nil {
			return err
		}

		res := tx.Model(&models.MaterialRequest{}).
			Where("id = ? AND status = ?", id, req.Status).
			Updates(map[string]interface{}{
				"project_id":             project.ID,
				"project_name":           project.Name,
				"engineer_id":            engineer.ID,
				"engineer_name":          engineer.Name,
				"reason":                 in.Reason,
				"expected_delivery_date": in.ExpectedDeliveryDate,
				"status":                 next,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update request")
		}
		if res.RowsAffected == 0 {
			return workflow.Conflict("request", id)
		}

		if err := tx.Where("request_id = ?", id).Delete(&models.MaterialItem{}).Error; err != nil {
			return errors.Wrap(err, "replace request items")
		}
		items := buildRequestItems(id, in.Items)
		if err := tx.Create(&items).Error; err != nil {
			return errors.Wrap(err, "replace request items")
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "update request")
	}

	s.audit.Record(ctx, AuditEntry{
		EntityType:  "request",
		EntityID:    id,
		Action:      "update",
		Actor:       actor,
		Description: "Request edited",
		Changes:     map[string]interface{}{"items": len(in.Items), "engineer_id": in.EngineerID, "project_id": in.ProjectID},
	})
	return s.Get(ctx, id)
}

type requestChange func(req *models.MaterialRequest, now time.Time) map[string]interface{}

// transition re-reads the request, applies the table edge for action and
// writes conditionally on the status it read. It returns the state before
// the write.
func (s *RequestService) transition(ctx context.Context, id string, action workflow.RequestAction,
	authorize func(*models.MaterialRequest) error, change requestChange) (*models.MaterialRequest, error) {
	var before *models.MaterialRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := loadRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(req); err != nil {
				return err
			}
		}
		next, err := workflow.RequestMachine.Next(req.Status, action)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if change != nil {
			updates = change(req, time.Now())
		}
		updates["status"] = next

		res := tx.Model(&models.MaterialRequest{}).Where("id = ? AND status = ?", id, req.Status).Updates(updates)
		if res.Error != nil {
			return errors.Wrapf(res.Error, "%s request", action)
		}
		if res.RowsAffected == 0 {
			return workflow.Conflict("request", id)
		}
		before = req
		return nil
	})
	if err != nil {
		return nil, passThrough(err, string(action)+" request")
	}
	return before, nil
}

func assignedEngineer(actor *models.User) func(*models.MaterialRequest) error {
	return func(req *models.MaterialRequest) error {
		if req.EngineerID != actor.ID {
			return workflow.Forbidden("request %s is assigned to another engineer", req.RequestNumber)
		}
		return nil
	}
}

// Approve is taken by the assigned engineer.
func (s *RequestService) Approve(ctx context.Context, actor *models.User, id string) (*models.MaterialRequest, error) {
	if !actor.Is(workflow.RoleEngineer) {
		return nil, workflow.Forbidden("only engineers can approve requests")
	}
	before, err := s.transition(ctx, id, workflow.RequestActionApprove, assignedEngineer(actor),
		func(_ *models.MaterialRequest, now time.Time) map[string]interface{} {
			return map[string]interface{}{"engineer_decision_at": now}
		})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, actor, before, "approve", "Approved by engineer", nil)
	s.notify.Send(ctx, emailOf(ctx, s.db, before.SupervisorID),
		fmt.Sprintf("Material request %s approved", before.RequestNumber),
		messageBody(fmt.Sprintf("%s approved request %s.", actor.Name, before.RequestNumber)))
	return s.Get(ctx, id)
}

// RejectByEngineer is taken by the assigned engineer and needs a reason.
func (s *RequestService) RejectByEngineer(ctx context.Context, actor *models.User, id, reason string) (*models.MaterialRequest, error) {
	if !actor.Is(workflow.RoleEngineer) {
		return nil, workflow.Forbidden("only engineers can reject requests")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, workflow.Invalid("reason", "a rejection reason is required")
	}
	before, err := s.transition(ctx, id, workflow.RequestActionReject, assignedEngineer(actor),
		func(_ *models.MaterialRequest, now time.Time) map[string]interface{} {
			return map[string]interface{}{"rejection_reason": reason, "engineer_decision_at": now}
		})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, actor, before, "reject", "Rejected by engineer: "+reason, map[string]interface{}{"reason": reason})
	s.notify.Send(ctx, emailOf(ctx, s.db, before.SupervisorID),
		fmt.Sprintf("Material request %s rejected", before.RequestNumber),
		messageBody(fmt.Sprintf("%s rejected request %s.", actor.Name, before.RequestNumber), "Reason: "+reason))
	return s.Get(ctx, id)
}

// RejectByManager returns an approved or partially ordered request to its
// engineer.
func (s *RequestService) RejectByManager(ctx context.Context, actor *models.User, id, reason string) (*models.MaterialRequest, error) {
	if !actor.Is(workflow.RoleProcurementManager) {
		return nil, workflow.Forbidden("only procurement managers can return requests")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, workflow.Invalid("reason", "a rejection reason is required")
	}
	before, err := s.transition(ctx, id, workflow.RequestActionManagerReject, nil,
		func(_ *models.MaterialRequest, now time.Time) map[string]interface{} {
			return map[string]interface{}{
				"rejection_reason":         reason,
				"manager_rejected_by_id":   actor.ID,
				"manager_rejected_by_name": actor.Name,
				"manager_rejected_at":      now,
			}
		})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, actor, before, "manager_reject", "Returned by procurement manager: "+reason, map[string]interface{}{"reason": reason})
	s.notify.Send(ctx, emailOf(ctx, s.db, before.EngineerID),
		fmt.Sprintf("Material request %s returned by procurement", before.RequestNumber),
		messageBody(fmt.Sprintf("%s returned request %s.", actor.Name, before.RequestNumber), "Reason: "+reason))
	return s.Get(ctx, id)
}

// Resubmit is taken by the assigned engineer after a manager rejection. The
// rejection moves into history and the counter increments.
func (s *RequestService) Resubmit(ctx context.Context, actor *models.User, id string) (*models.MaterialRequest, error) {
	if !actor.Is(workflow.RoleEngineer) {
		return nil, workflow.Forbidden("only engineers can resubmit requests")
	}
	before, err := s.transition(ctx, id, workflow.RequestActionResubmit, assignedEngineer(actor),
		func(req *models.MaterialRequest, now time.Time) map[string]interface{} {
			updates := archiveRejection(req)
			updates["resubmit_count"] = gorm.Expr("resubmit_count + ?", 1)
			updates["resubmitted_at"] = now
			return updates
		})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, actor, before, "resubmit", "Resubmitted to procurement",
		map[string]interface{}{"previous_reason": before.RejectionReason})
	s.notify.Send(ctx, emailsByRole(ctx, s.db, workflow.RoleProcurementManager),
		fmt.Sprintf("Material request %s resubmitted", before.RequestNumber),
		messageBody(fmt.Sprintf("%s resubmitted request %s.", actor.Name, before.RequestNumber)))
	return s.Get(ctx, id)
}

// Delete removes the request together with its orders, their delivery
// records and attachments.
func (s *RequestService) Delete(ctx context.Context, actor *models.User, id string) error {
	if !actor.Is(workflow.RoleProcurementManager) {
		return workflow.Forbidden("only procurement managers can delete requests")
	}

	var (
		req        *models.MaterialRequest
		storedKeys []string
		orderCount int
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if req, err = loadRequest(ctx, tx, id); err != nil {
			return err
		}

		var orderIDs []string
		if err := tx.Model(&models.PurchaseOrder{}).Where("request_id = ?", id).Pluck("id", &orderIDs).Error; err != nil {
			return errors.Wrap(err, "list request orders")
		}
		orderCount = len(orderIDs)
		if len(orderIDs) > 0 {
			keys, err := deleteOrderRows(tx, orderIDs)
			if err != nil {
				return err
			}
			storedKeys = keys
		}

		if err := tx.Where("request_id = ?", id).Delete(&models.MaterialItem{}).Error; err != nil {
			return errors.Wrap(err, "delete request items")
		}
		if err := tx.Where("id = ?", id).Delete(&models.MaterialRequest{}).Error; err != nil {
			return errors.Wrap(err, "delete request")
		}
		return nil
	})
	if err != nil {
		return passThrough(err, "delete request")
	}

	removeStoredObjects(ctx, storedKeys)
	s.audit.Record(ctx, AuditEntry{
		EntityType:  "request",
		EntityID:    id,
		Action:      "delete",
		Actor:       actor,
		Description: fmt.Sprintf("Request %s deleted with %d orders", req.RequestNumber, orderCount),
	})
	return nil
}

// deleteOrderRows removes orders and everything hanging off them, returning
// the storage keys of their attachments.
func deleteOrderRows(tx *gorm.DB, orderIDs []string) ([]string, error) {
	var keys []string
	if err := tx.Model(&models.Attachment{}).Where("order_id IN ?", orderIDs).Pluck("storage_key", &keys).Error; err != nil {
		return nil, errors.Wrap(err, "list attachments")
	}
	steps := []struct {
		model interface{}
		where string
	}{
		{&models.Attachment{}, "order_id IN ?"},
		{&models.DeliveryRecord{}, "order_id IN ?"},
		{&models.OrderItem{}, "order_id IN ?"},
		{&models.PurchaseOrder{}, "id IN ?"},
	}
	for _, step := range steps {
		if err := tx.Where(step.where, orderIDs).Delete(step.model).Error; err != nil {
			return nil, errors.Wrap(err, "delete order rows")
		}
	}
	return keys, nil
}

// archiveRejection moves the current manager rejection into the history and
// clears it.
func archiveRejection(req *models.MaterialRequest) map[string]interface{} {
	note := models.RejectionNote{Reason: req.RejectionReason, ByName: req.ManagerRejectedByName}
	if req.ManagerRejectedByID != nil {
		note.ByID = *req.ManagerRejectedByID
	}
	if req.ManagerRejectedAt != nil {
		note.At = *req.ManagerRejectedAt
	}
	history := append(datatypes.JSONSlice[models.RejectionNote]{}, req.RejectionHistory...)
	history = append(history, note)
	return map[string]interface{}{
		"rejection_reason":         "",
		"manager_rejected_by_id":   nil,
		"manager_rejected_by_name": "",
		"manager_rejected_at":      nil,
		"rejection_history":        history,
	}
}

// recomputeFulfillment re-derives the request status from every order that
// exists against it. Once no orders remain the request goes back to
// approved_by_engineer, a manager rejection included; while orders remain a
// rejected request keeps its status.
func recomputeFulfillment(ctx context.Context, tx *gorm.DB, requestID string) (workflow.RequestStatus, error) {
	req, err := loadRequest(ctx, tx, requestID)
	if err != nil {
		return "", err
	}

	var orders []models.PurchaseOrder
	if err := tx.WithContext(ctx).Preload("Items").Where("request_id = ?", requestID).Find(&orders).Error; err != nil {
		return "", errors.Wrap(err, "load request orders")
	}
	var ordered []workflow.ItemKey
	for i := range orders {
		ordered = append(ordered, orders[i].ItemKeys()...)
	}

	action := workflow.FulfillmentAction(req.ItemKeys(), ordered)
	if !workflow.RequestMachine.Can(req.Status, action) {
		return req.Status, nil
	}
	next, _ := workflow.RequestMachine.Next(req.Status, action)
	if next == req.Status {
		return next, nil
	}

	updates := map[string]interface{}{}
	if req.Status == workflow.RequestRejectedByManager {
		updates = archiveRejection(req)
	}
	updates["status"] = next
	res := tx.Model(&models.MaterialRequest{}).
		Where("id = ? AND status = ?", requestID, req.Status).
		Updates(updates)
	if res.Error != nil {
		return "", errors.Wrap(res.Error, "update request fulfillment")
	}
	if res.RowsAffected == 0 {
		return "", workflow.Conflict("request", requestID)
	}
	return next, nil
}

func (s *RequestService) recordTransition(ctx context.Context, actor *models.User, before *models.MaterialRequest,
	action, description string, changes map[string]interface{}) {
	if changes == nil {
		changes = map[string]interface{}{}
	}
	changes["from_status"] = string(before.Status)
	s.audit.Record(ctx, AuditEntry{
		EntityType:  "request",
		EntityID:    before.ID,
		Action:      action,
		Actor:       actor,
		Description: fmt.Sprintf("%s (%s)", description, before.RequestNumber),
		Changes:     changes,
	})
}

// Wait blocks until background audit and notification work is done.
func (s *RequestService) Wait() {
	waitBackground(s.audit, s.notify)
}

// Get loads a request with its items in position order.
func (s *RequestService) Get(ctx context.Context, id string) (*models.MaterialRequest, error) {
	return loadRequest(ctx, s.db, id)
}

// Find loads a request the actor is allowed to see. Supervisors see their
// own requests and engineers those assigned to them.
func (s *RequestService) Find(ctx context.Context, actor *models.User, id string) (*models.MaterialRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Is(workflow.RoleSupervisor) && req.SupervisorID != actor.ID:
		return nil, workflow.Forbidden("request %s belongs to another supervisor", req.RequestNumber)
	case actor.Is(workflow.RoleEngineer) && req.EngineerID != actor.ID:
		return nil, workflow.Forbidden("request %s is assigned to another engineer", req.RequestNumber)
	}
	return req, nil
}

// List returns the requests visible to the actor, newest first.
func (s *RequestService) List(ctx context.Context, actor *models.User, q RequestQuery) ([]models.MaterialRequest, error) {
	query := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC")

	switch {
	case actor.Is(workflow.RoleSupervisor):
		query = query.Where("supervisor_id = ?", actor.ID)
	case actor.Is(workflow.RoleEngineer):
		query = query.Where("engineer_id = ?", actor.ID)
	}
	if q.Status != "" {
		status := workflow.RequestStatus(q.Status)
		if !status.IsValid() {
			return nil, workflow.Invalid("status", fmt.Sprintf("unknown request status %q", q.Status))
		}
		query = query.Where("status = ?", status)
	}
	if q.ProjectID != 0 {
		query = query.Where("project_id = ?", q.ProjectID)
	}

	var requests []models.MaterialRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, errors.Wrap(err, "list requests")
	}
	return requests, nil
}
