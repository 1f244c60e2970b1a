package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/utils"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrStorageUnavailable is returned when no object store is configured.
var ErrStorageUnavailable = errors.New("attachment storage is not configured")

// AttachmentService stores files against orders.
type AttachmentService struct {
	db    *gorm.DB
	store ObjectStore
	audit AuditRecorder
}

func NewAttachmentService(db *gorm.DB) *AttachmentService {
	return &AttachmentService{db: db, store: GetObjectStore(), audit: auditRecorderFor(db)}
}

// Upload validates the file, writes it to the store and records it. The
// object is removed again if the row cannot be written.
func (s *AttachmentService) Upload(ctx context.Context, actor *models.User, orderID string, fileHeader *multipart.FileHeader) (*models.Attachment, error) {
	if !actor.Is(workflow.RoleProcurementManager, workflow.RoleGeneralManager, workflow.RolePrinter, workflow.RoleDeliveryTracker) {
		return nil, workflow.Forbidden("your role cannot attach files to orders")
	}
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}
	if err := utils.ValidateAttachmentFile(fileHeader); err != nil {
		return nil, err
	}
	order, err := loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	content, err := utils.ReadUploadedFile(fileHeader)
	if err != nil {
		return nil, err
	}
	key := utils.AttachmentKey(order.ID, fileHeader.Filename, time.Now())
	contentType := utils.ContentTypeFor(fileHeader.Filename)
	if err := s.store.Put(ctx, key, contentType, content); err != nil {
		return nil, errors.Wrap(err, "store attachment")
	}

	attachment := models.Attachment{
		OrderID:      order.ID,
		FileName:     fileHeader.Filename,
		StorageKey:   key,
		ContentType:  contentType,
		Size:         int64(len(content)),
		UploadedByID: actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(&attachment).Error; err != nil {
		removeStoredObjects(ctx, []string{key})
		return nil, errors.Wrap(err, "record attachment")
	}

	s.audit.Record(ctx, AuditEntry{
		EntityType:  "order",
		EntityID:    order.ID,
		Action:      "attach",
		Actor:       actor,
		Description: fmt.Sprintf("Attached %s to order %s", attachment.FileName, order.OrderNumber),
	})
	s.withURL(ctx, &attachment)
	return &attachment, nil
}

// List returns an order's attachments with fresh presigned URLs.
func (s *AttachmentService) List(ctx context.Context, orderID string) ([]models.Attachment, error) {
	if _, err := loadOrder(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	var attachments []models.Attachment
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&attachments).Error; err != nil {
		return nil, errors.Wrap(err, "list attachments")
	}
	for i := range attachments {
		s.withURL(ctx, &attachments[i])
	}
	return attachments, nil
}

// Delete removes the row and then the stored object.
func (s *AttachmentService) Delete(ctx context.Context, actor *models.User, id string) error {
	if !actor.Is(workflow.RoleProcurementManager) {
		return workflow.Forbidden("only procurement managers can remove attachments")
	}
	var attachment models.Attachment
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&attachment).Error; err != nil {
		return findErr(err, "attachment", id)
	}
	if err := s.db.WithContext(ctx).Delete(&attachment).Error; err != nil {
		return errors.Wrap(err, "delete attachment")
	}
	removeStoredObjects(ctx, []string{attachment.StorageKey})

	s.audit.Record(ctx, AuditEntry{
		EntityType:  "order",
		EntityID:    attachment.OrderID,
		Action:      "detach",
		Actor:       actor,
		Description: "Removed attachment " + attachment.FileName,
	})
	return nil
}

// Wait blocks until background audit work is done.
func (s *AttachmentService) Wait() {
	waitBackground(s.audit, nil)
}

func (s *AttachmentService) withURL(ctx context.Context, a *models.Attachment) {
	if s.store == nil {
		return
	}
	url, err := s.store.PresignedURL(ctx, a.StorageKey)
	if err != nil {
		config.L().Warn("could not presign attachment", zap.String("attachment_id", a.ID), zap.Error(err))
		return
	}
	a.URL = url
}
