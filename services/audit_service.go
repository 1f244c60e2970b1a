package services

import (
	"context"
	"sync"

	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEntry describes one recorded mutation.
type AuditEntry struct {
	EntityType  string
	EntityID    string
	Action      string
	Actor       *models.User
	Description string
	Changes     map[string]interface{}
}

// AuditRecorder is a fire-and-forget sink. Record never blocks the caller on
// the write and never reports failure.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// DBAuditRecorder writes audit_logs rows in the background.
type DBAuditRecorder struct {
	db *gorm.DB
	wg sync.WaitGroup
}

func NewDBAuditRecorder(db *gorm.DB) *DBAuditRecorder {
	return &DBAuditRecorder{db: db}
}

func (r *DBAuditRecorder) Record(ctx context.Context, entry AuditEntry) {
	row := models.AuditLog{
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Action:      entry.Action,
		Description: entry.Description,
	}
	if entry.Actor != nil {
		row.UserID = entry.Actor.ID
		row.UserName = entry.Actor.Name
	}
	if len(entry.Changes) > 0 {
		row.Changes = datatypes.JSONMap(entry.Changes)
	}

	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			config.L().Warn("audit write failed",
				zap.String("entity_type", row.EntityType),
				zap.String("entity_id", row.EntityID),
				zap.String("action", row.Action),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every pending write has finished.
func (r *DBAuditRecorder) Wait() {
	r.wg.Wait()
}

var (
	auditMu       sync.RWMutex
	auditInstance AuditRecorder
)

// SetAuditRecorder installs a process-wide recorder. With none installed,
// each service writes through its own DBAuditRecorder.
func SetAuditRecorder(r AuditRecorder) {
	auditMu.Lock()
	auditInstance = r
	auditMu.Unlock()
}

// GetAuditRecorder returns the installed recorder, or nil
func GetAuditRecorder() AuditRecorder {
	auditMu.RLock()
	defer auditMu.RUnlock()
	return auditInstance
}

func auditRecorderFor(db *gorm.DB) AuditRecorder {
	if r := GetAuditRecorder(); r != nil {
		return r
	}
	return NewDBAuditRecorder(db)
}

// AuditQuery filters ListAuditLogs.
type AuditQuery struct {
	EntityType string `form:"entity_type"`
	EntityID   string `form:"entity_id"`
	Limit      int    `form:"limit"`
}

// ListAuditLogs returns the newest entries first.
func ListAuditLogs(ctx context.Context, db *gorm.DB, q AuditQuery) ([]models.AuditLog, error) {
	query := db.WithContext(ctx).Order("created_at DESC, id DESC")
	if q.EntityType != "" {
		query = query.Where("entity_type = ?", q.EntityType)
	}
	if q.EntityID != "" {
		query = query.Where("entity_id = ?", q.EntityID)
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.AuditLog
	if err := query.Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
