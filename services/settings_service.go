package services

import (
	"context"

	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingApprovalLimit = "approval_limit"

// SettingsService reads and writes system settings. The approval limit is
// read from the store on every call and never cached.
type SettingsService struct {
	db    *gorm.DB
	audit AuditRecorder
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db, audit: auditRecorderFor(db)}
}

func defaultApprovalLimit() decimal.Decimal {
	if cfg := config.GetConfig(); cfg != nil && cfg.DefaultApprovalLimit.IsPositive() {
		return cfg.DefaultApprovalLimit
	}
	return workflow.DefaultApprovalLimit
}

// ApprovalLimit returns the current GM approval threshold.
func (s *SettingsService) ApprovalLimit(ctx context.Context) (decimal.Decimal, error) {
	return approvalLimit(ctx, s.db)
}

// approvalLimit reads the threshold through db, which may be an open
// transaction.
func approvalLimit(ctx context.Context, db *gorm.DB) (decimal.Decimal, error) {
	var setting models.SystemSetting
	err := db.WithContext(ctx).Where("setting_key = ?", settingApprovalLimit).Take(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultApprovalLimit(), nil
	}
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "load approval limit")
	}
	limit, err := decimal.NewFromString(setting.Value)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "stored approval limit %q", setting.Value)
	}
	return limit, nil
}

// SetApprovalLimit stores a new threshold. Procurement and general managers
// may change it.
func (s *SettingsService) SetApprovalLimit(ctx context.Context, actor *models.User, limit decimal.Decimal) (decimal.Decimal, error) {
	if !actor.Is(workflow.RoleProcurementManager, workflow.RoleGeneralManager) {
		return decimal.Zero, workflow.Forbidden("only managers can change the approval limit")
	}
	if !limit.IsPositive() {
		return decimal.Zero, workflow.Invalid("approval_limit", "must be positive")
	}

	previous, err := s.ApprovalLimit(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	setting := models.SystemSetting{Key: settingApprovalLimit, Value: limit.String(), UpdatedByID: &actor.ID}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by_id", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "store approval limit")
	}

	s.audit.Record(ctx, AuditEntry{
		EntityType:  "setting",
		EntityID:    settingApprovalLimit,
		Action:      "update",
		Actor:       actor,
		Description: "Approval limit changed to " + limit.String(),
		Changes:     map[string]interface{}{"from": previous.String(), "to": limit.String()},
	})
	return limit, nil
}

// Wait blocks until background audit work is done.
func (s *SettingsService) Wait() {
	waitBackground(s.audit, nil)
}
