package services

import (
	"context"
	"strings"

	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CategoryInput creates a budget category.
type CategoryInput struct {
	Name   string          `json:"name" binding:"required,nonblank"`
	Code   string          `json:"code"`
	Budget decimal.Decimal `json:"budget"`
}

// CategorySpend is one row of the budget report.
type CategorySpend struct {
	CategoryID uint            `json:"category_id"`
	Name       string          `json:"name"`
	Budget     decimal.Decimal `json:"budget"`
	Spent      decimal.Decimal `json:"spent"`
	Remaining  decimal.Decimal `json:"remaining"`
	OrderCount int             `json:"order_count"`
	OverBudget bool            `json:"over_budget"`
}

// BudgetService manages categories and reports spend against them.
type BudgetService struct {
	db    *gorm.DB
	audit AuditRecorder
}

func NewBudgetService(db *gorm.DB) *BudgetService {
	return &BudgetService{db: db, audit: auditRecorderFor(db)}
}

func (s *BudgetService) CreateCategory(ctx context.Context, actor *models.User, in CategoryInput) (*models.BudgetCategory, error) {
	if !actor.Is(workflow.RoleProcurementManager, workflow.RoleGeneralManager, workflow.RoleAdmin) {
		return nil, workflow.Forbidden("only managers and admins can add budget categories")
	}
	if in.Budget.IsNegative() {
		return nil, workflow.Invalid("budget", "must not be negative")
	}
	category := models.BudgetCategory{Name: strings.TrimSpace(in.Name), Code: in.Code, Budget: in.Budget}
	if category.Name == "" {
		return nil, workflow.Invalid("name", "is required")
	}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, writeErr(err, "category", category.Name, "create category")
	}
	s.audit.Record(ctx, AuditEntry{
		EntityType:  "category",
		EntityID:    category.Name,
		Action:      "create",
		Actor:       actor,
		Description: "Budget category created with budget " + category.Budget.StringFixed(2),
	})
	return &category, nil
}

func (s *BudgetService) ListCategories(ctx context.Context) ([]models.BudgetCategory, error) {
	var categories []models.BudgetCategory
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return categories, nil
}

// Report sums order totals per category. Orders rejected by the general
// manager are not spend.
func (s *BudgetService) Report(ctx context.Context) ([]CategorySpend, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	var orders []models.PurchaseOrder
	err = s.db.WithContext(ctx).
		Select("category_id", "total_amount", "status").
		Where("category_id IS NOT NULL").
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "load category spend")
	}

	spent := map[uint]decimal.Decimal{}
	counts := map[uint]int{}
	for _, order := range orders {
		if !order.Status.CountsTowardSpend() {
			continue
		}
		spent[*order.CategoryID] = spent[*order.CategoryID].Add(order.TotalAmount)
		counts[*order.CategoryID]++
	}

	report := make([]CategorySpend, len(categories))
	for i, c := range categories {
		total := spent[c.ID]
		report[i] = CategorySpend{
			CategoryID: c.ID,
			Name:       c.Name,
			Budget:     c.Budget,
			Spent:      total,
			Remaining:  c.Budget.Sub(total),
			OrderCount: counts[c.ID],
			OverBudget: total.GreaterThan(c.Budget),
		}
	}
	return report, nil
}

// Wait blocks until background audit work is done.
func (s *BudgetService) Wait() {
	waitBackground(s.audit, nil)
}
