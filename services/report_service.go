package services

import (
	"context"

	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Summary is the dashboard overview.
type Summary struct {
	RequestsByStatus map[string]int64 `json:"requests_by_status"`
	OrdersByStatus   map[string]int64 `json:"orders_by_status"`
	PendingGMCount   int64            `json:"pending_gm_approval"`
	CommittedSpend   decimal.Decimal  `json:"committed_spend"`
	ApprovalLimit    decimal.Decimal  `json:"approval_limit"`
	Categories       []CategorySpend  `json:"categories"`
}

type statusCount struct {
	Status string
	Count  int64
}

// ReportService builds read-only overviews.
type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// Summary runs its independent queries concurrently.
func (s *ReportService) Summary(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := countByStatus(gctx, s.db, &models.MaterialRequest{}, workflow.RequestStatuses())
		summary.RequestsByStatus = counts
		return errors.Wrap(err, "count requests")
	})
	g.Go(func() error {
		counts, err := countByStatus(gctx, s.db, &models.PurchaseOrder{}, workflow.OrderStatuses())
		summary.OrdersByStatus = counts
		return errors.Wrap(err, "count orders")
	})
	g.Go(func() error {
		limit, err := approvalLimit(gctx, s.db)
		summary.ApprovalLimit = limit
		return err
	})
	g.Go(func() error {
		report, err := NewBudgetService(s.db).Report(gctx)
		summary.Categories = report
		return err
	})

	g.Go(func() error {
		var totals []models.PurchaseOrder
		if err := s.db.WithContext(gctx).Select("total_amount", "status").Find(&totals).Error; err != nil {
			return errors.Wrap(err, "sum committed spend")
		}
		spend := decimal.Zero
		for _, o := range totals {
			if o.Status.CountsTowardSpend() {
				spend = spend.Add(o.TotalAmount)
			}
		}
		summary.CommittedSpend = spend
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary.PendingGMCount = summary.OrdersByStatus["pending_gm_approval"]
	return summary, nil
}

// countByStatus reports a bucket for every known status, empty ones included.
func countByStatus[S ~string](ctx context.Context, db *gorm.DB, model interface{}, statuses []S) (map[string]int64, error) {
	var rows []statusCount
	err := db.WithContext(ctx).Model(model).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(statuses))
	for _, status := range statuses {
		counts[string(status)] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
