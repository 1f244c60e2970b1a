package services

import (
	"testing"

	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportSummary(t *testing.T) {
	f := newFixture(t)
	f.setLimit(1000)

	f.createRequest(item("paint", 3))
	req := f.approvedRequest(item("cement", 2), item("generator", 1))
	f.createOrder(req.ID, map[int]decimal.Decimal{0: dec(100)}, 0)
	escalated := f.createOrder(req.ID, map[int]decimal.Decimal{1: dec(4000)}, 1)
	_, err := f.orders.GMReject(f.ctx, f.gm, escalated.ID, "defer")
	require.NoError(t, err)

	summary, err := NewReportService(f.db).Summary(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.RequestsByStatus["pending_engineer"])
	assert.Equal(t, int64(1), summary.RequestsByStatus["purchase_order_issued"])
	assert.Equal(t, int64(1), summary.OrdersByStatus["pending_approval"])
	assert.Equal(t, int64(1), summary.OrdersByStatus["rejected_by_gm"])
	assert.Zero(t, summary.PendingGMCount)
	assertMoney(t, 200, summary.CommittedSpend)
	assertMoney(t, 1000, summary.ApprovalLimit)
	assert.Empty(t, summary.Categories)
}

func TestReportSummary_Empty(t *testing.T) {
	f := newFixture(t)

	summary, err := NewReportService(f.db).Summary(f.ctx)
	require.NoError(t, err)
	assert.Len(t, summary.OrdersByStatus, len(workflow.OrderStatuses()))
	assert.Len(t, summary.RequestsByStatus, len(workflow.RequestStatuses()))
	assert.Zero(t, summary.OrdersByStatus["rejected_by_gm"])
	assert.True(t, summary.CommittedSpend.IsZero())
	assertMoney(t, 20000, summary.ApprovalLimit)
}
