package services

import (
	"testing"

	"github.com/kendall-kelly/procurement-api/testutil"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudget_CreateCategory(t *testing.T) {
	f := newFixture(t)
	budget := NewBudgetService(f.db)
	t.Cleanup(budget.Wait)

	_, err := budget.CreateCategory(f.ctx, f.printer, CategoryInput{Name: "Tools"})
	assert.True(t, workflow.IsForbidden(err))
	_, err = budget.CreateCategory(f.ctx, f.gm, CategoryInput{Name: "Tools", Budget: dec(-5)})
	assert.True(t, workflow.IsValidation(err))

	category, err := budget.CreateCategory(f.ctx, f.gm, CategoryInput{Name: "Tools", Code: "TL", Budget: dec(2500)})
	require.NoError(t, err)
	assertMoney(t, 2500, category.Budget)

	_, err = budget.CreateCategory(f.ctx, f.pm, CategoryInput{Name: "Tools"})
	assert.True(t, workflow.IsConflict(err))
}

func TestBudget_ReportExcludesGMRejected(t *testing.T) {
	f := newFixture(t)
	f.setLimit(1000)
	tools := testutil.CreateCategory(t, f.db, "Tools", 500)
	concrete := testutil.CreateCategory(t, f.db, "Concrete", 10000)

	req := f.approvedRequest(item("drill", 2), item("saw", 1), item("cement", 10), item("grinder", 1))
	create := func(idx int, price int64, category uint) {
		_, err := f.orders.Create(f.ctx, f.pm, OrderInput{
			RequestID:   req.ID,
			ItemIndexes: []int{idx},
			Prices:      map[int]decimal.Decimal{idx: dec(price)},
			CategoryID:  &category,
		})
		require.NoError(t, err)
	}
	create(0, 200, tools.ID)     // 400
	create(1, 300, tools.ID)     // 300
	create(2, 50, concrete.ID)   // 500
	create(3, 5000, concrete.ID) // escalated, then rejected

	orders, err := f.orders.List(f.ctx, OrderQuery{Status: "pending_gm_approval"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	_, err = f.orders.GMReject(f.ctx, f.gm, orders[0].ID, "too much")
	require.NoError(t, err)

	report, err := NewBudgetService(f.db).Report(f.ctx)
	require.NoError(t, err)
	require.Len(t, report, 2)

	byName := map[string]CategorySpend{}
	for _, row := range report {
		byName[row.Name] = row
	}
	assertMoney(t, 700, byName["Tools"].Spent)
	assertMoney(t, -200, byName["Tools"].Remaining)
	assert.True(t, byName["Tools"].OverBudget)
	assert.Equal(t, 2, byName["Tools"].OrderCount)

	assertMoney(t, 500, byName["Concrete"].Spent)
	assert.Equal(t, 1, byName["Concrete"].OrderCount)
	assert.False(t, byName["Concrete"].OverBudget)
}
