package workflow

import "github.com/shopspring/decimal"

// DefaultApprovalLimit applies when no limit has been stored in settings.
var DefaultApprovalLimit = decimal.NewFromInt(20000)

// NeedsGMApproval reports whether an order total must be escalated to the
// general manager. A total equal to the limit does not escalate.
func NeedsGMApproval(total, limit decimal.Decimal) bool {
	return total.GreaterThan(limit)
}

// LineTotal is unit price times quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
