package workflow

// RequestStatus is the lifecycle state of a material request.
type RequestStatus string

const (
	RequestPendingEngineer     RequestStatus = "pending_engineer"
	RequestApprovedByEngineer  RequestStatus = "approved_by_engineer"
	RequestRejectedByEngineer  RequestStatus = "rejected_by_engineer"
	RequestRejectedByManager   RequestStatus = "rejected_by_manager"
	RequestPurchaseOrderIssued RequestStatus = "purchase_order_issued"
	RequestPartiallyOrdered    RequestStatus = "partially_ordered"
)

var requestStatuses = []RequestStatus{
	RequestPendingEngineer,
	RequestApprovedByEngineer,
	RequestRejectedByEngineer,
	RequestRejectedByManager,
	RequestPurchaseOrderIssued,
	RequestPartiallyOrdered,
}

// RequestStatuses returns every request status in lifecycle order.
func RequestStatuses() []RequestStatus {
	out := make([]RequestStatus, len(requestStatuses))
	copy(out, requestStatuses)
	return out
}

func (s RequestStatus) IsValid() bool {
	for _, known := range requestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsRejected reports whether the request is in one of the rejected states.
// A rejection reason is stored exactly when this is true.
func (s RequestStatus) IsRejected() bool {
	return s == RequestRejectedByEngineer || s == RequestRejectedByManager
}

// AcceptsOrders reports whether purchase orders may be created against a
// request in this state.
func (s RequestStatus) AcceptsOrders() bool {
	return s == RequestApprovedByEngineer || s == RequestPartiallyOrdered
}

// IsTerminal reports whether no transition leaves this state.
func (s RequestStatus) IsTerminal() bool {
	return len(RequestMachine.Allowed(s)) == 0
}

// OrderStatus is the lifecycle state of a purchase order.
type OrderStatus string

const (
	OrderPendingApproval    OrderStatus = "pending_approval"
	OrderPendingGMApproval  OrderStatus = "pending_gm_approval"
	OrderApproved           OrderStatus = "approved"
	OrderPrinted            OrderStatus = "printed"
	OrderShipped            OrderStatus = "shipped"
	OrderDelivered          OrderStatus = "delivered"
	OrderPartiallyDelivered OrderStatus = "partially_delivered"
	OrderRejectedByGM       OrderStatus = "rejected_by_gm"
)

var orderStatuses = []OrderStatus{
	OrderPendingApproval,
	OrderPendingGMApproval,
	OrderApproved,
	OrderPrinted,
	OrderShipped,
	OrderDelivered,
	OrderPartiallyDelivered,
	OrderRejectedByGM,
}

// OrderStatuses returns every order status, rejected_by_gm included.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func (s OrderStatus) IsValid() bool {
	for _, known := range orderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves this state. Both
// delivered and rejected_by_gm are terminal.
func (s OrderStatus) IsTerminal() bool {
	return len(OrderMachine.Allowed(s)) == 0
}

// CountsTowardSpend reports whether an order in this state commits budget.
// GM-rejected orders never do.
func (s OrderStatus) CountsTowardSpend() bool {
	return s.IsValid() && s != OrderRejectedByGM
}

// InitialOrderStatus picks the creation state from the approval decision.
func InitialOrderStatus(needsGMApproval bool) OrderStatus {
	if needsGMApproval {
		return OrderPendingGMApproval
	}
	return OrderPendingApproval
}
