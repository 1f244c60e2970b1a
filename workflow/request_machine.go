package workflow

// RequestAction names an edge of the material request lifecycle.
type RequestAction string

const (
	RequestActionEdit          RequestAction = "edit"
	RequestActionApprove       RequestAction = "approve"
	RequestActionReject        RequestAction = "reject"
	RequestActionManagerReject RequestAction = "manager_reject"
	RequestActionResubmit      RequestAction = "resubmit"

	// Derived from the set of orders issued against the request.
	RequestActionOrderPartial  RequestAction = "order_partial"
	RequestActionOrderFull     RequestAction = "order_full"
	RequestActionOrdersCleared RequestAction = "orders_cleared"
)

// RequestMachine is the material request lifecycle.
var RequestMachine = NewMachine("request", map[RequestStatus]map[RequestAction]RequestStatus{
	RequestPendingEngineer: {
		RequestActionEdit:    RequestPendingEngineer,
		RequestActionApprove: RequestApprovedByEngineer,
		RequestActionReject:  RequestRejectedByEngineer,
	},
	RequestApprovedByEngineer: {
		RequestActionManagerReject: RequestRejectedByManager,
		RequestActionOrderPartial:  RequestPartiallyOrdered,
		RequestActionOrderFull:     RequestPurchaseOrderIssued,
	},
	RequestPartiallyOrdered: {
		RequestActionManagerReject: RequestRejectedByManager,
		RequestActionOrderPartial:  RequestPartiallyOrdered,
		RequestActionOrderFull:     RequestPurchaseOrderIssued,
		RequestActionOrdersCleared: RequestApprovedByEngineer,
	},
	RequestPurchaseOrderIssued: {
		RequestActionOrderPartial:  RequestPartiallyOrdered,
		RequestActionOrderFull:     RequestPurchaseOrderIssued,
		RequestActionOrdersCleared: RequestApprovedByEngineer,
	},
	RequestRejectedByManager: {
		RequestActionResubmit:      RequestApprovedByEngineer,
		RequestActionOrdersCleared: RequestApprovedByEngineer,
	},
	RequestRejectedByEngineer: {},
})
