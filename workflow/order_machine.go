package workflow

// OrderAction names an edge of the purchase order lifecycle.
type OrderAction string

const (
	OrderActionEdit      OrderAction = "edit"
	OrderActionApprove   OrderAction = "approve"
	OrderActionEscalate  OrderAction = "escalate"
	OrderActionGMApprove OrderAction = "gm_approve"
	OrderActionGMReject  OrderAction = "gm_reject"
	OrderActionPrint     OrderAction = "print"
	OrderActionShip      OrderAction = "ship"

	OrderActionDeliverPartial OrderAction = "deliver_partial"
	OrderActionDeliverFull    OrderAction = "deliver_full"
)

// OrderMachine is the purchase order lifecycle. Escalate is only taken by the
// two documented redirects: a manager approval over the current limit and a
// price edit that crosses the limit.
var OrderMachine = NewMachine("order", map[OrderStatus]map[OrderAction]OrderStatus{
	OrderPendingApproval: {
		OrderActionEdit:     OrderPendingApproval,
		OrderActionApprove:  OrderApproved,
		OrderActionEscalate: OrderPendingGMApproval,
	},
	OrderPendingGMApproval: {
		OrderActionEdit:      OrderPendingGMApproval,
		OrderActionGMApprove: OrderApproved,
		OrderActionGMReject:  OrderRejectedByGM,
	},
	OrderApproved: {
		OrderActionEdit:           OrderApproved,
		OrderActionEscalate:       OrderPendingGMApproval,
		OrderActionPrint:          OrderPrinted,
		OrderActionShip:           OrderShipped,
		OrderActionDeliverPartial: OrderPartiallyDelivered,
		OrderActionDeliverFull:    OrderDelivered,
	},
	OrderPrinted: {
		OrderActionEdit:           OrderPrinted,
		OrderActionShip:           OrderShipped,
		OrderActionDeliverPartial: OrderPartiallyDelivered,
		OrderActionDeliverFull:    OrderDelivered,
	},
	OrderShipped: {
		OrderActionEdit:           OrderShipped,
		OrderActionDeliverPartial: OrderPartiallyDelivered,
		OrderActionDeliverFull:    OrderDelivered,
	},
	OrderPartiallyDelivered: {
		OrderActionEdit:           OrderPartiallyDelivered,
		OrderActionDeliverPartial: OrderPartiallyDelivered,
		OrderActionDeliverFull:    OrderDelivered,
	},
	OrderDelivered:    {},
	OrderRejectedByGM: {},
})

// CanRecordDelivery reports whether receipts may be confirmed in this state.
func CanRecordDelivery(s OrderStatus) bool {
	return OrderMachine.Can(s, OrderActionDeliverPartial)
}
