package workflow

import "fmt"

// LineItem is the delivery view of an order item.
type LineItem struct {
	Name      string
	Quantity  int
	Delivered int
}

// Remaining is the quantity still outstanding.
func (l LineItem) Remaining() int {
	return l.Quantity - l.Delivered
}

// DeliveredLine is one line of a receipt confirmation.
type DeliveredLine struct {
	Name     string
	Quantity int
}

// DeliveryState summarises delivered quantities across an order.
type DeliveryState int

const (
	DeliveryNone DeliveryState = iota
	DeliveryPartial
	DeliveryFull
)

// ApplyDelivery returns a copy of items with lines added to their delivered
// quantities. Lines are matched to items by name, preferring an item that
// still has quantity outstanding. Unknown names and cumulative deliveries
// above the ordered quantity are validation errors; items is never modified.
func ApplyDelivery(items []LineItem, lines []DeliveredLine) ([]LineItem, error) {
	if len(lines) == 0 {
		return nil, Invalid("items", "at least one delivered item is required")
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, Invalid("quantity_delivered", fmt.Sprintf("must be positive for %q", line.Name))
		}
		idx := deliveryTarget(out, line.Name)
		if idx < 0 {
			return nil, Invalid("name", fmt.Sprintf("%q is not on this order", line.Name))
		}
		if out[idx].Delivered+line.Quantity > out[idx].Quantity {
			return nil, Invalid("quantity_delivered", fmt.Sprintf(
				"%q would reach %d of %d ordered", line.Name, out[idx].Delivered+line.Quantity, out[idx].Quantity))
		}
		out[idx].Delivered += line.Quantity
	}
	return out, nil
}

func deliveryTarget(items []LineItem, name string) int {
	first := -1
	for i, item := range items {
		if !sameName(item.Name, name) {
			continue
		}
		if item.Remaining() > 0 {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

// ClassifyDelivery reports whether every item, some item, or no item has
// been delivered.
func ClassifyDelivery(items []LineItem) DeliveryState {
	complete, touched := 0, 0
	for _, item := range items {
		if item.Delivered > 0 {
			touched++
		}
		if item.Delivered >= item.Quantity {
			complete++
		}
	}
	switch {
	case len(items) > 0 && complete == len(items):
		return DeliveryFull
	case touched > 0:
		return DeliveryPartial
	default:
		return DeliveryNone
	}
}

// Action maps a delivery state to its order edge. DeliveryNone has no edge
// and leaves the status unchanged.
func (d DeliveryState) Action() (OrderAction, bool) {
	switch d {
	case DeliveryFull:
		return OrderActionDeliverFull, true
	case DeliveryPartial:
		return OrderActionDeliverPartial, true
	default:
		return "", false
	}
}
