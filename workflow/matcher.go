package workflow

import "strings"

// ItemKey identifies a line item for reconciliation purposes.
type ItemKey struct {
	Name     string
	Quantity int
}

func sameName(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// CoveredPositions matches ordered items back to positions in the requested
// list by name and quantity equality. Each ordered item claims the first
// matching position, so two requested lines with the same name and quantity
// are only ever counted once.
func CoveredPositions(requested, ordered []ItemKey) map[int]bool {
	covered := make(map[int]bool, len(requested))
	for _, o := range ordered {
		for pos, r := range requested {
			if sameName(r.Name, o.Name) && r.Quantity == o.Quantity {
				covered[pos] = true
				break
			}
		}
	}
	return covered
}

// FulfillmentAction derives the request edge implied by every order issued
// against it. It is recomputed from scratch and is safe to repeat.
func FulfillmentAction(requested, ordered []ItemKey) RequestAction {
	if len(ordered) == 0 {
		return RequestActionOrdersCleared
	}
	if len(CoveredPositions(requested, ordered)) >= len(requested) {
		return RequestActionOrderFull
	}
	return RequestActionOrderPartial
}
