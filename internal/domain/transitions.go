package domain

// orderStateTransitions is the single source of truth for the lifecycle
// graph. UI components and handlers must consume NextStates instead of
// re-deriving edges.
//
// Cooking is reachable from WaitingPayment and PaymentFailed only once the
// payment sub-state is Paid; that gate lives with the mutation service, not
// here. This table is pure graph membership.
var orderStateTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusWaitingPayment: {OrderStatusCooking, OrderStatusCancelled},
	OrderStatusPaymentFailed:  {OrderStatusCooking, OrderStatusCancelled},
	OrderStatusCooking:        {OrderStatusInTransit, OrderStatusWaitingPickup, OrderStatusIssue, OrderStatusCancelled},
	OrderStatusInTransit:      {OrderStatusWaitingPickup, OrderStatusCompleted, OrderStatusIssue, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusWaitingPickup:  {OrderStatusCompleted, OrderStatusIssue, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusIssue:          {OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusCompleted:      {},
	OrderStatusCancelled:      {},
	OrderStatusRefunded:       {},
}

// previousOnCommonPath inverts the forward edges of the happy path only. It
// backs the dashboard's "step back" affordance and is always executed as a
// normal forward transition, never as a separate kind.
var previousOnCommonPath = map[OrderStatus]OrderStatus{
	OrderStatusCooking:       OrderStatusWaitingPayment,
	OrderStatusInTransit:     OrderStatusCooking,
	OrderStatusWaitingPickup: OrderStatusInTransit,
}

// NextStates returns the statuses reachable from current in one step.
// Terminal and unreachable statuses yield an empty set. The result is a
// copy; callers may mutate it freely.
func NextStates(current OrderStatus) []OrderStatus {
	next, ok := orderStateTransitions[current]
	if !ok {
		return []OrderStatus{}
	}
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether target is reachable from current in one step.
func CanTransition(current, target OrderStatus) bool {
	for _, status := range orderStateTransitions[current] {
		if status == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing edges.
func IsTerminal(status OrderStatus) bool {
	next, ok := orderStateTransitions[status]
	return ok && len(next) == 0
}

// PreviousState returns the common-path predecessor of current, if one is
// defined. The second result is false outside the happy path.
func PreviousState(current OrderStatus) (OrderStatus, bool) {
	prev, ok := previousOnCommonPath[current]
	return prev, ok
}

// RequiresComment reports whether a transition into target needs a non-empty
// reason supplied by the caller.
func RequiresComment(target OrderStatus) bool {
	return target == OrderStatusCancelled || target == OrderStatusRefunded
}
