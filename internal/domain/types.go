package domain

import (
	"time"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusWaitingPayment indicates the order awaits a bank transfer from the customer.
	OrderStatusWaitingPayment OrderStatus = "waiting_payment"
	// OrderStatusPaymentFailed indicates the transfer was rejected or never arrived; the customer may retry.
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
	// OrderStatusCooking indicates the kitchen has accepted the order and is preparing it.
	OrderStatusCooking OrderStatus = "cooking"
	// OrderStatusReady indicates the kitchen finished preparation. Kept for external
	// integrations; no transition in the lifecycle graph produces it.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusInTransit indicates a courier is delivering the order.
	OrderStatusInTransit OrderStatus = "in_transit"
	// OrderStatusWaitingPickup indicates the order awaits pickup at the counter.
	OrderStatusWaitingPickup OrderStatus = "waiting_pickup"
	// OrderStatusCompleted indicates the order was handed to the customer.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusIssue indicates a staff-reported problem that needs resolution.
	OrderStatusIssue OrderStatus = "issue"
	// OrderStatusCancelled indicates the order was cancelled; a reason is always recorded.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded indicates the customer's payment was returned.
	OrderStatusRefunded OrderStatus = "refunded"
	// OrderStatusPending is a legacy value consumed by an external system.
	// It is accepted on read and never produced by the lifecycle.
	OrderStatusPending OrderStatus = "pending"
)

// PaymentStatus tracks the payment sub-state independently of the order status.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no transfer has been confirmed yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates staff confirmed the transfer.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed indicates the transfer was rejected or never arrived.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates the payment was returned to the customer.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderPriority flags how urgently staff should handle an order. It never
// affects which transitions are legal.
type OrderPriority string

const (
	OrderPriorityNormal OrderPriority = "normal"
	OrderPriorityHigh   OrderPriority = "high"
	OrderPriorityUrgent OrderPriority = "urgent"
)

var statusLabels = map[OrderStatus]string{
	OrderStatusWaitingPayment: "Esperando pago",
	OrderStatusPaymentFailed:  "Pago fallido",
	OrderStatusCooking:        "En cocina",
	OrderStatusReady:          "Listo",
	OrderStatusInTransit:      "En camino",
	OrderStatusWaitingPickup:  "Esperando retiro",
	OrderStatusCompleted:      "Completado",
	OrderStatusIssue:          "Con problema",
	OrderStatusCancelled:      "Cancelado",
	OrderStatusRefunded:       "Reembolsado",
	OrderStatusPending:        "Pendiente",
}

// Label returns the fixed display label for the status. The mapping is total
// over declared statuses; an unknown value is a configuration error and
// panics so it surfaces during startup tests rather than rendering blanks.
func (s OrderStatus) Label() string {
	label, ok := statusLabels[s]
	if !ok {
		panic("domain: no label configured for order status " + string(s))
	}
	return label
}

// IsValid reports whether the value is a declared order status.
func (s OrderStatus) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// ParseOrderStatus converts external input into a declared status.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(raw)
	if !status.IsValid() {
		return "", false
	}
	return status, true
}

// AllOrderStatuses returns every declared status, legacy values included.
func AllOrderStatuses() []OrderStatus {
	statuses := make([]OrderStatus, 0, len(statusLabels))
	for status := range statusLabels {
		statuses = append(statuses, status)
	}
	return statuses
}

// IsValid reports whether the value is a declared payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// IsValid reports whether the value is a declared priority.
func (p OrderPriority) IsValid() bool {
	switch p {
	case OrderPriorityNormal, OrderPriorityHigh, OrderPriorityUrgent:
		return true
	}
	return false
}

// OrderItem is a line captured at checkout. Prices are minor currency units
// frozen at creation; later menu edits never touch existing orders.
type OrderItem struct {
	ProductRef     string
	Name           string
	RemovedOptions []string
	Quantity       int
	UnitPrice      int64
	Note           string
}

// Total returns the frozen line total.
func (i OrderItem) Total() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// StatusLogEntry is one immutable record in the order's audit trail.
type StatusLogEntry struct {
	Status      OrderStatus
	StatusLabel string
	Timestamp   time.Time
	Comment     string
}

// PaymentLogEntry records a payment sub-state change.
type PaymentLogEntry struct {
	Status            PaymentStatus
	BankAccount       string
	TransferReference string
	Timestamp         time.Time
	Comment           string
}

// PaymentInfo groups the payment sub-state and its own append-only trail.
type PaymentInfo struct {
	BankAccount       string
	TransferReference string
	PaymentStatus     PaymentStatus
	PaymentLogs       []PaymentLogEntry
}

// OrderAudit captures actor references for create/update mutations.
type OrderAudit struct {
	CreatedBy *string
	UpdatedBy *string
}

// Order is the aggregate root of the ordering platform.
//
// Status is persisted redundantly for query efficiency; the source of truth
// is the final entry of Logs, and the two are only ever written together.
type Order struct {
	ID            string
	OrderNumber   string
	CustomerPhone string
	CustomerName  string
	Items         []OrderItem
	TotalPrice    int64
	Status        OrderStatus
	PaymentInfo   PaymentInfo
	Logs          []StatusLogEntry
	Priority      OrderPriority
	InternalNotes string

	CancellationReason *string
	CancelledAt        *time.Time

	Audit     OrderAudit
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentStatus derives the status from the audit trail. It equals Status for
// every order written through the mutation service.
func (o Order) CurrentStatus() OrderStatus {
	if len(o.Logs) == 0 {
		return o.Status
	}
	return o.Logs[len(o.Logs)-1].Status
}

// ComputeTotal sums the frozen line totals. Evaluated once at creation.
func ComputeTotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Total()
	}
	return total
}

// MenuItem is a catalog entry managed by the admin dashboard.
type MenuItem struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       int64
	Options     []string
	Available   bool
	Archived    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuditLogEntry records a staff or system action in the platform audit log.
// This trail is separate from Order.Logs, which belongs to the order itself.
type AuditLogEntry struct {
	ID        string
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Severity  string
	Metadata  map[string]any
	PhoneHash string
	RequestID string
	CreatedAt time.Time
}

// Pagination carries cursor paging inputs.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results with the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery expresses an inclusive range filter.
type RangeQuery[T any] struct {
	From *T
	To   *T
}
