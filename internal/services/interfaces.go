package services

import (
	"context"
	"time"

	domain "github.com/elfogon/api/internal/domain"
	"github.com/elfogon/api/internal/repositories"
)

// OrderService owns every mutation of the order lifecycle. All writes funnel
// through it so the status trail and the persisted status never diverge.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	Get(ctx context.Context, orderID string) (OrderDetail, error)
	List(ctx context.Context, query OrderListQuery) (domain.CursorPage[domain.Order], error)
	ChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (domain.Order, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (domain.Order, error)
	FailPayment(ctx context.Context, cmd FailPaymentCommand) (domain.Order, error)
	StepBack(ctx context.Context, cmd StepBackCommand) (domain.Order, error)
	UpdatePriority(ctx context.Context, cmd UpdatePriorityCommand) (domain.Order, error)
	UpdateInternalNotes(ctx context.Context, cmd UpdateNotesCommand) (domain.Order, error)
}

// MenuService maintains the catalog the dashboard composes orders from.
type MenuService interface {
	Create(ctx context.Context, cmd UpsertMenuItemCommand) (domain.MenuItem, error)
	Update(ctx context.Context, itemID string, cmd UpsertMenuItemCommand) (domain.MenuItem, error)
	Archive(ctx context.Context, itemID string, actor string) error
	Get(ctx context.Context, itemID string) (domain.MenuItem, error)
	List(ctx context.Context, filter repositories.MenuItemFilter) (domain.CursorPage[domain.MenuItem], error)
}

// AuditLogService records staff and system actions in the platform audit
// trail. Customer phone numbers are hashed before they reach storage.
type AuditLogService interface {
	Record(ctx context.Context, cmd AuditEntryCommand) error
	List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error)
}

// OrderEventPublisher hands order lifecycle events to downstream consumers
// (kitchen display, customer notifications, analytics).
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// OrderEventMessage is the wire payload published per lifecycle event.
type OrderEventMessage struct {
	EventType      string             `json:"event_type"`
	OrderID        string             `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	Status         domain.OrderStatus `json:"status"`
	StatusLabel    string             `json:"status_label"`
	PreviousStatus domain.OrderStatus `json:"previous_status,omitempty"`
	Actor          string             `json:"actor,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// OrderDetail pairs an order with the transitions the UI may offer next.
type OrderDetail struct {
	Order               domain.Order
	AllowedNextStatuses []domain.OrderStatus
}

// CreateOrderCommand captures a checkout submission.
type CreateOrderCommand struct {
	CustomerPhone string
	CustomerName  string
	Items         []domain.OrderItem
	Priority      domain.OrderPriority
	Actor         string
}

// ChangeStatusCommand moves an order along the lifecycle graph.
type ChangeStatusCommand struct {
	OrderID      string
	TargetStatus domain.OrderStatus
	// Comment is mandatory when the target requires a recorded reason.
	Comment string
	Actor   string
	// ExpectedStatus, when set, rejects the mutation if the order moved on
	// since the caller last read it.
	ExpectedStatus *domain.OrderStatus
}

// ConfirmPaymentCommand records a verified bank transfer and starts cooking.
type ConfirmPaymentCommand struct {
	OrderID           string
	TransferReference string
	Comment           string
	Actor             string
}

// FailPaymentCommand records that an announced transfer never arrived.
type FailPaymentCommand struct {
	OrderID string
	Comment string
	Actor   string
}

// StepBackCommand undoes one step along the common fulfilment path.
type StepBackCommand struct {
	OrderID string
	Comment string
	Actor   string
}

// UpdatePriorityCommand re-flags how urgently staff should treat an order.
type UpdatePriorityCommand struct {
	OrderID  string
	Priority domain.OrderPriority
	Actor    string
}

// UpdateNotesCommand replaces the free-form internal notes on an order.
type UpdateNotesCommand struct {
	OrderID string
	Notes   string
	Actor   string
}

// OrderListQuery filters the staff dashboard listing.
type OrderListQuery struct {
	Statuses        []domain.OrderStatus
	PaymentStatuses []domain.PaymentStatus
	Priorities      []domain.OrderPriority
	CustomerPhone   string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Pagination      domain.Pagination
}

// UpsertMenuItemCommand carries catalog fields for create and update.
type UpsertMenuItemCommand struct {
	Name        string
	Description string
	Category    string
	Price       int64
	Options     []string
	Available   bool
	Actor       string
}

// AuditEntryCommand describes one recordable action.
type AuditEntryCommand struct {
	Actor         string
	ActorType     string
	Action        string
	TargetRef     string
	Severity      string
	Metadata      map[string]any
	CustomerPhone string
	RequestID     string
}
