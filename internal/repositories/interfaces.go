package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/elfogon/api/internal/domain"
)

// ErrInvalidFilter reports a listing filter the backing store cannot execute,
// such as an "in" clause with more values than the store supports.
var ErrInvalidFilter = errors.New("invalid list filter")

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	MenuItems() MenuItemRepository
	AuditLogs() AuditLogRepository
	Counters() CounterRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order aggregates, including the embedded status trail.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// UpdateWithExpectedStatus writes the order only when the persisted status
	// still equals expectedStatus, returning a RepositoryError with IsConflict
	// when another writer got there first.
	UpdateWithExpectedStatus(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) (domain.Order, error)
}

// MenuItemRepository maintains the catalog the dashboard builds orders from.
type MenuItemRepository interface {
	Insert(ctx context.Context, item domain.MenuItem) error
	Update(ctx context.Context, item domain.MenuItem) error
	Archive(ctx context.Context, itemID string, archivedAt time.Time) error
	FindByID(ctx context.Context, itemID string) (domain.MenuItem, error)
	List(ctx context.Context, filter MenuItemFilter) (domain.CursorPage[domain.MenuItem], error)
}

// AuditLogRepository persists immutable platform audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error)
}

// CounterRepository provides transaction-safe sequence numbers for order numbering.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderListFilter narrows order listings for the dashboard board view.
type OrderListFilter struct {
	Statuses        []domain.OrderStatus
	PaymentStatuses []domain.PaymentStatus
	Priorities      []domain.OrderPriority
	CustomerPhone   string
	CreatedAt       domain.RangeQuery[time.Time]
	Pagination      domain.Pagination
}

// MenuItemFilter narrows catalog listings.
type MenuItemFilter struct {
	Category        string
	AvailableOnly   bool
	IncludeArchived bool
	Pagination      domain.Pagination
}

// AuditLogFilter narrows platform audit trail listings.
type AuditLogFilter struct {
	Actor      string
	Action     string
	TargetRef  string
	CreatedAt  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}
