package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/elfogon/api/internal/platform/firestore"
	"github.com/elfogon/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry interface for dependency injection.
type Registry struct {
	provider *pfirestore.Provider

	orders    *OrderRepository
	menuItems *MenuItemRepository
	auditLogs *AuditLogRepository
	counters  *CounterRepository
}

// NewRegistry constructs every repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	menuItems, err := NewMenuItemRepository(provider)
	if err != nil {
		return nil, err
	}
	auditLogs, err := NewAuditLogRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		orders:    orders,
		menuItems: menuItems,
		auditLogs: auditLogs,
		counters:  counters,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close()
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// MenuItems returns the catalog repository.
func (r *Registry) MenuItems() repositories.MenuItemRepository { return r.menuItems }

// AuditLogs returns the platform audit trail repository.
func (r *Registry) AuditLogs() repositories.AuditLogRepository { return r.auditLogs }

// Counters returns the sequence counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// RunInTx executes fn directly. Mutations that need atomicity run their own
// Firestore transactions inside the individual repositories.
func (r *Registry) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
