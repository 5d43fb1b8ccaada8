package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/elfogon/api/internal/domain"
	pfirestore "github.com/elfogon/api/internal/platform/firestore"
	"github.com/elfogon/api/internal/repositories"
)

const ordersCollection = "orders"

// firestore "in" clauses support at most ten values
const maxInClauseValues = 10

// OrderRepository persists order aggregates in Firestore. Status mutations are
// conditional on the persisted status so concurrent staff edits surface as
// conflicts instead of silently overwriting each other.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:     pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
		provider: provider,
	}, nil
}

// Insert stores a new order document keyed by the order ID.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.base.Create(ctx, order.ID, toOrderDocument(order))
	return err
}

// FindByID loads an order aggregate including its full status trail.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// UpdateWithExpectedStatus rewrites the order inside a transaction, aborting
// when the persisted status no longer matches expectedStatus.
func (r *OrderRepository) UpdateWithExpectedStatus(ctx context.Context, order domain.Order, expectedStatus domain.OrderStatus) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var persisted orderDocument
		if err := snapshot.DataTo(&persisted); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", orderID, err)
		}
		if persisted.Status != string(expectedStatus) {
			return status.Error(codes.Aborted, "order status stale update")
		}
		return tx.Set(ref, toOrderDocument(order))
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update", err)
	}
	return order, nil
}

// List returns a dashboard page of orders, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	statuses := statusStrings(filter.Statuses)
	paymentStatuses := paymentStatusStrings(filter.PaymentStatuses)
	priorities := priorityStrings(filter.Priorities)
	phone := strings.TrimSpace(filter.CustomerPhone)

	for _, clause := range []struct {
		field  string
		values []string
	}{
		{"status", statuses},
		{"paymentInfo.paymentStatus", paymentStatuses},
		{"priority", priorities},
	} {
		if len(clause.values) > maxInClauseValues {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: %s filter accepts at most %d values, got %d",
				repositories.ErrInvalidFilter, clause.field, maxInClauseValues, len(clause.values))
		}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = applyInFilter(q, "status", statuses)
		q = applyInFilter(q, "paymentInfo.paymentStatus", paymentStatuses)
		q = applyInFilter(q, "priority", priorities)
		if phone != "" {
			q = q.Where("customerPhone", "==", phone)
		}
		if filter.CreatedAt.From != nil {
			q = q.Where("createdAt", ">=", filter.CreatedAt.From.UTC())
		}
		if filter.CreatedAt.To != nil {
			q = q.Where("createdAt", "<=", filter.CreatedAt.To.UTC())
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	var nextToken string
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		nextToken = encodeListToken(last.Data.CreatedAt, last.ID)
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, toDomainOrder(doc.ID, doc.Data))
	}
	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: nextToken}, nil
}

func applyInFilter(q firestore.Query, field string, values []string) firestore.Query {
	switch {
	case len(values) == 1:
		return q.Where(field, "==", values[0])
	case len(values) > 1:
		return q.Where(field, "in", values)
	default:
		return q
	}
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	seen := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		value := strings.TrimSpace(string(s))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func paymentStatusStrings(statuses []domain.PaymentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		if value := strings.TrimSpace(string(s)); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func priorityStrings(priorities []domain.OrderPriority) []string {
	out := make([]string, 0, len(priorities))
	for _, p := range priorities {
		if value := strings.TrimSpace(string(p)); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func encodeListToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeListToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}
