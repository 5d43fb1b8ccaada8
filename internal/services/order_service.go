package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/elfogon/api/internal/domain"
	"github.com/elfogon/api/internal/repositories"
)

const (
	orderEventCreated          = "order.created"
	orderEventStatusChanged    = "order.status.changed"
	orderEventPaymentConfirmed = "order.payment.confirmed"
	orderEventPaymentFailed    = "order.payment.failed"

	orderIDPrefix   = "ord_"
	ordersCounterID = "orders"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the lifecycle graph has no edge from
	// the current status to the requested one.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderGuardFailed indicates the edge exists but a business rule blocks it.
	ErrOrderGuardFailed = errors.New("order: transition guard failed")
	// ErrOrderConflict indicates the order changed under the caller's feet.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Counters repositories.CounterRepository
	Audit    AuditLogService
	Events   OrderEventPublisher

	// NumberPrefix shapes the human-facing order number, e.g. EF-2026-000042.
	NumberPrefix string
	// BankAccount is stamped onto every new order's payment info.
	BankAccount string

	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	counters repositories.CounterRepository
	audit    AuditLogService
	events   OrderEventPublisher

	numberPrefix string
	bankAccount  string

	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	prefix := strings.TrimSpace(deps.NumberPrefix)
	if prefix == "" {
		prefix = "EF"
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:       deps.Orders,
		counters:     deps.Counters,
		audit:        deps.Audit,
		events:       deps.Events,
		numberPrefix: prefix,
		bankAccount:  strings.TrimSpace(deps.BankAccount),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	phone := strings.TrimSpace(cmd.CustomerPhone)
	if phone == "" {
		return domain.Order{}, fmt.Errorf("%w: customer phone is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return domain.Order{}, fmt.Errorf("%w: item %d is missing a name", ErrOrderInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: item %q quantity must be positive", ErrOrderInvalidInput, item.Name)
		}
		if item.UnitPrice < 0 {
			return domain.Order{}, fmt.Errorf("%w: item %q unit price must not be negative", ErrOrderInvalidInput, item.Name)
		}
		items = append(items, item)
	}

	priority := cmd.Priority
	if priority == "" {
		priority = domain.OrderPriorityNormal
	}
	if !priority.IsValid() {
		return domain.Order{}, fmt.Errorf("%w: unknown priority %q", ErrOrderInvalidInput, priority)
	}

	now := s.now()
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	order := domain.Order{
		ID:            orderIDPrefix + s.newID(),
		OrderNumber:   number,
		CustomerPhone: phone,
		CustomerName:  strings.TrimSpace(cmd.CustomerName),
		Items:         items,
		TotalPrice:    domain.ComputeTotal(items),
		Status:        domain.OrderStatusWaitingPayment,
		PaymentInfo: domain.PaymentInfo{
			BankAccount:   s.bankAccount,
			PaymentStatus: domain.PaymentStatusPending,
		},
		Logs: []domain.StatusLogEntry{{
			Status:      domain.OrderStatusWaitingPayment,
			StatusLabel: domain.OrderStatusWaitingPayment.Label(),
			Timestamp:   now,
		}},
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if actor := strings.TrimSpace(cmd.Actor); actor != "" {
		order.Audit.CreatedBy = &actor
		order.Audit.UpdatedBy = &actor
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:   orderEventCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		StatusLabel: order.Status.Label(),
		Actor:       cmd.Actor,
		OccurredAt:  now,
	})
	s.recordAudit(ctx, AuditEntryCommand{
		Actor:         cmd.Actor,
		Action:        orderEventCreated,
		TargetRef:     "orders/" + order.ID,
		CustomerPhone: order.CustomerPhone,
		Metadata: map[string]any{
			"orderNumber": order.OrderNumber,
			"totalPrice":  order.TotalPrice,
		},
	})

	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID string) (OrderDetail, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderDetail{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return OrderDetail{}, s.mapRepositoryError(err)
	}
	return OrderDetail{
		Order:               order,
		AllowedNextStatuses: domain.NextStates(order.CurrentStatus()),
	}, nil
}

func (s *orderService) List(ctx context.Context, query OrderListQuery) (domain.CursorPage[domain.Order], error) {
	filter := repositories.OrderListFilter{
		Statuses:        query.Statuses,
		PaymentStatuses: query.PaymentStatuses,
		Priorities:      query.Priorities,
		CustomerPhone:   strings.TrimSpace(query.CustomerPhone),
		CreatedAt: domain.RangeQuery[time.Time]{
			From: query.CreatedFrom,
			To:   query.CreatedTo,
		},
		Pagination: query.Pagination,
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if !target.IsValid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	current := order.CurrentStatus()
	if cmd.ExpectedStatus != nil && *cmd.ExpectedStatus != current {
		return domain.Order{}, fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *cmd.ExpectedStatus, current)
	}

	comment := strings.TrimSpace(cmd.Comment)
	if err := evaluateTransitionGuards(order, current, target, comment); err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	s.applyStatusChange(&order, target, comment, cmd.Actor, now)

	updated, err := s.orders.UpdateWithExpectedStatus(ctx, order, current)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:      orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		Status:         target,
		StatusLabel:    target.Label(),
		PreviousStatus: current,
		Actor:          cmd.Actor,
		OccurredAt:     now,
	})
	s.recordAudit(ctx, AuditEntryCommand{
		Actor:         cmd.Actor,
		Action:        orderEventStatusChanged,
		TargetRef:     "orders/" + updated.ID,
		CustomerPhone: updated.CustomerPhone,
		Metadata: map[string]any{
			"from":    string(current),
			"to":      string(target),
			"comment": comment,
		},
	})

	return updated, nil
}

func (s *orderService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	reference := strings.TrimSpace(cmd.TransferReference)
	if reference == "" {
		return domain.Order{}, fmt.Errorf("%w: transfer reference is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	current := order.CurrentStatus()
	if order.PaymentInfo.PaymentStatus == domain.PaymentStatusPaid {
		return domain.Order{}, fmt.Errorf("%w: payment is already confirmed", ErrOrderGuardFailed)
	}
	if domain.IsTerminal(current) {
		return domain.Order{}, fmt.Errorf("%w: order is locked in terminal status %q", ErrOrderGuardFailed, current)
	}

	now := s.now()
	comment := strings.TrimSpace(cmd.Comment)

	// The payment sub-state is independent of the order status. Confirming
	// opens the gate into Cooking; the caller moves the order there with a
	// separate changeStatus call.
	order.PaymentInfo.PaymentStatus = domain.PaymentStatusPaid
	order.PaymentInfo.TransferReference = reference
	if order.PaymentInfo.BankAccount == "" {
		order.PaymentInfo.BankAccount = s.bankAccount
	}
	order.PaymentInfo.PaymentLogs = append(order.PaymentInfo.PaymentLogs, domain.PaymentLogEntry{
		Status:            domain.PaymentStatusPaid,
		BankAccount:       order.PaymentInfo.BankAccount,
		TransferReference: reference,
		Timestamp:         now,
		Comment:           comment,
	})
	s.touch(&order, cmd.Actor)

	updated, err := s.orders.UpdateWithExpectedStatus(ctx, order, current)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:   orderEventPaymentConfirmed,
		OrderID:     updated.ID,
		OrderNumber: updated.OrderNumber,
		Status:      current,
		StatusLabel: current.Label(),
		Actor:       cmd.Actor,
		OccurredAt:  now,
	})
	s.recordAudit(ctx, AuditEntryCommand{
		Actor:         cmd.Actor,
		Action:        orderEventPaymentConfirmed,
		TargetRef:     "orders/" + updated.ID,
		CustomerPhone: updated.CustomerPhone,
		Metadata: map[string]any{
			"transferReference": reference,
		},
	})

	return updated, nil
}

func (s *orderService) FailPayment(ctx context.Context, cmd FailPaymentCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	current := order.CurrentStatus()
	if current != domain.OrderStatusWaitingPayment {
		return domain.Order{}, fmt.Errorf("%w: payment can only fail while waiting for it, order is %q", ErrOrderGuardFailed, current)
	}

	now := s.now()
	comment := strings.TrimSpace(cmd.Comment)

	order.PaymentInfo.PaymentStatus = domain.PaymentStatusFailed
	order.PaymentInfo.PaymentLogs = append(order.PaymentInfo.PaymentLogs, domain.PaymentLogEntry{
		Status:      domain.PaymentStatusFailed,
		BankAccount: order.PaymentInfo.BankAccount,
		Timestamp:   now,
		Comment:     comment,
	})
	s.applyStatusChange(&order, domain.OrderStatusPaymentFailed, comment, cmd.Actor, now)

	updated, err := s.orders.UpdateWithExpectedStatus(ctx, order, current)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:      orderEventPaymentFailed,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		Status:         domain.OrderStatusPaymentFailed,
		StatusLabel:    domain.OrderStatusPaymentFailed.Label(),
		PreviousStatus: current,
		Actor:          cmd.Actor,
		OccurredAt:     now,
	})
	s.recordAudit(ctx, AuditEntryCommand{
		Actor:         cmd.Actor,
		Action:        orderEventPaymentFailed,
		TargetRef:     "orders/" + updated.ID,
		CustomerPhone: updated.CustomerPhone,
	})

	return updated, nil
}

func (s *orderService) StepBack(ctx context.Context, cmd StepBackCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	current := order.CurrentStatus()
	previous, ok := domain.PreviousState(current)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: no previous status for %q", ErrOrderInvalidTransition, current)
	}

	now := s.now()
	comment := strings.TrimSpace(cmd.Comment)
	s.applyStatusChange(&order, previous, comment, cmd.Actor, now)

	updated, err := s.orders.UpdateWithExpectedStatus(ctx, order, current)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:      orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		Status:         previous,
		StatusLabel:    previous.Label(),
		PreviousStatus: current,
		Actor:          cmd.Actor,
		OccurredAt:     now,
	})
	s.recordAudit(ctx, AuditEntryCommand{
		Actor:         cmd.Actor,
		Action:        orderEventStatusChanged,
		TargetRef:     "orders/" + updated.ID,
		CustomerPhone: updated.CustomerPhone,
		Metadata: map[string]any{
			"from":     string(current),
			"to":       string(previous),
			"stepBack": true,
		},
	})

	return updated, nil
}

func (s *orderService) UpdatePriority(ctx context.Context, cmd UpdatePriorityCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Priority.IsValid() {
		return domain.Order{}, fmt.Errorf("%w: unknown priority %q", ErrOrderInvalidInput, cmd.Priority)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	current := order.CurrentStatus()
	order.Priority = cmd.Priority
	s.touch(&order, cmd.Actor)

	updated, err := s.orders.UpdateWithExpectedStatus(ctx, order, current)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, AuditEntryCommand{
		Actor:     cmd.Actor,
		Action:    "order.priority.changed",
		TargetRef: "orders/" + updated.ID,
		Metadata:  map[string]any{"priority": string(cmd.Priority)},
	})
	return updated, nil
}

func (s *orderService) UpdateInternalNotes(ctx context.Context, cmd UpdateNotesCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	current := order.CurrentStatus()
	order.InternalNotes = strings.TrimSpace(cmd.Notes)
	s.touch(&order, cmd.Actor)

	updated, err := s.orders.UpdateWithExpectedStatus(ctx, order, current)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, AuditEntryCommand{
		Actor:     cmd.Actor,
		Action:    "order.notes.changed",
		TargetRef: "orders/" + updated.ID,
	})
	return updated, nil
}

// evaluateTransitionGuards rejects a transition before anything is written.
// Guard failures and missing edges are reported distinctly so the dashboard
// can explain the rejection.
func evaluateTransitionGuards(order domain.Order, current, target domain.OrderStatus, comment string) error {
	if current == target {
		return fmt.Errorf("%w: order is already %q", ErrOrderGuardFailed, current)
	}
	if domain.IsTerminal(current) {
		return fmt.Errorf("%w: order is locked in terminal status %q", ErrOrderGuardFailed, current)
	}
	if !domain.CanTransition(current, target) {
		return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, current, target)
	}
	if target == domain.OrderStatusCooking && order.PaymentInfo.PaymentStatus != domain.PaymentStatusPaid {
		return fmt.Errorf("%w: payment must be confirmed before cooking starts", ErrOrderGuardFailed)
	}
	if domain.RequiresComment(target) && comment == "" {
		return fmt.Errorf("%w: a reason is required to mark an order %q", ErrOrderGuardFailed, target)
	}
	return nil
}

// applyStatusChange mutates the in-memory aggregate: the persisted status and
// the appended trail entry always change together.
func (s *orderService) applyStatusChange(order *domain.Order, target domain.OrderStatus, comment, actor string, now time.Time) {
	order.Status = target
	order.Logs = append(order.Logs, domain.StatusLogEntry{
		Status:      target,
		StatusLabel: target.Label(),
		Timestamp:   now,
		Comment:     comment,
	})

	switch target {
	case domain.OrderStatusCancelled:
		reason := comment
		order.CancellationReason = &reason
		order.CancelledAt = &now
	case domain.OrderStatusRefunded:
		if order.PaymentInfo.PaymentStatus != domain.PaymentStatusRefunded {
			order.PaymentInfo.PaymentStatus = domain.PaymentStatusRefunded
			order.PaymentInfo.PaymentLogs = append(order.PaymentInfo.PaymentLogs, domain.PaymentLogEntry{
				Status:      domain.PaymentStatusRefunded,
				BankAccount: order.PaymentInfo.BankAccount,
				Timestamp:   now,
				Comment:     comment,
			})
		}
	}

	order.UpdatedAt = now
	if actor = strings.TrimSpace(actor); actor != "" {
		order.Audit.UpdatedBy = &actor
	}
}

func (s *orderService) touch(order *domain.Order, actor string) {
	order.UpdatedAt = s.now()
	if actor = strings.TrimSpace(actor); actor != "" {
		order.Audit.UpdatedBy = &actor
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, repositories.ErrInvalidFilter) {
		return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}
	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, ordersCounterID, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d-%06d", s.numberPrefix, now.Year(), seq), nil
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   message.EventType,
			"order":  message.OrderID,
			"status": string(message.Status),
			"error":  err.Error(),
		})
	}
}

func (s *orderService) recordAudit(ctx context.Context, cmd AuditEntryCommand) {
	if s.audit == nil {
		return
	}
	if cmd.ActorType == "" {
		cmd.ActorType = "staff"
	}
	if err := s.audit.Record(ctx, cmd); err != nil {
		s.logger(ctx, "order.audit.record.failed", map[string]any{
			"action": cmd.Action,
			"target": cmd.TargetRef,
			"error":  err.Error(),
		})
	}
}
