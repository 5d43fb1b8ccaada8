package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/elfogon/api/internal/domain"
	"github.com/elfogon/api/internal/repositories"
)

type stubOrderRepo struct {
	insertFn func(context.Context, domain.Order) error
	findFn   func(context.Context, string) (domain.Order, error)
	listFn   func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	updateFn func(context.Context, domain.Order, domain.OrderStatus) (domain.Order, error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepo) UpdateWithExpectedStatus(ctx context.Context, order domain.Order, expected domain.OrderStatus) (domain.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, order, expected)
	}
	return order, nil
}

// memoryOrderRepo backs multi-step lifecycle tests, enforcing the
// status-conditional write the way the Firestore repository does.
type memoryOrderRepo struct {
	orders map[string]domain.Order
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: make(map[string]domain.Order)}
}

func (m *memoryOrderRepo) Insert(_ context.Context, order domain.Order) error {
	if _, exists := m.orders[order.ID]; exists {
		return &testRepoError{conflict: true}
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memoryOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return domain.Order{}, &testRepoError{notFound: true}
	}
	return order, nil
}

func (m *memoryOrderRepo) List(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return domain.CursorPage[domain.Order]{}, nil
}

func (m *memoryOrderRepo) UpdateWithExpectedStatus(_ context.Context, order domain.Order, expected domain.OrderStatus) (domain.Order, error) {
	persisted, ok := m.orders[order.ID]
	if !ok {
		return domain.Order{}, &testRepoError{notFound: true}
	}
	if persisted.Status != expected {
		return domain.Order{}, &testRepoError{conflict: true}
	}
	m.orders[order.ID] = order
	return order, nil
}

type testRepoError struct {
	notFound bool
	conflict bool
}

func (e *testRepoError) Error() string       { return "repo error" }
func (e *testRepoError) IsNotFound() bool    { return e.notFound }
func (e *testRepoError) IsConflict() bool    { return e.conflict }
func (e *testRepoError) IsUnavailable() bool { return false }

type stubCounterRepo struct {
	nextFn func(context.Context, string, int64) (int64, error)
}

func (s *stubCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 1, nil
}

type captureOrderEvents struct {
	events []OrderEventMessage
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, message OrderEventMessage) (string, error) {
	c.events = append(c.events, message)
	return "msg-1", nil
}

var testNow = time.Date(2026, 8, 29, 13, 0, 0, 0, time.UTC)

func newTestOrderService(t *testing.T, orders repositories.OrderRepository, events OrderEventPublisher) OrderService {
	t.Helper()
	counter := int64(0)
	svc, err := NewOrderService(OrderServiceDeps{
		Orders: orders,
		Counters: &stubCounterRepo{nextFn: func(context.Context, string, int64) (int64, error) {
			counter++
			return counter, nil
		}},
		Events:       events,
		NumberPrefix: "EF",
		BankAccount:  "ES91 2100 0418 4502 0005 1332",
		Clock:        func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func testItems() []domain.OrderItem {
	return []domain.OrderItem{
		{ProductRef: "menuItems/itm_1", Name: "Parrillada mixta", Quantity: 2, UnitPrice: 1850},
		{ProductRef: "menuItems/itm_2", Name: "Choripán", Quantity: 1, UnitPrice: 650, RemovedOptions: []string{"chimichurri"}},
	}
}

func createTestOrder(t *testing.T, svc OrderService) domain.Order {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateOrderCommand{
		CustomerPhone: "+34 600 111 222",
		CustomerName:  "Lucía",
		Items:         testItems(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return order
}

func TestCreateOrder(t *testing.T) {
	repo := newMemoryOrderRepo()
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, repo, events)

	order := createTestOrder(t, svc)

	if !strings.HasPrefix(order.ID, "ord_") {
		t.Errorf("order id = %q, want ord_ prefix", order.ID)
	}
	if want := fmt.Sprintf("EF-%04d-%06d", testNow.Year(), 1); order.OrderNumber != want {
		t.Errorf("order number = %q, want %q", order.OrderNumber, want)
	}
	if want := int64(2*1850 + 650); order.TotalPrice != want {
		t.Errorf("total price = %d, want %d", order.TotalPrice, want)
	}
	if order.Status != domain.OrderStatusWaitingPayment {
		t.Errorf("status = %q, want waiting_payment", order.Status)
	}
	if order.PaymentInfo.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("payment status = %q, want pending", order.PaymentInfo.PaymentStatus)
	}
	if order.PaymentInfo.BankAccount == "" {
		t.Error("bank account should be stamped onto new orders")
	}
	if len(order.Logs) != 1 {
		t.Fatalf("logs length = %d, want 1", len(order.Logs))
	}
	if order.Logs[0].Status != domain.OrderStatusWaitingPayment || order.Logs[0].StatusLabel != "Esperando pago" {
		t.Errorf("initial log entry = %+v", order.Logs[0])
	}
	if order.CurrentStatus() != order.Status {
		t.Error("derived status must match persisted status")
	}
	if len(events.events) != 1 || events.events[0].EventType != orderEventCreated {
		t.Errorf("events = %+v, want one order.created", events.events)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newTestOrderService(t, newMemoryOrderRepo(), nil)

	cases := []struct {
		name string
		cmd  CreateOrderCommand
	}{
		{name: "missing phone", cmd: CreateOrderCommand{Items: testItems()}},
		{name: "no items", cmd: CreateOrderCommand{CustomerPhone: "+34 600 111 222"}},
		{name: "zero quantity", cmd: CreateOrderCommand{
			CustomerPhone: "+34 600 111 222",
			Items:         []domain.OrderItem{{Name: "Empanada", Quantity: 0, UnitPrice: 300}},
		}},
		{name: "negative price", cmd: CreateOrderCommand{
			CustomerPhone: "+34 600 111 222",
			Items:         []domain.OrderItem{{Name: "Empanada", Quantity: 1, UnitPrice: -1}},
		}},
		{name: "bad priority", cmd: CreateOrderCommand{
			CustomerPhone: "+34 600 111 222",
			Items:         testItems(),
			Priority:      domain.OrderPriority("asap"),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.cmd); !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("Create error = %v, want ErrOrderInvalidInput", err)
			}
		})
	}
}

func TestConfirmPaymentKeepsStatus(t *testing.T) {
	repo := newMemoryOrderRepo()
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, repo, events)
	order := createTestOrder(t, svc)

	updated, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentCommand{
		OrderID:           order.ID,
		TransferReference: "TRF-20260829-01",
		Actor:             "caja@elfogon.example",
	})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	// Confirming the payment flips the sub-state only; the order status is
	// untouched until a changeStatus call moves it to cooking.
	if updated.Status != domain.OrderStatusWaitingPayment {
		t.Errorf("status = %q, want waiting_payment", updated.Status)
	}
	if updated.PaymentInfo.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("payment status = %q, want paid", updated.PaymentInfo.PaymentStatus)
	}
	if updated.PaymentInfo.TransferReference != "TRF-20260829-01" {
		t.Errorf("transfer reference = %q", updated.PaymentInfo.TransferReference)
	}
	if len(updated.Logs) != 1 || updated.Logs[0].Status != domain.OrderStatusWaitingPayment {
		t.Fatalf("logs = %+v, want the creation entry only", updated.Logs)
	}
	if len(updated.PaymentInfo.PaymentLogs) != 1 || updated.PaymentInfo.PaymentLogs[0].Status != domain.PaymentStatusPaid {
		t.Fatalf("payment logs = %+v", updated.PaymentInfo.PaymentLogs)
	}

	// Second confirmation must be rejected without touching the order.
	if _, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentCommand{
		OrderID:           order.ID,
		TransferReference: "TRF-20260829-02",
	}); !errors.Is(err, ErrOrderGuardFailed) {
		t.Fatalf("repeat ConfirmPayment error = %v, want ErrOrderGuardFailed", err)
	}
}

func TestConfirmPaymentOpensCookingGate(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	ctx := context.Background()
	order := createTestOrder(t, svc)

	confirmed, err := svc.ConfirmPayment(ctx, ConfirmPaymentCommand{OrderID: order.ID, TransferReference: "TRF-1"})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if confirmed.Status != domain.OrderStatusWaitingPayment || len(confirmed.Logs) != 1 {
		t.Fatalf("after confirmation status = %q, logs = %d; want waiting_payment with 1 entry", confirmed.Status, len(confirmed.Logs))
	}

	cooking, err := svc.ChangeStatus(ctx, ChangeStatusCommand{OrderID: order.ID, TargetStatus: domain.OrderStatusCooking})
	if err != nil {
		t.Fatalf("ChangeStatus(cooking): %v", err)
	}
	if cooking.Status != domain.OrderStatusCooking {
		t.Errorf("status = %q, want cooking", cooking.Status)
	}
	if len(cooking.Logs) != 2 || cooking.Logs[1].Status != domain.OrderStatusCooking {
		t.Fatalf("logs = %+v, want trail ending in cooking", cooking.Logs)
	}
}

func TestConfirmPaymentRequiresReference(t *testing.T) {
	svc := newTestOrderService(t, newMemoryOrderRepo(), nil)
	if _, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentCommand{OrderID: "ord_1"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("error = %v, want ErrOrderInvalidInput", err)
	}
}

func TestChangeStatusPaymentGate(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	order := createTestOrder(t, svc)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusCooking,
	})
	if !errors.Is(err, ErrOrderGuardFailed) {
		t.Fatalf("error = %v, want ErrOrderGuardFailed (payment gate)", err)
	}
}

func TestChangeStatusInvalidTransition(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	order := createTestOrder(t, svc)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusCompleted,
	})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("error = %v, want ErrOrderInvalidTransition", err)
	}
}

func TestChangeStatusRejectsNoOp(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	order := createTestOrder(t, svc)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusWaitingPayment,
	})
	if !errors.Is(err, ErrOrderGuardFailed) {
		t.Fatalf("error = %v, want ErrOrderGuardFailed (no-op)", err)
	}

	persisted, _ := repo.FindByID(context.Background(), order.ID)
	if len(persisted.Logs) != 1 {
		t.Fatalf("rejected mutation must not append log entries, got %d", len(persisted.Logs))
	}
}

func TestCancellationRequiresReason(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	order := createTestOrder(t, svc)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusCancelled,
		Comment:      "   ",
	})
	if !errors.Is(err, ErrOrderGuardFailed) {
		t.Fatalf("blank-reason cancel error = %v, want ErrOrderGuardFailed", err)
	}

	cancelled, err := svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusCancelled,
		Comment:      "Cliente no respondió al teléfono",
	})
	if err != nil {
		t.Fatalf("cancel with reason: %v", err)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "Cliente no respondió al teléfono" {
		t.Errorf("cancellation reason = %v", cancelled.CancellationReason)
	}
	if cancelled.CancelledAt == nil || !cancelled.CancelledAt.Equal(testNow) {
		t.Errorf("cancelledAt = %v, want %v", cancelled.CancelledAt, testNow)
	}
	if last := cancelled.Logs[len(cancelled.Logs)-1]; last.Comment != "Cliente no respondió al teléfono" {
		t.Errorf("last log comment = %q", last.Comment)
	}
}

func TestTerminalStatusesAreLocked(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	order := createTestOrder(t, svc)

	if _, err := svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusCancelled,
		Comment:      "pedido duplicado",
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusCooking,
	})
	if !errors.Is(err, ErrOrderGuardFailed) {
		t.Fatalf("mutation on terminal order error = %v, want ErrOrderGuardFailed", err)
	}
}

func TestDeliveryLifecycleTrail(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	ctx := context.Background()
	order := createTestOrder(t, svc)

	if _, err := svc.ConfirmPayment(ctx, ConfirmPaymentCommand{OrderID: order.ID, TransferReference: "TRF-1"}); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	for _, target := range []domain.OrderStatus{
		domain.OrderStatusCooking,
		domain.OrderStatusInTransit,
		domain.OrderStatusWaitingPickup,
		domain.OrderStatusCompleted,
	} {
		if _, err := svc.ChangeStatus(ctx, ChangeStatusCommand{OrderID: order.ID, TargetStatus: target}); err != nil {
			t.Fatalf("ChangeStatus(%s): %v", target, err)
		}
	}

	final, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(final.Logs) != 5 {
		t.Fatalf("logs length = %d, want 5", len(final.Logs))
	}
	wantTrail := []domain.OrderStatus{
		domain.OrderStatusWaitingPayment,
		domain.OrderStatusCooking,
		domain.OrderStatusInTransit,
		domain.OrderStatusWaitingPickup,
		domain.OrderStatusCompleted,
	}
	for i, want := range wantTrail {
		if final.Logs[i].Status != want {
			t.Errorf("logs[%d].Status = %q, want %q", i, final.Logs[i].Status, want)
		}
		if final.Logs[i].StatusLabel != want.Label() {
			t.Errorf("logs[%d].StatusLabel = %q, want %q", i, final.Logs[i].StatusLabel, want.Label())
		}
	}
	if final.CurrentStatus() != domain.OrderStatusCompleted || final.Status != domain.OrderStatusCompleted {
		t.Errorf("final status = %q / derived %q, want completed", final.Status, final.CurrentStatus())
	}
}

func TestRefundSyncsPaymentStatus(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	ctx := context.Background()
	order := createTestOrder(t, svc)

	if _, err := svc.ConfirmPayment(ctx, ConfirmPaymentCommand{OrderID: order.ID, TransferReference: "TRF-1"}); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	for _, target := range []domain.OrderStatus{domain.OrderStatusCooking, domain.OrderStatusIssue} {
		if _, err := svc.ChangeStatus(ctx, ChangeStatusCommand{OrderID: order.ID, TargetStatus: target}); err != nil {
			t.Fatalf("ChangeStatus(%s): %v", target, err)
		}
	}

	refunded, err := svc.ChangeStatus(ctx, ChangeStatusCommand{
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusRefunded,
		Comment:      "Plato equivocado, se devuelve el importe",
	})
	if err != nil {
		t.Fatalf("ChangeStatus(refunded): %v", err)
	}
	if refunded.PaymentInfo.PaymentStatus != domain.PaymentStatusRefunded {
		t.Errorf("payment status = %q, want refunded", refunded.PaymentInfo.PaymentStatus)
	}
	last := refunded.PaymentInfo.PaymentLogs[len(refunded.PaymentInfo.PaymentLogs)-1]
	if last.Status != domain.PaymentStatusRefunded {
		t.Errorf("last payment log = %+v", last)
	}
}

func TestChangeStatusExpectedStatusMismatch(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	order := createTestOrder(t, svc)

	expected := domain.OrderStatusCooking
	_, err := svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:        order.ID,
		TargetStatus:   domain.OrderStatusCancelled,
		Comment:        "cierre de cocina",
		ExpectedStatus: &expected,
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("error = %v, want ErrOrderConflict", err)
	}
}

func TestChangeStatusRepositoryConflict(t *testing.T) {
	base := createTestOrder(t, newTestOrderService(t, newMemoryOrderRepo(), nil))
	repo := &stubOrderRepo{
		findFn: func(context.Context, string) (domain.Order, error) {
			return base, nil
		},
		updateFn: func(context.Context, domain.Order, domain.OrderStatus) (domain.Order, error) {
			return domain.Order{}, &testRepoError{conflict: true}
		},
	}
	svc := newTestOrderService(t, repo, nil)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:      base.ID,
		TargetStatus: domain.OrderStatusCancelled,
		Comment:      "conflicto simulado",
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("error = %v, want ErrOrderConflict", err)
	}
}

func TestListMapsInvalidFilter(t *testing.T) {
	repo := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: status filter accepts at most 10 values", repositories.ErrInvalidFilter)
		},
	}
	svc := newTestOrderService(t, repo, nil)

	_, err := svc.List(context.Background(), OrderListQuery{})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("error = %v, want ErrOrderInvalidInput", err)
	}
}

func TestChangeStatusNotFound(t *testing.T) {
	svc := newTestOrderService(t, newMemoryOrderRepo(), nil)
	_, err := svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:      "ord_missing",
		TargetStatus: domain.OrderStatusCooking,
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestFailPayment(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	ctx := context.Background()
	order := createTestOrder(t, svc)

	failed, err := svc.FailPayment(ctx, FailPaymentCommand{OrderID: order.ID, Comment: "transferencia rechazada"})
	if err != nil {
		t.Fatalf("FailPayment: %v", err)
	}
	if failed.Status != domain.OrderStatusPaymentFailed {
		t.Errorf("status = %q, want payment_failed", failed.Status)
	}
	if failed.PaymentInfo.PaymentStatus != domain.PaymentStatusFailed {
		t.Errorf("payment status = %q, want failed", failed.PaymentInfo.PaymentStatus)
	}

	// Retry path: a later confirmation flips the sub-state back to paid
	// without moving the order by itself.
	retried, err := svc.ConfirmPayment(ctx, ConfirmPaymentCommand{OrderID: order.ID, TransferReference: "TRF-2"})
	if err != nil {
		t.Fatalf("ConfirmPayment after failure: %v", err)
	}
	if retried.Status != domain.OrderStatusPaymentFailed {
		t.Errorf("status after retry = %q, want payment_failed", retried.Status)
	}
	if retried.PaymentInfo.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("payment status after retry = %q, want paid", retried.PaymentInfo.PaymentStatus)
	}
	if _, err := svc.ChangeStatus(ctx, ChangeStatusCommand{OrderID: order.ID, TargetStatus: domain.OrderStatusCooking}); err != nil {
		t.Fatalf("ChangeStatus(cooking): %v", err)
	}

	// Failing a payment on an order that is already cooking is rejected.
	if _, err := svc.FailPayment(ctx, FailPaymentCommand{OrderID: order.ID}); !errors.Is(err, ErrOrderGuardFailed) {
		t.Fatalf("FailPayment on cooking order error = %v, want ErrOrderGuardFailed", err)
	}
}

func TestStepBack(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	ctx := context.Background()
	order := createTestOrder(t, svc)

	if _, err := svc.StepBack(ctx, StepBackCommand{OrderID: order.ID}); !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("StepBack from waiting_payment error = %v, want ErrOrderInvalidTransition", err)
	}

	if _, err := svc.ConfirmPayment(ctx, ConfirmPaymentCommand{OrderID: order.ID, TransferReference: "TRF-1"}); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	for _, target := range []domain.OrderStatus{domain.OrderStatusCooking, domain.OrderStatusInTransit} {
		if _, err := svc.ChangeStatus(ctx, ChangeStatusCommand{OrderID: order.ID, TargetStatus: target}); err != nil {
			t.Fatalf("ChangeStatus(%s): %v", target, err)
		}
	}

	stepped, err := svc.StepBack(ctx, StepBackCommand{OrderID: order.ID, Comment: "salió el repartidor equivocado"})
	if err != nil {
		t.Fatalf("StepBack: %v", err)
	}
	if stepped.Status != domain.OrderStatusCooking {
		t.Errorf("status = %q, want cooking", stepped.Status)
	}
	if last := stepped.Logs[len(stepped.Logs)-1]; last.Status != domain.OrderStatusCooking {
		t.Errorf("last log = %+v, want cooking entry", last)
	}
}

func TestGetReturnsAllowedNextStatuses(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	order := createTestOrder(t, svc)

	detail, err := svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := map[domain.OrderStatus]bool{
		domain.OrderStatusCooking:   true,
		domain.OrderStatusCancelled: true,
	}
	if len(detail.AllowedNextStatuses) != len(want) {
		t.Fatalf("allowed next statuses = %v", detail.AllowedNextStatuses)
	}
	for _, status := range detail.AllowedNextStatuses {
		if !want[status] {
			t.Errorf("unexpected allowed status %q", status)
		}
	}
}

func TestUpdatePriorityAndNotes(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestOrderService(t, repo, nil)
	ctx := context.Background()
	order := createTestOrder(t, svc)

	updated, err := svc.UpdatePriority(ctx, UpdatePriorityCommand{OrderID: order.ID, Priority: domain.OrderPriorityUrgent, Actor: "sala@elfogon.example"})
	if err != nil {
		t.Fatalf("UpdatePriority: %v", err)
	}
	if updated.Priority != domain.OrderPriorityUrgent {
		t.Errorf("priority = %q, want urgent", updated.Priority)
	}
	if len(updated.Logs) != 1 {
		t.Errorf("priority change must not append status log entries, got %d", len(updated.Logs))
	}

	noted, err := svc.UpdateInternalNotes(ctx, UpdateNotesCommand{OrderID: order.ID, Notes: "sin picante en todo"})
	if err != nil {
		t.Fatalf("UpdateInternalNotes: %v", err)
	}
	if noted.InternalNotes != "sin picante en todo" {
		t.Errorf("notes = %q", noted.InternalNotes)
	}

	if _, err := svc.UpdatePriority(ctx, UpdatePriorityCommand{OrderID: order.ID, Priority: "whenever"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("invalid priority error = %v, want ErrOrderInvalidInput", err)
	}
}

func TestChangeStatusEmitsEvent(t *testing.T) {
	repo := newMemoryOrderRepo()
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, repo, events)
	order := createTestOrder(t, svc)

	ctx := context.Background()
	if _, err := svc.ConfirmPayment(ctx, ConfirmPaymentCommand{OrderID: order.ID, TransferReference: "TRF-1"}); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	confirmed := events.events[len(events.events)-1]
	if confirmed.EventType != orderEventPaymentConfirmed {
		t.Errorf("event type = %q, want %q", confirmed.EventType, orderEventPaymentConfirmed)
	}
	// Confirmation is a sub-state change, so the event carries the status as
	// is and no previous status.
	if confirmed.Status != domain.OrderStatusWaitingPayment || confirmed.PreviousStatus != "" {
		t.Errorf("confirmation event statuses = %q (previous %q), want waiting_payment with no previous", confirmed.Status, confirmed.PreviousStatus)
	}

	if _, err := svc.ChangeStatus(ctx, ChangeStatusCommand{OrderID: order.ID, TargetStatus: domain.OrderStatusCooking}); err != nil {
		t.Fatalf("ChangeStatus(cooking): %v", err)
	}
	moved := events.events[len(events.events)-1]
	if moved.EventType != orderEventStatusChanged {
		t.Errorf("event type = %q, want %q", moved.EventType, orderEventStatusChanged)
	}
	if moved.PreviousStatus != domain.OrderStatusWaitingPayment || moved.Status != domain.OrderStatusCooking {
		t.Errorf("event statuses = %q -> %q", moved.PreviousStatus, moved.Status)
	}
}
