package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/elfogon/api/internal/domain"
	"github.com/elfogon/api/internal/platform/auth"
	"github.com/elfogon/api/internal/platform/httpx"
	"github.com/elfogon/api/internal/services"
)

// OrderHandlers exposes the order lifecycle endpoints used by the dashboard
// and the checkout collaborator.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:change-status", h.changeStatus)
	r.Post("/{orderID}:confirm-payment", h.confirmPayment)
	r.Post("/{orderID}:fail-payment", h.failPayment)
	r.Post("/{orderID}:step-back", h.stepBack)
	r.Patch("/{orderID}/priority", h.updatePriority)
	r.Patch("/{orderID}/notes", h.updateNotes)
}

type createOrderRequest struct {
	CustomerPhone string                   `json:"customer_phone"`
	CustomerName  string                   `json:"customer_name"`
	Priority      string                   `json:"priority"`
	Items         []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductRef     string   `json:"product_ref"`
	Name           string   `json:"name"`
	RemovedOptions []string `json:"removed_options"`
	Quantity       int      `json:"quantity"`
	UnitPrice      int64    `json:"unit_price"`
	Note           string   `json:"note"`
}

type changeStatusRequest struct {
	TargetStatus   string `json:"target_status"`
	Comment        string `json:"comment"`
	ExpectedStatus string `json:"expected_status"`
}

type confirmPaymentRequest struct {
	TransferReference string `json:"transfer_reference"`
	Comment           string `json:"comment"`
}

type failPaymentRequest struct {
	Comment string `json:"comment"`
}

type stepBackRequest struct {
	Comment string `json:"comment"`
}

type updatePriorityRequest struct {
	Priority string `json:"priority"`
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ProductRef:     item.ProductRef,
			Name:           item.Name,
			RemovedOptions: item.RemovedOptions,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			Note:           item.Note,
		})
	}

	order, err := h.orders.Create(ctx, services.CreateOrderCommand{
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
		Items:         items,
		Priority:      domain.OrderPriority(strings.TrimSpace(req.Priority)),
		Actor:         actorFromContext(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	query := r.URL.Query()

	var statuses []domain.OrderStatus
	for _, raw := range query["status"] {
		status, ok := domain.ParseOrderStatus(strings.TrimSpace(strings.ToLower(raw)))
		if !ok {
			writeInvalidRequest(w, r, "unknown status filter "+raw)
			return
		}
		statuses = append(statuses, status)
	}

	listQuery := services.OrderListQuery{
		Statuses:      statuses,
		CustomerPhone: query.Get("customer_phone"),
	}
	for _, raw := range query["payment_status"] {
		listQuery.PaymentStatuses = append(listQuery.PaymentStatuses, domain.PaymentStatus(strings.TrimSpace(raw)))
	}
	for _, raw := range query["priority"] {
		listQuery.Priorities = append(listQuery.Priorities, domain.OrderPriority(strings.TrimSpace(raw)))
	}

	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeInvalidRequest(w, r, "created_after must be a valid RFC3339 timestamp")
			return
		}
		listQuery.CreatedFrom = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeInvalidRequest(w, r, "created_before must be a valid RFC3339 timestamp")
			return
		}
		listQuery.CreatedTo = &ts
	}

	pageSize, err := parsePageSize(query.Get("page_size"))
	if err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}
	listQuery.Pagination = domain.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}

	page, err := h.orders.List(ctx, listQuery)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	orders := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		orders = append(orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Orders:        orders,
		NextPageToken: page.NextPageToken,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	detail, err := h.orders.Get(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := orderDetailResponse{
		orderPayload:        buildOrderPayload(detail.Order),
		AllowedNextStatuses: statusStrings(detail.AllowedNextStatuses),
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) changeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	var req changeStatusRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	target, ok := domain.ParseOrderStatus(strings.TrimSpace(strings.ToLower(req.TargetStatus)))
	if !ok {
		writeInvalidRequest(w, r, "unknown target_status "+req.TargetStatus)
		return
	}

	cmd := services.ChangeStatusCommand{
		OrderID:      chi.URLParam(r, "orderID"),
		TargetStatus: target,
		Comment:      req.Comment,
		Actor:        actorFromContext(ctx),
	}
	if raw := strings.TrimSpace(req.ExpectedStatus); raw != "" {
		expected, ok := domain.ParseOrderStatus(strings.ToLower(raw))
		if !ok {
			writeInvalidRequest(w, r, "unknown expected_status "+raw)
			return
		}
		cmd.ExpectedStatus = &expected
	}

	order, err := h.orders.ChangeStatus(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	var req confirmPaymentRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	order, err := h.orders.ConfirmPayment(ctx, services.ConfirmPaymentCommand{
		OrderID:           chi.URLParam(r, "orderID"),
		TransferReference: req.TransferReference,
		Comment:           req.Comment,
		Actor:             actorFromContext(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) failPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	var req failPaymentRequest
	if err := decodeJSONBody(w, r, &req); err != nil && !errors.Is(err, errBodyRequired) {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	order, err := h.orders.FailPayment(ctx, services.FailPaymentCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Comment: req.Comment,
		Actor:   actorFromContext(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) stepBack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	var req stepBackRequest
	if err := decodeJSONBody(w, r, &req); err != nil && !errors.Is(err, errBodyRequired) {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	order, err := h.orders.StepBack(ctx, services.StepBackCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Comment: req.Comment,
		Actor:   actorFromContext(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) updatePriority(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	var req updatePriorityRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	order, err := h.orders.UpdatePriority(ctx, services.UpdatePriorityCommand{
		OrderID:  chi.URLParam(r, "orderID"),
		Priority: domain.OrderPriority(strings.TrimSpace(req.Priority)),
		Actor:    actorFromContext(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) updateNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	var req updateNotesRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	order, err := h.orders.UpdateInternalNotes(ctx, services.UpdateNotesCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Notes:   req.Notes,
		Actor:   actorFromContext(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

// Payloads --------------------------------------------------------------

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderDetailResponse struct {
	orderPayload
	AllowedNextStatuses []string `json:"allowed_next_statuses"`
}

type orderPayload struct {
	ID                 string              `json:"id"`
	OrderNumber        string              `json:"order_number"`
	CustomerPhone      string              `json:"customer_phone"`
	CustomerName       string              `json:"customer_name,omitempty"`
	Items              []orderItemPayload  `json:"items"`
	TotalPrice         int64               `json:"total_price"`
	Status             string              `json:"status"`
	StatusLabel        string              `json:"status_label"`
	PaymentInfo        paymentInfoPayload  `json:"payment_info"`
	Logs               []statusLogPayload  `json:"logs"`
	Priority           string              `json:"priority"`
	InternalNotes      string              `json:"internal_notes,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	CancelledAt        string              `json:"cancelled_at,omitempty"`
	CreatedAt          string              `json:"created_at"`
	UpdatedAt          string              `json:"updated_at"`
}

type orderItemPayload struct {
	ProductRef     string   `json:"product_ref,omitempty"`
	Name           string   `json:"name"`
	RemovedOptions []string `json:"removed_options,omitempty"`
	Quantity       int      `json:"quantity"`
	UnitPrice      int64    `json:"unit_price"`
	Note           string   `json:"note,omitempty"`
}

type paymentInfoPayload struct {
	BankAccount       string              `json:"bank_account,omitempty"`
	TransferReference string              `json:"transfer_reference,omitempty"`
	PaymentStatus     string              `json:"payment_status"`
	PaymentLogs       []paymentLogPayload `json:"payment_logs,omitempty"`
}

type paymentLogPayload struct {
	Status            string `json:"status"`
	BankAccount       string `json:"bank_account,omitempty"`
	TransferReference string `json:"transfer_reference,omitempty"`
	Timestamp         string `json:"timestamp"`
	Comment           string `json:"comment,omitempty"`
}

type statusLogPayload struct {
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	Timestamp   string `json:"timestamp"`
	Comment     string `json:"comment,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductRef:     item.ProductRef,
			Name:           item.Name,
			RemovedOptions: item.RemovedOptions,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			Note:           item.Note,
		})
	}
	logs := make([]statusLogPayload, 0, len(order.Logs))
	for _, entry := range order.Logs {
		logs = append(logs, statusLogPayload{
			Status:      string(entry.Status),
			StatusLabel: entry.StatusLabel,
			Timestamp:   formatTime(entry.Timestamp),
			Comment:     entry.Comment,
		})
	}
	paymentLogs := make([]paymentLogPayload, 0, len(order.PaymentInfo.PaymentLogs))
	for _, entry := range order.PaymentInfo.PaymentLogs {
		paymentLogs = append(paymentLogs, paymentLogPayload{
			Status:            string(entry.Status),
			BankAccount:       entry.BankAccount,
			TransferReference: entry.TransferReference,
			Timestamp:         formatTime(entry.Timestamp),
			Comment:           entry.Comment,
		})
	}

	payload := orderPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerPhone: order.CustomerPhone,
		CustomerName:  order.CustomerName,
		Items:         items,
		TotalPrice:    order.TotalPrice,
		Status:        string(order.Status),
		StatusLabel:   order.Status.Label(),
		PaymentInfo: paymentInfoPayload{
			BankAccount:       order.PaymentInfo.BankAccount,
			TransferReference: order.PaymentInfo.TransferReference,
			PaymentStatus:     string(order.PaymentInfo.PaymentStatus),
			PaymentLogs:       paymentLogs,
		},
		Logs:          logs,
		Priority:      string(order.Priority),
		InternalNotes: order.InternalNotes,
		CancelledAt:   formatTimePtr(order.CancelledAt),
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
	if order.CancellationReason != nil {
		payload.CancellationReason = *order.CancellationReason
	}
	return payload
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

func actorFromContext(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		return identity.Actor()
	}
	return ""
}

func writeOrderServiceUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderGuardFailed):
		httpx.WriteError(ctx, w, httpx.NewError("order_guard_failed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
