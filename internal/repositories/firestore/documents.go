package firestore

import (
	"time"

	domain "github.com/elfogon/api/internal/domain"
)

type orderItemDocument struct {
	ProductRef     string   `firestore:"productRef"`
	Name           string   `firestore:"name"`
	RemovedOptions []string `firestore:"removedOptions,omitempty"`
	Quantity       int      `firestore:"quantity"`
	UnitPrice      int64    `firestore:"unitPrice"`
	Note           string   `firestore:"note,omitempty"`
}

type statusLogDocument struct {
	Status      string    `firestore:"status"`
	StatusLabel string    `firestore:"statusLabel"`
	Timestamp   time.Time `firestore:"timestamp"`
	Comment     string    `firestore:"comment,omitempty"`
}

type paymentLogDocument struct {
	Status            string    `firestore:"status"`
	BankAccount       string    `firestore:"bankAccount,omitempty"`
	TransferReference string    `firestore:"transferReference,omitempty"`
	Timestamp         time.Time `firestore:"timestamp"`
	Comment           string    `firestore:"comment,omitempty"`
}

type paymentInfoDocument struct {
	BankAccount       string               `firestore:"bankAccount,omitempty"`
	TransferReference string               `firestore:"transferReference,omitempty"`
	PaymentStatus     string               `firestore:"paymentStatus"`
	PaymentLogs       []paymentLogDocument `firestore:"paymentLogs,omitempty"`
}

type orderDocument struct {
	OrderNumber   string              `firestore:"orderNumber"`
	CustomerPhone string              `firestore:"customerPhone"`
	CustomerName  string              `firestore:"customerName,omitempty"`
	Items         []orderItemDocument `firestore:"items"`
	TotalPrice    int64               `firestore:"totalPrice"`
	Status        string              `firestore:"status"`
	PaymentInfo   paymentInfoDocument `firestore:"paymentInfo"`
	Logs          []statusLogDocument `firestore:"logs"`
	Priority      string              `firestore:"priority"`
	InternalNotes string              `firestore:"internalNotes,omitempty"`

	CancellationReason *string    `firestore:"cancellationReason,omitempty"`
	CancelledAt        *time.Time `firestore:"cancelledAt,omitempty"`

	CreatedBy *string   `firestore:"createdBy,omitempty"`
	UpdatedBy *string   `firestore:"updatedBy,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func toOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductRef:     item.ProductRef,
			Name:           item.Name,
			RemovedOptions: item.RemovedOptions,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			Note:           item.Note,
		})
	}
	logs := make([]statusLogDocument, 0, len(order.Logs))
	for _, entry := range order.Logs {
		logs = append(logs, statusLogDocument{
			Status:      string(entry.Status),
			StatusLabel: entry.StatusLabel,
			Timestamp:   entry.Timestamp,
			Comment:     entry.Comment,
		})
	}
	paymentLogs := make([]paymentLogDocument, 0, len(order.PaymentInfo.PaymentLogs))
	for _, entry := range order.PaymentInfo.PaymentLogs {
		paymentLogs = append(paymentLogs, paymentLogDocument{
			Status:            string(entry.Status),
			BankAccount:       entry.BankAccount,
			TransferReference: entry.TransferReference,
			Timestamp:         entry.Timestamp,
			Comment:           entry.Comment,
		})
	}

	return orderDocument{
		OrderNumber:   order.OrderNumber,
		CustomerPhone: order.CustomerPhone,
		CustomerName:  order.CustomerName,
		Items:         items,
		TotalPrice:    order.TotalPrice,
		Status:        string(order.Status),
		PaymentInfo: paymentInfoDocument{
			BankAccount:       order.PaymentInfo.BankAccount,
			TransferReference: order.PaymentInfo.TransferReference,
			PaymentStatus:     string(order.PaymentInfo.PaymentStatus),
			PaymentLogs:       paymentLogs,
		},
		Logs:               logs,
		Priority:           string(order.Priority),
		InternalNotes:      order.InternalNotes,
		CancellationReason: order.CancellationReason,
		CancelledAt:        order.CancelledAt,
		CreatedBy:          order.Audit.CreatedBy,
		UpdatedBy:          order.Audit.UpdatedBy,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ProductRef:     item.ProductRef,
			Name:           item.Name,
			RemovedOptions: item.RemovedOptions,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			Note:           item.Note,
		})
	}
	logs := make([]domain.StatusLogEntry, 0, len(doc.Logs))
	for _, entry := range doc.Logs {
		logs = append(logs, domain.StatusLogEntry{
			Status:      domain.OrderStatus(entry.Status),
			StatusLabel: entry.StatusLabel,
			Timestamp:   entry.Timestamp,
			Comment:     entry.Comment,
		})
	}
	paymentLogs := make([]domain.PaymentLogEntry, 0, len(doc.PaymentInfo.PaymentLogs))
	for _, entry := range doc.PaymentInfo.PaymentLogs {
		paymentLogs = append(paymentLogs, domain.PaymentLogEntry{
			Status:            domain.PaymentStatus(entry.Status),
			BankAccount:       entry.BankAccount,
			TransferReference: entry.TransferReference,
			Timestamp:         entry.Timestamp,
			Comment:           entry.Comment,
		})
	}

	priority := domain.OrderPriority(doc.Priority)
	if !priority.IsValid() {
		priority = domain.OrderPriorityNormal
	}

	return domain.Order{
		ID:            id,
		OrderNumber:   doc.OrderNumber,
		CustomerPhone: doc.CustomerPhone,
		CustomerName:  doc.CustomerName,
		Items:         items,
		TotalPrice:    doc.TotalPrice,
		Status:        domain.OrderStatus(doc.Status),
		PaymentInfo: domain.PaymentInfo{
			BankAccount:       doc.PaymentInfo.BankAccount,
			TransferReference: doc.PaymentInfo.TransferReference,
			PaymentStatus:     domain.PaymentStatus(doc.PaymentInfo.PaymentStatus),
			PaymentLogs:       paymentLogs,
		},
		Logs:               logs,
		Priority:           priority,
		InternalNotes:      doc.InternalNotes,
		CancellationReason: doc.CancellationReason,
		CancelledAt:        doc.CancelledAt,
		Audit: domain.OrderAudit{
			CreatedBy: doc.CreatedBy,
			UpdatedBy: doc.UpdatedBy,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

type menuItemDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Category    string    `firestore:"category"`
	Price       int64     `firestore:"price"`
	Options     []string  `firestore:"options,omitempty"`
	Available   bool      `firestore:"available"`
	Archived    bool      `firestore:"archived"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func toMenuItemDocument(item domain.MenuItem) menuItemDocument {
	return menuItemDocument{
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price,
		Options:     item.Options,
		Available:   item.Available,
		Archived:    item.Archived,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func toDomainMenuItem(id string, doc menuItemDocument) domain.MenuItem {
	return domain.MenuItem{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		Category:    doc.Category,
		Price:       doc.Price,
		Options:     doc.Options,
		Available:   doc.Available,
		Archived:    doc.Archived,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

type auditLogDocument struct {
	Actor     string         `firestore:"actor"`
	ActorType string         `firestore:"actorType"`
	Action    string         `firestore:"action"`
	TargetRef string         `firestore:"targetRef,omitempty"`
	Severity  string         `firestore:"severity"`
	Metadata  map[string]any `firestore:"metadata,omitempty"`
	PhoneHash string         `firestore:"phoneHash,omitempty"`
	RequestID string         `firestore:"requestId,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

func toAuditLogDocument(entry domain.AuditLogEntry) auditLogDocument {
	return auditLogDocument{
		Actor:     entry.Actor,
		ActorType: entry.ActorType,
		Action:    entry.Action,
		TargetRef: entry.TargetRef,
		Severity:  entry.Severity,
		Metadata:  entry.Metadata,
		PhoneHash: entry.PhoneHash,
		RequestID: entry.RequestID,
		CreatedAt: entry.CreatedAt,
	}
}

func toDomainAuditLog(id string, doc auditLogDocument) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		ID:        id,
		Actor:     doc.Actor,
		ActorType: doc.ActorType,
		Action:    doc.Action,
		TargetRef: doc.TargetRef,
		Severity:  doc.Severity,
		Metadata:  doc.Metadata,
		PhoneHash: doc.PhoneHash,
		RequestID: doc.RequestID,
		CreatedAt: doc.CreatedAt,
	}
}
