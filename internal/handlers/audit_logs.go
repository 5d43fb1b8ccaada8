package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/elfogon/api/internal/domain"
	"github.com/elfogon/api/internal/platform/httpx"
	"github.com/elfogon/api/internal/repositories"
	"github.com/elfogon/api/internal/services"
)

// AuditLogHandlers exposes the read-only audit trail to admins.
type AuditLogHandlers struct {
	audit services.AuditLogService
}

// NewAuditLogHandlers constructs a new AuditLogHandlers instance.
func NewAuditLogHandlers(audit services.AuditLogService) *AuditLogHandlers {
	return &AuditLogHandlers{audit: audit}
}

// Routes registers the /admin/audit-logs endpoints.
func (h *AuditLogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listEntries)
}

func (h *AuditLogHandlers) listEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.audit == nil {
		httpx.WriteError(ctx, w, httpx.NewError("audit_service_unavailable", "audit log service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"))
	if err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	filter := repositories.AuditLogFilter{
		Actor:     strings.TrimSpace(query.Get("actor")),
		Action:    strings.TrimSpace(query.Get("action")),
		TargetRef: strings.TrimSpace(query.Get("target_ref")),
		Pagination: domain.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeInvalidRequest(w, r, "created_after must be a valid RFC3339 timestamp")
			return
		}
		filter.CreatedAt.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeInvalidRequest(w, r, "created_before must be a valid RFC3339 timestamp")
			return
		}
		filter.CreatedAt.To = &ts
	}

	page, err := h.audit.List(ctx, filter)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("audit_error", "failed to list audit logs", http.StatusInternalServerError))
		return
	}

	entries := make([]auditLogPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		entries = append(entries, buildAuditLogPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, auditLogListResponse{
		Entries:       entries,
		NextPageToken: page.NextPageToken,
	})
}

type auditLogListResponse struct {
	Entries       []auditLogPayload `json:"entries"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type auditLogPayload struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	ActorType string         `json:"actor_type"`
	Action    string         `json:"action"`
	TargetRef string         `json:"target_ref,omitempty"`
	Severity  string         `json:"severity"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	PhoneHash string         `json:"phone_hash,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func buildAuditLogPayload(entry domain.AuditLogEntry) auditLogPayload {
	return auditLogPayload{
		ID:        entry.ID,
		Actor:     entry.Actor,
		ActorType: entry.ActorType,
		Action:    entry.Action,
		TargetRef: entry.TargetRef,
		Severity:  entry.Severity,
		Metadata:  entry.Metadata,
		PhoneHash: entry.PhoneHash,
		RequestID: entry.RequestID,
		CreatedAt: formatTime(entry.CreatedAt),
	}
}
