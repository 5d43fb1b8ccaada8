package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/elfogon/api/internal/domain"
	"github.com/elfogon/api/internal/platform/httpx"
	"github.com/elfogon/api/internal/repositories"
	"github.com/elfogon/api/internal/services"
)

// MenuHandlers exposes the catalog management endpoints for the admin
// dashboard.
type MenuHandlers struct {
	menu services.MenuService
}

// NewMenuHandlers constructs a new MenuHandlers instance.
func NewMenuHandlers(menu services.MenuService) *MenuHandlers {
	return &MenuHandlers{menu: menu}
}

// Routes registers the /admin/menu-items endpoints.
func (h *MenuHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createItem)
	r.Get("/", h.listItems)
	r.Get("/{itemID}", h.getItem)
	r.Put("/{itemID}", h.updateItem)
	r.Post("/{itemID}:archive", h.archiveItem)
	// Items are never hard-deleted; existing orders keep frozen prices.
	r.Delete("/{itemID}", h.archiveItem)
}

type upsertMenuItemRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       int64    `json:"price"`
	Options     []string `json:"options"`
	Available   bool     `json:"available"`
}

func (r upsertMenuItemRequest) command(actor string) services.UpsertMenuItemCommand {
	return services.UpsertMenuItemCommand{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
		Options:     r.Options,
		Available:   r.Available,
		Actor:       actor,
	}
}

func (h *MenuHandlers) createItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.menu == nil {
		writeMenuServiceUnavailable(ctx, w)
		return
	}

	var req upsertMenuItemRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	item, err := h.menu.Create(ctx, req.command(actorFromContext(ctx)))
	if err != nil {
		writeMenuError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildMenuItemPayload(item))
}

func (h *MenuHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.menu == nil {
		writeMenuServiceUnavailable(ctx, w)
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"))
	if err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	filter := repositories.MenuItemFilter{
		Category:        strings.TrimSpace(query.Get("category")),
		AvailableOnly:   query.Get("available") == "true",
		IncludeArchived: query.Get("include_archived") == "true",
		Pagination: domain.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	page, err := h.menu.List(ctx, filter)
	if err != nil {
		writeMenuError(ctx, w, err)
		return
	}

	items := make([]menuItemPayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildMenuItemPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, menuItemListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *MenuHandlers) getItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.menu == nil {
		writeMenuServiceUnavailable(ctx, w)
		return
	}

	item, err := h.menu.Get(ctx, chi.URLParam(r, "itemID"))
	if err != nil {
		writeMenuError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildMenuItemPayload(item))
}

func (h *MenuHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.menu == nil {
		writeMenuServiceUnavailable(ctx, w)
		return
	}

	var req upsertMenuItemRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeInvalidRequest(w, r, err.Error())
		return
	}

	item, err := h.menu.Update(ctx, chi.URLParam(r, "itemID"), req.command(actorFromContext(ctx)))
	if err != nil {
		writeMenuError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildMenuItemPayload(item))
}

func (h *MenuHandlers) archiveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.menu == nil {
		writeMenuServiceUnavailable(ctx, w)
		return
	}

	if err := h.menu.Archive(ctx, chi.URLParam(r, "itemID"), actorFromContext(ctx)); err != nil {
		writeMenuError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "archived"})
}

type menuItemListResponse struct {
	Items         []menuItemPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type menuItemPayload struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category"`
	Price       int64    `json:"price"`
	Options     []string `json:"options,omitempty"`
	Available   bool     `json:"available"`
	Archived    bool     `json:"archived"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func buildMenuItemPayload(item domain.MenuItem) menuItemPayload {
	return menuItemPayload{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price,
		Options:     item.Options,
		Available:   item.Available,
		Archived:    item.Archived,
		CreatedAt:   formatTime(item.CreatedAt),
		UpdatedAt:   formatTime(item.UpdatedAt),
	}
}

func writeMenuServiceUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("menu_service_unavailable", "menu service unavailable", http.StatusServiceUnavailable))
}

func writeMenuError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrMenuItemInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrMenuItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("menu_item_not_found", "menu item not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("menu_error", "failed to process menu request", http.StatusInternalServerError))
	}
}
