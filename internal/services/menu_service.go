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

const menuItemIDPrefix = "itm_"

var (
	// ErrMenuItemInvalidInput signals the caller provided invalid catalog data.
	ErrMenuItemInvalidInput = errors.New("menu item: invalid input")
	// ErrMenuItemNotFound indicates the catalog entry could not be located.
	ErrMenuItemNotFound = errors.New("menu item: not found")
)

// MenuServiceDeps bundles collaborators required to construct the menu service.
type MenuServiceDeps struct {
	MenuItems   repositories.MenuItemRepository
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type menuService struct {
	menuItems repositories.MenuItemRepository
	audit     AuditLogService
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewMenuService wires dependencies into a concrete MenuService implementation.
func NewMenuService(deps MenuServiceDeps) (MenuService, error) {
	if deps.MenuItems == nil {
		return nil, errors.New("menu service: menu item repository is required")
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

	return &menuService{
		menuItems: deps.MenuItems,
		audit:     deps.Audit,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

func (s *menuService) Create(ctx context.Context, cmd UpsertMenuItemCommand) (domain.MenuItem, error) {
	item, err := buildMenuItem(cmd)
	if err != nil {
		return domain.MenuItem{}, err
	}

	now := s.clock()
	item.ID = menuItemIDPrefix + s.newID()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.menuItems.Insert(ctx, item); err != nil {
		return domain.MenuItem{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, cmd.Actor, "menu_item.created", item.ID, map[string]any{
		"name":  item.Name,
		"price": item.Price,
	})
	return item, nil
}

func (s *menuService) Update(ctx context.Context, itemID string, cmd UpsertMenuItemCommand) (domain.MenuItem, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.MenuItem{}, fmt.Errorf("%w: item id is required", ErrMenuItemInvalidInput)
	}

	existing, err := s.menuItems.FindByID(ctx, itemID)
	if err != nil {
		return domain.MenuItem{}, s.mapRepositoryError(err)
	}

	updated, err := buildMenuItem(cmd)
	if err != nil {
		return domain.MenuItem{}, err
	}
	updated.ID = existing.ID
	updated.Archived = existing.Archived
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.clock()

	if err := s.menuItems.Update(ctx, updated); err != nil {
		return domain.MenuItem{}, s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, cmd.Actor, "menu_item.updated", updated.ID, map[string]any{
		"name":  updated.Name,
		"price": updated.Price,
	})
	return updated, nil
}

func (s *menuService) Archive(ctx context.Context, itemID string, actor string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return fmt.Errorf("%w: item id is required", ErrMenuItemInvalidInput)
	}

	if err := s.menuItems.Archive(ctx, itemID, s.clock()); err != nil {
		return s.mapRepositoryError(err)
	}

	s.recordAudit(ctx, actor, "menu_item.archived", itemID, nil)
	return nil
}

func (s *menuService) Get(ctx context.Context, itemID string) (domain.MenuItem, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.MenuItem{}, fmt.Errorf("%w: item id is required", ErrMenuItemInvalidInput)
	}

	item, err := s.menuItems.FindByID(ctx, itemID)
	if err != nil {
		return domain.MenuItem{}, s.mapRepositoryError(err)
	}
	return item, nil
}

func (s *menuService) List(ctx context.Context, filter repositories.MenuItemFilter) (domain.CursorPage[domain.MenuItem], error) {
	page, err := s.menuItems.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.MenuItem]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func buildMenuItem(cmd UpsertMenuItemCommand) (domain.MenuItem, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.MenuItem{}, fmt.Errorf("%w: name is required", ErrMenuItemInvalidInput)
	}
	category := strings.TrimSpace(cmd.Category)
	if category == "" {
		return domain.MenuItem{}, fmt.Errorf("%w: category is required", ErrMenuItemInvalidInput)
	}
	if cmd.Price < 0 {
		return domain.MenuItem{}, fmt.Errorf("%w: price must not be negative", ErrMenuItemInvalidInput)
	}

	options := make([]string, 0, len(cmd.Options))
	for _, option := range cmd.Options {
		if option = strings.TrimSpace(option); option != "" {
			options = append(options, option)
		}
	}

	return domain.MenuItem{
		Name:        name,
		Description: strings.TrimSpace(cmd.Description),
		Category:    category,
		Price:       cmd.Price,
		Options:     options,
		Available:   cmd.Available,
	}, nil
}

func (s *menuService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrMenuItemNotFound, err)
	}
	return err
}

func (s *menuService) recordAudit(ctx context.Context, actor, action, itemID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, AuditEntryCommand{
		Actor:     actor,
		ActorType: "admin",
		Action:    action,
		TargetRef: "menuItems/" + itemID,
		Metadata:  metadata,
	})
	if err != nil {
		s.logger(ctx, "menu.audit.record.failed", map[string]any{
			"action": action,
			"item":   itemID,
			"error":  err.Error(),
		})
	}
}
