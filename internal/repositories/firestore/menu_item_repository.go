package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/elfogon/api/internal/domain"
	pfirestore "github.com/elfogon/api/internal/platform/firestore"
	"github.com/elfogon/api/internal/repositories"
)

const menuItemsCollection = "menuItems"

// MenuItemRepository persists the dashboard catalog in Firestore.
type MenuItemRepository struct {
	base *pfirestore.BaseRepository[menuItemDocument]
}

// NewMenuItemRepository constructs a Firestore-backed menu item repository.
func NewMenuItemRepository(provider *pfirestore.Provider) (*MenuItemRepository, error) {
	if provider == nil {
		return nil, errors.New("menu item repository requires firestore provider")
	}
	return &MenuItemRepository{
		base: pfirestore.NewBaseRepository[menuItemDocument](provider, menuItemsCollection),
	}, nil
}

// Insert stores a new catalog entry keyed by the item ID.
func (r *MenuItemRepository) Insert(ctx context.Context, item domain.MenuItem) error {
	if r == nil || r.base == nil {
		return errors.New("menu item repository not initialised")
	}
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("menu item repository: item id is required")
	}
	_, err := r.base.Create(ctx, item.ID, toMenuItemDocument(item))
	return err
}

// Update overwrites an existing catalog entry.
func (r *MenuItemRepository) Update(ctx context.Context, item domain.MenuItem) error {
	if r == nil || r.base == nil {
		return errors.New("menu item repository not initialised")
	}
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("menu item repository: item id is required")
	}
	_, err := r.base.Set(ctx, item.ID, toMenuItemDocument(item))
	return err
}

// Archive soft-deletes a catalog entry. Existing orders keep their frozen copy
// of the item, so the document is never removed.
func (r *MenuItemRepository) Archive(ctx context.Context, itemID string, archivedAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("menu item repository not initialised")
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return errors.New("menu item repository: item id is required")
	}
	_, err := r.base.Update(ctx, itemID, []firestore.Update{
		{Path: "archived", Value: true},
		{Path: "available", Value: false},
		{Path: "updatedAt", Value: archivedAt.UTC()},
	}, firestore.Exists)
	return err
}

// FindByID loads a single catalog entry.
func (r *MenuItemRepository) FindByID(ctx context.Context, itemID string) (domain.MenuItem, error) {
	if r == nil || r.base == nil {
		return domain.MenuItem{}, errors.New("menu item repository not initialised")
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.MenuItem{}, errors.New("menu item repository: item id is required")
	}

	doc, err := r.base.Get(ctx, itemID)
	if err != nil {
		return domain.MenuItem{}, err
	}
	return toDomainMenuItem(doc.ID, doc.Data), nil
}

// List returns a page of catalog entries ordered by category then name.
func (r *MenuItemRepository) List(ctx context.Context, filter repositories.MenuItemFilter) (domain.CursorPage[domain.MenuItem], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.MenuItem]{}, errors.New("menu item repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfterID string
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		_, id, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.MenuItem]{}, fmt.Errorf("menu item repository: invalid page token: %w", err)
		}
		startAfterID = id
	}

	category := strings.TrimSpace(filter.Category)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if category != "" {
			q = q.Where("category", "==", category)
		}
		if filter.AvailableOnly {
			q = q.Where("available", "==", true)
		}
		if !filter.IncludeArchived {
			q = q.Where("archived", "==", false)
		}
		q = q.OrderBy(firestore.DocumentID, firestore.Asc)
		if startAfterID != "" {
			q = q.StartAfter(startAfterID)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.MenuItem]{}, err
	}

	var nextToken string
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		nextToken = encodeListToken(last.Data.UpdatedAt, last.ID)
	}

	items := make([]domain.MenuItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainMenuItem(doc.ID, doc.Data))
	}
	return domain.CursorPage[domain.MenuItem]{Items: items, NextPageToken: nextToken}, nil
}
