package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/elfogon/api/internal/domain"
	"github.com/elfogon/api/internal/repositories"
)

type memoryMenuRepo struct {
	items map[string]domain.MenuItem
}

func newMemoryMenuRepo() *memoryMenuRepo {
	return &memoryMenuRepo{items: make(map[string]domain.MenuItem)}
}

func (m *memoryMenuRepo) Insert(_ context.Context, item domain.MenuItem) error {
	if _, exists := m.items[item.ID]; exists {
		return &testRepoError{conflict: true}
	}
	m.items[item.ID] = item
	return nil
}

func (m *memoryMenuRepo) Update(_ context.Context, item domain.MenuItem) error {
	if _, exists := m.items[item.ID]; !exists {
		return &testRepoError{notFound: true}
	}
	m.items[item.ID] = item
	return nil
}

func (m *memoryMenuRepo) Archive(_ context.Context, itemID string, archivedAt time.Time) error {
	item, ok := m.items[itemID]
	if !ok {
		return &testRepoError{notFound: true}
	}
	item.Archived = true
	item.Available = false
	item.UpdatedAt = archivedAt
	m.items[itemID] = item
	return nil
}

func (m *memoryMenuRepo) FindByID(_ context.Context, itemID string) (domain.MenuItem, error) {
	item, ok := m.items[itemID]
	if !ok {
		return domain.MenuItem{}, &testRepoError{notFound: true}
	}
	return item, nil
}

func (m *memoryMenuRepo) List(context.Context, repositories.MenuItemFilter) (domain.CursorPage[domain.MenuItem], error) {
	items := make([]domain.MenuItem, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	return domain.CursorPage[domain.MenuItem]{Items: items}, nil
}

func newTestMenuService(t *testing.T, repo repositories.MenuItemRepository) MenuService {
	t.Helper()
	svc, err := NewMenuService(MenuServiceDeps{
		MenuItems: repo,
		Clock:     func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewMenuService: %v", err)
	}
	return svc
}

func TestMenuCreateAndUpdate(t *testing.T) {
	repo := newMemoryMenuRepo()
	svc := newTestMenuService(t, repo)
	ctx := context.Background()

	item, err := svc.Create(ctx, UpsertMenuItemCommand{
		Name:      "Parrillada mixta",
		Category:  "parrilla",
		Price:     1850,
		Options:   []string{"chimichurri", " alioli ", ""},
		Available: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(item.ID, "itm_") {
		t.Errorf("item id = %q, want itm_ prefix", item.ID)
	}
	if len(item.Options) != 2 || item.Options[1] != "alioli" {
		t.Errorf("options = %v", item.Options)
	}

	updated, err := svc.Update(ctx, item.ID, UpsertMenuItemCommand{
		Name:      "Parrillada mixta",
		Category:  "parrilla",
		Price:     1950,
		Available: true,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Price != 1950 {
		t.Errorf("price = %d, want 1950", updated.Price)
	}
	if !updated.CreatedAt.Equal(item.CreatedAt) {
		t.Error("update must preserve creation time")
	}
}

func TestMenuCreateValidation(t *testing.T) {
	svc := newTestMenuService(t, newMemoryMenuRepo())
	ctx := context.Background()

	cases := []UpsertMenuItemCommand{
		{Category: "parrilla", Price: 100},
		{Name: "Empanada", Price: 100},
		{Name: "Empanada", Category: "entrantes", Price: -1},
	}
	for _, cmd := range cases {
		if _, err := svc.Create(ctx, cmd); !errors.Is(err, ErrMenuItemInvalidInput) {
			t.Errorf("Create(%+v) error = %v, want ErrMenuItemInvalidInput", cmd, err)
		}
	}
}

func TestMenuArchive(t *testing.T) {
	repo := newMemoryMenuRepo()
	svc := newTestMenuService(t, repo)
	ctx := context.Background()

	item, err := svc.Create(ctx, UpsertMenuItemCommand{Name: "Choripán", Category: "parrilla", Price: 650, Available: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Archive(ctx, item.ID, "admin@elfogon.example"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	archived, err := svc.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !archived.Archived || archived.Available {
		t.Errorf("archived item = %+v", archived)
	}

	if err := svc.Archive(ctx, "itm_missing", ""); !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("Archive missing error = %v, want ErrMenuItemNotFound", err)
	}
}
