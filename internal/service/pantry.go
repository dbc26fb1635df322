package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/dukerupert/pantrytracker/internal/apperr"
	"github.com/dukerupert/pantrytracker/internal/catalog"
	"github.com/dukerupert/pantrytracker/internal/categorize"
	"github.com/dukerupert/pantrytracker/internal/metrics"
	"github.com/dukerupert/pantrytracker/internal/model"
	"github.com/dukerupert/pantrytracker/internal/store"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxPage         = 1_000_000
	recentLimit     = 10
	maxNameLength   = 200

	entityPantryItem = "pantry_item"

	msgQuantityTooLarge = "quantity is too large"
)

func checkQuantity(q int) error {
	if q < 0 {
		return apperr.Validation("quantity cannot be negative")
	}
	if q > model.MaxQuantity {
		return apperr.Validation(msgQuantityTooLarge)
	}
	return nil
}

// CatalogSearcher looks up branded products in an external catalog.
type CatalogSearcher interface {
	Search(ctx context.Context, query string, limit, page int) (*catalog.Result, error)
}

type PantryService struct {
	db         *sql.DB
	profiles   *store.ProfileStore
	pantry     *store.PantryStore
	categories *store.CategoryStore
	catalog    CatalogSearcher
	notifier   Notifier
	logger     *slog.Logger
}

func NewPantryService(db *sql.DB, catalog CatalogSearcher, logger *slog.Logger) *PantryService {
	return &PantryService{
		db:         db,
		profiles:   store.NewProfileStore(db),
		pantry:     store.NewPantryStore(db),
		categories: store.NewCategoryStore(db),
		catalog:    catalog,
		notifier:   nopNotifier{},
		logger:     logger.With("component", "pantry"),
	}
}

// SetNotifier routes item change notifications to n.
func (s *PantryService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Paging normalises page and page size: zero means the default, pages are
// clamped to [1, MaxPage] and sizes to [1, MaxPageSize].
func Paging(page, pageSize int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	page = min(page, MaxPage)
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	pageSize = max(1, min(pageSize, MaxPageSize))
	return page, pageSize
}

func (s *PantryService) ListItems(ctx context.Context, page, pageSize int, search string) (*PagedItems, error) {
	_, hid, err := callerHousehold(ctx, s.profiles)
	if err != nil {
		return nil, err
	}
	page, pageSize = Paging(page, pageSize)

	total, err := s.pantry.Count(ctx, hid, search)
	if err != nil {
		return nil, apperr.Internal("count pantry items", err)
	}
	items, err := s.pantry.List(ctx, hid, search, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperr.Internal("list pantry items", err)
	}
	return &PagedItems{
		Items:      toPantryItemDTOs(items),
		TotalItems: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// ListItemsByCategory returns items tagged with any of categoryIDs. A zero
// pageSize returns every match.
func (s *PantryService) ListItemsByCategory(ctx context.Context, categoryIDs []int64, page, pageSize int) ([]PantryItemDTO, error) {
	_, hid, err := callerHousehold(ctx, s.profiles)
	if err != nil {
		return nil, err
	}
	if len(categoryIDs) == 0 {
		return nil, apperr.Validation("at least one category id is required")
	}

	limit, offset := -1, 0
	if pageSize > 0 {
		page, pageSize = Paging(page, pageSize)
		limit, offset = pageSize, (page-1)*pageSize
	}
	items, err := s.pantry.ListByCategories(ctx, hid, categoryIDs, limit, offset)
	if err != nil {
		return nil, apperr.Internal("list pantry items by category", err)
	}
	return toPantryItemDTOs(items), nil
}

// ListCategories returns every category. It needs no caller.
func (s *PantryService) ListCategories(ctx context.Context) ([]model.Category, error) {
	cats, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list categories", err)
	}
	if cats == nil {
		cats = []model.Category{}
	}
	return cats, nil
}

// AddItemInput is the body of an add-or-merge request.
type AddItemInput struct {
	Name              string  `json:"name"`
	Quantity          int     `json:"quantity"`
	CategoryIDs       []int64 `json:"categoryIds"`
	MonitorLowStock   *bool   `json:"monitorLowStock"`
	LowStockThreshold *int    `json:"lowStockThreshold"`
}

// AddOrUpdateItem adds stock. An existing item with the same name
// (case-insensitive) has the quantity added and the categories unioned.
func (s *PantryService) AddOrUpdateItem(ctx context.Context, in AddItemInput) (*PantryItemDTO, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("item name is required")
	}
	if len(name) > maxNameLength {
		return nil, apperr.Validation("item name is too long")
	}
	if err := checkQuantity(in.Quantity); err != nil {
		return nil, err
	}
	if in.LowStockThreshold != nil && *in.LowStockThreshold < 0 {
		return nil, apperr.Validation("low stock threshold cannot be negative")
	}

	_, hid, err := callerHousehold(ctx, s.profiles)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategories(ctx, in.CategoryIDs); err != nil {
		return nil, err
	}

	monitor := true
	if in.MonitorLowStock != nil {
		monitor = *in.MonitorLowStock
	}

	var item *model.PantryItem
	var created bool
	err = store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		pantry := s.pantry.WithTx(tx)
		item, created, err = pantry.Upsert(ctx, hid, store.UpsertParams{
			Name:              name,
			Quantity:          in.Quantity,
			MonitorLowStock:   monitor,
			LowStockThreshold: in.LowStockThreshold,
			CategoryIDs:       in.CategoryIDs,
		})
		if errors.Is(err, store.ErrQuantityTooLarge) {
			return apperr.Validation(msgQuantityTooLarge)
		}
		if err != nil {
			return apperr.Internal("upsert pantry item", err)
		}
		if created && len(in.CategoryIDs) == 0 {
			return s.suggestCategory(ctx, s.categories.WithTx(tx), pantry, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveItemUpsert(created)
	action := "updated"
	if created {
		action = "created"
	}
	s.notifier.Notify(hid, entityPantryItem, action, item.ID)
	s.logger.Debug("pantry item upserted", "household_id", hid, "item_id", item.ID, "created", created)
	dto := toPantryItemDTO(*item)
	return &dto, nil
}

// suggestCategory tags a new, uncategorised item with the category its name
// suggests, when that category exists.
func (s *PantryService) suggestCategory(ctx context.Context, categories *store.CategoryStore, pantry *store.PantryStore, item *model.PantryItem) error {
	name := categorize.Suggest(item.Name)
	if name == "" {
		return nil
	}
	cat, err := categories.GetByName(ctx, name)
	if err != nil {
		return apperr.Internal("load category", err)
	}
	if cat == nil {
		return nil
	}
	if err := pantry.AddCategories(ctx, item.ID, []int64{cat.ID}); err != nil {
		return apperr.Internal("link category", err)
	}
	item.CategoryIDs = append(item.CategoryIDs, cat.ID)
	return nil
}

func (s *PantryService) checkCategories(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.categories.Missing(ctx, ids)
	if err != nil {
		return apperr.Internal("check categories", err)
	}
	if len(missing) > 0 {
		return apperr.Validation("unknown category id")
	}
	return nil
}

// UpdateItemInput is the body of an explicit item edit. Nil fields are left
// unchanged; a non-nil CategoryIDs replaces the category set.
type UpdateItemInput struct {
	Name              *string  `json:"name"`
	Quantity          *int     `json:"quantity"`
	LowStockThreshold *int     `json:"lowStockThreshold"`
	CategoryIDs       *[]int64 `json:"categoryIds"`
}

func (s *PantryService) UpdateItemDetails(ctx context.Context, itemID int64, in UpdateItemInput) (*PantryItemDTO, error) {
	var upd store.DetailsUpdate
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("item name is required")
		}
		if len(name) > maxNameLength {
			return nil, apperr.Validation("item name is too long")
		}
		upd.Name = &name
	}
	if in.Quantity != nil {
		if err := checkQuantity(*in.Quantity); err != nil {
			return nil, err
		}
		upd.Quantity = in.Quantity
	}
	if in.LowStockThreshold != nil {
		if *in.LowStockThreshold < 0 {
			return nil, apperr.Validation("low stock threshold cannot be negative")
		}
		upd.LowStockThreshold = in.LowStockThreshold
	}

	_, hid, err := callerHousehold(ctx, s.profiles)
	if err != nil {
		return nil, err
	}
	if in.CategoryIDs != nil {
		if err := s.checkCategories(ctx, *in.CategoryIDs); err != nil {
			return nil, err
		}
	}

	var item *model.PantryItem
	err = store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		pantry := s.pantry.WithTx(tx)
		found, err := pantry.UpdateDetails(ctx, hid, itemID, upd)
		if errors.Is(err, store.ErrDuplicateItemName) {
			return apperr.Conflict("another item already uses that name")
		}
		if errors.Is(err, store.ErrQuantityTooLarge) {
			return apperr.Validation(msgQuantityTooLarge)
		}
		if err != nil {
			return apperr.Internal("update pantry item", err)
		}
		if !found {
			return apperr.NotFound("pantry item not found")
		}
		if in.CategoryIDs != nil {
			if err := pantry.ReplaceCategories(ctx, itemID, *in.CategoryIDs); err != nil {
				return apperr.Internal("replace categories", err)
			}
		}
		item, err = pantry.GetByID(ctx, hid, itemID)
		if err != nil {
			return apperr.Internal("load pantry item", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(hid, entityPantryItem, "updated", itemID)
	dto := toPantryItemDTO(*item)
	return &dto, nil
}

// UpdateQuantity replaces the item's quantity.
func (s *PantryService) UpdateQuantity(ctx context.Context, itemID int64, quantity int) (*PantryItemDTO, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	_, hid, err := callerHousehold(ctx, s.profiles)
	if err != nil {
		return nil, err
	}

	found, err := s.pantry.SetQuantity(ctx, hid, itemID, quantity)
	if err != nil {
		return nil, apperr.Internal("set quantity", err)
	}
	if !found {
		return nil, apperr.NotFound("pantry item not found")
	}
	item, err := s.pantry.GetByID(ctx, hid, itemID)
	if err != nil {
		return nil, apperr.Internal("load pantry item", err)
	}
	if item == nil {
		return nil, apperr.NotFound("pantry item not found")
	}
	s.notifier.Notify(hid, entityPantryItem, "updated", itemID)
	dto := toPantryItemDTO(*item)
	return &dto, nil
}

func (s *PantryService) ToggleMonitorLowStock(ctx context.Context, itemID int64) (*ToggleResult, error) {
	_, hid, err := callerHousehold(ctx, s.profiles)
	if err != nil {
		return nil, err
	}
	monitor, found, err := s.pantry.ToggleMonitor(ctx, hid, itemID)
	if err != nil {
		return nil, apperr.Internal("toggle monitor", err)
	}
	if !found {
		return nil, apperr.NotFound("pantry item not found")
	}
	s.notifier.Notify(hid, entityPantryItem, "updated", itemID)
	return &ToggleResult{MonitorLowStock: monitor}, nil
}

func (s *PantryService) DeleteItem(ctx context.Context, itemID int64) error {
	_, hid, err := callerHousehold(ctx, s.profiles)
	if err != nil {
		return err
	}
	found, err := s.pantry.Delete(ctx, hid, itemID)
	if err != nil {
		return apperr.Internal("delete pantry item", err)
	}
	if !found {
		return apperr.NotFound("pantry item not found")
	}
	s.notifier.Notify(hid, entityPantryItem, "deleted", itemID)
	return nil
}

// RecentActivity returns the most recently updated items and, separately, the
// monitored items that are below their low-stock threshold.
func (s *PantryService) RecentActivity(ctx context.Context) (*RecentActivityDTO, error) {
	_, hid, err := callerHousehold(ctx, s.profiles)
	if err != nil {
		return nil, err
	}
	recent, err := s.pantry.Recent(ctx, hid, recentLimit)
	if err != nil {
		return nil, apperr.Internal("list recent items", err)
	}
	low, err := s.pantry.LowStock(ctx, hid)
	if err != nil {
		return nil, apperr.Internal("list low stock items", err)
	}
	return &RecentActivityDTO{
		RecentActivity: toPantryItemDTOs(recent),
		LowStockItems:  toPantryItemDTOs(low),
	}, nil
}

// SearchExternalCatalog proxies a branded-food search.
func (s *PantryService) SearchExternalCatalog(ctx context.Context, query string, limit, page int) (*catalog.Result, error) {
	if _, err := ResolveCaller(ctx, s.profiles); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("search name is required")
	}
	page, limit = Paging(page, limit)

	if s.catalog == nil {
		return nil, apperr.Internal("catalog unavailable", errors.New("no catalog configured"))
	}
	res, err := s.catalog.Search(ctx, query, limit, page)
	if err != nil {
		return nil, apperr.Internal("catalog unavailable", err)
	}
	return res, nil
}
