package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/dukerupert/pantrytracker/internal/model"
)

// ErrDuplicateItemName is returned when an item is renamed onto a name that
// another item in the household already uses.
var ErrDuplicateItemName = errors.New("item name already in use")

// ErrQuantityTooLarge is returned when a write would push an item's quantity
// past model.MaxQuantity.
var ErrQuantityTooLarge = errors.New("quantity exceeds maximum")

// NameKey returns the Unicode case-folded form of name. Item names are unique
// per household by this key.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func isCheckViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}

type PantryStore struct {
	db  querier
	now func() time.Time
}

func NewPantryStore(db *sql.DB) *PantryStore {
	return &PantryStore{db: db, now: utcNow}
}

// WithTx returns a copy of the store bound to tx.
func (s *PantryStore) WithTx(tx *sql.Tx) *PantryStore {
	return &PantryStore{db: tx, now: s.now}
}

func scanPantryItem(scanner rowScanner) (*model.PantryItem, error) {
	var p model.PantryItem
	var monitor int
	err := scanner.Scan(
		&p.ID, &p.HouseholdID, &p.Name, &p.Quantity, &monitor,
		&p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.MonitorLowStock = monitor == 1
	p.CategoryIDs = []int64{}
	return &p, nil
}

const pantryItemCols = `id, household_id, name, quantity, monitor_low_stock, low_stock_threshold, created_at, updated_at`

// UpsertParams describes an add-or-merge of a pantry item.
type UpsertParams struct {
	Name            string
	Quantity        int
	MonitorLowStock bool
	// LowStockThreshold overwrites the stored threshold when non-nil.
	LowStockThreshold *int
	CategoryIDs       []int64
}

// Upsert inserts a new item or, when the household already has an item with
// the same name key, adds the quantity to it. The stored name
// keeps the casing it was first created with. Categories are unioned with the
// existing set. created reports whether a new row was inserted.
func (s *PantryStore) Upsert(ctx context.Context, householdID int64, p UpsertParams) (item *model.PantryItem, created bool, err error) {
	now := s.now()
	threshold := model.DefaultLowStockThreshold
	if p.LowStockThreshold != nil {
		threshold = *p.LowStockThreshold
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO pantry_items (household_id, name, name_key, quantity, monitor_low_stock, low_stock_threshold, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (household_id, name_key) DO UPDATE SET
			quantity = quantity + excluded.quantity,
			monitor_low_stock = excluded.monitor_low_stock,
			low_stock_threshold = CASE WHEN ? THEN excluded.low_stock_threshold ELSE low_stock_threshold END,
			updated_at = excluded.updated_at
		 RETURNING id, created_at = updated_at`,
		householdID, p.Name, NameKey(p.Name), p.Quantity, boolToInt(p.MonitorLowStock), threshold, now, now,
		boolToInt(p.LowStockThreshold != nil),
	).Scan(&id, &created)
	if isCheckViolation(err) {
		return nil, false, ErrQuantityTooLarge
	}
	if err != nil {
		return nil, false, fmt.Errorf("upsert pantry item: %w", err)
	}

	if err := s.AddCategories(ctx, id, p.CategoryIDs); err != nil {
		return nil, false, err
	}

	item, err = s.GetByID(ctx, householdID, id)
	if err != nil {
		return nil, false, err
	}
	return item, created, nil
}

// AddCategories links the item to the given categories, ignoring links that
// already exist.
func (s *PantryStore) AddCategories(ctx context.Context, itemID int64, categoryIDs []int64) error {
	for _, cid := range categoryIDs {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO pantry_item_categories (pantry_item_id, category_id) VALUES (?, ?)`,
			itemID, cid,
		); err != nil {
			return fmt.Errorf("link category %d: %w", cid, err)
		}
	}
	return nil
}

// ReplaceCategories sets the item's categories to exactly categoryIDs.
func (s *PantryStore) ReplaceCategories(ctx context.Context, itemID int64, categoryIDs []int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pantry_item_categories WHERE pantry_item_id = ?`, itemID,
	); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	return s.AddCategories(ctx, itemID, categoryIDs)
}

// GetByID returns the item only when it belongs to householdID.
func (s *PantryStore) GetByID(ctx context.Context, householdID, id int64) (*model.PantryItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pantryItemCols+` FROM pantry_items WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	item, err := scanPantryItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pantry item: %w", err)
	}
	items := []model.PantryItem{*item}
	if err := s.attachCategories(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *PantryStore) GetByName(ctx context.Context, householdID int64, name string) (*model.PantryItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pantryItemCols+` FROM pantry_items WHERE household_id = ? AND name_key = ?`,
		householdID, NameKey(name),
	)
	item, err := scanPantryItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pantry item by name: %w", err)
	}
	items := []model.PantryItem{*item}
	if err := s.attachCategories(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

func searchClause(search string) (string, []any) {
	key := NameKey(search)
	if key == "" {
		return "", nil
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return ` AND name_key LIKE ? ESCAPE '\'`, []any{"%" + r.Replace(key) + "%"}
}

// List returns one page of the household's items ordered by name. A negative
// limit returns every item from offset onward.
func (s *PantryStore) List(ctx context.Context, householdID int64, search string, limit, offset int) ([]model.PantryItem, error) {
	clause, args := searchClause(search)
	args = append([]any{householdID}, args...)
	args = append(args, limit, offset)
	return s.query(ctx, "list pantry items",
		`SELECT `+pantryItemCols+` FROM pantry_items
		 WHERE household_id = ?`+clause+`
		 ORDER BY name COLLATE NOCASE ASC, id ASC
		 LIMIT ? OFFSET ?`,
		args...,
	)
}

// Count returns the number of items List would return without paging.
func (s *PantryStore) Count(ctx context.Context, householdID int64, search string) (int, error) {
	clause, args := searchClause(search)
	args = append([]any{householdID}, args...)
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pantry_items WHERE household_id = ?`+clause, args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pantry items: %w", err)
	}
	return n, nil
}

// ListByCategories returns items linked to any of the categories.
func (s *PantryStore) ListByCategories(ctx context.Context, householdID int64, categoryIDs []int64, limit, offset int) ([]model.PantryItem, error) {
	if len(categoryIDs) == 0 {
		return []model.PantryItem{}, nil
	}
	args := []any{householdID}
	for _, id := range categoryIDs {
		args = append(args, id)
	}
	args = append(args, limit, offset)
	return s.query(ctx, "list pantry items by category",
		`SELECT `+pantryItemCols+` FROM pantry_items
		 WHERE household_id = ? AND id IN (
			SELECT pantry_item_id FROM pantry_item_categories
			WHERE category_id IN (`+placeholders(len(categoryIDs))+`)
		 )
		 ORDER BY name COLLATE NOCASE ASC, id ASC
		 LIMIT ? OFFSET ?`,
		args...,
	)
}

// Recent returns the most recently updated items, newest first.
func (s *PantryStore) Recent(ctx context.Context, householdID int64, limit int) ([]model.PantryItem, error) {
	return s.query(ctx, "list recent pantry items",
		`SELECT `+pantryItemCols+` FROM pantry_items
		 WHERE household_id = ?
		 ORDER BY updated_at DESC, id DESC
		 LIMIT ?`,
		householdID, limit,
	)
}

// LowStock returns monitored items whose quantity is below their threshold.
// A stored threshold of zero falls back to model.DefaultLowStockThreshold.
func (s *PantryStore) LowStock(ctx context.Context, householdID int64) ([]model.PantryItem, error) {
	return s.query(ctx, "list low stock pantry items",
		`SELECT `+pantryItemCols+` FROM pantry_items
		 WHERE household_id = ?
		   AND monitor_low_stock = 1
		   AND quantity < COALESCE(NULLIF(low_stock_threshold, 0), ?)
		 ORDER BY quantity ASC, name COLLATE NOCASE ASC, id ASC`,
		householdID, model.DefaultLowStockThreshold,
	)
}

// SetQuantity replaces the item's quantity. It reports false when no item
// with that id belongs to the household.
func (s *PantryStore) SetQuantity(ctx context.Context, householdID, id int64, quantity int) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE pantry_items SET quantity = ?, updated_at = ? WHERE id = ? AND household_id = ?`,
		quantity, s.now(), id, householdID,
	)
	if isCheckViolation(err) {
		return false, ErrQuantityTooLarge
	}
	if err != nil {
		return false, fmt.Errorf("set pantry item quantity: %w", err)
	}
	return affected(result)
}

// DetailsUpdate carries the fields of an explicit item edit. Nil fields are
// left unchanged.
type DetailsUpdate struct {
	Name              *string
	Quantity          *int
	LowStockThreshold *int
}

// UpdateDetails applies the non-nil fields of u. Renaming onto another item's
// name returns ErrDuplicateItemName.
func (s *PantryStore) UpdateDetails(ctx context.Context, householdID, id int64, u DetailsUpdate) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []any{s.now()}
	if u.Name != nil {
		sets = append(sets, "name = ?", "name_key = ?")
		args = append(args, *u.Name, NameKey(*u.Name))
	}
	if u.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *u.Quantity)
	}
	if u.LowStockThreshold != nil {
		sets = append(sets, "low_stock_threshold = ?")
		args = append(args, *u.LowStockThreshold)
	}
	args = append(args, id, householdID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE pantry_items SET `+strings.Join(sets, ", ")+` WHERE id = ? AND household_id = ?`,
		args...,
	)
	if isUniqueViolation(err) {
		return false, ErrDuplicateItemName
	}
	if isCheckViolation(err) {
		return false, ErrQuantityTooLarge
	}
	if err != nil {
		return false, fmt.Errorf("update pantry item: %w", err)
	}
	return affected(result)
}

// ToggleMonitor flips the low-stock flag and returns the new value. found is
// false when the item does not belong to the household.
func (s *PantryStore) ToggleMonitor(ctx context.Context, householdID, id int64) (monitor, found bool, err error) {
	var v int
	err = s.db.QueryRowContext(ctx,
		`UPDATE pantry_items SET monitor_low_stock = 1 - monitor_low_stock, updated_at = ?
		 WHERE id = ? AND household_id = ?
		 RETURNING monitor_low_stock`,
		s.now(), id, householdID,
	).Scan(&v)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("toggle pantry item monitor: %w", err)
	}
	return v == 1, true, nil
}

func (s *PantryStore) Delete(ctx context.Context, householdID, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM pantry_items WHERE id = ? AND household_id = ?`, id, householdID,
	)
	if err != nil {
		return false, fmt.Errorf("delete pantry item: %w", err)
	}
	return affected(result)
}

func (s *PantryStore) query(ctx context.Context, op, q string, args ...any) ([]model.PantryItem, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := []model.PantryItem{}
	for rows.Next() {
		item, err := scanPantryItem(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pantry item: %w", err)
		}
		items = append(items, *item)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.attachCategories(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// attachCategories fills CategoryIDs for every item with one query. Rows from
// the item query must be closed before it runs.
func (s *PantryStore) attachCategories(ctx context.Context, items []model.PantryItem) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[int64]int, len(items))
	args := make([]any, len(items))
	for i := range items {
		index[items[i].ID] = i
		args[i] = items[i].ID
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT pantry_item_id, category_id FROM pantry_item_categories
		 WHERE pantry_item_id IN (`+placeholders(len(items))+`)
		 ORDER BY category_id ASC`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("load item categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID, categoryID int64
		if err := rows.Scan(&itemID, &categoryID); err != nil {
			return fmt.Errorf("scan item category: %w", err)
		}
		i := index[itemID]
		items[i].CategoryIDs = append(items[i].CategoryIDs, categoryID)
	}
	return rows.Err()
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
