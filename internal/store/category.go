package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/pantrytracker/internal/model"
)

type CategoryStore struct {
	db querier
}

func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *CategoryStore) WithTx(tx *sql.Tx) *CategoryStore {
	return &CategoryStore{db: tx}
}

func scanCategory(scanner rowScanner) (*model.Category, error) {
	var c model.Category
	if err := scanner.Scan(&c.ID, &c.Name); err != nil {
		return nil, err
	}
	return &c, nil
}

// Ensure inserts the category if no category with that name exists and
// returns the stored row.
func (s *CategoryStore) Ensure(ctx context.Context, name string) (*model.Category, error) {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return s.GetByName(ctx, name)
}

func (s *CategoryStore) GetByName(ctx context.Context, name string) (*model.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE name = ?`, name)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category by name: %w", err)
	}
	return c, nil
}

func (s *CategoryStore) List(ctx context.Context) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// Missing returns the ids from the input that do not name a category.
func (s *CategoryStore) Missing(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM categories WHERE id IN (`+placeholders(len(ids))+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("check categories: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
