package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/pantrytracker/internal/model"
)

type ProfileStore struct {
	db querier
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *ProfileStore) WithTx(tx *sql.Tx) *ProfileStore {
	return &ProfileStore{db: tx}
}

func scanProfile(scanner rowScanner) (*model.UserProfile, error) {
	var p model.UserProfile
	var householdID sql.NullInt64
	err := scanner.Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &householdID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.HouseholdID = int64Ptr(householdID)
	return &p, nil
}

const profileCols = `id, user_id, first_name, last_name, household_id, created_at, updated_at`

func (s *ProfileStore) Create(ctx context.Context, userID int64, firstName, lastName string, householdID *int64) (*model.UserProfile, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, first_name, last_name, household_id) VALUES (?, ?, ?, ?)`,
		userID, firstName, lastName, nullInt64(householdID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ProfileStore) GetByID(ctx context.Context, id int64) (*model.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM user_profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByUserID(ctx context.Context, userID int64) (*model.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM user_profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by user: %w", err)
	}
	return p, nil
}

// SetHousehold moves the profile into householdID, or out of any household
// when householdID is nil.
func (s *ProfileStore) SetHousehold(ctx context.Context, profileID int64, householdID *int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET household_id = ? WHERE id = ?`,
		nullInt64(householdID), profileID,
	)
	if err != nil {
		return fmt.Errorf("set profile household: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
