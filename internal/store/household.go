package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/pantrytracker/internal/model"
)

// ErrDuplicateJoinCode is returned by Create when the join code is taken.
var ErrDuplicateJoinCode = errors.New("join code already in use")

type HouseholdStore struct {
	db querier
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *HouseholdStore) WithTx(tx *sql.Tx) *HouseholdStore {
	return &HouseholdStore{db: tx}
}

func scanHousehold(scanner rowScanner) (*model.Household, error) {
	var h model.Household
	var adminID sql.NullInt64
	err := scanner.Scan(&h.ID, &h.Name, &h.JoinCode, &adminID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	h.AdminProfileID = int64Ptr(adminID)
	return &h, nil
}

func scanMember(scanner rowScanner) (*model.Member, error) {
	var m model.Member
	err := scanner.Scan(&m.ProfileID, &m.UserID, &m.FirstName, &m.LastName, &m.Email)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const householdCols = `id, name, join_code, admin_profile_id, created_at, updated_at`

const memberSelect = `SELECT p.id, p.user_id, p.first_name, p.last_name, u.email
	FROM user_profiles p
	JOIN users u ON u.id = p.user_id`

func (s *HouseholdStore) Create(ctx context.Context, name, joinCode string, adminProfileID *int64) (*model.Household, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO households (name, join_code, admin_profile_id) VALUES (?, ?, ?)`,
		name, joinCode, nullInt64(adminProfileID),
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateJoinCode
	}
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HouseholdStore) GetByID(ctx context.Context, id int64) (*model.Household, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) GetByJoinCode(ctx context.Context, joinCode string) (*model.Household, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE join_code = ?`, joinCode)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household by join code: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) JoinCodeExists(ctx context.Context, joinCode string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM households WHERE join_code = ?)`, joinCode,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check join code: %w", err)
	}
	return exists, nil
}

// SetAdmin replaces the household administrator. A nil profileID leaves the
// household without an administrator.
func (s *HouseholdStore) SetAdmin(ctx context.Context, householdID int64, profileID *int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE households SET admin_profile_id = ? WHERE id = ?`,
		nullInt64(profileID), householdID,
	)
	if err != nil {
		return fmt.Errorf("set household admin: %w", err)
	}
	return nil
}

// Delete removes the household. Its pantry items are deleted and its members
// are left without a household.
func (s *HouseholdStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM households WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	return nil
}

func (s *HouseholdStore) ListMembers(ctx context.Context, householdID int64) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		memberSelect+` WHERE p.household_id = ? ORDER BY p.first_name COLLATE NOCASE ASC, p.id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *HouseholdStore) GetMember(ctx context.Context, householdID, profileID int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx,
		memberSelect+` WHERE p.household_id = ? AND p.id = ?`,
		householdID, profileID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}
