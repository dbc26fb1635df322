// Package service implements the pantry tracker's use cases on top of the
// stores. Every household-scoped method resolves the caller first and scopes
// all data access to the caller's household.
package service

import (
	"context"

	"github.com/dukerupert/pantrytracker/internal/apperr"
	"github.com/dukerupert/pantrytracker/internal/auth"
	"github.com/dukerupert/pantrytracker/internal/model"
	"github.com/dukerupert/pantrytracker/internal/store"
)

// User-visible messages shared across services.
const (
	MsgNoHousehold   = "you are not part of a household"
	MsgNotAdmin      = "not authorized to manage this household"
	MsgInvalidLogin  = "invalid email or password"
	MsgAuthRequired  = "authentication required"
	MsgNoProfile     = "user profile not found"
	maxJoinCodeTries = 20
)

// Notifier is told about changes to a household's data.
type Notifier interface {
	Notify(householdID int64, entity, action string, id int64)
}

type nopNotifier struct{}

func (nopNotifier) Notify(int64, string, string, int64) {}

// ResolveCaller loads the profile of the authenticated user in ctx.
func ResolveCaller(ctx context.Context, profiles *store.ProfileStore) (*model.UserProfile, error) {
	userID := auth.UserID(ctx)
	if userID == 0 {
		return nil, apperr.Unauthorized(MsgAuthRequired)
	}
	p, err := profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("load profile", err)
	}
	if p == nil {
		return nil, apperr.NotFound(MsgNoProfile)
	}
	return p, nil
}

// RequireHousehold returns the profile's household id, or a validation error
// when the profile belongs to no household.
func RequireHousehold(p *model.UserProfile) (int64, error) {
	if p.HouseholdID == nil {
		return 0, apperr.Validation(MsgNoHousehold)
	}
	return *p.HouseholdID, nil
}

// callerHousehold combines ResolveCaller and RequireHousehold.
func callerHousehold(ctx context.Context, profiles *store.ProfileStore) (*model.UserProfile, int64, error) {
	p, err := ResolveCaller(ctx, profiles)
	if err != nil {
		return nil, 0, err
	}
	hid, err := RequireHousehold(p)
	if err != nil {
		return nil, 0, err
	}
	return p, hid, nil
}

// createHousehold inserts a household with a fresh join code, regenerating
// the code on collision.
func createHousehold(ctx context.Context, hs *store.HouseholdStore, newCode func() string, name string, adminProfileID int64) (*model.Household, error) {
	for range maxJoinCodeTries {
		code := newCode()
		exists, err := hs.JoinCodeExists(ctx, code)
		if err != nil {
			return nil, apperr.Internal("check join code", err)
		}
		if exists {
			continue
		}
		h, err := hs.Create(ctx, name, code, &adminProfileID)
		if err == store.ErrDuplicateJoinCode {
			continue
		}
		if err != nil {
			return nil, apperr.Internal("create household", err)
		}
		return h, nil
	}
	return nil, apperr.Conflict("could not generate a unique join code")
}
