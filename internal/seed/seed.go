// Package seed writes the reference categories and the administrator
// account. Every step skips rows that already exist, so Run is safe to call on
// every start.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/pantrytracker/internal/auth"
	"github.com/dukerupert/pantrytracker/internal/categorize"
	"github.com/dukerupert/pantrytracker/internal/store"
)

const (
	AdminHouseholdName = "Admin Household"
	AdminJoinCode      = "ADMIN123"
	adminFirstName     = "Admina"
	adminLastName      = "Strator"
)

type sampleItem struct {
	name     string
	quantity int
}

var sampleItems = []sampleItem{
	{"Milk", 2},
	{"Cheese", 5},
	{"Bread", 3},
}

type Options struct {
	AdminEmail    string
	AdminPassword string
}

// Run seeds categories, then the admin account when a password is configured.
func Run(ctx context.Context, db *sql.DB, opts Options, logger *slog.Logger) error {
	logger = logger.With("component", "seed")

	return store.RunInTx(ctx, db, func(tx *sql.Tx) error {
		categories := store.NewCategoryStore(db).WithTx(tx)
		ids := make(map[string]int64, len(categorize.All))
		for _, name := range categorize.All {
			c, err := categories.Ensure(ctx, name)
			if err != nil {
				return fmt.Errorf("seed category %q: %w", name, err)
			}
			ids[name] = c.ID
		}

		if opts.AdminPassword == "" || opts.AdminEmail == "" {
			logger.Info("admin seed skipped: no admin password configured")
			return nil
		}
		return seedAdmin(ctx, db, tx, opts, ids, logger)
	})
}

func seedAdmin(ctx context.Context, db *sql.DB, tx *sql.Tx, opts Options, categoryIDs map[string]int64, logger *slog.Logger) error {
	users := store.NewUserStore(db).WithTx(tx)
	profiles := store.NewProfileStore(db).WithTx(tx)
	households := store.NewHouseholdStore(db).WithTx(tx)
	pantry := store.NewPantryStore(db).WithTx(tx)

	existing, err := users.GetByEmail(ctx, opts.AdminEmail)
	if err != nil {
		return fmt.Errorf("look up admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	if err := auth.ValidatePassword(opts.AdminPassword); err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	hash, err := auth.HashPassword(opts.AdminPassword)
	if err != nil {
		return err
	}
	user, err := users.Create(ctx, opts.AdminEmail, hash)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	profile, err := profiles.Create(ctx, user.ID, adminFirstName, adminLastName, nil)
	if err != nil {
		return fmt.Errorf("create admin profile: %w", err)
	}

	household, err := households.GetByJoinCode(ctx, AdminJoinCode)
	if err != nil {
		return fmt.Errorf("look up admin household: %w", err)
	}
	if household == nil {
		household, err = households.Create(ctx, AdminHouseholdName, AdminJoinCode, &profile.ID)
		if err != nil {
			return fmt.Errorf("create admin household: %w", err)
		}
	} else if err := households.SetAdmin(ctx, household.ID, &profile.ID); err != nil {
		return err
	}
	if err := profiles.SetHousehold(ctx, profile.ID, &household.ID); err != nil {
		return fmt.Errorf("attach admin household: %w", err)
	}

	for _, s := range sampleItems {
		existing, err := pantry.GetByName(ctx, household.ID, s.name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		var cats []int64
		if id, ok := categoryIDs[categorize.Suggest(s.name)]; ok {
			cats = []int64{id}
		}
		if _, _, err := pantry.Upsert(ctx, household.ID, store.UpsertParams{
			Name:            s.name,
			Quantity:        s.quantity,
			MonitorLowStock: true,
			CategoryIDs:     cats,
		}); err != nil {
			return fmt.Errorf("seed item %q: %w", s.name, err)
		}
	}

	logger.Info("admin account seeded", "email", user.Email, "household_id", household.ID)
	return nil
}
