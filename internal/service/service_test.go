package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/pantrytracker/internal/auth"
	"github.com/dukerupert/pantrytracker/internal/catalog"
	"github.com/dukerupert/pantrytracker/internal/database"
	"github.com/dukerupert/pantrytracker/internal/seed"
)

type fakeCatalog struct {
	result *catalog.Result
	err    error
	calls  int
}

func (f *fakeCatalog) Search(_ context.Context, _ string, _, _ int) (*catalog.Result, error) {
	f.calls++
	return f.result, f.err
}

type testEnv struct {
	db         *sql.DB
	auth       *AuthService
	households *HouseholdService
	pantry     *PantryService
	catalog    *fakeCatalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, seed.Run(context.Background(), db, seed.Options{}, logger))

	fc := &fakeCatalog{result: &catalog.Result{Items: []catalog.Item{}, Page: 1}}
	tokens := auth.NewTokenManager("test-secret", "pantrytracker")
	return &testEnv{
		db:         db,
		auth:       NewAuthService(db, tokens, time.Hour, logger),
		households: NewHouseholdService(db, logger),
		pantry:     NewPantryService(db, fc, logger),
		catalog:    fc,
	}
}

func encode(password string) string {
	return base64.StdEncoding.EncodeToString([]byte(password))
}

// register creates a user and returns the auth result with a request context
// carrying that user's session.
func (e *testEnv) register(t *testing.T, email, first, joinCode, newHousehold string) (*AuthResult, context.Context) {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{
		Email:            email,
		Password:         encode("password123"),
		FirstName:        first,
		LastName:         "Tester",
		JoinCode:         joinCode,
		NewHouseholdName: newHousehold,
	})
	require.NoError(t, err)
	return res, e.contextFor(t, res.Token)
}

func (e *testEnv) contextFor(t *testing.T, token string) context.Context {
	t.Helper()
	ac, err := e.auth.Authenticate(context.Background(), token)
	require.NoError(t, err)
	return auth.WithAuth(context.Background(), ac)
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}
