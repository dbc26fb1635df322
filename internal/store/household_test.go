package store

import (
	"context"
	"testing"
)

type householdFixture struct {
	users      *UserStore
	profiles   *ProfileStore
	households *HouseholdStore
	pantry     *PantryStore
}

func setupHouseholdTestDB(t *testing.T) householdFixture {
	t.Helper()
	db := openTestDB(t)
	return householdFixture{
		users:      NewUserStore(db),
		profiles:   NewProfileStore(db),
		households: NewHouseholdStore(db),
		pantry:     NewPantryStore(db),
	}
}

func (f householdFixture) member(t *testing.T, email, first string, householdID *int64) int64 {
	t.Helper()
	ctx := context.Background()
	u, err := f.users.Create(ctx, email, "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	p, err := f.profiles.Create(ctx, u.ID, first, "Test", householdID)
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p.ID
}

func TestHouseholdCreate(t *testing.T) {
	f := setupHouseholdTestDB(t)
	ctx := context.Background()

	admin := f.member(t, "alice@example.com", "Alice", nil)
	h, err := f.households.Create(ctx, "Test Household", "ABCD1234", &admin)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if h.Name != "Test Household" {
		t.Errorf("name = %q, want %q", h.Name, "Test Household")
	}
	if h.JoinCode != "ABCD1234" {
		t.Errorf("join_code = %q, want %q", h.JoinCode, "ABCD1234")
	}
	if !h.IsAdmin(admin) {
		t.Errorf("admin_profile_id = %v, want %d", h.AdminProfileID, admin)
	}
}

func TestHouseholdCreateDuplicateJoinCode(t *testing.T) {
	f := setupHouseholdTestDB(t)
	ctx := context.Background()

	if _, err := f.households.Create(ctx, "One", "SAMECODE", nil); err != nil {
		t.Fatalf("create household: %v", err)
	}
	_, err := f.households.Create(ctx, "Two", "SAMECODE", nil)
	if err != ErrDuplicateJoinCode {
		t.Errorf("err = %v, want %v", err, ErrDuplicateJoinCode)
	}
}

func TestHouseholdGetByJoinCode(t *testing.T) {
	f := setupHouseholdTestDB(t)
	ctx := context.Background()

	created, _ := f.households.Create(ctx, "Home", "JOIN0001", nil)

	h, err := f.households.GetByJoinCode(ctx, "JOIN0001")
	if err != nil {
		t.Fatalf("get by join code: %v", err)
	}
	if h == nil || h.ID != created.ID {
		t.Fatalf("household = %v, want id %d", h, created.ID)
	}

	missing, err := f.households.GetByJoinCode(ctx, "NOPE0000")
	if err != nil {
		t.Fatalf("get by join code: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown join code")
	}

	exists, err := f.households.JoinCodeExists(ctx, "JOIN0001")
	if err != nil {
		t.Fatalf("join code exists: %v", err)
	}
	if !exists {
		t.Error("expected join code to exist")
	}
}

func TestHouseholdGetByIDNotFound(t *testing.T) {
	f := setupHouseholdTestDB(t)

	h, err := f.households.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if h != nil {
		t.Error("expected nil for nonexistent household")
	}
}

func TestHouseholdListMembersOrderedByFirstName(t *testing.T) {
	f := setupHouseholdTestDB(t)
	ctx := context.Background()

	h, _ := f.households.Create(ctx, "Home", "ABCD1234", nil)
	f.member(t, "zed@example.com", "zed", &h.ID)
	f.member(t, "amy@example.com", "Amy", &h.ID)
	f.member(t, "bob@example.com", "Bob", &h.ID)
	f.member(t, "outsider@example.com", "Aaron", nil)

	members, err := f.households.ListMembers(ctx, h.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("len = %d, want 3", len(members))
	}
	want := []string{"Amy", "Bob", "zed"}
	for i, m := range members {
		if m.FirstName != want[i] {
			t.Errorf("members[%d] = %q, want %q", i, m.FirstName, want[i])
		}
	}
	if members[0].Email != "amy@example.com" {
		t.Errorf("email = %q, want %q", members[0].Email, "amy@example.com")
	}
}

func TestHouseholdGetMemberScoped(t *testing.T) {
	f := setupHouseholdTestDB(t)
	ctx := context.Background()

	h1, _ := f.households.Create(ctx, "One", "ONE00001", nil)
	h2, _ := f.households.Create(ctx, "Two", "TWO00002", nil)
	p := f.member(t, "alice@example.com", "Alice", &h1.ID)

	m, err := f.households.GetMember(ctx, h1.ID, p)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil {
		t.Fatal("expected member, got nil")
	}

	m, err = f.households.GetMember(ctx, h2.ID, p)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m != nil {
		t.Error("expected nil for member of another household")
	}
}

func TestHouseholdDeleteCascades(t *testing.T) {
	f := setupHouseholdTestDB(t)
	ctx := context.Background()

	admin := f.member(t, "alice@example.com", "Alice", nil)
	h, _ := f.households.Create(ctx, "Home", "ABCD1234", &admin)
	if err := f.profiles.SetHousehold(ctx, admin, &h.ID); err != nil {
		t.Fatalf("set household: %v", err)
	}
	item, _, err := f.pantry.Upsert(ctx, h.ID, UpsertParams{Name: "Milk", Quantity: 2, MonitorLowStock: true})
	if err != nil {
		t.Fatalf("upsert item: %v", err)
	}

	if err := f.households.Delete(ctx, h.ID); err != nil {
		t.Fatalf("delete household: %v", err)
	}

	got, err := f.pantry.GetByID(ctx, h.ID, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got != nil {
		t.Error("expected pantry item to be deleted with its household")
	}

	p, err := f.profiles.GetByID(ctx, admin)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p == nil {
		t.Fatal("expected profile to survive household deletion")
	}
	if p.HouseholdID != nil {
		t.Errorf("household_id = %d, want nil", *p.HouseholdID)
	}
}

func TestHouseholdSetAdmin(t *testing.T) {
	f := setupHouseholdTestDB(t)
	ctx := context.Background()

	h, _ := f.households.Create(ctx, "Home", "ABCD1234", nil)
	p := f.member(t, "alice@example.com", "Alice", &h.ID)

	if err := f.households.SetAdmin(ctx, h.ID, &p); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	got, _ := f.households.GetByID(ctx, h.ID)
	if !got.IsAdmin(p) {
		t.Errorf("admin_profile_id = %v, want %d", got.AdminProfileID, p)
	}
}
