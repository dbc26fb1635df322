package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/pantrytracker/internal/apperr"
	"github.com/dukerupert/pantrytracker/internal/catalog"
	"github.com/dukerupert/pantrytracker/internal/categorize"
	"github.com/dukerupert/pantrytracker/internal/model"
	"github.com/dukerupert/pantrytracker/internal/store"
)

func (e *testEnv) categoryID(t *testing.T, name string) int64 {
	t.Helper()
	c, err := store.NewCategoryStore(e.db).GetByName(context.Background(), name)
	require.NoError(t, err)
	require.NotNil(t, c, "category %q", name)
	return c.ID
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestAddOrUpdateItemMergesWithinHousehold(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")
	snacks := env.categoryID(t, categorize.Snacks)

	first, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Crackers", Quantity: 2})
	require.NoError(t, err)
	merged, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: " crackers ", Quantity: 3, CategoryIDs: []int64{snacks}})
	require.NoError(t, err)

	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, "Crackers", merged.Name)
	assert.Equal(t, 5, merged.Quantity)
	assert.Contains(t, merged.CategoryIDs, snacks)
	assert.Equal(t, 1, env.count(t, "pantry_items"))
}

func TestAddOrUpdateItemMergesUnicodeNames(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")

	first, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Äpfel", Quantity: 2})
	require.NoError(t, err)
	merged, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "äpfel", Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, "Äpfel", merged.Name)
	assert.Equal(t, 5, merged.Quantity)
	assert.Equal(t, 1, env.count(t, "pantry_items"))

	found, err := env.pantry.ListItems(ctx, 1, 10, "äpf")
	require.NoError(t, err)
	assert.Equal(t, 1, found.TotalItems)
}

func TestAddOrUpdateItemRejectsQuantityOverflow(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")

	item, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Rice", Quantity: model.MaxQuantity})
	require.NoError(t, err)

	_, err = env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Rice", Quantity: 1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Rice", Quantity: math.MaxInt})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = env.pantry.UpdateQuantity(ctx, item.ID, model.MaxQuantity+1)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = env.pantry.UpdateItemDetails(ctx, item.ID, UpdateItemInput{Quantity: intPtr(math.MaxInt)})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	page, err := env.pantry.ListItems(ctx, 1, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, model.MaxQuantity, page.Items[0].Quantity)
}

func TestAddOrUpdateItemSeparatesHouseholds(t *testing.T) {
	env := newTestEnv(t)
	_, aliceCtx := env.register(t, "alice@example.com", "Alice", "", "Smiths")
	_, bobCtx := env.register(t, "bob@example.com", "Bob", "", "Joneses")

	a, err := env.pantry.AddOrUpdateItem(aliceCtx, AddItemInput{Name: "Rice", Quantity: 2})
	require.NoError(t, err)
	b, err := env.pantry.AddOrUpdateItem(bobCtx, AddItemInput{Name: "Rice", Quantity: 3})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, a.Quantity)
	assert.Equal(t, 3, b.Quantity)

	_, err = env.pantry.UpdateQuantity(bobCtx, a.ID, 9)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	err = env.pantry.DeleteItem(bobCtx, a.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAddOrUpdateItemDefaults(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")

	item, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Milk", Quantity: 1})
	require.NoError(t, err)
	assert.True(t, item.MonitorLowStock)
	assert.Equal(t, 2, item.LowStockThreshold)
	assert.Equal(t, []int64{env.categoryID(t, categorize.Dairy)}, item.CategoryIDs)

	unknown, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{
		Name:              "Mystery box",
		Quantity:          1,
		MonitorLowStock:   boolPtr(false),
		LowStockThreshold: intPtr(4),
	})
	require.NoError(t, err)
	assert.False(t, unknown.MonitorLowStock)
	assert.Equal(t, 4, unknown.LowStockThreshold)
	assert.Empty(t, unknown.CategoryIDs)
}

func TestAddOrUpdateItemValidation(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")

	tests := []struct {
		name string
		in   AddItemInput
	}{
		{"blank name", AddItemInput{Name: "  ", Quantity: 1}},
		{"negative quantity", AddItemInput{Name: "Rice", Quantity: -1}},
		{"quantity too large", AddItemInput{Name: "Rice", Quantity: model.MaxQuantity + 1}},
		{"negative threshold", AddItemInput{Name: "Rice", Quantity: 1, LowStockThreshold: intPtr(-1)}},
		{"unknown category", AddItemInput{Name: "Rice", Quantity: 1, CategoryIDs: []int64{9999}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.pantry.AddOrUpdateItem(ctx, tt.in)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
	assert.Equal(t, 0, env.count(t, "pantry_items"))
}

func TestPantryRequiresHousehold(t *testing.T) {
	env := newTestEnv(t)
	_, aliceCtx := env.register(t, "alice@example.com", "Alice", "", "Smiths")
	members, err := env.households.GetMembers(aliceCtx)
	require.NoError(t, err)
	bob, bobCtx := env.register(t, "bob@example.com", "Bob", members.JoinCode, "")
	require.NoError(t, env.households.RemoveMember(aliceCtx, bob.User.ID))

	_, err = env.pantry.ListItems(bobCtx, 1, 10, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, MsgNoHousehold, apperr.Message(err))

	_, err = env.pantry.AddOrUpdateItem(bobCtx, AddItemInput{Name: "Rice", Quantity: 1})
	assert.Equal(t, MsgNoHousehold, apperr.Message(err))

	_, err = env.pantry.RecentActivity(bobCtx)
	assert.Equal(t, MsgNoHousehold, apperr.Message(err))

	_, err = env.pantry.ListItems(context.Background(), 1, 10, "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestListItemsPaging(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")
	for _, name := range []string{"Apples", "Bananas", "Carrots", "Dates", "Eggplant"} {
		_, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: name, Quantity: 3})
		require.NoError(t, err)
	}

	page, err := env.pantry.ListItems(ctx, 2, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalItems)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.PageSize)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Carrots", page.Items[0].Name)
	assert.Equal(t, "Dates", page.Items[1].Name)

	all, err := env.pantry.ListItems(ctx, 0, 0, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPage, all.Page)
	assert.Equal(t, DefaultPageSize, all.PageSize)
	assert.Len(t, all.Items, 5)

	far, err := env.pantry.ListItems(ctx, math.MaxInt, 10, "")
	require.NoError(t, err)
	assert.Equal(t, MaxPage, far.Page)
	assert.Empty(t, far.Items)
	assert.Equal(t, 5, far.TotalItems)

	byCategory, err := env.pantry.ListItemsByCategory(ctx, []int64{env.categoryID(t, categorize.Produce)}, math.MaxInt, 10)
	require.NoError(t, err)
	assert.Empty(t, byCategory)

	search, err := env.pantry.ListItems(ctx, 1, 10, "nan")
	require.NoError(t, err)
	assert.Equal(t, 1, search.TotalItems)
	assert.Equal(t, "Bananas", search.Items[0].Name)
}

func TestPaging(t *testing.T) {
	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, 10},
		{-3, 5, 1, 5},
		{2, 500, 2, MaxPageSize},
		{1, -4, 1, 1},
		{math.MaxInt, 10, MaxPage, 10},
	}
	for _, tt := range tests {
		page, size := Paging(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantSize, size)
	}
}

func TestListItemsByCategory(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")
	dairy := env.categoryID(t, categorize.Dairy)
	snacks := env.categoryID(t, categorize.Snacks)
	produce := env.categoryID(t, categorize.Produce)

	_, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Cheese puffs", Quantity: 1, CategoryIDs: []int64{dairy, snacks}})
	require.NoError(t, err)
	_, err = env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Butter", Quantity: 1, CategoryIDs: []int64{dairy}})
	require.NoError(t, err)
	_, err = env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Kale", Quantity: 1, CategoryIDs: []int64{produce}})
	require.NoError(t, err)

	items, err := env.pantry.ListItemsByCategory(ctx, []int64{dairy, snacks}, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Butter", items[0].Name)
	assert.Equal(t, "Cheese puffs", items[1].Name)

	paged, err := env.pantry.ListItemsByCategory(ctx, []int64{dairy}, 2, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "Cheese puffs", paged[0].Name)

	_, err = env.pantry.ListItemsByCategory(ctx, nil, 1, 10)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUpdateQuantity(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")
	item, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Rice", Quantity: 2})
	require.NoError(t, err)

	updated, err := env.pantry.UpdateQuantity(ctx, item.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)

	_, err = env.pantry.UpdateQuantity(ctx, item.ID, -1)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	zero, err := env.pantry.UpdateQuantity(ctx, item.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, zero.Quantity)

	_, err = env.pantry.UpdateQuantity(ctx, 9999, 1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUpdateItemDetails(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")
	rice, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Rice", Quantity: 2})
	require.NoError(t, err)
	_, err = env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Pasta", Quantity: 2})
	require.NoError(t, err)
	dry := env.categoryID(t, categorize.DryGoods)

	name := "Basmati rice"
	cats := []int64{dry}
	updated, err := env.pantry.UpdateItemDetails(ctx, rice.ID, UpdateItemInput{
		Name:              &name,
		LowStockThreshold: intPtr(1),
		CategoryIDs:       &cats,
	})
	require.NoError(t, err)
	assert.Equal(t, "Basmati rice", updated.Name)
	assert.Equal(t, 2, updated.Quantity)
	assert.Equal(t, 1, updated.LowStockThreshold)
	assert.Equal(t, []int64{dry}, updated.CategoryIDs)

	clash := "pasta"
	_, err = env.pantry.UpdateItemDetails(ctx, rice.ID, UpdateItemInput{Name: &clash})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = env.pantry.UpdateItemDetails(ctx, 9999, UpdateItemInput{Quantity: intPtr(1)})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	blank := " "
	_, err = env.pantry.UpdateItemDetails(ctx, rice.ID, UpdateItemInput{Name: &blank})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestToggleAndDelete(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")
	item, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Rice", Quantity: 2})
	require.NoError(t, err)

	res, err := env.pantry.ToggleMonitorLowStock(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, res.MonitorLowStock)
	res, err = env.pantry.ToggleMonitorLowStock(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, res.MonitorLowStock)

	require.NoError(t, env.pantry.DeleteItem(ctx, item.ID))
	err = env.pantry.DeleteItem(ctx, item.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = env.pantry.ToggleMonitorLowStock(ctx, item.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRecentActivity(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")

	_, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Rice", Quantity: 5})
	require.NoError(t, err)
	_, err = env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Salt", Quantity: 1})
	require.NoError(t, err)
	_, err = env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Sugar", Quantity: 0, MonitorLowStock: boolPtr(false)})
	require.NoError(t, err)
	_, err = env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Flour", Quantity: 3, LowStockThreshold: intPtr(4)})
	require.NoError(t, err)

	activity, err := env.pantry.RecentActivity(ctx)
	require.NoError(t, err)
	require.Len(t, activity.RecentActivity, 4)
	assert.Equal(t, "Flour", activity.RecentActivity[0].Name)

	low := make([]string, 0, len(activity.LowStockItems))
	for _, item := range activity.LowStockItems {
		low = append(low, item.Name)
	}
	assert.Equal(t, []string{"Salt", "Flour"}, low)
}

func TestSearchExternalCatalog(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")
	env.catalog.result = &catalog.Result{
		Items: []catalog.Item{{Barcode: "123", Name: "Oat Milk", Brand: "Oatly"}},
		Page:  1,
		Total: 1,
	}

	res, err := env.pantry.SearchExternalCatalog(ctx, "oat milk", 0, 0)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Oatly", res.Items[0].Brand)
	assert.Equal(t, 1, env.catalog.calls)

	_, err = env.pantry.SearchExternalCatalog(ctx, "  ", 10, 1)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, 1, env.catalog.calls)

	env.catalog.err = errors.New("upstream 503")
	_, err = env.pantry.SearchExternalCatalog(ctx, "oat milk", 10, 1)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "catalog unavailable", apperr.Message(err))

	_, err = env.pantry.SearchExternalCatalog(context.Background(), "oat milk", 10, 1)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestListCategories(t *testing.T) {
	env := newTestEnv(t)
	cats, err := env.pantry.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, len(categorize.All))
	assert.Equal(t, categorize.Dairy, cats[0].Name)
}

type notification struct {
	householdID int64
	entity      string
	action      string
	id          int64
}

type recordingNotifier struct {
	got []notification
}

func (r *recordingNotifier) Notify(householdID int64, entity, action string, id int64) {
	r.got = append(r.got, notification{householdID, entity, action, id})
}

func TestPantryChangesNotifyHousehold(t *testing.T) {
	env := newTestEnv(t)
	rn := &recordingNotifier{}
	env.pantry.SetNotifier(rn)
	res, ctx := env.register(t, "alice@example.com", "Alice", "", "Smiths")
	hid := *res.User.HouseholdID

	item, err := env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Rice", Quantity: 1})
	require.NoError(t, err)
	_, err = env.pantry.AddOrUpdateItem(ctx, AddItemInput{Name: "Rice", Quantity: 1})
	require.NoError(t, err)
	_, err = env.pantry.UpdateQuantity(ctx, item.ID, 4)
	require.NoError(t, err)
	require.NoError(t, env.pantry.DeleteItem(ctx, item.ID))

	_, err = env.pantry.UpdateQuantity(ctx, item.ID, 4)
	require.Error(t, err)

	assert.Equal(t, []notification{
		{hid, "pantry_item", "created", item.ID},
		{hid, "pantry_item", "updated", item.ID},
		{hid, "pantry_item", "updated", item.ID},
		{hid, "pantry_item", "deleted", item.ID},
	}, rn.got)
}
