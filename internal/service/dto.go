package service

import (
	"time"

	"github.com/dukerupert/pantrytracker/internal/model"
)

// UserDTO summarises a user for auth responses. ID is the profile id.
type UserDTO struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"userId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	HouseholdID *int64 `json:"householdId"`
}

type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserDTO   `json:"user"`
}

type PantryItemSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type UserProfileDTO struct {
	ID            int64               `json:"id"`
	FirstName     string              `json:"firstName"`
	LastName      string              `json:"lastName"`
	UserID        int64               `json:"userId"`
	Email         string              `json:"email"`
	HouseholdID   *int64              `json:"householdId"`
	HouseholdName string              `json:"householdName,omitempty"`
	PantryItems   []PantryItemSummary `json:"pantryItems"`
}

type HouseholdDTO struct {
	HouseholdID int64  `json:"householdId"`
	Name        string `json:"name"`
	JoinCode    string `json:"joinCode"`
	AdminUserID int64  `json:"adminUserId"`
}

type MemberDTO struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type MembersDTO struct {
	LoggedInUserID int64       `json:"loggedInUserId"`
	JoinCode       string      `json:"joinCode"`
	AdminUserID    *int64      `json:"adminUserId"`
	HouseholdName  string      `json:"householdName"`
	Members        []MemberDTO `json:"members"`
}

type PantryItemDTO struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Quantity          int       `json:"quantity"`
	UpdatedAt         time.Time `json:"updatedAt"`
	CategoryIDs       []int64   `json:"categoryIds"`
	MonitorLowStock   bool      `json:"monitorLowStock"`
	LowStockThreshold int       `json:"lowStockThreshold"`
}

type PagedItems struct {
	Items      []PantryItemDTO `json:"items"`
	TotalItems int             `json:"totalItems"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
}

type RecentActivityDTO struct {
	RecentActivity []PantryItemDTO `json:"recentActivity"`
	LowStockItems  []PantryItemDTO `json:"lowStockItems"`
}

type ToggleResult struct {
	MonitorLowStock bool `json:"monitorLowStock"`
}

func toUserDTO(u *model.User, p *model.UserProfile) UserDTO {
	return UserDTO{
		ID:          p.ID,
		UserID:      u.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       u.Email,
		HouseholdID: p.HouseholdID,
	}
}

func toHouseholdDTO(h *model.Household, adminProfileID int64) HouseholdDTO {
	return HouseholdDTO{
		HouseholdID: h.ID,
		Name:        h.Name,
		JoinCode:    h.JoinCode,
		AdminUserID: adminProfileID,
	}
}

func toPantryItemDTO(p model.PantryItem) PantryItemDTO {
	ids := p.CategoryIDs
	if ids == nil {
		ids = []int64{}
	}
	return PantryItemDTO{
		ID:                p.ID,
		Name:              p.Name,
		Quantity:          p.Quantity,
		UpdatedAt:         p.UpdatedAt.UTC(),
		CategoryIDs:       ids,
		MonitorLowStock:   p.MonitorLowStock,
		LowStockThreshold: p.LowStockThreshold,
	}
}

func toPantryItemDTOs(items []model.PantryItem) []PantryItemDTO {
	out := make([]PantryItemDTO, len(items))
	for i, item := range items {
		out[i] = toPantryItemDTO(item)
	}
	return out
}
