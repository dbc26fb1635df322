package model

import "time"

type Household struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	JoinCode       string    `json:"join_code"`
	AdminProfileID *int64    `json:"admin_profile_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsAdmin reports whether the given profile administers the household.
func (h *Household) IsAdmin(profileID int64) bool {
	return h.AdminProfileID != nil && *h.AdminProfileID == profileID
}
