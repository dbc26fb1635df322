package model

import "time"

// DefaultLowStockThreshold applies to items whose stored threshold is zero.
const DefaultLowStockThreshold = 2

// MaxQuantity bounds the stock of a single item, including merged totals.
const MaxQuantity = 1_000_000_000

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type PantryItem struct {
	ID                int64     `json:"id"`
	HouseholdID       int64     `json:"household_id"`
	Name              string    `json:"name"`
	Quantity          int       `json:"quantity"`
	MonitorLowStock   bool      `json:"monitor_low_stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	CategoryIDs       []int64   `json:"category_ids"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EffectiveThreshold returns the threshold used for low-stock checks.
func (p *PantryItem) EffectiveThreshold() int {
	if p.LowStockThreshold <= 0 {
		return DefaultLowStockThreshold
	}
	return p.LowStockThreshold
}

// IsLowStock reports whether the item is monitored and below its threshold.
func (p *PantryItem) IsLowStock() bool {
	return p.MonitorLowStock && p.Quantity < p.EffectiveThreshold()
}
