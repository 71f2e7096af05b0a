package models

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidMonitor = errors.New("invalid monitor")

type ListingType string

const (
	ListingRent ListingType = "rent"
	ListingSale ListingType = "sale"
)

func (t ListingType) IsValid() bool {
	return t == ListingRent || t == ListingSale
}

// Regions that can be monitored.
var Regions = []string{
	"台北市",
	"新北市",
	"桃園市",
	"新竹市",
	"新竹縣",
	"台中市",
	"台南市",
	"高雄市",
	"基隆市",
	"宜蘭縣",
	"花蓮縣",
	"台東縣",
}

func IsKnownRegion(name string) bool {
	for _, r := range Regions {
		if r == name {
			return true
		}
	}
	return false
}

type Monitor struct {
	ID        string      `json:"id"`
	AccountID string      `json:"userId"`
	Type      ListingType `json:"type"`
	Regions   []string    `json:"regions"`
	PriceMin  int         `json:"priceMin"`
	PriceMax  int         `json:"priceMax"`
	IsActive  bool        `json:"isActive"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// MonitorUpdate carries a partial change; nil fields are left untouched.
type MonitorUpdate struct {
	Type     *ListingType `json:"type"`
	Regions  *[]string    `json:"regions"`
	PriceMin *int         `json:"priceMin"`
	PriceMax *int         `json:"priceMax"`
	IsActive *bool        `json:"isActive"`
}

// Apply merges the update into m.
func (u MonitorUpdate) Apply(m *Monitor) {
	if u.Type != nil {
		m.Type = *u.Type
	}
	if u.Regions != nil {
		m.Regions = *u.Regions
	}
	if u.PriceMin != nil {
		m.PriceMin = *u.PriceMin
	}
	if u.PriceMax != nil {
		m.PriceMax = *u.PriceMax
	}
	if u.IsActive != nil {
		m.IsActive = *u.IsActive
	}
}

// NewMonitor returns the defaults a freshly created monitor starts from.
func NewMonitor(accountID string) Monitor {
	return Monitor{
		AccountID: accountID,
		Type:      ListingSale,
		Regions:   []string{},
		IsActive:  true,
	}
}

// Validate checks m and removes duplicate regions in place. A zero price
// bound means the bound is unset.
func (m *Monitor) Validate() error {
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: type must be rent or sale", ErrInvalidMonitor)
	}

	seen := make(map[string]bool, len(m.Regions))
	regions := make([]string, 0, len(m.Regions))
	for _, r := range m.Regions {
		if !IsKnownRegion(r) {
			return fmt.Errorf("%w: unknown region %q", ErrInvalidMonitor, r)
		}
		if !seen[r] {
			seen[r] = true
			regions = append(regions, r)
		}
	}
	m.Regions = regions

	if m.PriceMin < 0 || m.PriceMax < 0 {
		return fmt.Errorf("%w: prices must not be negative", ErrInvalidMonitor)
	}
	if m.PriceMin > 0 && m.PriceMax > 0 && m.PriceMin > m.PriceMax {
		return fmt.Errorf("%w: priceMin exceeds priceMax", ErrInvalidMonitor)
	}
	return nil
}
