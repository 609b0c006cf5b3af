package model

import (
	"time"
)

// ContractorProfile describes one contractor in the pool. Profiles are
// externally maintained; the pipeline only reads them.
type ContractorProfile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Categories     []string  `json:"categories"`
	ServiceZips    []string  `json:"service_zips"`
	Responsiveness float64   `json:"responsiveness"` // rolling score in [0,1]
	Available      bool      `json:"available"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ServesZip reports whether the contractor's service area covers the zip.
// An empty service area means the contractor serves everywhere.
func (c *ContractorProfile) ServesZip(zip string) bool {
	if len(c.ServiceZips) == 0 {
		return true
	}
	for _, z := range c.ServiceZips {
		if z == zip {
			return true
		}
	}
	return false
}

// HasCategory reports whether the contractor offers the given category
func (c *ContractorProfile) HasCategory(category string) bool {
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}
