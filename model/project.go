package model

import (
	"time"
)

// Project represents a homeowner's project as it moves through the pipeline
type Project struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	LocationZip string    `json:"location_zip"`
	ImageRefs   []string  `json:"image_refs,omitempty"`
	Status      string    `json:"status"` // draft, active, completed, cancelled
	ErrorMsg    string    `json:"error_msg,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Project lifecycle constants. Transitions are driven only by pipeline
// events; nothing outside the pipeline writes Status.
const (
	ProjectDraft     = "draft"
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)
