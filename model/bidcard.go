package model

import (
	"fmt"
	"time"
)

// BidCard is the structured summary of a project used to solicit bids.
// Exactly one BidCard exists per Project once generated. A final bid card
// is immutable; draft cards may be regenerated.
type BidCard struct {
	ID           string      `json:"id"`
	ProjectID    string      `json:"project_id"`
	Category     string      `json:"category"`
	JobType      string      `json:"job_type"`
	Budget       BudgetRange `json:"budget"`
	Timeline     Timeline    `json:"timeline"`
	Scope        Scope       `json:"scope"`
	AIConfidence float64     `json:"ai_confidence"`
	Status       string      `json:"status"` // draft, final, needs_review
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// BidCard status constants
const (
	BidCardDraft       = "draft"
	BidCardFinal       = "final"
	BidCardNeedsReview = "needs_review"
)

// BudgetRange is the homeowner's budget window in whole dollars
type BudgetRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Timeline is the desired work window; either bound may be unset
type Timeline struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Scope is the structured work description produced by analysis
type Scope struct {
	Summary   string   `json:"summary"`
	Items     []string `json:"items,omitempty"`
	Materials []string `json:"materials,omitempty"`
}

// Validate checks the bid card once at the pipeline boundary. Validation
// failures are rejected synchronously, never coerced.
func (b *BidCard) Validate() error {
	if b.ProjectID == "" {
		return fmt.Errorf("bid card missing project id")
	}
	if b.Category == "" {
		return fmt.Errorf("bid card missing category")
	}
	if b.AIConfidence < 0 || b.AIConfidence > 1 {
		return fmt.Errorf("ai_confidence %v outside [0,1]", b.AIConfidence)
	}
	if b.Budget.Min < 0 || b.Budget.Max < 0 {
		return fmt.Errorf("budget bounds must be non-negative")
	}
	if b.Budget.Max > 0 && b.Budget.Min > b.Budget.Max {
		return fmt.Errorf("budget min %d exceeds max %d", b.Budget.Min, b.Budget.Max)
	}
	if b.Timeline.Start != nil && b.Timeline.End != nil && b.Timeline.End.Before(*b.Timeline.Start) {
		return fmt.Errorf("timeline end precedes start")
	}
	return nil
}
