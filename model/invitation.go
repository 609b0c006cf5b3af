package model

import (
	"time"
)

// Invitation tracks one outbound bid invitation to a contractor.
// Terminal delivery statuses are sent, acknowledged and failed; failed is
// only set after the retry bound is exhausted.
type Invitation struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	ContractorID string    `json:"contractor_id"`
	Channel      string    `json:"channel"`
	Status       string    `json:"status"` // queued, sent, failed, acknowledged
	Attempts     int       `json:"attempts"`
	LastError    string    `json:"last_error,omitempty"`
	SentAt       time.Time `json:"sent_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Invitation delivery status constants
const (
	InvitationQueued       = "queued"
	InvitationSent         = "sent"
	InvitationFailed       = "failed"
	InvitationAcknowledged = "acknowledged"
)

// Terminal reports whether the invitation has reached a terminal delivery
// status
func (i *Invitation) Terminal() bool {
	switch i.Status {
	case InvitationSent, InvitationFailed, InvitationAcknowledged:
		return true
	}
	return false
}
