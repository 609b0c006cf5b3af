package model

// Pipeline event topics. Ordering is guaranteed per topic only; stages
// coordinate exclusively through these completion events.
const (
	TopicProjectCreated     = "project.created"
	TopicBidCardReady       = "bidcard.ready"
	TopicBidCardNeedsReview = "bidcard.needs_review"
	TopicContractorsRanked  = "contractors.ranked"
	TopicInvitationsSent    = "invitations.sent"
	TopicWorkflowFailed     = "workflow.failed"
	TopicWorkflowCancelled  = "workflow.cancelled"
)

// ProjectCreatedPayload is emitted by the intake stage and triggers bid
// card generation
type ProjectCreatedPayload struct {
	ProjectID   string   `json:"project_id"`
	OwnerID     string   `json:"owner_id"`
	Description string   `json:"description"`
	LocationZip string   `json:"location_zip"`
	ImageRefs   []string `json:"image_refs,omitempty"`
}

// BidCardReadyPayload signals a finalized bid card
type BidCardReadyPayload struct {
	ProjectID string `json:"project_id"`
	BidCardID string `json:"bid_card_id"`
	Category  string `json:"category"`
}

// BidCardNeedsReviewPayload routes low-confidence or failed analysis to a
// human review path instead of failing the workflow
type BidCardNeedsReviewPayload struct {
	ProjectID  string  `json:"project_id"`
	BidCardID  string  `json:"bid_card_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ContractorsRankedPayload carries the matching run's output to recruitment
type ContractorsRankedPayload struct {
	ProjectID  string        `json:"project_id"`
	BidCardID  string        `json:"bid_card_id"`
	Category   string        `json:"category"`
	Matches    []MatchResult `json:"matches"`
	Exclusions []Exclusion   `json:"exclusions,omitempty"`
}

// InvitationsSentPayload summarizes delivery outcomes for one project's
// batch set. Callers must not assume uniform success.
type InvitationsSentPayload struct {
	ProjectID    string `json:"project_id"`
	Sent         int    `json:"sent"`
	Failed       int    `json:"failed"`
	Acknowledged int    `json:"acknowledged"`
}

// WorkflowFailedPayload is the terminal event for a hard stage failure
type WorkflowFailedPayload struct {
	ProjectID string `json:"project_id"`
	Stage     string `json:"stage"`
	Reason    string `json:"reason"`
}

// WorkflowCancelledPayload is the terminal event for a cooperatively
// cancelled instance. Lifecycle status is written only in reaction to it,
// never directly by the caller that requested cancellation.
type WorkflowCancelledPayload struct {
	ProjectID string `json:"project_id"`
}
