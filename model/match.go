package model

// MatchResult is one ranked contractor from a matching run. Results are
// ephemeral: they live only as long as the workflow instance that produced
// them, but the same inputs always reproduce the same ranked order.
type MatchResult struct {
	BidCardID      string  `json:"bid_card_id"`
	ContractorID   string  `json:"contractor_id"`
	Score          float64 `json:"score"`
	Rank           int     `json:"rank"`
	Similarity     float64 `json:"similarity"`
	Responsiveness float64 `json:"responsiveness"`
}

// Exclusion records why a contractor was filtered out before scoring.
// Ineligible contractors never receive a score, so the reason stays
// traceable.
type Exclusion struct {
	ContractorID string `json:"contractor_id"`
	Reason       string `json:"reason"`
}

// Exclusion reason constants
const (
	ExcludedCategory    = "no_category_match"
	ExcludedOutOfArea   = "out_of_service_area"
	ExcludedUnavailable = "unavailable"
)
