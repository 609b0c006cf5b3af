// Package matching ranks the contractor pool against a finalized bid card.
// Ranking is deterministic: the same bid card and pool always produce the
// same ordered results.
package matching

import (
	"sort"
	"strings"

	"github.com/JustinAIDistuptors/instabids-agent-platform/config"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
)

// Engine applies the eligibility filter, scores eligible contractors with
// the configured weighted sum and returns the top-K ranked results
type Engine struct {
	config *config.MatchingConfig
}

// Result is one matching run's output: ranked matches plus the traceable
// reason for every excluded contractor
type Result struct {
	Matches    []model.MatchResult
	Exclusions []model.Exclusion
}

func NewEngine(cfg *config.MatchingConfig) *Engine {
	return &Engine{config: cfg}
}

// Rank filters and scores the pool against the bid card. locationZip is the
// project's location. An empty eligible set returns an empty ranked list,
// not an error; the caller decides whether to widen the search.
func (e *Engine) Rank(card *model.BidCard, pool []*model.ContractorProfile, locationZip string) Result {
	var result Result

	type scored struct {
		contractor *model.ContractorProfile
		similarity float64
		score      float64
	}
	var eligible []scored

	for _, c := range pool {
		// Hard exclusions before scoring so the reason stays traceable.
		// Availability is a binary gate, never a score factor.
		switch {
		case !c.HasCategory(card.Category):
			result.Exclusions = append(result.Exclusions, model.Exclusion{
				ContractorID: c.ID, Reason: model.ExcludedCategory,
			})
			continue
		case !c.ServesZip(locationZip):
			result.Exclusions = append(result.Exclusions, model.Exclusion{
				ContractorID: c.ID, Reason: model.ExcludedOutOfArea,
			})
			continue
		case !c.Available:
			result.Exclusions = append(result.Exclusions, model.Exclusion{
				ContractorID: c.ID, Reason: model.ExcludedUnavailable,
			})
			continue
		}

		sim := similarity(card, c)
		score := sim*e.config.SimilarityWeight + c.Responsiveness*e.config.ResponsivenessWeight
		eligible = append(eligible, scored{contractor: c, similarity: sim, score: score})
	}

	// Composite score descending, ties broken by responsiveness descending
	// then contractor id ascending for a deterministic total order
	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.contractor.Responsiveness != b.contractor.Responsiveness {
			return a.contractor.Responsiveness > b.contractor.Responsiveness
		}
		return a.contractor.ID < b.contractor.ID
	})

	k := e.config.TopK
	if k > len(eligible) {
		k = len(eligible)
	}
	for i := 0; i < k; i++ {
		s := eligible[i]
		result.Matches = append(result.Matches, model.MatchResult{
			BidCardID:      card.ID,
			ContractorID:   s.contractor.ID,
			Score:          s.score,
			Rank:           i + 1,
			Similarity:     s.similarity,
			Responsiveness: s.contractor.Responsiveness,
		})
	}
	return result
}

// similarity measures category/job-type text overlap in [0,1] as the
// Jaccard index of lowercased token sets
func similarity(card *model.BidCard, c *model.ContractorProfile) float64 {
	want := tokenSet(append([]string{card.Category}, strings.Fields(card.JobType)...))
	have := tokenSet(c.Categories)
	if len(want) == 0 || len(have) == 0 {
		return 0
	}

	intersection := 0
	for tok := range want {
		if _, ok := have[tok]; ok {
			intersection++
		}
	}
	union := len(want) + len(have) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		for _, tok := range strings.Fields(strings.ToLower(w)) {
			if tok != "" {
				set[tok] = struct{}{}
			}
		}
	}
	return set
}
