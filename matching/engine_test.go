package matching

import (
	"reflect"
	"testing"

	"github.com/JustinAIDistuptors/instabids-agent-platform/config"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
)

func newTestEngine(topK int) *Engine {
	return NewEngine(&config.MatchingConfig{
		SimilarityWeight:     0.7,
		ResponsivenessWeight: 0.3,
		TopK:                 topK,
	})
}

func roofingCard() *model.BidCard {
	return &model.BidCard{
		ID:        "bid-1",
		ProjectID: "p1",
		Category:  "roofing",
		JobType:   "roofing repair",
		Status:    model.BidCardFinal,
	}
}

func testPool() []*model.ContractorProfile {
	return []*model.ContractorProfile{
		{ID: "c1", Categories: []string{"roofing"}, ServiceZips: []string{"78701"}, Responsiveness: 0.9, Available: true},
		{ID: "c2", Categories: []string{"roofing", "repair"}, ServiceZips: []string{"78701"}, Responsiveness: 0.5, Available: true},
		{ID: "c3", Categories: []string{"roofing"}, ServiceZips: []string{"78701"}, Responsiveness: 0.2, Available: true},
		{ID: "c4", Categories: []string{"roofing"}, ServiceZips: []string{"78701"}, Responsiveness: 0.8, Available: true},
		{ID: "c5", Categories: []string{"roofing"}, ServiceZips: []string{"78701"}, Responsiveness: 0.4, Available: true},
		// out of area
		{ID: "c6", Categories: []string{"roofing"}, ServiceZips: []string{"10001"}, Responsiveness: 1.0, Available: true},
		// wrong trade
		{ID: "c7", Categories: []string{"plumbing"}, ServiceZips: []string{"78701"}, Responsiveness: 1.0, Available: true},
	}
}

func TestRankExclusions(t *testing.T) {
	engine := newTestEngine(10)
	result := engine.Rank(roofingCard(), testPool(), "78701")

	if len(result.Matches) != 5 {
		t.Fatalf("Expected 5 eligible contractors, got %d", len(result.Matches))
	}
	if len(result.Exclusions) != 2 {
		t.Fatalf("Expected 2 exclusions, got %d", len(result.Exclusions))
	}

	reasons := make(map[string]string)
	for _, ex := range result.Exclusions {
		reasons[ex.ContractorID] = ex.Reason
	}
	if reasons["c6"] != model.ExcludedOutOfArea {
		t.Errorf("Expected c6 out of area, got %s", reasons["c6"])
	}
	if reasons["c7"] != model.ExcludedCategory {
		t.Errorf("Expected c7 category mismatch, got %s", reasons["c7"])
	}

	// Excluded contractors never appear in the ranked list
	for _, m := range result.Matches {
		if m.ContractorID == "c6" || m.ContractorID == "c7" {
			t.Errorf("Excluded contractor %s appeared in matches", m.ContractorID)
		}
	}
}

func TestRankAvailabilityGate(t *testing.T) {
	engine := newTestEngine(10)
	pool := []*model.ContractorProfile{
		// Perfect similarity and responsiveness, but unavailable
		{ID: "c1", Categories: []string{"roofing", "repair"}, Responsiveness: 1.0, Available: false},
		{ID: "c2", Categories: []string{"roofing"}, Responsiveness: 0.1, Available: true},
	}

	result := engine.Rank(roofingCard(), pool, "78701")

	if len(result.Matches) != 1 || result.Matches[0].ContractorID != "c2" {
		t.Fatalf("Expected only c2 to match, got %+v", result.Matches)
	}
	if len(result.Exclusions) != 1 || result.Exclusions[0].Reason != model.ExcludedUnavailable {
		t.Fatalf("Expected c1 excluded as unavailable, got %+v", result.Exclusions)
	}
}

func TestRankTopKCutoff(t *testing.T) {
	engine := newTestEngine(3)
	result := engine.Rank(roofingCard(), testPool(), "78701")

	if len(result.Matches) != 3 {
		t.Fatalf("Expected top-3 cutoff, got %d", len(result.Matches))
	}
	for i, m := range result.Matches {
		if m.Rank != i+1 {
			t.Errorf("Expected rank %d at position %d, got %d", i+1, i, m.Rank)
		}
	}

	// Fewer eligible than K returns all of them, never padded
	engine = newTestEngine(50)
	result = engine.Rank(roofingCard(), testPool(), "78701")
	if len(result.Matches) != 5 {
		t.Errorf("Expected min(K, eligible) = 5, got %d", len(result.Matches))
	}
}

func TestRankDeterminism(t *testing.T) {
	engine := newTestEngine(5)
	card := roofingCard()
	pool := testPool()

	first := engine.Rank(card, pool, "78701")
	for i := 0; i < 10; i++ {
		again := engine.Rank(card, pool, "78701")
		if !reflect.DeepEqual(first.Matches, again.Matches) {
			t.Fatalf("Ranking differed on run %d:\n%+v\nvs\n%+v", i, first.Matches, again.Matches)
		}
	}
}

func TestRankTieBreak(t *testing.T) {
	engine := newTestEngine(10)
	card := roofingCard()

	// Identical categories and responsiveness: equal composite scores,
	// order falls back to contractor id ascending
	pool := []*model.ContractorProfile{
		{ID: "cb", Categories: []string{"roofing"}, Responsiveness: 0.5, Available: true},
		{ID: "ca", Categories: []string{"roofing"}, Responsiveness: 0.5, Available: true},
	}
	result := engine.Rank(card, pool, "78701")
	if result.Matches[0].ContractorID != "ca" || result.Matches[1].ContractorID != "cb" {
		t.Errorf("Expected id-ascending tie break, got %s then %s",
			result.Matches[0].ContractorID, result.Matches[1].ContractorID)
	}

	// Equal similarity, different responsiveness: higher responsiveness wins
	pool = []*model.ContractorProfile{
		{ID: "low", Categories: []string{"roofing"}, Responsiveness: 0.2, Available: true},
		{ID: "high", Categories: []string{"roofing"}, Responsiveness: 0.9, Available: true},
	}
	result = engine.Rank(card, pool, "78701")
	if result.Matches[0].ContractorID != "high" {
		t.Errorf("Expected high responsiveness first, got %s", result.Matches[0].ContractorID)
	}
}

func TestRankEmptyEligibleSet(t *testing.T) {
	engine := newTestEngine(5)
	pool := []*model.ContractorProfile{
		{ID: "c1", Categories: []string{"plumbing"}, Available: true},
	}

	result := engine.Rank(roofingCard(), pool, "78701")
	if len(result.Matches) != 0 {
		t.Errorf("Expected empty ranked list, got %d", len(result.Matches))
	}
	if len(result.Exclusions) != 1 {
		t.Errorf("Expected 1 exclusion, got %d", len(result.Exclusions))
	}
}

func TestRankEmptyServiceAreaServesEverywhere(t *testing.T) {
	engine := newTestEngine(5)
	pool := []*model.ContractorProfile{
		{ID: "c1", Categories: []string{"roofing"}, Responsiveness: 0.5, Available: true},
	}

	result := engine.Rank(roofingCard(), pool, "99999")
	if len(result.Matches) != 1 {
		t.Errorf("Expected contractor with empty service area to match any zip")
	}
}

func TestSimilarityBounds(t *testing.T) {
	card := roofingCard()
	c := &model.ContractorProfile{Categories: []string{"roofing", "repair"}}

	sim := similarity(card, c)
	if sim <= 0 || sim > 1 {
		t.Errorf("Expected similarity in (0,1], got %v", sim)
	}

	// Full token overlap scores 1
	exact := &model.ContractorProfile{Categories: []string{"roofing repair"}}
	if s := similarity(card, exact); s != 1 {
		t.Errorf("Expected similarity 1 for identical token sets, got %v", s)
	}
}
