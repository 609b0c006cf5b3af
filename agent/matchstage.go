package agent

import (
	"context"
	"fmt"

	"github.com/JustinAIDistuptors/instabids-agent-platform/bus"
	"github.com/JustinAIDistuptors/instabids-agent-platform/matching"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
	"github.com/JustinAIDistuptors/instabids-agent-platform/pkg/logger"
	"github.com/JustinAIDistuptors/instabids-agent-platform/repo"
	"github.com/JustinAIDistuptors/instabids-agent-platform/state"
	"github.com/JustinAIDistuptors/instabids-agent-platform/workflow"
)

// rankedResultsKey is the ephemeral state key holding a matching run's
// output for the recruitment stage
const rankedResultsKey = "ranked_contractors"

// MatchingStage ranks the contractor pool against the finalized bid card
// and stashes the results in the instance's ephemeral state
type MatchingStage struct {
	engine      *matching.Engine
	projects    repo.ProjectRepo
	bidcards    repo.BidCardRepo
	contractors repo.ContractorRepo
	store       state.Store
}

func NewMatchingStage(engine *matching.Engine, projects repo.ProjectRepo, bidcards repo.BidCardRepo, contractors repo.ContractorRepo, store state.Store) *MatchingStage {
	return &MatchingStage{
		engine:      engine,
		projects:    projects,
		bidcards:    bidcards,
		contractors: contractors,
		store:       store,
	}
}

func (s *MatchingStage) Name() string            { return "matching" }
func (s *MatchingStage) CompletionTopic() string { return model.TopicContractorsRanked }

func (s *MatchingStage) Run(ctx context.Context, inst *workflow.Instance, trigger bus.Event) (workflow.Emission, error) {
	payload, ok := trigger.Payload.(model.BidCardReadyPayload)
	if !ok {
		return workflow.Emission{}, fmt.Errorf("matching: unexpected payload %T", trigger.Payload)
	}

	card, err := s.bidcards.GetByID(ctx, payload.BidCardID)
	if err != nil {
		return workflow.Emission{}, fmt.Errorf("matching: loading bid card: %w", err)
	}
	project, err := s.projects.GetByID(ctx, payload.ProjectID)
	if err != nil {
		return workflow.Emission{}, fmt.Errorf("matching: loading project: %w", err)
	}

	// The pool is read-only here; no stage mutates contractor profiles
	pool, err := s.contractors.ListAll(ctx)
	if err != nil {
		return workflow.Emission{}, fmt.Errorf("matching: loading contractor pool: %w", err)
	}

	result := s.engine.Rank(card, pool, project.LocationZip)

	// An empty eligible set is not an error; recruitment reports it
	logger.Info(ctx, "contractor pool ranked",
		"bid_card_id", card.ID,
		"eligible", len(result.Matches),
		"excluded", len(result.Exclusions),
	)

	if err := s.store.Set(ctx, state.ScopeEphemeral, inst.ID, rankedResultsKey, result.Matches); err != nil {
		return workflow.Emission{}, fmt.Errorf("matching: stashing results: %w", err)
	}

	return workflow.Emission{
		Topic: model.TopicContractorsRanked,
		Payload: model.ContractorsRankedPayload{
			ProjectID:  payload.ProjectID,
			BidCardID:  card.ID,
			Category:   card.Category,
			Matches:    result.Matches,
			Exclusions: result.Exclusions,
		},
	}, nil
}
