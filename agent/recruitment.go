package agent

import (
	"context"
	"fmt"

	"github.com/JustinAIDistuptors/instabids-agent-platform/bus"
	"github.com/JustinAIDistuptors/instabids-agent-platform/dispatch"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
	"github.com/JustinAIDistuptors/instabids-agent-platform/pkg/logger"
	"github.com/JustinAIDistuptors/instabids-agent-platform/repo"
	"github.com/JustinAIDistuptors/instabids-agent-platform/service"
	"github.com/JustinAIDistuptors/instabids-agent-platform/state"
	"github.com/JustinAIDistuptors/instabids-agent-platform/workflow"
)

// RecruitmentStage turns the ranked match list into batched invitations.
// Invitations are created only for contractors present in the match set.
type RecruitmentStage struct {
	dispatcher *dispatch.Dispatcher
	projects   repo.ProjectRepo
	store      state.Store
}

func NewRecruitmentStage(dispatcher *dispatch.Dispatcher, projects repo.ProjectRepo, store state.Store) *RecruitmentStage {
	return &RecruitmentStage{
		dispatcher: dispatcher,
		projects:   projects,
		store:      store,
	}
}

func (s *RecruitmentStage) Name() string            { return "recruitment" }
func (s *RecruitmentStage) CompletionTopic() string { return model.TopicInvitationsSent }

func (s *RecruitmentStage) Run(ctx context.Context, inst *workflow.Instance, trigger bus.Event) (workflow.Emission, error) {
	payload, ok := trigger.Payload.(model.ContractorsRankedPayload)
	if !ok {
		return workflow.Emission{}, fmt.Errorf("recruitment: unexpected payload %T", trigger.Payload)
	}

	matches := s.loadMatches(ctx, inst, payload)
	if len(matches) == 0 {
		// No eligible contractors: report it rather than failing; the
		// homeowner can widen the search
		logger.Warn(ctx, "no eligible contractors for project", "project_id", payload.ProjectID)
		if err := s.projects.UpdateStatus(ctx, payload.ProjectID, model.ProjectCompleted, "no matching contractors"); err != nil {
			return workflow.Emission{}, fmt.Errorf("recruitment: updating project: %w", err)
		}
		return workflow.Emission{
			Topic:   model.TopicInvitationsSent,
			Payload: model.InvitationsSentPayload{ProjectID: payload.ProjectID},
		}, nil
	}

	contractorIDs := make([]string, len(matches))
	for i, m := range matches {
		contractorIDs[i] = m.ContractorID
	}

	summary, err := s.dispatcher.Dispatch(ctx, payload.ProjectID, service.InvitationPayload{
		ProjectID: payload.ProjectID,
		BidCardID: payload.BidCardID,
		Category:  payload.Category,
		Message:   "You have been matched to a new project. Review the bid card and respond to bid.",
	}, contractorIDs)
	if err != nil {
		return workflow.Emission{}, fmt.Errorf("recruitment: dispatching invitations: %w", err)
	}

	if err := s.projects.UpdateStatus(ctx, payload.ProjectID, model.ProjectCompleted, ""); err != nil {
		return workflow.Emission{}, fmt.Errorf("recruitment: updating project: %w", err)
	}

	logger.Info(ctx, "invitations dispatched",
		"project_id", payload.ProjectID,
		"sent", summary.Sent,
		"acknowledged", summary.Acknowledged,
		"failed", summary.Failed,
	)

	return workflow.Emission{
		Topic: model.TopicInvitationsSent,
		Payload: model.InvitationsSentPayload{
			ProjectID:    payload.ProjectID,
			Sent:         summary.Sent,
			Failed:       summary.Failed,
			Acknowledged: summary.Acknowledged,
		},
	}, nil
}

// loadMatches prefers the ranked list stashed in ephemeral state by the
// matching stage and falls back to the event payload on redelivery after
// cleanup
func (s *RecruitmentStage) loadMatches(ctx context.Context, inst *workflow.Instance, payload model.ContractorsRankedPayload) []model.MatchResult {
	value, ok, err := s.store.Get(ctx, state.ScopeEphemeral, inst.ID, rankedResultsKey)
	if err == nil && ok {
		if matches, ok := value.([]model.MatchResult); ok {
			return matches
		}
	}
	if err != nil {
		logger.Warn(ctx, "failed to read ranked results from state, using event payload", "error", err)
	}
	return payload.Matches
}
