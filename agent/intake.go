// Package agent implements the pipeline's stage agents and the explicit
// topic-to-handler registration table that wires them to the event bus.
package agent

import (
	"context"
	"fmt"

	"github.com/JustinAIDistuptors/instabids-agent-platform/bus"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
	"github.com/JustinAIDistuptors/instabids-agent-platform/pkg/logger"
	"github.com/JustinAIDistuptors/instabids-agent-platform/repo"
	"github.com/JustinAIDistuptors/instabids-agent-platform/workflow"
)

// IntakeStage validates the incoming trigger and activates the project.
// From here on the pipeline is the single writer of project lifecycle state.
type IntakeStage struct {
	projects repo.ProjectRepo
}

func NewIntakeStage(projects repo.ProjectRepo) *IntakeStage {
	return &IntakeStage{projects: projects}
}

func (s *IntakeStage) Name() string            { return "intake" }
func (s *IntakeStage) CompletionTopic() string { return model.TopicProjectCreated }

func (s *IntakeStage) Run(ctx context.Context, _ *workflow.Instance, trigger bus.Event) (workflow.Emission, error) {
	payload, ok := trigger.Payload.(model.ProjectCreatedPayload)
	if !ok {
		return workflow.Emission{}, fmt.Errorf("intake: unexpected payload %T", trigger.Payload)
	}

	if payload.ProjectID == "" || payload.OwnerID == "" {
		return workflow.Emission{}, fmt.Errorf("intake: trigger missing project or owner id")
	}
	if payload.Description == "" {
		return workflow.Emission{}, fmt.Errorf("intake: project description is empty")
	}

	if _, err := s.projects.GetByID(ctx, payload.ProjectID); err != nil {
		return workflow.Emission{}, fmt.Errorf("intake: loading project: %w", err)
	}

	if err := s.projects.UpdateStatus(ctx, payload.ProjectID, model.ProjectActive, ""); err != nil {
		return workflow.Emission{}, fmt.Errorf("intake: activating project: %w", err)
	}

	logger.Info(ctx, "project accepted for bidding",
		"project_id", payload.ProjectID,
		"image_count", len(payload.ImageRefs),
	)

	return workflow.Emission{Topic: model.TopicProjectCreated, Payload: payload}, nil
}
