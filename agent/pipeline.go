package agent

import (
	"github.com/JustinAIDistuptors/instabids-agent-platform/bus"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
	"github.com/JustinAIDistuptors/instabids-agent-platform/workflow"
)

// triggerTopic is the internal topic carrying the raw intake trigger from
// the API layer into the pipeline
const triggerTopic = "project.intake"

// Pipeline is the sequential bidding pipeline for one platform deployment:
// intake, bid card generation, matching, recruitment. Instances for
// different projects run fully concurrently.
type Pipeline struct {
	composer *workflow.Composer
	stages   []workflow.Stage
}

func NewPipeline(composer *workflow.Composer, intake *IntakeStage, bidcard *BidCardStage, matching *MatchingStage, recruitment *RecruitmentStage) *Pipeline {
	return &Pipeline{
		composer: composer,
		stages:   []workflow.Stage{intake, bidcard, matching, recruitment},
	}
}

// Start launches a workflow instance for the project and returns
// immediately; the API layer polls the instance (or the terminal events)
// for progress
func (p *Pipeline) Start(trigger model.ProjectCreatedPayload) *workflow.Instance {
	return p.composer.RunSequential(trigger.ProjectID, bus.Event{
		Topic:   triggerTopic,
		Payload: trigger,
	}, p.stages...)
}
