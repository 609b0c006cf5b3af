// Package workflow assembles stage agents into sequential and parallel
// pipelines. Stages coordinate only through completion events; a workflow
// instance id threads through every event and ephemeral-state write.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JustinAIDistuptors/instabids-agent-platform/bus"
	"github.com/JustinAIDistuptors/instabids-agent-platform/config"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
	"github.com/JustinAIDistuptors/instabids-agent-platform/pkg/logger"
	"github.com/JustinAIDistuptors/instabids-agent-platform/state"
)

// Emission is the event a stage produces when it finishes
type Emission struct {
	Topic   string
	Payload any
}

// Stage is one unit of the pipeline. Run consumes the triggering event and
// returns the event to publish. Returning an emission on a topic other than
// CompletionTopic halts a sequential pipeline without failing it (the
// needs-review path). A returned error is a hard stage failure.
type Stage interface {
	Name() string
	CompletionTopic() string
	Run(ctx context.Context, inst *Instance, trigger bus.Event) (Emission, error)
}

// Composer owns pipeline wiring and the live instance table. Components are
// injected at construction; there are no shared singletons.
type Composer struct {
	bus   *bus.Bus
	store state.Store
	cfg   *config.WorkflowConfig

	mu        sync.RWMutex
	instances map[string]*Instance
}

func NewComposer(b *bus.Bus, store state.Store, cfg *config.WorkflowConfig) *Composer {
	return &Composer{
		bus:       b,
		store:     store,
		cfg:       cfg,
		instances: make(map[string]*Instance),
	}
}

// Instance looks up a live or finished workflow instance by id
func (c *Composer) Instance(id string) *Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instances[id]
}

// InstanceForProject returns the most recent instance for a project
func (c *Composer) InstanceForProject(projectID string) *Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var latest *Instance
	for _, inst := range c.instances {
		if inst.ProjectID != projectID {
			continue
		}
		if latest == nil || inst.StartedAt.After(latest.StartedAt) {
			latest = inst
		}
	}
	return latest
}

// Cancel requests cancellation of an instance; it reports whether a
// still-running instance accepted the request
func (c *Composer) Cancel(id string) bool {
	inst := c.Instance(id)
	if inst == nil || inst.Status() != StatusRunning {
		return false
	}
	inst.Cancel()
	return true
}

// RunSequential starts a workflow instance running the stages in strict
// order. Each stage begins only after the prior stage's completion event
// has been published for this instance. The call returns immediately;
// different projects' instances run fully concurrently.
func (c *Composer) RunSequential(projectID string, trigger bus.Event, stages ...Stage) *Instance {
	inst := newInstance(uuid.New().String(), projectID)
	trigger.WorkflowID = inst.ID

	c.mu.Lock()
	c.instances[inst.ID] = inst
	c.mu.Unlock()

	go c.runSequence(inst, trigger, stages)
	return inst
}

func (c *Composer) runSequence(inst *Instance, trigger bus.Event, stages []Stage) {
	ctx := context.WithValue(inst.Context(), logger.WorkflowIDKey, inst.ID)
	ctx = context.WithValue(ctx, logger.ProjectIDKey, inst.ProjectID)

	evt := trigger
	for _, stage := range stages {
		// Cooperative cancellation: checked between stages, never
		// mid-unit
		if inst.Cancelled() {
			c.terminate(inst, StatusCancelled)
			return
		}

		logger.Info(ctx, "stage starting", "stage", stage.Name(), "trigger_topic", evt.Topic)

		emission, err := stage.Run(ctx, inst, evt)
		if err != nil {
			if inst.Cancelled() {
				inst.recordStage(StageResult{Stage: stage.Name(), State: StageFailed, Error: err.Error()})
				c.terminate(inst, StatusCancelled)
				return
			}
			c.failSequence(ctx, inst, stage.Name(), err)
			return
		}

		inst.recordStage(StageResult{Stage: stage.Name(), State: StageCompleted})

		if emission.Topic == "" {
			continue
		}

		published := bus.Event{
			ID:         uuid.New().String(),
			Topic:      emission.Topic,
			WorkflowID: inst.ID,
			OccurredAt: time.Now(),
			Payload:    emission.Payload,
		}
		if err := c.bus.Publish(emission.Topic, published); err != nil {
			c.failSequence(ctx, inst, stage.Name(), fmt.Errorf("publishing %s: %w", emission.Topic, err))
			return
		}

		// A stage emitting off its declared completion topic routes the
		// workflow off the happy path; the sequence stops without failing
		if emission.Topic != stage.CompletionTopic() {
			logger.Info(ctx, "sequence halted", "stage", stage.Name(), "emitted_topic", emission.Topic)
			c.terminate(inst, StatusHalted)
			return
		}

		evt = published
	}

	c.terminate(inst, StatusCompleted)
}

// failSequence halts the remaining stages, records the terminal failure
// event and releases ephemeral state
func (c *Composer) failSequence(ctx context.Context, inst *Instance, stageName string, err error) {
	logger.Error(ctx, "stage failed, halting sequence", "stage", stageName, "error", err)
	inst.recordStage(StageResult{Stage: stageName, State: StageFailed, Error: err.Error()})

	publishErr := c.bus.Publish(model.TopicWorkflowFailed, bus.Event{
		WorkflowID: inst.ID,
		Payload: model.WorkflowFailedPayload{
			ProjectID: inst.ProjectID,
			Stage:     stageName,
			Reason:    err.Error(),
		},
	})
	if publishErr != nil {
		logger.Error(ctx, "failed to publish workflow failure", "error", publishErr)
	}

	c.terminate(inst, StatusFailed)
}

// terminate finalizes the instance and garbage-collects its ephemeral state.
// A cancelled termination also announces itself on the bus; lifecycle status
// writes happen only in reaction to terminal events, so the pipeline stays
// the single writer of project status.
func (c *Composer) terminate(inst *Instance, status Status) {
	inst.finish(status)

	if status == StatusCancelled {
		err := c.bus.Publish(model.TopicWorkflowCancelled, bus.Event{
			WorkflowID: inst.ID,
			Payload:    model.WorkflowCancelledPayload{ProjectID: inst.ProjectID},
		})
		if err != nil {
			logger.Error(context.Background(), "failed to publish workflow cancellation",
				"workflow_id", inst.ID, "error", err)
		}
	}

	// Ephemeral cleanup uses a fresh context: it must run even when the
	// instance context is already cancelled
	if err := c.store.ClearEphemeral(context.Background(), inst.ID); err != nil {
		logger.Error(context.Background(), "failed to clear ephemeral state",
			"workflow_id", inst.ID, "error", err)
	}
}

// ParallelGroup bundles stages into one composite stage. All members start
// concurrently on the same triggering event; the group completes when every
// member reaches a terminal state or the join timeout elapses. Members still
// pending at the timeout are recorded as timed_out and the group proceeds
// with whatever completed; partial success is reported, never hidden.
func (c *Composer) ParallelGroup(name, completionTopic string, stages ...Stage) Stage {
	return &parallelGroup{
		name:            name,
		completionTopic: completionTopic,
		stages:          stages,
		composer:        c,
		joinTimeout:     c.cfg.JoinTimeout(),
	}
}

type parallelGroup struct {
	name            string
	completionTopic string
	stages          []Stage
	composer        *Composer
	joinTimeout     time.Duration
}

// JoinReport summarizes a parallel group's outcome
type JoinReport struct {
	Completed []string `json:"completed"`
	Failed    []string `json:"failed"`
	TimedOut  []string `json:"timed_out"`
}

func (g *parallelGroup) Name() string            { return g.name }
func (g *parallelGroup) CompletionTopic() string { return g.completionTopic }

func (g *parallelGroup) Run(ctx context.Context, inst *Instance, trigger bus.Event) (Emission, error) {
	type outcome struct {
		stage    string
		emission Emission
		err      error
	}

	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, len(g.stages))
	for _, stage := range g.stages {
		go func(stage Stage) {
			emission, err := stage.Run(groupCtx, inst, trigger)
			results <- outcome{stage: stage.Name(), emission: emission, err: err}
		}(stage)
	}

	report := JoinReport{}
	terminal := make(map[string]bool, len(g.stages))
	timer := time.NewTimer(g.joinTimeout)
	defer timer.Stop()

	for len(terminal) < len(g.stages) {
		select {
		case out := <-results:
			terminal[out.stage] = true
			if out.err != nil {
				report.Failed = append(report.Failed, out.stage)
				inst.recordStage(StageResult{Stage: out.stage, State: StageFailed, Error: out.err.Error()})
				continue
			}
			report.Completed = append(report.Completed, out.stage)
			inst.recordStage(StageResult{Stage: out.stage, State: StageCompleted})

			if out.emission.Topic != "" {
				err := g.composer.bus.Publish(out.emission.Topic, bus.Event{
					WorkflowID: inst.ID,
					Payload:    out.emission.Payload,
				})
				if err != nil {
					logger.Error(ctx, "failed to publish member emission",
						"group", g.name, "stage", out.stage, "error", err)
				}
			}
		case <-timer.C:
			// Join timeout: record pending members and proceed with
			// what completed
			cancel()
			for _, stage := range g.stages {
				if !terminal[stage.Name()] {
					report.TimedOut = append(report.TimedOut, stage.Name())
					inst.recordStage(StageResult{Stage: stage.Name(), State: StageTimedOut})
				}
			}
			return Emission{Topic: g.completionTopic, Payload: report}, nil
		}
	}

	return Emission{Topic: g.completionTopic, Payload: report}, nil
}
