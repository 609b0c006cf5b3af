package agent

import (
	"context"
	"fmt"

	"github.com/JustinAIDistuptors/instabids-agent-platform/bus"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
	"github.com/JustinAIDistuptors/instabids-agent-platform/pkg/logger"
	"github.com/JustinAIDistuptors/instabids-agent-platform/repo"
	"github.com/JustinAIDistuptors/instabids-agent-platform/state"
)

// Registration binds one named handler to one topic. The table below is the
// compile-time wiring map: no runtime discovery, no reflection.
type Registration struct {
	Topic   string
	Name    string
	Handler bus.Handler
}

// RegisterAll subscribes every registration, wrapping each handler with
// event-id de-duplication so repeated delivery of the same event produces
// the same observable side effect as a single delivery.
func RegisterAll(b *bus.Bus, registrations []Registration) {
	for _, reg := range registrations {
		dedup := bus.NewDedup(4096)
		handler := reg.Handler
		b.Subscribe(reg.Topic, reg.Name, func(ctx context.Context, evt bus.Event) error {
			if evt.ID != "" && dedup.Seen(evt.ID) {
				return nil
			}
			return handler(ctx, evt)
		})
	}
}

// Observers returns the standing subscriptions that project terminal
// pipeline events onto entity and user state for the API layer to poll
func Observers(projects repo.ProjectRepo, store state.Store) []Registration {
	return []Registration{
		{
			Topic: model.TopicWorkflowFailed,
			Name:  "project-failure-recorder",
			Handler: func(ctx context.Context, evt bus.Event) error {
				payload, ok := evt.Payload.(model.WorkflowFailedPayload)
				if !ok {
					return fmt.Errorf("unexpected payload %T", evt.Payload)
				}
				// The project stays active so the homeowner can retry;
				// the failure reason is recorded for polling
				return projects.UpdateStatus(ctx, payload.ProjectID, model.ProjectActive,
					fmt.Sprintf("%s stage failed: %s", payload.Stage, payload.Reason))
			},
		},
		{
			Topic: model.TopicWorkflowCancelled,
			Name:  "project-cancel-recorder",
			Handler: func(ctx context.Context, evt bus.Event) error {
				payload, ok := evt.Payload.(model.WorkflowCancelledPayload)
				if !ok {
					return fmt.Errorf("unexpected payload %T", evt.Payload)
				}
				return projects.UpdateStatus(ctx, payload.ProjectID, model.ProjectCancelled,
					"cancelled by owner")
			},
		},
		{
			Topic: model.TopicBidCardNeedsReview,
			Name:  "review-queue-recorder",
			Handler: func(ctx context.Context, evt bus.Event) error {
				payload, ok := evt.Payload.(model.BidCardNeedsReviewPayload)
				if !ok {
					return fmt.Errorf("unexpected payload %T", evt.Payload)
				}
				logger.Warn(ctx, "bid card queued for review",
					"project_id", payload.ProjectID,
					"bid_card_id", payload.BidCardID,
					"reason", payload.Reason,
				)
				return projects.UpdateStatus(ctx, payload.ProjectID, model.ProjectActive,
					"bid card needs review: "+payload.Reason)
			},
		},
		{
			Topic: model.TopicInvitationsSent,
			Name:  "invitation-summary-recorder",
			Handler: func(ctx context.Context, evt bus.Event) error {
				payload, ok := evt.Payload.(model.InvitationsSentPayload)
				if !ok {
					return fmt.Errorf("unexpected payload %T", evt.Payload)
				}
				project, err := projects.GetByID(ctx, payload.ProjectID)
				if err != nil {
					return fmt.Errorf("loading project %s: %w", payload.ProjectID, err)
				}
				// Durable per-homeowner record of the last outcome,
				// survives workflow cleanup
				return store.Set(ctx, state.ScopeUser, project.OwnerID,
					"last_invitations:"+payload.ProjectID, payload)
			},
		},
	}
}
