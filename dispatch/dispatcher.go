// Package dispatch batches and rate-limits outbound contractor invitations.
// Sends are tracked per invitation, retried with bounded exponential
// backoff, and summarized once every invitation reaches a terminal status.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/JustinAIDistuptors/instabids-agent-platform/config"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
	"github.com/JustinAIDistuptors/instabids-agent-platform/repo"
	"github.com/JustinAIDistuptors/instabids-agent-platform/service"
)

// Deliverer is the external send capability. The dispatcher owns batching
// and retries; the deliverer only sends.
type Deliverer interface {
	Send(ctx context.Context, contractorID string, payload service.InvitationPayload) (string, error)
}

// Summary counts terminal delivery outcomes for one dispatch run
type Summary struct {
	Sent         int
	Failed       int
	Acknowledged int
}

// Dispatcher delivers one project's invitations in fixed-size batches with
// an inter-batch pause to respect downstream rate limits
type Dispatcher struct {
	deliverer   Deliverer
	invitations repo.InvitationRepo
	config      *config.DispatchConfig
	channel     string
}

func NewDispatcher(deliverer Deliverer, invitations repo.InvitationRepo, cfg *config.DispatchConfig, channel string) *Dispatcher {
	return &Dispatcher{
		deliverer:   deliverer,
		invitations: invitations,
		config:      cfg,
		channel:     channel,
	}
}

// Dispatch sends the payload to every contractor in ranked order and
// returns once all created invitations are terminal. A failed send never
// blocks the rest of its batch. Cancellation is cooperative: the current
// batch finishes, remaining contractors are not started.
func (d *Dispatcher) Dispatch(ctx context.Context, projectID string, payload service.InvitationPayload, contractorIDs []string) (Summary, error) {
	var summary Summary
	var mu sync.Mutex

	for start := 0; start < len(contractorIDs); start += d.config.BatchSize {
		// Cancellation check between units of work
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if start > 0 {
			select {
			case <-time.After(d.config.BatchPause()):
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}

		end := start + d.config.BatchSize
		if end > len(contractorIDs) {
			end = len(contractorIDs)
		}
		batch := contractorIDs[start:end]

		var wg sync.WaitGroup
		for _, contractorID := range batch {
			wg.Add(1)
			go func(contractorID string) {
				defer wg.Done()

				status := d.sendOne(ctx, projectID, contractorID, payload)

				mu.Lock()
				switch status {
				case model.InvitationSent:
					summary.Sent++
				case model.InvitationAcknowledged:
					summary.Acknowledged++
				case model.InvitationFailed:
					summary.Failed++
				}
				mu.Unlock()
			}(contractorID)
		}
		wg.Wait()

		slog.Info("invitation batch dispatched",
			"project_id", projectID,
			"batch_start", start,
			"batch_size", len(batch),
		)
	}

	return summary, nil
}

// sendOne creates the invitation record, drives it to a terminal status and
// returns that status
func (d *Dispatcher) sendOne(ctx context.Context, projectID, contractorID string, payload service.InvitationPayload) string {
	inv := &model.Invitation{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		ContractorID: contractorID,
		Channel:      d.channel,
		Status:       model.InvitationQueued,
	}
	if err := d.invitations.Create(ctx, inv); err != nil {
		slog.Error("failed to create invitation",
			"project_id", projectID,
			"contractor_id", contractorID,
			"error", err,
		)
		return model.InvitationFailed
	}

	attempts := 0
	var status string

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.config.InitialInterval()
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.config.MaxAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		attempts++
		result, err := d.deliverer.Send(ctx, contractorID, payload)
		if err != nil {
			slog.Warn("invitation send failed",
				"project_id", projectID,
				"contractor_id", contractorID,
				"attempt", attempts,
				"error", err,
			)
			return err
		}
		status = result
		return nil
	}, policy)

	if err != nil {
		if updateErr := d.invitations.UpdateDelivery(ctx, inv.ID, model.InvitationFailed, attempts, err.Error()); updateErr != nil {
			slog.Error("failed to record invitation failure", "invitation_id", inv.ID, "error", updateErr)
		}
		return model.InvitationFailed
	}

	if updateErr := d.invitations.UpdateDelivery(ctx, inv.ID, status, attempts, ""); updateErr != nil {
		slog.Error("failed to record invitation delivery", "invitation_id", inv.ID, "error", updateErr)
	}
	return status
}
