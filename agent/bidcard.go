package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/JustinAIDistuptors/instabids-agent-platform/bus"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
	"github.com/JustinAIDistuptors/instabids-agent-platform/pkg/logger"
	"github.com/JustinAIDistuptors/instabids-agent-platform/repo"
	"github.com/JustinAIDistuptors/instabids-agent-platform/service"
	"github.com/JustinAIDistuptors/instabids-agent-platform/workflow"
)

// Analyzer is the external categorization capability: raw text and images
// in, category, confidence and structured scope out
type Analyzer interface {
	Analyze(ctx context.Context, input service.AnalysisInput) (*service.AnalysisResult, error)
}

// BidCardStage turns a project description into a structured bid card. An
// analysis failure or low confidence routes the card to human review rather
// than failing the workflow.
type BidCardStage struct {
	analyzer      Analyzer
	bidcards      repo.BidCardRepo
	minConfidence float64
	maxAttempts   int
	retryInterval time.Duration
}

func NewBidCardStage(analyzer Analyzer, bidcards repo.BidCardRepo, minConfidence float64) *BidCardStage {
	return &BidCardStage{
		analyzer:      analyzer,
		bidcards:      bidcards,
		minConfidence: minConfidence,
		maxAttempts:   3,
		retryInterval: 500 * time.Millisecond,
	}
}

func (s *BidCardStage) Name() string            { return "bidcard" }
func (s *BidCardStage) CompletionTopic() string { return model.TopicBidCardReady }

func (s *BidCardStage) Run(ctx context.Context, _ *workflow.Instance, trigger bus.Event) (workflow.Emission, error) {
	payload, ok := trigger.Payload.(model.ProjectCreatedPayload)
	if !ok {
		return workflow.Emission{}, fmt.Errorf("bidcard: unexpected payload %T", trigger.Payload)
	}

	result, err := s.analyze(ctx, service.AnalysisInput{
		ProjectID:   payload.ProjectID,
		Description: payload.Description,
		ImageRefs:   payload.ImageRefs,
	})

	var analysisErr *service.AnalysisError
	if errors.As(err, &analysisErr) {
		// Analysis errors never fail the workflow; a human picks it up
		logger.Warn(ctx, "analysis failed, routing to review",
			"project_id", payload.ProjectID,
			"error", analysisErr,
		)
		return workflow.Emission{
			Topic: model.TopicBidCardNeedsReview,
			Payload: model.BidCardNeedsReviewPayload{
				ProjectID: payload.ProjectID,
				Reason:    analysisErr.Error(),
			},
		}, nil
	}
	if err != nil {
		return workflow.Emission{}, fmt.Errorf("bidcard: analysis call: %w", err)
	}

	card := &model.BidCard{
		ID:           uuid.New().String(),
		ProjectID:    payload.ProjectID,
		Category:     result.Category,
		JobType:      result.JobType,
		Budget:       model.BudgetRange{Min: result.BudgetMin, Max: result.BudgetMax},
		Scope:        result.Scope,
		AIConfidence: result.Confidence,
		Status:       model.BidCardFinal,
	}

	if result.Confidence < s.minConfidence {
		card.Status = model.BidCardNeedsReview
	}

	// Validated once at the pipeline boundary; failures are rejected, not
	// coerced
	if err := card.Validate(); err != nil {
		return workflow.Emission{}, fmt.Errorf("bidcard: invalid card: %w", err)
	}

	if err := s.bidcards.Create(ctx, card); err != nil {
		return workflow.Emission{}, fmt.Errorf("bidcard: persisting card: %w", err)
	}

	if card.Status == model.BidCardNeedsReview {
		logger.Info(ctx, "bid card below confidence threshold, routing to review",
			"bid_card_id", card.ID,
			"confidence", card.AIConfidence,
			"threshold", s.minConfidence,
		)
		return workflow.Emission{
			Topic: model.TopicBidCardNeedsReview,
			Payload: model.BidCardNeedsReviewPayload{
				ProjectID:  payload.ProjectID,
				BidCardID:  card.ID,
				Confidence: card.AIConfidence,
				Reason:     "confidence below threshold",
			},
		}, nil
	}

	logger.Info(ctx, "bid card finalized",
		"bid_card_id", card.ID,
		"category", card.Category,
		"confidence", card.AIConfidence,
	)

	return workflow.Emission{
		Topic: model.TopicBidCardReady,
		Payload: model.BidCardReadyPayload{
			ProjectID: payload.ProjectID,
			BidCardID: card.ID,
			Category:  card.Category,
		},
	}, nil
}

// analyze retries transient transport failures with bounded backoff.
// AnalysisError responses are permanent: the collaborator answered, the
// answer was unusable.
func (s *BidCardStage) analyze(ctx context.Context, input service.AnalysisInput) (*service.AnalysisResult, error) {
	var result *service.AnalysisResult

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		res, err := s.analyzer.Analyze(ctx, input)
		if err != nil {
			var analysisErr *service.AnalysisError
			if errors.As(err, &analysisErr) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}, policy)

	return result, err
}
