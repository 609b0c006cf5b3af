package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JustinAIDistuptors/instabids-agent-platform/config"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
)

// AnalysisInput is the raw project material handed to the external
// categorization collaborator
type AnalysisInput struct {
	ProjectID   string   `json:"project_id"`
	Description string   `json:"description"`
	ImageRefs   []string `json:"image_refs,omitempty"`
}

// AnalysisResult is the collaborator's structured read of the project.
// The pipeline treats the collaborator as a black box: text and images in,
// category, confidence and scope out.
type AnalysisResult struct {
	Category   string      `json:"category"`
	JobType    string      `json:"job_type"`
	Confidence float64     `json:"confidence"`
	Scope      model.Scope `json:"scope"`
	BudgetMin  int         `json:"budget_min"`
	BudgetMax  int         `json:"budget_max"`
}

// AnalysisError reports a failed categorization call. The bid card stage
// routes it to review instead of failing the workflow.
type AnalysisError struct {
	StatusCode int
	Message    string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed (status %d): %s", e.StatusCode, e.Message)
}

// AnalysisService calls the external categorization API
type AnalysisService struct {
	config     *config.AnalysisConfig
	httpClient *http.Client
}

func NewAnalysisService(cfg *config.AnalysisConfig) *AnalysisService {
	return &AnalysisService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Analyze submits the project material and returns the structured result
func (s *AnalysisService) Analyze(ctx context.Context, input AnalysisInput) (*AnalysisResult, error) {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/analyze", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &AnalysisError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var result AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &AnalysisError{StatusCode: resp.StatusCode, Message: "unparseable response: " + err.Error()}
	}

	if result.Category == "" {
		return nil, &AnalysisError{StatusCode: resp.StatusCode, Message: "response missing category"}
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, &AnalysisError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("confidence %v outside [0,1]", result.Confidence)}
	}

	return &result, nil
}
