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

// InvitationPayload is the content delivered to one contractor
type InvitationPayload struct {
	ProjectID string `json:"project_id"`
	BidCardID string `json:"bid_card_id"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Channel   string `json:"channel"`
}

// DeliveryService calls the external send capability. Batching and retries
// are the dispatcher's responsibility, not this client's.
type DeliveryService struct {
	config     *config.DeliveryConfig
	httpClient *http.Client
}

func NewDeliveryService(cfg *config.DeliveryConfig) *DeliveryService {
	return &DeliveryService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type sendRequest struct {
	ContractorID string            `json:"contractor_id"`
	Payload      InvitationPayload `json:"payload"`
}

type sendResponse struct {
	Status string `json:"status"` // sent, acknowledged
	Error  string `json:"error,omitempty"`
}

// Send delivers one invitation and returns the terminal delivery status
// reported by the channel
func (s *DeliveryService) Send(ctx context.Context, contractorID string, payload InvitationPayload) (string, error) {
	if payload.Channel == "" {
		payload.Channel = s.config.Channel
	}

	jsonData, err := json.Marshal(sendRequest{ContractorID: contractorID, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("delivery channel error (status %d): %s", resp.StatusCode, string(body))
	}

	var result sendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	switch result.Status {
	case model.InvitationSent, model.InvitationAcknowledged:
		return result.Status, nil
	default:
		return "", fmt.Errorf("delivery rejected: %s", result.Error)
	}
}
