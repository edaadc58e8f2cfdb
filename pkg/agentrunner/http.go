// Package agentrunner provides agent turn executors. The HTTP runner
// delegates each turn to an external agent service that owns the model call.
package agentrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ccrm/agentgraph/pkg/models"
	"github.com/ccrm/agentgraph/pkg/protocol"
)

const defaultTurnTimeout = 60 * time.Second

// HTTPRunner executes agent turns by POSTing them to an agent service. The
// service receives the full turn context and replies with the turn result.
type HTTPRunner struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPRunner creates a runner targeting the agent service at baseURL.
func NewHTTPRunner(baseURL string, logger *slog.Logger) *HTTPRunner {
	return &HTTPRunner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTurnTimeout},
		logger:  logger.With("module", "agent_runner"),
	}
}

type turnRequest struct {
	RunID              string         `json:"runId"`
	NodeID             string         `json:"nodeId"`
	AgentID            string         `json:"agentId"`
	SystemPrompt       string         `json:"systemPrompt"`
	History            []models.Entry `json:"history"`
	Destinations       []string       `json:"destinations"`
	CanEndConversation bool           `json:"canEndConversation"`
	Tools              []string       `json:"tools,omitempty"`
}

// RunTurn implements protocol.AgentRunner.
func (r *HTTPRunner) RunTurn(ctx context.Context, turn protocol.AgentTurn) (*models.TurnResult, error) {
	request := turnRequest{
		RunID:              turn.RunID,
		NodeID:             turn.NodeID,
		History:            turn.History,
		Destinations:       turn.Destinations,
		CanEndConversation: turn.CanEndConversation,
	}

	if turn.Agent != nil {
		request.AgentID = turn.Agent.ID
		request.SystemPrompt = turn.Agent.SystemPrompt
		request.Tools = turn.Agent.Tools
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode turn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/turns", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build turn request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return nil, fmt.Errorf("agent service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result models.TurnResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode turn result: %w", err)
	}

	return &result, nil
}
