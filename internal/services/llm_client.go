package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Reasoning-call failure classes. Transport and decode failures are hard
// failures; a decision that arrives but cannot be interpreted is retryable.
var (
	ErrReasoningUnavailable = errors.New("reasoning model unavailable")
	ErrMalformedDecision    = errors.New("malformed model decision")
)

// ToolCallRequest is a single tool invocation requested by the model
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments string // Raw JSON arguments as produced by the model
}

// Decision is one model turn: either a final answer or tool call requests
type Decision struct {
	Answer    string
	ToolCalls []ToolCallRequest
}

// IsFinal reports whether the decision carries a final answer with no tool calls
func (d *Decision) IsFinal() bool {
	return len(d.ToolCalls) == 0
}

// CompletionClient produces model decisions for a message transcript
type CompletionClient interface {
	Complete(ctx context.Context, messages []map[string]interface{}, tools []map[string]interface{}) (*Decision, error)
}

// HTTPCompletionClient talks to an OpenAI-compatible chat completion endpoint
type HTTPCompletionClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHTTPCompletionClient creates a client for the configured endpoint
func NewHTTPCompletionClient(baseURL, apiKey, model string, timeout time.Duration) *HTTPCompletionClient {
	return &HTTPCompletionClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete makes a single chat completion request and returns the decision.
// Transport errors and non-200 responses map to ErrReasoningUnavailable,
// uninterpretable bodies to ErrMalformedDecision.
func (c *HTTPCompletionClient) Complete(ctx context.Context, messages []map[string]interface{}, tools []map[string]interface{}) (*Decision, error) {
	reqBody := map[string]interface{}{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
	}
	if len(tools) > 0 {
		reqBody["tools"] = tools
		reqBody["tool_choice"] = "auto"
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReasoningUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrReasoningUnavailable, resp.StatusCode, string(body))
	}

	var apiResult struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Type     string `json:"type"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResult); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrMalformedDecision, err)
	}

	if len(apiResult.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrMalformedDecision)
	}

	msg := apiResult.Choices[0].Message
	decision := &Decision{Answer: msg.Content}
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			return nil, fmt.Errorf("%w: tool call without a function name", ErrMalformedDecision)
		}
		decision.ToolCalls = append(decision.ToolCalls, ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if decision.Answer == "" && len(decision.ToolCalls) == 0 {
		return nil, fmt.Errorf("%w: empty answer and no tool calls", ErrMalformedDecision)
	}

	return decision, nil
}
