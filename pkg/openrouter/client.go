// Package openrouter implements a chat-completion client for
// OpenRouter-style (OpenAI-compatible) APIs.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one chat-completion call.
type CompletionRequest struct {
	Messages    []Message
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// CompletionResult is the outcome of a chat-completion call. Failures are
// reported in-band via Success/Err so callers can apply their own policy.
type CompletionResult struct {
	Success bool
	Content string
	Model   string
	Err     string
}

// Config holds client configuration.
type Config struct {
	Endpoint string
	APIKey   string
}

// Client talks to an OpenAI-compatible chat-completion endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *zap.Logger
}

// New builds a client from configuration.
func New(cfg Config, log *zap.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openrouter-chat",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			// Per-call deadlines come from the request context.
			Timeout: 0,
		},
		breaker: breaker,
		log:     log.With(zap.String("module", "openrouter")),
	}
}

// Configured reports whether the client has enough configuration to make calls.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != "" && c.apiKey != ""
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete performs one chat-completion call, honoring req.Timeout as a hard
// wall-clock bound. Transport errors, non-2xx statuses, and open-breaker
// states all resolve to an unsuccessful result, never an error return.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) CompletionResult {
	if !c.Configured() {
		return CompletionResult{Success: false, Err: "openrouter client not configured"}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, req)
	})
	if err != nil {
		c.log.Warn("chat completion failed", zap.Error(err))
		return CompletionResult{Success: false, Err: err.Error()}
	}

	resp, ok := out.(*chatResponse)
	if !ok || len(resp.Choices) == 0 {
		return CompletionResult{Success: false, Err: "empty completion response"}
	}
	return CompletionResult{
		Success: true,
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}
}

func (c *Client) call(ctx context.Context, req CompletionRequest) (*chatResponse, error) {
	body, err := json.Marshal(map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("openrouter error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	return &parsed, nil
}
