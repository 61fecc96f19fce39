// Package inference provides an HTTP gateway to chat-completion model
// providers for AI-backed verification.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// GatewayConfig holds provider endpoints and model parameters.
type GatewayConfig struct {
	// Endpoints are chat-completion URLs tried in rotation. A request that
	// fails on one endpoint moves to the next.
	Endpoints   []string
	ApiKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Gateway implements domain.InferenceGateway over one or more OpenAI-style
// chat-completion endpoints.
type Gateway struct {
	cfg    GatewayConfig
	client *http.Client
	next   atomic.Uint64
	logger *slog.Logger
}

// New creates a Gateway. At least one endpoint must be configured.
func New(cfg GatewayConfig, logger *slog.Logger) (*Gateway, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("inference: no endpoints configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// Complete implements domain.InferenceGateway. Each call starts from the next
// endpoint in rotation and falls through the rest on failure; the last error
// is returned when every endpoint fails.
func (g *Gateway) Complete(ctx context.Context, req domain.InferenceRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = g.cfg.Temperature
	}

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("inference: encode request: %w", err)
	}

	start := g.next.Add(1)
	var lastErr error
	for i := range g.cfg.Endpoints {
		endpoint := g.cfg.Endpoints[(int(start)+i)%len(g.cfg.Endpoints)]

		text, err := g.complete(ctx, endpoint, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		g.logger.Warn("inference endpoint failed, rotating",
			"endpoint", endpoint, "error", err)
	}

	return "", fmt.Errorf("inference: all endpoints failed: %w", lastErr)
}

func (g *Gateway) complete(ctx context.Context, endpoint string, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("inference: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.cfg.ApiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.cfg.ApiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("inference: post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("inference: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference: %s returned status %d", endpoint, resp.StatusCode)
	}

	content := gjson.GetBytes(respBody, "choices.0.message.content")
	if !content.Exists() || content.String() == "" {
		return "", fmt.Errorf("inference: %s returned no completion content", endpoint)
	}
	return content.String(), nil
}

var _ domain.InferenceGateway = (*Gateway)(nil)
