// Package settle talks to the platform's settlement engine, which pays out
// resolved markets to their position holders.
package settle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// ClientConfig holds the settlement engine endpoint and credentials.
type ClientConfig struct {
	BaseURL string
	ApiKey  string
	Timeout time.Duration
}

// Client implements domain.SettlementEngine over the settlement HTTP API.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// New creates a settlement Client.
func New(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

// Settle asks the settlement engine to pay out marketID at winningOutcome.
// The call is idempotent on the engine side, keyed by market ID.
func (c *Client) Settle(ctx context.Context, marketID, winningOutcome string) error {
	body, err := json.Marshal(map[string]any{
		"market_id":       marketID,
		"winning_outcome": winningOutcome,
	})
	if err != nil {
		return fmt.Errorf("settle: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/settlements", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("settle: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("settle: settle market %s: %w", marketID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("settle: market %s returned status %d: %s", marketID, resp.StatusCode, msg)
	}
	return nil
}

var _ domain.SettlementEngine = (*Client)(nil)
