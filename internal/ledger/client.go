// Package ledger talks to the platform's balance service to lock, release,
// and slash resolution bonds.
package ledger

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

// ClientConfig holds the balance service endpoint and credentials.
type ClientConfig struct {
	BaseURL string
	ApiKey  string
	Timeout time.Duration
}

// Client implements domain.BondLedger over the balance service HTTP API.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// New creates a ledger Client.
func New(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

// Lock reserves amount from the owner's balance under ref.
func (c *Client) Lock(ctx context.Context, ownerID, ref string, amount float64, currency string) error {
	return c.post(ctx, "/v1/bonds/lock", map[string]any{
		"owner_id": ownerID,
		"ref":      ref,
		"amount":   amount,
		"currency": currency,
	})
}

// Release returns the bond held under ref to its owner.
func (c *Client) Release(ctx context.Context, ownerID, ref string) error {
	return c.post(ctx, "/v1/bonds/release", map[string]any{
		"owner_id": ownerID,
		"ref":      ref,
	})
}

// Slash forfeits the bond held under ref and credits winnerShare of it to
// the winner; the remainder stays with the platform.
func (c *Client) Slash(ctx context.Context, ownerID, ref, winnerID string, winnerShare float64) error {
	return c.post(ctx, "/v1/bonds/slash", map[string]any{
		"owner_id":     ownerID,
		"ref":          ref,
		"winner_id":    winnerID,
		"winner_share": winnerShare,
	})
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ledger: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledger: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ledger: %s returned status %d: %s", path, resp.StatusCode, msg)
	}
	return nil
}

var _ domain.BondLedger = (*Client)(nil)
