package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// SourceRunner executes a single verification source once. Retries, timeouts
// and fan-out belong to the orchestrator.
type SourceRunner interface {
	Run(ctx context.Context, src domain.VerificationSource, market domain.Market) (outcome string, confidence float64, evidence map[string]any, err error)
}

// HTTPSourceRunner posts the market's question to a source endpoint and
// expects a JSON verdict back. News feeds, price feeds, sports APIs, voting
// pools, chainlink adapters and trusted-source lists all speak this request
// shape and differ only in what sits behind the endpoint.
type HTTPSourceRunner struct {
	client *http.Client
}

// NewHTTPSourceRunner creates an HTTP runner. Per-request deadlines come from
// the caller's context, so the underlying client carries no timeout.
func NewHTTPSourceRunner() *HTTPSourceRunner {
	return &HTTPSourceRunner{client: &http.Client{}}
}

type sourceRequest struct {
	MarketID string         `json:"market_id"`
	Question string         `json:"question"`
	Category string         `json:"category"`
	Params   map[string]any `json:"params,omitempty"`
}

// Run implements SourceRunner. The endpoint must answer with at least
// {"outcome": "yes"|"no"|"uncertain", "confidence": 0-100}.
func (h *HTTPSourceRunner) Run(ctx context.Context, src domain.VerificationSource, market domain.Market) (string, float64, map[string]any, error) {
	body, err := json.Marshal(sourceRequest{
		MarketID: market.ID,
		Question: market.Question,
		Category: market.Category,
		Params:   src.Params,
	})
	if err != nil {
		return "", 0, nil, fmt.Errorf("verify: encode source request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, src.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, nil, fmt.Errorf("verify: build source request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", 0, nil, fmt.Errorf("verify: source %s: %w: %v", src.Name, domain.ErrSourceUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, nil, fmt.Errorf("verify: read source %s response: %w", src.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, nil, fmt.Errorf("verify: source %s: status %d: %w", src.Name, resp.StatusCode, domain.ErrSourceUnreachable)
	}

	outcome := strings.ToLower(gjson.GetBytes(respBody, "outcome").String())
	switch outcome {
	case domain.OutcomeYes, domain.OutcomeNo, domain.OutcomeUncertain:
	default:
		return "", 0, nil, fmt.Errorf("verify: source %s returned unusable outcome %q", src.Name, outcome)
	}
	confidence := gjson.GetBytes(respBody, "confidence").Float()

	evidence := map[string]any{"endpoint": src.Endpoint}
	if detail := gjson.GetBytes(respBody, "evidence"); detail.Exists() {
		evidence["detail"] = detail.Value()
	}

	return outcome, confidence, evidence, nil
}

// AISourceRunner answers through the inference gateway instead of an
// external endpoint.
type AISourceRunner struct {
	gateway domain.InferenceGateway
}

// NewAISourceRunner creates an AI runner backed by the given gateway.
func NewAISourceRunner(gateway domain.InferenceGateway) *AISourceRunner {
	return &AISourceRunner{gateway: gateway}
}

const verifySourceSystem = `You are one verification source in a
prediction-market resolution pipeline. Decide whether the question resolved
yes or no. Answer with a JSON object only:
{"outcome": "yes"|"no"|"uncertain", "confidence": 0-100, "reasoning": "..."}`

// Run implements SourceRunner.
func (a *AISourceRunner) Run(ctx context.Context, src domain.VerificationSource, market domain.Market) (string, float64, map[string]any, error) {
	prompt := "Question: " + market.Question
	if focus, ok := src.Params["focus"].(string); ok && focus != "" {
		prompt += "\nFocus: " + focus
	}

	answer, err := a.gateway.Complete(ctx, domain.InferenceRequest{
		System: verifySourceSystem,
		Prompt: prompt,
	})
	if err != nil {
		return "", 0, nil, fmt.Errorf("verify: ai source %s: %w", src.Name, err)
	}

	outcome := strings.ToLower(gjson.Get(answer, "outcome").String())
	switch outcome {
	case domain.OutcomeYes, domain.OutcomeNo, domain.OutcomeUncertain:
	default:
		return "", 0, nil, fmt.Errorf("verify: ai source %s returned unusable outcome %q", src.Name, outcome)
	}

	return outcome, gjson.Get(answer, "confidence").Float(), map[string]any{
		"reasoning": gjson.Get(answer, "reasoning").String(),
	}, nil
}

// ManualAdminRunner backs manual_admin sources. It always answers uncertain
// at zero confidence so a pending operator decision can never tip a consensus
// before a human actually enters it.
type ManualAdminRunner struct{}

// Run implements SourceRunner.
func (ManualAdminRunner) Run(_ context.Context, _ domain.VerificationSource, _ domain.Market) (string, float64, map[string]any, error) {
	return domain.OutcomeUncertain, 0, map[string]any{"awaiting": "manual_admin_input"}, nil
}

// backoffDelay returns how long to wait after failed attempt (0-based): the
// first retry waits one second under either curve.
func backoffDelay(kind domain.BackoffKind, attempt int) time.Duration {
	switch kind {
	case domain.BackoffLinear:
		return time.Duration(attempt+1) * time.Second
	default:
		return time.Duration(1<<attempt) * time.Second
	}
}
