package strategy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// maxAPIBody caps how much of an external response is read, keeping a
// misbehaving endpoint from exhausting memory.
const maxAPIBody = 1 << 20

// APIStrategy resolves a market by fetching an external JSON endpoint and
// comparing the value at a dot-notation path against an expected value.
type APIStrategy struct {
	client  *http.Client
	minBond float64
}

// NewAPIStrategy creates an API-check strategy with the given request timeout
// and proposer bond.
func NewAPIStrategy(timeout time.Duration, minBond float64) *APIStrategy {
	return &APIStrategy{
		client:  &http.Client{Timeout: timeout},
		minBond: minBond,
	}
}

// Type implements Strategy.
func (s *APIStrategy) Type() domain.StrategyType {
	return domain.StrategyAPI
}

// Resolve implements Strategy. The extracted value maps to an outcome
// through boolean heuristics, or through straight comparison when the
// context names an expected value. A successful read carries full
// confidence: the endpoint is the market's configured ground truth. An
// unreachable endpoint or a missing path is an error so the caller can retry
// later instead of proposing a wrong outcome.
func (s *APIStrategy) Resolve(ctx context.Context, rc Context) (Outcome, error) {
	a := rc.API
	if a == nil || a.Endpoint == "" || a.Path == "" {
		return Outcome{}, fmt.Errorf("strategy: api check needs endpoint and path: %w", domain.ErrInvalidContext)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.Endpoint, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("strategy: build api request: %w", err)
	}
	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("strategy: fetch %s: %w: %v", a.Endpoint, domain.ErrSourceUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Outcome{}, fmt.Errorf("strategy: fetch %s: status %d: %w", a.Endpoint, resp.StatusCode, domain.ErrSourceUnreachable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return Outcome{}, fmt.Errorf("strategy: read api response: %w", err)
	}

	value := gjson.GetBytes(body, a.Path)
	if !value.Exists() {
		return Outcome{}, fmt.Errorf("strategy: path %q missing in response from %s: %w", a.Path, a.Endpoint, domain.ErrInvalidContext)
	}

	got := value.String()
	outcome := mapAPIValue(got, a.Expected)

	return Outcome{
		Outcome:         outcome,
		Confidence:      1.0,
		EvidenceSummary: fmt.Sprintf("api check %s: %s = %q (expected %q)", a.Endpoint, a.Path, got, a.Expected),
		EvidenceURLs:    []string{a.Endpoint},
		Evidence: map[string]any{
			"endpoint": a.Endpoint,
			"path":     a.Path,
			"expected": a.Expected,
			"actual":   got,
		},
		Bond: s.minBond,
	}, nil
}

// mapAPIValue turns the extracted field into an outcome. An explicit
// expected value overrides the heuristics: equality means yes, anything else
// no. Without one, boolean-ish and yes/no-ish strings decide, and values
// that look like neither stay uncertain.
func mapAPIValue(got, expected string) string {
	if expected != "" {
		if strings.EqualFold(got, expected) {
			return domain.OutcomeYes
		}
		return domain.OutcomeNo
	}
	switch strings.ToLower(strings.TrimSpace(got)) {
	case "true", "yes", "y", "1":
		return domain.OutcomeYes
	case "false", "no", "n", "0":
		return domain.OutcomeNo
	default:
		return domain.OutcomeUncertain
	}
}

var _ Strategy = (*APIStrategy)(nil)
