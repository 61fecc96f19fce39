package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// AIStrategyConfig tunes the AI resolution strategy.
type AIStrategyConfig struct {
	// ConfidenceCutoff splits bond tiers: at or above it the proposer locks
	// HighBond, below it LowBond.
	ConfidenceCutoff float64
	HighBond         float64
	LowBond          float64
}

// AIStrategy resolves a market by asking the inference gateway to research
// and decide the question. It runs two model passes: an analysis pass that
// proposes an answer, and a verification pass that challenges it. The final
// confidence is the lower of the two so a shaky verification drags an
// overconfident analysis down.
type AIStrategy struct {
	gateway domain.InferenceGateway
	cfg     AIStrategyConfig
	logger  *slog.Logger
}

// NewAIStrategy creates an AI strategy backed by the given gateway.
func NewAIStrategy(gateway domain.InferenceGateway, cfg AIStrategyConfig, logger *slog.Logger) *AIStrategy {
	return &AIStrategy{gateway: gateway, cfg: cfg, logger: logger}
}

// Type implements Strategy.
func (s *AIStrategy) Type() domain.StrategyType {
	return domain.StrategyAI
}

const analysisSystem = `You are a prediction-market resolution analyst.
Decide whether the market's question resolved yes or no based on verifiable
facts. Answer with a JSON object only:
{"outcome": "yes"|"no"|"uncertain", "confidence": 0.0-1.0, "reasoning": "...", "reasoning_zh": "...", "sources": ["url", ...]}
reasoning_zh restates the reasoning in Chinese for the bilingual audit trail.`

const verifySystem = `You are auditing another analyst's resolution of a
prediction market. Point out factual errors or missing context. Answer with a
JSON object only:
{"agrees": true|false, "confidence": 0.0-1.0, "notes": "..."}`

// Resolve implements Strategy.
func (s *AIStrategy) Resolve(ctx context.Context, rc Context) (Outcome, error) {
	a := rc.AI
	if a == nil || a.Question == "" {
		return Outcome{}, fmt.Errorf("strategy: ai resolution needs a question: %w", domain.ErrInvalidContext)
	}

	prompt := "Question: " + a.Question
	if a.Description != "" {
		prompt += "\nContext: " + a.Description
	}
	if len(a.SourceHints) > 0 {
		prompt += "\nSuggested sources: " + strings.Join(a.SourceHints, ", ")
	}

	analysis, err := s.gateway.Complete(ctx, domain.InferenceRequest{
		System: analysisSystem,
		Prompt: prompt,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("strategy: analysis pass: %w", err)
	}

	outcome := strings.ToLower(gjson.Get(analysis, "outcome").String())
	confidence := gjson.Get(analysis, "confidence").Float()
	reasoning := gjson.Get(analysis, "reasoning").String()
	reasoningZH := gjson.Get(analysis, "reasoning_zh").String()

	var sources []string
	for _, src := range gjson.Get(analysis, "sources").Array() {
		if u := src.String(); u != "" {
			sources = append(sources, u)
		}
	}

	switch outcome {
	case domain.OutcomeYes, domain.OutcomeNo:
	case domain.OutcomeUncertain:
		// Not a broken input: the model looked and could not decide. The
		// result routes to a human instead of guessing or erroring out.
		s.logger.Info("ai analysis uncertain, routing to review", "market_id", rc.Market.ID)
		return Outcome{
			Outcome:         domain.OutcomeUncertain,
			Confidence:      confidence,
			EvidenceSummary: reasoning,
			EvidenceURLs:    sources,
			Evidence:        s.analysisRecord(sources, reasoning, reasoningZH, "audit skipped: analysis reached no verdict", confidence),
			Bond:            s.cfg.LowBond,
		}, nil
	default:
		return Outcome{}, fmt.Errorf("strategy: ai analysis returned unusable outcome %q: %w", outcome, domain.ErrInvalidContext)
	}

	verification, err := s.gateway.Complete(ctx, domain.InferenceRequest{
		System: verifySystem,
		Prompt: fmt.Sprintf("Question: %s\nProposed outcome: %s (confidence %.2f)\nReasoning: %s",
			a.Question, outcome, confidence, reasoning),
	})
	var deliberation any
	if err != nil {
		// The analysis stands on its own; a failed audit just caps confidence.
		s.logger.Warn("verification pass failed, capping confidence",
			"market_id", rc.Market.ID, "error", err)
		if confidence > 0.7 {
			confidence = 0.7
		}
		deliberation = "audit unavailable: " + err.Error()
	} else {
		agrees := gjson.Get(verification, "agrees").Bool()
		auditConf := gjson.Get(verification, "confidence").Float()
		if !agrees {
			return Outcome{}, fmt.Errorf("strategy: verification pass disagrees with analysis: %w", domain.ErrInvalidContext)
		}
		if auditConf < confidence {
			confidence = auditConf
		}
		deliberation = gjson.Parse(verification).Value()
	}

	bond := s.cfg.LowBond
	if confidence >= s.cfg.ConfidenceCutoff {
		bond = s.cfg.HighBond
	}

	return Outcome{
		Outcome:         outcome,
		Confidence:      confidence,
		EvidenceSummary: reasoning,
		EvidenceURLs:    sources,
		Evidence:        s.analysisRecord(sources, reasoning, reasoningZH, deliberation, confidence),
		Bond:            bond,
	}, nil
}

// analysisRecord is the staged audit trail attached to every AI resolution:
// what was retrieved, what was concluded from it, how the audit pass ruled,
// and the explanation in both locales. The recommended action tells the
// operator whether the verdict is strong enough to stand without review.
func (s *AIStrategy) analysisRecord(sources []string, reasoning, reasoningZH string, deliberation any, confidence float64) map[string]any {
	action := "HUMAN_REVIEW"
	if confidence >= s.cfg.ConfidenceCutoff {
		action = "AUTO_RESOLVE"
	}
	return map[string]any{
		"analysis": map[string]any{
			"retrieval":    sources,
			"synthesis":    reasoning,
			"deliberation": deliberation,
			"explanation":  map[string]any{"reasoning": reasoning, "reasoning_zh": reasoningZH},
		},
		"recommended_action": action,
	}
}

var _ Strategy = (*AIStrategy)(nil)
