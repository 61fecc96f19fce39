package verify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// DefaultWorkflows returns the built-in verification plans per market
// category. Operators can replace them through the workflow API; they exist
// so a fresh deployment resolves markets without manual setup.
func DefaultWorkflows() []domain.VerificationWorkflow {
	return []domain.VerificationWorkflow{
		{
			ID:       "wf-sports-default",
			Name:     "Sports scores",
			Category: "sports",
			Steps: []domain.WorkflowStep{
				{
					ID:   "sports-api",
					Name: "score feeds",
					Sources: []domain.VerificationSource{
						{ID: "espn", Name: "espn", Method: domain.MethodSportsAPI, Enabled: true, Weight: 60, MinConfidence: 60, TimeoutSec: 15, Retries: 2, Backoff: domain.BackoffExponential},
						{ID: "sportsdata", Name: "sportsdata", Method: domain.MethodSportsAPI, Enabled: true, Weight: 40, MinConfidence: 60, TimeoutSec: 15, Retries: 2, Backoff: domain.BackoffExponential},
					},
					Logic:              domain.LogicWeightedConsensus,
					RequiredConfidence: 85,
					TimeoutSec:         45,
					OnSuccess:          domain.ActionResolve,
					OnFailure:          domain.ActionContinue,
				},
				{
					ID:   "sports-ai",
					Name: "ai fallback",
					Sources: []domain.VerificationSource{
						{ID: "sports-ai-1", Name: "ai-analyst", Method: domain.MethodAIOracle, Enabled: true, Weight: 100, TimeoutSec: 60, Retries: 1, Backoff: domain.BackoffLinear},
					},
					Logic:              domain.LogicAny,
					RequiredConfidence: 90,
					OnSuccess:          domain.ActionResolve,
					OnFailure:          domain.ActionManualReview,
				},
			},
			GlobalTimeoutSec:    300,
			EscalationThreshold: 80,
			AuditTrail:          true,
			AlertOnMismatch:     true,
			Enabled:             true,
		},
		{
			ID:       "wf-crypto-default",
			Name:     "Crypto prices",
			Category: "crypto",
			Steps: []domain.WorkflowStep{
				{
					ID:   "crypto-feeds",
					Name: "price feeds",
					Sources: []domain.VerificationSource{
						{ID: "coingecko", Name: "coingecko", Method: domain.MethodAPIPriceFeed, Enabled: true, Weight: 40, TimeoutSec: 10, Retries: 3, Backoff: domain.BackoffExponential},
						{ID: "binance", Name: "binance", Method: domain.MethodAPIPriceFeed, Enabled: true, Weight: 40, TimeoutSec: 10, Retries: 3, Backoff: domain.BackoffExponential},
						{ID: "chainlink", Name: "chainlink-feed", Method: domain.MethodChainlinkOracle, Enabled: true, Weight: 20, TimeoutSec: 20, Retries: 2, Backoff: domain.BackoffExponential},
					},
					Logic:              domain.LogicAll,
					RequiredConfidence: 95,
					TimeoutSec:         60,
					OnSuccess:          domain.ActionResolve,
					OnFailure:          domain.ActionEscalate,
				},
			},
			GlobalTimeoutSec:    180,
			EscalationThreshold: 90,
			AuditTrail:          true,
			AlertOnMismatch:     true,
			Enabled:             true,
		},
		{
			ID:       "wf-politics-default",
			Name:     "Political events",
			Category: "politics",
			Steps: []domain.WorkflowStep{
				{
					ID:   "politics-mixed",
					Name: "wire services and ai",
					Sources: []domain.VerificationSource{
						{ID: "ap", Name: "ap-wire", Method: domain.MethodNewsConsensus, Enabled: true, Weight: 40, TimeoutSec: 20, Retries: 2, Backoff: domain.BackoffExponential},
						{ID: "reuters", Name: "reuters-wire", Method: domain.MethodTrustedSources, Enabled: true, Weight: 30, TimeoutSec: 30, Retries: 2, Backoff: domain.BackoffLinear},
						{ID: "politics-ai", Name: "ai-analyst", Method: domain.MethodAIOracle, Enabled: true, Weight: 30, TimeoutSec: 60, Retries: 1, Backoff: domain.BackoffLinear},
					},
					Logic:              domain.LogicWeightedConsensus,
					RequiredConfidence: 80,
					OnSuccess:          domain.ActionContinue,
					OnFailure:          domain.ActionManualReview,
				},
				{
					ID:   "politics-panel",
					Name: "expert panel",
					Sources: []domain.VerificationSource{
						{ID: "expert-panel", Name: "expert-panel", Method: domain.MethodExpertVoting, Enabled: true, Weight: 70, MinConfidence: 50, TimeoutSec: 120, Retries: 1, Backoff: domain.BackoffLinear},
						{ID: "community-poll", Name: "community-poll", Method: domain.MethodCommunityVoting, Enabled: false, Weight: 30, TimeoutSec: 120, Retries: 0},
						{ID: "review-desk", Name: "review-desk", Method: domain.MethodManualAdmin, Enabled: true, Weight: 100, TimeoutSec: 120, Retries: 0},
					},
					Logic:              domain.LogicFirstSuccess,
					RequiredConfidence: 90,
					OnSuccess:          domain.ActionResolve,
					OnFailure:          domain.ActionManualReview,
				},
			},
			GlobalTimeoutSec:    600,
			FinalOutcomeLogic:   domain.LogicWeightedConsensus,
			EscalationThreshold: 85,
			AuditTrail:          true,
			AlertOnMismatch:     true,
			Enabled:             true,
		},
		{
			ID:       "wf-general-default",
			Name:     "General questions",
			Category: "general",
			Steps: []domain.WorkflowStep{
				{
					ID:   "general-ai",
					Name: "ai analysis",
					Sources: []domain.VerificationSource{
						{ID: "general-ai-1", Name: "ai-primary", Method: domain.MethodAIOracle, Enabled: true, Weight: 60, TimeoutSec: 60, Retries: 1, Backoff: domain.BackoffLinear},
						{ID: "general-ai-2", Name: "ai-secondary", Method: domain.MethodAIOracle, Enabled: true, Weight: 40, TimeoutSec: 60, Retries: 1, Backoff: domain.BackoffLinear},
					},
					Logic:              domain.LogicWeightedConsensus,
					RequiredConfidence: 85,
					OnSuccess:          domain.ActionResolve,
					OnFailure:          domain.ActionManualReview,
				},
			},
			GlobalTimeoutSec:    240,
			EscalationThreshold: 75,
			AuditTrail:          true,
			AlertOnMismatch:     true,
			Enabled:             true,
		},
	}
}

// SeedDefaults writes the default workflows into the store, skipping any
// category that already has an enabled workflow so operator edits survive
// restarts.
func SeedDefaults(ctx context.Context, store domain.WorkflowStore, logger *slog.Logger) error {
	for _, wf := range DefaultWorkflows() {
		if _, err := store.GetByCategory(ctx, wf.Category); err == nil {
			continue
		}
		if err := store.Upsert(ctx, wf); err != nil {
			return fmt.Errorf("verify: seed workflow %s: %w", wf.ID, err)
		}
		logger.Info("seeded default workflow", "workflow_id", wf.ID, "category", wf.Category)
	}
	return nil
}
