package domain

import "time"

// VerificationMethod identifies how a source fetches its answer. The set is
// closed: workflow configuration may only reference these methods.
type VerificationMethod string

const (
	MethodAIOracle        VerificationMethod = "ai_oracle"
	MethodNewsConsensus   VerificationMethod = "news_consensus"
	MethodAPIPriceFeed    VerificationMethod = "api_price_feed"
	MethodSportsAPI       VerificationMethod = "sports_api"
	MethodExpertVoting    VerificationMethod = "expert_voting"
	MethodCommunityVoting VerificationMethod = "community_voting"
	MethodManualAdmin     VerificationMethod = "manual_admin"
	MethodChainlinkOracle VerificationMethod = "chainlink_oracle"
	MethodTrustedSources  VerificationMethod = "trusted_sources"
)

// Methods returns every member of the closed method set.
func Methods() []VerificationMethod {
	return []VerificationMethod{
		MethodAIOracle, MethodNewsConsensus, MethodAPIPriceFeed,
		MethodSportsAPI, MethodExpertVoting, MethodCommunityVoting,
		MethodManualAdmin, MethodChainlinkOracle, MethodTrustedSources,
	}
}

// StepLogic decides how a multi-source step combines its source results.
type StepLogic string

const (
	LogicAll               StepLogic = "all"
	LogicAny               StepLogic = "any"
	LogicWeightedConsensus StepLogic = "weighted_consensus"
	LogicFirstSuccess      StepLogic = "first_success"
)

// StepAction is the per-step routing applied after the step's logic runs.
type StepAction string

const (
	ActionResolve      StepAction = "resolve"
	ActionContinue     StepAction = "continue"
	ActionEscalate     StepAction = "escalate"
	ActionManualReview StepAction = "manual_review"
)

// BackoffKind selects the retry delay curve for a source.
type BackoffKind string

const (
	BackoffExponential BackoffKind = "exponential"
	BackoffLinear      BackoffKind = "linear"
)

// VerificationSource is one evidence provider inside a workflow step.
// Disabled sources stay in the definition but are skipped at run time. An
// answer below MinConfidence counts as a failed read, not weak evidence.
type VerificationSource struct {
	ID            string
	Name          string
	Method        VerificationMethod
	Endpoint      string
	Enabled       bool
	Weight        float64 // used by weighted_consensus
	MinConfidence float64 // 0-100
	TimeoutSec    int
	Retries       int
	Backoff       BackoffKind
	Params        map[string]any
}

// WorkflowStep groups sources that run concurrently and the logic that
// combines them. Steps within a workflow run sequentially. TimeoutSec bounds
// the whole fan-out on top of the per-source timeouts.
type WorkflowStep struct {
	ID                 string
	Name               string
	Sources            []VerificationSource
	Logic              StepLogic
	RequiredConfidence float64 // 0-100
	TimeoutSec         int
	OnSuccess          StepAction
	OnFailure          StepAction
}

// VerificationWorkflow is a verification plan attached to a market category.
// EscalationThreshold is on the 0-100 confidence scale: a final consensus
// below it is escalated instead of resolved. FinalOutcomeLogic picks how the
// workflow-wide consensus weighs sources; empty means equal weight.
type VerificationWorkflow struct {
	ID                  string
	Name                string
	Category            string
	Steps               []WorkflowStep
	GlobalTimeoutSec    int
	FinalOutcomeLogic   StepLogic
	EscalationThreshold float64
	AuditTrail          bool
	AlertOnMismatch     bool
	Enabled             bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
