package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// Config tunes the orchestrator. Workflow definitions may override the
// per-source values.
type Config struct {
	// DefaultSourceTimeout bounds one attempt of one source when the source
	// does not set its own timeout.
	DefaultSourceTimeout time.Duration
	// DefaultRetries is the retry count for sources that do not set one.
	DefaultRetries int
	// MaxConcurrentSources caps step fan-out.
	MaxConcurrentSources int
	// MismatchBar is the 0-100 confidence above which a yes and a no answer
	// together count as contradictory evidence.
	MismatchBar float64
	// ResultTTL is how long finished results stay cached.
	ResultTTL time.Duration
}

// Orchestrator executes verification workflows. Execute never returns an
// error: every failure mode lands in the result as an escalation so callers
// always get a routable verdict.
type Orchestrator struct {
	runners map[domain.VerificationMethod]SourceRunner
	cache   domain.ResultCache
	cfg     Config
	logger  *slog.Logger
}

// New creates an Orchestrator. The cache may be nil, in which case results
// are not cached.
func New(runners map[domain.VerificationMethod]SourceRunner, cache domain.ResultCache, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.DefaultSourceTimeout <= 0 {
		cfg.DefaultSourceTimeout = 30 * time.Second
	}
	if cfg.MaxConcurrentSources <= 0 {
		cfg.MaxConcurrentSources = 8
	}
	if cfg.MismatchBar <= 0 {
		cfg.MismatchBar = 80
	}
	return &Orchestrator{runners: runners, cache: cache, cfg: cfg, logger: logger}
}

// Execute runs the workflow's steps in order against the market and returns
// the combined verdict.
func (o *Orchestrator) Execute(ctx context.Context, wf domain.VerificationWorkflow, market domain.Market) domain.WorkflowResult {
	res := domain.WorkflowResult{
		WorkflowID: wf.ID,
		MarketID:   market.ID,
		StartedAt:  time.Now().UTC(),
	}

	if wf.GlobalTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(wf.GlobalTimeoutSec)*time.Second)
		defer cancel()
	}

	for _, step := range wf.Steps {
		sr := o.runStep(ctx, step, market)
		res.Steps = append(res.Steps, sr)

		o.logger.Info("verification step finished",
			"market_id", market.ID, "step", step.Name,
			"outcome", sr.Outcome, "confidence", sr.Confidence, "passed", sr.Passed)

		// A resolving success or an escalating failure prunes the remaining
		// steps. Neither decides the verdict: that belongs to the
		// workflow-wide consensus over everything gathered so far.
		if sr.Passed && sr.Action == domain.ActionResolve {
			res.Reasoning = fmt.Sprintf("step %q resolved the workflow", step.Name)
			break
		}
		if !sr.Passed && sr.Action == domain.ActionEscalate {
			res.Reasoning = fmt.Sprintf("step %q failed and pruned the remaining steps", step.Name)
			break
		}
	}

	res.Outcome, res.Confidence = finalConsensus(wf, res.Steps)
	if res.Reasoning == "" {
		res.Reasoning = fmt.Sprintf("consensus across %d steps", len(res.Steps))
	}

	// Contradictory evidence is surfaced on its own track. A mismatch never
	// changes the verdict; only the escalation threshold does that.
	if yes, no := countStrong(res.Steps, o.cfg.MismatchBar); yes > 0 && no > 0 {
		res.MismatchDetected = true
		res.MismatchDetail = fmt.Sprintf("%d sources answered yes and %d answered no, all at or above %.0f%% confidence", yes, no, o.cfg.MismatchBar)
		if wf.AlertOnMismatch {
			o.logger.Warn("verification sources contradict each other",
				"market_id", market.ID, "workflow_id", wf.ID, "detail", res.MismatchDetail)
		}
	}

	if res.Outcome != domain.OutcomeYes && res.Outcome != domain.OutcomeNo {
		return o.finish(ctx, escalate(res, "no source produced a usable answer"))
	}
	if res.Confidence < wf.EscalationThreshold {
		return o.finish(ctx, escalate(res,
			fmt.Sprintf("consensus confidence %.0f below workflow threshold %.0f", res.Confidence, wf.EscalationThreshold)))
	}

	return o.finish(ctx, res)
}

// runStep fans the step's enabled sources out concurrently and combines the
// answers. Disabled sources stay out of the result entirely so they cannot
// dilute the step's logic.
func (o *Orchestrator) runStep(ctx context.Context, step domain.WorkflowStep, market domain.Market) domain.StepResult {
	if step.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutSec)*time.Second)
		defer cancel()
	}

	var enabled []domain.VerificationSource
	for _, src := range step.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	results := make([]domain.SourceResult, len(enabled))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentSources)
	for i, src := range enabled {
		g.Go(func() error {
			results[i] = o.runSource(gctx, src, market)
			return nil
		})
	}
	_ = g.Wait()

	return combineStep(step, results)
}

// runSource executes one source with its timeout and retry policy. Failures
// are recorded on the result rather than returned.
func (o *Orchestrator) runSource(ctx context.Context, src domain.VerificationSource, market domain.Market) domain.SourceResult {
	res := domain.SourceResult{SourceID: src.ID, SourceName: src.Name}
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	runner, ok := o.runners[src.Method]
	if !ok {
		res.Err = fmt.Sprintf("no runner for method %q", src.Method)
		return res
	}

	timeout := o.cfg.DefaultSourceTimeout
	if src.TimeoutSec > 0 {
		timeout = time.Duration(src.TimeoutSec) * time.Second
	}
	retries := o.cfg.DefaultRetries
	if src.Retries > 0 {
		retries = src.Retries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		res.Attempts = attempt + 1

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		outcome, confidence, evidence, err := runner.Run(attemptCtx, src, market)
		cancel()

		if err == nil && src.MinConfidence > 0 && confidence < src.MinConfidence {
			err = fmt.Errorf("confidence %.0f below source minimum %.0f", confidence, src.MinConfidence)
		}
		if err == nil {
			res.Outcome = outcome
			res.Confidence = confidence
			res.Evidence = evidence
			return res
		}
		lastErr = err

		if ctx.Err() != nil || attempt == retries {
			break
		}

		o.logger.Warn("verification source attempt failed, retrying",
			"market_id", market.ID, "source", src.Name,
			"attempt", attempt+1, "error", err)

		select {
		case <-time.After(backoffDelay(src.Backoff, attempt)):
		case <-ctx.Done():
			res.Err = ctx.Err().Error()
			return res
		}
	}

	res.Err = lastErr.Error()
	return res
}

// finish stamps the completion time and caches the result.
func (o *Orchestrator) finish(ctx context.Context, res domain.WorkflowResult) domain.WorkflowResult {
	res.CompletedAt = time.Now().UTC()

	if o.cache != nil {
		if err := o.cache.Set(ctx, res.MarketID, res, o.cfg.ResultTTL); err != nil {
			o.logger.WarnContext(ctx, "failed to cache workflow result",
				"market_id", res.MarketID, "error", err)
		}
	}
	return res
}

// escalate marks the result escalated with the given reason. Outcome and
// confidence collapse so nothing downstream mistakes it for a verdict.
func escalate(res domain.WorkflowResult, reason string) domain.WorkflowResult {
	res.Outcome = domain.OutcomeEscalated
	res.Confidence = 0
	res.Escalated = true
	res.EscalationReason = reason
	return res
}
