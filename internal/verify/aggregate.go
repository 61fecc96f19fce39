// Package verify runs multi-source verification workflows and combines their
// evidence into a single outcome.
package verify

import (
	"math"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// weightedVote is one source's answer with its consensus weight attached.
type weightedVote struct {
	Outcome    string
	Confidence float64 // 0-100
	Weight     float64
}

// weightedConsensus combines votes into an outcome and a 0-100 confidence.
// Each vote contributes confidence/100 x weight to its outcome's score and
// scores are normalized by total weight, so half-hearted agreement from a
// heavy source can lose to firm agreement from lighter ones.
func weightedConsensus(votes []weightedVote) (string, float64) {
	scores := make(map[string]float64)
	var totalWeight float64
	for _, v := range votes {
		if v.Outcome != domain.OutcomeYes && v.Outcome != domain.OutcomeNo {
			continue
		}
		scores[v.Outcome] += (v.Confidence / 100) * v.Weight
		totalWeight += v.Weight
	}
	if totalWeight == 0 {
		return domain.OutcomeUncertain, 0
	}

	best, bestScore := domain.OutcomeUncertain, 0.0
	for outcome, score := range scores {
		if score > bestScore {
			best, bestScore = outcome, score
		}
	}
	return best, math.Round(bestScore / totalWeight * 100)
}

// combineStep applies the step's logic to its source results and returns the
// step verdict. Passed is decided against the step's required confidence.
func combineStep(step domain.WorkflowStep, results []domain.SourceResult) domain.StepResult {
	sr := domain.StepResult{
		StepID:   step.ID,
		StepName: step.Name,
		Sources:  results,
	}

	switch step.Logic {
	case domain.LogicAll:
		sr.Outcome, sr.Confidence, sr.Passed = combineAll(results)
	case domain.LogicAny:
		sr.Outcome, sr.Confidence = bestResult(results)
		sr.Passed = sr.Outcome != domain.OutcomeUncertain
	case domain.LogicFirstSuccess:
		sr.Outcome, sr.Confidence = firstSuccess(results, step.RequiredConfidence)
		sr.Passed = sr.Outcome != domain.OutcomeUncertain
	case domain.LogicWeightedConsensus:
		votes := votesFor(step, results)
		sr.Outcome, sr.Confidence = weightedConsensus(votes)
		sr.Passed = sr.Outcome != domain.OutcomeUncertain
	default:
		sr.Outcome = domain.OutcomeUncertain
	}

	if sr.Passed && sr.Confidence < step.RequiredConfidence {
		sr.Passed = false
	}
	if sr.Passed {
		sr.Action = step.OnSuccess
	} else {
		sr.Action = step.OnFailure
	}
	return sr
}

// combineAll requires every source to answer and agree. Agreement yields the
// weakest confidence in the set; any failure or disagreement fails the step
// and reports the strongest confidence seen, which is what a reviewer wants
// to know about a split verdict.
func combineAll(results []domain.SourceResult) (string, float64, bool) {
	outcome := ""
	minConf := math.MaxFloat64
	maxConf := 0.0

	for _, r := range results {
		if !r.OK() {
			return domain.OutcomeUncertain, maxConf, false
		}
		if r.Confidence > maxConf {
			maxConf = r.Confidence
		}
		if r.Confidence < minConf {
			minConf = r.Confidence
		}
		if outcome == "" {
			outcome = r.Outcome
		} else if r.Outcome != outcome {
			return domain.OutcomeUncertain, maxConf, false
		}
	}
	if outcome == "" {
		return domain.OutcomeUncertain, 0, false
	}
	return outcome, minConf, true
}

// bestResult returns the highest-confidence successful answer.
func bestResult(results []domain.SourceResult) (string, float64) {
	outcome, conf := domain.OutcomeUncertain, 0.0
	for _, r := range results {
		if r.OK() && r.Confidence > conf {
			outcome, conf = r.Outcome, r.Confidence
		}
	}
	return outcome, conf
}

// firstSuccess returns the first result, in source order, whose confidence
// clears the bar.
func firstSuccess(results []domain.SourceResult, required float64) (string, float64) {
	for _, r := range results {
		if r.OK() && r.Confidence >= required {
			return r.Outcome, r.Confidence
		}
	}
	return domain.OutcomeUncertain, 0
}

// votesFor pairs each successful result with its source's configured weight.
func votesFor(step domain.WorkflowStep, results []domain.SourceResult) []weightedVote {
	weights := make(map[string]float64, len(step.Sources))
	for _, src := range step.Sources {
		w := src.Weight
		if w <= 0 {
			w = 1
		}
		weights[src.ID] = w
	}

	var votes []weightedVote
	for _, r := range results {
		if !r.OK() {
			continue
		}
		w, ok := weights[r.SourceID]
		if !ok {
			w = 1
		}
		votes = append(votes, weightedVote{Outcome: r.Outcome, Confidence: r.Confidence, Weight: w})
	}
	return votes
}

// finalConsensus combines every successful source result across all steps.
// Sources count with equal weight unless the workflow's final outcome logic
// asks for weighted consensus, in which case the configured source weights
// carry over.
func finalConsensus(wf domain.VerificationWorkflow, steps []domain.StepResult) (string, float64) {
	weights := map[string]float64{}
	if wf.FinalOutcomeLogic == domain.LogicWeightedConsensus {
		for _, step := range wf.Steps {
			for _, src := range step.Sources {
				if src.Weight > 0 {
					weights[src.ID] = src.Weight
				}
			}
		}
	}

	var votes []weightedVote
	for _, step := range steps {
		for _, r := range step.Sources {
			if !r.OK() {
				continue
			}
			w := weights[r.SourceID]
			if w <= 0 {
				w = 1
			}
			votes = append(votes, weightedVote{Outcome: r.Outcome, Confidence: r.Confidence, Weight: w})
		}
	}
	return weightedConsensus(votes)
}

// countStrong tallies how many sources answered yes and how many answered no
// at or above bar. Both camps holding strong evidence means the sources
// contradict each other rather than merely hesitating.
func countStrong(steps []domain.StepResult, bar float64) (yes, no int) {
	for _, step := range steps {
		for _, r := range step.Sources {
			if !r.OK() || r.Confidence < bar {
				continue
			}
			switch r.Outcome {
			case domain.OutcomeYes:
				yes++
			case domain.OutcomeNo:
				no++
			}
		}
	}
	return yes, no
}
