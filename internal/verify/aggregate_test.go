package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

func src(id, outcome string, conf float64) domain.SourceResult {
	return domain.SourceResult{SourceID: id, SourceName: id, Outcome: outcome, Confidence: conf}
}

func failedSrc(id string) domain.SourceResult {
	return domain.SourceResult{SourceID: id, SourceName: id, Err: "connection refused"}
}

func TestWeightedConsensus(t *testing.T) {
	tests := []struct {
		name        string
		votes       []weightedVote
		wantOutcome string
		wantConf    float64
	}{
		{
			name: "heavier yes beats lighter no",
			votes: []weightedVote{
				{Outcome: domain.OutcomeYes, Confidence: 90, Weight: 60},
				{Outcome: domain.OutcomeNo, Confidence: 90, Weight: 40},
			},
			wantOutcome: domain.OutcomeYes,
			wantConf:    54,
		},
		{
			name: "firm light sources beat hesitant heavy one",
			votes: []weightedVote{
				{Outcome: domain.OutcomeYes, Confidence: 40, Weight: 3},
				{Outcome: domain.OutcomeNo, Confidence: 95, Weight: 1},
				{Outcome: domain.OutcomeNo, Confidence: 90, Weight: 1},
			},
			wantOutcome: domain.OutcomeNo,
			wantConf:    37,
		},
		{
			name: "uncertain votes carry no weight",
			votes: []weightedVote{
				{Outcome: domain.OutcomeUncertain, Confidence: 99, Weight: 10},
				{Outcome: domain.OutcomeYes, Confidence: 80, Weight: 1},
			},
			wantOutcome: domain.OutcomeYes,
			wantConf:    80,
		},
		{
			name:        "no votes at all",
			votes:       nil,
			wantOutcome: domain.OutcomeUncertain,
			wantConf:    0,
		},
		{
			name: "only uncertain votes",
			votes: []weightedVote{
				{Outcome: domain.OutcomeUncertain, Confidence: 50, Weight: 1},
			},
			wantOutcome: domain.OutcomeUncertain,
			wantConf:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, conf := weightedConsensus(tt.votes)
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantConf, conf)
		})
	}
}

func TestCombineStepAll(t *testing.T) {
	step := domain.WorkflowStep{
		ID:                 "step-1",
		Name:               "cross check",
		Logic:              domain.LogicAll,
		RequiredConfidence: 75,
		OnSuccess:          domain.ActionResolve,
		OnFailure:          domain.ActionEscalate,
	}

	t.Run("agreement takes the weakest confidence", func(t *testing.T) {
		sr := combineStep(step, []domain.SourceResult{
			src("a", domain.OutcomeYes, 95),
			src("b", domain.OutcomeYes, 80),
		})
		assert.True(t, sr.Passed)
		assert.Equal(t, domain.OutcomeYes, sr.Outcome)
		assert.Equal(t, 80.0, sr.Confidence)
		assert.Equal(t, domain.ActionResolve, sr.Action)
	})

	t.Run("disagreement fails with the strongest confidence", func(t *testing.T) {
		sr := combineStep(step, []domain.SourceResult{
			src("a", domain.OutcomeYes, 95),
			src("b", domain.OutcomeNo, 80),
		})
		assert.False(t, sr.Passed)
		assert.Equal(t, domain.OutcomeUncertain, sr.Outcome)
		assert.Equal(t, 95.0, sr.Confidence)
		assert.Equal(t, domain.ActionEscalate, sr.Action)
	})

	t.Run("one failed source fails the step", func(t *testing.T) {
		sr := combineStep(step, []domain.SourceResult{
			src("a", domain.OutcomeYes, 95),
			failedSrc("b"),
		})
		assert.False(t, sr.Passed)
		assert.Equal(t, domain.OutcomeUncertain, sr.Outcome)
	})

	t.Run("agreement below the bar does not pass", func(t *testing.T) {
		sr := combineStep(step, []domain.SourceResult{
			src("a", domain.OutcomeYes, 70),
			src("b", domain.OutcomeYes, 72),
		})
		assert.False(t, sr.Passed)
		assert.Equal(t, domain.ActionEscalate, sr.Action)
	})
}

func TestCombineStepAny(t *testing.T) {
	step := domain.WorkflowStep{
		Logic:              domain.LogicAny,
		RequiredConfidence: 60,
		OnSuccess:          domain.ActionResolve,
		OnFailure:          domain.ActionManualReview,
	}

	sr := combineStep(step, []domain.SourceResult{
		failedSrc("a"),
		src("b", domain.OutcomeNo, 88),
		src("c", domain.OutcomeYes, 62),
	})
	assert.True(t, sr.Passed)
	assert.Equal(t, domain.OutcomeNo, sr.Outcome)
	assert.Equal(t, 88.0, sr.Confidence)
}

func TestCombineStepFirstSuccess(t *testing.T) {
	step := domain.WorkflowStep{
		Logic:              domain.LogicFirstSuccess,
		RequiredConfidence: 70,
		OnSuccess:          domain.ActionResolve,
		OnFailure:          domain.ActionEscalate,
	}

	t.Run("order wins over confidence", func(t *testing.T) {
		sr := combineStep(step, []domain.SourceResult{
			src("primary", domain.OutcomeNo, 75),
			src("backup", domain.OutcomeYes, 99),
		})
		assert.Equal(t, domain.OutcomeNo, sr.Outcome)
		assert.Equal(t, 75.0, sr.Confidence)
	})

	t.Run("low-confidence results are skipped", func(t *testing.T) {
		sr := combineStep(step, []domain.SourceResult{
			src("primary", domain.OutcomeNo, 50),
			src("backup", domain.OutcomeYes, 82),
		})
		assert.Equal(t, domain.OutcomeYes, sr.Outcome)
	})

	t.Run("nothing clears the bar", func(t *testing.T) {
		sr := combineStep(step, []domain.SourceResult{
			src("primary", domain.OutcomeNo, 50),
			failedSrc("backup"),
		})
		assert.False(t, sr.Passed)
		assert.Equal(t, domain.OutcomeUncertain, sr.Outcome)
		assert.Equal(t, domain.ActionEscalate, sr.Action)
	})
}

func TestCombineStepWeightedConsensus(t *testing.T) {
	step := domain.WorkflowStep{
		Logic:              domain.LogicWeightedConsensus,
		RequiredConfidence: 50,
		OnSuccess:          domain.ActionResolve,
		OnFailure:          domain.ActionEscalate,
		Sources: []domain.VerificationSource{
			{ID: "a", Weight: 60},
			{ID: "b", Weight: 40},
		},
	}

	sr := combineStep(step, []domain.SourceResult{
		src("a", domain.OutcomeYes, 90),
		src("b", domain.OutcomeNo, 90),
	})
	assert.True(t, sr.Passed)
	assert.Equal(t, domain.OutcomeYes, sr.Outcome)
	assert.Equal(t, 54.0, sr.Confidence)
}

func TestCountStrong(t *testing.T) {
	steps := func(results ...domain.SourceResult) []domain.StepResult {
		return []domain.StepResult{{Sources: results}}
	}

	yes, no := countStrong(steps(
		src("a", domain.OutcomeYes, 85),
		src("b", domain.OutcomeNo, 82),
	), 80)
	assert.Equal(t, 1, yes)
	assert.Equal(t, 1, no)

	yes, no = countStrong(steps(
		src("a", domain.OutcomeYes, 85),
		src("b", domain.OutcomeNo, 60),
	), 80)
	assert.Equal(t, 1, yes)
	assert.Equal(t, 0, no)

	yes, no = countStrong(steps(
		src("a", domain.OutcomeYes, 85),
		src("b", domain.OutcomeYes, 90),
	), 80)
	assert.Equal(t, 2, yes)
	assert.Equal(t, 0, no)

	// A failed source never counts as strong evidence.
	strong := failedSrc("b")
	strong.Confidence = 95
	strong.Outcome = domain.OutcomeNo
	yes, no = countStrong(steps(
		src("a", domain.OutcomeYes, 85),
		strong,
	), 80)
	assert.Equal(t, 1, yes)
	assert.Equal(t, 0, no)
}

func TestFinalConsensus(t *testing.T) {
	steps := []domain.StepResult{
		{Sources: []domain.SourceResult{
			src("a", domain.OutcomeYes, 80),
			src("b", domain.OutcomeYes, 90),
		}},
		{Sources: []domain.SourceResult{
			src("c", domain.OutcomeNo, 60),
			failedSrc("d"),
		}},
	}

	t.Run("equal weight by default", func(t *testing.T) {
		outcome, conf := finalConsensus(domain.VerificationWorkflow{}, steps)
		assert.Equal(t, domain.OutcomeYes, outcome)
		// (0.8 + 0.9) / 3 weight = 0.5667 -> 57
		assert.Equal(t, 57.0, conf)
	})

	t.Run("configured weights carry over when the workflow asks", func(t *testing.T) {
		wf := domain.VerificationWorkflow{
			FinalOutcomeLogic: domain.LogicWeightedConsensus,
			Steps: []domain.WorkflowStep{
				{Sources: []domain.VerificationSource{{ID: "a", Weight: 1}, {ID: "b", Weight: 1}}},
				{Sources: []domain.VerificationSource{{ID: "c", Weight: 8}, {ID: "d", Weight: 1}}},
			},
		}
		outcome, conf := finalConsensus(wf, steps)
		// no: 0.6*8 = 4.8 vs yes: 0.8 + 0.9 = 1.7, over 10 total weight
		assert.Equal(t, domain.OutcomeNo, outcome)
		assert.Equal(t, 48.0, conf)
	})
}
