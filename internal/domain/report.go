package domain

import (
	"slices"
	"time"
)

// IntentMismatch records a test expression whose predicted intent differs
// from its declared intent.
type IntentMismatch struct {
	// Expression is the test item that was mispredicted.
	Expression LabeledExpression `json:"expression"`

	// PredictedIntent is the intent the classifier chose.
	PredictedIntent string `json:"predicted_intent"`

	// Probability is the classifier's confidence in PredictedIntent.
	Probability float64 `json:"probability"`
}

// EntityMismatch records a test expression whose intent was predicted
// correctly but whose recognized entities differ from the expected ones.
// PredictedEntities is the full predicted set, not a diff.
type EntityMismatch struct {
	// Expression is the test item whose entities were mispredicted.
	Expression LabeledExpression `json:"expression"`

	// PredictedEntities is everything the recognizer returned.
	PredictedEntities []RecognizedEntity `json:"predicted_entities"`
}

// EvaluationReport is the outcome of one evaluation run.
// A report is a snapshot: NewEvaluationReport copies every slice it receives,
// and callers must treat the returned value as read-only.
type EvaluationReport struct {
	// RunID uniquely identifies the run (typically a UUID).
	RunID string `json:"run_id"`

	// Corpus is the full corpus the run was given.
	Corpus []LabeledExpression `json:"corpus"`

	// Tested is the held-out partition, in partition order.
	Tested []LabeledExpression `json:"tested"`

	// IntentErrors lists intent mismatches in partition order.
	IntentErrors []IntentMismatch `json:"intent_errors"`

	// EntityErrors lists entity mismatches in partition order.
	EntityErrors []EntityMismatch `json:"entity_errors"`

	// BuildDuration covers sampling and every model build.
	BuildDuration time.Duration `json:"build_duration"`

	// TestDuration covers inference and scoring of the test partition.
	TestDuration time.Duration `json:"test_duration"`

	// StartedAt records when the run started.
	StartedAt time.Time `json:"started_at"`
}

// NewEvaluationReport assembles a report from the buffers of a finished run.
// The slices are cloned so the report does not alias the caller's buffers.
func NewEvaluationReport(
	runID string,
	corpus, tested []LabeledExpression,
	intentErrors []IntentMismatch,
	entityErrors []EntityMismatch,
	buildDuration, testDuration time.Duration,
	startedAt time.Time,
) *EvaluationReport {
	entityCopy := make([]EntityMismatch, len(entityErrors))
	for i, m := range entityErrors {
		entityCopy[i] = EntityMismatch{
			Expression:        m.Expression,
			PredictedEntities: slices.Clone(m.PredictedEntities),
		}
	}

	return &EvaluationReport{
		RunID:         runID,
		Corpus:        slices.Clone(corpus),
		Tested:        slices.Clone(tested),
		IntentErrors:  append(make([]IntentMismatch, 0, len(intentErrors)), intentErrors...),
		EntityErrors:  entityCopy,
		BuildDuration: buildDuration,
		TestDuration:  testDuration,
		StartedAt:     startedAt,
	}
}

// CorpusSize returns the number of expressions in the full corpus.
func (r *EvaluationReport) CorpusSize() int { return len(r.Corpus) }

// TestedCount returns the number of expressions in the test partition.
func (r *EvaluationReport) TestedCount() int { return len(r.Tested) }

// ErrorCount returns the total number of mismatches of either kind.
func (r *EvaluationReport) ErrorCount() int { return len(r.IntentErrors) + len(r.EntityErrors) }

// IntentErrorRate returns the share of tested expressions with a wrong intent.
func (r *EvaluationReport) IntentErrorRate() float64 {
	return ratio(len(r.IntentErrors), len(r.Tested))
}

// EntityErrorRate returns the share of tested expressions with a correct
// intent but wrong entities.
func (r *EvaluationReport) EntityErrorRate() float64 {
	return ratio(len(r.EntityErrors), len(r.Tested))
}

// Accuracy returns the share of tested expressions with no mismatch at all.
func (r *EvaluationReport) Accuracy() float64 {
	if len(r.Tested) == 0 {
		return 0
	}
	return 1 - ratio(r.ErrorCount(), len(r.Tested))
}

// IntentErrorsByIntent counts intent mismatches per declared intent.
func (r *EvaluationReport) IntentErrorsByIntent() map[string]int {
	counts := make(map[string]int)
	for _, m := range r.IntentErrors {
		counts[m.Expression.Intent]++
	}
	return counts
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
