package application

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/ports"
	"github.com/ahrav/go-nlpeval/internal/testutils"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer lets a slog handler and a test share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// entries decodes every JSON log line written so far.
func (b *syncBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func seededConfig(threshold float64, seed uint64) EvaluationConfig {
	cfg := DefaultEvaluationConfig("test-app")
	cfg.Threshold = threshold
	cfg.Seed = &seed
	return cfg
}

func newTestEvaluator(t *testing.T, builder ports.ModelBuilder, parser ports.Parser, opts ...Option) *Evaluator {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	e, err := NewEvaluator(builder, parser, opts...)
	require.NoError(t, err)
	return e
}

func countIntent(exprs []domain.LabeledExpression, intent string) int {
	n := 0
	for _, e := range exprs {
		if e.Intent == intent {
			n++
		}
	}
	return n
}

func TestNewEvaluator(t *testing.T) {
	builder := testutils.NewMockBuilder()
	parser := testutils.NewOracleParser(nil)

	_, err := NewEvaluator(nil, parser)
	assert.Error(t, err)

	_, err = NewEvaluator(builder, nil)
	assert.Error(t, err)

	e, err := NewEvaluator(builder, parser)
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestEvaluator_PerfectClassifier(t *testing.T) {
	corpus := testutils.ScenarioCorpus()
	builder := testutils.NewMockBuilder()
	parser := testutils.NewOracleParser(corpus)
	e := newTestEvaluator(t, builder, parser, WithRunIDGenerator(func() string { return "run-1" }))

	report, err := e.Evaluate(context.Background(), seededConfig(0.8, 1), corpus)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 100, report.CorpusSize())
	assert.Equal(t, 20, report.TestedCount())
	assert.Empty(t, report.IntentErrors)
	assert.Empty(t, report.EntityErrors)
	assert.Equal(t, 1.0, report.Accuracy())
	assert.GreaterOrEqual(t, report.BuildDuration, time.Duration(0))
	assert.GreaterOrEqual(t, report.TestDuration, time.Duration(0))

	assert.Equal(t, []int{80}, builder.IntentBuilds())
	assert.Equal(t, 20, parser.Calls())

	trained := 0
	for _, n := range builder.EntityBuilds() {
		trained += n
	}
	assert.Equal(t, 80, trained, "entity models see exactly the training partition")
}

func TestEvaluator_AlwaysPredictsIntentA(t *testing.T) {
	corpus := testutils.ScenarioCorpus()
	parser := ports.ParserFunc(func(
		context.Context, ports.ParseContext, string, ports.IntentModel, map[string]ports.EntityModel,
	) (domain.ParseResult, error) {
		return domain.ParseResult{Intent: testutils.ScenarioIntentA, IntentProbability: 0.9}, nil
	})
	e := newTestEvaluator(t, testutils.NewMockBuilder(), parser)

	report, err := e.Evaluate(context.Background(), seededConfig(0.8, 2), corpus)
	require.NoError(t, err)

	testedB := countIntent(report.Tested, testutils.ScenarioIntentB)
	assert.Len(t, report.IntentErrors, testedB)
	assert.Empty(t, report.EntityErrors, "intent mismatches short-circuit entity comparison")
	for _, m := range report.IntentErrors {
		assert.Equal(t, testutils.ScenarioIntentB, m.Expression.Intent)
		assert.Equal(t, testutils.ScenarioIntentA, m.PredictedIntent)
		assert.Equal(t, 0.9, m.Probability)
	}
}

func TestEvaluator_ShiftedEntitySpan(t *testing.T) {
	corpus := testutils.ScenarioCorpus()
	parser := testutils.NewOracleParser(corpus)
	parser.Rewrite = func(expr domain.LabeledExpression, res domain.ParseResult) domain.ParseResult {
		if expr.Intent != testutils.ScenarioIntentB {
			return res
		}
		res.Entities = []domain.RecognizedEntity{{
			Role:        "city",
			EntityType:  testutils.TypeLocation,
			Span:        domain.Span{Start: 5, End: 11},
			Probability: 0.7,
		}}
		return res
	}
	e := newTestEvaluator(t, testutils.NewMockBuilder(), parser)

	report, err := e.Evaluate(context.Background(), seededConfig(0.8, 3), corpus)
	require.NoError(t, err)

	testedB := countIntent(report.Tested, testutils.ScenarioIntentB)
	assert.Empty(t, report.IntentErrors)
	require.Len(t, report.EntityErrors, testedB)
	for _, m := range report.EntityErrors {
		assert.Equal(t, testutils.ScenarioIntentB, m.Expression.Intent)
		require.Len(t, m.PredictedEntities, 1)
		assert.Equal(t, domain.Span{Start: 5, End: 11}, m.PredictedEntities[0].Span)
	}
}

func TestEvaluator_InsufficientCorpus(t *testing.T) {
	corpus := testutils.GenerateCorpus(99, 1)

	for _, threshold := range []float64{0.01, 0.5, 0.8, 0.99} {
		builder := testutils.NewMockBuilder()
		e := newTestEvaluator(t, builder, testutils.NewOracleParser(corpus))

		report, err := e.Evaluate(context.Background(), seededConfig(threshold, 1), corpus)
		require.Error(t, err)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, domain.ErrInsufficientCorpus)

		var cfgErr *domain.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "corpus", cfgErr.Field)
		assert.Empty(t, builder.IntentBuilds(), "nothing is built for a rejected corpus")
	}
}

func TestEvaluator_RaisedMinimumCorpus(t *testing.T) {
	corpus := testutils.GenerateCorpus(150, 1)
	e := newTestEvaluator(t, testutils.NewMockBuilder(), testutils.NewOracleParser(corpus))

	cfg := seededConfig(0.8, 1)
	cfg.MinCorpusSize = 200
	_, err := e.Evaluate(context.Background(), cfg, corpus)
	assert.ErrorIs(t, err, domain.ErrInsufficientCorpus)
}

func TestEvaluator_InvalidThreshold(t *testing.T) {
	corpus := testutils.GenerateCorpus(120, 1)

	for _, threshold := range []float64{0, 1, -0.5, 1.5} {
		e := newTestEvaluator(t, testutils.NewMockBuilder(), testutils.NewOracleParser(corpus))
		report, err := e.Evaluate(context.Background(), seededConfig(threshold, 1), corpus)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, domain.ErrInvalidThreshold, "threshold %v", threshold)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	}
}

func TestEvaluator_IntentModelBuildFailure(t *testing.T) {
	corpus := testutils.ScenarioCorpus()
	builder := testutils.NewMockBuilder()
	builder.IntentErr = errors.New("trainer crashed")
	parser := testutils.NewOracleParser(corpus)
	e := newTestEvaluator(t, builder, parser)

	report, err := e.Evaluate(context.Background(), seededConfig(0.8, 1), corpus)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, domain.ErrModelBuild)

	var buildErr *domain.ModelBuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, 80, buildErr.TrainingSize)
	assert.Empty(t, builder.EntityBuilds(), "entity models are not attempted")
	assert.Zero(t, parser.Calls())
}

func TestEvaluator_EntityModelBuildFailure(t *testing.T) {
	corpus := testutils.ScenarioCorpus()
	builder := testutils.NewMockBuilder().FailEntity(testutils.ScenarioIntentB, errors.New("no features"))
	metrics := testutils.NewRecordingMetrics()
	logs := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	e := newTestEvaluator(t, builder, testutils.NewOracleParser(corpus), WithLogger(logger), WithMetrics(metrics))

	report, err := e.Evaluate(context.Background(), seededConfig(0.8, 4), corpus)
	require.NoError(t, err, "entity model failures never fail the run")

	var warnings []map[string]any
	for _, entry := range logs.entries(t) {
		if entry["level"] == "WARN" {
			warnings = append(warnings, entry)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, "entity model build failed", warnings[0]["msg"])
	assert.Equal(t, testutils.ScenarioIntentB, warnings[0]["intent"])
	assert.Equal(t, 1.0, metrics.Sum("counter", "entity_model_build_failures_total"))

	// Without an entity model the intent-B items are scored as if nothing
	// had been recognized.
	testedB := countIntent(report.Tested, testutils.ScenarioIntentB)
	assert.Empty(t, report.IntentErrors)
	require.Len(t, report.EntityErrors, testedB)
	for _, m := range report.EntityErrors {
		assert.Nil(t, m.PredictedEntities)
	}
}

func TestEvaluator_EntityFailureWithoutExpectedEntities(t *testing.T) {
	corpus := testutils.ScenarioCorpus()
	builder := testutils.NewMockBuilder().FailEntity(testutils.ScenarioIntentA, errors.New("no features"))
	e := newTestEvaluator(t, builder, testutils.NewOracleParser(corpus))

	report, err := e.Evaluate(context.Background(), seededConfig(0.8, 5), corpus)
	require.NoError(t, err)
	assert.Empty(t, report.IntentErrors)
	assert.Empty(t, report.EntityErrors, "an entity-free expression matches an empty prediction")
}

func TestEvaluator_InferenceError(t *testing.T) {
	corpus := testutils.GenerateCorpus(150, 7)
	boom := errors.New("parser exploded")

	for _, concurrency := range []int{1, 8} {
		parser := testutils.NewOracleParser(corpus)
		parser.Before = func(_ context.Context, text string) error {
			if text == corpus[0].Text {
				return boom
			}
			return nil
		}
		e := newTestEvaluator(t, testutils.NewMockBuilder(), parser)

		// Put everything in the test partition except one expression so
		// corpus[0] is certainly parsed.
		cfg := seededConfig(0.001, 1)
		cfg.Concurrency = concurrency
		report, err := e.Evaluate(context.Background(), cfg, corpus)
		require.Error(t, err)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, domain.ErrInference)
		assert.ErrorIs(t, err, boom)

		var infErr *domain.InferenceError
		require.ErrorAs(t, err, &infErr)
		assert.Equal(t, corpus[0].Text, infErr.Text)
	}
}

func TestEvaluator_ParallelMatchesSequential(t *testing.T) {
	corpus := testutils.GenerateCorpus(400, 11)
	newParser := func() *testutils.OracleParser {
		p := testutils.NewOracleParser(corpus)
		p.Rewrite = func(expr domain.LabeledExpression, res domain.ParseResult) domain.ParseResult {
			switch {
			case expr.Intent == testutils.IntentGreet:
				res.Intent = testutils.IntentWeather
			case len(res.Entities) > 1:
				res.Entities = res.Entities[:1]
			}
			return res
		}
		return p
	}

	run := func(concurrency int) *domain.EvaluationReport {
		e := newTestEvaluator(t, testutils.NewMockBuilder(), newParser())
		cfg := seededConfig(0.6, 99)
		cfg.Concurrency = concurrency
		report, err := e.Evaluate(context.Background(), cfg, corpus)
		require.NoError(t, err)
		return report
	}

	sequential := run(1)
	parallel := run(16)

	require.NotEmpty(t, sequential.IntentErrors)
	require.NotEmpty(t, sequential.EntityErrors)
	assert.Equal(t, sequential.Tested, parallel.Tested)
	assert.Equal(t, sequential.IntentErrors, parallel.IntentErrors)
	assert.Equal(t, sequential.EntityErrors, parallel.EntityErrors)
}

func TestEvaluator_Cancellation(t *testing.T) {
	corpus := testutils.GenerateCorpus(200, 3)

	for _, concurrency := range []int{1, 4} {
		ctx, cancel := context.WithCancel(context.Background())
		parser := testutils.NewOracleParser(corpus)
		var once sync.Once
		parser.Before = func(context.Context, string) error {
			if parser.Calls() >= 5 {
				once.Do(cancel)
			}
			return nil
		}
		e := newTestEvaluator(t, testutils.NewMockBuilder(), parser)

		cfg := seededConfig(0.5, 1)
		cfg.Concurrency = concurrency
		report, err := e.Evaluate(ctx, cfg, corpus)
		cancel()

		require.Error(t, err)
		assert.Nil(t, report, "no partial report on cancellation")
		assert.ErrorIs(t, err, domain.ErrEvaluationAborted)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, parser.Calls(), 100)
	}
}

func TestEvaluator_CancelledBeforeBuild(t *testing.T) {
	corpus := testutils.GenerateCorpus(120, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEvaluator(t, testutils.NewMockBuilder(), testutils.NewOracleParser(corpus))
	report, err := e.Evaluate(ctx, seededConfig(0.8, 1), corpus)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, domain.ErrEvaluationAborted)
	assert.NotErrorIs(t, err, domain.ErrModelBuild)
}

func TestEvaluator_BuildContexts(t *testing.T) {
	corpus := testutils.ScenarioCorpus()
	builder := testutils.NewMockBuilder()
	e := newTestEvaluator(t, builder, testutils.NewOracleParser(corpus))

	cfg := seededConfig(0.8, 1)
	cfg.Language = "fr"
	_, err := e.Evaluate(context.Background(), cfg, corpus)
	require.NoError(t, err)

	contexts := builder.Contexts()
	require.NotEmpty(t, contexts)
	assert.Equal(t, ports.BuildContext{Application: "test-app", Language: "fr"}, contexts[0])
	for _, bc := range contexts[1:] {
		assert.Equal(t, "test-app", bc.Application)
		assert.NotEmpty(t, bc.Intent)
	}
}

func TestEvaluator_EmptyApplication(t *testing.T) {
	corpus := testutils.ScenarioCorpus()
	builder := testutils.NewMockBuilder()
	e := newTestEvaluator(t, builder, testutils.NewOracleParser(corpus))

	cfg := seededConfig(0.8, 1)
	cfg.Application = ""
	report, err := e.Evaluate(context.Background(), cfg, corpus)
	require.NoError(t, err)

	assert.Empty(t, report.IntentErrors)
	for _, bc := range builder.Contexts() {
		assert.Empty(t, bc.Application)
	}
}

func TestEvaluator_RandomPartitionsVary(t *testing.T) {
	corpus := testutils.GenerateCorpus(300, 5)
	e := newTestEvaluator(t, testutils.NewMockBuilder(), testutils.NewOracleParser(corpus))

	cfg := DefaultEvaluationConfig("test-app")
	first, err := e.Evaluate(context.Background(), cfg, corpus)
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), cfg, corpus)
	require.NoError(t, err)

	assert.Len(t, first.Tested, 60)
	assert.NotEqual(t, first.Tested, second.Tested)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestEvaluator_RecordsMetrics(t *testing.T) {
	corpus := testutils.ScenarioCorpus()
	parser := ports.ParserFunc(func(
		context.Context, ports.ParseContext, string, ports.IntentModel, map[string]ports.EntityModel,
	) (domain.ParseResult, error) {
		return domain.ParseResult{Intent: testutils.ScenarioIntentA, IntentProbability: 0.5}, nil
	})
	metrics := testutils.NewRecordingMetrics()
	e := newTestEvaluator(t, testutils.NewMockBuilder(), parser, WithMetrics(metrics))

	report, err := e.Evaluate(context.Background(), seededConfig(0.8, 6), corpus)
	require.NoError(t, err)

	assert.Equal(t, 1.0, metrics.Sum("counter", "evaluations_total"))
	assert.Equal(t, float64(len(report.IntentErrors)), metrics.Sum("counter", "intent_mismatches_total"))
	assert.Equal(t, 0.0, metrics.Sum("counter", "entity_mismatches_total"))
	assert.Len(t, metrics.Find("latency", "evaluation_build"), 1)
	assert.Len(t, metrics.Find("latency", "evaluation_test"), 1)
	assert.Len(t, metrics.Find("histogram", "intent_probability"), 20)

	accuracy := metrics.Find("gauge", "evaluation_accuracy")
	require.Len(t, accuracy, 1)
	assert.InDelta(t, report.Accuracy(), accuracy[0].Value, 1e-9)
	assert.Equal(t, "test-app", accuracy[0].Labels["application"])
}

func TestEvaluator_Clock(t *testing.T) {
	corpus := testutils.ScenarioCorpus()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	calls := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return start.Add(time.Duration(calls-1) * time.Second)
	}

	e := newTestEvaluator(t, testutils.NewMockBuilder(), testutils.NewOracleParser(corpus), WithClock(clock))
	report, err := e.Evaluate(context.Background(), seededConfig(0.8, 1), corpus)
	require.NoError(t, err)

	assert.Equal(t, start, report.StartedAt)
	assert.Equal(t, time.Second, report.BuildDuration)
	assert.Equal(t, time.Second, report.TestDuration)
}
