package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/ports"
)

// Evaluator measures how well a classifier predicts intents and entities.
// It samples a corpus, builds an intent model and per-intent entity models
// from the training partition, parses the held-out partition and reports
// every intent and entity mismatch.
//
// An Evaluator holds no per-run state and may run several evaluations
// concurrently as long as its collaborators allow it.
type Evaluator struct {
	builder ports.ModelBuilder
	parser  ports.Parser
	logger  *slog.Logger
	metrics ports.MetricsCollector
	tracer  trace.Tracer
	sampler *Sampler
	now     func() time.Time
	newID   func() string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger that receives run summaries and one warning
// per failed entity model build.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithMetrics sets the collector for run durations and mismatch counts.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(e *Evaluator) { e.metrics = metrics }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Evaluator) { e.tracer = tracer }
}

// WithRandSource sets the randomness used to partition corpora when the
// configuration does not pin a seed.
func WithRandSource(rng RandSource) Option {
	return func(e *Evaluator) { e.sampler = NewSampler(rng) }
}

// WithClock overrides time.Now for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithRunIDGenerator overrides how report run IDs are generated.
func WithRunIDGenerator(newID func() string) Option {
	return func(e *Evaluator) { e.newID = newID }
}

// NewEvaluator creates an Evaluator around a model builder and a parser.
// NewEvaluator returns an error if either collaborator is nil.
func NewEvaluator(builder ports.ModelBuilder, parser ports.Parser, opts ...Option) (*Evaluator, error) {
	if builder == nil {
		return nil, fmt.Errorf("model builder cannot be nil")
	}
	if parser == nil {
		return nil, fmt.Errorf("parser cannot be nil")
	}

	e := &Evaluator{
		builder: builder,
		parser:  parser,
		logger:  slog.Default(),
		tracer:  otel.Tracer("evaluator"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sampler == nil {
		e.sampler = NewSampler(nil)
	}
	e.logger = e.logger.With("component", "evaluator")
	return e, nil
}

// run tracks the phase of one evaluation.
type run struct {
	id     string
	phase  domain.Phase
	span   trace.Span
	logger *slog.Logger
}

// advance moves the run to next. An illegal transition is a programming
// error in the evaluator and panics.
func (r *run) advance(next domain.Phase) {
	if !r.phase.CanTransitionTo(next) {
		panic(fmt.Sprintf("evaluator: illegal phase transition %s -> %s", r.phase, next))
	}
	r.phase = next
	r.span.AddEvent("phase."+next.String())
	r.logger.Debug("phase changed", "phase", next.String())
}

// Evaluate runs one evaluation of corpus under cfg.
//
// Evaluate returns a *domain.ConfigurationError when the configuration is
// invalid or the corpus is smaller than the minimum, a
// *domain.ModelBuildError when the intent model cannot be built, and a
// *domain.InferenceError when parsing a test expression fails. Entity
// model failures are logged and never returned. If ctx is cancelled the
// returned error matches domain.ErrEvaluationAborted. No report is
// returned alongside an error.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	cfg EvaluationConfig,
	corpus []domain.LabeledExpression,
) (*domain.EvaluationReport, error) {
	cfg = cfg.withDefaults()
	if err := ValidateEvaluationConfig(cfg); err != nil {
		return nil, err
	}
	if len(corpus) < cfg.MinCorpusSize {
		return nil, domain.NewConfigurationError("corpus", fmt.Errorf(
			"%w: at least %d expressions needed, got %d",
			domain.ErrInsufficientCorpus, cfg.MinCorpusSize, len(corpus)))
	}

	ctx, span := e.tracer.Start(ctx, "Evaluator.Evaluate",
		trace.WithAttributes(
			attribute.String("evaluation.application", cfg.Application),
			attribute.String("evaluation.language", cfg.Language),
			attribute.Float64("evaluation.threshold", cfg.Threshold),
			attribute.Int("evaluation.corpus_size", len(corpus)),
			attribute.Int("evaluation.concurrency", cfg.Concurrency),
		),
	)
	defer span.End()

	r := &run{id: e.newID(), phase: domain.PhaseInitialized, span: span}
	r.logger = e.logger.With("run_id", r.id, "application", cfg.Application)
	span.SetAttributes(attribute.String("evaluation.run_id", r.id))

	startedAt := e.now()

	train, test := e.samplerFor(cfg).Split(corpus, cfg.Threshold)
	r.advance(domain.PhaseSampled)

	bc := cfg.BuildContext()
	intentModel, err := e.buildIntentModel(ctx, bc, train)
	if err != nil {
		r.advance(domain.PhaseAborted)
		return nil, e.fail(span, r, err)
	}
	r.advance(domain.PhaseIntentModelBuilt)

	entityModels := e.buildEntityModels(ctx, r, bc, train)
	r.advance(domain.PhaseEntityModelsBuilt)

	builtAt := e.now()
	buildDuration := builtAt.Sub(startedAt)

	r.advance(domain.PhaseTesting)
	results, err := e.parseAll(ctx, cfg, test, intentModel, entityModels)
	if err != nil {
		return nil, e.fail(span, r, err)
	}
	intentErrors, entityErrors := score(test, results, entityModels)

	testDuration := e.now().Sub(builtAt)

	report := domain.NewEvaluationReport(
		r.id,
		corpus,
		test,
		intentErrors,
		entityErrors,
		buildDuration,
		testDuration,
		startedAt,
	)
	r.advance(domain.PhaseReported)

	span.SetAttributes(
		attribute.Int("evaluation.tested", report.TestedCount()),
		attribute.Int("evaluation.intent_errors", len(report.IntentErrors)),
		attribute.Int("evaluation.entity_errors", len(report.EntityErrors)),
	)
	span.SetStatus(codes.Ok, "evaluation completed")
	e.recordReport(cfg, report)

	r.logger.Info("evaluation completed",
		"corpus_size", report.CorpusSize(),
		"tested", report.TestedCount(),
		"intent_errors", len(report.IntentErrors),
		"entity_errors", len(report.EntityErrors),
		"accuracy", report.Accuracy(),
		"build_duration", buildDuration,
		"test_duration", testDuration,
	)
	return report, nil
}

// samplerFor returns a seeded sampler when the configuration pins a seed
// and the evaluator's sampler otherwise.
func (e *Evaluator) samplerFor(cfg EvaluationConfig) *Sampler {
	if cfg.Seed != nil {
		return NewSeededSampler(*cfg.Seed)
	}
	return e.sampler
}

// fail records err on the run span and log and returns it unchanged.
func (e *Evaluator) fail(span trace.Span, r *run, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.logger.Error("evaluation failed", "phase", r.phase.String(), "error", err)
	return err
}

func (e *Evaluator) buildIntentModel(
	ctx context.Context,
	bc ports.BuildContext,
	train []domain.LabeledExpression,
) (ports.IntentModel, error) {
	ctx, span := e.tracer.Start(ctx, "Evaluator.buildIntentModel",
		trace.WithAttributes(attribute.Int("build.expressions", len(train))))
	defer span.End()

	model, err := e.builder.BuildIntentModel(ctx, bc, train)
	if err == nil && model == nil {
		err = errors.New("builder returned no intent model")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, aborted(ctxErr)
		}
		return nil, domain.NewModelBuildError(len(train), err)
	}
	return model, nil
}

// intentGroup is the slice of the training partition declaring one intent.
type intentGroup struct {
	intent      string
	expressions []domain.LabeledExpression
}

// groupByIntent groups expressions by declared intent, keeping intents in
// the order they first appear.
func groupByIntent(expressions []domain.LabeledExpression) []intentGroup {
	index := make(map[string]int)
	var groups []intentGroup
	for _, expr := range expressions {
		i, ok := index[expr.Intent]
		if !ok {
			i = len(groups)
			index[expr.Intent] = i
			groups = append(groups, intentGroup{intent: expr.Intent})
		}
		groups[i].expressions = append(groups[i].expressions, expr)
	}
	return groups
}

// entityModelResult is the outcome of building one intent's entity model.
// Exactly one of model and err is set.
type entityModelResult struct {
	intent string
	model  ports.EntityModel
	err    error
}

// buildEntityModels builds an entity model for every intent of the training
// partition. Failed builds are logged and left out of the returned map.
func (e *Evaluator) buildEntityModels(
	ctx context.Context,
	r *run,
	bc ports.BuildContext,
	train []domain.LabeledExpression,
) map[string]ports.EntityModel {
	ctx, span := e.tracer.Start(ctx, "Evaluator.buildEntityModels")
	defer span.End()

	groups := groupByIntent(train)
	results := make([]entityModelResult, 0, len(groups))
	for _, g := range groups {
		// Cancellation is reported by the test phase.
		if ctx.Err() != nil {
			break
		}
		model, err := e.builder.BuildEntityModel(ctx, bc.ForIntent(g.intent), g.intent, g.expressions)
		if err == nil && model == nil {
			err = errors.New("builder returned no entity model")
		}
		if err != nil {
			results = append(results, entityModelResult{intent: g.intent, err: domain.NewEntityModelBuildError(g.intent, err)})
			continue
		}
		results = append(results, entityModelResult{intent: g.intent, model: model})
	}

	models := make(map[string]ports.EntityModel, len(results))
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			r.logger.Warn("entity model build failed", "intent", res.intent, "error", res.err)
			span.AddEvent("entity_model.failed", trace.WithAttributes(attribute.String("intent", res.intent)))
			e.recordCounter("entity_model_build_failures_total", 1, map[string]string{
				"application": bc.Application,
				"intent":      res.intent,
			})
			continue
		}
		models[res.intent] = res.model
	}

	span.SetAttributes(
		attribute.Int("build.intents", len(groups)),
		attribute.Int("build.failed", failed),
	)
	return models
}

// parseAll parses every test expression and returns the results aligned
// with test. With a concurrency above one the calls run in parallel but
// results still land at their partition index.
func (e *Evaluator) parseAll(
	ctx context.Context,
	cfg EvaluationConfig,
	test []domain.LabeledExpression,
	intentModel ports.IntentModel,
	entityModels map[string]ports.EntityModel,
) ([]domain.ParseResult, error) {
	ctx, span := e.tracer.Start(ctx, "Evaluator.parseAll",
		trace.WithAttributes(attribute.Int("test.expressions", len(test))))
	defer span.End()

	pc := cfg.ParseContext()
	results := make([]domain.ParseResult, len(test))

	parseOne := func(ctx context.Context, i int) error {
		res, err := e.parser.Parse(ctx, pc, test[i].Text, intentModel, entityModels)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return aborted(ctxErr)
			}
			return domain.NewInferenceError(i, test[i].Text, err)
		}
		results[i] = res
		e.recordHistogram("intent_probability", res.IntentProbability, map[string]string{
			"application": cfg.Application,
		})
		return nil
	}

	if cfg.Concurrency <= 1 {
		for i := range test {
			if err := ctx.Err(); err != nil {
				return nil, aborted(err)
			}
			if err := parseOne(ctx, i); err != nil {
				return nil, err
			}
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i := range test {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return aborted(err)
			}
			return parseOne(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancellation that raced the last call still aborts the run.
	if err := ctx.Err(); err != nil {
		return nil, aborted(err)
	}
	return results, nil
}

func aborted(cause error) error {
	return fmt.Errorf("%w: %w", domain.ErrEvaluationAborted, cause)
}

// score classifies each parse result. A wrong intent short-circuits entity
// comparison. An intent without an entity model is scored as if nothing
// had been recognized.
func score(
	test []domain.LabeledExpression,
	results []domain.ParseResult,
	entityModels map[string]ports.EntityModel,
) ([]domain.IntentMismatch, []domain.EntityMismatch) {
	var intentErrors []domain.IntentMismatch
	var entityErrors []domain.EntityMismatch

	for i, expr := range test {
		res := results[i]
		if res.Intent != expr.Intent {
			intentErrors = append(intentErrors, domain.IntentMismatch{
				Expression:      expr,
				PredictedIntent: res.Intent,
				Probability:     res.IntentProbability,
			})
			continue
		}

		predicted := res.Entities
		if _, ok := entityModels[expr.Intent]; !ok {
			predicted = nil
		}
		if domain.EntitiesDiffer(expr.Entities, predicted) {
			entityErrors = append(entityErrors, domain.EntityMismatch{
				Expression:        expr,
				PredictedEntities: predicted,
			})
		}
	}
	return intentErrors, entityErrors
}

// recordReport publishes the outcome of a finished run.
func (e *Evaluator) recordReport(cfg EvaluationConfig, report *domain.EvaluationReport) {
	if e.metrics == nil {
		return
	}
	labels := map[string]string{"application": cfg.Application}
	e.metrics.RecordLatency("evaluation_build", report.BuildDuration, labels)
	e.metrics.RecordLatency("evaluation_test", report.TestDuration, labels)
	e.metrics.RecordCounter("intent_mismatches_total", float64(len(report.IntentErrors)), labels)
	e.metrics.RecordCounter("entity_mismatches_total", float64(len(report.EntityErrors)), labels)
	e.metrics.RecordCounter("evaluations_total", 1, labels)
	e.metrics.RecordGauge("evaluation_tested_expressions", float64(report.TestedCount()), labels)
	e.metrics.RecordGauge("evaluation_accuracy", report.Accuracy(), labels)
}

func (e *Evaluator) recordCounter(metric string, value float64, labels map[string]string) {
	if e.metrics != nil {
		e.metrics.RecordCounter(metric, value, labels)
	}
}

func (e *Evaluator) recordHistogram(metric string, value float64, labels map[string]string) {
	if e.metrics != nil {
		e.metrics.RecordHistogram(metric, value, labels)
	}
}
