package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-nlpeval/internal/ports"
)

var _ ParseObserver = (*OTelParseObserver)(nil)

// OTelParseObserver traces each parse call as a span and reports its
// duration and outcome to a metrics collector. It keeps no per-call state,
// so one observer serves concurrent calls.
type OTelParseObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
	engine  string
}

// NewOTelParseObserver creates an observer for the named inference engine.
// A nil provider selects the global tracer provider; metrics may be nil.
func NewOTelParseObserver(metrics ports.MetricsCollector, tp trace.TracerProvider, engine string) *OTelParseObserver {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OTelParseObserver{
		metrics: metrics,
		tracer:  tp.Tracer("parse-middleware"),
		engine:  engine,
	}
}

// PreParse implements ParseObserver.
func (o *OTelParseObserver) PreParse(ctx context.Context, call int64, budget Budget) context.Context {
	ctx, span := o.tracer.Start(ctx, "Parser.Parse",
		trace.WithAttributes(
			attribute.String("parse.engine", o.engine),
			attribute.Int64("parse.call", call),
		),
	)
	if budget.MaxCalls > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_calls", budget.MaxCalls),
			attribute.Int64("budget.remaining_calls", max(budget.MaxCalls-call, 0)),
		)
		o.checkBudgetThresholds(span, call, budget)
	}
	return ctx
}

// PostParse implements ParseObserver.
func (o *OTelParseObserver) PostParse(ctx context.Context, call int64, budget Budget, elapsed time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	labels := map[string]string{"engine": o.engine, "status": "success"}

	var budgetErr *BudgetExceededError
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.As(err, &budgetErr):
		labels["status"] = "budget_exceeded"
		span.AddEvent("budget.exceeded", trace.WithAttributes(
			attribute.Int64("limit_value", budgetErr.Limit),
			attribute.Int64("used_value", budgetErr.Used),
		))
		span.SetStatus(codes.Error, "parse budget exceeded")
	default:
		labels["status"] = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if o.metrics == nil {
		return
	}
	o.metrics.RecordLatency("parse", elapsed, labels)
	o.metrics.RecordCounter("parse_calls_total", 1, labels)
	if budget.MaxCalls > 0 {
		o.metrics.RecordGauge("parse_budget_remaining_calls", float64(max(budget.MaxCalls-call, 0)), map[string]string{"engine": o.engine})
	}
}

// checkBudgetThresholds adds warning events as the budget runs low.
func (o *OTelParseObserver) checkBudgetThresholds(span trace.Span, call int64, budget Budget) {
	const warningThreshold = 0.8
	const criticalThreshold = 0.9

	usage := float64(call) / float64(budget.MaxCalls)
	switch {
	case usage >= criticalThreshold:
		span.AddEvent("budget.threshold.critical", trace.WithAttributes(
			attribute.Float64("usage_percentage", usage*100),
		))
	case usage >= warningThreshold:
		span.AddEvent("budget.threshold.warning", trace.WithAttributes(
			attribute.Float64("usage_percentage", usage*100),
		))
	}
}
