package ports

import (
	"context"
	"time"
)

// ModelStore persists built models so maintenance jobs can skip rebuilds
// and clean up models whose intents no longer exist.
// Keys are (application, language) for intent models and
// (application, language, intent) for entity models.
type ModelStore interface {
	// IntentModelExists reports whether an intent model is stored for the
	// context's application and language.
	IntentModelExists(ctx context.Context, bc BuildContext) (bool, error)

	// EntityModelExists reports whether an entity model is stored for the
	// context's application, language and intent.
	EntityModelExists(ctx context.Context, bc BuildContext) (bool, error)

	// SaveIntentModel stores or replaces the intent model.
	SaveIntentModel(ctx context.Context, bc BuildContext, model IntentModel) error

	// SaveEntityModel stores or replaces the entity model for bc.Intent.
	SaveEntityModel(ctx context.Context, bc BuildContext, model EntityModel) error

	// LoadIntentModel returns the stored intent model, or ErrModelNotFound.
	LoadIntentModel(ctx context.Context, bc BuildContext) (IntentModel, error)

	// LoadEntityModels returns every stored entity model for the context's
	// application and language, keyed by intent.
	LoadEntityModels(ctx context.Context, bc BuildContext) (map[string]EntityModel, error)

	// DeleteOrphans removes every model whose application is not a key of
	// keep, and every entity model whose intent is not listed for its
	// application. It returns the number of models removed.
	DeleteOrphans(ctx context.Context, keep map[string][]string) (int, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like mismatches, failures, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like partition sizes or accuracy.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like intent probabilities.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
