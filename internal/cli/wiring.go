package cli

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-nlpeval/infrastructure/classifier"
	"github.com/ahrav/go-nlpeval/infrastructure/llm"
	"github.com/ahrav/go-nlpeval/infrastructure/middleware"
	"github.com/ahrav/go-nlpeval/infrastructure/store"
	"github.com/ahrav/go-nlpeval/internal/application"
	"github.com/ahrav/go-nlpeval/internal/ports"
)

const (
	retryBaseDelay  = 500 * time.Millisecond
	retryMaxDelay   = 10 * time.Second
	breakerFailures = 5
	breakerCooldown = 30 * time.Second
)

// components are the adapters one classifier type provides.
type components struct {
	builder ports.ModelBuilder
	parser  ports.Parser
	codec   store.ModelCodec
}

// deps are the ambient services handed to the adapters.
type deps struct {
	metrics ports.MetricsCollector
	tp      trace.TracerProvider
	getenv  func(string) string
}

// newComponents builds the model builder, parser and codec selected by cfg.
// The parser is wrapped with the parse middleware: a rate limit for local
// classifiers and a call budget with metrics and tracing for every type.
func newComponents(cfg application.ClassifierConfig, d deps) (*components, error) {
	var c components
	switch cfg.Type {
	case "baseline":
		b, err := classifier.NewBaseline(classifier.BaselineConfig{
			CaseSensitive: cfg.Baseline.CaseSensitive,
			UnknownIntent: cfg.Baseline.UnknownIntent,
			MinSimilarity: cfg.Baseline.MinSimilarity,
		})
		if err != nil {
			return nil, fmt.Errorf("create baseline classifier: %w", err)
		}
		c = components{builder: b, parser: b, codec: b}

	case "openai", "anthropic", "google":
		client, err := newLLMClient(cfg, d)
		if err != nil {
			return nil, err
		}
		fsCfg := classifier.DefaultFewShotConfig()
		if cfg.LLM.ExamplesPerIntent > 0 {
			fsCfg.ExamplesPerIntent = cfg.LLM.ExamplesPerIntent
		}
		fsCfg.UnknownIntent = cfg.LLM.UnknownIntent
		f, err := classifier.NewFewShot(client, fsCfg)
		if err != nil {
			return nil, fmt.Errorf("create few-shot classifier: %w", err)
		}
		c = components{builder: f, parser: f, codec: f}

	default:
		return nil, fmt.Errorf("unknown classifier type %q", cfg.Type)
	}

	// LLM clients limit requests themselves so retries are counted.
	if cfg.RateLimit > 0 && !cfg.UsesLLM() {
		c.parser = middleware.NewRateLimitedParser(c.parser, rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	c.parser = middleware.NewBudgetedParser(
		middleware.Budget{MaxCalls: cfg.MaxCalls},
		c.parser,
		middleware.NewOTelParseObserver(d.metrics, d.tp, cfg.Type),
	)
	return &c, nil
}

// newLLMClient creates the client of the provider named by cfg.Type for
// the few-shot classifier. Middleware runs outermost first: tracing,
// metrics, retry, circuit breaker, rate limit, then the per-attempt timeout.
func newLLMClient(cfg application.ClassifierConfig, d deps) (*llm.Client, error) {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second

	mw := []llm.Middleware{
		llm.TracingMiddleware(d.tp),
		llm.MetricsMiddleware(d.metrics, cfg.Type),
		llm.RetryMiddleware(cfg.LLM.MaxRetries, retryBaseDelay, retryMaxDelay),
		llm.CircuitBreakerMiddleware(breakerFailures, breakerCooldown),
	}
	if cfg.RateLimit > 0 {
		mw = append(mw, llm.RateLimitMiddleware(rate.Limit(cfg.RateLimit), cfg.Burst))
	}
	if timeout > 0 {
		mw = append(mw, llm.TimeoutMiddleware(timeout))
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Provider:   cfg.Type,
		APIKey:     d.getenv(cfg.LLM.APIKeyEnv),
		Model:      cfg.LLM.Model,
		BaseURL:    cfg.LLM.BaseURL,
		Timeout:    timeout,
		Middleware: mw,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return client, nil
}
