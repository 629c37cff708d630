package application

import (
	"github.com/ahrav/go-nlpeval/internal/ports"
)

const (
	// MinCorpusSize is the smallest corpus an evaluation accepts. Smaller
	// corpora leave too few held-out expressions for the report to mean
	// anything.
	MinCorpusSize = 100

	// DefaultThreshold is the default fraction of the corpus used for
	// model building.
	DefaultThreshold = 0.8

	// DefaultConcurrency runs inference sequentially.
	DefaultConcurrency = 1

	// DefaultLanguage is used when a configuration omits the language.
	DefaultLanguage = "en"
)

// EvaluationConfig is the immutable configuration of one evaluation run.
// Use DefaultEvaluationConfig as a starting point and override fields.
type EvaluationConfig struct {
	// Application names the application whose models are evaluated and
	// is passed through to the model builder and parser. It is opaque to
	// the evaluator and may be empty for adapters that do not use it.
	Application string `yaml:"application" validate:"omitempty,max=255"`
	// Language is the BCP 47 tag of the corpus language.
	Language string `yaml:"language" validate:"required,langtag"`
	// Threshold is the fraction of the corpus used for model building.
	// The rest is held out for testing. Must be in the open interval (0, 1).
	Threshold float64 `yaml:"threshold" validate:"gt=0,lt=1"`
	// MinCorpusSize overrides the minimum corpus size. It can only be
	// raised above MinCorpusSize, never lowered.
	MinCorpusSize int `yaml:"min_corpus_size" validate:"omitempty,min=100"`
	// Concurrency bounds the number of parse calls in flight during the
	// test phase. 1 runs inference sequentially.
	Concurrency int `yaml:"concurrency" validate:"omitempty,min=1,max=256"`
	// Seed pins the shuffle used to partition the corpus. When nil every
	// run draws a fresh random partition.
	Seed *uint64 `yaml:"seed,omitempty"`
}

// DefaultEvaluationConfig returns a configuration with the default
// threshold, language and concurrency for the given application.
func DefaultEvaluationConfig(application string) EvaluationConfig {
	return EvaluationConfig{
		Application:   application,
		Language:      DefaultLanguage,
		Threshold:     DefaultThreshold,
		MinCorpusSize: MinCorpusSize,
		Concurrency:   DefaultConcurrency,
	}
}

// withDefaults fills zero-valued optional fields. Threshold is left alone
// so that a missing threshold is reported rather than silently defaulted.
func (c EvaluationConfig) withDefaults() EvaluationConfig {
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.MinCorpusSize == 0 {
		c.MinCorpusSize = MinCorpusSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// BuildContext returns the context handed to the model builder.
func (c EvaluationConfig) BuildContext() ports.BuildContext {
	return ports.BuildContext{
		Application: c.Application,
		Language:    c.Language,
	}
}

// ParseContext returns the context handed to the parser.
func (c EvaluationConfig) ParseContext() ports.ParseContext {
	return ports.ParseContext{
		Application: c.Application,
		Language:    c.Language,
	}
}

// RunConfig is the file-level configuration consumed by the command line
// tool. It selects the classifier adapter and the ambient services around
// an evaluation.
type RunConfig struct {
	// Evaluation holds the harness parameters.
	Evaluation EvaluationConfig `yaml:"evaluation" validate:"required"`
	// Classifier selects and configures the model builder and parser.
	Classifier ClassifierConfig `yaml:"classifier" validate:"required"`
	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// ClassifierConfig selects the adapter that builds models and parses text.
type ClassifierConfig struct {
	// Type is the adapter to use.
	Type string `yaml:"type" validate:"required,oneof=baseline openai anthropic google"`
	// Baseline configures the nearest-neighbour adapter.
	Baseline BaselineConfig `yaml:"baseline"`
	// LLM configures the few-shot adapter used by the openai, anthropic
	// and google types.
	LLM LLMConfig `yaml:"llm"`
	// RateLimit caps parse calls per second. Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"omitempty,gt=0"`
	// Burst is the number of parse calls allowed above RateLimit at once.
	Burst int `yaml:"burst" validate:"omitempty,min=1,max=1000"`
	// MaxCalls caps the parse calls of one run. Calls past the cap fail
	// with a budget error. Zero means unlimited.
	MaxCalls int64 `yaml:"max_calls" validate:"omitempty,min=1"`
}

// BaselineConfig tunes the nearest-neighbour classifier.
type BaselineConfig struct {
	// CaseSensitive disables Unicode case folding before comparison.
	CaseSensitive bool `yaml:"case_sensitive"`
	// UnknownIntent is predicted when no training expression is close
	// enough. Empty means the nearest neighbour always wins.
	UnknownIntent string `yaml:"unknown_intent"`
	// MinSimilarity is the similarity below which UnknownIntent is predicted.
	MinSimilarity float64 `yaml:"min_similarity" validate:"min=0,max=1"`
}

// UsesLLM reports whether Type selects a few-shot adapter backed by a
// hosted model.
func (c ClassifierConfig) UsesLLM() bool {
	_, ok := defaultAPIKeyEnv[c.Type]
	return ok
}

// defaultAPIKeyEnv maps LLM classifier types to the environment variable
// their API key is read from when api_key_env is unset.
var defaultAPIKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GEMINI_API_KEY",
}

// LLMConfig configures the few-shot adapter.
type LLMConfig struct {
	// Model is the chat model to call.
	Model string `yaml:"model" validate:"omitempty,min=1,max=100"`
	// BaseURL overrides the API endpoint, e.g. for a local
	// OpenAI-compatible server.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env" validate:"omitempty,min=1"`
	// ExamplesPerIntent caps the few-shot examples kept per intent.
	ExamplesPerIntent int `yaml:"examples_per_intent" validate:"omitempty,min=1,max=50"`
	// TimeoutSeconds bounds each request.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"omitempty,min=1,max=600"`
	// MaxRetries is the number of retries after a transient failure.
	MaxRetries int `yaml:"max_retries" validate:"omitempty,min=0,max=10"`
	// UnknownIntent replaces answers naming an intent the model was not
	// built with. Empty keeps such answers as they are.
	UnknownIntent string `yaml:"unknown_intent"`
}

// MetricsConfig configures metrics exposition.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// applyDefaults fills optional fields of a run configuration.
func (c *RunConfig) applyDefaults() {
	c.Evaluation = c.Evaluation.withDefaults()
	if c.Evaluation.Threshold == 0 {
		c.Evaluation.Threshold = DefaultThreshold
	}
	if c.Classifier.Type == "" {
		c.Classifier.Type = "baseline"
	}
	if c.Classifier.RateLimit > 0 && c.Classifier.Burst == 0 {
		c.Classifier.Burst = 1
	}
	if c.Classifier.LLM.APIKeyEnv == "" {
		c.Classifier.LLM.APIKeyEnv = defaultAPIKeyEnv[c.Classifier.Type]
	}
	if c.Classifier.LLM.TimeoutSeconds == 0 {
		c.Classifier.LLM.TimeoutSeconds = 60
	}
}
