// Package llm provides the chat completion transport behind the few-shot
// classifier. A provider implementation sits behind the CoreLLM interface
// and is wrapped by middleware for retries, rate limiting, circuit
// breaking, timeouts, metrics and tracing.
//
// Basic usage:
//
//	client, err := llm.NewClient(llm.ClientConfig{
//	    Provider: "openai",
//	    APIKey:   os.Getenv("OPENAI_API_KEY"),
//	    Model:    "gpt-4o-mini",
//	    Middleware: []llm.Middleware{
//	        llm.RetryMiddleware(3, time.Second, 30*time.Second),
//	        llm.RateLimitMiddleware(5, 1),
//	    },
//	})
//	response, err := client.Complete(ctx, "Classify: book a table", nil)
package llm

import (
	"context"
	"fmt"
	"time"
)

// CoreLLM defines the minimal interface that chat completion providers
// must implement so the middleware chain can wrap them.
type CoreLLM interface {
	// DoRequest sends a prompt to the provider and returns the response.
	// The opts parameter carries request options such as "system",
	// "temperature", "max_tokens" or "json".
	// Returns the response text, input token count, output token count, and any error.
	DoRequest(
		ctx context.Context,
		prompt string,
		opts map[string]any,
	) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	// GetModel returns the model requests are sent to.
	GetModel() string
}

// ClientConfig holds all configuration options for creating a client.
type ClientConfig struct {
	// Provider selects a registered provider factory. Empty selects "openai".
	Provider string

	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies which model to use for requests.
	Model string

	// BaseURL overrides the default API endpoint for the provider, e.g. to
	// target a local OpenAI-compatible server.
	BaseURL string

	// Timeout sets the maximum duration of the underlying HTTP exchange.
	// Zero value means no timeout.
	Timeout time.Duration

	// Middleware is applied in the order specified; the first entry is the
	// outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting functionality.
type Middleware func(CoreLLM) CoreLLM

// Client sends prompts through a provider and its middleware chain.
// It is safe for concurrent use when the provider and middleware are.
type Client struct {
	core CoreLLM
}

// NewClient creates a client for the configured provider and wraps it with
// the configured middleware.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	providerType := config.Provider
	if providerType == "" {
		providerType = "openai"
	}
	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return NewClientWithCore(core, config.Middleware...), nil
}

// NewClientWithCore wraps an existing CoreLLM with middleware.
func NewClientWithCore(core CoreLLM, middleware ...Middleware) *Client {
	return &Client{core: Chain(core, middleware...)}
}

// Chain applies middleware in reverse order so the first middleware is the
// outermost.
func Chain(core CoreLLM, middleware ...Middleware) CoreLLM {
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return core
}

// Complete sends a prompt and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.core.DoRequest(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and also returns token usage.
func (c *Client) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// GetModel returns the model of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// providerFactories holds the providers NewClient can create.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under providerType.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
