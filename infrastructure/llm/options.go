package llm

// DefaultMaxTokens bounds responses when a request does not say otherwise.
const DefaultMaxTokens = 512

// RequestOptions is the standardized set of request parameters parsed
// from the generic options map.
type RequestOptions struct {
	// MaxTokens specifies the maximum number of tokens to generate.
	MaxTokens int
	// Model is the identifier of the model to use for the request.
	Model string
	// Temperature controls the randomness of the output. A nil value
	// leaves the provider default in place.
	Temperature *float64
	// System provides instructions that precede the user prompt.
	System string
	// JSON asks the provider to constrain the response to a JSON object.
	JSON bool
}

// ParseRequestOptions extracts request parameters from opts, using
// defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractOptional(opts, "max_tokens", DefaultMaxTokens, func(v int) bool { return v > 0 }),
		Model:     extractOptional(opts, "model", defaultModel, func(v string) bool { return v != "" }),
		System:    extractOptional(opts, "system", "", nil),
		JSON:      extractOptional(opts, "json", false, nil),
	}
	if temp := extractOptional(opts, "temperature", -1.0, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}
	return options
}

// extractOptional returns opts[key] when it holds a T accepted by valid,
// and defaultVal otherwise.
func extractOptional[T any](opts map[string]any, key string, defaultVal T, valid func(T) bool) T {
	raw, ok := opts[key]
	if !ok {
		return defaultVal
	}
	val, ok := raw.(T)
	if !ok {
		return defaultVal
	}
	if valid != nil && !valid(val) {
		return defaultVal
	}
	return val
}
