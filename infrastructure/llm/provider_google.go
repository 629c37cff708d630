package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"google.golang.org/genai"
)

// GoogleDefaultModel is used when a configuration names no model.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM for the Gemini API.
type googleProvider struct {
	model           string
	client          *genai.Client
	errorClassifier *ErrorClassifier
}

// newGoogleProvider creates a provider authenticated with a Gemini API key.
func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.HTTPOptions.BaseURL = validatedURL
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		model:           model,
		client:          client,
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// GetModel implements CoreLLM.
func (p *googleProvider) GetModel() string { return p.model }

// DoRequest implements CoreLLM.
func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.model)

	resp, err := p.client.Models.GenerateContent(ctx, options.Model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		p.buildGenerationConfig(options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		message := "no candidates"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			message = fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", 0, 0, p.errorClassifier.ClassifyHTTPError("generate_content", 0, message, ErrNoResponseChoice)
	}

	var tokensIn, tokensOut int
	if usage := resp.UsageMetadata; usage != nil {
		tokensIn = int(usage.PromptTokenCount)
		tokensOut = int(usage.CandidatesTokenCount)
	}
	return content, tokensIn, tokensOut, nil
}

// buildGenerationConfig maps request options onto the Gemini generation
// config. The system prompt travels as a system instruction and JSON mode
// as the response MIME type.
func (p *googleProvider) buildGenerationConfig(options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if options.Temperature != nil {
		temp := ClampFloat64(*options.Temperature, MinTemperature, MaxTemperature)
		config.Temperature = genai.Ptr(float32(temp))
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(min(options.MaxTokens, math.MaxInt32))
	}
	if options.System != "" {
		config.SystemInstruction = genai.NewContentFromText(options.System, genai.RoleUser)
	}
	if options.JSON {
		config.ResponseMIMEType = "application/json"
	}
	return config
}

// handleError classifies errors from the Gemini API.
func (p *googleProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError("generate_content", err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return p.errorClassifier.ClassifyHTTPError("generate_content", apiErr.Code, apiErrorMessage(apiErr), err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return p.errorClassifier.ClassifyHTTPError("generate_content", apiErrPtr.Code, apiErrorMessage(*apiErrPtr), err)
	}

	return p.errorClassifier.ClassifyHTTPError("generate_content", 0, "request failed", err)
}

func apiErrorMessage(apiErr genai.APIError) string {
	if apiErr.Message != "" {
		return apiErr.Message
	}
	if apiErr.Status != "" {
		return apiErr.Status
	}
	return "unknown error"
}
