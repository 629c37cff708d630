package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nlpeval/internal/ports"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

// generateContentRequest captures the fields of a generateContent request
// the tests assert on.
type generateContentRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction"`
	GenerationConfig  struct {
		Temperature      *float64 `json:"temperature"`
		MaxOutputTokens  int      `json:"maxOutputTokens"`
		ResponseMIMEType string   `json:"responseMimeType"`
	} `json:"generationConfig"`
}

// newGoogleTestServer serves the Gemini API with handler and returns a
// provider pointed at it.
func newGoogleTestServer(t *testing.T, handler http.HandlerFunc) CoreLLM {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := newGoogleProvider(ClientConfig{
		APIKey:  "test-key",
		Model:   "gemini-2.0-flash",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return provider
}

func writeGeneratedContent(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]string{{"text": text}},
			},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]int{"promptTokenCount": 12, "candidatesTokenCount": 7, "totalTokenCount": 19},
	})
	require.NoError(t, err)
}

func TestGoogleProvider_DoRequest(t *testing.T) {
	tests := []struct {
		name   string
		opts   map[string]any
		verify func(t *testing.T, req generateContentRequest)
	}{
		{
			name: "plain prompt",
			opts: nil,
			verify: func(t *testing.T, req generateContentRequest) {
				require.Len(t, req.Contents, 1)
				assert.Equal(t, "user", req.Contents[0].Role)
				require.Len(t, req.Contents[0].Parts, 1)
				assert.Equal(t, "classify this", req.Contents[0].Parts[0].Text)
				assert.Nil(t, req.SystemInstruction)
				assert.Equal(t, DefaultMaxTokens, req.GenerationConfig.MaxOutputTokens)
				assert.Empty(t, req.GenerationConfig.ResponseMIMEType)
				assert.Nil(t, req.GenerationConfig.Temperature)
			},
		},
		{
			name: "system instruction and json mode",
			opts: map[string]any{"system": "you label intents", "json": true, "temperature": 0.5, "max_tokens": 64},
			verify: func(t *testing.T, req generateContentRequest) {
				require.NotNil(t, req.SystemInstruction)
				require.Len(t, req.SystemInstruction.Parts, 1)
				assert.Equal(t, "you label intents", req.SystemInstruction.Parts[0].Text)
				assert.Equal(t, "application/json", req.GenerationConfig.ResponseMIMEType)
				require.NotNil(t, req.GenerationConfig.Temperature)
				assert.InDelta(t, 0.5, *req.GenerationConfig.Temperature, 1e-6)
				assert.Equal(t, 64, req.GenerationConfig.MaxOutputTokens)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got generateContentRequest
			provider := newGoogleTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent"), r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				writeGeneratedContent(t, w, `{"intent":"greet"}`)
			})

			response, tokensIn, tokensOut, err := provider.DoRequest(context.Background(), "classify this", tt.opts)

			require.NoError(t, err)
			assert.Equal(t, `{"intent":"greet"}`, response)
			assert.Equal(t, 12, tokensIn)
			assert.Equal(t, 7, tokensOut)
			tt.verify(t, got)
		})
	}
}

func TestGoogleProvider_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		apiStatus string
		wantErr   error
		retryable bool
	}{
		{name: "forbidden", status: http.StatusForbidden, apiStatus: "PERMISSION_DENIED", wantErr: ports.ErrAuthenticationFailed},
		{name: "rate limited", status: http.StatusTooManyRequests, apiStatus: "RESOURCE_EXHAUSTED", wantErr: ports.ErrRateLimited, retryable: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, apiStatus: "UNAVAILABLE", wantErr: ports.ErrServiceUnavailable, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newGoogleTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"code": tt.status, "message": "nope", "status": tt.apiStatus},
				})
			})

			_, _, _, err := provider.DoRequest(context.Background(), "hi", nil)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			var perr *ports.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "google", perr.Provider)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestGoogleProvider_BlockedPrompt(t *testing.T) {
	provider := newGoogleTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	_, _, _, err := provider.DoRequest(context.Background(), "hi", nil)

	assert.ErrorIs(t, err, ErrNoResponseChoice)
	assert.ErrorContains(t, err, "prompt blocked: SAFETY")
	assert.False(t, IsRetryable(err))
}

func TestNewGoogleProvider(t *testing.T) {
	tests := []struct {
		name    string
		config  ClientConfig
		wantErr string
		model   string
	}{
		{name: "missing key", config: ClientConfig{}, wantErr: ErrEmptyAPIKey.Error()},
		{name: "default model", config: ClientConfig{APIKey: "k"}, model: GoogleDefaultModel},
		{name: "configured model", config: ClientConfig{APIKey: "k", Model: "gemini-1.5-pro"}, model: "gemini-1.5-pro"},
		{name: "bad base url", config: ClientConfig{APIKey: "k", BaseURL: "localhost"}, wantErr: "invalid BaseURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := newGoogleProvider(tt.config)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.model, provider.GetModel())
		})
	}
}
