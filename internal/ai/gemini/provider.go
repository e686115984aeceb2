// Package gemini implements the ai.Provider interface against Google's
// Generative Language API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fabricacollective/amplify/internal/ai"
)

const (
	// APIBaseURL is the base URL for the Generative Language API.
	APIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

	// DefaultModel is the default Gemini model to use.
	DefaultModel = "gemini-2.0-flash"

	// DefaultMaxTokens caps output length when the caller does not.
	DefaultMaxTokens = 4096

	// Pricing in cents per 1M tokens for gemini-2.0-flash.
	PricingInputCents  = 10 // $0.10 per 1M input tokens
	PricingOutputCents = 40 // $0.40 per 1M output tokens
)

// Config contains configuration for the Gemini provider.
type Config struct {
	APIKey         string
	Model          string
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider using the Gemini API.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Gemini provider.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// Name identifies the provider.
func (p *Provider) Name() string {
	return "gemini"
}

// Generate produces text for a rendered prompt.
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	startTime := time.Now()

	if strings.TrimSpace(params.Prompt) == "" {
		return nil, ai.WrapError("generate", ai.EInvalidPrompt)
	}

	body, err := p.buildRequestBody(params)
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.executeWithRetry(ctx, body)
	if err != nil {
		return nil, ai.WrapError("execute request", err)
	}

	text := resp.text()
	if text == "" {
		return nil, ai.WrapError("parse response", fmt.Errorf("empty completion"))
	}

	return &ai.GenerateResult{
		Text: text,
		Usage: ai.UsageInfo{
			Model:        p.config.Model,
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			CostCents:    p.calculateCost(resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount),
			Duration:     time.Since(startTime),
		},
	}, nil
}

func (p *Provider) buildRequestBody(params ai.GenerateParams) ([]byte, error) {
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody := apiRequest{
		Contents: []apiContent{
			{
				Role:  "user",
				Parts: []apiPart{{Text: params.Prompt}},
			},
		},
		GenerationConfig: apiGenerationConfig{
			MaxOutputTokens: maxTokens,
		},
	}
	if params.SystemPrompt != "" {
		reqBody.SystemInstruction = &apiContent{
			Parts: []apiPart{{Text: params.SystemPrompt}},
		}
	}

	return json.Marshal(reqBody)
}

// executeWithRetry posts the request body with exponential backoff on
// transient errors. The body is re-wrapped per attempt so retries never
// send a consumed reader.
func (p *Provider) executeWithRetry(ctx context.Context, body []byte) (*apiResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		resp, err := p.executeRequest(ctx, body)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !ai.IsRetryable(err) {
			return nil, err
		}
		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("Retrying Gemini request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	url := fmt.Sprintf("%s/%s:generateContent", APIBaseURL, p.config.Model)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		// Network errors are typically retryable
		return nil, ai.EUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to provider errors.
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EUnauthorized
	case http.StatusTooManyRequests:
		return ai.ERateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ai.ETimeout
	case http.StatusBadRequest:
		if strings.Contains(errResp.Error.Message, "SAFETY") {
			return ai.EContentPolicy
		}
		return fmt.Errorf("%w: %s", ai.EInvalidPrompt, errResp.Error.Message)
	case http.StatusServiceUnavailable, http.StatusInternalServerError:
		return ai.EUnavailable
	default:
		return fmt.Errorf("gemini API error %d: %s", statusCode, errResp.Error.Message)
	}
}

// calculateCost estimates the cost in cents for the given token counts.
func (p *Provider) calculateCost(inputTokens, outputTokens int) int {
	inputCost := inputTokens * PricingInputCents / 1_000_000
	outputCost := outputTokens * PricingOutputCents / 1_000_000
	return inputCost + outputCost
}

// =============================================================================
// Wire types
// =============================================================================

type apiRequest struct {
	Contents          []apiContent        `json:"contents"`
	SystemInstruction *apiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  apiGenerationConfig `json:"generationConfig"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text string `json:"text"`
}

type apiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type apiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []apiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// text concatenates the parts of the first candidate.
func (r *apiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
