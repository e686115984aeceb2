// Package anthropic implements the ai.Provider interface against
// Anthropic's Messages API. Used as the alternate provider when Gemini is
// not configured.
package anthropic

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
	// APIBaseURL is the base URL for the Anthropic Messages API.
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version.
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use.
	DefaultModel = "claude-3-5-sonnet-20241022"

	// DefaultMaxTokens caps output length when the caller does not.
	DefaultMaxTokens = 4096

	// Pricing in cents per 1M tokens for claude-3-5-sonnet.
	PricingInputCents  = 300  // $3 per 1M input tokens
	PricingOutputCents = 1500 // $15 per 1M output tokens
)

// Config contains configuration for the Anthropic provider.
type Config struct {
	APIKey         string
	Model          string
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider using the Anthropic Messages API.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Anthropic provider.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
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
	return "anthropic"
}

// Generate produces text for a rendered prompt.
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	startTime := time.Now()

	if strings.TrimSpace(params.Prompt) == "" {
		return nil, ai.WrapError("generate", ai.EInvalidPrompt)
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody := apiRequest{
		Model:     p.config.Model,
		MaxTokens: maxTokens,
		System:    params.SystemPrompt,
		Messages: []apiMessage{
			{Role: "user", Content: params.Prompt},
		},
	}
	body, err := json.Marshal(reqBody)
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
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostCents:    p.calculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
			Duration:     time.Since(startTime),
		},
	}, nil
}

// executeWithRetry posts the request body with exponential backoff on
// transient errors.
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
		p.logger.Info("Retrying Anthropic request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", APIBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
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
	case http.StatusUnauthorized:
		return ai.EUnauthorized
	case http.StatusTooManyRequests:
		return ai.ERateLimit
	case http.StatusRequestTimeout:
		return ai.ETimeout
	case http.StatusBadRequest:
		if strings.Contains(errResp.Error.Message, "content filtering") {
			return ai.EContentPolicy
		}
		return fmt.Errorf("%w: %s", ai.EInvalidPrompt, errResp.Error.Message)
	case 529, http.StatusServiceUnavailable, http.StatusInternalServerError:
		// 529 is Anthropic's "overloaded" status.
		return ai.EUnavailable
	default:
		return fmt.Errorf("anthropic API error %d: %s", statusCode, errResp.Error.Message)
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
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// text concatenates the text blocks of the response.
func (r *apiResponse) text() string {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
