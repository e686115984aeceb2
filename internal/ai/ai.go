// Package ai defines the text-generation provider interface the rest of
// the application consumes. Providers are opaque text-completion services:
// the caller hands over a fully-rendered prompt and gets text or an error.
// Latency and failure modes stay behind this boundary; callers only care
// that usage is recorded on success and never on failure.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider is a text-completion service.
type Provider interface {
	// Generate produces text for a rendered prompt. The system prompt may
	// be empty.
	Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error)

	// Name identifies the provider for logging and metrics.
	Name() string
}

// GenerateParams contains the rendered prompt for one completion.
type GenerateParams struct {
	SystemPrompt string // Optional persona/instruction prompt
	Prompt       string // The user-facing prompt body
	MaxTokens    int    // Output token cap; providers apply a default if 0
}

// GenerateResult contains the generated text and usage accounting.
type GenerateResult struct {
	Text  string
	Usage UsageInfo
}

// UsageInfo tracks provider usage for billing and monitoring.
type UsageInfo struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostCents    int
	Duration     time.Duration
}

// ProviderConfig contains common configuration for providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error values for provider operations
var (
	// ERateLimit indicates the provider's rate limit has been exceeded
	ERateLimit = errors.New("ai provider rate limit exceeded")

	// EInvalidPrompt indicates the prompt was rejected as malformed
	EInvalidPrompt = errors.New("invalid prompt")

	// EContentPolicy indicates the prompt violates the provider's content policy
	EContentPolicy = errors.New("prompt violates content policy")

	// ETimeout indicates the request timed out
	ETimeout = errors.New("ai request timed out")

	// EUnavailable indicates the provider is temporarily unavailable
	EUnavailable = errors.New("ai service temporarily unavailable")

	// EUnauthorized indicates invalid API credentials
	EUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is transient and worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ERateLimit) ||
		errors.Is(err, ETimeout) ||
		errors.Is(err, EUnavailable)
}

// WrapError wraps an error with context about the provider operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
