package mock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fabricacollective/amplify/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	GenerateResponse *ai.GenerateResult
	GenerateError    error

	// Call tracking for testing
	GenerateCalls int
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Name identifies the provider.
func (p *Provider) Name() string {
	return "mock"
}

// Generate returns a canned completion
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.GenerateCalls++

	// If a custom response or error is set, use it
	if p.GenerateError != nil {
		return nil, p.GenerateError
	}
	if p.GenerateResponse != nil {
		return p.GenerateResponse, nil
	}

	if p.logger != nil {
		p.logger.Debug("Mock generate called", "prompt_len", len(params.Prompt))
	}

	// Default canned response
	return &ai.GenerateResult{
		Text: "## Sample Output\n\nThis is placeholder marketing content produced by the mock provider. " +
			"It exists so the full generation pipeline can be exercised without a real API key.\n\n" +
			"- Hook the reader in the first line\n" +
			"- Keep one idea per paragraph\n" +
			"- End with a clear call to action",
		Usage: ai.UsageInfo{
			Model:        "mock-v1",
			InputTokens:  128,
			OutputTokens: 64,
			CostCents:    0,
			Duration:     5 * time.Millisecond,
		},
	}, nil
}
