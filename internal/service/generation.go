package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fabricacollective/amplify/internal/ai"
	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/fabricacollective/amplify/internal/metrics"
	"github.com/google/uuid"
)

// generationLogRepo records completed provider calls for audit and cost
// tracking. Failures to log never fail the request.
type generationLogRepo interface {
	InsertGenerationLog(ctx context.Context, userID uuid.UUID, kind, model string, inputTokens, outputTokens, costCents int, duration time.Duration) error
}

// GenerationService orchestrates provider calls and usage metering.
//
// Ordering matters: quota is checked before the provider is invoked, but
// only consumed after the provider call succeeds, so a failed generation
// never costs the user a prompt.
type GenerationService interface {
	// Generate produces marketing content from a brand brief.
	// user is nil for anonymous requests (no server-side metering).
	Generate(ctx context.Context, user *domain.User, params domain.GenerateParams) (*domain.Generation, error)

	// Remix rewrites prior output in a persona's voice. Metered the same
	// way as Generate.
	Remix(ctx context.Context, user *domain.User, params domain.RemixParams) (*domain.Generation, error)
}

type generationService struct {
	provider ai.Provider
	usage    UsageService
	logRepo  generationLogRepo
	logger   *slog.Logger
}

// NewGenerationService creates a new GenerationService instance.
func NewGenerationService(provider ai.Provider, usage UsageService, logRepo generationLogRepo, logger *slog.Logger) GenerationService {
	return &generationService{
		provider: provider,
		usage:    usage,
		logRepo:  logRepo,
		logger:   logger,
	}
}

// Generate produces content for a brand brief.
func (s *generationService) Generate(ctx context.Context, user *domain.User, params domain.GenerateParams) (*domain.Generation, error) {
	const op = "GenerationService.Generate"

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return s.run(ctx, op, "generate", user, ai.GenerateParams{
		SystemPrompt: buildSystemPrompt(params.Discipline, params.Mode),
		Prompt:       buildUserPrompt(params.Brief, params.Discipline),
	})
}

// Remix rewrites content in a persona's voice.
func (s *generationService) Remix(ctx context.Context, user *domain.User, params domain.RemixParams) (*domain.Generation, error) {
	const op = "GenerationService.Remix"

	if err := params.Validate(); err != nil {
		return nil, err
	}

	persona, _ := domain.PersonaByID(params.PersonaID)

	return s.run(ctx, op, "remix", user, ai.GenerateParams{
		SystemPrompt: persona.SystemPrompt,
		Prompt:       buildRemixPrompt(params.Content),
	})
}

// run is the shared gate-call-record pipeline.
func (s *generationService) run(ctx context.Context, op, kind string, user *domain.User, aiParams ai.GenerateParams) (*domain.Generation, error) {
	// Gate before spending provider tokens. Anonymous requests carry no
	// server-side account; their metering is client-side.
	if user != nil {
		if _, err := s.usage.Check(ctx, user); err != nil {
			if _, ok := domain.AsQuotaError(err); ok {
				metrics.QuotaDenialsTotal.Inc()
			}
			return nil, err
		}
	}

	// A client disconnect must not abandon a generation mid-flight; the
	// provider call runs to completion and the usage increment stays on
	// the success path only.
	callCtx := context.WithoutCancel(ctx)

	result, err := s.provider.Generate(callCtx, aiParams)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(kind, "error").Inc()
		metrics.AIAPICalls.WithLabelValues(s.provider.Name(), "error").Inc()
		s.logger.Error("provider call failed", "kind", kind, "provider", s.provider.Name(), "error", err)
		return nil, s.mapProviderError(op, err)
	}

	metrics.GenerationsTotal.WithLabelValues(kind, "success").Inc()
	metrics.AIAPICalls.WithLabelValues(s.provider.Name(), "success").Inc()
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(result.Usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(result.Usage.OutputTokens))
	metrics.AICostCentsTotal.Add(float64(result.Usage.CostCents))

	// Consume quota only now that the provider has delivered. If a
	// concurrent request took the last slot while this one was in
	// flight, the work is already done; log and return it anyway. The
	// counter itself never passes the limit.
	if user != nil {
		if _, err := s.usage.CheckAndIncrement(callCtx, user); err != nil {
			if _, ok := domain.AsQuotaError(err); ok {
				s.logger.Warn("quota filled during provider call", "user_id", user.ID, "kind", kind)
			} else {
				s.logger.Error("failed to record usage after generation", "user_id", user.ID, "error", err)
			}
		}
	}

	userID := uuid.Nil
	if user != nil {
		userID = user.ID
	}
	if err := s.logRepo.InsertGenerationLog(callCtx, userID, kind, result.Usage.Model,
		result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.CostCents, result.Usage.Duration); err != nil {
		s.logger.Warn("failed to write generation log", "error", err)
	}

	s.logger.Info("generation complete",
		"kind", kind,
		"provider", s.provider.Name(),
		"model", result.Usage.Model,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"duration_ms", result.Usage.Duration.Milliseconds(),
	)

	return &domain.Generation{
		Text:         result.Text,
		Model:        result.Usage.Model,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		CostCents:    result.Usage.CostCents,
		Duration:     result.Usage.Duration,
	}, nil
}

// mapProviderError translates ai package errors to domain errors.
func (s *generationService) mapProviderError(op string, err error) error {
	switch {
	case errors.Is(err, ai.EInvalidPrompt):
		return domain.Invalid(op, "The prompt was rejected by the provider")
	case errors.Is(err, ai.EContentPolicy):
		return domain.Invalid(op, "The request was blocked by the provider's content policy")
	default:
		// Rate limits, timeouts, and outages upstream all surface as a
		// generic failure; the client cannot act on the distinction.
		return domain.Upstream(err, op, "Generation failed")
	}
}
