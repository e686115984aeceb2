package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/fabricacollective/amplify/internal/metrics"
	"github.com/fabricacollective/amplify/internal/repository"
	"github.com/google/uuid"
)

const (
	// DefaultLibraryPageSize bounds unpaginated list requests.
	DefaultLibraryPageSize = 25

	// MaxLibraryPageSize caps a single page.
	MaxLibraryPageSize = 100
)

// ContentService manages the user's saved content library.
type ContentService interface {
	// Save stores a generation in the user's library.
	Save(ctx context.Context, params domain.SaveContentParams) (*domain.SavedContent, error)

	// List returns a page of the user's saved content, newest first.
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.SavedContent, error)

	// Get returns one library entry. Scoped to the owning user.
	Get(ctx context.Context, id, userID uuid.UUID) (*domain.SavedContent, error)

	// Delete removes one library entry. Scoped to the owning user.
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type contentService struct {
	repo   *repository.Repository
	logger *slog.Logger
}

// NewContentService creates a new ContentService instance.
func NewContentService(repo *repository.Repository, logger *slog.Logger) ContentService {
	return &contentService{
		repo:   repo,
		logger: logger,
	}
}

// Save stores a generation in the user's library.
func (s *contentService) Save(ctx context.Context, params domain.SaveContentParams) (*domain.SavedContent, error) {
	const op = "ContentService.Save"

	params.Title = strings.TrimSpace(params.Title)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	entry := &domain.SavedContent{
		UserID:     params.UserID,
		Title:      params.Title,
		Body:       params.Body,
		Discipline: params.Discipline,
		Mode:       params.Mode,
		Tags:       normalizeTags(params.Tags),
	}

	if params.Brief != nil {
		snapshot, err := json.Marshal(params.Brief)
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to snapshot brand brief")
		}
		entry.Brief = snapshot
	}

	saved, err := s.repo.InsertSavedContent(ctx, entry)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to save content")
	}

	metrics.ContentSaved.Inc()
	s.logger.Info("content saved", "user_id", params.UserID, "content_id", saved.ID)
	return saved, nil
}

// List returns a page of the user's saved content.
func (s *contentService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.SavedContent, error) {
	const op = "ContentService.List"

	if limit <= 0 {
		limit = DefaultLibraryPageSize
	}
	if limit > MaxLibraryPageSize {
		limit = MaxLibraryPageSize
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.repo.ListSavedContent(ctx, userID, limit, offset)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list content")
	}
	return entries, nil
}

// Get returns one library entry.
func (s *contentService) Get(ctx context.Context, id, userID uuid.UUID) (*domain.SavedContent, error) {
	const op = "ContentService.Get"

	entry, err := s.repo.GetSavedContent(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "content", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve content")
	}
	return entry, nil
}

// Delete removes one library entry.
func (s *contentService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	const op = "ContentService.Delete"

	deleted, err := s.repo.DeleteSavedContent(ctx, id, userID)
	if err != nil {
		return domain.Internal(err, op, "Failed to delete content")
	}
	if !deleted {
		return domain.NotFound(op, "content", id.String())
	}

	s.logger.Info("content deleted", "user_id", userID, "content_id", id)
	return nil
}

// normalizeTags trims, lowercases, and de-duplicates tags, dropping empties.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
