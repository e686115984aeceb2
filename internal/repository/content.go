package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const savedContentColumns = `id, user_id, title, body, discipline, mode, tags, brief, created_at`

func scanSavedContent(row interface{ Scan(...any) error }) (*domain.SavedContent, error) {
	var (
		c     domain.SavedContent
		tags  pq.StringArray
		brief pqtype.NullRawMessage
	)
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Title,
		&c.Body,
		&c.Discipline,
		&c.Mode,
		&tags,
		&brief,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Tags = []string(tags)
	if brief.Valid {
		c.Brief = brief.RawMessage
	}
	return &c, nil
}

// InsertSavedContent adds a library entry. The brief snapshot may be nil.
func (r *Repository) InsertSavedContent(ctx context.Context, c *domain.SavedContent) (*domain.SavedContent, error) {
	brief := pqtype.NullRawMessage{}
	if len(c.Brief) > 0 {
		brief = pqtype.NullRawMessage{RawMessage: c.Brief, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO saved_content (user_id, title, body, discipline, mode, tags, brief)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+savedContentColumns,
		c.UserID, c.Title, c.Body, c.Discipline, c.Mode, pq.Array(c.Tags), brief,
	)
	saved, err := scanSavedContent(row)
	if err != nil {
		return nil, fmt.Errorf("insert saved content: %w", err)
	}
	return saved, nil
}

// ListSavedContent returns a user's library entries, newest first.
// Every query is scoped by user_id; cross-user reads are impossible here.
func (r *Repository) ListSavedContent(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.SavedContent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+savedContentColumns+`
		FROM saved_content
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list saved content: %w", err)
	}
	defer rows.Close()

	var items []*domain.SavedContent
	for rows.Next() {
		c, err := scanSavedContent(rows)
		if err != nil {
			return nil, fmt.Errorf("list saved content: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list saved content: %w", err)
	}
	return items, nil
}

// GetSavedContent retrieves one entry, scoped to its owner.
// Returns sql.ErrNoRows when absent or owned by someone else.
func (r *Repository) GetSavedContent(ctx context.Context, id, userID uuid.UUID) (*domain.SavedContent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+savedContentColumns+`
		FROM saved_content
		WHERE id = $1 AND user_id = $2`,
		id, userID)
	return scanSavedContent(row)
}

// DeleteSavedContent removes one entry, scoped to its owner. Reports
// whether a row was deleted.
func (r *Repository) DeleteSavedContent(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM saved_content WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return false, fmt.Errorf("delete saved content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete saved content: %w", err)
	}
	return n > 0, nil
}

// InsertGenerationLog records a completed provider call for auditing.
func (r *Repository) InsertGenerationLog(ctx context.Context, userID uuid.UUID, kind, model string, inputTokens, outputTokens, costCents int, duration time.Duration) error {
	var owner any
	if userID != uuid.Nil {
		owner = userID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO generation_log (user_id, kind, model, input_tokens, output_tokens, cost_cents, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		owner, kind, model, inputTokens, outputTokens, costCents, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert generation log: %w", err)
	}
	return nil
}
