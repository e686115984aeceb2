// Package domain contains core business types and interfaces.
//
// This file defines the brand brief, marketing disciplines, and saved
// library content.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Discipline identifies a marketing discipline a user can generate
// content for.
type Discipline string

const (
	DisciplineBrandStrategy    Discipline = "brand_strategy"
	DisciplineContentMarketing Discipline = "content_marketing"
	DisciplineSocialMedia      Discipline = "social_media"
	DisciplineEmailMarketing   Discipline = "email_marketing"
	DisciplinePaidAds          Discipline = "paid_ads"
	DisciplineSEO              Discipline = "seo"
)

// Disciplines lists every supported discipline, in display order.
var Disciplines = []Discipline{
	DisciplineBrandStrategy,
	DisciplineContentMarketing,
	DisciplineSocialMedia,
	DisciplineEmailMarketing,
	DisciplinePaidAds,
	DisciplineSEO,
}

// Valid reports whether the discipline is a known value.
func (d Discipline) Valid() bool {
	for _, known := range Disciplines {
		if d == known {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.English)

// DisplayName returns a human-readable name for the discipline,
// e.g. "brand_strategy" -> "Brand Strategy". SEO stays upper-cased.
func (d Discipline) DisplayName() string {
	if d == DisciplineSEO {
		return "SEO"
	}
	return titleCaser.String(strings.ReplaceAll(string(d), "_", " "))
}

// ContentMode distinguishes high-level strategy output from ready-to-use
// execution copy.
type ContentMode string

const (
	ContentModeStrategy  ContentMode = "strategy"
	ContentModeExecution ContentMode = "execution"
)

// Valid reports whether the mode is a known value.
func (m ContentMode) Valid() bool {
	return m == ContentModeStrategy || m == ContentModeExecution
}

// BrandBrief describes the brand or project content is generated for.
// The brief is snapshotted (as JSON) alongside saved content so library
// entries remain reproducible after the user edits their brief.
type BrandBrief struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Audience    string   `json:"audience,omitempty"`
	Tone        string   `json:"tone,omitempty"`
	Goals       []string `json:"goals,omitempty"`
}

// Validate checks the brief's required fields.
func (b *BrandBrief) Validate() error {
	const op = "brief.validate"
	if strings.TrimSpace(b.Name) == "" {
		return Invalid(op, "Brand name is required")
	}
	if strings.TrimSpace(b.Description) == "" {
		return Invalid(op, "Brand description is required")
	}
	if len(b.Description) > 4000 {
		return Invalid(op, "Brand description must be 4000 characters or fewer")
	}
	return nil
}

// GenerateParams contains the validated parameters for a generation request.
type GenerateParams struct {
	UserID     uuid.UUID // Nil UUID for anonymous requests
	Brief      BrandBrief
	Discipline Discipline
	Mode       ContentMode
}

// Validate checks params before any provider call is made.
func (p *GenerateParams) Validate() error {
	const op = "generate.validate"
	if err := p.Brief.Validate(); err != nil {
		return err
	}
	if !p.Discipline.Valid() {
		return Invalid(op, "Unknown marketing discipline")
	}
	if !p.Mode.Valid() {
		return Invalid(op, "Mode must be 'strategy' or 'execution'")
	}
	return nil
}

// RemixParams contains the validated parameters for a remix request.
type RemixParams struct {
	UserID    uuid.UUID
	PersonaID string
	Content   string // Prior output to rewrite
}

// Validate checks remix params.
func (p *RemixParams) Validate() error {
	const op = "remix.validate"
	if _, ok := PersonaByID(p.PersonaID); !ok {
		return Invalid(op, "Unknown remix persona")
	}
	if strings.TrimSpace(p.Content) == "" {
		return Invalid(op, "Content to remix is required")
	}
	if len(p.Content) > 20000 {
		return Invalid(op, "Content must be 20000 characters or fewer")
	}
	return nil
}

// Generation is the result of a successful provider call, ready to be
// returned to the client or saved to the library.
type Generation struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	CostCents    int
	Duration     time.Duration
}

// SavedContent is a library entry owned by one user.
type SavedContent struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Title      string
	Body       string
	Discipline Discipline
	Mode       ContentMode
	Tags       []string
	// Brief is the JSON snapshot of the brand brief the content was
	// generated from. May be empty for remixed content.
	Brief     json.RawMessage
	CreatedAt time.Time
}

// SaveContentParams contains parameters for saving content to the library.
type SaveContentParams struct {
	UserID     uuid.UUID
	Title      string
	Body       string
	Discipline Discipline
	Mode       ContentMode
	Tags       []string
	Brief      *BrandBrief // Optional
}

// Validate checks save params.
func (p *SaveContentParams) Validate() error {
	const op = "content.validate"
	if strings.TrimSpace(p.Title) == "" {
		return Invalid(op, "Title is required")
	}
	if strings.TrimSpace(p.Body) == "" {
		return Invalid(op, "Body is required")
	}
	if p.Discipline != "" && !p.Discipline.Valid() {
		return Invalid(op, "Unknown marketing discipline")
	}
	if len(p.Tags) > 20 {
		return Invalid(op, "At most 20 tags are allowed")
	}
	return nil
}
