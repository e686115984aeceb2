// This file implements the content generation endpoints.
//
// Routes:
//   - POST /api/generate    -> HandleGenerate (anonymous allowed)
//   - POST /api/remix       -> HandleRemix (anonymous allowed)
//   - GET  /api/personas    -> HandlePersonas
//   - GET  /api/disciplines -> HandleDisciplines
package handler

import (
	"log/slog"
	"net/http"

	"github.com/fabricacollective/amplify/internal/auth"
	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/fabricacollective/amplify/internal/service"
	"github.com/google/uuid"
)

// GenerateHandler handles generation and remix endpoints.
type GenerateHandler struct {
	generation service.GenerationService
	logger     *slog.Logger
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(generation service.GenerationService, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{
		generation: generation,
		logger:     logger,
	}
}

type generationResponse struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// HandleGenerate produces content from a brand brief.
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Brief      domain.BrandBrief `json:"brief"`
		Discipline string            `json:"discipline"`
		Mode       string            `json:"mode"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user := auth.GetUser(r.Context())
	params := domain.GenerateParams{
		Brief:      req.Brief,
		Discipline: domain.Discipline(req.Discipline),
		Mode:       domain.ContentMode(req.Mode),
	}
	if user != nil {
		params.UserID = user.ID
	}

	gen, err := h.generation.Generate(r.Context(), user, params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, generationResponse{Text: gen.Text, Model: gen.Model})
}

// HandleRemix rewrites prior output in a persona's voice.
func (h *GenerateHandler) HandleRemix(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PersonaID string `json:"persona_id"`
		Content   string `json:"content"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user := auth.GetUser(r.Context())
	params := domain.RemixParams{
		PersonaID: req.PersonaID,
		Content:   req.Content,
	}
	if user != nil {
		params.UserID = user.ID
	} else {
		params.UserID = uuid.Nil
	}

	gen, err := h.generation.Remix(r.Context(), user, params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, generationResponse{Text: gen.Text, Model: gen.Model})
}

// HandlePersonas lists the remix personas.
func (h *GenerateHandler) HandlePersonas(w http.ResponseWriter, r *http.Request) {
	type personaResponse struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	personas := make([]personaResponse, 0, len(domain.Personas))
	for _, id := range domain.PersonaIDs() {
		p := domain.Personas[id]
		personas = append(personas, personaResponse{ID: p.ID, Name: p.Name})
	}

	writeJSON(w, http.StatusOK, map[string]any{"personas": personas})
}

// HandleDisciplines lists the supported marketing disciplines.
func (h *GenerateHandler) HandleDisciplines(w http.ResponseWriter, r *http.Request) {
	type disciplineResponse struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	disciplines := make([]disciplineResponse, 0, len(domain.Disciplines))
	for _, d := range domain.Disciplines {
		disciplines = append(disciplines, disciplineResponse{ID: string(d), Name: d.DisplayName()})
	}

	writeJSON(w, http.StatusOK, map[string]any{"disciplines": disciplines})
}
