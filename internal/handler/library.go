// This file implements the saved-content library endpoints.
//
// Routes (all require auth):
//   - POST   /api/library      -> HandleSave
//   - GET    /api/library      -> HandleList
//   - GET    /api/library/{id} -> HandleGet
//   - DELETE /api/library/{id} -> HandleDelete
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fabricacollective/amplify/internal/auth"
	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/fabricacollective/amplify/internal/service"
	"github.com/google/uuid"
)

// LibraryHandler handles the saved-content library.
type LibraryHandler struct {
	content service.ContentService
	logger  *slog.Logger
}

// NewLibraryHandler creates a new LibraryHandler.
func NewLibraryHandler(content service.ContentService, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{
		content: content,
		logger:  logger,
	}
}

type savedContentResponse struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Discipline string          `json:"discipline,omitempty"`
	Mode       string          `json:"mode,omitempty"`
	Tags       []string        `json:"tags"`
	Brief      json.RawMessage `json:"brief,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

func toSavedContentResponse(c *domain.SavedContent) savedContentResponse {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return savedContentResponse{
		ID:         c.ID.String(),
		Title:      c.Title,
		Body:       c.Body,
		Discipline: string(c.Discipline),
		Mode:       string(c.Mode),
		Tags:       tags,
		Brief:      c.Brief,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// HandleSave stores a generation in the library.
func (h *LibraryHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		Title      string             `json:"title"`
		Body       string             `json:"body"`
		Discipline string             `json:"discipline"`
		Mode       string             `json:"mode"`
		Tags       []string           `json:"tags"`
		Brief      *domain.BrandBrief `json:"brief"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	saved, err := h.content.Save(r.Context(), domain.SaveContentParams{
		UserID:     user.ID,
		Title:      req.Title,
		Body:       req.Body,
		Discipline: domain.Discipline(req.Discipline),
		Mode:       domain.ContentMode(req.Mode),
		Tags:       req.Tags,
		Brief:      req.Brief,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"content": toSavedContentResponse(saved)})
}

// HandleList returns a page of the user's library, newest first.
// Query params: limit (default 25, max 100), offset (default 0).
func (h *LibraryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.content.List(r.Context(), user.ID, limit, offset)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]savedContentResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toSavedContentResponse(entry))
	}

	writeJSON(w, http.StatusOK, map[string]any{"content": items})
}

// HandleGet returns one library entry.
func (h *LibraryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "Invalid content ID"))
		return
	}

	entry, err := h.content.Get(r.Context(), id, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"content": toSavedContentResponse(entry)})
}

// HandleDelete removes one library entry.
func (h *LibraryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "Invalid content ID"))
		return
	}

	if err := h.content.Delete(r.Context(), id, user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
