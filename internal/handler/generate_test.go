package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fabricacollective/amplify/internal/auth"
	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/google/uuid"
)

// stubGenerationService returns a canned generation or error.
type stubGenerationService struct {
	generation *domain.Generation
	err        error

	lastUser   *domain.User
	lastParams domain.GenerateParams
}

func (s *stubGenerationService) Generate(_ context.Context, user *domain.User, params domain.GenerateParams) (*domain.Generation, error) {
	s.lastUser = user
	s.lastParams = params
	return s.generation, s.err
}

func (s *stubGenerationService) Remix(_ context.Context, user *domain.User, _ domain.RemixParams) (*domain.Generation, error) {
	s.lastUser = user
	return s.generation, s.err
}

func generateBody() string {
	return `{
		"brief": {
			"name": "Fathom",
			"description": "Depth-sensing sonar for small boats",
			"audience": "Weekend anglers",
			"tone": "confident"
		},
		"discipline": "social_media",
		"mode": "execution"
	}`
}

func TestHandleGenerate_Success(t *testing.T) {
	svc := &stubGenerationService{generation: &domain.Generation{
		Text:  "## Hook\nKnow the water before you cast.",
		Model: "mock-v1",
	}}
	h := NewGenerateHandler(svc, testLogger())

	req := httptest.NewRequest("POST", "/api/generate", strings.NewReader(generateBody()))
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var body generationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Model != "mock-v1" {
		t.Errorf("model = %q, want mock-v1", body.Model)
	}
	if !strings.Contains(body.Text, "Hook") {
		t.Errorf("text = %q", body.Text)
	}

	// Anonymous request: no user reaches the service
	if svc.lastUser != nil {
		t.Error("expected nil user for anonymous request")
	}
	if svc.lastParams.Discipline != domain.DisciplineSocialMedia {
		t.Errorf("discipline = %q", svc.lastParams.Discipline)
	}
}

func TestHandleGenerate_PassesAuthenticatedUser(t *testing.T) {
	svc := &stubGenerationService{generation: &domain.Generation{Text: "ok", Model: "mock-v1"}}
	h := NewGenerateHandler(svc, testLogger())

	user := &domain.User{ID: uuid.New(), Tier: domain.TierFree}
	req := httptest.NewRequest("POST", "/api/generate", strings.NewReader(generateBody()))
	req = req.WithContext(auth.SetUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastUser == nil || svc.lastUser.ID != user.ID {
		t.Error("authenticated user should reach the service")
	}
	if svc.lastParams.UserID != user.ID {
		t.Errorf("params.UserID = %v, want %v", svc.lastParams.UserID, user.ID)
	}
}

func TestHandleGenerate_QuotaExhausted(t *testing.T) {
	svc := &stubGenerationService{err: domain.QuotaExceeded("UsageService.Check", 15, 15)}
	h := NewGenerateHandler(svc, testLogger())

	req := httptest.NewRequest("POST", "/api/generate", strings.NewReader(generateBody()))
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var body struct {
		Error        string `json:"error"`
		PromptsUsed  int    `json:"prompts_used"`
		PromptsLimit int    `json:"prompts_limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error != "Monthly limit reached" || body.PromptsUsed != 15 || body.PromptsLimit != 15 {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleGenerate_UpstreamFailure(t *testing.T) {
	svc := &stubGenerationService{err: domain.Upstream(nil, "GenerationService.Generate", "Provider call failed")}
	h := NewGenerateHandler(svc, testLogger())

	req := httptest.NewRequest("POST", "/api/generate", strings.NewReader(generateBody()))
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Internal server error") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleGenerate_MalformedJSON(t *testing.T) {
	h := NewGenerateHandler(&stubGenerationService{}, testLogger())

	req := httptest.NewRequest("POST", "/api/generate", strings.NewReader(`{"brief":`))
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRemix_Success(t *testing.T) {
	svc := &stubGenerationService{generation: &domain.Generation{Text: "Arr.", Model: "mock-v1"}}
	h := NewGenerateHandler(svc, testLogger())

	body := `{"persona_id": "skeptic", "content": "Our product is the best."}`
	req := httptest.NewRequest("POST", "/api/remix", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleRemix(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePersonas(t *testing.T) {
	h := NewGenerateHandler(&stubGenerationService{}, testLogger())

	rec := httptest.NewRecorder()
	h.HandlePersonas(rec, httptest.NewRequest("GET", "/api/personas", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Personas []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"personas"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if len(body.Personas) != len(domain.Personas) {
		t.Errorf("got %d personas, want %d", len(body.Personas), len(domain.Personas))
	}
	for _, p := range body.Personas {
		if p.ID == "" || p.Name == "" {
			t.Errorf("persona missing fields: %+v", p)
		}
	}
}

func TestHandleDisciplines(t *testing.T) {
	h := NewGenerateHandler(&stubGenerationService{}, testLogger())

	rec := httptest.NewRecorder()
	h.HandleDisciplines(rec, httptest.NewRequest("GET", "/api/disciplines", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "social_media") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
