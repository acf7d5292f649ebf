// Package generator serves the generation function: it validates an incident,
// prompts a model, and returns structured playbook content.
package generator

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/generation"
	"github.com/hpungsan/playbook/internal/playbook"
)

// maxRequestBody bounds the incident payload.
const maxRequestBody = 64 << 10

const fallbackError = "An error occurred while generating the playbook"

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type, Authorization, X-Client-Info, Apikey",
}

// Handler is the http.Handler for generation.Path.
type Handler struct {
	model   Model
	anonKey string
	logger  *zap.Logger
}

// NewHandler creates a Handler. An empty anonKey disables the bearer check.
func NewHandler(model Model, anonKey string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{model: model, anonKey: anonKey, logger: logger.Named("generator")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for k, v := range corsHeaders {
		w.Header().Set(k, v)
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.anonKey != "" {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token != h.anonKey {
			writeJSONError(w, http.StatusUnauthorized, errors.NewUnauthorized().Message)
			return
		}
	}

	var req generation.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Category) == "" ||
		strings.TrimSpace(req.Summary) == "" || strings.TrimSpace(req.Industry) == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if err := playbook.ValidateIncident(req.Title, req.Summary); err != nil {
		pe := errors.As(err)
		writeJSONError(w, pe.Status, pe.Message)
		return
	}

	raw, err := h.model.GenerateJSON(r.Context(), SystemPrompt, BuildPrompt(req))
	if err != nil {
		h.logger.Error("model call failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, fallbackError)
		return
	}

	var generated generation.Result
	if err := json.Unmarshal([]byte(stripFences(raw)), &generated); err != nil {
		h.logger.Error("model returned invalid JSON", zap.Error(err), zap.Int("bytes", len(raw)))
		writeJSONError(w, http.StatusInternalServerError, "Model returned an invalid response")
		return
	}

	result := generation.Result{
		RootCause:           firstNonBlank(req.RootCause, generated.RootCause),
		Impact:              firstNonBlank(req.Impact, generated.Impact),
		Recommendation:      generated.Recommendation,
		DoList:              nonNil(generated.DoList),
		DontList:            nonNil(generated.DontList),
		PreventionChecklist: nonNil(generated.PreventionChecklist),
	}

	h.logger.Info("playbook generated",
		zap.String("industry", req.Industry),
		zap.String("category", req.Category))

	writeJSON(w, http.StatusOK, result)
}

// stripFences removes a ```json fence some models wrap around JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func firstNonBlank(user, generated string) string {
	if strings.TrimSpace(user) != "" {
		return user
	}
	return generated
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
