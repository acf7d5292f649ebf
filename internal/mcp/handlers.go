package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/ops"
	"github.com/hpungsan/playbook/internal/playbook"
	"github.com/hpungsan/playbook/internal/store"
)

// Handlers holds dependencies for MCP tool handlers. Every call acts as owner.
type Handlers struct {
	registry *store.Registry
	owner    string
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(registry *store.Registry, owner string, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{registry: registry, owner: owner, logger: logger}
}

// LibraryRequest represents the arguments for playbook_library.
type LibraryRequest struct {
	Query         string `json:"query,omitempty"`
	Industry      string `json:"industry,omitempty"`
	IndustryOther string `json:"industry_other,omitempty"`
	Category      string `json:"category,omitempty"`
	CategoryOther string `json:"category_other,omitempty"`
}

// ListRequest represents the arguments for playbook_list.
type ListRequest struct {
	Filter string `json:"filter,omitempty"`
}

// IDRequest represents the arguments of the single-entry tools.
type IDRequest struct {
	ID string `json:"id"`
}

// SearchRequest represents the arguments for playbook_search.
type SearchRequest struct {
	Query    string `json:"query"`
	Industry string `json:"industry,omitempty"`
}

// PublishRequest represents the arguments for playbook_publish.
type PublishRequest struct {
	ID        string `json:"id"`
	Published *bool  `json:"published,omitempty"`
}

// EntriesOutput is returned by the listing tools.
type EntriesOutput struct {
	Entries []playbook.Entry `json:"entries"`
	Count   int              `json:"count"`
}

// FetchOutput is returned by playbook_fetch. Editable is false for
// suggestions and other owners' published entries.
type FetchOutput struct {
	Entry    playbook.Entry `json:"entry"`
	Editable bool           `json:"editable"`
}

// TextOutput is returned by playbook_export_text.
type TextOutput struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// DeleteOutput is returned by playbook_delete.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// HandleLibrary handles the playbook_library tool call.
func (h *Handlers) HandleLibrary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LibraryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	published, err := h.registry.Repository().ListPublished(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	entries := ops.FilterLibrary(published, ops.LibraryFilter{
		Query:         input.Query,
		Industry:      input.Industry,
		IndustryOther: input.IndustryOther,
		Category:      input.Category,
		CategoryOther: input.CategoryOther,
	})
	return successResult(EntriesOutput{Entries: entries, Count: len(entries)})
}

// HandleList handles the playbook_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	s, err := h.registry.For(ctx, h.owner)
	if err != nil {
		return errorResult(err), nil
	}

	entries := ops.FilterMyEntries(s.Entries(), input.Filter)
	return successResult(EntriesOutput{Entries: entries, Count: len(entries)})
}

// HandleFetch handles the playbook_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	e, editable, err := h.find(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(FetchOutput{Entry: e, Editable: editable})
}

// HandleSearch handles the playbook_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return errorResult(errors.NewInvalidRequest("query is required")), nil
	}

	s, err := h.registry.For(ctx, h.owner)
	if err != nil {
		return errorResult(err), nil
	}

	industry := input.Industry
	if industry == "" {
		industry = s.SelectedIndustry()
	}
	results := ops.BuildDashboard(s.Entries(), industry, input.Query).Results
	return successResult(EntriesOutput{Entries: results, Count: len(results)})
}

// HandleApprove handles the playbook_approve tool call.
func (h *Handlers) HandleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	s, err := h.registry.For(ctx, h.owner)
	if err != nil {
		return errorResult(err), nil
	}

	e, err := s.Approve(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(e)
}

// HandlePublish handles the playbook_publish tool call.
func (h *Handlers) HandlePublish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PublishRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.ID) == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	published := true
	if input.Published != nil {
		published = *input.Published
	}

	s, err := h.registry.For(ctx, h.owner)
	if err != nil {
		return errorResult(err), nil
	}

	e, err := s.TogglePublish(ctx, input.ID, published)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(e)
}

// HandleDelete handles the playbook_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	s, err := h.registry.For(ctx, h.owner)
	if err != nil {
		return errorResult(err), nil
	}

	if err := s.Delete(ctx, input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(DeleteOutput{ID: input.ID, Deleted: true})
}

// HandleReload handles the playbook_reload tool call.
func (h *Handlers) HandleReload(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.registry.Reload(ctx, h.owner); err != nil {
		return errorResult(err), nil
	}
	s, err := h.registry.For(ctx, h.owner)
	if err != nil {
		return errorResult(err), nil
	}
	entries := s.Entries()
	return successResult(EntriesOutput{Entries: entries, Count: len(entries)})
}

// HandleExportText handles the playbook_export_text tool call.
func (h *Handlers) HandleExportText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	e, _, err := h.find(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(TextOutput{ID: e.ID, Title: playbook.ShareTitle(e), Text: playbook.FormatText(e)})
}

// find resolves id against the owner's entries, the suggestions, and the
// published library, in that order.
func (h *Handlers) find(ctx context.Context, id string) (playbook.Entry, bool, error) {
	s, err := h.registry.For(ctx, h.owner)
	if err != nil {
		return playbook.Entry{}, false, err
	}
	if e, ok := s.Get(id); ok {
		return e, true, nil
	}
	if e, ok := ops.Suggestion(id); ok {
		return e, false, nil
	}

	published, err := h.registry.Repository().ListPublished(ctx)
	if err != nil {
		return playbook.Entry{}, false, err
	}
	for _, e := range published {
		if e.ID == id {
			return e, false, nil
		}
	}
	return playbook.Entry{}, false, errors.NewNotFound(id)
}

func decodeID(req mcp.CallToolRequest) (IDRequest, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return input, err
	}
	input.ID = strings.TrimSpace(input.ID)
	if input.ID == "" {
		return input, errors.NewInvalidRequest("id is required")
	}
	return input, nil
}

// errorResult creates an MCP error result from any error.
// INTERNAL errors are reported with a generic message and no details.
func errorResult(err error) *mcp.CallToolResult {
	pErr := errors.As(err)

	errorObj := map[string]any{
		"code":    pErr.Code,
		"message": pErr.Message,
		"status":  pErr.Status,
	}
	if pErr.Code == errors.ErrInternal {
		errorObj["message"] = "an internal error occurred"
	} else if pErr.Details != nil {
		errorObj["details"] = pErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
