package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/ops"
	"github.com/hpungsan/playbook/internal/playbook"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title     string
	Version   string
	Nav       string // active nav item: "dashboard", "new", "library", "my", "privacy"
	Industry  string
	ShowGuide bool
	Flash     string // one-shot notice shown on full page loads
}

// IndustryPageData is the template data for the industry picker.
type IndustryPageData struct {
	PageData
	Industries []string
}

// DashboardPageData is the template data for the dashboard.
type DashboardPageData struct {
	PageData
	ops.Dashboard
	LibraryCount int
}

// FormPageData is the template data for the entry form.
type FormPageData struct {
	PageData
	Draft      EntryDraft
	Industries []string
	Categories []string
	Problems   []string // blocking dialog messages
	Generating bool
}

// LibraryPageData is the template data for the library.
type LibraryPageData struct {
	PageData
	Filter     ops.LibraryFilter
	Entries    []playbook.Entry
	Industries []string
	Categories []string
	Owned      map[string]bool
}

// MyEntriesPageData is the template data for the owner's entries.
type MyEntriesPageData struct {
	PageData
	Filter  string
	Filters []string
	Entries []playbook.Entry
	Total   int
}

// DetailPageData is the template data for an entry card.
type DetailPageData struct {
	PageData
	Entry    playbook.Entry
	Editable bool
	Editing  bool
	Statuses []playbook.Status
}

// PrintPageData is the template data for the printable view.
type PrintPageData struct {
	Entry        playbook.Entry
	RenderedHTML template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *zap.Logger
	md        goldmark.Markdown
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	funcMap := template.FuncMap{
		"add":         func(a, b int) int { return a + b },
		"formatDate":  playbook.FormatDate,
		"joinLines":   func(items []string) string { return strings.Join(items, "\n") },
		"joinTags":    func(items []string) string { return strings.Join(items, ", ") },
		"statusClass": statusClass,
		"canMove":     playbook.CanTransition,
		"truncate":    truncate,
	}

	// Parse layout and shared partials as the base template
	base, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html", "partials.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		"industry":  "industry.html",
		"dashboard": "dashboard.html",
		"form":      "form.html",
		"library":   "library.html",
		"my":        "my.html",
		"detail":    "detail.html",
		"privacy":   "privacy.html",
		"error":     "error.html",
	}

	templates := make(map[string]*template.Template, len(pages)+1)
	for name, file := range pages {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	// The print view is standalone, without the layout.
	printTmpl, err := template.New("print").Funcs(funcMap).ParseFS(templateFS, "print.html")
	if err != nil {
		return nil, fmt.Errorf("parse print.html: %w", err)
	}
	templates["print"] = printTmpl

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
		md:        goldmark.New(goldmark.WithExtensions(extension.TaskList, extension.Strikethrough)),
	}, nil
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	block := "layout"
	if isHTMX(req) {
		block = "content"
	}
	r.renderBlock(w, status, name, block, data)
}

// renderBlock renders a specific named block from a page template.
// Used for htmx partial swaps that target a sub-section of the page.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	t, ok := r.templates[page]
	if !ok {
		r.logger.Error("template not found", zap.String("template", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.logger.Error("template execution error",
			zap.String("template", page), zap.String("block", block), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
// HTMX requests get a toast; nothing on the page is replaced.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	pErr := errors.As(err)
	status := pErr.Status
	message := pErr.Message

	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
	}

	// HTMX request: toast event plus an HTML fragment
	if isHTMX(req) {
		setToast(w, message, "error")
		w.Header().Set("HX-Reswap", "none")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	// JSON request
	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(pErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// renderMarkdown converts markdown text to HTML using goldmark.
func (r *Renderer) renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// toastEvent is the HX-Trigger payload app.js listens for.
type toastEvent struct {
	ShowToast struct {
		Message string `json:"message"`
		Level   string `json:"level"`
	} `json:"showToast"`
}

// setToast asks the client to show a transient notification.
func setToast(w http.ResponseWriter, message, level string) {
	var ev toastEvent
	ev.ShowToast.Message = message
	ev.ShowToast.Level = level
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger", string(data))
}

// redirect sends the client to url, using HX-Redirect for htmx requests.
func redirect(w http.ResponseWriter, req *http.Request, url string) {
	if isHTMX(req) {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, req, url, http.StatusSeeOther)
}

func isHTMX(req *http.Request) bool {
	return req != nil && req.Header.Get("HX-Request") == "true"
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// statusClass maps a status to its badge CSS class.
func statusClass(s playbook.Status) string {
	switch s {
	case playbook.StatusApproved:
		return "badge-approved"
	case playbook.StatusNeedsEdit:
		return "badge-needs-edit"
	default:
		return "badge-draft"
	}
}

// truncate shortens s to n runes, adding an ellipsis.
func truncate(n int, s string) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
