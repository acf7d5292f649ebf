package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/generation"
	"github.com/hpungsan/playbook/internal/ops"
	"github.com/hpungsan/playbook/internal/playbook"
	"github.com/hpungsan/playbook/internal/store"
)

// maxFormBody bounds entry form and JSON submissions.
const maxFormBody = 256 << 10

// HandleNewEntry handles GET /entries/new: the empty entry form.
func (h *Handlers) HandleNewEntry(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderForm(w, r, s, http.StatusOK, newDraft(s.SelectedIndustry()), nil)
}

// HandleCreateEntry handles POST /entries: validate, generate, then save.
// Validation and generation failures re-render the form with the draft kept
// and a blocking dialog. Nothing is generated or stored for an invalid draft.
func (h *Handlers) HandleCreateEntry(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}

	draft, err := decodeDraft(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	req := draft.Request(s.SelectedIndustry())
	if problems := draft.problems(req); len(problems) > 0 {
		h.renderProblems(w, r, s, draft, problems, playbook.ValidateIncident(req.Title, req.Summary))
		return
	}

	result, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		pErr := errors.As(err)
		h.logger.Warn("generation failed", zap.String("code", string(pErr.Code)), zap.Error(err))
		h.renderProblems(w, r, s, draft, []string{pErr.Message}, pErr)
		return
	}

	entry, err := generation.NewEntry(req, result, h.now())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	created, err := s.Create(r.Context(), entry)
	if err != nil {
		if wantsJSON(r) {
			h.renderer.renderError(w, r, err)
			return
		}
		// Keep the form; the user can submit again.
		pd := h.page(s, "New Entry", "new")
		h.notice(w, r, &pd, errors.As(err).Message)
		h.renderer.renderPageStatus(w, r, errors.As(err).Status, "form", FormPageData{
			PageData:   pd,
			Draft:      draft,
			Industries: playbook.Industries,
			Categories: playbook.Categories,
		})
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, created)
		return
	}
	redirect(w, r, "/entries/"+created.ID)
}

// HandleDetail handles GET /entries/{id}: an entry card. Owners can edit
// their own entries; library entries and suggestions are read-only.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	s, _ := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, errors.NewUnauthorized())
		return
	}

	entry, editable, err := h.findEntry(r, s, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, entry)
		return
	}

	data := DetailPageData{
		PageData: h.page(s, entry.Title, ""),
		Entry:    entry,
		Editable: editable,
		Editing:  editable && r.URL.Query().Get("edit") == "1",
		Statuses: playbook.Statuses,
	}
	if r.Header.Get("HX-Target") == "entry-card" {
		h.renderer.renderBlock(w, http.StatusOK, "detail", "entry-card", data)
		return
	}
	h.renderer.renderPage(w, r, "detail", data)
}

// HandleEdit handles POST /entries/{id}: save edited fields. Status is kept.
func (h *Handlers) HandleEdit(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}
	id := r.PathValue("id")

	var patch playbook.Patch
	if isJSONBody(r) {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody)).Decode(&patch); err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON body"))
			return
		}
		// Lifecycle and publishing have their own endpoints.
		patch.Status, patch.IsPublished, patch.LastUpdated = nil, nil, nil
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
		if err := r.ParseForm(); err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
			return
		}
		patch = patchFromForm(r.PostForm)
	}
	if patch.IsEmpty() {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("nothing to update"))
		return
	}

	if patch.Title != nil || patch.Summary != nil {
		cur, _, err := h.findEntry(r, s, id)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		merged := playbook.Apply(cur, patch)
		if err := playbook.ValidateIncident(merged.Title, merged.Summary); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	}

	updated, err := s.Update(r.Context(), id, patch)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respondEntry(w, r, s, updated, "Entry saved")
}

// HandleStatus handles POST /entries/{id}/status: move through the lifecycle.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	status, ok := playbook.ParseStatus(r.FormValue("status"))
	if !ok {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("unknown status: "+r.FormValue("status")))
		return
	}

	updated, err := s.Transition(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respondEntry(w, r, s, updated, "Status set to "+string(updated.Status))
}

// HandlePublish handles POST /entries/{id}/publish: share to or withdraw from the library.
func (h *Handlers) HandlePublish(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	published, err := strconv.ParseBool(r.FormValue("published"))
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("published must be true or false"))
		return
	}

	updated, err := s.TogglePublish(r.Context(), r.PathValue("id"), published)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	msg := "Published to the library"
	if !published {
		msg = "Removed from the library"
	}
	h.respondEntry(w, r, s, updated, msg)
}

// HandleDelete handles DELETE /entries/{id}: permanently remove an entry.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}
	id := r.PathValue("id")

	if err := s.Delete(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request from a list row: the row swaps itself out
	if isHTMX(r) && strings.HasPrefix(r.Header.Get("HX-Target"), "entry-row") {
		setToast(w, "Entry deleted", "success")
		w.WriteHeader(http.StatusOK)
		return
	}

	// JSON request
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted": true,
			"id":      id,
		})
		return
	}

	// Default: redirect
	redirect(w, r, "/my")
}

// HandleExportText handles GET /entries/{id}/export.md: the copy/share text.
// ?download=1 serves it as a file.
func (h *Handlers) HandleExportText(w http.ResponseWriter, r *http.Request) {
	s, _ := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, errors.NewUnauthorized())
		return
	}
	entry, _, err := h.findEntry(r, s, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="%s.md"`, playbook.FileSlug(entry.Title)))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(playbook.FormatText(entry)))
}

// HandleShare handles GET /entries/{id}/share: the payload for the device share sheet.
func (h *Handlers) HandleShare(w http.ResponseWriter, r *http.Request) {
	s, _ := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, errors.NewUnauthorized())
		return
	}
	entry, _, err := h.findEntry(r, s, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{
		"title": playbook.ShareTitle(entry),
		"text":  playbook.FormatText(entry),
	})
}

// HandlePrint handles GET /entries/{id}/print: a standalone printable page,
// loaded into a hidden frame by app.js.
func (h *Handlers) HandlePrint(w http.ResponseWriter, r *http.Request) {
	s, _ := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, errors.NewUnauthorized())
		return
	}
	entry, _, err := h.findEntry(r, s, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	h.renderer.renderBlock(w, http.StatusOK, "print", "print", PrintPageData{
		Entry:        entry,
		RenderedHTML: h.renderer.renderMarkdown(playbook.FormatText(entry)),
	})
}

// findEntry resolves id to the owner's entry, a built-in suggestion, or a
// published library entry. Only the owner's entries are editable.
func (h *Handlers) findEntry(r *http.Request, s *store.Store, id string) (playbook.Entry, bool, error) {
	if id == "" {
		return playbook.Entry{}, false, errors.NewInvalidRequest("entry ID is required")
	}
	if e, ok := s.Get(id); ok {
		return e, true, nil
	}
	if e, ok := ops.Suggestion(id); ok {
		return e, false, nil
	}

	if e, err := h.registry.Repository().Get(r.Context(), s.Owner(), id); err == nil {
		return *e, true, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return playbook.Entry{}, false, err
	}

	published, err := h.registry.Repository().ListPublished(r.Context())
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

// respondEntry answers a successful mutation: the refreshed card for htmx,
// the entry for JSON, otherwise a redirect back to the card.
func (h *Handlers) respondEntry(w http.ResponseWriter, r *http.Request, s *store.Store, e *playbook.Entry, msg string) {
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, e)
		return
	}
	if isHTMX(r) {
		setToast(w, msg, "success")
		h.renderer.renderBlock(w, http.StatusOK, "detail", "entry-card", DetailPageData{
			PageData: h.page(s, e.Title, ""),
			Entry:    *e,
			Editable: true,
			Statuses: playbook.Statuses,
		})
		return
	}
	http.Redirect(w, r, "/entries/"+e.ID, http.StatusSeeOther)
}

// renderForm renders the entry form.
func (h *Handlers) renderForm(w http.ResponseWriter, r *http.Request, s *store.Store, status int, draft EntryDraft, problems []string) {
	h.renderer.renderPageStatus(w, r, status, "form", FormPageData{
		PageData:   h.page(s, "New Entry", "new"),
		Draft:      draft,
		Industries: playbook.Industries,
		Categories: playbook.Categories,
		Problems:   problems,
	})
}

// renderProblems answers a rejected submission: the form with a blocking
// dialog, or a JSON error listing every problem.
func (h *Handlers) renderProblems(w http.ResponseWriter, r *http.Request, s *store.Store, draft EntryDraft, problems []string, cause error) {
	status := http.StatusUnprocessableEntity
	code := errors.ErrInvalidRequest
	if cause != nil {
		pErr := errors.As(cause)
		status, code = pErr.Status, pErr.Code
	}

	if wantsJSON(r) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":     string(code),
				"message":  problems[0],
				"status":   status,
				"problems": problems,
			},
		})
		return
	}
	h.renderForm(w, r, s, status, draft, problems)
}

// decodeDraft reads the entry form, or a JSON body when one is sent.
func decodeDraft(w http.ResponseWriter, r *http.Request) (EntryDraft, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if isJSONBody(r) {
		var d EntryDraft
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			return EntryDraft{}, errors.NewInvalidRequest("invalid JSON body")
		}
		return d, nil
	}
	if err := r.ParseForm(); err != nil {
		return EntryDraft{}, errors.NewInvalidRequest("invalid form data")
	}
	return draftFromForm(r.PostForm), nil
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
