package web

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/playbook/internal/config"
	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/ops"
	"github.com/hpungsan/playbook/internal/playbook"
	"github.com/hpungsan/playbook/internal/session"
	"github.com/hpungsan/playbook/internal/store"
)

const (
	loadFailedNotice    = "Could not load your entries. Try again."
	libraryFailedNotice = "Could not load the library. Try again."
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	registry  *store.Registry
	generator Generator
	cfg       *config.Config
	renderer  *Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// ownerStore returns the requesting owner's store. A non-nil store may come
// back with a load error; callers render what they have and show a notice.
// An owner minted for this request gets an uncached empty store.
func (h *Handlers) ownerStore(r *http.Request) (*store.Store, error) {
	owner, ok := session.OwnerFromContext(r.Context())
	if !ok {
		return nil, errors.NewUnauthorized()
	}
	if session.IsNewOwner(r.Context()) {
		return h.registry.Fresh(owner), nil
	}
	return h.registry.For(r.Context(), owner)
}

// page fills the fields every page shares.
func (h *Handlers) page(s *store.Store, title, nav string) PageData {
	return PageData{
		Title:     title,
		Version:   h.renderer.version,
		Nav:       nav,
		Industry:  s.SelectedIndustry(),
		ShowGuide: !s.HasSeenGuide(),
	}
}

// notice shows a transient message: a toast for htmx, a flash on full pages.
func (h *Handlers) notice(w http.ResponseWriter, r *http.Request, pd *PageData, msg string) {
	if isHTMX(r) {
		setToast(w, msg, "error")
		return
	}
	pd.Flash = msg
}

// loadWithLibrary loads the owner's store and the published entries concurrently.
// Each load fails independently.
func (h *Handlers) loadWithLibrary(r *http.Request) (s *store.Store, published []playbook.Entry, storeErr, pubErr error) {
	var g errgroup.Group
	g.Go(func() error {
		s, storeErr = h.ownerStore(r)
		return storeErr
	})
	g.Go(func() error {
		published, pubErr = h.registry.Repository().ListPublished(r.Context())
		return pubErr
	})
	if err := g.Wait(); err != nil {
		h.logger.Debug("page load incomplete", zap.Error(err))
	}
	return s, published, storeErr, pubErr
}

// HandleIndustryPicker handles GET /: choose the industry, or go to the dashboard if chosen.
func (h *Handlers) HandleIndustryPicker(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"industry":   s.SelectedIndustry(),
			"industries": playbook.Industries,
		})
		return
	}

	if s.SelectedIndustry() != "" && r.URL.Query().Get("change") == "" {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	h.renderer.renderPage(w, r, "industry", IndustryPageData{
		PageData:   h.page(s, "Choose your industry", ""),
		Industries: playbook.Industries,
	})
}

// HandleSetIndustry handles POST /industry: persist the industry selection.
func (h *Handlers) HandleSetIndustry(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	industry := playbook.ResolveChoice(r.FormValue("industry"), r.FormValue("industry_other"))
	if industry == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("industry is required"))
		return
	}
	if err := s.SetSelectedIndustry(industry); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"industry": industry})
		return
	}
	redirect(w, r, "/dashboard")
}

// HandleClearIndustry handles POST /industry/clear: forget the selection.
func (h *Handlers) HandleClearIndustry(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if err := s.SetSelectedIndustry(""); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"industry": ""})
		return
	}
	redirect(w, r, "/")
}

// HandleDashboard handles GET /dashboard: search, recent activity, and suggestions.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	s, published, storeErr, pubErr := h.loadWithLibrary(r)
	if s == nil {
		h.renderer.renderError(w, r, storeErr)
		return
	}

	industry := s.SelectedIndustry()
	if industry == "" && !wantsJSON(r) {
		redirect(w, r, "/")
		return
	}

	data := DashboardPageData{
		PageData:     h.page(s, "Dashboard", "dashboard"),
		Dashboard:    ops.BuildDashboard(s.Entries(), industry, r.URL.Query().Get("q")),
		LibraryCount: len(ops.FilterLibrary(published, ops.LibraryFilter{Industry: industry})),
	}
	switch {
	case storeErr != nil:
		h.notice(w, r, &data.PageData, loadFailedNotice)
	case pubErr != nil:
		h.notice(w, r, &data.PageData, libraryFailedNotice)
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, data.Dashboard)
		return
	}

	// If htmx targets #dashboard-results (typing in the search box), return just that fragment
	if r.Header.Get("HX-Target") == "dashboard-results" {
		h.renderer.renderBlock(w, http.StatusOK, "dashboard", "dashboard-results", data)
		return
	}

	h.renderer.renderPage(w, r, "dashboard", data)
}

// HandleLibrary handles GET /library: browse published entries from every owner.
func (h *Handlers) HandleLibrary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ops.LibraryFilter{
		Query:         q.Get("q"),
		Industry:      q.Get("industry"),
		IndustryOther: q.Get("industry_other"),
		Category:      q.Get("category"),
		CategoryOther: q.Get("category_other"),
	}

	s, published, storeErr, pubErr := h.loadWithLibrary(r)
	if s == nil {
		h.renderer.renderError(w, r, storeErr)
		return
	}

	entries := ops.FilterLibrary(published, filter)

	if wantsJSON(r) {
		if pubErr != nil {
			h.renderer.renderError(w, r, pubErr)
			return
		}
		renderJSON(w, http.StatusOK, map[string]any{"filter": filter, "entries": entries})
		return
	}

	owned := make(map[string]bool)
	for _, e := range s.Entries() {
		owned[e.ID] = true
	}

	data := LibraryPageData{
		PageData:   h.page(s, "Library", "library"),
		Filter:     filter,
		Entries:    entries,
		Industries: playbook.Industries,
		Categories: playbook.Categories,
		Owned:      owned,
	}
	if pubErr != nil {
		h.notice(w, r, &data.PageData, libraryFailedNotice)
	}

	if r.Header.Get("HX-Target") == "library-results" {
		h.renderer.renderBlock(w, http.StatusOK, "library", "library-results", data)
		return
	}

	h.renderer.renderPage(w, r, "library", data)
}

// HandleMyEntries handles GET /my: the owner's full list with publish/status filters.
func (h *Handlers) HandleMyEntries(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// reload=1 refetches the list, picking up writes made by other processes.
	if err == nil && r.URL.Query().Get("reload") == "1" {
		err = s.LoadAll(r.Context())
	}

	filter := strings.TrimSpace(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = ops.MyFilterAll
	}
	all := s.Entries()
	entries := ops.FilterMyEntries(all, filter)

	if wantsJSON(r) {
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, map[string]any{"filter": filter, "entries": entries})
		return
	}

	filters := slices.Clone(ops.MyFilters)
	for _, st := range playbook.Statuses {
		filters = append(filters, string(st))
	}

	data := MyEntriesPageData{
		PageData: h.page(s, "My Entries", "my"),
		Filter:   filter,
		Filters:  filters,
		Entries:  entries,
		Total:    len(all),
	}
	if err != nil {
		h.notice(w, r, &data.PageData, loadFailedNotice)
	}

	if r.Header.Get("HX-Target") == "my-results" {
		h.renderer.renderBlock(w, http.StatusOK, "my", "my-results", data)
		return
	}

	h.renderer.renderPage(w, r, "my", data)
}

// HandlePrivacy handles GET /privacy.
func (h *Handlers) HandlePrivacy(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderPage(w, r, "privacy", h.page(s, "Privacy Policy", "privacy"))
}

// HandleDismissGuide handles POST /guide/dismiss: hide the first-run guide on this device.
func (h *Handlers) HandleDismissGuide(w http.ResponseWriter, r *http.Request) {
	s, err := h.ownerStore(r)
	if s == nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if err := s.MarkGuideSeen(); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: the overlay removes itself
	if isHTMX(r) {
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"seen": true})
		return
	}
	redirect(w, r, "/dashboard")
}
