package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/playbook/internal/config"
	"github.com/hpungsan/playbook/internal/db"
	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/generation"
	"github.com/hpungsan/playbook/internal/localstore"
	"github.com/hpungsan/playbook/internal/playbook"
	"github.com/hpungsan/playbook/internal/session"
	"github.com/hpungsan/playbook/internal/store"
)

const testOwner = "owner-1"

type fakeGenerator struct {
	result *generation.Result
	err    error
	calls  int
	last   generation.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req generation.Request) (*generation.Result, error) {
	g.calls++
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type testApp struct {
	handler  http.Handler
	registry *store.Registry
	gen      *fakeGenerator
	sessions *session.Manager
}

func setupTest(t *testing.T) *testApp {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	prefs, err := localstore.Open(tmpDir)
	if err != nil {
		t.Fatalf("localstore.Open: %v", err)
	}

	sessions, err := session.NewManager("test-secret")
	if err != nil {
		t.Fatalf("session.NewManager: %v", err)
	}

	app := &testApp{
		registry: store.NewRegistry(db.NewRepository(database, nil), prefs, nil),
		gen: &fakeGenerator{result: &generation.Result{
			RootCause:           "Misconfigured health checks",
			Impact:              "Two hours of downtime",
			Recommendation:      "Rehearse cutovers in staging",
			DoList:              []string{"Run a dry run"},
			DontList:            []string{"Skip the runbook"},
			PreventionChecklist: []string{"Health checks verified"},
		}},
		sessions: sessions,
	}

	handler, err := NewHandler(Deps{
		Registry:  app.registry,
		Generator: app.gen,
		Sessions:  sessions,
		Config:    config.DefaultConfig(),
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	app.handler = handler
	return app
}

// doAs serves req as owner.
func (a *testApp) doAs(t *testing.T, owner string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	tok, err := a.sessions.Issue(owner)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: tok})
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	return a.doAs(t, testOwner, req)
}

func (a *testApp) store(t *testing.T, owner string) *store.Store {
	t.Helper()
	s, err := a.registry.For(context.Background(), owner)
	if err != nil {
		t.Fatalf("registry.For: %v", err)
	}
	return s
}

func (a *testApp) setIndustry(t *testing.T, industry string) {
	t.Helper()
	if err := a.store(t, testOwner).SetSelectedIndustry(industry); err != nil {
		t.Fatalf("set industry: %v", err)
	}
}

// seedEntry stores an entry for owner and returns it.
func (a *testApp) seedEntry(t *testing.T, owner, title string, published bool) playbook.Entry {
	t.Helper()
	e, err := a.store(t, owner).Create(context.Background(), playbook.Entry{
		Title:               title,
		Industry:            "IT & Technology",
		Category:            "Technical Issue",
		Summary:             "The load balancer was misconfigured during the migration window.",
		RootCause:           "Missing runbook",
		Recommendation:      "Write the runbook",
		DoList:              []string{"Plan"},
		DontList:            []string{"Rush"},
		PreventionChecklist: []string{"Review"},
		Tags:                []string{"Cloud", "Migration"},
		IsPublished:         published,
	})
	if err != nil {
		t.Fatalf("seed entry %q: %v", title, err)
	}
	return *e
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func validForm() url.Values {
	return url.Values{
		"title":    {"Q4 Cloud Migration"},
		"summary":  {"We had two hours of downtime due to a misconfigured load balancer during the Q4 migration window."},
		"category": {"Technical Issue"},
		"industry": {"IT & Technology"},
	}
}

// --- Industry picker ---

func TestIndustryPicker_RendersWhenUnset(t *testing.T) {
	app := setupTest(t)

	rec := app.do(t, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Choose your industry") {
		t.Error("expected picker heading")
	}
	if !strings.Contains(body, "Healthcare") {
		t.Error("expected industry options")
	}
}

func TestSetIndustry_RedirectsToDashboard(t *testing.T) {
	app := setupTest(t)

	rec := app.do(t, postForm("/industry", url.Values{"industry": {"Healthcare"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("Location = %q, want /dashboard", loc)
	}
	if got := app.store(t, testOwner).SelectedIndustry(); got != "Healthcare" {
		t.Errorf("selected industry = %q", got)
	}

	rec = app.do(t, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Errorf("GET / with industry: status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestSetIndustry_Other(t *testing.T) {
	app := setupTest(t)

	app.do(t, postForm("/industry", url.Values{"industry": {"Other"}, "industry_other": {" Space Mining "}}))

	if got := app.store(t, testOwner).SelectedIndustry(); got != "Space Mining" {
		t.Errorf("selected industry = %q, want Space Mining", got)
	}
}

func TestSetIndustry_Blank(t *testing.T) {
	app := setupTest(t)

	rec := app.do(t, postForm("/industry", url.Values{"industry": {"Other"}}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestClearIndustry(t *testing.T) {
	app := setupTest(t)
	app.setIndustry(t, "Healthcare")

	rec := app.do(t, postForm("/industry/clear", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := app.store(t, testOwner).SelectedIndustry(); got != "" {
		t.Errorf("selected industry = %q, want empty", got)
	}
}

func TestIndustry_IsPerOwner(t *testing.T) {
	app := setupTest(t)
	app.setIndustry(t, "Healthcare")

	if got := app.store(t, "owner-2").SelectedIndustry(); got != "" {
		t.Errorf("other owner's industry = %q, want empty", got)
	}
}

// --- Dashboard ---

func TestDashboard_RedirectsWithoutIndustry(t *testing.T) {
	app := setupTest(t)

	rec := app.do(t, httptest.NewRequest("GET", "/dashboard", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestDashboard_RecentAndSuggestions(t *testing.T) {
	app := setupTest(t)
	app.setIndustry(t, "IT & Technology")
	app.seedEntry(t, testOwner, "Load balancer outage", false)

	rec := app.do(t, httptest.NewRequest("GET", "/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Load balancer outage") {
		t.Error("expected recent entry")
	}
	if !strings.Contains(body, "Cloud Migration Rollback Protocol") {
		t.Error("expected industry suggestion")
	}
	if strings.Contains(body, "Compliance Audit Preparation") {
		t.Error("did not expect other industry's suggestion")
	}
}

func TestDashboard_SearchFragment(t *testing.T) {
	app := setupTest(t)
	app.setIndustry(t, "IT & Technology")
	app.seedEntry(t, testOwner, "Load balancer outage", false)

	req := httptest.NewRequest("GET", "/dashboard?q=CLOUD", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "dashboard-results")
	rec := app.do(t, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<html") {
		t.Error("fragment should not include the layout")
	}
	if !strings.Contains(body, "Load balancer outage") {
		t.Error("expected tag match on owner's entry")
	}
	if !strings.Contains(body, "Cloud Migration Rollback Protocol") {
		t.Error("expected suggestion match")
	}
}

func TestDashboard_JSON(t *testing.T) {
	app := setupTest(t)
	app.setIndustry(t, "IT & Technology")
	app.seedEntry(t, testOwner, "Load balancer outage", false)

	req := httptest.NewRequest("GET", "/dashboard?q=nothing-matches", nil)
	req.Header.Set("Accept", "application/json")
	rec := app.do(t, req)

	var got struct {
		Searching bool             `json:"searching"`
		Results   []playbook.Entry `json:"results"`
		Recent    []playbook.Entry `json:"recent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Searching || len(got.Results) != 0 || len(got.Recent) != 1 {
		t.Errorf("got searching=%v results=%d recent=%d", got.Searching, len(got.Results), len(got.Recent))
	}
}

// --- Entry creation ---

func TestCreateEntry_EndToEnd(t *testing.T) {
	app := setupTest(t)
	app.setIndustry(t, "IT & Technology")

	rec := app.do(t, postForm("/entries", validForm()))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create status = %d, want 303; body: %s", rec.Code, rec.Body.String())
	}
	if app.gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", app.gen.calls)
	}

	entries := app.store(t, testOwner).Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if rec.Header().Get("Location") != "/entries/"+e.ID {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
	if e.Status != playbook.StatusDraft || e.IsPublished {
		t.Errorf("new entry status=%q published=%v", e.Status, e.IsPublished)
	}
	if e.DateCreated != e.LastUpdated {
		t.Errorf("dateCreated %d != lastUpdated %d", e.DateCreated, e.LastUpdated)
	}
	wantTags := []string{"IT & Technology", "Technical Issue", generation.AIGeneratedTag}
	if strings.Join(e.Tags, "|") != strings.Join(wantTags, "|") {
		t.Errorf("tags = %v, want %v", e.Tags, wantTags)
	}

	rec = app.do(t, postForm("/entries/"+e.ID+"/status", url.Values{"status": {"Approved"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("approve status = %d", rec.Code)
	}
	rec = app.do(t, postForm("/entries/"+e.ID+"/publish", url.Values{"published": {"true"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("publish status = %d", rec.Code)
	}

	req := httptest.NewRequest("GET", "/library?industry="+url.QueryEscape("IT & Technology"), nil)
	req.Header.Set("Accept", "application/json")
	rec = app.doAs(t, "someone-else", req)

	var lib struct {
		Entries []playbook.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &lib); err != nil {
		t.Fatalf("decode library: %v", err)
	}
	if len(lib.Entries) != 1 || lib.Entries[0].ID != e.ID || lib.Entries[0].Status != playbook.StatusApproved {
		t.Errorf("library = %+v", lib.Entries)
	}
}

func TestCreateEntry_TitleTooShort(t *testing.T) {
	app := setupTest(t)
	app.setIndustry(t, "IT & Technology")

	form := validForm()
	form.Set("title", "Q4")
	rec := app.do(t, postForm("/entries", form))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Title must be at least 3 characters") {
		t.Error("expected title message in dialog")
	}
	if !strings.Contains(body, "misconfigured load balancer") {
		t.Error("expected summary to be preserved")
	}
	if app.gen.calls != 0 {
		t.Errorf("generator called %d times for invalid draft", app.gen.calls)
	}
}

func TestCreateEntry_GenerationFailureKeepsDraft(t *testing.T) {
	app := setupTest(t)
	app.setIndustry(t, "IT & Technology")
	app.gen.err = errors.NewGenerationFailed("Quota exceeded", nil)

	rec := app.do(t, postForm("/entries", validForm()))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Quota exceeded") {
		t.Error("expected server message in dialog")
	}
	if !strings.Contains(body, "Q4 Cloud Migration") {
		t.Error("expected title to be preserved")
	}
	if n := len(app.store(t, testOwner).Entries()); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}

func TestCreateEntry_OtherCategory(t *testing.T) {
	app := setupTest(t)
	app.setIndustry(t, "IT & Technology")

	form := validForm()
	form.Set("category", "Other")
	form.Set("category_other", "Vendor Escalation")
	app.do(t, postForm("/entries", form))

	if app.gen.last.Category != "Vendor Escalation" {
		t.Errorf("category = %q, want Vendor Escalation", app.gen.last.Category)
	}
}

func TestCreateEntry_HTMXRedirect(t *testing.T) {
	app := setupTest(t)
	app.setIndustry(t, "IT & Technology")

	req := postForm("/entries", validForm())
	req.Header.Set("HX-Request", "true")
	rec := app.do(t, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("HX-Redirect"), "/entries/") {
		t.Errorf("HX-Redirect = %q", rec.Header().Get("HX-Redirect"))
	}
}

func TestCreateEntry_JSON(t *testing.T) {
	app := setupTest(t)

	body := `{"title":"Vendor delay","summary":"The vendor shipped hardware three weeks late, stalling the rollout.","category":"Vendor Management","industry":"Construction","rootCause":"No penalty clause"}`
	req := httptest.NewRequest("POST", "/entries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := app.do(t, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}
	var e playbook.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Industry != "Construction" || e.RootCause != "Misconfigured health checks" {
		t.Errorf("entry = %+v", e)
	}
	if app.gen.last.RootCause != "No penalty clause" {
		t.Errorf("request root cause = %q", app.gen.last.RootCause)
	}
}

func TestCreateEntry_JSONValidationListsProblems(t *testing.T) {
	app := setupTest(t)

	req := httptest.NewRequest("POST", "/entries", strings.NewReader(`{"title":"Q4","summary":"short","category":"Security","industry":"Sales"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := app.do(t, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp struct {
		Error struct {
			Code     string   `json:"code"`
			Problems []string `json:"problems"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != string(errors.ErrTitleTooShort) || len(resp.Error.Problems) != 2 {
		t.Errorf("error = %+v", resp.Error)
	}
}

// --- Detail ---

func TestDetail_OwnerCanEdit(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)

	rec := app.do(t, httptest.NewRequest("GET", "/entries/"+e.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Load balancer outage", "Approve", "Publish to library", "Flag for review"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in card", want)
		}
	}
}

func TestDetail_SuggestionIsReadOnly(t *testing.T) {
	app := setupTest(t)

	rec := app.do(t, httptest.NewRequest("GET", "/entries/sugg-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Approve") {
		t.Error("suggestion should not offer lifecycle actions")
	}
}

func TestDetail_OtherOwners(t *testing.T) {
	app := setupTest(t)
	private := app.seedEntry(t, "owner-2", "Private lesson", false)
	public := app.seedEntry(t, "owner-2", "Public lesson", true)

	rec := app.do(t, httptest.NewRequest("GET", "/entries/"+private.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("private entry status = %d, want 404", rec.Code)
	}

	rec = app.do(t, httptest.NewRequest("GET", "/entries/"+public.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("published entry status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "hx-delete") {
		t.Error("library entry of another owner should not be deletable")
	}

	rec = app.do(t, postForm("/entries/"+public.ID+"/publish", url.Values{"published": {"false"}}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unpublishing another owner's entry: status = %d, want 404", rec.Code)
	}
}

func TestDetail_NotFoundJSON(t *testing.T) {
	app := setupTest(t)

	req := httptest.NewRequest("GET", "/entries/missing", nil)
	req.Header.Set("Accept", "application/json")
	rec := app.do(t, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"NOT_FOUND"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

// --- Mutations ---

func TestEdit_PartialUpdateKeepsStatus(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)
	if _, err := app.store(t, testOwner).Approve(context.Background(), e.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	rec := app.do(t, postForm("/entries/"+e.ID, url.Values{
		"recommendation": {"Automate the cutover"},
		"do_list":        {"Plan\r\n\r\nRehearse\n"},
	}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rec.Code, rec.Body.String())
	}

	got, _ := app.store(t, testOwner).Get(e.ID)
	if got.Recommendation != "Automate the cutover" {
		t.Errorf("recommendation = %q", got.Recommendation)
	}
	if strings.Join(got.DoList, "|") != "Plan|Rehearse" {
		t.Errorf("doList = %v", got.DoList)
	}
	if got.Title != e.Title || got.RootCause != e.RootCause {
		t.Error("fields not in the form changed")
	}
	if got.Status != playbook.StatusApproved {
		t.Errorf("status = %q, want Approved", got.Status)
	}
	if got.LastUpdated <= e.LastUpdated {
		t.Errorf("lastUpdated did not advance: %d <= %d", got.LastUpdated, e.LastUpdated)
	}
}

func TestEdit_HTMXReturnsCard(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)

	req := postForm("/entries/"+e.ID, url.Values{"tags": {"Cloud, , Network "}})
	req.Header.Set("HX-Request", "true")
	rec := app.do(t, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `id="entry-card"`) {
		t.Error("expected refreshed card")
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), "Entry saved") {
		t.Errorf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}
	got, _ := app.store(t, testOwner).Get(e.ID)
	if strings.Join(got.Tags, "|") != "Cloud|Network" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestEdit_RejectsShortTitle(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)

	rec := app.do(t, postForm("/entries/"+e.ID, url.Values{"title": {"ab"}}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestEdit_Empty(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)

	rec := app.do(t, postForm("/entries/"+e.ID, url.Values{}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStatus_InvalidTransition(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)
	app.do(t, postForm("/entries/"+e.ID+"/status", url.Values{"status": {"Approved"}}))

	rec := app.do(t, postForm("/entries/"+e.ID+"/status", url.Values{"status": {"Draft"}}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	rec = app.do(t, postForm("/entries/"+e.ID+"/status", url.Values{"status": {"Shipped"}}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: status = %d, want 400", rec.Code)
	}
}

func TestStatus_HTMXErrorIsToast(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)
	if _, err := app.store(t, testOwner).Transition(context.Background(), e.ID, playbook.StatusNeedsEdit); err != nil {
		t.Fatalf("flag: %v", err)
	}

	req := postForm("/entries/"+e.ID+"/status", url.Values{"status": {"Draft"}})
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "entry-card")
	rec := app.do(t, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), "showToast") {
		t.Errorf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}
	if rec.Header().Get("HX-Reswap") != "none" {
		t.Error("error should not replace page content")
	}
}

func TestPublish_Idempotent(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)

	for i := 0; i < 2; i++ {
		req := postForm("/entries/"+e.ID+"/publish", url.Values{"published": {"true"}})
		req.Header.Set("Accept", "application/json")
		rec := app.do(t, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("publish #%d status = %d", i+1, rec.Code)
		}
	}

	entries := app.store(t, testOwner).Entries()
	if len(entries) != 1 || !entries[0].IsPublished {
		t.Errorf("entries = %+v", entries)
	}
}

func TestPublish_BadValue(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)

	rec := app.do(t, postForm("/entries/"+e.ID+"/publish", url.Values{"published": {"maybe"}}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDelete_FromListRow(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("DELETE", "/entries/"+e.ID, nil)
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Target", "entry-row-"+e.ID)
		rec := app.do(t, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("delete #%d status = %d, want 200", i+1, rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("delete #%d body = %q, want empty", i+1, rec.Body.String())
		}
	}
	if n := len(app.store(t, testOwner).Entries()); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}

func TestDelete_FromCardRedirects(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Load balancer outage", false)

	req := httptest.NewRequest("DELETE", "/entries/"+e.ID, nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "entry-card")
	rec := app.do(t, req)

	if rec.Header().Get("HX-Redirect") != "/my" {
		t.Errorf("HX-Redirect = %q, want /my", rec.Header().Get("HX-Redirect"))
	}
}

// --- Export surface ---

func TestExportText(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Q4 Cloud Migration", false)

	rec := app.do(t, httptest.NewRequest("GET", "/entries/"+e.ID+"/export.md?download=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "# Q4 Cloud Migration\n") {
		t.Errorf("body starts %q", rec.Body.String()[:30])
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "q4-cloud-migration.md") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestShare(t *testing.T) {
	app := setupTest(t)

	rec := app.do(t, httptest.NewRequest("GET", "/entries/sugg-2/share", nil))
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["title"] != "Playbook: Compliance Audit Preparation" {
		t.Errorf("title = %q", payload["title"])
	}
	if !strings.Contains(payload["text"], "## Prevention Protocol") {
		t.Error("expected formatted text")
	}
}

func TestPrint(t *testing.T) {
	app := setupTest(t)
	e := app.seedEntry(t, testOwner, "Q4 Cloud Migration", false)

	rec := app.do(t, httptest.NewRequest("GET", "/entries/"+e.ID+"/print", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Q4 Cloud Migration</h1>") {
		t.Error("expected rendered markdown heading")
	}
	if strings.Contains(body, `class="topbar"`) {
		t.Error("print view should not include the layout")
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("X-Frame-Options = %q, want SAMEORIGIN", got)
	}
}

// --- Lists ---

func TestMyEntries_Filters(t *testing.T) {
	app := setupTest(t)
	app.seedEntry(t, testOwner, "Shared lesson", true)
	app.seedEntry(t, testOwner, "Private lesson", false)

	rec := app.do(t, httptest.NewRequest("GET", "/my?filter=Unpublished", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "Private lesson") || strings.Contains(body, "Shared lesson") {
		t.Error("unpublished filter returned wrong entries")
	}

	req := httptest.NewRequest("GET", "/my?filter=Draft", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "my-results")
	rec = app.do(t, req)
	body = rec.Body.String()
	if !strings.Contains(body, "Private lesson") || !strings.Contains(body, "Shared lesson") {
		t.Error("status filter should include both drafts")
	}
	if strings.Contains(body, "<nav") {
		t.Error("fragment should not include filter chips")
	}
}

func TestLibrary_UnpublishedNeverShown(t *testing.T) {
	app := setupTest(t)
	app.seedEntry(t, testOwner, "Shared lesson", true)
	app.seedEntry(t, testOwner, "Private lesson", false)

	for _, q := range []string{"", "?q=lesson", "?industry=All&category=All", "?industry=Other&industry_other="} {
		rec := app.do(t, httptest.NewRequest("GET", "/library"+q, nil))
		body := rec.Body.String()
		if strings.Contains(body, "Private lesson") {
			t.Errorf("library%s shows an unpublished entry", q)
		}
		if !strings.Contains(body, "Shared lesson") {
			t.Errorf("library%s misses the published entry", q)
		}
	}
}

func TestLibrary_CategoryFilter(t *testing.T) {
	app := setupTest(t)
	app.seedEntry(t, "owner-2", "Shared lesson", true)

	rec := app.do(t, httptest.NewRequest("GET", "/library?category=Security", nil))
	if strings.Contains(rec.Body.String(), "Shared lesson") {
		t.Error("category filter should exclude Technical Issue entries")
	}
}

// --- Guide, privacy, plumbing ---

func TestGuide_DismissHidesOverlay(t *testing.T) {
	app := setupTest(t)

	rec := app.do(t, httptest.NewRequest("GET", "/privacy", nil))
	if !strings.Contains(rec.Body.String(), "Quick Start Guide") {
		t.Fatal("expected guide on first visit")
	}

	req := postForm("/guide/dismiss", nil)
	req.Header.Set("HX-Request", "true")
	if rec := app.do(t, req); rec.Code != http.StatusOK {
		t.Fatalf("dismiss status = %d", rec.Code)
	}

	rec = app.do(t, httptest.NewRequest("GET", "/privacy", nil))
	if strings.Contains(rec.Body.String(), "Quick Start Guide") {
		t.Error("guide shown after dismissal")
	}
	if !strings.Contains(rec.Body.String(), "Privacy Policy") {
		t.Error("expected privacy page")
	}
}

func TestSession_NewVisitorGetsCookie(t *testing.T) {
	app := setupTest(t)

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest("GET", "/privacy", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			found = true
		}
	}
	if !found {
		t.Error("expected session cookie")
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := setupTest(t)

	rec := app.do(t, httptest.NewRequest("GET", "/privacy", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", rec.Header().Get("X-Frame-Options"))
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Errorf("CSP = %q", rec.Header().Get("Content-Security-Policy"))
	}
}

func TestStaticFiles(t *testing.T) {
	app := setupTest(t)

	for _, path := range []string{"/static/app.js", "/static/style.css", "/static/print.css"} {
		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}

func TestSession_NewVisitorsAreNotCached(t *testing.T) {
	app := setupTest(t)

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, httptest.NewRequest("GET", "/my", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
	if n := app.registry.Len(); n != 0 {
		t.Errorf("registry holds %d stores, want 0", n)
	}
}

func TestSession_NewVisitorWritesPersist(t *testing.T) {
	app := setupTest(t)

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, postForm("/industry", url.Values{"industry": {"Retail"}}))
	if rec.Code != http.StatusSeeOther && rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect", rec.Code)
	}

	var tok string
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			tok = c.Value
		}
	}
	if tok == "" {
		t.Fatal("expected session cookie")
	}
	claims, err := app.sessions.Parse(tok)
	if err != nil {
		t.Fatalf("parse cookie: %v", err)
	}
	if got := app.store(t, claims.OwnerID).SelectedIndustry(); got != "Retail" {
		t.Errorf("industry = %q, want Retail", got)
	}
}

func TestMyEntries_ReloadPicksUpOutsideWrites(t *testing.T) {
	app := setupTest(t)
	app.seedEntry(t, testOwner, "Cached lesson", false)

	// Written straight to the repository, bypassing the cached store.
	outside := playbook.Entry{
		ID:          "outside-1",
		Title:       "Imported lesson",
		Industry:    "Retail",
		Category:    "Operations",
		Summary:     "Written by another process sharing the database.",
		Status:      playbook.StatusDraft,
		DateCreated: time.Now().UnixMilli(),
		LastUpdated: time.Now().UnixMilli(),
	}
	if _, err := app.registry.Repository().Create(context.Background(), testOwner, outside); err != nil {
		t.Fatalf("create: %v", err)
	}

	body := app.do(t, httptest.NewRequest("GET", "/my", nil)).Body.String()
	if strings.Contains(body, "Imported lesson") {
		t.Fatal("cached list should not see outside writes before reload")
	}

	body = app.do(t, httptest.NewRequest("GET", "/my?reload=1", nil)).Body.String()
	if !strings.Contains(body, "Imported lesson") || !strings.Contains(body, "Cached lesson") {
		t.Error("reload should show both entries")
	}
}
