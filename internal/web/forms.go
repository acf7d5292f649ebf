package web

import (
	"net/url"
	"strings"

	"github.com/hpungsan/playbook/internal/generation"
	"github.com/hpungsan/playbook/internal/playbook"
)

// EntryDraft is the entry form as typed. It is echoed back on failure so the
// user never has to re-enter anything.
type EntryDraft struct {
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Category      string `json:"category"`
	CategoryOther string `json:"categoryOther,omitempty"`
	Industry      string `json:"industry"`
	IndustryOther string `json:"industryOther,omitempty"`
	RootCause     string `json:"rootCause,omitempty"`
	Impact        string `json:"impact,omitempty"`
}

// newDraft starts an empty form for the selected industry.
func newDraft(industry string) EntryDraft {
	d := EntryDraft{Category: playbook.DefaultCategory, Industry: industry}
	if industry != "" && !playbook.IsKnownIndustry(industry) {
		d.Industry = playbook.FilterOther
		d.IndustryOther = industry
	}
	return d
}

func draftFromForm(form url.Values) EntryDraft {
	return EntryDraft{
		Title:         form.Get("title"),
		Summary:       form.Get("summary"),
		Category:      form.Get("category"),
		CategoryOther: form.Get("category_other"),
		Industry:      form.Get("industry"),
		IndustryOther: form.Get("industry_other"),
		RootCause:     form.Get("root_cause"),
		Impact:        form.Get("impact"),
	}
}

// Request resolves the "Other" choices into the generation request.
// A blank industry falls back to fallbackIndustry.
func (d EntryDraft) Request(fallbackIndustry string) generation.Request {
	industry := playbook.ResolveChoice(d.Industry, d.IndustryOther)
	if industry == "" {
		industry = fallbackIndustry
	}
	return generation.Request{
		Title:     strings.TrimSpace(d.Title),
		Category:  playbook.ResolveChoice(d.Category, d.CategoryOther),
		Summary:   strings.TrimSpace(d.Summary),
		RootCause: strings.TrimSpace(d.RootCause),
		Impact:    strings.TrimSpace(d.Impact),
		Industry:  industry,
	}
}

// problems lists every reason the draft can't be submitted.
func (d EntryDraft) problems(req generation.Request) []string {
	msgs := playbook.CheckIncident(req.Title, req.Summary).Messages()
	if req.Category == "" {
		msgs = append(msgs, "Category is required")
	}
	if req.Industry == "" {
		msgs = append(msgs, "Industry is required")
	}
	return msgs
}

// patchFromForm builds a patch from the edit form. Only submitted fields are
// set. List fields take one item per line; tags are comma-separated.
func patchFromForm(form url.Values) playbook.Patch {
	var p playbook.Patch

	text := func(key string) *string {
		if _, ok := form[key]; !ok {
			return nil
		}
		v := strings.TrimSpace(form.Get(key))
		return &v
	}
	list := func(key string, split func(string) []string) *[]string {
		if _, ok := form[key]; !ok {
			return nil
		}
		items := split(form.Get(key))
		return &items
	}

	p.Title = text("title")
	p.Summary = text("summary")
	p.RootCause = text("root_cause")
	p.Impact = text("impact")
	p.Recommendation = text("recommendation")
	p.Industry = text("industry")
	p.Category = text("category")
	p.DoList = list("do_list", splitLines)
	p.DontList = list("dont_list", splitLines)
	p.PreventionChecklist = list("prevention_checklist", splitLines)
	p.Tags = list("tags", splitTags)

	// Blank industry/category would orphan the entry from every filter.
	if p.Industry != nil && *p.Industry == "" {
		p.Industry = nil
	}
	if p.Category != nil && *p.Category == "" {
		p.Category = nil
	}
	return p
}

func splitLines(s string) []string {
	return splitClean(strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n"))
}

func splitTags(s string) []string {
	return splitClean(strings.Split(s, ","))
}

func splitClean(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
