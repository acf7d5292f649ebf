package ops

import (
	"strings"

	"github.com/hpungsan/playbook/internal/playbook"
)

// LibraryFilter holds the library view's selections. Industry and Category are
// "All" (or empty), one of the known values, or "Other" with free text in the
// matching *Other field.
type LibraryFilter struct {
	Query         string `json:"query,omitempty"`
	Industry      string `json:"industry,omitempty"`
	IndustryOther string `json:"industry_other,omitempty"`
	Category      string `json:"category,omitempty"`
	CategoryOther string `json:"category_other,omitempty"`
}

// IsZero reports whether the filter selects everything.
func (f LibraryFilter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" &&
		activeChoice(f.Industry, f.IndustryOther) == "" &&
		activeChoice(f.Category, f.CategoryOther) == ""
}

// FilterLibrary returns the published entries matching f, preserving order.
func FilterLibrary(entries []playbook.Entry, f LibraryFilter) []playbook.Entry {
	term := strings.ToLower(strings.TrimSpace(f.Query))
	industry := activeChoice(f.Industry, f.IndustryOther)
	category := activeChoice(f.Category, f.CategoryOther)

	out := make([]playbook.Entry, 0)
	for _, e := range entries {
		if !e.IsPublished {
			continue
		}
		if term != "" && !matchesTerm(e, term) {
			continue
		}
		if industry != "" && !strings.EqualFold(strings.TrimSpace(e.Industry), industry) {
			continue
		}
		if category != "" && !strings.EqualFold(strings.TrimSpace(e.Category), category) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// activeChoice resolves a select value and its free-text companion to the value
// to compare against. "" means no constraint; "Other" with blank text also
// means no constraint until something is typed.
func activeChoice(selected, other string) string {
	selected = strings.TrimSpace(selected)
	if selected == "" || strings.EqualFold(selected, playbook.FilterAll) {
		return ""
	}
	if strings.EqualFold(selected, playbook.FilterOther) {
		return strings.TrimSpace(other)
	}
	return selected
}

// FilterMyEntries filters an owner's full list by publish state ("All",
// "Published", "Unpublished") or by a status label. Unknown filters return the
// whole list.
func FilterMyEntries(entries []playbook.Entry, filter string) []playbook.Entry {
	filter = strings.TrimSpace(filter)

	var keep func(playbook.Entry) bool
	switch {
	case filter == "" || strings.EqualFold(filter, MyFilterAll):
		keep = func(playbook.Entry) bool { return true }
	case strings.EqualFold(filter, MyFilterPublished):
		keep = func(e playbook.Entry) bool { return e.IsPublished }
	case strings.EqualFold(filter, MyFilterUnpublished):
		keep = func(e playbook.Entry) bool { return !e.IsPublished }
	default:
		status, ok := playbook.ParseStatus(filter)
		if !ok {
			keep = func(playbook.Entry) bool { return true }
			break
		}
		keep = func(e playbook.Entry) bool { return e.Status == status }
	}

	out := make([]playbook.Entry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
