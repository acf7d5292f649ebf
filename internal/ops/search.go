package ops

import (
	"strings"

	"github.com/hpungsan/playbook/internal/playbook"
)

// Search returns entries whose title, summary, or tags contain term,
// case-insensitively. A blank term returns no results.
func Search(entries []playbook.Entry, term string) []playbook.Entry {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []playbook.Entry{}
	}

	out := make([]playbook.Entry, 0)
	for _, e := range entries {
		if matchesTerm(e, term) {
			out = append(out, e)
		}
	}
	return out
}

// Dashboard is the derived content of the dashboard view.
type Dashboard struct {
	Query       string           `json:"query"`
	Searching   bool             `json:"searching"`
	Results     []playbook.Entry `json:"results"`
	Recent      []playbook.Entry `json:"recent"`
	Suggestions []playbook.Entry `json:"suggestions"`
}

// BuildDashboard computes the dashboard for an owner's list. Searching covers
// the owner's entries followed by the suggestions shown for the industry.
func BuildDashboard(entries []playbook.Entry, industry, query string) Dashboard {
	suggestions := Suggestions(industry)

	d := Dashboard{
		Query:       query,
		Searching:   strings.TrimSpace(query) != "",
		Recent:      Recent(entries, RecentLimit),
		Suggestions: suggestions,
		Results:     []playbook.Entry{},
	}
	if d.Searching {
		searchable := make([]playbook.Entry, 0, len(entries)+len(suggestions))
		searchable = append(searchable, entries...)
		searchable = append(searchable, suggestions...)
		d.Results = Search(searchable, query)
	}
	return d
}

// Recent returns the first n entries of a newest-first list.
func Recent(entries []playbook.Entry, n int) []playbook.Entry {
	if n < 0 {
		n = 0
	}
	if len(entries) < n {
		n = len(entries)
	}
	out := make([]playbook.Entry, n)
	copy(out, entries[:n])
	return out
}
