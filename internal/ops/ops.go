// Package ops holds the derived views over an owner's entry list and the
// JSONL export/import of entries.
//
// The view helpers are pure: they never touch persistence and recompute their
// result from the list they are given.
package ops

import (
	"strings"
	"time"

	"github.com/hpungsan/playbook/internal/playbook"
)

// now is overridden in tests.
var now = time.Now

// RecentLimit is how many entries the dashboard shows as recent activity.
const RecentLimit = 5

// My-entries filters.
const (
	MyFilterAll         = "All"
	MyFilterPublished   = "Published"
	MyFilterUnpublished = "Unpublished"
)

// MyFilters lists the publish-state filters in display order.
var MyFilters = []string{MyFilterAll, MyFilterPublished, MyFilterUnpublished}

// matchesTerm reports whether term (already lowercased) occurs in the title,
// summary, or any tag.
func matchesTerm(e playbook.Entry, term string) bool {
	if strings.Contains(strings.ToLower(e.Title), term) ||
		strings.Contains(strings.ToLower(e.Summary), term) {
		return true
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}
