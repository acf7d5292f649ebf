package playbook

import (
	"fmt"
	"strings"
	"time"
)

// FormatText renders the copy/share text of an entry as Markdown.
func FormatText(e Entry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", e.Title)
	fmt.Fprintf(&b, "**Industry:** %s\n", e.Industry)
	fmt.Fprintf(&b, "**Category:** %s\n", e.Category)
	fmt.Fprintf(&b, "**Status:** %s\n", e.Status)
	fmt.Fprintf(&b, "**Last Updated:** %s\n", FormatDate(e.LastUpdated))

	section(&b, "What Happened", e.Summary)
	section(&b, "Root Cause Analysis", e.RootCause)
	if strings.TrimSpace(e.Impact) != "" {
		section(&b, "Business Impact", e.Impact)
	}
	section(&b, "Strategic Recommendation", e.Recommendation)

	b.WriteString("\n## Recommended Actions\n")
	numbered(&b, e.DoList)
	b.WriteString("\n## Avoid These Pitfalls\n")
	numbered(&b, e.DontList)
	b.WriteString("\n## Prevention Protocol\n")
	for _, item := range e.PreventionChecklist {
		fmt.Fprintf(&b, "- [ ] %s\n", item)
	}

	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "Tags: %s\n", strings.Join(e.Tags, ", "))

	return b.String()
}

// ShareTitle is the title passed to the device share sheet.
func ShareTitle(e Entry) string {
	return "Playbook: " + e.Title
}

// FileSlug turns a title into a filename-safe slug ("Q4 Cloud Migration" -> "q4-cloud-migration").
func FileSlug(title string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(title), "-"))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return -1
	}, slug)
	if slug == "" {
		return "playbook"
	}
	return slug
}

// FormatDate formats Unix milliseconds as a short UTC date.
func FormatDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("Jan 2, 2006")
}

func section(b *strings.Builder, heading, body string) {
	fmt.Fprintf(b, "\n## %s\n%s\n", heading, body)
}

func numbered(b *strings.Builder, items []string) {
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
}
