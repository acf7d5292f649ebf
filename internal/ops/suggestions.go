package ops

import (
	"github.com/hpungsan/playbook/internal/playbook"
)

// suggestionAge offsets suggestion timestamps into the past so they sort
// behind fresh entries.
var suggestionAge = [...]int64{100_000_000, 200_000_000}

var suggestions = []playbook.Entry{
	{
		ID:             "sugg-1",
		Title:          "Cloud Migration Rollback Protocol",
		Category:       "Technical Issue",
		Summary:        "Standard procedure for reverting cloud infrastructure changes when critical errors are detected during deployment windows.",
		Industry:       "IT & Technology",
		Status:         playbook.StatusApproved,
		Tags:           []string{"Cloud", "DevOps", "Emergency"},
		RootCause:      "Lack of automated rollback testing",
		Recommendation: "Implement automated canary deployments",
		DoList:         []string{"Test rollback scripts", "Monitor error rates"},
		DontList:       []string{"Deploy on Fridays", "Ignore alerts"},
		PreventionChecklist: []string{
			"Check logs",
			"Notify stakeholders",
		},
	},
	{
		ID:             "sugg-2",
		Title:          "Compliance Audit Preparation",
		Category:       "Compliance",
		Summary:        "Best practices for preparing for annual financial audits to reduce findings and team stress levels.",
		Industry:       "Finance & Banking",
		Status:         playbook.StatusApproved,
		Tags:           []string{"Audit", "Finance", "Compliance"},
		RootCause:      "Scattered documentation",
		Recommendation: "Centralize audit trail evidence",
		DoList:         []string{"Maintain daily logs", "Review access monthly"},
		DontList:       []string{"Wait until audit week", "Share passwords"},
		PreventionChecklist: []string{
			"Update policy docs",
			"Conduct mock audit",
		},
	},
}

// IsSuggestion reports whether id names a built-in suggestion card.
func IsSuggestion(id string) bool {
	_, ok := Suggestion(id)
	return ok
}

// Suggestion returns a built-in suggestion card by id.
func Suggestion(id string) (playbook.Entry, bool) {
	for i, s := range suggestions {
		if s.ID == id {
			return stamped(i), true
		}
	}
	return playbook.Entry{}, false
}

// Suggestions returns the suggestion cards for industry, or every card when
// none target it.
func Suggestions(industry string) []playbook.Entry {
	out := make([]playbook.Entry, 0, len(suggestions))
	for i, s := range suggestions {
		if s.Industry == industry || s.Industry == "" {
			out = append(out, stamped(i))
		}
	}
	if len(out) > 0 {
		return out
	}
	for i := range suggestions {
		out = append(out, stamped(i))
	}
	return out
}

func stamped(i int) playbook.Entry {
	e := suggestions[i].Clone()
	ts := playbook.NowMillis(now()) - suggestionAge[i%len(suggestionAge)]
	e.DateCreated = ts
	e.LastUpdated = ts
	return e
}
