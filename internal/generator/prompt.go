package generator

import (
	"fmt"
	"strings"

	"github.com/hpungsan/playbook/internal/generation"
)

// SystemPrompt frames every generation request.
const SystemPrompt = "You are a project management expert creating detailed, actionable playbook entries. Always respond with valid JSON."

// BuildPrompt renders the industry- and category-specific instructions for req.
// Optional root cause and impact lines are included only when provided.
func BuildPrompt(req generation.Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert project management consultant creating a playbook entry for a \"Lessons Learned\" system in the %s industry.\n\n", req.Industry)
	b.WriteString("Incident Details:\n")
	fmt.Fprintf(&b, "- Title: %s\n", req.Title)
	fmt.Fprintf(&b, "- Category: %s\n", req.Category)
	fmt.Fprintf(&b, "- Summary: %s\n", req.Summary)
	if req.RootCause != "" {
		fmt.Fprintf(&b, "- Root Cause: %s\n", req.RootCause)
	}
	if req.Impact != "" {
		fmt.Fprintf(&b, "- Impact: %s\n", req.Impact)
	}

	b.WriteString(`
Generate a comprehensive playbook entry with the following:

1. If root cause wasn't provided, analyze and provide a detailed root cause.
2. If impact wasn't provided, analyze and describe the business impact.
3. A clear, actionable recommendation to prevent this issue from recurring.
4. A "Do List" with 4-6 specific action items that should be taken.
5. A "Don't List" with 4-6 anti-patterns or things to avoid.
6. A "Prevention Checklist" with 4-6 proactive measures.

Format your response as JSON with this structure:
{
  "rootCause": "string",
  "impact": "string",
  "recommendation": "string",
  "doList": ["string", ...],
  "dontList": ["string", ...],
  "preventionChecklist": ["string", ...]
}

`)
	fmt.Fprintf(&b, "Make the content specific to the %s industry and %s context. Be concise but actionable.", req.Industry, req.Category)
	return b.String()
}
