package playbook

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hpungsan/playbook/internal/errors"
)

// Minimum trimmed lengths enforced when an incident is submitted.
const (
	MinTitleChars   = 3
	MinSummaryChars = 20
)

// letterRows and digitRow spot keyboard-mash placeholder text like "asdfgh".
var (
	letterRows = []string{"qwertyuiop", "asdfghjkl", "zxcvbnm"}
	digitRow   = []string{"1234567890"}
)

// Mash detection: a token of at least mashMinLen runes, three quarters of
// which is made of keyboard-row runs of mashRunLen or more keys.
const (
	mashMinLen      = 4
	mashRunLen      = 3
	mashCoverageNum = 3
	mashCoverageDen = 4
)

// ValidationResult lists every rule an incident failed.
type ValidationResult struct {
	Problems []*errors.PlaybookError
}

// Valid reports whether no rule failed.
func (r *ValidationResult) Valid() bool {
	return len(r.Problems) == 0
}

// Err returns the first problem, or nil.
func (r *ValidationResult) Err() error {
	if len(r.Problems) == 0 {
		return nil
	}
	return r.Problems[0]
}

// Messages returns the human-readable message of each problem.
func (r *ValidationResult) Messages() []string {
	msgs := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		msgs[i] = p.Message
	}
	return msgs
}

// CheckIncident evaluates all submission rules for a title and summary.
func CheckIncident(title, summary string) *ValidationResult {
	result := &ValidationResult{}

	title = strings.TrimSpace(title)
	summary = strings.TrimSpace(summary)

	titleShort := utf8.RuneCountInString(title) < MinTitleChars
	summaryShort := utf8.RuneCountInString(summary) < MinSummaryChars

	if titleShort {
		result.Problems = append(result.Problems, errors.NewTitleTooShort(MinTitleChars))
	}
	if summaryShort {
		result.Problems = append(result.Problems, errors.NewSummaryTooShort(MinSummaryChars))
	}

	if !titleShort && IsMeaningless(title, false) {
		result.Problems = append(result.Problems, errors.NewMeaninglessContent("title"))
	}
	if !summaryShort && IsMeaningless(summary, true) {
		result.Problems = append(result.Problems, errors.NewMeaninglessContent("summary"))
	}

	return result
}

// ValidateIncident returns the first failed submission rule, or nil.
func ValidateIncident(title, summary string) error {
	return CheckIncident(title, summary).Err()
}

// IsMeaningless reports whether text looks like placeholder input.
// Prose (summary) additionally must contain some spacing or punctuation.
func IsMeaningless(text string, prose bool) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}

	compact := strings.ToLower(strings.Join(strings.Fields(text), ""))
	if isRepeatedRune(compact) {
		return true
	}

	words := strings.Fields(strings.ToLower(text))
	if allMash(words) {
		return true
	}
	if len(words) > 1 {
		return false
	}

	if prose && !strings.ContainsFunc(text, unicode.IsPunct) {
		return true
	}

	return false
}

func isRepeatedRune(s string) bool {
	first, size := utf8.DecodeRuneInString(s)
	if size == 0 || utf8.RuneCountInString(s) < 3 {
		return false
	}
	for _, r := range s {
		if r != first {
			return false
		}
	}
	return true
}

func allMash(words []string) bool {
	for _, w := range words {
		if !isKeyboardMash(w) {
			return false
		}
	}
	return len(words) > 0
}

// isKeyboardMash reports whether s, a lower-cased token without spaces, is
// mostly keys pressed along one keyboard row. Only all-letter or all-digit
// tokens qualify, so words and ids like "inc-12345" pass.
func isKeyboardMash(s string) bool {
	if utf8.RuneCountInString(s) < mashMinLen {
		return false
	}
	var rows []string
	switch {
	case allRunes(s, isASCIILetter):
		rows = letterRows
	case allRunes(s, isASCIIDigit):
		rows = digitRow
	default:
		return false
	}

	covered := 0
	for i := 0; i < len(s); {
		n := longestRowRun(s[i:], rows)
		if n >= mashRunLen {
			covered += n
			i += n
			continue
		}
		i++
	}
	return covered*mashCoverageDen >= len(s)*mashCoverageNum
}

// longestRowRun returns the length of the longest prefix of s that runs
// along a row in either direction.
func longestRowRun(s string, rows []string) int {
	best := 0
	for _, row := range rows {
		for _, r := range []string{row, reverse(row)} {
			n := 0
			for n < len(s) && strings.Contains(r, s[:n+1]) {
				n++
			}
			best = max(best, n)
		}
	}
	return best
}

func allRunes(s string, f func(rune) bool) bool {
	for _, r := range s {
		if !f(r) {
			return false
		}
	}
	return true
}

func isASCIILetter(r rune) bool { return r >= 'a' && r <= 'z' }
func isASCIIDigit(r rune) bool  { return r >= '0' && r <= '9' }

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
