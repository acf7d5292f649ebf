package playbook

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entry is a playbook card: one captured incident and the lessons drawn from it.
type Entry struct {
	// ID is a ULID generated at creation time. Immutable.
	ID string `json:"id"`

	Title    string `json:"title"`
	Industry string `json:"industry"`
	Category string `json:"category"`
	Status   Status `json:"status"`

	// DateCreated and LastUpdated are Unix milliseconds.
	DateCreated int64 `json:"dateCreated"`
	LastUpdated int64 `json:"lastUpdated"`

	// Summary describes what happened.
	Summary   string `json:"summary"`
	RootCause string `json:"rootCause"`
	Impact    string `json:"impact"`

	Recommendation      string   `json:"recommendation"`
	DoList              []string `json:"doList"`
	DontList            []string `json:"dontList"`
	PreventionChecklist []string `json:"preventionChecklist"`

	Tags        []string `json:"tags"`
	IsPublished bool     `json:"isPublished"`
}

// Clone returns a deep copy so callers can't alias list fields held by a store.
func (e Entry) Clone() Entry {
	e.DoList = cloneStrings(e.DoList)
	e.DontList = cloneStrings(e.DontList)
	e.PreventionChecklist = cloneStrings(e.PreventionChecklist)
	e.Tags = cloneStrings(e.Tags)
	return e
}

// NewID generates a new entry ID.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NowMillis returns t as Unix milliseconds.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
