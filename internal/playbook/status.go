package playbook

import (
	"strings"

	"github.com/hpungsan/playbook/internal/errors"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusNeedsEdit Status = "Needs Edit"
	StatusApproved  Status = "Approved"
)

// Statuses lists the lifecycle states from lowest to highest trust.
var Statuses = []Status{StatusDraft, StatusNeedsEdit, StatusApproved}

// ParseStatus accepts a status label case-insensitively.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status marks content as trusted for reuse.
func (s Status) IsTerminal() bool {
	return s == StatusApproved
}

// CanTransition reports whether an owner may move an entry from one state to another.
//
//	Draft      -> Approved, Needs Edit
//	Needs Edit -> Approved
//	Approved   -> Needs Edit
//
// Nothing returns to Draft. Same-state moves are accepted as no-ops.
// Field completeness is never a precondition.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch to {
	case StatusApproved:
		return from == StatusDraft || from == StatusNeedsEdit
	case StatusNeedsEdit:
		return from == StatusDraft || from == StatusApproved
	}
	return false
}

// Transition validates a lifecycle move and returns the target status.
func Transition(from, to Status) (Status, error) {
	if _, ok := ParseStatus(string(to)); !ok {
		return from, errors.NewInvalidRequest("unknown status: " + string(to))
	}
	if !CanTransition(from, to) {
		return from, errors.NewInvalidTransition(string(from), string(to))
	}
	return to, nil
}
