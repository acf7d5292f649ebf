package playbook

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hpungsan/playbook/internal/errors"
)

func sampleEntry() Entry {
	return Entry{
		ID:                  "01HZX3T6Y1M0V9G6Q7K2B5N8RA",
		Title:               "Q4 Cloud Migration",
		Industry:            "IT & Technology",
		Category:            "Technical Issue",
		Status:              StatusDraft,
		DateCreated:         1700000000000,
		LastUpdated:         1700000000000,
		Summary:             validSummary,
		RootCause:           "Load balancer health checks pointed at the old pool.",
		Impact:              "Two hours of downtime.",
		Recommendation:      "Automate load balancer config validation.",
		DoList:              []string{"Test rollback scripts", "Monitor error rates"},
		DontList:            []string{"Deploy on Fridays"},
		PreventionChecklist: []string{"Check logs", "Notify stakeholders"},
		Tags:                []string{"IT & Technology", "Technical Issue", "AI Generated"},
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"Draft", StatusDraft, true},
		{"needs edit", StatusNeedsEdit, true},
		{" APPROVED ", StatusApproved, true},
		{"Human Approved", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseStatus(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusApproved, true},
		{StatusNeedsEdit, StatusApproved, true},
		{StatusDraft, StatusNeedsEdit, true},
		{StatusApproved, StatusNeedsEdit, true},
		{StatusApproved, StatusDraft, false},
		{StatusNeedsEdit, StatusDraft, false},
		{StatusApproved, StatusApproved, true},
		{StatusDraft, StatusDraft, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransition_Errors(t *testing.T) {
	if _, err := Transition(StatusApproved, StatusDraft); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("err = %v, want INVALID_TRANSITION", err)
	}
	if _, err := Transition(StatusDraft, Status("Published")); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
	got, err := Transition(StatusDraft, StatusApproved)
	if err != nil || got != StatusApproved {
		t.Errorf("Transition = (%q, %v)", got, err)
	}
}

func TestApply_AbsentFieldsUntouched(t *testing.T) {
	e := sampleEntry()
	newTitle := "Renamed"
	p := Patch{Title: &newTitle}

	got := Apply(e, p)

	want := e.Clone()
	want.Title = "Renamed"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}
	if e.Title != "Q4 Cloud Migration" {
		t.Error("Apply modified its input")
	}
}

func TestApply_PresentEmptyValuesOverwrite(t *testing.T) {
	e := sampleEntry()
	empty := ""
	noTags := []string{}
	p := Patch{RootCause: &empty, Tags: &noTags, IsPublished: Ptr(false)}

	got := Apply(e, p)
	if got.RootCause != "" {
		t.Errorf("RootCause = %q, want empty", got.RootCause)
	}
	if len(got.Tags) != 0 {
		t.Errorf("Tags = %v, want empty", got.Tags)
	}
	if got.Summary != e.Summary {
		t.Error("Summary changed")
	}
}

func TestApply_DoesNotAliasPatchSlices(t *testing.T) {
	e := sampleEntry()
	list := []string{"one"}
	got := Apply(e, Patch{DoList: &list})
	list[0] = "changed"
	if got.DoList[0] != "one" {
		t.Error("Apply aliased the patch slice")
	}
}

func TestPatch_IsEmpty(t *testing.T) {
	if !(Patch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
	if !(Patch{LastUpdated: Ptr(int64(5))}).IsEmpty() {
		t.Error("timestamp-only patch should be empty")
	}
	if (Patch{IsPublished: Ptr(true)}).IsEmpty() {
		t.Error("publish patch should not be empty")
	}
}

func TestRowRoundTrip(t *testing.T) {
	e := sampleEntry()
	row := ToRow("owner-1", e)

	if row.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q", row.OwnerID)
	}
	if row.RootCause != e.RootCause || row.Status != "Draft" {
		t.Errorf("row mapping lost fields: %+v", row)
	}
	if diff := cmp.Diff(e, row.ToEntry()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestToRow_NilListsBecomeEmpty(t *testing.T) {
	row := ToRow("o", Entry{ID: "x"})
	if row.DoList == nil || row.Tags == nil {
		t.Error("nil lists should map to empty lists")
	}
}

func TestPatchColumns(t *testing.T) {
	p := Patch{
		RootCause:   Ptr("cause"),
		IsPublished: Ptr(true),
		LastUpdated: Ptr(int64(42)),
	}
	cols := PatchColumns(p)

	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
	}
	want := []string{"root_cause", "is_published", "last_updated"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if len(PatchColumns(Patch{})) != 0 {
		t.Error("empty patch should produce no columns")
	}
}

func TestFormatText(t *testing.T) {
	text := FormatText(sampleEntry())

	for _, want := range []string{
		"# Q4 Cloud Migration",
		"**Industry:** IT & Technology",
		"**Status:** Draft",
		"## What Happened\n" + validSummary,
		"## Recommended Actions\n1. Test rollback scripts\n2. Monitor error rates",
		"## Avoid These Pitfalls\n1. Deploy on Fridays",
		"- [ ] Check logs",
		"Tags: IT & Technology, Technical Issue, AI Generated",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("FormatText missing %q\n%s", want, text)
		}
	}
}

func TestFileSlug(t *testing.T) {
	tests := map[string]string{
		"Q4 Cloud Migration": "q4-cloud-migration",
		"  Spaces   here ":   "spaces-here",
		"R&D / Ops":          "rd--ops",
		"!!!":                "playbook",
	}
	for in, want := range tests {
		if got := FileSlug(in); got != want {
			t.Errorf("FileSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("NewID: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestResolveChoice(t *testing.T) {
	if got := ResolveChoice("Other", "  Aerospace "); got != "Aerospace" {
		t.Errorf("ResolveChoice(Other) = %q", got)
	}
	if got := ResolveChoice("Sales", "ignored"); got != "Sales" {
		t.Errorf("ResolveChoice(Sales) = %q", got)
	}
	if !IsKnownIndustry("it & technology") || IsKnownIndustry("Aerospace") {
		t.Error("IsKnownIndustry mismatch")
	}
	if !IsKnownCategory("Technical Issue") {
		t.Error("IsKnownCategory mismatch")
	}
}
