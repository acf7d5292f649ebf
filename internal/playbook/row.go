package playbook

// Row is the durable shape of an entry: a one-to-one snake_case rename of Entry
// plus the owner column. It is also the JSONL export record.
type Row struct {
	ID                  string   `json:"id"`
	OwnerID             string   `json:"owner_id"`
	Title               string   `json:"title"`
	Industry            string   `json:"industry"`
	Status              string   `json:"status"`
	DateCreated         int64    `json:"date_created"`
	LastUpdated         int64    `json:"last_updated"`
	Summary             string   `json:"summary"`
	RootCause           string   `json:"root_cause"`
	Impact              string   `json:"impact"`
	Category            string   `json:"category"`
	Recommendation      string   `json:"recommendation"`
	DoList              []string `json:"do_list"`
	DontList            []string `json:"dont_list"`
	PreventionChecklist []string `json:"prevention_checklist"`
	Tags                []string `json:"tags"`
	IsPublished         bool     `json:"is_published"`
}

// ToRow maps an entry to its row for the given owner.
// Nil list fields become empty lists so storage never holds NULL sequences.
func ToRow(owner string, e Entry) Row {
	return Row{
		ID:                  e.ID,
		OwnerID:             owner,
		Title:               e.Title,
		Industry:            e.Industry,
		Status:              string(e.Status),
		DateCreated:         e.DateCreated,
		LastUpdated:         e.LastUpdated,
		Summary:             e.Summary,
		RootCause:           e.RootCause,
		Impact:              e.Impact,
		Category:            e.Category,
		Recommendation:      e.Recommendation,
		DoList:              nonNil(e.DoList),
		DontList:            nonNil(e.DontList),
		PreventionChecklist: nonNil(e.PreventionChecklist),
		Tags:                nonNil(e.Tags),
		IsPublished:         e.IsPublished,
	}
}

// ToEntry maps a stored row back to an entry.
func (r Row) ToEntry() Entry {
	return Entry{
		ID:                  r.ID,
		Title:               r.Title,
		Industry:            r.Industry,
		Status:              Status(r.Status),
		DateCreated:         r.DateCreated,
		LastUpdated:         r.LastUpdated,
		Summary:             r.Summary,
		RootCause:           r.RootCause,
		Impact:              r.Impact,
		Category:            r.Category,
		Recommendation:      r.Recommendation,
		DoList:              nonNil(r.DoList),
		DontList:            nonNil(r.DontList),
		PreventionChecklist: nonNil(r.PreventionChecklist),
		Tags:                nonNil(r.Tags),
		IsPublished:         r.IsPublished,
	}
}

// Column is one column assignment produced from a patch.
type Column struct {
	Name  string
	Value any
}

// PatchColumns lists the row columns a patch writes, in a stable order.
// List values are []string; callers encode them for their backend.
func PatchColumns(p Patch) []Column {
	var cols []Column
	add := func(name string, v any) { cols = append(cols, Column{Name: name, Value: v}) }

	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Industry != nil {
		add("industry", *p.Industry)
	}
	if p.Category != nil {
		add("category", *p.Category)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.Summary != nil {
		add("summary", *p.Summary)
	}
	if p.RootCause != nil {
		add("root_cause", *p.RootCause)
	}
	if p.Impact != nil {
		add("impact", *p.Impact)
	}
	if p.Recommendation != nil {
		add("recommendation", *p.Recommendation)
	}
	if p.DoList != nil {
		add("do_list", nonNil(*p.DoList))
	}
	if p.DontList != nil {
		add("dont_list", nonNil(*p.DontList))
	}
	if p.PreventionChecklist != nil {
		add("prevention_checklist", nonNil(*p.PreventionChecklist))
	}
	if p.Tags != nil {
		add("tags", nonNil(*p.Tags))
	}
	if p.IsPublished != nil {
		add("is_published", *p.IsPublished)
	}
	if p.LastUpdated != nil {
		add("last_updated", *p.LastUpdated)
	}
	return cols
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return cloneStrings(s)
}
