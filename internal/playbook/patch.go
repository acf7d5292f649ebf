package playbook

// Patch is a partial update to an entry. A nil field means "leave unchanged";
// a non-nil field overwrites, including with an empty value.
// ID, DateCreated and the owner are not patchable.
type Patch struct {
	Title               *string   `json:"title,omitempty"`
	Industry            *string   `json:"industry,omitempty"`
	Category            *string   `json:"category,omitempty"`
	Status              *Status   `json:"status,omitempty"`
	Summary             *string   `json:"summary,omitempty"`
	RootCause           *string   `json:"rootCause,omitempty"`
	Impact              *string   `json:"impact,omitempty"`
	Recommendation      *string   `json:"recommendation,omitempty"`
	DoList              *[]string `json:"doList,omitempty"`
	DontList            *[]string `json:"dontList,omitempty"`
	PreventionChecklist *[]string `json:"preventionChecklist,omitempty"`
	Tags                *[]string `json:"tags,omitempty"`
	IsPublished         *bool     `json:"isPublished,omitempty"`
	LastUpdated         *int64    `json:"lastUpdated,omitempty"`
}

// IsEmpty reports whether the patch changes no content field.
// LastUpdated alone does not count as a change.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Industry == nil && p.Category == nil && p.Status == nil &&
		p.Summary == nil && p.RootCause == nil && p.Impact == nil && p.Recommendation == nil &&
		p.DoList == nil && p.DontList == nil && p.PreventionChecklist == nil &&
		p.Tags == nil && p.IsPublished == nil
}

// Apply merges p into e and returns the result. e is not modified.
func Apply(e Entry, p Patch) Entry {
	out := e.Clone()

	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Industry != nil {
		out.Industry = *p.Industry
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Summary != nil {
		out.Summary = *p.Summary
	}
	if p.RootCause != nil {
		out.RootCause = *p.RootCause
	}
	if p.Impact != nil {
		out.Impact = *p.Impact
	}
	if p.Recommendation != nil {
		out.Recommendation = *p.Recommendation
	}
	if p.DoList != nil {
		out.DoList = cloneStrings(*p.DoList)
	}
	if p.DontList != nil {
		out.DontList = cloneStrings(*p.DontList)
	}
	if p.PreventionChecklist != nil {
		out.PreventionChecklist = cloneStrings(*p.PreventionChecklist)
	}
	if p.Tags != nil {
		out.Tags = cloneStrings(*p.Tags)
	}
	if p.IsPublished != nil {
		out.IsPublished = *p.IsPublished
	}
	if p.LastUpdated != nil {
		out.LastUpdated = *p.LastUpdated
	}

	return out
}

// Ptr returns a pointer to v. Handy when building patches.
func Ptr[T any](v T) *T {
	return &v
}
