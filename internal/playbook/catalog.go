package playbook

import "strings"

// Industries is the fixed industry set offered by the picker.
// Industry values are still plain strings; anything else is accepted as free text.
var Industries = []string{
	"General",
	"IT & Technology",
	"Finance & Banking",
	"HR & Recruitment",
	"Operations & Logistics",
	"Healthcare",
	"Construction",
	"Marketing",
	"Education",
	"Retail & E-commerce",
	"Manufacturing",
	"Legal & Compliance",
	"Sales",
	"Customer Service",
	"Product Management",
	"Real Estate",
	"Hospitality & Tourism",
	"Media & Entertainment",
	"Government & Public Sector",
}

// Categories is the fixed category set; "Other" lets the user type a free-text value.
var Categories = []string{
	"Process Improvement",
	"Risk Management",
	"Technical Issue",
	"Communication",
	"Compliance",
	"Security",
	"Quality Assurance",
	"Project Management",
	"Budget & Finance",
	"Training & Development",
	"Vendor Management",
	"Change Management",
	"Crisis Response",
	"Documentation",
	"Performance Optimization",
}

// DefaultCategory is preselected in the entry form.
const DefaultCategory = "Process Improvement"

// Filter sentinels shared by the library and entry form selects.
const (
	FilterAll   = "All"
	FilterOther = "Other"
)

// IsKnownIndustry reports whether s is one of Industries (case-insensitive).
func IsKnownIndustry(s string) bool {
	return containsFold(Industries, s)
}

// IsKnownCategory reports whether s is one of Categories (case-insensitive).
func IsKnownCategory(s string) bool {
	return containsFold(Categories, s)
}

// ResolveChoice turns a select value plus its "Other" text box into the stored value.
func ResolveChoice(selected, other string) string {
	if selected == FilterOther {
		return strings.TrimSpace(other)
	}
	return strings.TrimSpace(selected)
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
