package diagnosis

import (
	"fmt"
	"strings"
)

// Section is a required report heading. A report has the section when any
// marker appears in it, case-insensitively.
type Section struct {
	Name    string
	Markers []string
}

var (
	likelyCondition = Section{Name: "Likely Condition", Markers: []string{"likely condition"}}
	progression     = Section{Name: "Expected Progression (30/60/90 Days)", Markers: []string{"expected progression", "30/60/90"}}
	lifestyle       = Section{Name: "Lifestyle Recommendations", Markers: []string{"lifestyle recommendation"}}
	redFlags        = Section{Name: "Red Flags & Next Steps", Markers: []string{"red flags"}}
	citations       = Section{Name: "Citations", Markers: []string{"citations"}}

	groundedSections = []Section{likelyCondition, progression, lifestyle, redFlags, citations}
	fallbackSections = []Section{likelyCondition, progression, lifestyle, redFlags}
)

// MissingSections returns the names of required sections absent from report,
// in required order.
func MissingSections(report string, required []Section) []string {
	lower := strings.ToLower(report)
	var missing []string
	for _, section := range required {
		if section.offset(lower) < 0 {
			missing = append(missing, section.Name)
		}
	}
	return missing
}

// OutOfOrderSections returns present sections that start before a section
// required ahead of them. Absent sections are ignored.
func OutOfOrderSections(report string, required []Section) []string {
	lower := strings.ToLower(report)
	var disordered []string
	furthest := -1
	for _, section := range required {
		at := section.offset(lower)
		if at < 0 {
			continue
		}
		if at < furthest {
			disordered = append(disordered, section.Name)
			continue
		}
		furthest = at
	}
	return disordered
}

// offset is the earliest marker position in a lower-cased report, or -1.
func (s Section) offset(lower string) int {
	at := -1
	for _, marker := range s.Markers {
		if i := strings.Index(lower, marker); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	return at
}

func incompleteCaveat(missing, disordered []string) string {
	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "the assistant did not provide these required sections: "+strings.Join(missing, ", "))
	}
	if len(disordered) > 0 {
		problems = append(problems, "these sections are out of order: "+strings.Join(disordered, ", "))
	}
	return fmt.Sprintf("\n\n---\n⚠️ **Incomplete report**: %s. "+
		"Please consult a healthcare provider for a complete assessment.", strings.Join(problems, "; "))
}
