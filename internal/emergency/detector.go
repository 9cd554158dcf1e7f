// Package emergency flags symptom descriptions that need an emergency room
// rather than a screening conversation.
package emergency

import (
	"fmt"
	"strings"
)

// Severity grades a detection.
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Result is the outcome of Detect. Message is empty unless IsEmergency.
type Result struct {
	IsEmergency     bool     `json:"is_emergency"`
	Categories      []string `json:"categories"`
	MatchedKeywords []string `json:"matched_keywords"`
	Severity        Severity `json:"severity"`
	Message         string   `json:"message,omitempty"`
}

// Detector matches text against a Table. It holds no mutable state.
type Detector struct {
	table Table
}

// NewDetector returns a detector over table.
func NewDetector(table Table) *Detector {
	return &Detector{table: table}
}

// Detect lower-cases text and records at most one trigger per category.
func (d *Detector) Detect(text string) Result {
	lower := strings.ToLower(text)

	result := Result{
		Categories:      []string{},
		MatchedKeywords: []string{},
		Severity:        SeverityNone,
	}
	var labels []string
	for _, category := range d.table.categories {
		for _, trigger := range category.Triggers {
			if strings.Contains(lower, trigger) {
				result.Categories = append(result.Categories, category.Name)
				result.MatchedKeywords = append(result.MatchedKeywords, trigger)
				labels = append(labels, category.Label)
				break
			}
		}
	}

	switch n := len(result.Categories); {
	case n >= 2:
		result.Severity = SeverityCritical
	case n == 1:
		result.Severity = SeverityHigh
	}
	if len(result.Categories) > 0 {
		result.IsEmergency = true
		result.Message = renderMessage(labels, result.Categories)
	}
	return result
}

const messageTemplate = `🚨 **EMERGENCY DETECTED** 🚨

%s

**IMMEDIATE ACTION REQUIRED:**

🆘 **Go to the nearest Emergency Room immediately**

⚠️ **DO NOT WAIT** - These symptoms require immediate medical attention

**While waiting for emergency services:**
- Stay calm and try to remain seated or lying down
- Do not drive yourself - wait for ambulance
- Have someone stay with you
- If you have prescribed emergency medication (like nitroglycerin or EpiPen), use it as directed

**Critical symptoms detected:** %s

---

*This AI cannot replace emergency medical services. Your symptoms indicate a potentially life-threatening condition that requires immediate professional medical care.*`

func renderMessage(labels, categories []string) string {
	return fmt.Sprintf(messageTemplate, strings.Join(labels, " | "), strings.Join(categories, ", "))
}
