package conversation

import (
	"symcheck/internal/diagnosis"
	"symcheck/internal/emergency"
)

// Canned replies.
const (
	RejectionMessage = "I am a medical symptom checker AI assistant, designed specifically to help with health-related questions and symptoms.\n\n" +
		"I can only assist with:\n" +
		"- Medical symptoms and health concerns\n" +
		"- Disease information and conditions\n" +
		"- Health guidance and recommendations\n" +
		"- Medical questions and clarifications\n\n" +
		"For non-medical questions, please use a general-purpose AI assistant or search engine.\n\n" +
		"If you have any health-related symptoms or medical questions, I'm here to help! Please describe your symptoms."

	CompleteMessage = "Thank you for using the symptom checker. If you have new symptoms, please start a new session."
)

// Response is the reply to one user message. Exactly one of the embedded
// detail structs is set, matching Type; its fields are flattened into the
// JSON object.
type Response struct {
	Type    ResponseType `json:"type"`
	Content string       `json:"content"`
	Stage   Stage        `json:"stage"`

	*EmergencyDetails
	*FollowupDetails
	*DiagnosisDetails
}

// EmergencyDetails accompany an emergency response.
type EmergencyDetails struct {
	Severity   emergency.Severity `json:"severity"`
	Categories []string           `json:"categories"`
	Keywords   []string           `json:"keywords"`
}

// FollowupDetails accompany a follow-up question.
type FollowupDetails struct {
	QuestionNum    int      `json:"question_num"`
	TotalQuestions int      `json:"total_questions"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	HasOptions     bool     `json:"has_options"`
}

// DiagnosisDetails accompany the final report.
type DiagnosisDetails struct {
	Sources            []diagnosis.Source `json:"sources"`
	UsedRetrieval      bool               `json:"used_retrieval"`
	FallbackReason     string             `json:"fallback_reason"`
	BestScore          *float64           `json:"best_score"`
	MissingSections    []string           `json:"missing_sections,omitempty"`
	OutOfOrderSections []string           `json:"out_of_order_sections,omitempty"`
}
