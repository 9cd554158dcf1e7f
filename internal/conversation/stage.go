package conversation

// Stage is where a session sits in the screening flow.
type Stage string

const (
	StageInitial   Stage = "INITIAL"
	StageFollowup  Stage = "FOLLOWUP"
	StageDiagnosis Stage = "DIAGNOSIS"
	StageComplete  Stage = "COMPLETE"
	StageEmergency Stage = "EMERGENCY"
	StageRejected  Stage = "REJECTED"
)

// Terminal reports whether the stage is absorbing.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageEmergency
}

// acceptsSymptoms reports whether the next message starts a new screening.
func (s Stage) acceptsSymptoms() bool {
	return s == StageInitial || s == StageRejected
}

// ResponseType tags a Response.
type ResponseType string

const (
	ResponseEmergency        ResponseType = "emergency"
	ResponseRejection        ResponseType = "rejection"
	ResponseFollowupQuestion ResponseType = "followup_question"
	ResponseDiagnosis        ResponseType = "diagnosis"
	ResponseComplete         ResponseType = "complete"
)

// transition returns the stage a session lands in after producing a
// response of type rt from stage from.
func transition(from Stage, rt ResponseType) Stage {
	switch rt {
	case ResponseEmergency:
		return StageEmergency
	case ResponseRejection:
		return StageRejected
	case ResponseFollowupQuestion:
		return StageFollowup
	case ResponseDiagnosis:
		return StageComplete
	default:
		return from
	}
}
