// Package conversation drives a screening session from the first symptom
// description through follow-up questions to the final report.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"symcheck/internal/diagnosis"
	"symcheck/internal/emergency"
	apperrors "symcheck/internal/errors"
	"symcheck/internal/followup"
	"symcheck/internal/logging"
	"symcheck/internal/observability"
	"symcheck/internal/types"
)

// ErrEmptyMessage is returned for blank user input.
var ErrEmptyMessage = errors.New("message must not be empty")

// MedicalGate decides whether text belongs to the medical domain.
type MedicalGate interface {
	IsMedical(ctx context.Context, text string) bool
}

// QuestionGenerator writes follow-up question number n.
type QuestionGenerator interface {
	Generate(ctx context.Context, history types.History, n int) (string, error)
}

// Synthesizer writes the final report.
type Synthesizer interface {
	Synthesize(ctx context.Context, history types.History) (*diagnosis.Result, error)
}

// Dependencies are the collaborators an Engine dispatches to.
type Dependencies struct {
	Detector    *emergency.Detector
	Gate        MedicalGate
	Questions   QuestionGenerator
	Synthesizer Synthesizer
}

// Engine runs the screening state machine. It keeps no per-session state and
// is safe for concurrent use across sessions.
type Engine struct {
	deps         Dependencies
	numFollowups int
	metrics      *observability.MetricsCollector
	tracer       *observability.TracerProvider
	logger       logging.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithObservability attaches metrics and tracing.
func WithObservability(metrics *observability.MetricsCollector, tracer *observability.TracerProvider) EngineOption {
	return func(e *Engine) {
		e.metrics = metrics
		e.tracer = tracer
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger logging.Logger) EngineOption {
	return func(e *Engine) { e.logger = logging.OrNop(logger) }
}

// NewEngine validates deps and returns an engine that asks numFollowups
// questions before diagnosing.
func NewEngine(deps Dependencies, numFollowups int, opts ...EngineOption) (*Engine, error) {
	switch {
	case deps.Detector == nil:
		return nil, apperrors.NewConfigurationError("conversation.detector", errors.New("emergency detector is required"))
	case deps.Gate == nil:
		return nil, apperrors.NewConfigurationError("conversation.gate", errors.New("relevance gate is required"))
	case deps.Questions == nil:
		return nil, apperrors.NewConfigurationError("conversation.followup", errors.New("question generator is required"))
	case deps.Synthesizer == nil:
		return nil, apperrors.NewConfigurationError("conversation.diagnosis", errors.New("diagnosis synthesizer is required"))
	case numFollowups < 0:
		return nil, apperrors.NewConfigurationError("conversation.num_followups", fmt.Errorf("must be non-negative, got %d", numFollowups))
	}
	e := &Engine{
		deps:         deps,
		numFollowups: numFollowups,
		logger:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NumFollowups returns how many questions precede the diagnosis.
func (e *Engine) NumFollowups() int { return e.numFollowups }

// ProcessMessage handles one user message. The user turn is always recorded
// once the session is live. When a collaborator fails the stage and counter
// are restored and a CollaboratorError is returned.
func (e *Engine) ProcessMessage(ctx context.Context, session *Session, text string) (resp *Response, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	ctx = observability.ContextWithSessionID(ctx, session.id)
	from := session.stage
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanProcessMessage, attribute.String(observability.AttrStage, string(from)))
	defer func() { observability.EndSpan(span, err) }()

	if from.Terminal() {
		e.metrics.RecordTurn(ctx, string(ResponseComplete))
		return &Response{Type: ResponseComplete, Content: CompleteMessage, Stage: from}, nil
	}

	session.history = append(session.history, types.Turn{Role: types.RoleUser, Text: text})
	prevCount := session.followupCount

	switch {
	case from.acceptsSymptoms():
		resp, err = e.startScreening(ctx, session, text)
	case from == StageFollowup:
		resp, err = e.continueScreening(ctx, session)
	default:
		err = fmt.Errorf("unexpected stage %s", from)
	}
	if err != nil {
		session.stage = from
		session.followupCount = prevCount
		e.logger.Warn("Turn failed at stage %s, state restored: %v", from, err)
		return nil, err
	}

	session.stage = transition(from, resp.Type)
	resp.Stage = session.stage
	if session.stage != from {
		e.logger.Info("Session %s: %s -> %s", session.id, from, session.stage)
		e.metrics.RecordStageTransition(ctx, string(from), string(session.stage))
	}
	e.metrics.RecordTurn(ctx, string(resp.Type))
	return resp, nil
}

func (e *Engine) startScreening(ctx context.Context, session *Session, text string) (*Response, error) {
	if result := e.deps.Detector.Detect(text); result.IsEmergency {
		return &Response{
			Type:    ResponseEmergency,
			Content: result.Message,
			EmergencyDetails: &EmergencyDetails{
				Severity:   result.Severity,
				Categories: result.Categories,
				Keywords:   result.MatchedKeywords,
			},
		}, nil
	}

	if !e.deps.Gate.IsMedical(ctx, text) {
		return &Response{Type: ResponseRejection, Content: RejectionMessage}, nil
	}

	session.followupCount = 1
	return e.ask(ctx, session)
}

func (e *Engine) continueScreening(ctx context.Context, session *Session) (*Response, error) {
	session.followupCount++
	if session.followupCount <= e.numFollowups {
		return e.ask(ctx, session)
	}

	session.stage = StageDiagnosis
	result, err := e.deps.Synthesizer.Synthesize(ctx, session.history.Clone())
	if err != nil {
		return nil, apperrors.NewCollaboratorError("diagnosis", "synthesize", err)
	}
	session.history = append(session.history, types.Turn{Role: types.RoleAssistant, Text: result.Report})
	session.lastDiagnosis = result

	return &Response{
		Type:    ResponseDiagnosis,
		Content: result.Report,
		DiagnosisDetails: &DiagnosisDetails{
			Sources:            result.Sources,
			UsedRetrieval:      result.UsedRetrieval,
			FallbackReason:     result.FallbackReason,
			BestScore:          result.BestScore,
			MissingSections:    result.MissingSections,
			OutOfOrderSections: result.OutOfOrderSections,
		},
	}, nil
}

func (e *Engine) ask(ctx context.Context, session *Session) (*Response, error) {
	n := session.followupCount
	raw, err := e.deps.Questions.Generate(ctx, session.history.Clone(), n)
	if err != nil {
		return nil, apperrors.NewCollaboratorError("followup", "generate", err)
	}
	session.history = append(session.history, types.Turn{Role: types.RoleAssistant, Text: raw})

	q := followup.Parse(raw)
	return &Response{
		Type:    ResponseFollowupQuestion,
		Content: raw,
		FollowupDetails: &FollowupDetails{
			QuestionNum:    n,
			TotalQuestions: e.numFollowups,
			Question:       q.Text,
			Options:        q.Options,
			HasOptions:     q.HasOptions,
		},
	}, nil
}
