package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"symcheck/internal/diagnosis"
	"symcheck/internal/emergency"
	apperrors "symcheck/internal/errors"
	"symcheck/internal/types"
)

type stubGate struct {
	medical bool
	calls   int
}

func (g *stubGate) IsMedical(context.Context, string) bool {
	g.calls++
	return g.medical
}

type stubQuestions struct {
	mu    sync.Mutex
	err   error
	asked []int
	seen  []types.History
}

func (q *stubQuestions) Generate(_ context.Context, history types.History, n int) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.asked = append(q.asked, n)
	q.seen = append(q.seen, history)
	return fmt.Sprintf("Question: Follow-up %d?\nA) Yes\nB) No", n), nil
}

type stubSynth struct {
	err     error
	calls   int
	history types.History
}

func (s *stubSynth) Synthesize(_ context.Context, history types.History) (*diagnosis.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	s.history = history
	best := 0.42
	return &diagnosis.Result{
		Report:         "## Likely Condition\nCommon cold.",
		Sources:        []diagnosis.Source{{Title: "Common Cold", URL: "https://medlineplus.gov/commoncold.html", SourceType: "primary_reference", RelevanceScore: best}},
		UsedRetrieval:  true,
		FallbackReason: "RAG retrieval successful",
		BestScore:      &best,
	}, nil
}

type fixture struct {
	engine    *Engine
	gate      *stubGate
	questions *stubQuestions
	synth     *stubSynth
}

func newFixture(t *testing.T, numFollowups int) *fixture {
	t.Helper()
	f := &fixture{
		gate:      &stubGate{medical: true},
		questions: &stubQuestions{},
		synth:     &stubSynth{},
	}
	engine, err := NewEngine(Dependencies{
		Detector:    emergency.NewDetector(emergency.DefaultTable()),
		Gate:        f.gate,
		Questions:   f.questions,
		Synthesizer: f.synth,
	}, numFollowups)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func TestFullScreeningFlow(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	session := NewSession()

	resp, err := f.engine.ProcessMessage(ctx, session, "I have a runny nose and sore throat")
	require.NoError(t, err)
	require.Equal(t, ResponseFollowupQuestion, resp.Type)
	require.Equal(t, StageFollowup, resp.Stage)
	require.Equal(t, 1, resp.QuestionNum)
	require.Equal(t, 3, resp.TotalQuestions)
	require.Equal(t, "Follow-up 1?", resp.Question)
	require.Equal(t, []string{"A) Yes", "B) No"}, resp.Options)
	require.True(t, resp.HasOptions)

	for n := 2; n <= 3; n++ {
		resp, err = f.engine.ProcessMessage(ctx, session, "A) Yes")
		require.NoError(t, err)
		require.Equal(t, ResponseFollowupQuestion, resp.Type)
		require.Equal(t, n, resp.QuestionNum)
	}
	require.Equal(t, []int{1, 2, 3}, f.questions.asked)
	require.Zero(t, f.synth.calls)

	resp, err = f.engine.ProcessMessage(ctx, session, "B) No")
	require.NoError(t, err)
	require.Equal(t, ResponseDiagnosis, resp.Type)
	require.Equal(t, StageComplete, resp.Stage)
	require.Equal(t, "## Likely Condition\nCommon cold.", resp.Content)
	require.True(t, resp.UsedRetrieval)
	require.Len(t, resp.Sources, 1)
	require.InDelta(t, 0.42, *resp.BestScore, 1e-9)
	require.Equal(t, 1, f.synth.calls)
	require.Len(t, f.synth.history, 7)

	view := session.View()
	require.Equal(t, StageComplete, view.Stage)
	require.Equal(t, 4, view.FollowupCount)
	require.Len(t, view.History, 8)
	require.Equal(t, types.RoleAssistant, view.History[7].Role)
	require.NotNil(t, session.LastDiagnosis())

	resp, err = f.engine.ProcessMessage(ctx, session, "one more thing")
	require.NoError(t, err)
	require.Equal(t, ResponseComplete, resp.Type)
	require.Equal(t, CompleteMessage, resp.Content)
	require.Equal(t, StageComplete, resp.Stage)
	require.Len(t, session.View().History, 8)
}

func TestEmergencyIsAbsorbing(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	session := NewSession()

	resp, err := f.engine.ProcessMessage(ctx, session, "Crushing CHEST PAIN and I passed out")
	require.NoError(t, err)
	require.Equal(t, ResponseEmergency, resp.Type)
	require.Equal(t, StageEmergency, resp.Stage)
	require.Equal(t, emergency.SeverityCritical, resp.Severity)
	require.Equal(t, []string{"cardiac", "neurological"}, resp.Categories)
	require.Contains(t, resp.Content, "EMERGENCY DETECTED")
	require.Zero(t, f.gate.calls)

	resp, err = f.engine.ProcessMessage(ctx, session, "my knee hurts")
	require.NoError(t, err)
	require.Equal(t, ResponseComplete, resp.Type)
	require.Equal(t, StageEmergency, session.Stage())
	require.Empty(t, f.questions.asked)
}

func TestRejectionStaysAnswerable(t *testing.T) {
	f := newFixture(t, 2)
	f.gate.medical = false
	ctx := context.Background()
	session := NewSession()

	resp, err := f.engine.ProcessMessage(ctx, session, "What is the capital of France?")
	require.NoError(t, err)
	require.Equal(t, ResponseRejection, resp.Type)
	require.Equal(t, RejectionMessage, resp.Content)
	require.Equal(t, StageRejected, session.Stage())

	f.gate.medical = true
	resp, err = f.engine.ProcessMessage(ctx, session, "I have a headache")
	require.NoError(t, err)
	require.Equal(t, ResponseFollowupQuestion, resp.Type)
	require.Equal(t, 1, resp.QuestionNum)
}

func TestFollowupFailureRollsBack(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	session := NewSession()

	_, err := f.engine.ProcessMessage(ctx, session, "fever")
	require.NoError(t, err)

	boom := errors.New("upstream 503")
	f.questions.err = boom
	_, err = f.engine.ProcessMessage(ctx, session, "A) Yes")
	require.ErrorIs(t, err, boom)
	require.True(t, apperrors.IsCollaborator(err))

	view := session.View()
	require.Equal(t, StageFollowup, view.Stage)
	require.Equal(t, 1, view.FollowupCount)
	require.Len(t, view.History, 3)
	require.Equal(t, types.Turn{Role: types.RoleUser, Text: "A) Yes"}, view.History[2])

	f.questions.err = nil
	resp, err := f.engine.ProcessMessage(ctx, session, "A) Yes, still")
	require.NoError(t, err)
	require.Equal(t, 2, resp.QuestionNum)
}

func TestInitialFailureRollsBackToInitial(t *testing.T) {
	f := newFixture(t, 3)
	f.questions.err = errors.New("timeout")
	session := NewSession()

	_, err := f.engine.ProcessMessage(context.Background(), session, "cough")
	require.Error(t, err)
	view := session.View()
	require.Equal(t, StageInitial, view.Stage)
	require.Zero(t, view.FollowupCount)
	require.Len(t, view.History, 1)
}

func TestDiagnosisFailureRollsBack(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	session := NewSession()

	_, err := f.engine.ProcessMessage(ctx, session, "rash on arm")
	require.NoError(t, err)

	f.synth.err = errors.New("index offline")
	_, err = f.engine.ProcessMessage(ctx, session, "B) No")
	require.True(t, apperrors.IsCollaborator(err))
	require.Equal(t, StageFollowup, session.Stage())
	require.Equal(t, 1, session.View().FollowupCount)

	f.synth.err = nil
	resp, err := f.engine.ProcessMessage(ctx, session, "B) No")
	require.NoError(t, err)
	require.Equal(t, ResponseDiagnosis, resp.Type)
	require.Equal(t, 2, f.synth.calls)
}

func TestZeroFollowupsStillAsksOnce(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	session := NewSession()

	resp, err := f.engine.ProcessMessage(ctx, session, "back pain")
	require.NoError(t, err)
	require.Equal(t, ResponseFollowupQuestion, resp.Type)

	resp, err = f.engine.ProcessMessage(ctx, session, "A) Yes")
	require.NoError(t, err)
	require.Equal(t, ResponseDiagnosis, resp.Type)
}

func TestEmptyMessageRejected(t *testing.T) {
	f := newFixture(t, 3)
	session := NewSession()
	_, err := f.engine.ProcessMessage(context.Background(), session, "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	require.Empty(t, session.View().History)
}

func TestNewEngineValidates(t *testing.T) {
	_, err := NewEngine(Dependencies{}, 3)
	require.True(t, apperrors.IsConfiguration(err))

	f := newFixture(t, 3)
	_, err = NewEngine(f.engine.deps, -1)
	require.True(t, apperrors.IsConfiguration(err))
}

func TestResponseJSONFlattensDetails(t *testing.T) {
	resp := Response{
		Type:    ResponseFollowupQuestion,
		Content: "Question: Q?",
		Stage:   StageFollowup,
		FollowupDetails: &FollowupDetails{
			QuestionNum:    2,
			TotalQuestions: 3,
			Question:       "Q?",
			Options:        []string{},
		},
	}
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "followup_question", decoded["type"])
	require.Equal(t, float64(2), decoded["question_num"])
	require.NotContains(t, decoded, "severity")
	require.NotContains(t, decoded, "used_retrieval")
}

func TestTransition(t *testing.T) {
	cases := []struct {
		from Stage
		rt   ResponseType
		want Stage
	}{
		{StageInitial, ResponseEmergency, StageEmergency},
		{StageInitial, ResponseRejection, StageRejected},
		{StageRejected, ResponseFollowupQuestion, StageFollowup},
		{StageFollowup, ResponseFollowupQuestion, StageFollowup},
		{StageFollowup, ResponseDiagnosis, StageComplete},
		{StageComplete, ResponseComplete, StageComplete},
	}
	for _, tc := range cases {
		if got := transition(tc.from, tc.rt); got != tc.want {
			t.Fatalf("transition(%s, %s) = %s, want %s", tc.from, tc.rt, got, tc.want)
		}
	}
}
