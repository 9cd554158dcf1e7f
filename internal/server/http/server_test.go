package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"symcheck/internal/conversation"
	"symcheck/internal/diagnosis"
	"symcheck/internal/emergency"
	"symcheck/internal/followup"
	"symcheck/internal/llm"
	"symcheck/internal/prompts"
	"symcheck/internal/rag"
	"symcheck/internal/rag/gate"
	"symcheck/internal/relevance"
	"symcheck/internal/report"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type stubRetriever struct{}

func (stubRetriever) Retrieve(context.Context, string, int) ([]rag.Passage, error) {
	return []rag.Passage{{Rank: 1, Score: 0.3, Title: "Common Cold", Text: "A cold is a viral infection.", SourceType: rag.SourcePrimaryReference, URL: "https://medlineplus.gov/commoncold.html"}}, nil
}

type stubRenderer struct {
	got report.Input
	err error
}

func (r *stubRenderer) Render(in report.Input) ([]byte, error) {
	r.got = in
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.4 stub"), nil
}

type harness struct {
	server    *Server
	questions *llm.MockClient
	renderer  *stubRenderer
	evaluator *gate.Evaluator
}

const diagnosisReport = "## Likely Condition\nCold\n## Expected Progression (30/60/90 Days)\nBetter\n## Lifestyle Recommendations\nRest\n## Red Flags & Next Steps\nFever\n## Citations\nMedlinePlus"

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	builder, err := prompts.NewBuilder()
	require.NoError(t, err)

	h := &harness{
		questions: llm.NewMockClient("Question: How long?\nA) Today\nB) A week"),
		renderer:  &stubRenderer{},
		evaluator: gate.NewEvaluator(10),
	}
	synth, err := diagnosis.NewSynthesizer(stubRetriever{}, llm.NewMockClient(diagnosisReport), builder, diagnosis.DefaultParams(), nil, diagnosis.WithEvaluator(h.evaluator))
	require.NoError(t, err)

	engine, err := conversation.NewEngine(conversation.Dependencies{
		Detector:    emergency.NewDetector(emergency.DefaultTable()),
		Gate:        relevance.NewGate(llm.NewMockClient("YES"), builder, relevance.DefaultParams(), nil, nil),
		Questions:   followup.NewGenerator(h.questions, builder, followup.Params{Temperature: 0.7, MaxTokens: 200, Total: 1}, nil),
		Synthesizer: synth,
	}, 1)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Version = "test"
	h.server, err = NewServer(cfg, Dependencies{
		Processor: engine,
		Sessions:  conversation.NewSessionStore(time.Hour, nil, nil),
		Evaluator: h.evaluator,
		Reports:   h.renderer,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (h *harness) createSession(t *testing.T) string {
	t.Helper()
	rec, env := h.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created SessionCreated
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, conversation.StageInitial, created.Stage)
	require.Equal(t, 1, created.TotalQuestions)
	return created.SessionID
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(env.Data, &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "test", health.Version)
}

func TestScreeningOverHTTP(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)

	rec, env := h.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", MessageRequest{Message: "I have a sore throat"})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	var first map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &first))
	require.Equal(t, "followup_question", first["type"])
	require.Equal(t, "How long?", first["question"])
	require.Equal(t, float64(1), first["question_num"])

	rec, _ = h.do(t, http.MethodGet, "/api/sessions/"+id+"/report.pdf", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, env = h.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", MessageRequest{Message: "B) A week"})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	var second map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &second))
	require.Equal(t, "diagnosis", second["type"])
	require.Equal(t, "COMPLETE", second["stage"])
	require.Equal(t, true, second["used_retrieval"])
	require.Len(t, second["sources"], 1)

	rec, env = h.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view conversation.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, conversation.StageComplete, view.Stage)
	require.Len(t, view.History, 4)

	rec, _ = h.do(t, http.MethodGet, "/api/sessions/"+id+"/report.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), id)
	require.Equal(t, "I have a sore throat | B) A week", h.renderer.got.Narrative)

	rec, env = h.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Equal(t, 1, stats.ActiveSessions)
	require.Equal(t, 1, stats.Grounding.TotalOutcomes)

	rec, env = h.do(t, http.MethodDelete, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Equal(t, 0, stats.Grounding.TotalOutcomes)
	require.Equal(t, 10, stats.Grounding.RollingWindow)
	require.Equal(t, 1, stats.ActiveSessions)

	rec, env = h.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", MessageRequest{Message: "hello again"})
	require.Equal(t, http.StatusOK, rec.Code)
	var third map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &third))
	require.Equal(t, "complete", third["type"])
}

func TestRequestErrors(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)

	rec, _ := h.do(t, http.MethodPost, "/api/sessions/missing/messages", MessageRequest{Message: "cough"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", MessageRequest{Message: "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/messages", strings.NewReader("message=cough"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	raw := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(raw, req)
	require.Equal(t, http.StatusUnsupportedMediaType, raw.Code)

	rec, _ = h.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollaboratorFailureMapsToBadGateway(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)
	h.questions.CompleteFunc = func(context.Context, llm.Request) (string, error) {
		return "", errors.New("upstream unavailable")
	}

	rec, env := h.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", MessageRequest{Message: "I have a fever"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.False(t, env.Success)
	require.Contains(t, env.Error, "try again")
	require.NotContains(t, env.Error, "upstream unavailable")

	_, env = h.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	var view conversation.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, conversation.StageInitial, view.Stage)
	require.Len(t, view.History, 1)
}

func TestWebSocketTurns(t *testing.T) {
	h := newHarness(t)
	id := h.createSession(t)

	srv := httptest.NewServer(h.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("my chest pain is crushing")))
	var resp map[string]any
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "emergency", resp["type"])
	require.Equal(t, "EMERGENCY", resp["stage"])
	require.Equal(t, "HIGH", resp["severity"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("   ")))
	var failure wsError
	require.NoError(t, conn.ReadJSON(&failure))
	require.Equal(t, "error", failure.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("anything")))
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "complete", resp["type"])
}

func TestWebSocketUnknownSession(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/nope/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, statusFor(report.ErrFontNotFound))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}
