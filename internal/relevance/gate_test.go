package relevance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"symcheck/internal/llm"
	"symcheck/internal/logging"
	"symcheck/internal/prompts"
)

func newGate(t *testing.T, client llm.Client, logger logging.Logger) *Gate {
	t.Helper()
	builder, err := prompts.NewBuilder()
	require.NoError(t, err)
	return NewGate(client, builder, DefaultParams(), nil, logger)
}

func TestIsMedicalParsesReply(t *testing.T) {
	cases := map[string]bool{
		"YES":           true,
		"yes.":          true,
		"  Yes, it is ": true,
		"NO":            false,
		"no":            false,
		"":              false,
	}
	for reply, want := range cases {
		gate := newGate(t, llm.NewMockClient(reply), nil)
		if got := gate.IsMedical(context.Background(), "I have a headache"); got != want {
			t.Fatalf("reply %q: expected %t, got %t", reply, want, got)
		}
	}
}

func TestIsMedicalSendsClassifierPrompt(t *testing.T) {
	mock := llm.NewMockClient("NO")
	gate := newGate(t, mock, nil)

	require.False(t, gate.IsMedical(context.Background(), "What's the weather today?"))

	calls := mock.Calls()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0].User, `User input: "What's the weather today?"`)
	require.Equal(t, float32(0), calls[0].Temperature)
	require.Equal(t, 10, calls[0].MaxTokens)
}

func TestIsMedicalFailsOpen(t *testing.T) {
	mock := &llm.MockClient{CompleteFunc: func(context.Context, llm.Request) (string, error) {
		return "", errors.New("connection reset")
	}}
	recorder := &logging.Recorder{}
	gate := newGate(t, mock, recorder)

	require.True(t, gate.IsMedical(context.Background(), "Tell me a joke"))
	require.Equal(t, 1, recorder.Count("warn"))
}
