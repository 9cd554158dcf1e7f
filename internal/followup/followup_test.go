package followup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"symcheck/internal/llm"
	"symcheck/internal/prompts"
	"symcheck/internal/types"
)

func TestParseWellFormed(t *testing.T) {
	q := Parse("Question: How severe is your fever?\nA) Mild (under 100°F)\n  B) Moderate\nC. High\nD] Very high\n")
	require.Equal(t, "How severe is your fever?", q.Text)
	require.Equal(t, []string{"A) Mild (under 100°F)", "B) Moderate", "C. High", "D] Very high"}, q.Options)
	require.True(t, q.HasOptions)
}

func TestParseWithoutQuestionLine(t *testing.T) {
	q := Parse("  How long have you had the cough?\nA) Days\n")
	require.Equal(t, "How long have you had the cough?\nA) Days", q.Text)
	require.Empty(t, q.Options)
	require.False(t, q.HasOptions)
}

func TestParseIgnoresNonOptionLines(t *testing.T) {
	q := Parse("Question: Any travel?\na) lowercase\nAB) two letters\nE) Fifth option\nNote: answer honestly")
	require.Equal(t, []string{"E) Fifth option"}, q.Options)
}

func TestParseDegenerateInput(t *testing.T) {
	for _, text := range []string{"", "   ", "A", "Question:"} {
		q := Parse(text)
		require.False(t, q.HasOptions, text)
		require.NotNil(t, q.Options)
	}
}

func TestGenerateBuildsPromptFromHistory(t *testing.T) {
	builder, err := prompts.NewBuilder()
	require.NoError(t, err)
	mock := llm.NewMockClient("Question: Any chills?\nA) Yes\nB) No")
	gen := NewGenerator(mock, builder, Params{Temperature: 0.7, MaxTokens: 200, Total: 3}, nil)

	history := types.History{
		{Role: types.RoleUser, Text: "I have a fever"},
		{Role: types.RoleAssistant, Text: "Question: How high?\nA) Mild\nB) High"},
		{Role: types.RoleUser, Text: "B) High"},
	}
	out, err := gen.Generate(context.Background(), history, 2)
	require.NoError(t, err)
	require.Equal(t, "Question: Any chills?\nA) Yes\nB) No", out)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, prompts.FollowupSystem, calls[0].System)
	require.Contains(t, calls[0].User, "Patient's symptoms so far: I have a fever | B) High")
	require.Contains(t, calls[0].User, "Patient's Answer: B) High")
	require.Contains(t, calls[0].User, "This is follow-up question #2 of 3.")
	require.Equal(t, float32(0.7), calls[0].Temperature)
	require.Equal(t, 200, calls[0].MaxTokens)
}

func TestGeneratePropagatesFailure(t *testing.T) {
	builder, err := prompts.NewBuilder()
	require.NoError(t, err)
	boom := errors.New("quota exceeded")
	mock := &llm.MockClient{CompleteFunc: func(context.Context, llm.Request) (string, error) { return "", boom }}

	_, err = NewGenerator(mock, builder, DefaultParams(), nil).Generate(context.Background(), types.History{{Role: types.RoleUser, Text: "cough"}}, 1)
	require.ErrorIs(t, err, boom)
}
