package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder()
	require.NoError(t, err)
	return b
}

func TestRelevancePromptEmbedsInput(t *testing.T) {
	b := newTestBuilder(t)

	p, err := b.Relevance(context.Background(), "I have a headache {sic}")
	require.NoError(t, err)
	require.Empty(t, p.System)
	require.Contains(t, p.User, `User input: "I have a headache {sic}"`)
	require.True(t, strings.HasSuffix(p.User, "Answer (YES or NO):"))
}

func TestFollowupPromptIncludesLastExchange(t *testing.T) {
	b := newTestBuilder(t)

	p, err := b.Followup(context.Background(), FollowupInput{
		Symptoms:       []string{"fever", "A) Mild"},
		LastQuestion:   "Question: How high is your fever?",
		LastAnswer:     "A) Mild",
		QuestionNumber: 2,
		Total:          3,
	})
	require.NoError(t, err)
	require.Equal(t, FollowupSystem, p.System)
	require.Contains(t, p.User, "Patient's symptoms so far: fever | A) Mild")
	require.Contains(t, p.User, "Last Question Asked: Question: How high is your fever?\nPatient's Answer: A) Mild")
	require.Contains(t, p.User, "This is follow-up question #2 of 3.")
	require.Contains(t, p.User, "You are a medical assistant helping to gather information")
}

func TestFollowupPromptOmitsMissingExchange(t *testing.T) {
	b := newTestBuilder(t)

	p, err := b.Followup(context.Background(), FollowupInput{Symptoms: []string{"cough"}, QuestionNumber: 1, Total: 3})
	require.NoError(t, err)
	require.NotContains(t, p.User, "Last Question Asked")
}

func TestDiagnosisPrompts(t *testing.T) {
	b := newTestBuilder(t)
	ctx := context.Background()

	grounded, err := b.GroundedDiagnosis(ctx, "User: cough", "[Source: MedlinePlus - Cough]\ntext\n")
	require.NoError(t, err)
	require.Equal(t, GroundedDiagnosisSystem, grounded.System)
	require.Contains(t, grounded.User, "PATIENT CONVERSATION:\nUser: cough")
	require.Contains(t, grounded.User, "MEDICAL REFERENCE INFORMATION (from MedlinePlus and Textbook):\n[Source: MedlinePlus - Cough]")
	for _, section := range []string{"## Likely Condition", "## Expected Progression (30/60/90 Days)", "## Lifestyle Recommendations", "## Red Flags & Next Steps", "## Citations"} {
		require.Contains(t, grounded.User, section)
	}

	fallback, err := b.FallbackDiagnosis(ctx, "cough | night sweats")
	require.NoError(t, err)
	require.Equal(t, FallbackDiagnosisSystem, fallback.System)
	require.Contains(t, fallback.User, `Based on the patient's symptoms: "cough | night sweats"`)
	require.Contains(t, fallback.User, FallbackNote)
	require.Contains(t, fallback.User, Disclaimer)
}
