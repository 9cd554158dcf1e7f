package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryHelpers(t *testing.T) {
	h := History{
		{Role: RoleUser, Text: "fever for 3 days"},
		{Role: RoleAssistant, Text: "Question: How high?"},
		{Role: RoleUser, Text: "A) Mild"},
	}

	require.Equal(t, []string{"fever for 3 days", "A) Mild"}, h.UserTexts())
	require.Equal(t, "fever for 3 days | A) Mild", h.Narrative())

	q, a, ok := h.LastExchange()
	require.True(t, ok)
	require.Equal(t, "Question: How high?", q)
	require.Equal(t, "A) Mild", a)

	require.Equal(t, "User: fever for 3 days\nAssistant: Question: How high?\nUser: A) Mild", h.Transcript())
}

func TestLastExchangeRequiresPair(t *testing.T) {
	_, _, ok := History{{Role: RoleUser, Text: "hi"}}.LastExchange()
	require.False(t, ok)

	_, _, ok = History{{Role: RoleUser, Text: "a"}, {Role: RoleUser, Text: "b"}}.LastExchange()
	require.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	h := History{{Role: RoleUser, Text: "a"}}
	c := h.Clone()
	c[0].Text = "b"
	if h[0].Text != "a" {
		t.Fatalf("clone shares backing array")
	}
}
