package types

import (
	"strings"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Turns are never edited after they
// are appended.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// History is the ordered transcript of one session.
type History []Turn

// UserTexts returns the user-authored turns in order.
func (h History) UserTexts() []string {
	out := make([]string, 0, len(h))
	for _, turn := range h {
		if turn.Role == RoleUser {
			out = append(out, turn.Text)
		}
	}
	return out
}

// Narrative joins every user turn with " | ".
func (h History) Narrative() string {
	return strings.Join(h.UserTexts(), " | ")
}

// LastExchange returns the trailing assistant question and user answer, if
// the history ends with that pair.
func (h History) LastExchange() (question, answer string, ok bool) {
	if len(h) < 2 {
		return "", "", false
	}
	q, a := h[len(h)-2], h[len(h)-1]
	if q.Role != RoleAssistant || a.Role != RoleUser || q.Text == "" || a.Text == "" {
		return "", "", false
	}
	return q.Text, a.Text, true
}

// Transcript renders "User: ..." / "Assistant: ..." lines.
func (h History) Transcript() string {
	lines := make([]string, 0, len(h))
	for _, turn := range h {
		label := "User"
		if turn.Role == RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, label+": "+turn.Text)
	}
	return strings.Join(lines, "\n")
}

// Clone returns a copy safe to hand to another goroutine.
func (h History) Clone() History {
	out := make(History, len(h))
	copy(out, h)
	return out
}
