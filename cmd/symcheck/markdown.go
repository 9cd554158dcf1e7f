package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const maxRenderWidth = 120

// markdownRenderer renders diagnosis reports for the terminal.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
}

// newMarkdownRenderer uses the "notty" style when plain is set, so piped
// output carries no escape codes.
func newMarkdownRenderer(plain bool) (*markdownRenderer, error) {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = min(w-4, maxRenderWidth)
	}

	style := glamour.WithStandardStyle("dark")
	if plain {
		style = glamour.WithStandardStyle("notty")
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width), glamour.WithEmoji())
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &markdownRenderer{renderer: renderer}, nil
}

// Render falls back to the raw text if glamour fails.
func (m *markdownRenderer) Render(content string) string {
	if m == nil || content == "" {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}
