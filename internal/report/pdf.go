// Package report exports a finished diagnosis as a PDF document.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"symcheck/internal/diagnosis"
	"symcheck/internal/logging"
)

// ErrFontNotFound is returned when none of the candidate fonts could be loaded.
var ErrFontNotFound = errors.New("no usable TrueType font found")

// DefaultFontPaths are tried when no font is configured.
var DefaultFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/Library/Fonts/Arial Unicode.ttf",
}

const (
	fontFamily = "Body"
	margin     = 50.0
	textWidth  = 595.28 - 2*margin // A4 width in points
	pageBottom = 790.0
)

// Input is everything printed in the report.
type Input struct {
	SessionID string
	CreatedAt time.Time
	Narrative string
	Result    *diagnosis.Result
}

// Renderer draws diagnosis reports with gopdf.
type Renderer struct {
	fontPaths []string
	logger    logging.Logger
}

// NewRenderer tries fontPaths in order, falling back to DefaultFontPaths when
// none are given. Empty entries are ignored.
func NewRenderer(logger logging.Logger, fontPaths ...string) *Renderer {
	var paths []string
	for _, p := range fontPaths {
		if p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		paths = DefaultFontPaths
	}
	return &Renderer{fontPaths: paths, logger: logging.OrNop(logger)}
}

// Render returns the PDF bytes for in.
func (r *Renderer) Render(in Input) ([]byte, error) {
	if in.Result == nil {
		return nil, errors.New("report requires a diagnosis")
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.SetLeftMargin(margin)
	pdf.SetTopMargin(margin)
	if err := r.loadFont(pdf); err != nil {
		return nil, err
	}
	pdf.AddPage()

	w := &writer{pdf: pdf}
	w.line("Symptom Screening Report", 18)
	w.gap(8)
	w.line(fmt.Sprintf("Session: %s", in.SessionID), 10)
	w.line(fmt.Sprintf("Generated: %s", in.CreatedAt.Format("2006-01-02 15:04 MST")), 10)
	mode := "General medical knowledge (no matching reference material)"
	if in.Result.UsedRetrieval {
		mode = "Grounded in MedlinePlus and textbook references"
	}
	w.line("Basis: "+mode, 10)
	w.gap(12)

	if in.Narrative != "" {
		w.line("Reported symptoms", 13)
		w.paragraph(in.Narrative, 11)
		w.gap(10)
	}

	for _, raw := range strings.Split(in.Result.Report, "\n") {
		text, size := plainLine(raw)
		if text == "" {
			w.gap(6)
			continue
		}
		w.paragraph(text, size)
	}

	if len(in.Result.Sources) > 0 {
		w.gap(12)
		w.line("Sources", 13)
		for _, src := range in.Result.Sources {
			w.paragraph(fmt.Sprintf("- %s (%s, distance %.3f) %s", src.Title, src.SourceType.Label(), src.RelevanceScore, src.URL), 10)
		}
	}
	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range r.fontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err != nil {
			lastErr = err
			continue
		}
		r.logger.Debug("Loaded report font from %s", path)
		return nil
	}
	return fmt.Errorf("%w (tried %s): %v", ErrFontNotFound, strings.Join(r.fontPaths, ", "), lastErr)
}

// writer accumulates the first drawing error so callers can chain calls.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) setFont(size float64) {
	if w.err == nil {
		w.err = w.pdf.SetFont(fontFamily, "", size)
	}
}

func (w *writer) line(text string, size float64) {
	w.setFont(size)
	w.breakIfFull(size)
	if w.err == nil {
		w.err = w.pdf.Cell(nil, text)
	}
	w.pdf.Br(size + 4)
}

func (w *writer) paragraph(text string, size float64) {
	w.setFont(size)
	if w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, textWidth)
	if err != nil {
		w.err = err
		return
	}
	for _, l := range lines {
		w.breakIfFull(size)
		if w.err == nil {
			w.err = w.pdf.Cell(nil, l)
		}
		w.pdf.Br(size + 3)
	}
}

func (w *writer) gap(h float64) {
	w.pdf.Br(h)
}

func (w *writer) breakIfFull(size float64) {
	if w.pdf.GetY()+size > pageBottom {
		w.pdf.AddPage()
	}
}

// plainLine strips markdown from one report line and picks a font size.
func plainLine(line string) (string, float64) {
	text := strings.TrimSpace(line)
	size := 11.0
	switch {
	case strings.HasPrefix(text, "### "):
		text, size = strings.TrimPrefix(text, "### "), 12
	case strings.HasPrefix(text, "## "):
		text, size = strings.TrimPrefix(text, "## "), 14
	case strings.HasPrefix(text, "# "):
		text, size = strings.TrimPrefix(text, "# "), 16
	case text == "---":
		return "", size
	}
	text = strings.NewReplacer("**", "", "__", "", "`", "").Replace(text)
	if strings.HasPrefix(text, "* ") {
		text = "- " + strings.TrimPrefix(text, "* ")
	}
	return strings.TrimSpace(text), size
}
