package rag

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Fixed identity of the clinical textbook source.
const (
	TextbookID    = "textbook_full"
	TextbookTitle = "Symptom to Diagnosis - Evidence-Based Guide"
	TextbookURL   = "textbook://symptom_to_diagnosis"
)

// minSummaryLength drops topics whose summary is too thin to be useful.
const minSummaryLength = 50

type healthTopic struct {
	ID          string   `xml:"id,attr"`
	Title       string   `xml:"title,attr"`
	URL         string   `xml:"url,attr"`
	Language    string   `xml:"language,attr"`
	AlsoCalled  []string `xml:"also-called"`
	FullSummary string   `xml:"full-summary"`
}

// ParseMedlinePlus streams a MedlinePlus health-topics XML export and returns
// one Document per English topic with a usable summary.
func ParseMedlinePlus(r io.Reader) ([]Document, error) {
	decoder := xml.NewDecoder(r)
	var docs []Document

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read medlineplus xml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "health-topic" {
			continue
		}

		var topic healthTopic
		if err := decoder.DecodeElement(&topic, &start); err != nil {
			return nil, fmt.Errorf("decode health-topic: %w", err)
		}
		if topic.Language != "English" {
			continue
		}

		summary, err := htmlText(topic.FullSummary)
		if err != nil {
			return nil, fmt.Errorf("clean summary for %q: %w", topic.Title, err)
		}
		if len(summary) < minSummaryLength {
			continue
		}

		var aliases []string
		for _, a := range topic.AlsoCalled {
			if a = strings.TrimSpace(a); a != "" {
				aliases = append(aliases, a)
			}
		}

		docs = append(docs, Document{
			ID:         topic.ID,
			Title:      topic.Title,
			AlsoCalled: strings.Join(aliases, ", "),
			Summary:    summary,
			URL:        topic.URL,
			SourceType: SourcePrimaryReference,
		})
	}
	return docs, nil
}

// htmlText flattens an HTML fragment to its text, one space between nodes.
func htmlText(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}

	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) == "#text" {
				parts = append(parts, child.Text())
				return
			}
			walk(child)
		})
	}
	walk(doc.Selection)

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}

// ParseTextbook reads the extracted textbook, a JSON object of section title
// to section text, into a single clinical reference document. Sections are
// joined in title order.
func ParseTextbook(r io.Reader) (Document, error) {
	var sections map[string]string
	if err := json.NewDecoder(r).Decode(&sections); err != nil {
		return Document{}, fmt.Errorf("decode textbook json: %w", err)
	}
	if len(sections) == 0 {
		return Document{}, errors.New("textbook json is empty")
	}

	titles := make([]string, 0, len(sections))
	for title := range sections {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	bodies := make([]string, 0, len(titles))
	for _, title := range titles {
		if body := strings.TrimSpace(sections[title]); body != "" {
			bodies = append(bodies, body)
		}
	}

	return Document{
		ID:         TextbookID,
		Title:      TextbookTitle,
		Summary:    strings.Join(bodies, "\n\n"),
		URL:        TextbookURL,
		SourceType: SourceClinicalReference,
	}, nil
}
