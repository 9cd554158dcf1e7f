package followup

import "strings"

// Question is a parsed follow-up question.
type Question struct {
	Text       string   `json:"question"`
	Options    []string `json:"options"`
	HasOptions bool     `json:"has_options"`
}

const questionPrefix = "Question:"

// Parse extracts the "Question:" line and every option line, one that starts
// with an uppercase letter followed by ')', '.' or ']'. Text without a
// question line is returned whole as the question. Parse never fails.
func Parse(text string) Question {
	var question string
	options := []string{}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, questionPrefix):
			question = strings.TrimSpace(strings.TrimPrefix(line, questionPrefix))
		case isOption(line):
			options = append(options, line)
		}
	}

	if question == "" {
		return Question{Text: strings.TrimSpace(text), Options: []string{}}
	}
	return Question{Text: question, Options: options, HasOptions: len(options) > 0}
}

func isOption(line string) bool {
	if len(line) < 2 {
		return false
	}
	if line[0] < 'A' || line[0] > 'Z' {
		return false
	}
	switch line[1] {
	case ')', '.', ']':
		return true
	}
	return false
}
