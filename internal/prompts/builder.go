package prompts

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.md
var templateFS embed.FS

// System prompts sent alongside the rendered user prompt.
const (
	FollowupSystem          = "You are a medical assistant asking diagnostic questions."
	GroundedDiagnosisSystem = "You are a knowledgeable medical AI assistant with access to MedlinePlus and medical textbook information."
	FallbackDiagnosisSystem = "You are a knowledgeable medical AI assistant."
)

// FallbackNote is appended to every diagnosis produced without reference material.
const FallbackNote = "⚠️ **Note**: This response is based on general medical knowledge as specific reference materials did not contain directly relevant information for your symptoms. For accurate diagnosis and treatment, please consult a healthcare provider."

// Disclaimer closes every diagnosis.
const Disclaimer = "This AI assessment is for informational purposes only and is not a substitute for professional medical advice. Please consult a healthcare provider for proper diagnosis and treatment."

// Prompt is a rendered system/user pair.
type Prompt struct {
	System string
	User   string
}

// FollowupInput carries everything the follow-up template needs.
type FollowupInput struct {
	Symptoms       []string
	LastQuestion   string
	LastAnswer     string
	QuestionNumber int
	Total          int
}

// Builder renders the assistant's prompts from embedded templates.
// It is immutable after construction and safe for concurrent use.
type Builder struct {
	relevance prompt.ChatTemplate
	followup  prompt.ChatTemplate
	grounded  prompt.ChatTemplate
	fallback  prompt.ChatTemplate

	followupGuidelines  string
	diagnosisGuidelines string
}

// NewBuilder loads the embedded templates.
func NewBuilder() (*Builder, error) {
	load := func(name string) (string, error) {
		content, err := templateFS.ReadFile("templates/" + name + ".md")
		if err != nil {
			return "", fmt.Errorf("failed to read prompt template %s: %w", name, err)
		}
		return strings.TrimSpace(string(content)), nil
	}

	texts := make(map[string]string)
	for _, name := range []string{"relevance", "followup_system", "followup", "diagnosis_system", "diagnosis_grounded", "diagnosis_fallback"} {
		text, err := load(name)
		if err != nil {
			return nil, err
		}
		texts[name] = text
	}

	return &Builder{
		relevance:           prompt.FromMessages(schema.FString, schema.UserMessage(texts["relevance"])),
		followup:            prompt.FromMessages(schema.FString, schema.SystemMessage(FollowupSystem), schema.UserMessage(texts["followup"])),
		grounded:            prompt.FromMessages(schema.FString, schema.SystemMessage(GroundedDiagnosisSystem), schema.UserMessage(texts["diagnosis_grounded"])),
		fallback:            prompt.FromMessages(schema.FString, schema.SystemMessage(FallbackDiagnosisSystem), schema.UserMessage(texts["diagnosis_fallback"])),
		followupGuidelines:  texts["followup_system"],
		diagnosisGuidelines: texts["diagnosis_system"],
	}, nil
}

// Relevance renders the YES/NO medical-domain classifier prompt.
func (b *Builder) Relevance(ctx context.Context, input string) (Prompt, error) {
	return render(ctx, b.relevance, map[string]any{"input": input})
}

// Followup renders the prompt for one multiple-choice follow-up question.
func (b *Builder) Followup(ctx context.Context, in FollowupInput) (Prompt, error) {
	lastExchange := ""
	if in.LastQuestion != "" && in.LastAnswer != "" {
		lastExchange = fmt.Sprintf("\nLast Question Asked: %s\nPatient's Answer: %s\n", in.LastQuestion, in.LastAnswer)
	}
	return render(ctx, b.followup, map[string]any{
		"guidelines":      b.followupGuidelines,
		"symptoms":        strings.Join(in.Symptoms, " | "),
		"last_exchange":   lastExchange,
		"question_num":    in.QuestionNumber,
		"total_questions": in.Total,
	})
}

// GroundedDiagnosis renders the report prompt constrained by retrieved context.
func (b *Builder) GroundedDiagnosis(ctx context.Context, transcript, referenceContext string) (Prompt, error) {
	return render(ctx, b.grounded, map[string]any{
		"guidelines": b.diagnosisGuidelines,
		"transcript": transcript,
		"context":    referenceContext,
	})
}

// FallbackDiagnosis renders the self-contained report prompt used when
// retrieval is not trusted.
func (b *Builder) FallbackDiagnosis(ctx context.Context, narrative string) (Prompt, error) {
	return render(ctx, b.fallback, map[string]any{
		"narrative":     narrative,
		"fallback_note": FallbackNote,
		"disclaimer":    Disclaimer,
	})
}

func render(ctx context.Context, tpl prompt.ChatTemplate, vars map[string]any) (Prompt, error) {
	messages, err := tpl.Format(ctx, vars)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to format prompt: %w", err)
	}
	var out Prompt
	for _, msg := range messages {
		switch msg.Role {
		case schema.System:
			out.System = msg.Content
		case schema.User:
			out.User = msg.Content
		}
	}
	return out, nil
}
