package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "symcheck/internal/errors"
	"symcheck/internal/logging"
)

// OpenAIConfig configures the OpenAI-compatible chat client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // Optional; empty uses the OpenAI default
	Model   string
	Timeout time.Duration
}

// OpenAIClient calls the chat completion API through go-openai.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger logging.Logger
}

// NewOpenAIClient builds a client. The API key is required.
func NewOpenAIClient(config OpenAIConfig, logger logging.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, apperrors.NewConfigurationError("llm.api_key", errors.New("OPENAI_API_KEY is not set"))
	}
	if config.Model == "" {
		config.Model = openai.GPT3Dot5Turbo
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
		logger: logging.OrNop(logger),
	}, nil
}

// Complete sends the system/user pair and returns the trimmed reply.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	c.logger.Debug("chat completion model=%s temperature=%.2f max_tokens=%d", c.model, req.Temperature, req.MaxTokens)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: wireTemperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewPermanentError(errors.New("empty choices"), "model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// wireTemperature keeps an explicit zero on the wire. go-openai omits a zero
// temperature and the API would then sample at its default of 1.0.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// classifyOpenAIError maps go-openai errors onto transient/permanent so the
// retry layer can decide.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.FromStatus(apiErr.HTTPStatusCode, fmt.Errorf("openai api error %d: %w", apiErr.HTTPStatusCode, err))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperrors.FromStatus(reqErr.HTTPStatusCode, fmt.Errorf("openai request error %d: %w", reqErr.HTTPStatusCode, err))
	}
	return err
}
