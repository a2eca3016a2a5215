// Package ai wraps the text-generation collaborator used for guide writing
// and similar-option suggestions.
//
// The engine only needs Generate(ctx, prompt) -> text. Prompt construction
// and response parsing live in prompts.go so they can be tested without a
// model.
package ai

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tbourn/go-vote-backend/internal/config"
)

var (
	// ErrUnavailable is returned when no model is configured.
	ErrUnavailable = errors.New("ai: generator not configured")

	// ErrEmptyResponse is returned when the model answers with no usable text.
	ErrEmptyResponse = errors.New("ai: empty response")
)

// Generator produces text for a prompt. Implementations must honor ctx
// cancellation; callers apply their own deadline and never retry inline.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const systemPrompt = "You write short, neutral summaries of community poll results. " +
	"Follow the requested output format exactly."

// OpenAI calls an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAI builds a client from cfg. An empty BaseURL keeps the library
// default endpoint.
func NewOpenAI(cfg config.AIConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   800,
		temperature: 0.4,
	}
}

// Generate sends prompt as a single user message.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// Disabled is used when no API key is configured. Every call fails with
// ErrUnavailable, which leaves closed votes without a guide until the
// reconcile sweep runs with a working generator.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) { return "", ErrUnavailable }

// New returns an OpenAI generator when cfg carries an API key, Disabled
// otherwise.
func New(cfg config.AIConfig) Generator {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Disabled{}
	}
	return NewOpenAI(cfg)
}
