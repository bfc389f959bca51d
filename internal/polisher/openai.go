package polisher

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/domain"
	"github.com/timmy/scribe/internal/prompts"
)

// OpenAI polishes transcripts through an OpenAI-compatible chat completion API.
type OpenAI struct {
	client *openai.Client
	model  string
	prompt string
}

// NewOpenAI creates an OpenAI polisher. An API key is required.
func NewOpenAI(cfg config.PolisherConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("polisher: openai provider requires an API key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		prompt: cfg.Prompt,
	}, nil
}

// Polish implements Polisher.
func (o *OpenAI) Polish(ctx context.Context, transcript string) (*domain.Note, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.NoteSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompts.BuildPolishPrompt(o.prompt, transcript)},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in OpenAI response")
	}
	return ParseNote(resp.Choices[0].Message.Content), nil
}
