package polisher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/domain"
	"github.com/timmy/scribe/internal/logger"
	"github.com/timmy/scribe/internal/prompts"
)

// Ollama polishes transcripts through a local Ollama server's /api/chat endpoint.
type Ollama struct {
	client   *resty.Client
	model    string
	prompt   string
	endpoint string
}

// NewOllama creates an Ollama polisher.
func NewOllama(cfg config.PolisherConfig) *Ollama {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	return &Ollama{
		client:   client,
		model:    cfg.Model,
		prompt:   cfg.Prompt,
		endpoint: ollamaBaseURL(cfg.Host, cfg.Port) + "/api/chat",
	}
}

// ollamaBaseURL joins host and port; a host that already carries a port is used as is.
// A host without a scheme gets http://.
func ollamaBaseURL(host string, port int) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = "http://localhost"
	}
	// OLLAMA_HOST is conventionally host:port without a scheme
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	if port <= 0 {
		return host
	}
	if i := strings.LastIndex(host, ":"); i > len("https:") {
		if _, err := strconv.Atoi(host[i+1:]); err == nil {
			return host
		}
	}
	return host + ":" + strconv.Itoa(port)
}

// Endpoint returns the chat URL requests are sent to.
func (o *Ollama) Endpoint() string {
	return o.endpoint
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   map[string]interface{} `json:"format"`
	Options  map[string]interface{} `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message,omitempty"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Polish implements Polisher.
func (o *Ollama) Polish(ctx context.Context, transcript string) (*domain.Note, error) {
	raw, err := o.Complete(ctx, transcript)
	if err != nil {
		return nil, err
	}
	return ParseNote(raw), nil
}

// Complete sends the transcript and returns the raw model content.
func (o *Ollama) Complete(ctx context.Context, transcript string) (string, error) {
	req := ollamaChatRequest{
		Model: o.model,
		Messages: []ollamaMessage{
			{Role: "user", Content: prompts.BuildPolishPrompt(o.prompt, transcript)},
		},
		Stream:  false,
		Format:  prompts.NoteSchema,
		Options: map[string]interface{}{"temperature": 0},
	}

	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "ollama")
	log.Debugf("Ollama request to %s (model=%s, transcript=%d chars)", o.endpoint, o.model, len(transcript))

	var resp ollamaChatResponse
	httpResp, err := o.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(o.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call Ollama API: %w", err)
	}

	log.Debugf("Ollama raw response: %s", string(httpResp.Body()))

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		if resp.Error != "" {
			return "", fmt.Errorf("Ollama API returned error: HTTP %d: %s", httpResp.StatusCode(), resp.Error)
		}
		return "", fmt.Errorf("Ollama API returned error: HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}

	if resp.Message != nil {
		return resp.Message.Content, nil
	}
	return resp.Response, nil
}
