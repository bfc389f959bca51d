// Package polisher turns transcripts into Markdown notes using an LLM.
package polisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/domain"
	"github.com/timmy/scribe/internal/logger"
)

// Polisher produces a note for one transcript.
type Polisher interface {
	Polish(ctx context.Context, transcript string) (*domain.Note, error)
}

// New returns the polisher selected by cfg.Provider.
func New(cfg config.PolisherConfig) (Polisher, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		o := NewOllama(cfg)
		logger.Info("Polisher: ollama endpoint=%s, model=%s", o.Endpoint(), cfg.Model)
		return o, nil
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported polisher provider: %s", cfg.Provider)
	}
}

// ParseNote interprets a raw model response. A leading ```json or ``` fence is
// stripped to its first block before decoding. When the response is not a JSON
// object the whole raw text becomes the markdown. When the object has an empty
// markdown field, the first non-empty string value is used instead.
func ParseNote(raw string) *domain.Note {
	body := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(body, "```json"):
		body = firstFenceBlock(strings.TrimPrefix(body, "```json"))
	case strings.HasPrefix(body, "```"):
		body = firstFenceBlock(strings.TrimPrefix(body, "```"))
	}

	fields, ok := decodeObject(body)
	if !ok {
		return &domain.Note{Markdown: raw}
	}

	note := &domain.Note{
		Markdown: stringField(fields, "markdown"),
		Title:    stringField(fields, "title"),
		FileName: stringField(fields, "file_name"),
	}
	if strings.TrimSpace(note.Markdown) == "" {
		for _, f := range fields {
			if s, ok := f.value.(string); ok && strings.TrimSpace(s) != "" {
				note.Markdown = s
				break
			}
		}
	}
	return note
}

func firstFenceBlock(s string) string {
	if end := strings.Index(s, "```"); end != -1 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

type field struct {
	key   string
	value interface{}
}

// decodeObject decodes a top-level JSON object keeping key order.
func decodeObject(body string) ([]field, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, false
	}

	fields := []field{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, false
		}
		fields = append(fields, field{key: key, value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return fields, true
}

func stringField(fields []field, key string) string {
	for _, f := range fields {
		if f.key == key {
			s, _ := f.value.(string)
			return s
		}
	}
	return ""
}
