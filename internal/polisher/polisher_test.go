package polisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/domain"
)

func TestParseNote(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.Note
	}{
		{
			name: "plain json",
			raw:  `{"markdown":"# Hi","title":"Greeting","file_name":"greeting.md"}`,
			want: domain.Note{Markdown: "# Hi", Title: "Greeting", FileName: "greeting.md"},
		},
		{
			name: "json fence",
			raw:  "```json\n{\"markdown\":\"# Hi\",\"title\":\"T\",\"file_name\":\"t.md\"}\n```",
			want: domain.Note{Markdown: "# Hi", Title: "T", FileName: "t.md"},
		},
		{
			name: "bare fence",
			raw:  "```\n{\"markdown\":\"body\",\"title\":\"\",\"file_name\":\"\"}\n```\ntrailing",
			want: domain.Note{Markdown: "body"},
		},
		{
			name: "not json",
			raw:  "# Just markdown\n\nSome text.",
			want: domain.Note{Markdown: "# Just markdown\n\nSome text."},
		},
		{
			name: "json array falls back to raw",
			raw:  `["a","b"]`,
			want: domain.Note{Markdown: `["a","b"]`},
		},
		{
			name: "empty markdown uses first non-empty string",
			raw:  `{"markdown":"","summary":"the summary","title":"Title"}`,
			want: domain.Note{Markdown: "the summary", Title: "Title"},
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: domain.Note{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNote(tt.raw)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestOllamaBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434", ollamaBaseURL("http://localhost", 11434))
	assert.Equal(t, "http://gpu-box:11434", ollamaBaseURL("http://gpu-box:11434/", 11434))
	assert.Equal(t, "http://localhost", ollamaBaseURL("http://localhost", 0))
	assert.Equal(t, "http://localhost:11434", ollamaBaseURL("localhost:11434", 11434))
	assert.Equal(t, "http://gpu-box:11434", ollamaBaseURL("gpu-box", 11434))
	assert.Equal(t, "https://ollama.example.com:443", ollamaBaseURL("https://ollama.example.com:443", 11434))
}

func TestOllamaPolish(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{
				"role":    "assistant",
				"content": "```json\n{\"markdown\":\"# Notes\",\"title\":\"Standup\",\"file_name\":\"standup.md\"}\n```",
			},
		})
	}))
	defer srv.Close()

	o := NewOllama(config.PolisherConfig{Host: srv.URL, Model: "llama3", Prompt: "Tidy up:", Timeout: 5 * time.Second})
	note, err := o.Polish(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, domain.Note{Markdown: "# Notes", Title: "Standup", FileName: "standup.md"}, *note)

	assert.Equal(t, "llama3", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, map[string]interface{}{"temperature": float64(0)}, got["options"])

	format, ok := got["format"].(map[string]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []interface{}{"markdown", "title", "file_name"}, format["required"])

	msgs, ok := got["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, msgs, 1)
	content := msgs[0].(map[string]interface{})["content"].(string)
	assert.True(t, strings.HasPrefix(content, "Tidy up:\n\nReturn a JSON object with the following fields:"))
	assert.True(t, strings.HasSuffix(content, "suitable for Obsidian).\n\nhello world"))
}

func TestOllamaFallsBackToResponseField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"plain text note"}`))
	}))
	defer srv.Close()

	o := NewOllama(config.PolisherConfig{Host: srv.URL})
	note, err := o.Polish(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "plain text note", note.Markdown)
}

func TestOllamaHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llama9\" not found"}`))
	}))
	defer srv.Close()

	o := NewOllama(config.PolisherConfig{Host: srv.URL, Model: "llama9"})
	_, err := o.Polish(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Contains(t, err.Error(), "not found")
}

func TestOpenAIPolish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "{\"markdown\":\"# Done\",\"title\":\"Done\",\"file_name\":\"done.md\"}"},
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer srv.Close()

	p, err := New(config.PolisherConfig{Provider: "openai", APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	note, err := p.Polish(context.Background(), "transcript")
	require.NoError(t, err)
	assert.Equal(t, domain.Note{Markdown: "# Done", Title: "Done", FileName: "done.md"}, *note)
}

func TestNewProvider(t *testing.T) {
	p, err := New(config.PolisherConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, p)

	_, err = New(config.PolisherConfig{Provider: "openai"})
	assert.Error(t, err)

	_, err = New(config.PolisherConfig{Provider: "bard"})
	assert.Error(t, err)
}
