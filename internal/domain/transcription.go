package domain

import (
	"strings"
	"time"
)

// TranscriptionStatus is the lifecycle state of a job record.
type TranscriptionStatus string

const (
	StatusProcessing TranscriptionStatus = "processing"
	StatusSuccess    TranscriptionStatus = "success"
	StatusError      TranscriptionStatus = "error"
)

// UnknownSource is stored when an upload carries no source header.
const UnknownSource = "unknown"

// Transcription is the persisted job record for one upload. It is the
// only source of truth for a transcription's lifecycle; the JSON keys
// match the files written by earlier versions of the service.
type Transcription struct {
	ID               string              `json:"id"`
	CreatedAt        time.Time           `json:"datetime"`
	Source           string              `json:"source"`
	OriginalFilename string              `json:"original_filename"`
	AudioLengthSec   float64             `json:"audio_length_sec"`
	FileSize         int64               `json:"file_size"`
	WhisperModel     string              `json:"whisper_model"`
	WhisperArgs      string              `json:"whisper_args"`
	Status           TranscriptionStatus `json:"status"`
	Error            *string             `json:"error"`
	Language         *string             `json:"language"`
	Text             *string             `json:"transcription_text"`
	MarkdownFile     string              `json:"markdown_file,omitempty"`
	MarkdownTitle    string              `json:"markdown_title,omitempty"`
}

// TranscriptText returns the transcript or "" when absent.
func (t *Transcription) TranscriptText() string {
	if t.Text == nil {
		return ""
	}
	return *t.Text
}

// ErrorDetail returns the diagnostic or "" when absent.
func (t *Transcription) ErrorDetail() string {
	if t.Error == nil {
		return ""
	}
	return *t.Error
}

// HasTranscript reports whether the record carries non-blank transcript text.
func (t *Transcription) HasTranscript() bool {
	return strings.TrimSpace(t.TranscriptText()) != ""
}

// HasMarkdown reports whether a note has been generated for the record.
func (t *Transcription) HasMarkdown() bool {
	return t.MarkdownFile != ""
}

// MarkSuccess applies a successful transcription.
func (t *Transcription) MarkSuccess(text string) {
	t.Status = StatusSuccess
	t.Text = &text
	t.Error = nil
}

// MarkError applies a failed transcription. text is the in-band
// failure text reported by the engine, if any.
func (t *Transcription) MarkError(detail string, text *string) {
	t.Status = StatusError
	t.Error = &detail
	t.Text = text
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
