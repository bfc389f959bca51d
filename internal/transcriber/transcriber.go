// Package transcriber wraps the speech-to-text engine behind an interface
// that reports failures as errors rather than in-band text.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Engine turns a normalized waveform into transcript text.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// ErrNoOutput is returned when the engine exits cleanly but writes no transcript.
var ErrNoOutput = errors.New("no transcript file found")

// EngineError reports a failed engine process.
type EngineError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *EngineError) Error() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return fmt.Sprintf("transcription error: %v: %s", e.Err, s)
	}
	return fmt.Sprintf("transcription error: %v", e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// SentinelError carries failure text that an engine returned in place of a transcript.
type SentinelError struct {
	Text string
}

func (e *SentinelError) Error() string {
	return strings.TrimSpace(e.Text)
}

// IsSentinel reports whether text is an in-band error marker such as
// "(No transcript file found)" rather than real transcript content.
func IsSentinel(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "(")
}

// Sentinel returns the in-band text an error should be stored as, or nil
// when the error carries none.
func Sentinel(err error) *string {
	var se *SentinelError
	if errors.As(err, &se) {
		text := se.Text
		return &text
	}
	return nil
}

// LegacyFunc is a transcription routine that signals failure in-band.
type LegacyFunc func(ctx context.Context, audioPath string) string

type legacy struct {
	fn LegacyFunc
}

// Legacy adapts a LegacyFunc into an Engine. Sentinel-shaped results become
// *SentinelError and empty results become ErrNoOutput.
func Legacy(fn LegacyFunc) Engine {
	return &legacy{fn: fn}
}

func (l *legacy) Transcribe(ctx context.Context, audioPath string) (string, error) {
	text := l.fn(ctx, audioPath)
	if strings.TrimSpace(text) == "" {
		return "", ErrNoOutput
	}
	if IsSentinel(text) {
		return "", &SentinelError{Text: text}
	}
	return text, nil
}
