package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/timmy/scribe/internal/config"
)

// Normalizer converts uploads to the waveform whisper.cpp expects and
// measures their duration. It shells out to ffmpeg and ffprobe.
type Normalizer struct {
	ffmpegPath     string
	ffprobePath    string
	sampleRate     int
	channels       int
	convertFormats []string
	runner         Runner
	tempDir        string
}

// NewNormalizer builds a Normalizer from the media config section.
func NewNormalizer(cfg config.MediaConfig) *Normalizer {
	n := &Normalizer{
		ffmpegPath:     lo.Ternary(cfg.FFmpegPath != "", cfg.FFmpegPath, "ffmpeg"),
		ffprobePath:    lo.Ternary(cfg.FFprobePath != "", cfg.FFprobePath, "ffprobe"),
		sampleRate:     lo.Ternary(cfg.SampleRate > 0, cfg.SampleRate, 16000),
		channels:       lo.Ternary(cfg.Channels > 0, cfg.Channels, 1),
		convertFormats: lo.Map(cfg.ConvertFormats, func(f string, _ int) string { return normalizeFormat(f) }),
		runner:         ExecRunner{},
	}
	return n
}

// WithRunner replaces the process runner. Used by tests.
func (n *Normalizer) WithRunner(r Runner) *Normalizer {
	n.runner = r
	return n
}

// NeedsConversion reports whether files of format must be converted to wav
// before transcription.
func (n *Normalizer) NeedsConversion(format string) bool {
	return lo.Contains(n.convertFormats, normalizeFormat(format))
}

// Convert transcodes data of the given format to 16-bit PCM wav at the
// configured sample rate and channel count.
func (n *Normalizer) Convert(ctx context.Context, data []byte, fromFormat string) ([]byte, error) {
	dir, err := os.MkdirTemp(n.tempDir, "scribe-convert-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input."+normalizeFormat(fromFormat))
	out := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(in, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp input: %w", err)
	}

	if err := n.ConvertFile(ctx, in, out); err != nil {
		return nil, err
	}

	wav, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted audio: %w", err)
	}
	return wav, nil
}

// ConvertFile transcodes the file at in and writes a wav to out.
func (n *Normalizer) ConvertFile(ctx context.Context, in, out string) error {
	args := []string{
		"-y", "-i", in,
		"-ar", strconv.Itoa(n.sampleRate),
		"-ac", strconv.Itoa(n.channels),
		"-sample_fmt", "s16",
		out,
	}
	res, err := n.runner.Run(ctx, n.ffmpegPath, args...)
	if err != nil {
		return &CommandError{Command: n.ffmpegPath, Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
	}
	return nil
}

// ProbeDuration returns the media duration in seconds rounded to two decimals.
func (n *Normalizer) ProbeDuration(ctx context.Context, data []byte, format string) (float64, error) {
	dir, err := os.MkdirTemp(n.tempDir, "scribe-probe-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input."+normalizeFormat(format))
	if err := os.WriteFile(in, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write temp input: %w", err)
	}
	return n.ProbeFile(ctx, in)
}

// ProbeFile returns the duration of the file at path in seconds, rounded to two decimals.
func (n *Normalizer) ProbeFile(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	res, err := n.runner.Run(ctx, n.ffprobePath, args...)
	if err != nil {
		return 0, &CommandError{Command: n.ffprobePath, Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe duration %q: %w", strings.TrimSpace(res.Stdout), err)
	}
	return math.Round(secs*100) / 100, nil
}

func normalizeFormat(f string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(f)), ".")
}

// FormatOf returns the lower-case extension of name without the dot.
func FormatOf(name string) string {
	return normalizeFormat(filepath.Ext(name))
}
