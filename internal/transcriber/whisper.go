package transcriber

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/logger"
	"github.com/timmy/scribe/internal/media"
)

// WhisperCPP runs the whisper.cpp CLI and reads the .txt file it writes.
type WhisperCPP struct {
	exePath   string
	modelPath string
	extraArgs string
	outputDir string
	runner    media.Runner
	readFile  func(name string) ([]byte, error)
}

// NewWhisperCPP builds the engine from the whisper config section.
func NewWhisperCPP(cfg config.WhisperConfig) *WhisperCPP {
	return &WhisperCPP{
		exePath:   expandHome(cfg.ExePath),
		modelPath: expandHome(cfg.ModelPath),
		extraArgs: cfg.ExtraArgs,
		outputDir: cfg.OutputDir,
		runner:    media.ExecRunner{},
		readFile:  os.ReadFile,
	}
}

// WithRunner replaces the process runner. Used by tests.
func (w *WhisperCPP) WithRunner(r media.Runner) *WhisperCPP {
	w.runner = r
	return w
}

// ModelPath returns the resolved model path recorded on each job.
func (w *WhisperCPP) ModelPath() string {
	return w.modelPath
}

// ExtraArgs returns the raw extra argument string recorded on each job.
func (w *WhisperCPP) ExtraArgs() string {
	return w.extraArgs
}

// Args builds the command line for audioPath, writing to <output_dir>/<base>.txt.
func (w *WhisperCPP) Args(audioPath string) (args []string, txtPath string) {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	outBase := filepath.Join(w.outputDir, base)
	args = []string{"-m", w.modelPath, "-f", audioPath, "-otxt", "-of", outBase}
	args = append(args, strings.Fields(w.extraArgs)...)
	return args, outBase + ".txt"
}

// Transcribe implements Engine.
func (w *WhisperCPP) Transcribe(ctx context.Context, audioPath string) (string, error) {
	args, txtPath := w.Args(audioPath)
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "whisper")
	log.Infof("Running whisper.cpp: %s %s", w.exePath, strings.Join(args, " "))

	res, err := w.runner.Run(ctx, w.exePath, args...)
	if err != nil {
		log.WithError(err).Errorf("whisper.cpp failed: %s", strings.TrimSpace(res.Stderr))
		return "", &EngineError{Command: w.exePath, Stderr: res.Stderr, Err: err}
	}
	log.Debugf("whisper.cpp stdout: %s", res.Stdout)

	data, err := w.readFile(txtPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Errorf("No transcript file found at %s", txtPath)
			return "", ErrNoOutput
		}
		return "", fmt.Errorf("failed to read transcript %s: %w", txtPath, err)
	}
	return string(data), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
