package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/timmy/scribe/internal/domain"
	"github.com/timmy/scribe/internal/logger"
	"github.com/timmy/scribe/internal/media"
	"github.com/timmy/scribe/internal/metrics"
	"github.com/timmy/scribe/internal/storage"
	"github.com/timmy/scribe/internal/store"
)

var (
	// ErrNoFile is returned when an upload carries no file name.
	ErrNoFile = errors.New("no file uploaded")

	// ErrEventsDisabled is returned when the event log is not configured.
	ErrEventsDisabled = errors.New("event log is disabled")
)

// NormalizationError reports a failed duration probe or format conversion
// during ingest. No record exists when it is returned.
type NormalizationError struct {
	Stage string // probe, convert
	Err   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("audio %s failed: %v", e.Stage, e.Err)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// Upload is one file handed to Ingest.
type Upload struct {
	Filename string
	Data     []byte
	Source   string
}

// Normalizer is the subset of media.Normalizer used by ingest.
type Normalizer interface {
	NeedsConversion(format string) bool
	Convert(ctx context.Context, data []byte, fromFormat string) ([]byte, error)
	ProbeDuration(ctx context.Context, data []byte, format string) (float64, error)
}

// EventStore reads and writes the transition log.
type EventStore interface {
	EventRecorder
	ListByTranscription(ctx context.Context, transcriptionID string) ([]domain.TranscriptionEvent, error)
	CountByStatus(ctx context.Context) (map[domain.TranscriptionStatus]int64, error)
}

// TranscriptionConfig holds the paths and engine settings used by ingest.
type TranscriptionConfig struct {
	UploadDir string
	// TranscriptDir holds the <id>.txt files written by the engine.
	TranscriptDir string
	EngineModel   string
	EngineArgs    string
}

// TranscriptionService accepts uploads and serves job records.
type TranscriptionService struct {
	cfg        TranscriptionConfig
	records    *store.FileStore
	notes      *store.MarkdownStore
	normalizer Normalizer
	pipeline   *Pipeline
	executor   *Executor
	events     EventStore
	mirror     *storage.Mirror
	metrics    *metrics.Metrics
	now        func() time.Time
}

// TranscriptionDeps wires the service. Events, Mirror and Metrics are optional.
type TranscriptionDeps struct {
	Records    *store.FileStore
	Notes      *store.MarkdownStore
	Normalizer Normalizer
	Pipeline   *Pipeline
	Executor   *Executor
	Events     EventStore
	Mirror     *storage.Mirror
	Metrics    *metrics.Metrics
}

// NewTranscriptionService creates the service and its upload directory.
func NewTranscriptionService(cfg TranscriptionConfig, deps TranscriptionDeps) (*TranscriptionService, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &TranscriptionService{
		cfg:        cfg,
		records:    deps.Records,
		notes:      deps.Notes,
		normalizer: deps.Normalizer,
		pipeline:   deps.Pipeline,
		executor:   deps.Executor,
		events:     deps.Events,
		mirror:     deps.Mirror,
		metrics:    deps.Metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Ingest archives the upload, normalizes it, creates the record with
// status processing and schedules the pipeline. The record is returned
// as created. If the queue is full the record is marked as failed and
// returned together with ErrQueueFull.
func (s *TranscriptionService) Ingest(ctx context.Context, up Upload) (*domain.Transcription, error) {
	start := time.Now()
	if strings.TrimSpace(up.Filename) == "" {
		return nil, ErrNoFile
	}
	filename := filepath.Base(strings.ReplaceAll(up.Filename, `\`, "/"))
	format := media.FormatOf(filename)
	id := strings.TrimSuffix(filename, filepath.Ext(filename))
	if err := store.ValidateID(id); err != nil {
		return nil, err
	}

	ctx = logger.SetTranscriptionID(ctx, id)
	log := logger.FromContext(ctx)

	duration, err := s.normalizer.ProbeDuration(ctx, up.Data, format)
	if err != nil {
		return nil, &NormalizationError{Stage: "probe", Err: err}
	}

	originalPath := filepath.Join(s.cfg.UploadDir, filename)
	if err := os.WriteFile(originalPath, up.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to archive upload: %w", err)
	}

	wavPath := originalPath
	if s.normalizer.NeedsConversion(format) {
		wav, err := s.normalizer.Convert(ctx, up.Data, format)
		if err != nil {
			return nil, &NormalizationError{Stage: "convert", Err: err}
		}
		wavPath = filepath.Join(s.cfg.UploadDir, id+".wav")
		if err := os.WriteFile(wavPath, wav, 0644); err != nil {
			return nil, fmt.Errorf("failed to write waveform: %w", err)
		}
	}

	rec := &domain.Transcription{
		ID:               id,
		CreatedAt:        s.now(),
		Source:           lo.Ternary(strings.TrimSpace(up.Source) != "", up.Source, domain.UnknownSource),
		OriginalFilename: filename,
		AudioLengthSec:   duration,
		FileSize:         int64(len(up.Data)),
		WhisperModel:     s.cfg.EngineModel,
		WhisperArgs:      s.cfg.EngineArgs,
		Status:           domain.StatusProcessing,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.metrics.ObserveUpload(format)
	s.pipeline.recordEvent(ctx, id, domain.StageIngest, rec.Status, filename, start)
	s.pipeline.publish(rec)

	job := Job{ID: id, WavPath: wavPath, OriginalPath: originalPath}
	err = s.executor.Submit(ctx, "transcribe:"+id, func(ctx context.Context) {
		s.mirror.MirrorFile(ctx, storage.PrefixOriginals, job.OriginalPath)
		s.pipeline.Run(ctx, job)
	})
	if err != nil {
		log.WithError(err).Error("Failed to schedule transcription")
		return s.failScheduling(ctx, rec, job, err)
	}

	log.WithFields(logger.Fields{
		logger.FieldSource: rec.Source,
		logger.FieldSize:   rec.FileSize,
		"audio_length_sec": rec.AudioLengthSec,
		"converted":        wavPath != originalPath,
	}).Info("Transcription started")

	return rec, nil
}

func (s *TranscriptionService) failScheduling(ctx context.Context, rec *domain.Transcription, job Job, cause error) (*domain.Transcription, error) {
	s.pipeline.removeWaveform(ctx, job)
	rec.MarkError(fmt.Sprintf("failed to schedule transcription: %v", cause), nil)
	if err := s.records.Save(ctx, rec); err != nil {
		return nil, errors.Join(cause, err)
	}
	s.metrics.ObserveTranscription(string(rec.Status))
	s.pipeline.recordEvent(ctx, rec.ID, domain.StageTranscribe, rec.Status, rec.ErrorDetail(), time.Time{})
	s.pipeline.publish(rec)
	return rec, cause
}

// Get loads one record.
func (s *TranscriptionService) Get(ctx context.Context, id string) (*domain.Transcription, error) {
	return s.records.Load(ctx, id)
}

// List loads every record, newest first. Unreadable files are skipped.
func (s *TranscriptionService) List(ctx context.Context) ([]*domain.Transcription, error) {
	ids, err := s.records.List(ctx)
	if err != nil {
		return nil, err
	}
	recs := make([]*domain.Transcription, 0, len(ids))
	for _, id := range ids {
		rec, err := s.records.Load(ctx, id)
		if err != nil {
			logger.CtxWarn(ctx, "Skipping unreadable record %s: %v", id, err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// RecordPath returns the on-disk path of a record for raw download.
func (s *TranscriptionService) RecordPath(ctx context.Context, id string) (string, error) {
	ok, err := s.records.Exists(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", store.ErrNotFound
	}
	return s.records.Path(id)
}

// Delete removes the record and the engine's .txt output. The generated
// markdown note is left in place.
func (s *TranscriptionService) Delete(ctx context.Context, id string) error {
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}

	txtPath := filepath.Join(s.cfg.TranscriptDir, id+".txt")
	if err := os.Remove(txtPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.CtxWarn(ctx, "Failed to remove transcript file %s: %v", txtPath, err)
	}

	s.pipeline.recordEvent(ctx, id, domain.StageDelete, "", "", time.Time{})
	logger.FromContext(ctx).WithField(logger.FieldTranscriptionID, id).Info("Transcription deleted")
	return nil
}

// GenerateMarkdown regenerates the note for id on demand.
func (s *TranscriptionService) GenerateMarkdown(ctx context.Context, id string) (*PolishResult, error) {
	return s.pipeline.Regenerate(ctx, id)
}

// Markdown returns the content of a generated note.
func (s *TranscriptionService) Markdown(ctx context.Context, name string) (string, error) {
	return s.notes.Read(ctx, name)
}

// MarkdownPath returns the on-disk path of a generated note.
func (s *TranscriptionService) MarkdownPath(name string) (string, error) {
	if !s.notes.Exists(name) {
		if err := store.ValidateID(name); err != nil {
			return "", err
		}
		return "", store.ErrNotFound
	}
	return s.notes.Path(name)
}

// MirroredMarkdown reads a note back from object storage when the local
// copy is gone. It reports store.ErrNotFound when the mirror has none.
func (s *TranscriptionService) MirroredMarkdown(ctx context.Context, name string) ([]byte, error) {
	if err := store.ValidateID(name); err != nil {
		return nil, err
	}
	data, err := s.mirror.Fetch(ctx, storage.PrefixMarkdowns, name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	logger.CtxInfo(ctx, "Served %s from object storage", name)
	return data, nil
}

// Events returns the transition log for id, oldest first.
func (s *TranscriptionService) Events(ctx context.Context, id string) ([]domain.TranscriptionEvent, error) {
	if s.events == nil {
		return nil, ErrEventsDisabled
	}
	if err := store.ValidateID(id); err != nil {
		return nil, err
	}
	return s.events.ListByTranscription(ctx, id)
}

// OutcomeCounts returns how many transcriptions ended in each status,
// according to the event log.
func (s *TranscriptionService) OutcomeCounts(ctx context.Context) (map[domain.TranscriptionStatus]int64, error) {
	if s.events == nil {
		return nil, ErrEventsDisabled
	}
	return s.events.CountByStatus(ctx)
}

// QueueDepth returns the number of tasks waiting for a worker.
func (s *TranscriptionService) QueueDepth() int {
	return s.executor.Pending()
}
