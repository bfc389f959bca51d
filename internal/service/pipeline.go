package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/timmy/scribe/internal/domain"
	"github.com/timmy/scribe/internal/logger"
	"github.com/timmy/scribe/internal/metrics"
	"github.com/timmy/scribe/internal/notify"
	"github.com/timmy/scribe/internal/polisher"
	"github.com/timmy/scribe/internal/storage"
	"github.com/timmy/scribe/internal/store"
	"github.com/timmy/scribe/internal/transcriber"
)

var (
	// ErrNoTranscript is returned when a note is requested for a record without transcript text.
	ErrNoTranscript = errors.New("no transcript text found")

	// ErrEmptyNote is returned when the polisher answers with nothing usable.
	ErrEmptyNote = errors.New("polisher returned an empty response")

	// ErrNotTranscribed is returned by Polish for records whose status is not success.
	ErrNotTranscribed = errors.New("transcription has not succeeded")
)

// Job is the immutable input of one background pipeline run.
type Job struct {
	ID           string
	WavPath      string
	OriginalPath string
}

// EventRecorder persists pipeline transition events.
type EventRecorder interface {
	Record(ctx context.Context, event *domain.TranscriptionEvent) error
}

// PolishResult describes a generated note.
type PolishResult struct {
	Record   *domain.Transcription
	Note     *domain.Note
	FileName string
	// Empty is set when the note was written without any markdown content.
	Empty bool
}

// PipelineDeps wires the pipeline's collaborators. Events, Publisher,
// Mirror and Metrics are optional.
type PipelineDeps struct {
	Records    *store.FileStore
	Notes      *store.MarkdownStore
	Engine     transcriber.Engine
	Polisher   polisher.Polisher
	AutoPolish bool

	Events    EventRecorder
	Publisher notify.Publisher
	Mirror    *storage.Mirror
	Metrics   *metrics.Metrics
}

// Pipeline drives one job record from processing to a terminal state.
type Pipeline struct {
	records    *store.FileStore
	notes      *store.MarkdownStore
	engine     transcriber.Engine
	polisher   polisher.Polisher
	autoPolish bool

	events    EventRecorder
	publisher notify.Publisher
	mirror    *storage.Mirror
	metrics   *metrics.Metrics
}

// NewPipeline creates a pipeline from deps.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		records:    deps.Records,
		notes:      deps.Notes,
		engine:     deps.Engine,
		polisher:   deps.Polisher,
		autoPolish: deps.AutoPolish,
		events:     deps.Events,
		publisher:  deps.Publisher,
		mirror:     deps.Mirror,
		metrics:    deps.Metrics,
	}
}

// Run transcribes the job and, when that succeeds, polishes it. Errors are
// written to the record or logged; nothing is returned to the caller.
func (p *Pipeline) Run(ctx context.Context, job Job) {
	ctx = logger.SetTranscriptionID(ctx, job.ID)

	rec, err := p.Transcribe(ctx, job)
	if err != nil {
		logger.CtxError(ctx, "Transcription run aborted: %v", err)
		return
	}
	if rec.Status != domain.StatusSuccess {
		return
	}
	if !p.autoPolish || p.polisher == nil {
		logger.CtxDebug(ctx, "Automatic polishing disabled; skipping note generation")
		return
	}

	if _, err := p.Polish(ctx, job.ID); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Note generation failed; transcript kept")
	}
}

// Transcribe runs the engine on the job's waveform and persists the outcome.
// The returned error reports only store failures; engine failures are
// recorded on the returned record.
func (p *Pipeline) Transcribe(ctx context.Context, job Job) (*domain.Transcription, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	text, engineErr := p.engine.Transcribe(ctx, job.WavPath)
	p.removeWaveform(ctx, job)

	rec, err := p.records.Load(ctx, job.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warnf("Record %s was deleted while transcribing; dropping result", job.ID)
		}
		return nil, fmt.Errorf("failed to load record %s: %w", job.ID, err)
	}

	applyTranscription(rec, text, engineErr)

	if err := p.records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save record %s: %w", job.ID, err)
	}

	p.metrics.ObserveStage(string(domain.StageTranscribe), start)
	p.metrics.ObserveTranscription(string(rec.Status))
	p.recordEvent(ctx, rec.ID, domain.StageTranscribe, rec.Status, rec.ErrorDetail(), start)
	p.publish(rec)

	logger.With(logger.Fields{
		logger.FieldStatus: string(rec.Status),
		logger.FieldSize:   len(rec.TranscriptText()),
	}).WithDuration(start).Info(ctx, "Transcription finished")

	return rec, nil
}

// applyTranscription sets status, text and error from one engine result.
func applyTranscription(rec *domain.Transcription, text string, engineErr error) {
	switch {
	case engineErr != nil:
		rec.MarkError(engineErr.Error(), transcriber.Sentinel(engineErr))
	case strings.TrimSpace(text) == "":
		rec.MarkError(transcriber.ErrNoOutput.Error(), nil)
	case transcriber.IsSentinel(text):
		rec.MarkError(strings.TrimSpace(text), domain.StringPtr(text))
	default:
		rec.MarkSuccess(text)
	}
}

func (p *Pipeline) removeWaveform(ctx context.Context, job Job) {
	if job.WavPath == "" || job.WavPath == job.OriginalPath {
		return
	}
	if err := os.Remove(job.WavPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.CtxWarn(ctx, "Failed to remove waveform %s: %v", job.WavPath, err)
	}
}

// Polish generates the note for a successfully transcribed record.
func (p *Pipeline) Polish(ctx context.Context, id string) (*PolishResult, error) {
	rec, err := p.records.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.StatusSuccess {
		return nil, ErrNotTranscribed
	}
	return p.polish(ctx, rec, domain.StagePolish)
}

// Regenerate generates a note on demand for any record with transcript
// text, regardless of status. Errors are returned to the caller.
func (p *Pipeline) Regenerate(ctx context.Context, id string) (*PolishResult, error) {
	ctx = logger.SetTranscriptionID(ctx, id)
	rec, err := p.records.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.polish(ctx, rec, domain.StageRegenerate)
}

func (p *Pipeline) polish(ctx context.Context, rec *domain.Transcription, stage domain.EventStage) (res *PolishResult, err error) {
	start := time.Now()
	defer func() {
		result := "success"
		switch {
		case err != nil:
			result = "error"
			p.recordEvent(ctx, rec.ID, stage, domain.StatusError, err.Error(), start)
		case res.Empty:
			result = "empty"
			p.recordEvent(ctx, rec.ID, stage, rec.Status, "markdown is empty", start)
		default:
			p.recordEvent(ctx, rec.ID, stage, rec.Status, res.FileName, start)
		}
		p.metrics.ObservePolish(result)
		p.metrics.ObserveStage(string(stage), start)
	}()

	if p.polisher == nil {
		return nil, errors.New("no polisher configured")
	}
	if !rec.HasTranscript() || transcriber.IsSentinel(rec.TranscriptText()) {
		return nil, ErrNoTranscript
	}

	note, err := p.polisher.Polish(ctx, rec.TranscriptText())
	if err != nil {
		return nil, fmt.Errorf("failed to polish transcript: %w", err)
	}
	if note == nil || note.IsEmpty() {
		return nil, ErrEmptyNote
	}

	name := store.NoteFileName(note.FileName, rec.ID)
	if err := p.notes.Write(ctx, name, note.Markdown); err != nil {
		return nil, err
	}
	p.mirror.MirrorContent(ctx, storage.PrefixMarkdowns, name, []byte(note.Markdown))

	rec.MarkdownFile = name
	if note.Title != "" {
		rec.MarkdownTitle = note.Title
	}
	if err := p.records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save record %s: %w", rec.ID, err)
	}
	p.publish(rec)

	res = &PolishResult{
		Record:   rec,
		Note:     note,
		FileName: name,
		Empty:    strings.TrimSpace(note.Markdown) == "",
	}

	entry := logger.With(logger.Fields{"markdown_file": name}).WithDuration(start)
	if res.Empty {
		entry.Warn(ctx, "Markdown is empty")
	} else {
		entry.Info(ctx, "Markdown generated")
	}
	return res, nil
}

func (p *Pipeline) recordEvent(ctx context.Context, id string, stage domain.EventStage, status domain.TranscriptionStatus, detail string, start time.Time) {
	if p.events == nil {
		return
	}
	event := &domain.TranscriptionEvent{
		TranscriptionID: id,
		Stage:           stage,
		Status:          status,
		Detail:          detail,
	}
	if !start.IsZero() {
		event.DurationMs = time.Since(start).Milliseconds()
	}
	if err := p.events.Record(ctx, event); err != nil {
		logger.CtxWarn(ctx, "Failed to record %s event: %v", stage, err)
	}
}

func (p *Pipeline) publish(rec *domain.Transcription) {
	if p.publisher != nil {
		p.publisher.Publish(rec)
	}
}
