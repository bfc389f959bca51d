// Package app wires the transcription pipeline from configuration. Both the
// API server and the scribectl command build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/logger"
	"github.com/timmy/scribe/internal/media"
	"github.com/timmy/scribe/internal/metrics"
	"github.com/timmy/scribe/internal/notify"
	"github.com/timmy/scribe/internal/polisher"
	"github.com/timmy/scribe/internal/repository"
	"github.com/timmy/scribe/internal/service"
	"github.com/timmy/scribe/internal/storage"
	"github.com/timmy/scribe/internal/store"
	"github.com/timmy/scribe/internal/transcriber"
	"gorm.io/gorm"
)

// Options selects the optional parts of the wiring.
type Options struct {
	// Notify starts a websocket hub for status updates.
	Notify bool
	// Workers overrides cfg.Pipeline.Workers when positive.
	Workers int
}

// App holds the wired components.
type App struct {
	Config         *config.Config
	Records        *store.FileStore
	Notes          *store.MarkdownStore
	Pipeline       *service.Pipeline
	Executor       *service.Executor
	Transcriptions *service.TranscriptionService
	Hub            *notify.Hub
	Metrics        *metrics.Metrics

	db      *gorm.DB
	stopHub context.CancelFunc
}

// Build creates every component described by cfg. The executor is
// started; callers must call Close to drain it.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	var err error
	if a.Records, err = store.NewFileStore(cfg.Paths.TranscriptionsDir); err != nil {
		return nil, err
	}
	if a.Notes, err = store.NewMarkdownStore(cfg.Paths.MarkdownsDir); err != nil {
		return nil, err
	}

	pol, err := polisher.New(cfg.Polisher)
	if err != nil {
		return nil, fmt.Errorf("failed to create polisher: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
	}

	var events service.EventStore
	if cfg.Database.Enabled {
		a.db, err = repository.InitDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		events = repository.NewEventRepository(a.db)
		logger.Info("Event log enabled: driver=%s", cfg.Database.Driver)
	}

	var mirror *storage.Mirror
	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewStorage(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		if ensurer, ok := objectStorage.(storage.BucketEnsurer); ok {
			if err := ensurer.EnsureBucket(ctx); err != nil {
				return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
			}
		}
		mirror = storage.NewMirror(objectStorage)
		logger.Info("Artifact mirror enabled: type=%s, bucket=%s", cfg.Storage.Type, cfg.Storage.Bucket)
	}

	engine := transcriber.NewWhisperCPP(cfg.Whisper)
	deps := service.PipelineDeps{
		Records:    a.Records,
		Notes:      a.Notes,
		Engine:     engine,
		Polisher:   pol,
		AutoPolish: cfg.Polisher.Auto,
		Events:     events,
		Mirror:     mirror,
		Metrics:    a.Metrics,
	}
	if opts.Notify {
		a.Hub = notify.NewHub()
		hubCtx, cancel := context.WithCancel(logger.Detach(ctx))
		a.stopHub = cancel
		go a.Hub.Run(hubCtx)
		deps.Publisher = a.Hub
	}
	a.Pipeline = service.NewPipeline(deps)

	workers := cfg.Pipeline.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	a.Executor = service.NewExecutor(workers, cfg.Pipeline.QueueSize, a.Metrics)

	a.Transcriptions, err = service.NewTranscriptionService(service.TranscriptionConfig{
		UploadDir:     cfg.Paths.UploadDir,
		TranscriptDir: cfg.Whisper.OutputDir,
		EngineModel:   engine.ModelPath(),
		EngineArgs:    engine.ExtraArgs(),
	}, service.TranscriptionDeps{
		Records:    a.Records,
		Notes:      a.Notes,
		Normalizer: media.NewNormalizer(cfg.Media),
		Pipeline:   a.Pipeline,
		Executor:   a.Executor,
		Events:     events,
		Mirror:     mirror,
		Metrics:    a.Metrics,
	})
	if err != nil {
		return nil, err
	}

	a.Executor.Start()
	return a, nil
}

// Close drains queued transcriptions and releases the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Executor.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("executor: %w", err))
	}
	if a.stopHub != nil {
		a.stopHub()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
