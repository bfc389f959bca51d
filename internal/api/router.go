package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/scribe/internal/api/handler"
	"github.com/timmy/scribe/internal/api/middleware"
	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/logger"
	"github.com/timmy/scribe/internal/metrics"
	"github.com/timmy/scribe/internal/notify"
	"github.com/timmy/scribe/internal/service"
)

// RouterDeps groups what the router needs beyond configuration.
// Hub and Metrics may be nil.
type RouterDeps struct {
	Transcriptions *service.TranscriptionService
	Hub            *notify.Hub
	Metrics        *metrics.Metrics
	MetricsPath    string
	Logger         *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg config.ServerConfig, deps RouterDeps) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	r := gin.New()
	if cfg.MaxUploadMB > 0 {
		r.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20
	}

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}

	r.SetHTMLTemplate(handler.Templates())

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.Transcriptions)
	uploadHandler := handler.NewUploadHandler(deps.Transcriptions)
	webHandler := handler.NewWebHandler(deps.Transcriptions)
	transcriptionHandler := handler.NewTranscriptionHandler(deps.Transcriptions)

	// Health check
	r.GET("/health", healthHandler.Health)
	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.Hub != nil {
		r.GET("/ws", gin.WrapF(deps.Hub.ServeWS))
	}

	// Ingestion
	r.POST("/upload-audio", uploadHandler.UploadAudio)

	// Web UI
	r.GET("/", webHandler.Index)
	r.GET("/view/:fname", webHandler.View)
	r.GET("/download/:fname", webHandler.DownloadJSON)
	r.GET("/download_md/:name", webHandler.DownloadMarkdown)
	r.GET("/delete/:fname", webHandler.Delete)
	r.GET("/generate_md/:fname", webHandler.GenerateMarkdown)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/transcriptions", transcriptionHandler.List)
		v1.GET("/transcriptions/:id", transcriptionHandler.Get)
		v1.DELETE("/transcriptions/:id", transcriptionHandler.Delete)
		v1.POST("/transcriptions/:id/markdown", transcriptionHandler.GenerateMarkdown)
		v1.GET("/transcriptions/:id/events", transcriptionHandler.Events)
	}

	return r
}
