package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/scribe/internal/api/middleware"
	"github.com/timmy/scribe/internal/service"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	transcriptions *service.TranscriptionService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(transcriptions *service.TranscriptionService) *HealthHandler {
	return &HealthHandler{transcriptions: transcriptions}
}

// Health returns the health status of the service. Outcome counts are
// included when the event log is enabled.
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":      "ok",
		"queue_depth": h.transcriptions.QueueDepth(),
	}

	counts, err := h.transcriptions.OutcomeCounts(c.Request.Context())
	switch {
	case err == nil:
		body["transcriptions"] = counts
	case !errors.Is(err, service.ErrEventsDisabled):
		middleware.GetLogger(c).WithError(err).Warn("Failed to count transcription outcomes")
	}

	c.JSON(http.StatusOK, body)
}
