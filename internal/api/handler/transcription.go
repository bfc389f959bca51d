package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/scribe/internal/service"
)

// TranscriptionHandler serves the JSON API over job records.
type TranscriptionHandler struct {
	transcriptions *service.TranscriptionService
}

// NewTranscriptionHandler creates a new transcription handler.
func NewTranscriptionHandler(transcriptions *service.TranscriptionService) *TranscriptionHandler {
	return &TranscriptionHandler{transcriptions: transcriptions}
}

// List handles GET /api/v1/transcriptions.
func (h *TranscriptionHandler) List(c *gin.Context) {
	recs, err := h.transcriptions.List(c.Request.Context())
	if err != nil {
		abortJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transcriptions": recs,
		"total":          len(recs),
	})
}

// Get handles GET /api/v1/transcriptions/:id.
func (h *TranscriptionHandler) Get(c *gin.Context) {
	rec, err := h.transcriptions.Get(c.Request.Context(), idFromParam(c.Param("id")))
	if err != nil {
		abortJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/transcriptions/:id.
func (h *TranscriptionHandler) Delete(c *gin.Context) {
	if err := h.transcriptions.Delete(c.Request.Context(), idFromParam(c.Param("id"))); err != nil {
		abortJSON(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerateMarkdown handles POST /api/v1/transcriptions/:id/markdown.
func (h *TranscriptionHandler) GenerateMarkdown(c *gin.Context) {
	res, err := h.transcriptions.GenerateMarkdown(c.Request.Context(), idFromParam(c.Param("id")))
	if err != nil {
		abortJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"markdown_file":  res.FileName,
		"markdown_title": res.Record.MarkdownTitle,
		"empty":          res.Empty,
		"transcription":  res.Record,
	})
}

// Events handles GET /api/v1/transcriptions/:id/events.
func (h *TranscriptionHandler) Events(c *gin.Context) {
	events, err := h.transcriptions.Events(c.Request.Context(), idFromParam(c.Param("id")))
	if err != nil {
		abortJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
