package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/scribe/internal/service"
)

// UploadHandler accepts audio uploads.
type UploadHandler struct {
	transcriptions *service.TranscriptionService
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(transcriptions *service.TranscriptionService) *UploadHandler {
	return &UploadHandler{transcriptions: transcriptions}
}

// UploadAudio handles POST /upload-audio.
// The multipart field is "file"; an optional "source" header tags the recording.
func (h *UploadHandler) UploadAudio(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil || fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No file uploaded."})
		return
	}

	f, err := fh.Open()
	if err != nil {
		abortJSON(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		abortJSON(c, err)
		return
	}

	rec, err := h.transcriptions.Ingest(c.Request.Context(), service.Upload{
		Filename: fh.Filename,
		Data:     data,
		Source:   c.GetHeader("source"),
	})
	if err != nil {
		if errors.Is(err, service.ErrNoFile) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "No file uploaded."})
			return
		}
		_ = c.Error(err)
		body := gin.H{"error": err.Error()}
		if rec != nil {
			body["transcription_id"] = rec.ID
			body["status"] = rec.Status
		}
		c.JSON(statusFor(err), body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           rec.Status,
		"message":          "Transcription started. Check the web UI for results.",
		"transcription_id": rec.ID,
	})
}
