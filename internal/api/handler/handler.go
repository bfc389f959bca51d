package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/scribe/internal/logger"
	"github.com/timmy/scribe/internal/service"
	"github.com/timmy/scribe/internal/store"
)

// idFromParam accepts either "<id>.json" or a bare id.
func idFromParam(param string) string {
	return store.IDFromFileName(param)
}

// fileNameOf is the UI's name for a record.
func fileNameOf(id string) string {
	return store.FileName(id)
}

// statusFor maps service and store errors to HTTP status codes.
func statusFor(err error) int {
	var normErr *service.NormalizationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidID), errors.Is(err, service.ErrNoFile):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoTranscript), errors.Is(err, service.ErrNotTranscribed):
		return http.StatusConflict
	case errors.As(err, &normErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrEmptyNote):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrExecutorClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrEventsDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func abortJSON(c *gin.Context, err error) {
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if id := logger.GetRequestID(c.Request.Context()); id != "" {
		body["request_id"] = id
	}
	c.JSON(statusFor(err), body)
}
