package handler

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/timmy/scribe/internal/api/middleware"
	"github.com/timmy/scribe/internal/domain"
	"github.com/timmy/scribe/internal/service"
	"github.com/timmy/scribe/internal/store"
)

// WebHandler serves the HTML interface. Every page re-reads the records
// from disk; only delete and generate_md change anything.
type WebHandler struct {
	transcriptions *service.TranscriptionService
}

// NewWebHandler creates a new web handler.
func NewWebHandler(transcriptions *service.TranscriptionService) *WebHandler {
	return &WebHandler{transcriptions: transcriptions}
}

type listItem struct {
	FileName string
	Record   *domain.Transcription
	Active   bool
}

type panelView struct {
	FileName     string
	Record       *domain.Transcription
	MarkdownHTML template.HTML
}

type messageView struct {
	Message      string
	MarkdownFile string
	Back         string
}

// Index handles GET /. The query parameter "file" selects the record shown
// in the right-hand panel.
func (h *WebHandler) Index(c *gin.Context) {
	ctx := c.Request.Context()
	selected := c.Query("file")

	recs, err := h.transcriptions.List(ctx)
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Failed to list transcriptions: %v", err)
		return
	}

	items := lo.Map(recs, func(r *domain.Transcription, _ int) listItem {
		name := fileNameOf(r.ID)
		return listItem{FileName: name, Record: r, Active: name == selected}
	})

	var panel *panelView
	if selected != "" {
		panel = h.panel(c, selected)
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Items": items,
		"Panel": panel,
	})
}

func (h *WebHandler) panel(c *gin.Context, fname string) *panelView {
	ctx := c.Request.Context()
	view := &panelView{FileName: fname}

	rec, err := h.transcriptions.Get(ctx, idFromParam(fname))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrInvalidID) {
			middleware.GetLogger(c).WithError(err).Warnf("Failed to load %s", fname)
		}
		return view
	}
	view.Record = rec

	if rec.Status == domain.StatusSuccess && rec.HasMarkdown() {
		content, err := h.transcriptions.Markdown(ctx, rec.MarkdownFile)
		if err != nil {
			middleware.GetLogger(c).WithError(err).Warnf("Failed to read markdown %s", rec.MarkdownFile)
			return view
		}
		rendered, err := renderMarkdown(content)
		if err != nil {
			middleware.GetLogger(c).WithError(err).Warnf("Failed to render markdown %s", rec.MarkdownFile)
			return view
		}
		view.MarkdownHTML = rendered
	}
	return view
}

// View handles GET /view/:fname.
func (h *WebHandler) View(c *gin.Context) {
	fname := c.Param("fname")
	rec, err := h.transcriptions.Get(c.Request.Context(), idFromParam(fname))
	if err != nil {
		h.notFoundOr(c, err)
		return
	}
	c.HTML(http.StatusOK, "view.html", gin.H{"FileName": fname, "Record": rec})
}

// DownloadJSON handles GET /download/:fname and serves the raw record file.
func (h *WebHandler) DownloadJSON(c *gin.Context) {
	id := idFromParam(c.Param("fname"))
	path, err := h.transcriptions.RecordPath(c.Request.Context(), id)
	if err != nil {
		h.notFoundOr(c, err)
		return
	}
	c.Header("Content-Type", "application/json")
	c.FileAttachment(path, fileNameOf(id))
}

// DownloadMarkdown handles GET /download_md/:name. A note missing on disk
// is served from the object-storage mirror when one is configured.
func (h *WebHandler) DownloadMarkdown(c *gin.Context) {
	name := c.Param("name")
	path, err := h.transcriptions.MarkdownPath(name)
	if errors.Is(err, store.ErrNotFound) {
		data, mirrorErr := h.transcriptions.MirroredMarkdown(c.Request.Context(), name)
		if mirrorErr != nil {
			h.notFoundOr(c, mirrorErr)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", data)
		return
	}
	if err != nil {
		h.notFoundOr(c, err)
		return
	}
	c.Header("Content-Type", "text/markdown; charset=utf-8")
	c.FileAttachment(path, name)
}

// Delete handles GET /delete/:fname and redirects back to the index.
func (h *WebHandler) Delete(c *gin.Context) {
	if err := h.transcriptions.Delete(c.Request.Context(), idFromParam(c.Param("fname"))); err != nil {
		h.notFoundOr(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// GenerateMarkdown handles GET /generate_md/:fname. Failures are shown to
// the user as a message page.
func (h *WebHandler) GenerateMarkdown(c *gin.Context) {
	fname := c.Param("fname")
	id := idFromParam(fname)
	back := "/?file=" + fileNameOf(id)

	res, err := h.transcriptions.GenerateMarkdown(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		var msg string
		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidID):
			c.String(http.StatusNotFound, "Not found")
			return
		case errors.Is(err, service.ErrNoTranscript):
			msg = "No transcript text found."
		case errors.Is(err, service.ErrEmptyNote):
			msg = "Error: LLM returned an empty response. Check your polisher model and prompt configuration."
		default:
			msg = fmt.Sprintf("Error generating markdown: %v", err)
		}
		c.HTML(http.StatusOK, "message.html", messageView{Message: msg, Back: back})
		return
	}

	msg := fmt.Sprintf("Markdown generated and saved as %s.", res.FileName)
	if res.Empty {
		msg = "Warning: Markdown is empty. Check the server log for the LLM response."
	}
	c.HTML(http.StatusOK, "message.html", messageView{Message: msg, MarkdownFile: res.FileName, Back: back})
}

func (h *WebHandler) notFoundOr(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	if status == http.StatusBadRequest {
		status = http.StatusNotFound
	}
	if status == http.StatusNotFound {
		c.String(status, "Not found")
		return
	}
	c.String(status, err.Error())
}
