package handler

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the web UI templates.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"formatTime": formatTime,
	}).ParseFS(templateFS, "templates/*.html"))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 02, 2006 15:04")
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderMarkdown converts a note to HTML. Raw HTML in the note is dropped.
func renderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
