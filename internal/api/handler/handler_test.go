package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/scribe/internal/domain"
	"github.com/timmy/scribe/internal/service"
	"github.com/timmy/scribe/internal/store"
)

type stubNormalizer struct{}

func (stubNormalizer) NeedsConversion(format string) bool { return format == "m4a" }

func (stubNormalizer) Convert(ctx context.Context, data []byte, fromFormat string) ([]byte, error) {
	return []byte("RIFF"), nil
}

func (stubNormalizer) ProbeDuration(ctx context.Context, data []byte, format string) (float64, error) {
	return 3.5, nil
}

type stubEngine struct{ text string }

func (e stubEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return e.text, nil
}

type stubPolisher struct{ note *domain.Note }

func (p stubPolisher) Polish(ctx context.Context, transcript string) (*domain.Note, error) {
	return p.note, nil
}

type fixture struct {
	router   *gin.Engine
	svc      *service.TranscriptionService
	executor *service.Executor
	records  *store.FileStore
	notes    *store.MarkdownStore
}

func newFixture(t *testing.T, note *domain.Note) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()

	records, err := store.NewFileStore(filepath.Join(root, "transcriptions"))
	require.NoError(t, err)
	notes, err := store.NewMarkdownStore(filepath.Join(root, "markdowns"))
	require.NoError(t, err)

	pipeline := service.NewPipeline(service.PipelineDeps{
		Records:    records,
		Notes:      notes,
		Engine:     stubEngine{text: "hello there"},
		Polisher:   stubPolisher{note: note},
		AutoPolish: true,
	})
	executor := service.NewExecutor(1, 4, nil)
	svc, err := service.NewTranscriptionService(service.TranscriptionConfig{
		UploadDir:     filepath.Join(root, "uploads"),
		TranscriptDir: records.Dir(),
	}, service.TranscriptionDeps{
		Records:    records,
		Notes:      notes,
		Normalizer: stubNormalizer{},
		Pipeline:   pipeline,
		Executor:   executor,
	})
	require.NoError(t, err)

	r := gin.New()
	r.SetHTMLTemplate(Templates())
	upload := NewUploadHandler(svc)
	web := NewWebHandler(svc)
	api := NewTranscriptionHandler(svc)
	r.GET("/health", NewHealthHandler(svc).Health)
	r.POST("/upload-audio", upload.UploadAudio)
	r.GET("/", web.Index)
	r.GET("/view/:fname", web.View)
	r.GET("/download/:fname", web.DownloadJSON)
	r.GET("/download_md/:name", web.DownloadMarkdown)
	r.GET("/delete/:fname", web.Delete)
	r.GET("/generate_md/:fname", web.GenerateMarkdown)
	r.GET("/api/v1/transcriptions", api.List)
	r.GET("/api/v1/transcriptions/:id", api.Get)
	r.DELETE("/api/v1/transcriptions/:id", api.Delete)
	r.POST("/api/v1/transcriptions/:id/markdown", api.GenerateMarkdown)
	r.GET("/api/v1/transcriptions/:id/events", api.Events)

	return &fixture{router: r, svc: svc, executor: executor, records: records, notes: notes}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.executor.Shutdown(ctx))
}

func (f *fixture) seed(t *testing.T, rec *domain.Transcription) {
	t.Helper()
	require.NoError(t, f.records.Save(context.Background(), rec))
}

func uploadRequest(t *testing.T, filename string, data []byte, source string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "x"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-audio", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if source != "" {
		req.Header.Set("source", source)
	}
	return req
}

func successRecord(id string) *domain.Transcription {
	return &domain.Transcription{
		ID:               id,
		CreatedAt:        time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		OriginalFilename: id + ".wav",
		Status:           domain.StatusSuccess,
		Text:             domain.StringPtr("some words <b>bold</b>"),
		Source:           domain.UnknownSource,
	}
}

func TestUploadAudio(t *testing.T) {
	f := newFixture(t, &domain.Note{Markdown: "# Note", Title: "Note"})

	w := f.do(uploadRequest(t, "memo.wav", []byte("audio"), "watch"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp["status"])
	assert.Equal(t, "memo", resp["transcription_id"])
	assert.Equal(t, "Transcription started. Check the web UI for results.", resp["message"])

	f.drain(t)

	rec, err := f.records.Load(context.Background(), "memo")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, rec.Status)
	assert.Equal(t, "watch", rec.Source)
	assert.Equal(t, "hello there", rec.TranscriptText())
	assert.Equal(t, "memo.md", rec.MarkdownFile)
}

func TestUploadAudioWithoutFile(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(uploadRequest(t, "", nil, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"No file uploaded."}`, w.Body.String())
}

func TestUploadAudioRejectsHiddenName(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(uploadRequest(t, ".memo.wav", []byte("RIFF"), "phone"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ids, err := f.records.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestIndexListsRecordsAndPanel(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, successRecord("a_first"))
	rec := successRecord("b_second")
	rec.MarkdownFile = "b_second.md"
	rec.MarkdownTitle = "Second Title"
	f.seed(t, rec)
	require.NoError(t, f.notes.Write(context.Background(), "b_second.md", "# Heading\n\n<script>x</script>"))

	w := f.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Select a transcription")
	assert.Less(t, strings.Index(body, "b_second.wav"), strings.Index(body, "a_first.wav"))

	w = f.get("/?file=b_second.json")
	require.Equal(t, http.StatusOK, w.Code)
	body = w.Body.String()
	assert.Contains(t, body, "<h1>Heading</h1>")
	assert.NotContains(t, body, "<script>x</script>")
	assert.Contains(t, body, "Second Title")
	assert.Contains(t, body, "some words &lt;b&gt;bold&lt;/b&gt;")

	w = f.get("/?file=missing.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "File not found")
}

func TestViewAndDownload(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, successRecord("clip"))

	w := f.get("/view/clip.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clip.json")

	w = f.get("/download/clip.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clip.json")
	var rec domain.Transcription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, domain.StatusSuccess, rec.Status)

	assert.Equal(t, http.StatusNotFound, f.get("/view/nope.json").Code)
	assert.Equal(t, http.StatusNotFound, f.get("/download/nope.json").Code)
	assert.Equal(t, http.StatusNotFound, f.get("/download_md/nope.md").Code)
}

func TestDeleteRedirects(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, successRecord("gone"))

	w := f.get("/delete/gone.json")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	_, err := f.records.Load(context.Background(), "gone")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, f.get("/delete/gone.json").Code)
}

func TestGenerateMarkdownPage(t *testing.T) {
	f := newFixture(t, &domain.Note{Markdown: "# Polished", Title: "Polished", FileName: "polished.md"})
	f.seed(t, successRecord("talk"))

	w := f.get("/generate_md/talk.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Markdown generated and saved as polished.md.")

	w = f.get("/download_md/polished.md")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Equal(t, "# Polished", w.Body.String())

	rec, err := f.records.Load(context.Background(), "talk")
	require.NoError(t, err)
	assert.Equal(t, "polished.md", rec.MarkdownFile)
	assert.Equal(t, "Polished", rec.MarkdownTitle)
}

func TestGenerateMarkdownPageMessages(t *testing.T) {
	f := newFixture(t, &domain.Note{})
	noText := successRecord("silent")
	noText.Text = nil
	f.seed(t, noText)
	f.seed(t, successRecord("empty"))

	w := f.get("/generate_md/silent.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No transcript text found.")

	w = f.get("/generate_md/empty.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "LLM returned an empty response")

	assert.Equal(t, http.StatusNotFound, f.get("/generate_md/missing.json").Code)
}

func TestTranscriptionAPI(t *testing.T) {
	f := newFixture(t, &domain.Note{Markdown: "body", Title: "T"})
	f.seed(t, successRecord("one"))
	f.seed(t, successRecord("two"))

	w := f.get("/api/v1/transcriptions")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Transcriptions []domain.Transcription `json:"transcriptions"`
		Total          int                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "two", list.Transcriptions[0].ID)

	w = f.get("/api/v1/transcriptions/one")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, f.get("/api/v1/transcriptions/zzz").Code)

	w = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/transcriptions/one/markdown", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var gen map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gen))
	assert.Equal(t, "one.md", gen["markdown_file"])
	assert.Equal(t, "T", gen["markdown_title"])

	// events are disabled without a database
	assert.Equal(t, http.StatusNotImplemented, f.get("/api/v1/transcriptions/one/events").Code)

	w = f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/transcriptions/one", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, f.get("/api/v1/transcriptions/one").Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	w := f.get("/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","queue_depth":0}`, w.Body.String())
}
