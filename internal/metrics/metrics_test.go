package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveUpload("m4a")
	m.ObserveUpload("m4a")
	m.ObserveTranscription("success")
	m.ObservePolish("error")
	m.SetQueueDepth(3)
	m.ObserveStage("transcribe", time.Now().Add(-time.Second))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.uploads.WithLabelValues("m4a")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transcriptions.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.polish.WithLabelValues("error")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.queueDepth))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpload("wav")
		m.ObserveTranscription("error")
		m.ObservePolish("success")
		m.ObserveStage("polish", time.Now())
		m.SetQueueDepth(1)
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/view/:fname", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/view/a.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("/view/:fname", "GET", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scribe_http_requests_total")
}
