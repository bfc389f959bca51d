package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/scribe/internal/domain"
)

func TestHubBroadcastsUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	rec := &domain.Transcription{ID: "sample", Status: domain.StatusSuccess, MarkdownFile: "sample.md"}
	hub.Publish(rec)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Update
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "transcription_update", got.Type)
	assert.Equal(t, "sample", got.TranscriptionID)
	assert.Equal(t, domain.StatusSuccess, got.Status)
	assert.Equal(t, "sample.md", got.MarkdownFile)
}

func TestHubPublishWithoutRunnerDoesNotBlock(t *testing.T) {
	hub := NewHub()
	rec := &domain.Transcription{ID: "x", Status: domain.StatusProcessing}

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.Publish(rec)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked")
	}
}
