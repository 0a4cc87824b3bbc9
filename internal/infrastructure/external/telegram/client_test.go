package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	config := DefaultClientConfig("123:abc")
	config.BaseURL = srv.URL
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(config)
}

func TestClient_NotifyStaff(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"chat":{"id":-100,"type":"supergroup"},"date":1}}`)
	})

	err := client.NotifyStaff(context.Background(), -1001649457872, "#академ")

	require.NoError(t, err)
	assert.Equal(t, float64(-1001649457872), body["chat_id"])
	assert.Equal(t, "#академ", body["text"])
	assert.Equal(t, true, body["disable_web_page_preview"])
}

func TestClient_NotifyStaff_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	})

	err := client.NotifyStaff(context.Background(), 1, "x")

	require.Error(t, err)
	assert.True(t, shared.IsTransport(err))
	assert.True(t, IsChatNotFound(err))
}

func TestClient_WaitsOutFloodWait(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":1}}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":8}}`)
	})

	start := time.Now()
	msg, err := client.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "x"})

	require.NoError(t, err)
	assert.Equal(t, int64(8), msg.MessageID)
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestClient_DoesNotRetryServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":502,"description":"Bad Gateway"}`)
	})

	_, err := client.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "x"})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
