package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("test-key")
	cfg.BaseURL = srv.URL
	cfg.Timeout = 2 * time.Second
	return NewClient(cfg), srv
}

func TestClient_Send_Success(t *testing.T) {
	var got sendRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(sendResponse{ID: "msg_123"})
	})

	err := client.Send(context.Background(), Message{
		To:      "student@example.com",
		Subject: "You reached Level 4!",
		HTML:    "<b>Scholar</b>",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"student@example.com"}, got.To)
	assert.Equal(t, "You reached Level 4!", got.Subject)
}

func TestClient_Send_EmptyRecipient(t *testing.T) {
	client := NewClient(DefaultClientConfig("test-key"))

	err := client.Send(context.Background(), Message{Subject: "hi"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestClient_Send_NoAPIKey(t *testing.T) {
	client := NewClient(DefaultClientConfig(""))

	err := client.Send(context.Background(), Message{To: "a@b.c", Subject: "hi"})
	assert.ErrorIs(t, err, shared.ErrEmailUnavailable)
}

func TestClient_Send_RateLimited(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := client.Send(context.Background(), Message{To: "a@b.c", Subject: "hi"})
	assert.ErrorIs(t, err, shared.ErrEmailRateLimited)
}

func TestClient_Send_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(errorResponse{Name: "validation_error", Message: "bad address"})
	})

	err := client.Send(context.Background(), Message{To: "a@b.c", Subject: "hi"})
	require.Error(t, err)

	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not be retried")
}

func TestClient_Send_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(sendResponse{ID: "msg_retry"})
	})

	err := client.Send(context.Background(), Message{To: "a@b.c", Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMaskRecipient(t *testing.T) {
	assert.Equal(t, "s***@example.com", maskRecipient("student@example.com"))
	assert.Equal(t, "***", maskRecipient("a@b"))
	assert.Equal(t, "***", maskRecipient("no-at-sign"))
}
