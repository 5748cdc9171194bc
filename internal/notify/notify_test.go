package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookDeliversPayload(t *testing.T) {
	var received Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, time.Second, zap.NewNop())
	err := hook.Notify(context.Background(), Message{
		ID:      "job-1",
		Stage:   "ANALYSE",
		Status:  "SUCCESS",
		Message: "Redaction process complete",
	})
	require.NoError(t, err)

	assert.Equal(t, "job-1", received.ID)
	assert.Equal(t, "ANALYSE", received.Stage)
	assert.Equal(t, "SUCCESS", received.Status)
}

func TestWebhookRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, time.Second, zap.NewNop())
	err := hook.Notify(context.Background(), Message{ID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestWebhookUnreachableEndpoint(t *testing.T) {
	hook := NewWebhook("http://127.0.0.1:1/complete", 100*time.Millisecond, zap.NewNop())
	err := hook.Notify(context.Background(), Message{ID: "job-1"})
	assert.Error(t, err)
}

func TestNopNotifier(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), Message{ID: "job-1"}))
}
