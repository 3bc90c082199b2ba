package automation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookDispatcher_PostsJSONWithSecret(t *testing.T) {
	var gotBody DispatchRequest
	var gotSecret, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotSecret = r.Header.Get("X-Automation-Secret")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL, "s3cret", time.Second)
	req := DispatchRequest{
		RunID:         "run-1",
		AutomationID:  testAutomationID,
		AutomationKey: "weekly-digest",
		TriggeredBy:   "admin@example.com",
		RequestedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, d.Dispatch(context.Background(), req))
	assert.Equal(t, "s3cret", gotSecret)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, req, gotBody)
}

func TestWebhookDispatcher_OmitsSecretWhenUnset(t *testing.T) {
	var hasSecret bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasSecret = r.Header["X-Automation-Secret"]
		io.Copy(io.Discard, r.Body)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookDispatcher(srv.URL, "", time.Second).Dispatch(context.Background(), DispatchRequest{}))
	assert.False(t, hasSecret)
}

func TestWebhookDispatcher_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookDispatcher(srv.URL, "", time.Second).Dispatch(context.Background(), DispatchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestWebhookDispatcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	err := NewWebhookDispatcher(srv.URL, "", 50*time.Millisecond).Dispatch(context.Background(), DispatchRequest{})
	require.Error(t, err)
}

func TestLogDispatcher_NeverFails(t *testing.T) {
	assert.NoError(t, NewLogDispatcher(nil).Dispatch(context.Background(), DispatchRequest{RunID: "r"}))
}
