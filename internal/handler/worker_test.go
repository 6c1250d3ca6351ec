package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTrackWorker_RunsLoop(t *testing.T) {
	var gotChatID int64
	var gotToken string
	tracker := &mockTracker{runLoop: func(_ context.Context, chatID int64, token string) error {
		gotChatID, gotToken = chatID, token
		return nil
	}}
	router := newTestRouter(serverMocks{tracker: tracker})

	req := httptest.NewRequest(http.MethodGet, "/internal/track-worker?chat_id=1001&token=a1b2c3d4", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, int64(1001), gotChatID)
	assert.Equal(t, "a1b2c3d4", gotToken)
}

func TestGetTrackWorker_MissingParams(t *testing.T) {
	called := false
	tracker := &mockTracker{runLoop: func(context.Context, int64, string) error {
		called = true
		return nil
	}}
	router := newTestRouter(serverMocks{tracker: tracker})

	for _, target := range []string{
		"/internal/track-worker",
		"/internal/track-worker?chat_id=1001",
		"/internal/track-worker?token=a1b2c3d4",
		"/internal/track-worker?chat_id=abc&token=a1b2c3d4",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "target %s", target)
	}
	assert.False(t, called, "loop must not run for invalid requests")
}

func TestGetTrackWorker_LoopOutlivesRequestContext(t *testing.T) {
	// The trigger hangs up after a sub-second budget; the loop's context must
	// not be canceled with the request.
	var loopCtx context.Context
	tracker := &mockTracker{runLoop: func(ctx context.Context, _ int64, _ string) error {
		loopCtx = ctx
		return nil
	}}
	router := newTestRouter(serverMocks{tracker: tracker})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/internal/track-worker?chat_id=1001&token=tok1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	cancel()

	require.NotNil(t, loopCtx)
	assert.NoError(t, loopCtx.Err(), "loop context must survive request cancellation")
}

func TestGetTrackWorker_RequiresKeyWhenConfigured(t *testing.T) {
	called := false
	tracker := &mockTracker{runLoop: func(context.Context, int64, string) error {
		called = true
		return nil
	}}
	router := newTestRouter(serverMocks{tracker: tracker, workerSecret: "hush"})

	for _, target := range []string{
		"/internal/track-worker?chat_id=1001&token=tok1",
		"/internal/track-worker?chat_id=1001&token=tok1&key=wrong",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code, "target %s", target)
	}
	assert.False(t, called, "loop must not run without the shared secret")

	req := httptest.NewRequest(http.MethodGet, "/internal/track-worker?chat_id=1001&token=tok1&key=hush", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}
