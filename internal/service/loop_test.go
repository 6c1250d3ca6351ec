package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/service"
)

func TestRunLoop_EndsWhenVehicleReportedAbsent(t *testing.T) {
	tracker, deps := newTestTracker(service.TrackerConfig{PollInterval: time.Millisecond})
	deps.fetcher.responses = []fetchResponse{
		{payload: lineNode(5, "VAR")},
		{payload: lineNode(3, "VAR")},
		{payload: lineNode(0, "YOK")},
	}
	ctx := context.Background()
	seedSession(t, deps, "tok-loop", testNow)

	require.NoError(t, tracker.RunLoop(ctx, 1001, "tok-loop"))

	assert.Equal(t, 3, deps.fetcher.callCount(), "loop should fetch exactly once per iteration")

	sessions, err := deps.sessions.GetChat(ctx, 1001)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	texts := deps.messenger.editTexts()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "Otobüs durağı geçti. Takip tamamlandı.")

	assert.Equal(t, []string{"tok-loop"}, deps.spawner.released, "lock must be released on exit")
}

func TestRunLoop_ArrivalEndsIterationWithoutSleep(t *testing.T) {
	// The poll interval is set absurdly high: reaching the sleep at all
	// would hang the test, so a prompt return proves the terminal check
	// fires before sleeping.
	tracker, deps := newTestTracker(service.TrackerConfig{PollInterval: time.Hour})
	deps.fetcher.responses = []fetchResponse{{payload: lineNode(0, "VAR")}}
	ctx := context.Background()
	seedSession(t, deps, "tok-arr", testNow)

	done := make(chan error, 1)
	go func() { done <- tracker.RunLoop(ctx, 1001, "tok-arr") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not terminate on arrival before sleeping")
	}

	assert.Equal(t, 1, deps.fetcher.callCount())
	texts := deps.messenger.editTexts()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "Otobüs durağa ulaştı gibi görünüyor.")
}

func TestRunLoop_UpstreamFailureFinalizes(t *testing.T) {
	tracker, deps := newTestTracker(service.TrackerConfig{PollInterval: time.Millisecond})
	deps.fetcher.responses = []fetchResponse{{err: domain.ErrUpstream}}
	ctx := context.Background()
	seedSession(t, deps, "tok-up", testNow)

	require.NoError(t, tracker.RunLoop(ctx, 1001, "tok-up"))

	assert.Equal(t, 1, deps.fetcher.callCount())
	texts := deps.messenger.editTexts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Durak servisine ulaşılamadı. Takip sonlandırıldı.")
}

func TestRunLoop_LineVanishedFinalizes(t *testing.T) {
	tracker, deps := newTestTracker(service.TrackerConfig{PollInterval: time.Millisecond})
	deps.fetcher.responses = []fetchResponse{
		{payload: []any{map[string]any{"hatNo": "31", "dakika": float64(2)}}},
	}
	ctx := context.Background()
	seedSession(t, deps, "tok-van", testNow)

	require.NoError(t, tracker.RunLoop(ctx, 1001, "tok-van"))

	texts := deps.messenger.editTexts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Otobüs durağı geçti veya artık görünmüyor. Takip tamamlandı.")
}

func TestRunLoop_NoSessionIsNoOp(t *testing.T) {
	tracker, deps := newTestTracker(service.TrackerConfig{PollInterval: time.Millisecond})
	ctx := context.Background()

	require.NoError(t, tracker.RunLoop(ctx, 1001, "tok-none"))

	assert.Zero(t, deps.fetcher.callCount(), "no session means no fetch")
	assert.Empty(t, deps.messenger.editTexts())
	assert.Equal(t, []string{"tok-none"}, deps.spawner.released)
}

func TestRunLoop_IterationCap(t *testing.T) {
	tracker, deps := newTestTracker(service.TrackerConfig{
		PollInterval:  time.Millisecond,
		MaxIterations: 2,
	})
	deps.fetcher.responses = []fetchResponse{{payload: lineNode(5, "VAR")}}
	ctx := context.Background()
	seedSession(t, deps, "tok-cap", testNow)

	require.NoError(t, tracker.RunLoop(ctx, 1001, "tok-cap"))

	assert.Equal(t, 2, deps.fetcher.callCount())
	texts := deps.messenger.editTexts()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "Takip 20 dakika sonunda otomatik sonlandırıldı.")
}

func TestRunLoop_StatusMessageContent(t *testing.T) {
	tracker, deps := newTestTracker(service.TrackerConfig{PollInterval: time.Millisecond})
	deps.fetcher.responses = []fetchResponse{
		{payload: lineNode(4, "VAR")},
		{payload: lineNode(0, "YOK")},
	}
	ctx := context.Background()
	seedSession(t, deps, "tok-msg", testNow)

	require.NoError(t, tracker.RunLoop(ctx, 1001, "tok-msg"))

	texts := deps.messenger.editTexts()
	require.GreaterOrEqual(t, len(texts), 2)
	first := texts[0]
	assert.Contains(t, first, "👀 <b>22M</b> hattı takibi")
	assert.Contains(t, first, "🚏 Durak: <b>#58001 Üniversite Kavşağı</b>")
	assert.Contains(t, first, "⏱️ Kalan süre: <b>4 dk</b>")
	assert.Contains(t, first, "🚦 Araç durakta/rota üzerinde görünüyor.")
	assert.Contains(t, first, "🕒 Güncelleme: 09:30:00")
}
