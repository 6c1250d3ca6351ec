package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/repo"
)

func sessionFixture(token string, startedAt time.Time) domain.TrackingSession {
	return domain.TrackingSession{
		Token:       token,
		ChatID:      1001,
		MessageID:   42,
		LineCode:    "22-M",
		LineDisplay: "22M",
		LineName:    "Mezitli - Merkez",
		StopID:      "58001",
		StopName:    "Üniversite Kavşağı",
		StartedAt:   startedAt,
		Status:      domain.SessionStatusRunning,
	}
}

func TestSessionRepo_GetChat_Empty(t *testing.T) {
	r := repo.NewSessionRepo(newTestTx(t))

	got, err := r.GetChat(context.Background(), 9999)
	require.NoError(t, err)
	assert.NotNil(t, got, "missing chat should yield empty map, not nil")
	assert.Empty(t, got)
}

func TestSessionRepo_PutGetRoundTrip(t *testing.T) {
	r := repo.NewSessionRepo(newTestTx(t))
	ctx := context.Background()

	started := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	want := map[string]domain.TrackingSession{
		"tok1": sessionFixture("tok1", started),
		"tok2": sessionFixture("tok2", started.Add(time.Minute)),
	}
	require.NoError(t, r.PutChat(ctx, 1001, want))

	got, err := r.GetChat(ctx, 1001)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "22-M", got["tok1"].LineCode)
	assert.True(t, got["tok2"].StartedAt.Equal(started.Add(time.Minute)))
	assert.Equal(t, domain.SessionStatusRunning, got["tok1"].Status)
}

func TestSessionRepo_PutChat_EmptyMapRemovesRow(t *testing.T) {
	r := repo.NewSessionRepo(newTestTx(t))
	ctx := context.Background()

	started := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	seed := map[string]domain.TrackingSession{"tok1": sessionFixture("tok1", started)}
	require.NoError(t, r.PutChat(ctx, 1001, seed))

	require.NoError(t, r.PutChat(ctx, 1001, map[string]domain.TrackingSession{}))

	got, err := r.GetChat(ctx, 1001)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSessionRepo_DeleteSession(t *testing.T) {
	r := repo.NewSessionRepo(newTestTx(t))
	ctx := context.Background()

	started := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	seed := map[string]domain.TrackingSession{
		"tok1": sessionFixture("tok1", started),
		"tok2": sessionFixture("tok2", started.Add(time.Minute)),
	}
	require.NoError(t, r.PutChat(ctx, 1001, seed))

	require.NoError(t, r.DeleteSession(ctx, 1001, "tok1"))

	got, err := r.GetChat(ctx, 1001)
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, remains := got["tok2"]
	assert.True(t, remains)

	// Absent token and absent chat are both no-ops.
	assert.NoError(t, r.DeleteSession(ctx, 1001, "tok1"))
	assert.NoError(t, r.DeleteSession(ctx, 4242, "tok1"))
}
