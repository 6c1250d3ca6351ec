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

func TestLockRepo_UpsertGet(t *testing.T) {
	r := repo.NewLockRepo(newTestTx(t))
	ctx := context.Background()

	lockedAt := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	require.NoError(t, r.Upsert(ctx, "tok1", lockedAt))

	got, err := r.Get(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, "tok1", got.Token)
	assert.True(t, got.LockedAt.Equal(lockedAt))

	// Upsert overwrites the timestamp in place.
	require.NoError(t, r.Upsert(ctx, "tok1", lockedAt.Add(time.Minute)))
	got, err = r.Get(ctx, "tok1")
	require.NoError(t, err)
	assert.True(t, got.LockedAt.Equal(lockedAt.Add(time.Minute)))
}

func TestLockRepo_Get_NotFound(t *testing.T) {
	r := repo.NewLockRepo(newTestTx(t))

	_, err := r.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLockRepo_Delete_Idempotent(t *testing.T) {
	r := repo.NewLockRepo(newTestTx(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, "tok1", time.Now().UTC()))
	require.NoError(t, r.Delete(ctx, "tok1"))

	_, err := r.Get(ctx, "tok1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, r.Delete(ctx, "tok1"))
}
