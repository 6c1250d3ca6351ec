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

func userFixture(id int64, name string) domain.AuthorizedUser {
	return domain.AuthorizedUser{
		TelegramID: id,
		Name:       name,
		CreatedAt:  time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
	}
}

func TestUserRepo_UpsertCreatesThenUpdates(t *testing.T) {
	r := repo.NewUserRepo(newTestTx(t))
	ctx := context.Background()

	created, err := r.Upsert(ctx, userFixture(1001, "Ali Yılmaz"))
	require.NoError(t, err)
	assert.True(t, created)

	update := userFixture(1001, "Ali Y.")
	update.CreatedAt = update.CreatedAt.Add(time.Hour)
	created, err = r.Upsert(ctx, update)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := r.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, "Ali Y.", got.Name)
	// created_at survives the update, updated_at moves.
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestUserRepo_Get_Unknown(t *testing.T) {
	r := repo.NewUserRepo(newTestTx(t))

	_, err := r.Get(context.Background(), 4242)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_List_Ordered(t *testing.T) {
	r := repo.NewUserRepo(newTestTx(t))
	ctx := context.Background()

	second := userFixture(2002, "Veli")
	second.CreatedAt = second.CreatedAt.Add(time.Hour)
	_, err := r.Upsert(ctx, second)
	require.NoError(t, err)
	_, err = r.Upsert(ctx, userFixture(1001, "Ali"))
	require.NoError(t, err)

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1001), got[0].TelegramID)
	assert.Equal(t, int64(2002), got[1].TelegramID)
}

func TestUserRepo_Delete(t *testing.T) {
	r := repo.NewUserRepo(newTestTx(t))
	ctx := context.Background()

	_, err := r.Upsert(ctx, userFixture(1001, "Ali"))
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, 1001))

	_, err = r.Get(ctx, 1001)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = r.Delete(ctx, 1001)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
