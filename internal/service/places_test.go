package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/repo"
	"github.com/denizatli/hattakip/internal/service"
)

// fakePlaceRepo is an in-memory repo.PlaceRepo enforcing the per-chat name
// uniqueness the real table has.
type fakePlaceRepo struct {
	mu     sync.Mutex
	places map[uuid.UUID]domain.Place
}

func newFakePlaceRepo() *fakePlaceRepo {
	return &fakePlaceRepo{places: map[uuid.UUID]domain.Place{}}
}

func (f *fakePlaceRepo) Create(_ context.Context, place domain.Place) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.places {
		if p.ChatID == place.ChatID && p.Name == place.Name {
			return domain.ErrConflict
		}
	}
	f.places[place.ID] = place
	return nil
}

func (f *fakePlaceRepo) Get(_ context.Context, id uuid.UUID) (domain.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	place, ok := f.places[id]
	if !ok {
		return domain.Place{}, domain.ErrNotFound
	}
	return place, nil
}

func (f *fakePlaceRepo) ListByChat(_ context.Context, chatID int64) ([]domain.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Place
	for _, p := range f.places {
		if p.ChatID == chatID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlaceRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.places[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.places, id)
	return nil
}

var _ repo.PlaceRepo = (*fakePlaceRepo)(nil)

func newPlaceService() (*service.PlaceService, *fakePlaceRepo) {
	repo := newFakePlaceRepo()
	return service.NewPlaceService(repo, func() time.Time { return testNow }), repo
}

func TestPlaceService_Create(t *testing.T) {
	svc, _ := newPlaceService()

	got, err := svc.Create(context.Background(), domain.Place{
		ChatID: 1001,
		Name:   "  Ev  ",
		Coords: domain.Coordinates{Lat: 36.8121, Lng: 34.6415},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, "Ev", got.Name, "name should be trimmed")
	assert.True(t, got.CreatedAt.Equal(testNow))
}

func TestPlaceService_Create_Invalid(t *testing.T) {
	svc, _ := newPlaceService()
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.Place{ChatID: 1001, Name: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Create(ctx, domain.Place{ChatID: 1001, Name: "Ev", Coords: domain.Coordinates{Lat: 91}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Create(ctx, domain.Place{ChatID: 1001, Name: "Ev", Coords: domain.Coordinates{Lng: -181}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPlaceService_Create_DuplicateName(t *testing.T) {
	svc, _ := newPlaceService()
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.Place{ChatID: 1001, Name: "Ev"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.Place{ChatID: 1001, Name: "Ev"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPlaceService_Get_ScopedToChat(t *testing.T) {
	svc, _ := newPlaceService()
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.Place{ChatID: 1001, Name: "Ev"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, 1001, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	// Another chat must not see it.
	_, err = svc.Get(ctx, 2002, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlaceService_Delete_ScopedToChat(t *testing.T) {
	svc, store := newPlaceService()
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.Place{ChatID: 1001, Name: "Ev"})
	require.NoError(t, err)

	err = svc.Delete(ctx, 2002, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(ctx, created.ID)
	assert.NoError(t, err, "foreign chat delete must not remove the place")

	require.NoError(t, svc.Delete(ctx, 1001, created.ID))
	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlaceService_ListByChat_NeverNil(t *testing.T) {
	svc, _ := newPlaceService()

	got, err := svc.ListByChat(context.Background(), 1001)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
