package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/recordstore"
)

type mapCache struct {
	values      map[string][]byte
	invalidated []string
}

func newMapCache() *mapCache { return &mapCache{values: map[string][]byte{}} }

func (m *mapCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *mapCache) Invalidate(ctx context.Context, pattern string) error {
	delete(m.values, pattern)
	m.invalidated = append(m.invalidated, pattern)
	return nil
}

type failingStore struct {
	recordstore.Store
	err error
}

func (f failingStore) List(ctx context.Context, entity string) ([]json.RawMessage, error) {
	return nil, f.err
}

func (f failingStore) Save(ctx context.Context, entity string, record interface{}) error {
	return f.err
}

func userCollection(store recordstore.Store, opts ...CollectionOption) *Collection[models.User] {
	return NewCollection(store, recordstore.EntityUsers, func(u models.User) string { return u.ID }, opts...)
}

func TestCollectionSaveFindDelete(t *testing.T) {
	ctx := context.Background()
	users := userCollection(recordstore.NewMemoryStore())

	require.NoError(t, users.Save(ctx, models.User{ID: "u1", Username: "an", Role: models.RoleGV}))
	require.NoError(t, users.Save(ctx, models.User{ID: "u2", Username: "binh", Role: models.RoleNV}))

	found, err := users.FindByID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "binh", found.Username)

	nv, err := users.Filter(ctx, func(u models.User) bool { return u.Role == models.RoleNV })
	require.NoError(t, err)
	assert.Len(t, nv, 1)

	require.NoError(t, users.Delete(ctx, "u2"))
	_, err = users.FindByID(ctx, "u2")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	err = users.Save(ctx, models.User{Username: "no-id"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCollectionReadThroughCache(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore()
	cache := newMapCache()
	users := userCollection(store, WithCache(cache, time.Minute))

	require.NoError(t, store.Save(ctx, recordstore.EntityUsers, map[string]string{"id": "u1", "name": "An"}))
	list, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, cache.values, "records:users")

	// A write behind the collection's back stays invisible until invalidation.
	require.NoError(t, store.Save(ctx, recordstore.EntityUsers, map[string]string{"id": "u2"}))
	list, err = users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	fresh, err := users.ListFresh(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)

	require.NoError(t, users.Save(ctx, models.User{ID: "u3"}))
	assert.Equal(t, []string{"records:users"}, cache.invalidated)
	list, err = users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestCollectionSkipsBadRecords(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore()
	require.NoError(t, store.Save(ctx, recordstore.EntityUsers, map[string]interface{}{"id": "u1", "role": "Giáo viên"}))
	require.NoError(t, store.Save(ctx, recordstore.EntityUsers, map[string]interface{}{"id": "u2", "name": []int{1}}))

	list, err := userCollection(store).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.RoleGV, list[0].Role)
}

func TestCollectionWrapsStoreErrors(t *testing.T) {
	ctx := context.Background()
	users := userCollection(failingStore{err: errors.New("endpoint down")})

	_, err := users.List(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUpstream))

	err = users.Save(ctx, models.User{ID: "u1"})
	assert.True(t, errors.Is(err, appErrors.ErrUpstream))
}

func TestSettingRepositoryMemoryFallback(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingRepository(nil)

	_, ok, err := repo.Get(ctx, "google_client_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, "google_client_id", "abc.apps.googleusercontent.com"))
	v, ok, err := repo.Get(ctx, "google_client_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc.apps.googleusercontent.com", v)

	require.NoError(t, repo.Delete(ctx, "google_client_id"))
	_, ok, _ = repo.Get(ctx, "google_client_id")
	assert.False(t, ok)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest []string
	err := repo.Get(context.Background(), "k", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(context.Background(), "k", []string{"v"}, time.Second))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "k*"))
	assert.NoError(t, repo.Close())
}

// parkingStore holds the next List after it has read the store.
type parkingStore struct {
	*recordstore.MemoryStore
	park    bool
	reached chan struct{}
	release chan struct{}
}

func (p *parkingStore) List(ctx context.Context, entity string) ([]json.RawMessage, error) {
	raw, err := p.MemoryStore.List(ctx, entity)
	if p.park {
		p.park = false
		close(p.reached)
		<-p.release
	}
	return raw, err
}

func TestCollectionDoesNotCacheSnapshotOlderThanWrite(t *testing.T) {
	ctx := context.Background()
	store := &parkingStore{MemoryStore: recordstore.NewMemoryStore(), reached: make(chan struct{}), release: make(chan struct{})}
	cache := newMapCache()
	users := userCollection(store, WithCache(cache, time.Minute))
	require.NoError(t, users.Save(ctx, models.User{ID: "u1", Name: "An"}))

	store.park = true
	done := make(chan []models.User, 1)
	go func() {
		list, _ := users.List(ctx)
		done <- list
	}()
	<-store.reached

	require.NoError(t, users.Save(ctx, models.User{ID: "u1", Name: "An (đã duyệt)", IsApproved: true}))
	close(store.release)
	stale := <-done
	require.Len(t, stale, 1)
	assert.Equal(t, "An", stale[0].Name)
	assert.NotContains(t, cache.values, "records:users")

	list, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsApproved)

	fresh, err := users.FindFresh(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "An (đã duyệt)", fresh.Name)
}
