package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/pkg/config"
	"github.com/noah-isme/dept-portal-api/pkg/recordstore"
)

type storeCalls struct {
	actions []string
}

func (s *storeCalls) ObserveStoreCall(entity, action string, duration time.Duration, err error) {
	s.actions = append(s.actions, entity+":"+action)
}

func TestOpenStoreMemoryIsInstrumented(t *testing.T) {
	ctx := context.Background()
	observer := &storeCalls{}
	cfg := &config.Config{Store: config.StoreConfig{Driver: config.StoreDriverMemory}}

	store, closer, err := OpenStore(ctx, cfg, observer, nil)
	require.NoError(t, err)
	defer func() { _ = closer() }()

	require.NoError(t, store.Save(ctx, recordstore.EntityUsers, map[string]string{"id": "u1"}))
	_, err = store.List(ctx, recordstore.EntityUsers)
	require.NoError(t, err)
	assert.Equal(t, []string{"users:save", "users:list"}, observer.actions)
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "excel"}}
	_, _, err := OpenStore(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestOptionalBackendsWithoutConfig(t *testing.T) {
	cfg := &config.Config{}
	assert.Nil(t, OpenRedis(cfg, nil))

	uploader, err := OpenDrive(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, uploader)
}
