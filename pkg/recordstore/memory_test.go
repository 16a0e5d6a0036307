package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, EntityUsers, map[string]string{"id": "u1", "name": "An"}))
	require.NoError(t, store.Save(ctx, EntityUsers, map[string]string{"id": "u2", "name": "Bình"}))
	require.NoError(t, store.Save(ctx, EntityUsers, map[string]string{"id": "u1", "name": "An Nguyễn"}))

	records, err := store.List(ctx, EntityUsers)
	require.NoError(t, err)
	require.Len(t, records, 2)
	var first map[string]string
	require.NoError(t, json.Unmarshal(records[0], &first))
	assert.Equal(t, "An Nguyễn", first["name"])

	require.NoError(t, store.Delete(ctx, EntityUsers, "u1"))
	require.NoError(t, store.Delete(ctx, EntityUsers, "missing"))
	records, err = store.List(ctx, EntityUsers)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

type recordingObserver struct {
	calls []string
	errs  int
}

func (o *recordingObserver) ObserveStoreCall(entity, action string, d time.Duration, err error) {
	o.calls = append(o.calls, entity+":"+action)
	if err != nil {
		o.errs++
	}
}

func TestInstrumentReportsCalls(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	store := Instrument(NewMemoryStore(), obs)

	require.NoError(t, store.Save(ctx, EntityDemos, map[string]string{"id": "d1"}))
	_, err := store.List(ctx, EntityDemos)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, EntityDemos, "d1"))
	err = store.Save(ctx, EntityDemos, map[string]string{})
	require.True(t, errors.Is(err, ErrRecordID))

	assert.Equal(t, []string{"demos:save", "demos:list", "demos:delete", "demos:save"}, obs.calls)
	assert.Equal(t, 1, obs.errs)
}
