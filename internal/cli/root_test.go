package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/recordstore"
	"github.com/noah-isme/dept-portal-api/pkg/storage"
)

func newTestEnv(t *testing.T) (*Env, Opener) {
	t.Helper()
	ctx := context.Background()
	store := recordstore.NewMemoryStore()
	require.NoError(t, store.Save(ctx, recordstore.EntityUsers, models.User{
		ID: "u1", Username: "an", Name: "An", Role: models.RoleGV, IsApproved: true, AssignedClasses: []string{"Toán 6/1"},
	}))
	require.NoError(t, store.Save(ctx, recordstore.EntityUsers, models.User{
		ID: "u2", Username: "binh", Name: "Bình", Role: models.RoleGV, AssignedClasses: []string{"Toán 7/1"},
	}))

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	env := NewEnv(store, files, storage.NewSignedURLSigner("cli-secret", time.Hour), service.NewCalendar(service.DefaultTimezone), zap.NewNop(), nil)
	return env, func(context.Context) (*Env, error) { return env, nil }
}

func execute(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUsersListAndApprove(t *testing.T) {
	env, open := newTestEnv(t)

	out, err := execute(t, open, "users", "list", "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "binh")
	assert.NotContains(t, out, "u1")

	out, err = execute(t, open, "users", "approve", "u2")
	require.NoError(t, err)
	assert.Contains(t, out, "approved binh")

	user, err := env.Users.Get(context.Background(), "u2")
	require.NoError(t, err)
	assert.True(t, user.IsApproved)

	_, err = execute(t, open, "users", "approve")
	assert.Error(t, err)
}

func TestScoresExportWritesFile(t *testing.T) {
	_, open := newTestEnv(t)
	dest := filepath.Join(t.TempDir(), "scores.csv")

	out, err := execute(t, open, "scores", "export", "--period", models.ScorePeriodHKI, "--format", "csv", "--out", dest)
	require.NoError(t, err)
	assert.Contains(t, out, dest)

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "An")

	_, err = execute(t, open, "scores", "export", "--format", "ods", "--out", dest)
	assert.Error(t, err)
}

func TestStoreCheckCountsEntities(t *testing.T) {
	_, open := newTestEnv(t)

	out, err := execute(t, open, "store", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ENTITY")
	assert.Regexp(t, `users\s+2`, out)
	assert.Regexp(t, `schedule\s+0`, out)
}
