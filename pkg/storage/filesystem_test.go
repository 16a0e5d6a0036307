package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.SaveStream("uploads/a/de-thi.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	f, err := store.Open("uploads/a/de-thi.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(f)
	f.Close()
	assert.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, store.Delete("uploads/a/de-thi.pdf"))
	require.NoError(t, store.Delete("uploads/a/de-thi.pdf"))
}

func TestLocalStorageStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(root)
	require.NoError(t, err)

	_, err = store.Save("../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(root, "etc", "passwd"))
	assert.NoError(t, statErr)
}

func TestCleanupOlderThan(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(root)
	require.NoError(t, err)

	_, err = store.Save("old.csv", []byte("a"))
	require.NoError(t, err)
	_, err = store.Save("new.csv", []byte("b"))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "old.csv"), past, past))

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)
}
