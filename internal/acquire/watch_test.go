package acquire

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextSelection(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("no gallery event")
		return ""
	}
}

func TestWatchInitialScan(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "old.png"), 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	g, err := NewDirectoryGallery(dir)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := g.Watch(ctx, WatchConfig{InitialScan: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, "old.png", nextSelection(t, events))
}

func TestWatchReportsNewImages(t *testing.T) {
	dir := t.TempDir()
	g, err := NewDirectoryGallery(dir)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := g.Watch(ctx, WatchConfig{Debounce: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644))
	writePNG(t, filepath.Join(dir, "new.png"), 4, 4)

	assert.Equal(t, "new.png", nextSelection(t, events))
	select {
	case extra := <-events:
		t.Fatalf("unexpected event %q", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	g, err := NewDirectoryGallery(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	events, errs, err := g.Watch(ctx, WatchConfig{}, nil)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		_, ok := <-events
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
	_, ok := <-errs
	assert.False(t, ok)
}

func TestWatchMissingRoot(t *testing.T) {
	g, err := NewDirectoryGallery(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	_, _, err = g.Watch(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
