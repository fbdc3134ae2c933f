package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/docretrieval/internal/domain/ports"
)

func TestFSNotifyWatcher_Creation(t *testing.T) {
	watcher, err := NewFSNotifyWatcher([]string{".txt", ".pdf"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()
}

func TestFSNotifyWatcher_DefaultExtensions(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.Len(t, watcher.extensions, 3)
}

func TestFSNotifyWatcher_EmitsCreateEvent(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFSNotifyWatcher([]string{".txt"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "dropped.txt"), []byte("hi"), 0o644)
	}()

	select {
	case event := <-events:
		assert.Equal(t, ports.FileCreated, event.Operation)
		assert.Equal(t, "dropped.txt", filepath.Base(event.Path))
	case <-ctx.Done():
		t.Fatal("timeout waiting for event")
	}
}

func TestFSNotifyWatcher_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFSNotifyWatcher([]string{".txt"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	os.WriteFile(filepath.Join(dir, "ignored.json"), []byte("{}"), 0o644)

	select {
	case event := <-events:
		t.Fatalf("unexpected event for %s", event.Path)
	case <-time.After(300 * time.Millisecond):
	}
}
