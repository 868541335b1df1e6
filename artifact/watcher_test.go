package artifact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsSavedBundle(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	reloaded := make(chan *Bundle, 4)
	watcher := NewWatcher(store, func(b *Bundle) { reloaded <- b }, nil, WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	bundle := fitBundle(t, 7)
	require.NoError(t, store.Save(bundle))

	select {
	case got := <-reloaded:
		require.Equal(t, bundle.RunID, got.RunID)
	case <-time.After(5 * time.Second):
		t.Fatal("bundle was not reloaded")
	}
}

func TestWatcherSkipsCurrentRun(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	bundle := fitBundle(t, 8)
	require.NoError(t, store.Save(bundle))

	calls := 0
	watcher := NewWatcher(store, func(*Bundle) { calls++ }, nil, WithCurrentRun(bundle.RunID))
	watcher.reload()
	require.Zero(t, calls)

	require.NoError(t, store.Save(fitBundle(t, 9)))
	watcher.reload()
	require.Equal(t, 1, calls)
}

func TestWatcherReportsFailedReload(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	var failures []error
	watcher := NewWatcher(store, func(*Bundle) { t.Fatal("nothing to reload") }, nil,
		WithErrorHandler(func(err error) { failures = append(failures, err) }))
	watcher.reload()
	require.Len(t, failures, 1)
	var missing *MissingArtifactError
	require.ErrorAs(t, failures[0], &missing)
}
