package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clopapp/clop/internal/coordinator"
	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/optimise"
	"github.com/clopapp/clop/internal/request"
	"github.com/clopapp/clop/internal/settings"
)

type capturingOptimiser struct {
	itemType corepath.ItemType
	seen     chan request.Request
}

func (c *capturingOptimiser) ItemType() corepath.ItemType { return c.itemType }

func (c *capturingOptimiser) Optimise(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
	c.seen <- req
	return request.Result{Status: request.Succeeded, RequestID: req.ID}, nil
}

func newTestWatcher(t *testing.T, imageDir string) (*Watcher, *capturingOptimiser) {
	t.Helper()
	store, err := settings.Open(t.TempDir())
	require.NoError(t, err)
	settings.Set(store, settings.ImageDirs, []string{imageDir})

	reg := optimise.NewRegistry()
	capture := &capturingOptimiser{itemType: corepath.Image, seen: make(chan request.Request, 8)}
	reg.Register(capture)

	coord := coordinator.New(reg, 1, corelog.New("watcher-test"))
	coord.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = coord.Stop(ctx)
	})

	w, err := New(store, coord, corelog.New("watcher-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w, capture
}

func TestWatcher_DispatchesNewFileWithWatcherMetadata(t *testing.T) {
	dir := t.TempDir()
	w, capture := newTestWatcher(t, dir)
	require.NoError(t, w.Start())

	path := filepath.Join(dir, "new.jpg")
	require.NoError(t, os.WriteFile(path, []byte("fake jpeg bytes"), 0o644))

	select {
	case req := <-capture.seen:
		require.Equal(t, corepath.Image, req.ItemType)
		require.Equal(t, "watcher", req.Metadata["source"])
		require.Equal(t, string(corepath.Image), req.Metadata["watcher.type"])
	case <-time.After(5 * time.Second):
		t.Fatal("expected a dispatched request, got none")
	}
}

func TestWatcher_IgnoresFileMatchingClopignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".clopignore-images"), []byte("skip-me.jpg\n"), 0o644))
	w, capture := newTestWatcher(t, dir)
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip-me.jpg"), []byte("x"), 0o644))

	select {
	case req := <-capture.seen:
		t.Fatalf("expected ignored file to never dispatch, got %+v", req)
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOwnOutputArtifact(t *testing.T) {
	dir := t.TempDir()
	w, capture := newTestWatcher(t, dir)
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.clop.jpg"), []byte("x"), 0o644))

	select {
	case req := <-capture.seen:
		t.Fatalf("expected own-output artifact to never dispatch, got %+v", req)
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestDebounce_CoalescesRapidRewritesIntoOneDispatch(t *testing.T) {
	dir := t.TempDir()
	w, capture := newTestWatcher(t, dir)
	require.NoError(t, w.Start())

	path := filepath.Join(dir, "edited.jpg")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("revision"), 0o644))
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case <-capture.seen:
	case <-time.After(5 * time.Second):
		t.Fatal("expected one dispatch after coalesced rewrites")
	}
	select {
	case req := <-capture.seen:
		t.Fatalf("expected exactly one dispatch, got a second: %+v", req)
	case <-time.After(1500 * time.Millisecond):
	}
}
