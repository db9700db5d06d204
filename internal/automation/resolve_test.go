package automation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clopapp/clop/internal/settings"
)

func newTestStore(t *testing.T) *settings.Store {
	t.Helper()
	store, err := settings.Open(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestResolve_ExpandsTypeAlias(t *testing.T) {
	imageDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(imageDir, "a.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(imageDir, "b.txt"), []byte("x"), 0o644))

	store := newTestStore(t)
	settings.Set(store, settings.ImageDirs, []string{imageDir})

	r := NewResolver(store)
	resolved := r.Resolve([]string{"images"}, ResolveOptions{})

	require.Len(t, resolved, 1)
	require.Equal(t, filepath.Join(imageDir, "a.jpg"), resolved[0].Value())
}

func TestResolve_RejectsPathsUnderWorkRoot(t *testing.T) {
	workRoot := t.TempDir()
	inside := filepath.Join(workRoot, "scratch.jpg")
	require.NoError(t, os.WriteFile(inside, []byte("x"), 0o644))

	store := newTestStore(t)
	r := NewResolver(store, workRoot)
	resolved := r.Resolve([]string{inside}, ResolveOptions{})

	require.Empty(t, resolved)
}

func TestResolve_DeduplicatesCaseInsensitively(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	store := newTestStore(t)
	r := NewResolver(store)
	resolved := r.Resolve([]string{path, path}, ResolveOptions{})

	require.Len(t, resolved, 1)
}

func TestResolve_FiltersByIncludeAndExcludeTypes(t *testing.T) {
	dir := t.TempDir()
	jpg := filepath.Join(dir, "photo.jpg")
	mp4 := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(jpg, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(mp4, []byte("x"), 0o644))

	store := newTestStore(t)
	r := NewResolver(store)

	onlyVideos := r.Resolve([]string{dir}, ResolveOptions{IncludeTypes: []string{"videos"}})
	require.Len(t, onlyVideos, 1)
	require.Equal(t, mp4, onlyVideos[0].Value())

	excludeVideos := r.Resolve([]string{dir}, ResolveOptions{ExcludeTypes: []string{"video"}})
	require.Len(t, excludeVideos, 1)
	require.Equal(t, jpg, excludeVideos[0].Value())
}
