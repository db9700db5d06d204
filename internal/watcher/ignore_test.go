package watcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clopapp/clop/internal/corepath"
)

func TestLoadIgnoreSet_MatchesGlobPattern(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".clopignore-images"), []byte("# comment\nscreenshots/**\n*.tmp.png\n"), 0o644))

	set := loadIgnoreSet(root, corepath.Image)
	require.True(t, set.matches(root, filepath.Join(root, "screenshots", "a.png")))
	require.True(t, set.matches(root, filepath.Join(root, "x.tmp.png")))
	require.False(t, set.matches(root, filepath.Join(root, "keep.png")))
}

func TestLoadIgnoreSet_MissingFileIsEmptySet(t *testing.T) {
	set := loadIgnoreSet(t.TempDir(), corepath.Video)
	require.False(t, set.matches(t.TempDir(), "anything.mp4"))
}

func TestIsOwnOutput_RecognisesClopArtifacts(t *testing.T) {
	require.True(t, isOwnOutput("/tmp/photo.clop.jpg"))
	require.True(t, isOwnOutput("/tmp/photo.jpg.clop-lock"))
	require.True(t, isOwnOutput("/tmp/photo.clop-tmp.jpg"))
	require.False(t, isOwnOutput("/tmp/photo.jpg"))
}
