package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAwaitStable_ReturnsOnceSizeStopsChanging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growing.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	info, stable := awaitStable(path)
	require.True(t, stable)
	require.EqualValues(t, 5, info.Size())
}

func TestAwaitStable_MissingFileIsNotStable(t *testing.T) {
	_, stable := awaitStable(filepath.Join(t.TempDir(), "missing.bin"))
	require.False(t, stable)
}

func TestRequeueDelay_ScalesLinearlyThenCaps(t *testing.T) {
	require.Equal(t, 250*time.Millisecond, requeueDelay(1))
	require.Equal(t, 1250*time.Millisecond, requeueDelay(5))
	require.Equal(t, requeueMaxDelay, requeueDelay(100))
}
