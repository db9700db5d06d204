package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesDocumentAtCurrentSchemaVersion(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, currentSchemaVersion, s.doc.SchemaVersion)

	raw, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"schemaVersion": 2`)
}

func TestGetSet_RoundTripsTypedValue(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.Equal(t, MaxImageSizeMb.Default, Get(s, MaxImageSizeMb))

	Set(s, MaxImageSizeMb, 128)
	require.Equal(t, 128, Get(s, MaxImageSizeMb))

	require.NoError(t, s.Flush())

	reopened, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, 128, Get(reopened, MaxImageSizeMb))
}

func TestSet_CoalescesPersistence(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		Set(s, WorkerCount, i)
	}

	require.NoError(t, s.Flush())

	reopened, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, 19, Get(reopened, WorkerCount))
}

func TestSubscribe_NotifiedAfterSet(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	notified := make(chan struct{}, 1)
	unsub := s.Subscribe(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	defer unsub()

	Set(s, PauseAutomaticOptimisations, true)

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}
}

func TestMigration_ReshapesMonolithicClopignore(t *testing.T) {
	watchDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(watchDir, ".clopignore"), []byte("*.tmp\nbuild/**\n"), 0o644))

	configDir := t.TempDir()
	seed := `{"schemaVersion":1,"values":{"ImageDirs":["` + filepath.ToSlash(watchDir) + `"]}}`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.json"), []byte(seed), 0o644))

	s, err := Open(configDir)
	require.NoError(t, err)
	require.Equal(t, currentSchemaVersion, s.doc.SchemaVersion)

	_, err = os.Stat(filepath.Join(watchDir, ".clopignore"))
	require.True(t, os.IsNotExist(err), "legacy .clopignore should be removed")

	for _, suffix := range []string{"-images", "-videos", "-pdfs"} {
		b, err := os.ReadFile(filepath.Join(watchDir, ".clopignore"+suffix))
		require.NoError(t, err)
		require.Equal(t, "*.tmp\nbuild/**\n", string(b))
	}
}
