package settings

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/clopapp/clop/internal/corelog"
)

// migration upgrades a document from TargetVersion-1 to TargetVersion.
type migration struct {
	TargetVersion int
	Transform     func(doc *document, configRoot string, log *corelog.Logger)
}

// migrations must stay sorted ascending by TargetVersion; applyMigrations
// runs only the ones newer than the document's current schema_version.
var migrations = []migration{
	{
		TargetVersion: 2,
		Transform:     migrateClopignoreToPerType,
	},
}

// applyMigrations runs every migration newer than doc.SchemaVersion, in
// order, bumping SchemaVersion after each. Returns true if anything
// changed (including a bare version bump with no matching migration,
// which still needs a write-back).
func applyMigrations(doc *document, configRoot string, log *corelog.Logger) bool {
	changed := false
	for _, m := range migrations {
		if doc.SchemaVersion >= m.TargetVersion {
			continue
		}
		m.Transform(doc, configRoot, log)
		doc.SchemaVersion = m.TargetVersion
		changed = true
	}
	if doc.SchemaVersion < currentSchemaVersion {
		doc.SchemaVersion = currentSchemaVersion
		changed = true
	}
	return changed
}

// migrateClopignoreToPerType reshapes a single monolithic .clopignore
// file, found at the root of every configured watch directory, into
// per-media-type sibling files (.clopignore-images, .clopignore-videos,
// .clopignore-pdfs) each holding the same glob lines. This lets the
// watcher apply ignore rules per media type without re-parsing a shared
// file for every watcher goroutine (spec section 4.K's ".clopignore*"
// convention).
func migrateClopignoreToPerType(doc *document, configRoot string, log *corelog.Logger) {
	dirs := collectConfiguredDirs(doc)
	for _, dir := range dirs {
		legacy := filepath.Join(dir, ".clopignore")
		lines, err := readLines(legacy)
		if err != nil {
			continue
		}
		for _, suffix := range []string{"-images", "-videos", "-pdfs"} {
			dest := filepath.Join(dir, ".clopignore"+suffix)
			if _, statErr := os.Stat(dest); statErr == nil {
				continue // don't clobber a per-type file that already exists
			}
			if writeErr := writeLines(dest, lines); writeErr != nil {
				log.Printf("migration: failed to write %s: %v", dest, writeErr)
			}
		}
		if err := os.Remove(legacy); err != nil {
			log.Printf("migration: failed to remove legacy %s: %v", legacy, err)
		}
	}
}

func collectConfiguredDirs(doc *document) []string {
	seen := map[string]bool{}
	var out []string
	for _, key := range []string{ImageDirs.Name, VideoDirs.Name, PdfDirs.Name} {
		raw, ok := doc.Values[key]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		for _, v := range list {
			s, ok := v.(string)
			if !ok || s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
