package watcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/clopapp/clop/internal/corepath"
)

// ignoreFileName maps an item family to the per-type ignore file spec
// section 6's settings migration introduces (settings.migrateClopignoreToPerType):
// one monolithic .clopignore became .clopignore-images/-videos/-pdfs.
func ignoreFileName(t corepath.ItemType) string {
	switch t {
	case corepath.Image, corepath.ClipboardImage:
		return ".clopignore-images"
	case corepath.Video, corepath.ClipboardVideo:
		return ".clopignore-videos"
	default:
		return ".clopignore-pdfs"
	}
}

// ignoreSet holds the compiled glob patterns for one watched root,
// matched with doublestar the way standardbeagle-lci's FileScanner
// matches its exclude/include lists.
type ignoreSet struct {
	patterns []string
}

func loadIgnoreSet(root string, itemType corepath.ItemType) *ignoreSet {
	raw, err := os.ReadFile(filepath.Join(root, ignoreFileName(itemType)))
	if err != nil {
		return &ignoreSet{}
	}
	var patterns []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return &ignoreSet{patterns: patterns}
}

func (s *ignoreSet) matches(root, path string) bool {
	if len(s.patterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)
	for _, pattern := range s.patterns {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}

// isOwnOutput reports whether path is the optimiser's own output or a
// transient artifact (outputplan's .clop tag, coordinator's advisory
// lock sibling, or a temp file), which must never be re-enqueued.
func isOwnOutput(path string) bool {
	base := filepath.Base(path)
	return strings.Contains(base, ".clop.") ||
		strings.HasSuffix(base, ".clop-lock") ||
		strings.HasSuffix(base, ".clop-tmp") ||
		strings.Contains(base, ".clop-tmp.")
}
