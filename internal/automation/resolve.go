package automation

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/settings"
)

// typeAliases lets an automation caller name a configured directory set
// ("images", "videos", "pdfs") instead of an absolute path.
var typeAliases = map[string]settings.Key[[]string]{
	"images": settings.ImageDirs,
	"videos": settings.VideoDirs,
	"pdfs":   settings.PdfDirs,
}

// typeNameAliases maps the include_types/exclude_types vocabulary
// ({image,images,video,videos,pdf,pdfs}) to the ItemType it filters on.
var typeNameAliases = map[string]corepath.ItemType{
	"image": corepath.Image, "images": corepath.Image,
	"video": corepath.Video, "videos": corepath.Video,
	"pdf": corepath.Pdf, "pdfs": corepath.Pdf,
}

// ResolveOptions mirrors the "optimise" intent payload's resolver
// knobs (spec 4.L).
type ResolveOptions struct {
	Recursive    bool
	IncludeTypes []string
	ExcludeTypes []string
}

// Resolver expands the path/alias list an automation intent supplies
// into the concrete file paths the coordinator should enqueue,
// rejecting anything inside a reserved work root (scratch conversion
// workspaces, the settings config directory) so automation callers
// can't be tricked into optimising the engine's own internal state.
type Resolver struct {
	Settings  *settings.Store
	WorkRoots []string
}

func NewResolver(store *settings.Store, workRoots ...string) *Resolver {
	return &Resolver{Settings: store, WorkRoots: workRoots}
}

// Resolve expands inputs (absolute paths, directories, or a type alias
// keyword) into a deduplicated, type-filtered list of file paths.
func (r *Resolver) Resolve(inputs []string, opts ResolveOptions) []corepath.FilePath {
	include := toTypeSet(opts.IncludeTypes)
	exclude := toTypeSet(opts.ExcludeTypes)

	var out []corepath.FilePath
	seen := map[string]bool{}

	add := func(path string) {
		fp, err := corepath.From(path)
		if err != nil {
			return
		}
		if r.isWorkRoot(fp.Value()) {
			return
		}
		itemType, ok := corepath.ClassifyExtension(fp.Extension())
		if !ok {
			return
		}
		if len(include) > 0 && !include[itemType] {
			return
		}
		if exclude[itemType] {
			return
		}
		key := strings.ToLower(fp.Value())
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, fp)
	}

	for _, in := range inputs {
		if key, ok := typeAliases[strings.ToLower(strings.TrimSpace(in))]; ok {
			for _, dir := range settings.Get(r.Settings, key) {
				r.expandDirectory(dir, opts.Recursive, add)
			}
			continue
		}

		info, err := os.Stat(in)
		if err != nil {
			continue
		}
		if info.IsDir() {
			r.expandDirectory(in, opts.Recursive, add)
			continue
		}
		add(in)
	}
	return out
}

func toTypeSet(names []string) map[corepath.ItemType]bool {
	set := map[corepath.ItemType]bool{}
	for _, n := range names {
		if t, ok := typeNameAliases[strings.ToLower(strings.TrimSpace(n))]; ok {
			set[t] = true
		}
	}
	return set
}

func (r *Resolver) expandDirectory(dir string, recursive bool, add func(string)) {
	if recursive {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			add(path)
			return nil
		})
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		add(filepath.Join(dir, entry.Name()))
	}
}

func (r *Resolver) isWorkRoot(path string) bool {
	for _, root := range r.WorkRoots {
		if root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if path == abs || strings.HasPrefix(path, abs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
