// Package outputplan implements the Output Planner (spec section 4.J):
// deciding where an optimiser's output lands and whether the source
// should be deleted afterward, from the source path, the final
// extension the optimiser produced, and the active output policy.
//
// No example repo carries an equivalent "where does the converted file
// go" decision — it's built directly from the spec's three named
// layouts (in-place replace, sibling .clop rename, format-change
// suffix) on top of corepath, the teacher-grounded path utility.
package outputplan

import (
	"path/filepath"
	"strings"

	"github.com/clopapp/clop/internal/corepath"
)

// clopTag is the marker inserted into a sibling filename so a later run
// never stacks it twice (name.clop.clop.jpg never happens).
const clopTag = ".clop"

// Policy carries the subset of settings the planner consults.
type Policy struct {
	ReplaceOriginal       bool
	DeleteConvertedSource bool
}

// Plan is the planner's decision.
type Plan struct {
	Destination  corepath.FilePath
	DeleteSource bool
}

// Resolve computes the destination path and delete-source decision for
// an optimisation of source that will produce output with extension
// finalExt (including the leading dot, e.g. ".webp").
func Resolve(source corepath.FilePath, finalExt string, policy Policy) Plan {
	finalExt = strings.ToLower(finalExt)
	sameFormat := finalExt == source.Extension()
	stem := strippedStem(source)

	if sameFormat {
		if policy.ReplaceOriginal {
			return Plan{Destination: source, DeleteSource: false}
		}
		dest := corepath.MustFrom(joinDir(source, stem+clopTag+finalExt))
		return Plan{Destination: dest, DeleteSource: false}
	}

	// Format changed (e.g. a document converted to PDF, or a video
	// transcoded to a different container): always a sibling, never an
	// in-place overwrite of a file with a different extension.
	dest := corepath.MustFrom(joinDir(source, stem+clopTag+finalExt))
	return Plan{Destination: dest, DeleteSource: policy.DeleteConvertedSource}
}

// strippedStem returns source's filename stem with any existing clopTag
// suffix removed, so re-optimising an already-tagged sibling doesn't
// stack the tag (name.clop.clop.jpg).
func strippedStem(source corepath.FilePath) string {
	stem := source.Stem()
	return strings.TrimSuffix(stem, clopTag)
}

func joinDir(source corepath.FilePath, filename string) string {
	return filepath.Join(source.Parent().Value(), filename)
}
