package outputplan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clopapp/clop/internal/corepath"
)

func TestResolve_SameFormatReplaceOriginal(t *testing.T) {
	src := corepath.MustFrom("/photos/beach.jpg")
	plan := Resolve(src, ".jpg", Policy{ReplaceOriginal: true})
	require.Equal(t, src, plan.Destination)
	require.False(t, plan.DeleteSource)
}

func TestResolve_SameFormatSiblingRename(t *testing.T) {
	src := corepath.MustFrom("/photos/beach.jpg")
	plan := Resolve(src, ".jpg", Policy{ReplaceOriginal: false})
	require.Equal(t, "beach.clop.jpg", plan.Destination.Base())
	require.False(t, plan.DeleteSource)
}

func TestResolve_FormatChangeUsesClopSuffixAndRespectsDeletePolicy(t *testing.T) {
	src := corepath.MustFrom("/photos/beach.png")
	plan := Resolve(src, ".webp", Policy{DeleteConvertedSource: true})
	require.Equal(t, "beach.clop.webp", plan.Destination.Base())
	require.True(t, plan.DeleteSource)
}

func TestResolve_IdempotentNamingDoesNotStackClopTag(t *testing.T) {
	src := corepath.MustFrom("/photos/beach.clop.jpg")
	plan := Resolve(src, ".jpg", Policy{ReplaceOriginal: false})
	require.Equal(t, "beach.clop.jpg", plan.Destination.Base())
}
