package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/request"
)

func TestOptimise_RejectsNonDocumentExtension(t *testing.T) {
	o := New("soffice", nil)
	src := filepath.Join(t.TempDir(), "image.jpg")
	require.NoError(t, os.WriteFile(src, []byte("not really a jpeg"), 0o644))

	req := request.Request{ID: "doc-1", ItemType: corepath.Document, SourcePath: corepath.MustFrom(src)}
	_, err := o.Optimise(context.Background(), req, func(request.Progress) {})
	require.Error(t, err)
}
