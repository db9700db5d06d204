package image

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/request"
	"github.com/clopapp/clop/internal/settings"
)

func writeSampleJPEG(t *testing.T, path string, quality int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 7) % 256),
				G: uint8((y * 13) % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: quality}))
}

func newTestOptimiser(t *testing.T) *Optimiser {
	t.Helper()
	store, err := settings.Open(t.TempDir())
	require.NoError(t, err)
	return New(store)
}

func TestOptimise_ProducesSmallerJPEGAndMarksSucceeded(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeSampleJPEG(t, src, 100)

	o := newTestOptimiser(t)
	settings.Set(o.Settings, settings.EnablePerceptualGuard, false)

	req := request.Request{ID: "img-1", ItemType: corepath.Image, SourcePath: corepath.MustFrom(src)}
	var progressed bool
	result, err := o.Optimise(context.Background(), req, func(p request.Progress) { progressed = true })

	require.NoError(t, err)
	require.Equal(t, request.Succeeded, result.Status)
	require.True(t, progressed)
	require.NotNil(t, result.OutputPath)

	info, statErr := os.Stat(result.OutputPath.Value())
	require.NoError(t, statErr)
	originalInfo, _ := os.Stat(src)
	require.LessOrEqual(t, info.Size(), originalInfo.Size())
}

func TestOptimise_NoSizeImprovementKeepsSourceAndSucceeds(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeSampleJPEG(t, src, 10) // already heavily compressed; re-encode can't beat it

	o := newTestOptimiser(t)
	settings.Set(o.Settings, settings.MinJpegFallbackQuality, 95)
	settings.Set(o.Settings, settings.TargetJpegQuality, 100)
	settings.Set(o.Settings, settings.EnablePerceptualGuard, false)

	req := request.Request{ID: "img-2", ItemType: corepath.Image, SourcePath: corepath.MustFrom(src)}
	result, _ := o.Optimise(context.Background(), req, func(request.Progress) {})

	require.Equal(t, request.Succeeded, result.Status)
	require.Equal(t, src, result.OutputPath.Value())
}
