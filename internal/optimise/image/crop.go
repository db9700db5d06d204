package image

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/settings"
)

// cropSuggestion is the result of the crop-suggestion service: a
// candidate bounding box within the source, and which method produced
// it. It never alters the output image — suggestCrop only persists it
// as a mask PNG in the crop cache under the config directory.
type cropSuggestion struct {
	Rect   image.Rectangle
	Source string // "onnx", "luminance", or "cached"
}

// suggestCrop attempts ONNX segmentation when a model path is configured,
// falling back to a luminance-thresholded bounding box otherwise.
// Results are cached by (stem, mtime): a prior pass over the exact same
// file leaves a mask PNG in the cache directory, and its mere presence
// short-circuits recomputation: a cache hit reports the full image bounds
// with Source "cached", and the rectangle in the mask is not read back.
func (o *Optimiser) suggestCrop(decoded image.Image, source corepath.FilePath) (cropSuggestion, error) {
	info, err := os.Stat(source.Value())
	if err != nil {
		return cropSuggestion{}, err
	}

	maskPath := o.cropMaskPath(source, info.ModTime())
	if _, statErr := os.Stat(maskPath); statErr == nil {
		return cropSuggestion{Rect: decoded.Bounds(), Source: "cached"}, nil
	}

	var suggestion cropSuggestion
	modelPath := settings.Get(o.Settings, settings.CropSegmentationModelPath)
	if modelPath != "" {
		if rect, ok := onnxSegment(modelPath, decoded); ok {
			suggestion = cropSuggestion{Rect: rect, Source: "onnx"}
		}
	}
	if suggestion.Source == "" {
		suggestion = cropSuggestion{Rect: luminanceThresholdCrop(decoded), Source: "luminance"}
	}

	if err := o.persistCropMask(maskPath, decoded, suggestion.Rect); err != nil {
		return suggestion, err
	}
	return suggestion, nil
}

func (o *Optimiser) cropMaskPath(source corepath.FilePath, mtime time.Time) string {
	stem := strings.TrimSuffix(filepath.Base(source.Value()), source.Extension())
	cacheKey := fmt.Sprintf("%s-%d", stem, mtime.UnixNano())
	return filepath.Join(o.Settings.ConfigDir(), "crop-cache", cacheKey+".png")
}

// onnxSegment would run subject segmentation through an ONNX runtime
// against modelPath. No ONNX runtime binding ships in this build (see
// the design ledger for why), so this always reports no suggestion and
// lets suggestCrop fall back to the luminance heuristic.
func onnxSegment(modelPath string, decoded image.Image) (image.Rectangle, bool) {
	return image.Rectangle{}, false
}

// luminanceThresholdCrop estimates a subject bounding box by comparing
// each pixel's luminance against the image's border luminance (the
// background estimate) and taking the bounding box of pixels that
// deviate from it by more than lumaDeviationThreshold. Falls back to the
// full bounds when nothing deviates enough to call a subject.
const lumaDeviationThreshold = 24.0

func luminanceThresholdCrop(img image.Image) image.Rectangle {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return bounds
	}

	backgroundLuma := estimateBorderLuma(img)

	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	found := false

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := luma(img.At(x, y))
			if abs(l-backgroundLuma) <= lumaDeviationThreshold {
				continue
			}
			found = true
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if !found {
		return bounds
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// estimateBorderLuma samples the outermost ring of pixels to approximate
// the background luminance a centred subject would stand out against.
func estimateBorderLuma(img image.Image) float64 {
	bounds := img.Bounds()
	var sum float64
	var n int
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		sum += luma(img.At(x, bounds.Min.Y))
		sum += luma(img.At(x, bounds.Max.Y-1))
		n += 2
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		sum += luma(img.At(bounds.Min.X, y))
		sum += luma(img.At(bounds.Max.X-1, y))
		n += 2
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// persistCropMask writes a binary mask PNG (white inside rect, black
// outside) alongside the cache entry for rect. It is diagnostic/cache
// state only — nothing reads it back into the encode pipeline.
func (o *Optimiser) persistCropMask(maskPath string, decoded image.Image, rect image.Rectangle) error {
	if err := os.MkdirAll(filepath.Dir(maskPath), 0o755); err != nil {
		return err
	}
	bounds := decoded.Bounds()
	mask := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if (image.Point{X: x, Y: y}.In(rect)) {
				mask.SetGray(x, y, color.Gray{Y: 0xFF})
			}
		}
	}

	f, err := os.Create(maskPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, mask)
}
