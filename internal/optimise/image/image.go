// Package image implements the Image Optimiser: a WIC-style fast
// re-encode path, content-aware save-profile selection, retina
// downscaling, EXIF/GPS metadata policy, and a perceptual SSIM guard
// that rejects any candidate that looks visibly worse than the source
// even if it's smaller.
//
// The imaging+webp encode pipeline (imaging.Open/AutoOrientation,
// imaging.Resize Lanczos, webp.Encode, jpeg.Encode) is generalised from
// a fixed-size-variant generator into a single best-candidate
// optimiser.
package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // registers image.Decode support for .bmp sources
	_ "golang.org/x/image/tiff" // registers image.Decode support for .tif/.tiff sources

	"github.com/clopapp/clop/internal/coreerr"
	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/optimise"
	"github.com/clopapp/clop/internal/outputplan"
	"github.com/clopapp/clop/internal/request"
	"github.com/clopapp/clop/internal/settings"
)

// Optimiser implements optimise.Optimiser for corepath.Image.
type Optimiser struct {
	Settings *settings.Store
}

func New(store *settings.Store) *Optimiser {
	return &Optimiser{Settings: store}
}

func (o *Optimiser) ItemType() corepath.ItemType { return corepath.Image }

func (o *Optimiser) Optimise(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
	start := time.Now()
	report(request.Progress{RequestID: req.ID, Percent: 5, Phase: "Analysing"})

	source := req.SourcePath
	rawBytes, err := os.ReadFile(source.Value())
	if err != nil {
		return request.Result{}, coreerr.Wrap(coreerr.IOFailure, "reading source image", err)
	}
	originalSize := int64(len(rawBytes))

	if cfg, _, cfgErr := image.DecodeConfig(bytes.NewReader(rawBytes)); cfgErr == nil {
		maxDim := settings.Get(o.Settings, settings.MaxImageDimensionPixels)
		maxPixels := settings.Get(o.Settings, settings.MaxImagePixelCount)
		pixels := cfg.Width * cfg.Height
		if (maxDim > 0 && (cfg.Width > maxDim || cfg.Height > maxDim)) || (maxPixels > 0 && pixels > maxPixels) {
			return request.Result{}, coreerr.New(coreerr.InputDimensionExceeded,
				fmt.Sprintf("image %dx%d exceeds configured limits", cfg.Width, cfg.Height))
		}
	}

	opened, err := imaging.Open(source.Value(), imaging.AutoOrientation(true))
	if err != nil {
		return request.Result{}, coreerr.Wrap(coreerr.UnsupportedType, "decoding image", err)
	}
	decoded := imaging.Clone(opened)

	var decodedImg image.Image = decoded
	class := classify(decodedImg)

	if settings.Get(o.Settings, settings.EnableCropSuggestions) {
		// Best-effort only: a cache I/O failure here must never fail the
		// optimisation itself, since the suggestion never feeds the
		// encode pipeline.
		_, _ = o.suggestCrop(decodedImg, source)
	}

	if settings.Get(o.Settings, settings.DownscaleRetina) {
		decoded = downscaleToLongEdge(decoded, settings.Get(o.Settings, settings.RetinaLongEdgePixels))
	}

	report(request.Progress{RequestID: req.ID, Percent: 30, Phase: "Encoding"})

	best, err := o.bestCandidate(decoded, source, originalSize, class)
	if err != nil {
		return request.Result{}, coreerr.Wrap(coreerr.EncodeFailed, "encoding candidate", err)
	}

	if settings.Get(o.Settings, settings.EnablePerceptualGuard) {
		report(request.Progress{RequestID: req.ID, Percent: 60, Phase: "Verifying"})
		candidateImg, decErr := decodeBytes(best.bytes)
		if decErr == nil {
			score := computeSSIM(decoded, candidateImg)
			threshold := float64(settings.Get(o.Settings, settings.SSIMThreshold)) / 100.0
			if score < threshold && settings.Get(o.Settings, settings.RejectWhenBelowThreshold) {
				return succeededWithSource(req, start, fmt.Sprintf("perceptual guard rejected candidate (ssim=%.4f < %.4f)", score, threshold)), coreerr.New(coreerr.PerceptualRejection, "ssim below threshold")
			}
		}
	}

	if settings.Get(o.Settings, settings.RequireSizeImprovement) && int64(len(best.bytes)) >= originalSize {
		return succeededWithSource(req, start, "candidate was not smaller than the source"), coreerr.New(coreerr.NoSizeImprovement, "no size improvement")
	}

	finalBytes := o.applyMetadataPolicy(best, rawBytes)

	plan := outputplan.Resolve(source, best.ext, outputplan.Policy{
		ReplaceOriginal:       settings.Get(o.Settings, settings.OutputReplaceOriginal),
		DeleteConvertedSource: settings.Get(o.Settings, settings.OutputDeleteConvertedSource),
	})

	report(request.Progress{RequestID: req.ID, Percent: 85, Phase: "Writing"})
	if err := writeAtomic(plan.Destination.Value(), finalBytes); err != nil {
		return request.Result{}, coreerr.Wrap(coreerr.IOFailure, "writing output", err)
	}
	if plan.DeleteSource && plan.Destination.Value() != source.Value() {
		_ = os.Remove(source.Value())
	}

	report(request.Progress{RequestID: req.ID, Percent: 100, Phase: "Done"})
	outPath := plan.Destination
	return request.Result{
		RequestID:  req.ID,
		Status:     request.Succeeded,
		OutputPath: &outPath,
		Message:    fmt.Sprintf("%d -> %d bytes", originalSize, len(finalBytes)),
		Duration:   time.Since(start),
	}, nil
}

func succeededWithSource(req request.Request, start time.Time, message string) request.Result {
	src := req.SourcePath
	return request.Result{
		RequestID:  req.ID,
		Status:     request.Succeeded,
		OutputPath: &src,
		Message:    message,
		Duration:   time.Since(start),
	}
}

func downscaleToLongEdge(img *image.NRGBA, longEdge int) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= longEdge && h <= longEdge {
		return img
	}
	var newW, newH int
	if w >= h {
		newW = longEdge
		newH = int(float64(h) * float64(longEdge) / float64(w))
	} else {
		newH = longEdge
		newW = int(float64(w) * float64(longEdge) / float64(h))
	}
	// force even dimensions, required by several downstream codecs' chroma subsampling
	newW -= newW % 2
	newH -= newH % 2
	return imaging.Resize(img, newW, newH, imaging.Lanczos)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(parentDir(path), ".clop-img-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func parentDir(path string) string {
	return corepath.MustFrom(path).Parent().Value()
}

// bestCandidate encodes one or more contenders and returns the smallest,
// trying the source's native format first (the WIC fast path) and, when
// advanced codecs are enabled, a WebP re-encode as a second contender.
// class raises the quality floor on both contenders for graphics and
// document scans (see encodeWebPCandidate, encodeNative).
func (o *Optimiser) bestCandidate(decoded *image.NRGBA, source corepath.FilePath, originalSize int64, class contentClass) (candidate, error) {
	origExt := source.Extension()
	var candidates []candidate

	if settings.Get(o.Settings, settings.UseWICFastPath) && corepath.IsWICFastPathEligible(origExt) {
		native, err := o.encodeNative(decoded, origExt, originalSize, class)
		if err != nil {
			return candidate{}, err
		}
		candidates = append(candidates, native)
	}

	if settings.Get(o.Settings, settings.EnableAdvancedCodecs) && origExt != ".webp" {
		if webpCand, err := o.encodeWebPCandidate(decoded, class); err == nil {
			candidates = append(candidates, webpCand)
		}
	}

	if origExt == ".webp" {
		if webpCand, err := o.encodeWebPCandidate(decoded, class); err == nil {
			candidates = append(candidates, webpCand)
		}
	}

	if len(candidates) == 0 {
		// No codec in this build can re-encode the source format (e.g.
		// HEIC): fall back to the untouched bytes so the size-improvement
		// gate naturally reports NoSizeImprovement.
		raw, err := os.ReadFile(source.Value())
		if err != nil {
			return candidate{}, err
		}
		return candidate{ext: origExt, bytes: raw}, nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c.bytes) < len(best.bytes) {
			best = c
		}
	}
	return best, nil
}

// encodeWebPCandidate picks the WebP quality target depending on the
// image's content bucket (see bestCandidate): graphics and document
// scans keep the same near-lossless floor as their JPEG counterpart
// since flat colour and text show chroma-subsampling artifacts that a
// photograph would hide at the same quality setting.
func (o *Optimiser) encodeWebPCandidate(decoded *image.NRGBA, class contentClass) (candidate, error) {
	quality := settings.Get(o.Settings, settings.TargetJpegQuality)
	if class != classPhotograph && quality < nonPhotoMinJpegQuality {
		quality = nonPhotoMinJpegQuality
	}
	b, err := encodeWebP(decoded, quality)
	if err != nil {
		return candidate{}, err
	}
	return candidate{ext: ".webp", quality: quality, bytes: b}, nil
}

// encodeNative re-encodes into the source's own format, except where the
// save-profile rule redirects it: GIF sources always stay GIF via a
// real encoder, and a non-alpha photographic PNG/BMP/TIFF
// source converts to JPEG instead of round-tripping through PNG. For
// JPEG sources (native or profile-redirected), graphics and document
// scans keep a higher quality floor than photographs: the same
// bisection ceiling lets through more visible artifacts on flat colour
// and text than it does on a photograph, so the minimum acceptable
// quality is raised rather than left at the photograph floor.
func (o *Optimiser) encodeNative(decoded *image.NRGBA, ext string, originalSize int64, class contentClass) (candidate, error) {
	switch ext {
	case ".jpg", ".jpeg":
		return o.encodeAsJPEG(decoded, originalSize, class)
	case ".gif":
		b, err := encodeGIF(decoded)
		if err != nil {
			return candidate{}, err
		}
		return candidate{ext: ".gif", bytes: b}, nil
	default: // .png, .bmp, .tif, .tiff
		if class == classPhotograph && !hasAlpha(decoded) {
			return o.encodeAsJPEG(decoded, originalSize, class)
		}
		b, err := encodePNG(decoded)
		if err != nil {
			return candidate{}, err
		}
		// Always claim the extension the bytes actually are: a
		// non-photographic BMP/TIFF source lands here producing PNG
		// bytes, so the output must say .png too.
		return candidate{ext: ".png", bytes: b}, nil
	}
}

func (o *Optimiser) encodeAsJPEG(decoded *image.NRGBA, originalSize int64, class contentClass) (candidate, error) {
	minQ := settings.Get(o.Settings, settings.MinJpegFallbackQuality)
	maxQ := settings.Get(o.Settings, settings.TargetJpegQuality)
	if maxQ < minQ {
		maxQ = minQ
	}
	if class != classPhotograph && minQ < nonPhotoMinJpegQuality {
		minQ = nonPhotoMinJpegQuality
		if minQ > maxQ {
			minQ = maxQ
		}
	}
	return bisectJPEGQuality(decoded, minQ, maxQ, originalSize)
}

// hasAlpha reports whether any pixel in img carries partial or full
// transparency, driving the non-alpha photographic PNG/BMP/TIFF/HEIC ->
// JPEG save-profile rule.
func hasAlpha(img *image.NRGBA) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		rowStart := img.PixOffset(bounds.Min.X, y)
		row := img.Pix[rowStart : rowStart+bounds.Dx()*4]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 0xFF {
				return true
			}
		}
	}
	return false
}

// nonPhotoMinJpegQuality is the quality floor applied to graphics and
// document scans re-encoded as JPEG, above the photograph floor because
// compression artifacts are more visible on flat colour and text.
const nonPhotoMinJpegQuality = 85

// applyMetadataPolicy re-attaches (or strips) the source's EXIF segment
// on the winning JPEG candidate per the PreserveMetadata/StripGPS
// settings. Non-JPEG outputs pass through unchanged since neither PNG
// nor WebP here carry an EXIF container worth preserving.
func (o *Optimiser) applyMetadataPolicy(best candidate, originalBytes []byte) []byte {
	if best.ext != ".jpg" && best.ext != ".jpeg" {
		return best.bytes
	}
	if !settings.Get(o.Settings, settings.PreserveMetadata) {
		return best.bytes
	}
	segment, ok := extractEXIFSegment(originalBytes)
	if !ok {
		return best.bytes
	}
	if settings.Get(o.Settings, settings.StripGPS) && containsGPSTags(segment) {
		return best.bytes
	}
	return spliceAfterSOI(best.bytes, normalizeOrientationTag(segment))
}
