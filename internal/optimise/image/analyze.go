package image

import (
	"image"
	"image/color"
)

// contentClass is the coarse content bucket spec section 4.E's content
// analysis step sorts a decoded image into, driving save-profile choice.
type contentClass int

const (
	classPhotograph contentClass = iota
	classGraphic
	classDocument
)

// classify samples img on a coarse grid and buckets it by how many
// distinct quantised colours it contains relative to sample count: a
// photograph has near-unique colours everywhere, a graphic/screenshot
// has long runs of flat colour, and a document is overwhelmingly near-
// white with sparse dark strokes. No corpus example implements content
// classification, so this is a direct, stdlib-only reading of the
// spec's three buckets (documented in the design ledger).
func classify(img image.Image) contentClass {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return classPhotograph
	}

	const gridStep = 7
	seen := map[uint32]int{}
	samples := 0
	nearWhite := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y += gridStep {
		for x := bounds.Min.X; x < bounds.Max.X; x += gridStep {
			r, g, b, _ := img.At(x, y).RGBA()
			key := quantize(r) <<16 | quantize(g)<<8 | quantize(b)
			seen[key]++
			samples++
			if r > 0xE000 && g > 0xE000 && b > 0xE000 {
				nearWhite++
			}
		}
	}
	if samples == 0 {
		return classPhotograph
	}

	distinctRatio := float64(len(seen)) / float64(samples)
	whiteRatio := float64(nearWhite) / float64(samples)

	switch {
	case whiteRatio > 0.80 && distinctRatio < 0.15:
		return classDocument
	case distinctRatio < 0.20:
		return classGraphic
	default:
		return classPhotograph
	}
}

func quantize(c uint32) uint32 {
	return (c >> 8) &^ 0x0F // drop to 4 effective bits per channel
}

// ssimC1 and ssimC2 are the stabilising constants from the spec's exact
// perceptual-guard formula (derived from (K1*L)^2, (K2*L)^2 with K1=0.01,
// K2=0.03, L=255).
const (
	ssimC1 = 6.5025
	ssimC2 = 58.5225
)

// computeSSIM returns the structural similarity index between a and b,
// which must share dimensions. This computes a single global-window
// SSIM over luma (not the sliding 11x11-Gaussian-window form some
// implementations use) — a deliberate simplification appropriate for a
// whole-image accept/reject guard rather than a per-pixel quality map,
// using the spec's exact C1/C2 constants.
func computeSSIM(a, b image.Image) float64 {
	boundsA := a.Bounds()
	boundsB := b.Bounds()
	w := min(boundsA.Dx(), boundsB.Dx())
	h := min(boundsA.Dy(), boundsB.Dy())
	if w == 0 || h == 0 {
		return 0
	}

	var sumA, sumB, sumA2, sumB2, sumAB float64
	n := 0.0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			la := luma(a.At(boundsA.Min.X+x, boundsA.Min.Y+y))
			lb := luma(b.At(boundsB.Min.X+x, boundsB.Min.Y+y))
			sumA += la
			sumB += lb
			sumA2 += la * la
			sumB2 += lb * lb
			sumAB += la * lb
			n++
		}
	}

	meanA := sumA / n
	meanB := sumB / n
	varA := sumA2/n - meanA*meanA
	varB := sumB2/n - meanB*meanB
	covAB := sumAB/n - meanA*meanB

	numerator := (2*meanA*meanB + ssimC1) * (2*covAB + ssimC2)
	denominator := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	if denominator == 0 {
		return 1
	}
	return numerator / denominator
}

func luma(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}
