package image

import (
	"bytes"
	"image"
	"image/gif"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
)

// candidate is one encoded contender for the final output.
type candidate struct {
	ext     string
	quality int
	bytes   []byte
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeGIF re-encodes img as a real GIF, quantizing through the
// standard library's default Plan9 quantizer since decoded sources here
// are always full-colour NRGBA, never already paletted.
func encodeGIF(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBytes(b []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(b))
}

// bisectJPEGQuality searches for the highest JPEG quality (<= maxQuality)
// whose encoded size is no larger than sizeCeiling, using at most 8
// probes (spec 4.E's bisection bound). It returns the best candidate
// found even if no probe satisfies sizeCeiling, so the caller can still
// evaluate it against the perceptual guard and size-improvement rule.
func bisectJPEGQuality(img image.Image, minQuality, maxQuality int, sizeCeiling int64) (candidate, error) {
	const maxProbes = 8

	lo, hi := minQuality, maxQuality
	var bestUnderCeiling candidate
	var smallestSeen candidate
	haveUnderCeiling := false
	haveSmallest := false

	for probe := 0; probe < maxProbes && lo <= hi; probe++ {
		mid := (lo + hi) / 2
		b, err := encodeJPEG(img, mid)
		if err != nil {
			return candidate{}, err
		}
		cand := candidate{ext: ".jpg", quality: mid, bytes: b}

		if !haveSmallest || len(b) < len(smallestSeen.bytes) {
			smallestSeen = cand
			haveSmallest = true
		}
		if int64(len(b)) <= sizeCeiling {
			if !haveUnderCeiling || mid > bestUnderCeiling.quality {
				bestUnderCeiling = cand
				haveUnderCeiling = true
			}
			lo = mid + 1 // try a higher (better-looking) quality that still fits
		} else {
			hi = mid - 1
		}
	}

	if haveUnderCeiling {
		return bestUnderCeiling, nil
	}
	return smallestSeen, nil
}
