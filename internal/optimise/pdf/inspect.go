package pdf

import (
	"bytes"
	"os"
	"regexp"
)

// inspection holds the cheap structural facts Ghostscript invocation
// planning needs. No example repo carries a PDF-structure reader, and
// pulling in a full PDF parser library for a handful of presence checks
// is disproportionate, so this scans the raw bytes directly — a
// standard-library approach justified in the design ledger.
type inspection struct {
	Encrypted     bool
	PageCount     int
	ImageXObjects int
	SizeBytes     int64
}

var (
	encryptRe = regexp.MustCompile(`/Encrypt\s`)
	pageRe    = regexp.MustCompile(`/Type\s*/Page[^s]`)
	imageRe   = regexp.MustCompile(`/Subtype\s*/Image`)
)

func inspect(path string) (*inspection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(raw, []byte("%PDF-")) {
		return nil, errNotAPDF
	}
	return &inspection{
		Encrypted:     encryptRe.Match(raw),
		PageCount:     len(pageRe.FindAll(raw, -1)),
		ImageXObjects: len(imageRe.FindAll(raw, -1)),
		SizeBytes:     int64(len(raw)),
	}, nil
}

// contentProfile buckets the document for save-profile selection (spec
// 4.H): image-heavy documents favour aggressive recompression, text-
// heavy documents favour font subsetting and light recompression.
type contentProfile string

const (
	profileGraphics contentProfile = "Graphics"
	profileText     contentProfile = "Text"
	profileMixed    contentProfile = "Mixed"
)

func (i *inspection) profile() contentProfile {
	if i.PageCount == 0 {
		return profileMixed
	}
	imagesPerPage := float64(i.ImageXObjects) / float64(i.PageCount)
	switch {
	case imagesPerPage >= 1.5:
		return profileGraphics
	case imagesPerPage < 0.2:
		return profileText
	default:
		return profileMixed
	}
}
