package corepath

import "strings"

// ItemType enumerates the media families the engine understands (spec
// section 3 data model).
type ItemType string

const (
	Image          ItemType = "Image"
	Video          ItemType = "Video"
	Pdf            ItemType = "Pdf"
	Document       ItemType = "Document"
	ClipboardImage ItemType = "ClipboardImage"
	ClipboardVideo ItemType = "ClipboardVideo"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".gif": true, ".tif": true, ".tiff": true, ".heic": true, ".webp": true,
}

// wicSupportedExtensions is the subset of imageExtensions eligible for
// the Image Optimiser's WIC-style fast path (spec 4.E step 2).
var wicSupportedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".gif": true, ".tif": true, ".tiff": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".m4v": true, ".mpg": true, ".mpeg": true, ".ts": true,
	".webm": true, ".vob": true, ".gif": true,
}

var documentExtensions = map[string]bool{
	".doc": true, ".docx": true, ".ppt": true, ".pptx": true,
	".xls": true, ".xlsx": true, ".odt": true, ".odp": true, ".ods": true,
	".rtf": true,
}

// ClassifyExtension returns the ItemType a bare file extension
// (including leading dot, any case) belongs to, and ok=false when no
// optimiser family recognises it.
func ClassifyExtension(ext string) (ItemType, bool) {
	ext = strings.ToLower(ext)
	switch {
	case ext == ".pdf":
		return Pdf, true
	case imageExtensions[ext]:
		return Image, true
	case videoExtensions[ext] && ext != ".gif":
		return Video, true
	case documentExtensions[ext]:
		return Document, true
	}
	return "", false
}

// IsWICFastPathEligible reports whether ext belongs to the WIC-supported
// extension set used by the Image Optimiser's fast path.
func IsWICFastPathEligible(ext string) bool {
	return wicSupportedExtensions[strings.ToLower(ext)]
}

// IsDocumentExtension reports whether ext is a convertible office
// document extension (spec 4.I).
func IsDocumentExtension(ext string) bool {
	return documentExtensions[strings.ToLower(ext)]
}

// IsVideoExtension reports whether ext belongs to the video family,
// including ".gif" (an animated-export target, not just a source).
func IsVideoExtension(ext string) bool {
	return videoExtensions[strings.ToLower(ext)]
}

// IsImageExtension reports whether ext belongs to the image family.
func IsImageExtension(ext string) bool {
	return imageExtensions[strings.ToLower(ext)]
}
