package image

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	jpegSOI        = 0xD8
	jpegAPP1Marker = 0xE1
	exifHeader     = "Exif\x00\x00"
)

// extractEXIFSegment scans raw JPEG bytes for the first APP1 segment
// carrying an Exif header and returns it from the marker byte on (the
// 0xE1 after the leading 0xFF, then the two-byte length, the
// "Exif\0\0" prefix and the TIFF payload), ready to be re-spliced into a freshly encoded
// JPEG. ok is false for non-JPEG sources or JPEGs with no EXIF segment.
func extractEXIFSegment(raw []byte) (segment []byte, ok bool) {
	if len(raw) < 4 || raw[0] != 0xFF || raw[1] != jpegSOI {
		return nil, false
	}
	i := 2
	for i+4 <= len(raw) && raw[i] == 0xFF {
		marker := raw[i+1]
		if marker == 0xD9 || marker == 0xDA { // EOI or start-of-scan: no more markers
			break
		}
		length := int(raw[i+2])<<8 | int(raw[i+3])
		if length < 2 || i+2+length > len(raw) {
			break
		}
		payload := raw[i+2 : i+2+length]
		if marker == jpegAPP1Marker && bytes.HasPrefix(payload[2:], []byte(exifHeader)) {
			full := raw[i+1 : i+2+length] // marker byte + length + payload
			return full, true
		}
		i += 2 + length
	}
	return nil, false
}

// containsGPSTags reports whether an extracted EXIF segment's TIFF
// payload carries a GPS IFD pointer, used to honour StripGPS even when
// the caller otherwise wants metadata preserved. goexif only decodes
// EXIF (it has no encoder), so GPS removal here means dropping the
// whole segment rather than surgically removing just the GPS IFD.
func containsGPSTags(segment []byte) bool {
	if len(segment) < 4+len(exifHeader) {
		return false
	}
	tiffData := segment[3+len(exifHeader):] // marker(1) + length(2) + "Exif\0\0"
	x, err := exif.Decode(bytes.NewReader(tiffData))
	if err != nil {
		return false
	}
	_, err = x.Get(exif.GPSLatitude)
	return err == nil
}

// orientationTag is the EXIF IFD0 tag ID carrying the orientation value
// (TIFF tag 0x0112), stored inline as a SHORT since it always has count 1.
const orientationTag = 0x0112

// normalizeOrientationTag rewrites the Orientation IFD entry inside an
// APP1 segment (as returned by extractEXIFSegment) to 1, leaving every
// other tag untouched. imaging.Open(..., AutoOrientation(true)) already
// rotates the decoded pixels upright, so splicing the source's original,
// unmodified orientation value back onto the output would tell EXIF-
// aware viewers to rotate an image that is already the right way up.
// Returns segment unchanged if the TIFF structure can't be parsed
// confidently rather than risk corrupting it.
func normalizeOrientationTag(segment []byte) []byte {
	tiffStart := 3 + len(exifHeader) // marker(1) + length(2) + "Exif\0\0"
	if tiffStart+8 > len(segment) {
		return segment
	}
	tiff := segment[tiffStart:]

	var bigEndian bool
	switch string(tiff[0:2]) {
	case "II":
		bigEndian = false
	case "MM":
		bigEndian = true
	default:
		return segment
	}

	readU16 := func(b []byte) int {
		if bigEndian {
			return int(b[0])<<8 | int(b[1])
		}
		return int(b[1])<<8 | int(b[0])
	}
	readU32 := func(b []byte) int {
		if bigEndian {
			return int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
		}
		return int(b[3])<<24 | int(b[2])<<16 | int(b[1])<<8 | int(b[0])
	}

	ifdOffset := readU32(tiff[4:8])
	if ifdOffset < 0 || ifdOffset+2 > len(tiff) {
		return segment
	}
	numEntries := readU16(tiff[ifdOffset : ifdOffset+2])
	entriesStart := ifdOffset + 2

	out := make([]byte, len(segment))
	copy(out, segment)
	outTiff := out[tiffStart:]

	for i := 0; i < numEntries; i++ {
		entryOffset := entriesStart + i*12
		if entryOffset+12 > len(tiff) {
			break
		}
		entry := tiff[entryOffset : entryOffset+12]
		tag := readU16(entry[0:2])
		if tag != orientationTag {
			continue
		}
		typ := readU16(entry[2:4])
		if typ != 3 { // SHORT
			break
		}
		valueOffset := entryOffset + 8
		if bigEndian {
			outTiff[valueOffset] = 0
			outTiff[valueOffset+1] = 1
		} else {
			outTiff[valueOffset] = 1
			outTiff[valueOffset+1] = 0
		}
		break
	}
	return out
}

// spliceAfterSOI inserts an APP1 marker segment (as returned by
// extractEXIFSegment, without the leading 0xFF) immediately after a
// JPEG's SOI marker.
func spliceAfterSOI(jpegData []byte, app1Segment []byte) []byte {
	if len(jpegData) < 2 {
		return jpegData
	}
	out := make([]byte, 0, len(jpegData)+len(app1Segment)+1)
	out = append(out, jpegData[:2]...) // SOI
	out = append(out, 0xFF)
	out = append(out, app1Segment...)
	out = append(out, jpegData[2:]...)
	return out
}
