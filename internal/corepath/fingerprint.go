package corepath

import (
	"crypto/sha256"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

const fingerprintReadSize = 16 * 1024

// Fingerprint is the (size, mtime, first-16KiB-sha256) tuple spec.md's
// data model uses to distinguish file contents for short-term
// deduplication. FastKey is not part of the spec tuple; it is a
// xxhash-derived map key (grounded on standardbeagle/lci's
// FastHash/ContentHash pairing in file_content_store.go) so registries
// keyed by Fingerprint avoid hashing the full digest on every lookup.
type Fingerprint struct {
	SizeBytes       int64
	LastWriteTicks  int64
	Head16KiBSHA256 [32]byte
}

// Equal reports whether two fingerprints imply "same content with very
// high probability" per spec.md's data model.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.SizeBytes == o.SizeBytes &&
		f.LastWriteTicks == o.LastWriteTicks &&
		f.Head16KiBSHA256 == o.Head16KiBSHA256
}

// FastKey returns a cheap, collision-tolerant map key derived from the
// fingerprint, suitable for bucketing in the recent-optimised registry.
func (f Fingerprint) FastKey() uint64 {
	h := xxhash.New()
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(f.SizeBytes >> (8 * i))
	}
	for i := 0; i < 8; i++ {
		buf[8+i] = byte(f.LastWriteTicks >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	_, _ = h.Write(f.Head16KiBSHA256[:])
	return h.Sum64()
}

// TryCreateFingerprint opens path best-effort and returns nil on any IO
// failure rather than propagating an error, matching spec.md's
// Option-returning contract for Fingerprint::try_create.
func TryCreateFingerprint(path string) *Fingerprint {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, fingerprintReadSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil
	}

	return &Fingerprint{
		SizeBytes:       info.Size(),
		LastWriteTicks:  info.ModTime().UnixNano(),
		Head16KiBSHA256: sha256.Sum256(buf[:n]),
	}
}
