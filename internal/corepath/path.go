// Package corepath implements the Path & Fingerprint Utilities (spec
// component A): a typed absolute-path wrapper, temp-file allocation,
// content fingerprinting, and filename sanitisation. Grounded on
// snadrus/flicksqueeze's internal/paths package, generalised from a
// single hard-coded output convention to the general-purpose helpers
// spec.md names as operations.
package corepath

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FilePath wraps a validated, absolute, cleaned path. Its invariant:
// Value is always absolute and normalised; derived accessors never touch
// the filesystem except Exists.
type FilePath struct {
	value string
}

// From normalises s into an absolute FilePath. It fails on an empty
// string or a path that cannot be made absolute.
func From(s string) (FilePath, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FilePath{}, fmt.Errorf("corepath: invalid path: empty")
	}
	abs, err := filepath.Abs(filepath.Clean(s))
	if err != nil {
		return FilePath{}, fmt.Errorf("corepath: invalid path %q: %w", s, err)
	}
	return FilePath{value: abs}, nil
}

// MustFrom is From, panicking on error; reserved for constants/tests.
func MustFrom(s string) FilePath {
	p, err := From(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Value returns the absolute, normalised path string.
func (p FilePath) Value() string { return p.value }

// IsZero reports whether p was never initialised via From.
func (p FilePath) IsZero() bool { return p.value == "" }

// Parent returns the FilePath's containing directory.
func (p FilePath) Parent() FilePath { return FilePath{value: filepath.Dir(p.value)} }

// Stem returns the filename without its final extension.
func (p FilePath) Stem() string {
	base := filepath.Base(p.value)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// Extension returns the final extension including the leading dot,
// lower-cased (e.g. ".jpg").
func (p FilePath) Extension() string {
	return strings.ToLower(filepath.Ext(p.value))
}

// Base returns the final path element (filename with extension).
func (p FilePath) Base() string { return filepath.Base(p.value) }

// WithExtension returns a sibling FilePath with the stem kept and the
// extension replaced. ext should include the leading dot.
func (p FilePath) WithExtension(ext string) FilePath {
	return FilePath{value: filepath.Join(filepath.Dir(p.value), p.Stem()+ext)}
}

// Exists is the only accessor permitted to reach the OS.
func (p FilePath) Exists() bool {
	_, err := os.Stat(p.value)
	return err == nil
}

func (p FilePath) String() string { return p.value }

// TempFile allocates a path in the process temp area with the given
// prefix and extension. When unique is true a random suffix guarantees
// no collision with a concurrent allocation; otherwise the name is
// derived solely from prefix+extension.
func TempFile(prefix, extension string, unique bool) (FilePath, error) {
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	name := prefix
	if unique {
		id, err := NanoID(alphanumeric, 12)
		if err != nil {
			return FilePath{}, err
		}
		name = prefix + "-" + id
	}
	return From(filepath.Join(os.TempDir(), "clop", name+extension))
}

// reservedChars are the platform-reserved filename characters (the
// Windows-reserved set, since the engine must stay wire-compatible with
// the Windows sibling implementation per spec section 1).
const reservedChars = `:?/\*|"<>`

// SafeFilename replaces every platform-reserved character with "_",
// leaving all other characters untouched.
func SafeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(reservedChars, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FilepathGenerator expands a naming template against a source path and
// a counter, returning the generated FilePath and the incremented
// counter. "%f" expands to the source stem, "%i" expands to the
// zero-padded counter (width 3). The source's extension is preserved.
func FilepathGenerator(template string, source FilePath, counter int) (FilePath, int, error) {
	next := counter + 1
	expanded := strings.ReplaceAll(template, "%f", source.Stem())
	expanded = strings.ReplaceAll(expanded, "%i", fmt.Sprintf("%03d", counter))
	fp, err := From(filepath.Join(source.Parent().Value(), expanded+source.Extension()))
	return fp, next, err
}

const alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// NanoID returns a uniform-random identifier of exactly size characters
// drawn from alphabet, using crypto/rand for unbiased selection.
func NanoID(alphabet string, size int) (string, error) {
	if alphabet == "" {
		alphabet = alphanumeric
	}
	n := big.NewInt(int64(len(alphabet)))
	b := make([]byte, size)
	for i := range b {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("corepath: nano_id: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

// RequestID returns a 21-character nanoid, the conventional request_id
// shape used throughout the engine (matches the default nanoid length
// used by the upstream Windows implementation this engine mirrors).
func RequestID() (string, error) {
	return NanoID(alphanumeric, 21)
}

// ParseCounter extracts a trailing zero-padded integer from a generated
// name, used by callers that need to resume a FilepathGenerator sequence
// after a restart.
func ParseCounter(name string) (int, bool) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return 0, false
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}
