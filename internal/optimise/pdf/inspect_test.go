package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFakePDF(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"+body), 0o644))
	return path
}

func TestInspect_DetectsEncryption(t *testing.T) {
	path := writeFakePDF(t, "1 0 obj << /Encrypt 2 0 R >> endobj")
	info, err := inspect(path)
	require.NoError(t, err)
	require.True(t, info.Encrypted)
}

func TestInspect_RejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))
	_, err := inspect(path)
	require.ErrorIs(t, err, errNotAPDF)
}

func TestProfile_ImageHeavyDocumentIsGraphics(t *testing.T) {
	body := ""
	for i := 0; i < 3; i++ {
		body += "/Type /Page endobj "
		body += "/Subtype /Image endobj "
		body += "/Subtype /Image endobj "
	}
	path := writeFakePDF(t, body)
	info, err := inspect(path)
	require.NoError(t, err)
	require.Equal(t, profileGraphics, info.profile())
}

func TestProfile_TextOnlyDocumentIsText(t *testing.T) {
	body := ""
	for i := 0; i < 10; i++ {
		body += "/Type /Page endobj "
	}
	path := writeFakePDF(t, body)
	info, err := inspect(path)
	require.NoError(t, err)
	require.Equal(t, profileText, info.profile())
}

func TestParsePageLine_ExtractsPageNumber(t *testing.T) {
	n, ok := parsePageLine("Page 7")
	require.True(t, ok)
	require.Equal(t, 7, n)

	_, ok = parsePageLine("Processing pages 1 through 10")
	require.False(t, ok)
}
