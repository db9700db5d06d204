package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildArgs_RemuxCopiesStreamsWithoutReencoding(t *testing.T) {
	args := buildArgs(plan{remux: true}, "in.avi", "out.mp4", 1, "")
	require.Contains(t, args, "-c")
	require.Contains(t, args, "copy")
	require.NotContains(t, args, "-crf")
}

func TestBuildArgs_BitrateTargetedEncodeOmitsCRF(t *testing.T) {
	p := plan{videoCodec: "h264_nvenc", targetBitrate: 2_000_000}
	args := buildArgs(p, "in.mp4", "out.mp4", 1, "")
	require.Contains(t, args, "-b:v")
	require.Contains(t, args, "2000000")
	require.NotContains(t, args, "-crf")
}

func TestBuildArgs_TwoPassFirstPassWritesToNullSink(t *testing.T) {
	p := plan{videoCodec: "libx264", crf: 23, twoPass: true}
	args := buildArgs(p, "in.mp4", "out.mp4", 1, "/tmp/passlog")
	require.Contains(t, args, "-f")
	require.Contains(t, args, "null")
	require.NotContains(t, args, "out.mp4")
}

func TestBuildArgs_DropAudioOmitsAudioMap(t *testing.T) {
	p := plan{videoCodec: "libx264", crf: 23, dropAudio: true}
	args := buildArgs(p, "in.mp4", "out.mp4", 1, "")
	require.Contains(t, args, "-an")
	require.NotContains(t, args, "0:a?")
}

func TestBuildAnimatedArgs_GifUsesPaletteFilterAndGifDest(t *testing.T) {
	args := buildAnimatedArgs("in.mp4", "out.gif", 0, "gif")
	require.Contains(t, args, "out.gif")
	require.NotContains(t, args, "libwebp")
	joined := false
	for _, a := range args {
		if a == "-vf" {
			joined = true
		}
	}
	require.True(t, joined, "expected a -vf palette filter argument")
}

func TestBuildAnimatedArgs_WebpUsesLibwebpAndWebpDest(t *testing.T) {
	args := buildAnimatedArgs("in.gif", "out.webp", 10, "webp")
	require.Contains(t, args, "libwebp")
	require.Contains(t, args, "out.webp")
}
