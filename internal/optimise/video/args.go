package video

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// videoFilterChain builds the -vf value for a plan's maxWidth/speedFactor
// overrides, scaling preserving aspect ratio and adjusting presentation
// timestamps for speed changes.
func videoFilterChain(p plan) string {
	var parts []string
	if p.maxWidth > 0 {
		parts = append(parts, fmt.Sprintf("scale=%d:-2", p.maxWidth))
	}
	if factor := clampSpeedFactor(p.speedFactor); factor != 1 {
		parts = append(parts, fmt.Sprintf("setpts=%.4f*PTS", 1/factor))
	}
	return strings.Join(parts, ",")
}

// audioFilterChain mirrors videoFilterChain for audio speed. ffmpeg's
// atempo filter only accepts [0.5, 2.0] per instance; values outside
// that range are clamped rather than chained, a known simplification.
func audioFilterChain(p plan) string {
	factor := clampSpeedFactor(p.speedFactor)
	if factor == 1 {
		return ""
	}
	return fmt.Sprintf("atempo=%.4f", factor)
}

func clampSpeedFactor(factor float64) float64 {
	if factor <= 0 {
		return 1
	}
	if factor < 0.5 {
		return 0.5
	}
	if factor > 2.0 {
		return 2.0
	}
	return factor
}

func nullSink() string { return os.DevNull }

// buildArgs constructs the ffmpeg argument list for p against source ->
// dest as an explicit flag list, never a shell string.
func buildArgs(p plan, source, dest string, passNumber int, passLogFile string) []string {
	args := []string{"-hide_banner", "-y", "-progress", "pipe:1", "-i", source}

	if p.remux {
		args = append(args, "-map", "0", "-c", "copy", dest)
		return args
	}

	args = append(args, "-map", "0:v:0")
	if !p.dropAudio {
		args = append(args, "-map", "0:a?")
	}

	if vf := videoFilterChain(p); vf != "" {
		args = append(args, "-vf", vf)
	}
	if af := audioFilterChain(p); af != "" && !p.dropAudio {
		args = append(args, "-af", af)
	}

	args = append(args, "-c:v", p.videoCodec)
	if p.targetBitrate > 0 {
		args = append(args, "-b:v", strconv.FormatInt(p.targetBitrate, 10))
	} else {
		args = append(args, "-crf", strconv.Itoa(p.crf))
	}

	if p.twoPass {
		args = append(args, "-pass", strconv.Itoa(passNumber), "-passlogfile", passLogFile)
	}

	if p.dropAudio {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}

	if p.twoPass && passNumber == 1 {
		args = append(args, "-f", "null", nullSink())
		return args
	}

	args = append(args, dest)
	return args
}

// buildAnimatedArgs constructs the ffmpeg argument list for exporting an
// animated source to either GIF or animated WebP depending on format
// ("gif" or "webp"), per the requested/inferred video.mode.
// GIF export uses the standard two-filter palette idiom
// (palettegen/paletteuse) since a naive GIF encode without a generated
// palette produces visibly banded output.
func buildAnimatedArgs(source, dest string, fps int, format string) []string {
	args := []string{"-hide_banner", "-y", "-progress", "pipe:1", "-i", source}

	fpsFilter := ""
	if fps > 0 {
		fpsFilter = "fps=" + strconv.Itoa(fps)
	}

	if format == "gif" {
		filter := "split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"
		if fpsFilter != "" {
			filter = fpsFilter + "," + filter
		}
		args = append(args, "-vf", filter, "-loop", "0", dest)
		return args
	}

	if fpsFilter != "" {
		args = append(args, "-vf", fpsFilter)
	}
	args = append(args, "-loop", "0", "-c:v", "libwebp", "-lossless", "0", "-q:v", "60", dest)
	return args
}
