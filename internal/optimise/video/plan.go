package video

import "strings"

// stage names the state-machine phase reported in Progress.Phase: a
// Preparing -> {Remux|OnePassEncode|TwoPassEncode|Animated} ->
// [HardwareRetry|SoftwareFallback] -> Finalising progression.
type stage string

const (
	stagePreparing     stage = "Preparing"
	stageRemux         stage = "Remux"
	stageOnePassEncode stage = "OnePassEncode"
	stageTwoPassEncode stage = "TwoPassEncode"
	stageAnimated      stage = "Animated"
	stageHardwareRetry stage = "HardwareRetry"
	stageSoftwareFallback stage = "SoftwareFallback"
	stageFinalising    stage = "Finalising"
)

// codecSpec is one codec's complete encode ladder: an ordered list of
// hardware-accelerated encoder names tried before falling back to a
// software encoder, plus that software encoder's CRF policy. A platform
// typically only has one hardware encoder available per codec; ffmpeg
// reports a clean failure for the rest, which the retry ladder treats as
// "try the next one".
type codecSpec struct {
	codec            string
	hardwareEncoders []string
	softwareEncoder  string
	softwareCRF      func(aggressive bool) int
}

// codecLadders is the per-codec hardware/software ladder table backing
// the AV1/VP9/HEVC/H.264 codec priority list.
var codecLadders = map[string]codecSpec{
	"av1": {
		codec:            "av1",
		hardwareEncoders: []string{"av1_nvenc", "av1_qsv", "av1_amf"},
		softwareEncoder:  "libsvtav1",
		softwareCRF: func(aggressive bool) int {
			if aggressive {
				return 40
			}
			return 32
		},
	},
	"vp9": {
		codec:            "vp9",
		hardwareEncoders: []string{"vp9_qsv", "vp9_vaapi"},
		softwareEncoder:  "libvpx-vp9",
		softwareCRF: func(aggressive bool) int {
			if aggressive {
				return 36
			}
			return 31
		},
	},
	"hevc": {
		codec:            "hevc",
		hardwareEncoders: []string{"hevc_videotoolbox", "hevc_nvenc", "hevc_qsv", "hevc_vaapi"},
		softwareEncoder:  "libx265",
		softwareCRF: func(aggressive bool) int {
			if aggressive {
				return 30
			}
			return 26
		},
	},
	"h264": {
		codec:            "h264",
		hardwareEncoders: []string{"h264_videotoolbox", "h264_nvenc", "h264_qsv", "h264_vaapi"},
		softwareEncoder:  "libx264",
		softwareCRF: func(aggressive bool) int {
			if aggressive {
				return 28
			}
			return 23
		},
	},
}

// codecPriorityFor returns the codec attempt order for a source,
// overriding the configured default list with container-aware
// heuristics: a WebM source tries VP9/AV1 first since HEVC in WebM isn't
// broadly supported, and a ProRes/DNx mezzanine source — typically
// footage still bound for an editing suite rather than final delivery —
// sticks to the broadly-compatible HEVC/H.264 ladder instead of AV1/VP9.
func codecPriorityFor(formatName, sourceCodec string, configuredPriority []string) []string {
	switch {
	case strings.Contains(formatName, "webm"):
		return []string{"vp9", "av1", "h264"}
	case sourceCodec == "prores" || sourceCodec == "dnxhd" || sourceCodec == "dnxhr":
		return []string{"hevc", "h264"}
	default:
		return configuredPriority
	}
}

// plan is the concrete encode recipe decided for one request.
type plan struct {
	targetStage   stage
	videoCodec    string // ffmpeg -c:v value chosen for this attempt
	targetBitrate int64  // bits/sec; 0 means CRF-driven instead
	crf           int
	container     string // output container extension, including dot
	twoPass       bool
	dropAudio     bool
	remux         bool
	maxWidth      int     // 0 disables the scale filter
	speedFactor   float64 // 0 or 1 disables the setpts/atempo filter pair
}
