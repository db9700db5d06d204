// Package probe implements the Media Probe (spec section 4.G): a thin
// wrapper over an ffprobe-equivalent invocation that decodes container,
// video, and audio facts for the optimisers to plan against. Probing
// never errors out the caller — a missing tool or an undecodable file
// yields a nil *Result, mirroring the teacher's ffprobe helpers'
// "return empty and let the caller decide" posture.
package probe

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/procrunner"
)

// Result is the subset of ffprobe's JSON output the optimisers consume.
type Result struct {
	FormatName     string
	DurationSec    float64
	SizeBytes      int64
	BitRate        int64
	VideoCodec     string
	VideoWidth     int
	VideoHeight    int
	VideoBitrate   int64
	FrameRate      float64
	IsAnimated     bool // heuristic: container is gif/webp/apng with >1 frame
	AudioCodec     string
	AudioChannels  int
	HasAudioStream bool
}

// Prober invokes an ffprobe-compatible binary (configurable for tests).
type Prober struct {
	ExecutablePath string
	log            *corelog.Logger
}

func New(executablePath string) *Prober {
	if executablePath == "" {
		executablePath = "ffprobe"
	}
	return &Prober{ExecutablePath: executablePath, log: corelog.New("probe")}
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	BitRate      string `json:"bit_rate"`
	Channels     int    `json:"channels"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeDocument struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

// Probe runs the configured tool against path and decodes its output.
// Returns (nil, false) on any failure: tool not found, non-zero exit,
// or unparsable JSON — probing is always best-effort.
func (p *Prober) Probe(ctx context.Context, path string) (*Result, bool) {
	res, err := procrunner.Run(ctx, p.ExecutablePath, []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	}, procrunner.Options{FailOnNonZero: true})
	if err != nil {
		p.log.Printf("probe failed for %s: %v", path, err)
		return nil, false
	}

	var doc ffprobeDocument
	if err := json.Unmarshal([]byte(res.Stdout), &doc); err != nil {
		p.log.Printf("probe output unparsable for %s: %v", path, err)
		return nil, false
	}

	out := &Result{
		FormatName:  doc.Format.FormatName,
		DurationSec: parseFloat(doc.Format.Duration),
		SizeBytes:   parseInt(doc.Format.Size),
		BitRate:     parseInt(doc.Format.BitRate),
	}

	for _, s := range doc.Streams {
		switch s.CodecType {
		case "video":
			out.VideoCodec = s.CodecName
			out.VideoWidth = s.Width
			out.VideoHeight = s.Height
			out.VideoBitrate = parseInt(s.BitRate)
			out.FrameRate = parseRational(s.AvgFrameRate)
			if out.FrameRate == 0 {
				out.FrameRate = parseRational(s.RFrameRate)
			}
			if frames := parseInt(s.NbFrames); frames > 1 {
				out.IsAnimated = isAnimatedContainer(out.FormatName)
			}
		case "audio":
			out.HasAudioStream = true
			out.AudioCodec = s.CodecName
			out.AudioChannels = s.Channels
		}
	}
	return out, true
}

func isAnimatedContainer(formatName string) bool {
	for _, f := range strings.Split(formatName, ",") {
		switch f {
		case "gif", "webp_pipe", "apng":
			return true
		}
	}
	return false
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// parseRational decodes an ffprobe "num/den" rational framerate string.
func parseRational(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return parseFloat(s)
	}
	num := parseFloat(parts[0])
	den := parseFloat(parts[1])
	if den == 0 {
		return 0
	}
	return num / den
}
