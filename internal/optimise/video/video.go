// Package video implements the Video Optimiser: a Preparing ->
// {Remux|OnePassEncode|TwoPassEncode|Animated} ->
// [HardwareRetry|SoftwareFallback] -> Finalising state machine around
// an ffmpeg invocation, with bitrate targeting derived from the probed
// source and a retry ladder that backs off the hardware encoder's
// bitrate before giving up on hardware entirely.
package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clopapp/clop/internal/coreerr"
	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/optimise"
	"github.com/clopapp/clop/internal/outputplan"
	"github.com/clopapp/clop/internal/probe"
	"github.com/clopapp/clop/internal/procrunner"
	"github.com/clopapp/clop/internal/request"
	"github.com/clopapp/clop/internal/settings"
)

// Optimiser implements optimise.Optimiser for corepath.Video.
type Optimiser struct {
	Settings       *settings.Store
	Prober         *probe.Prober
	FFmpegPath     string
}

func New(store *settings.Store, prober *probe.Prober, ffmpegPath string) *Optimiser {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Optimiser{Settings: store, Prober: prober, FFmpegPath: ffmpegPath}
}

func (o *Optimiser) ItemType() corepath.ItemType { return corepath.Video }

func (o *Optimiser) Optimise(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
	start := time.Now()
	report(request.Progress{RequestID: req.ID, Percent: 0, Phase: string(stagePreparing)})

	source := req.SourcePath
	info, err := os.Stat(source.Value())
	if err != nil {
		return request.Result{}, coreerr.Wrap(coreerr.SourceNotFound, "stat source video", err)
	}
	sourceSize := info.Size()

	result, ok := o.Prober.Probe(ctx, source.Value())
	if !ok {
		return request.Result{}, coreerr.New(coreerr.InvalidFormat, "could not probe source video")
	}

	requestedMode := req.Metadata.String("video.mode", "")
	isAnimated := result.IsAnimated || source.Extension() == ".gif" || requestedMode == "gif" || requestedMode == "webp"

	// animatedFormat picks the animated container: an explicit
	// video.mode override always wins; otherwise a .gif source stays
	// GIF and any other animated source (animated WebP/APNG, or a
	// normal video forced animated with no mode override) exports to
	// WebP, the broadly-compatible small-size default.
	animatedFormat := "webp"
	if requestedMode == "gif" || (requestedMode == "" && source.Extension() == ".gif") {
		animatedFormat = "gif"
	}

	var destExt string
	switch {
	case isAnimated && animatedFormat == "gif":
		destExt = ".gif"
	case isAnimated:
		destExt = ".webp"
	case settings.Get(o.Settings, settings.ForceMp4):
		destExt = ".mp4"
	default:
		destExt = source.Extension()
	}

	outPlan := outputplan.Resolve(source, destExt, outputplan.Policy{
		ReplaceOriginal:       settings.Get(o.Settings, settings.OutputReplaceOriginal),
		DeleteConvertedSource: settings.Get(o.Settings, settings.OutputDeleteConvertedSource),
	})
	destTmp := outPlan.Destination.Value() + ".clop-tmp" + destExt

	var encodeErr error
	switch {
	case isAnimated:
		report(request.Progress{RequestID: req.ID, Percent: 10, Phase: string(stageAnimated)})
		encodeErr = o.runFFmpeg(ctx, req, report, buildAnimatedArgs(source.Value(), destTmp, 0, animatedFormat), result.DurationSec, stageAnimated, sourceSize)
	case canRemux(result, settings.Get(o.Settings, settings.ForceMp4)):
		report(request.Progress{RequestID: req.ID, Percent: 10, Phase: string(stageRemux)})
		p := plan{targetStage: stageRemux, remux: true}
		encodeErr = o.runFFmpeg(ctx, req, report, buildArgs(p, source.Value(), destTmp, 1, ""), result.DurationSec, stageRemux, sourceSize)
	default:
		encodeErr = o.encodeWithRetryLadder(ctx, req, report, result, source.Value(), destTmp, sourceSize)
	}

	if encodeErr != nil {
		_ = os.Remove(destTmp)
		return request.Result{}, coreerr.Wrap(coreerr.ToolFailed, "video encode failed", encodeErr)
	}

	report(request.Progress{RequestID: req.ID, Percent: 90, Phase: string(stageFinalising)})

	allowDrift := !isAnimated
	if err := validate(ctx, o.Prober, source.Value(), destTmp, sourceSize, allowDrift); err != nil {
		_ = os.Remove(destTmp)
		if settings.Get(o.Settings, settings.RequireSizeReduction) {
			return succeededWithSource(req, start, err.Error()), coreerr.New(coreerr.NoSizeImprovement, err.Error())
		}
	}

	if err := os.Rename(destTmp, outPlan.Destination.Value()); err != nil {
		_ = os.Remove(destTmp)
		return request.Result{}, coreerr.Wrap(coreerr.IOFailure, "finalising output", err)
	}
	if outPlan.DeleteSource && outPlan.Destination.Value() != source.Value() {
		_ = os.Remove(source.Value())
	}

	report(request.Progress{RequestID: req.ID, Percent: 100, Phase: "Done"})
	outPath := outPlan.Destination
	outInfo, _ := os.Stat(outPath.Value())
	finalSize := sourceSize
	if outInfo != nil {
		finalSize = outInfo.Size()
	}
	return request.Result{
		RequestID:  req.ID,
		Status:     request.Succeeded,
		OutputPath: &outPath,
		Message:    fmt.Sprintf("%d -> %d bytes", sourceSize, finalSize),
		Duration:   time.Since(start),
	}, nil
}

func succeededWithSource(req request.Request, start time.Time, message string) request.Result {
	src := req.SourcePath
	return request.Result{
		RequestID:  req.ID,
		Status:     request.Succeeded,
		OutputPath: &src,
		Message:    message,
		Duration:   time.Since(start),
	}
}

// canRemux reports whether the source's video codec already matches an
// acceptable target, letting ffmpeg copy streams instead of re-encoding.
// A remux never changes the container: with ForceMp4 set, only a source
// that is already MP4 remuxes, and any other container is re-encoded
// even when its codec is acceptable.
func canRemux(p *probe.Result, forceMp4 bool) bool {
	acceptable := map[string]bool{"h264": true, "hevc": true, "av1": true, "vp9": true}
	if !acceptable[p.VideoCodec] {
		return false
	}
	return !forceMp4 || p.FormatName == "mov,mp4,m4a,3gp,3g2,mj2"
}

// encodeWithRetryLadder walks the codec priority list, container-aware
// via codecPriorityFor. For each codec it
// tries every hardware encoder in turn, backing off the target bitrate
// HardwareBitrateRetryLimit times per encoder before moving to the next,
// then falls back to that codec's software encoder before advancing to
// the next codec in the list.
func (o *Optimiser) encodeWithRetryLadder(ctx context.Context, req request.Request, report optimise.ProgressFunc, probed *probe.Result, source, destTmp string, sourceSize int64) error {
	aggressive := req.Metadata.Bool("aggressive", settings.Get(o.Settings, settings.Aggressive))
	dropAudio := req.Metadata.Bool("removeAudio", false)
	maxWidth := req.Metadata.Int("maxWidth", 0)
	speedFactor := req.Metadata.Float("playbackSpeedFactor", 1)

	twoPass := probed.DurationSec >= float64(settings.Get(o.Settings, settings.TwoPassMinimumDurationSeconds)) || aggressive
	baseBitrate := probed.VideoBitrate
	if baseBitrate <= 0 {
		baseBitrate = probed.BitRate
	}
	ratio := settings.Get(o.Settings, settings.HardwareBitrateReductionRatio)
	targetBitrate := baseBitrate * int64(ratio) / 100

	useHardware := settings.Get(o.Settings, settings.UseHardwareAcceleration)
	retryLimit := settings.Get(o.Settings, settings.HardwareBitrateRetryLimit)
	reductionPct := settings.Get(o.Settings, settings.HardwareBitrateRetryReductionPct)

	priority := codecPriorityFor(probed.FormatName, probed.VideoCodec, settings.Get(o.Settings, settings.VideoCodecPriority))

	var lastErr error
	for _, codecName := range priority {
		spec, ok := codecLadders[codecName]
		if !ok {
			continue
		}

		if useHardware {
			for _, hwEncoder := range spec.hardwareEncoders {
				bitrate := targetBitrate
				for attempt := 0; attempt <= retryLimit; attempt++ {
					st := stageHardwareRetry
					if attempt == 0 {
						st = stageOnePassEncode
					}
					p := plan{targetStage: st, videoCodec: hwEncoder, targetBitrate: bitrate, twoPass: false, dropAudio: dropAudio, maxWidth: maxWidth, speedFactor: speedFactor}
					if err := o.runEncodePlan(ctx, req, report, p, source, destTmp, probed.DurationSec, sourceSize); err == nil {
						return nil
					} else {
						lastErr = err
					}
					bitrate = bitrate * int64(100-reductionPct) / 100
				}
			}
		}

		st := stageSoftwareFallback
		if !twoPass {
			st = stageOnePassEncode
		}
		p := plan{targetStage: st, videoCodec: spec.softwareEncoder, crf: spec.softwareCRF(aggressive), twoPass: twoPass, dropAudio: dropAudio, maxWidth: maxWidth, speedFactor: speedFactor}
		if err := o.runEncodePlan(ctx, req, report, p, source, destTmp, probed.DurationSec, sourceSize); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no codec in the priority list could encode the source")
	}
	return lastErr
}

func (o *Optimiser) runEncodePlan(ctx context.Context, req request.Request, report optimise.ProgressFunc, p plan, source, destTmp string, durationSec float64, sourceSize int64) error {
	if p.twoPass {
		passLog := destTmp + ".passlog"
		defer cleanupPassLogs(passLog)
		if err := o.runFFmpeg(ctx, req, report, buildArgs(p, source, destTmp, 1, passLog), durationSec, p.targetStage, sourceSize); err != nil {
			return err
		}
		return o.runFFmpeg(ctx, req, report, buildArgs(p, source, destTmp, 2, passLog), durationSec, p.targetStage, sourceSize)
	}
	return o.runFFmpeg(ctx, req, report, buildArgs(p, source, destTmp, 1, ""), durationSec, p.targetStage, sourceSize)
}

func cleanupPassLogs(prefix string) {
	matches, _ := filepath.Glob(prefix + "*")
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func (o *Optimiser) runFFmpeg(ctx context.Context, req request.Request, report optimise.ProgressFunc, args []string, durationSec float64, st stage, sourceSize int64) error {
	var ps progressState
	_, err := procrunner.Run(ctx, o.FFmpegPath, args, procrunner.Options{
		FailOnNonZero: true,
		Timeout:       encodeTimeout(sourceSize),
		OnStdoutLine: func(line string) {
			if pct, ok := ps.update(line, durationSec); ok {
				report(request.Progress{RequestID: req.ID, Percent: 10 + pct*0.75, Phase: string(st)})
			}
		},
	})
	return err
}
