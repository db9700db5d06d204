package video

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/clopapp/clop/internal/probe"
)

const (
	minOutputSize   = 1024 // bytes; guards against a truncated/corrupt encode
	maxDurationDrift = 5.0  // seconds, adapted from the teacher's validator
)

// validate checks an encode's output against its source, adapted from
// the teacher's internal/validator.Validate: the output must be
// smaller, non-trivial in size, and its duration must match the
// source's within a small drift tolerance (remux/frame-decimation can
// shift duration slightly without indicating corruption).
func validate(ctx context.Context, prober *probe.Prober, sourcePath, outputPath string, sourceSize int64, allowDurationDrift bool) error {
	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("cannot stat output: %w", err)
	}
	outSize := outInfo.Size()

	if outSize >= sourceSize {
		return fmt.Errorf("output (%d bytes) is not smaller than input (%d bytes)", outSize, sourceSize)
	}
	if outSize < minOutputSize {
		return fmt.Errorf("output too small (%d bytes), likely corrupt", outSize)
	}

	if !allowDurationDrift {
		return nil
	}

	inResult, inOK := prober.Probe(ctx, sourcePath)
	outResult, outOK := prober.Probe(ctx, outputPath)
	if !inOK || !outOK {
		return nil // probing is best-effort; don't fail validation on a probe miss
	}
	if math.Abs(inResult.DurationSec-outResult.DurationSec) > maxDurationDrift {
		return fmt.Errorf("duration mismatch: input %.1fs vs output %.1fs", inResult.DurationSec, outResult.DurationSec)
	}
	return nil
}
