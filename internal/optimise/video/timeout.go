package video

import (
	"runtime"
	"time"
)

// Timeout heuristics grounded on flsq.go's encodeTimeoutForSize: a
// hung or pathologically slow encode should not hold a coordinator
// worker slot forever, so the timeout scales with source size and an
// estimate of this machine's encode throughput rather than a single
// fixed bound.
const (
	baselineGHz = 2.5
	baseRateH   = 3.0
	safetyMult  = 3.0
	minTimeoutH = 4.0
	maxTimeoutH = 96.0
)

func encodeThreads() int {
	return runtime.NumCPU()
}

// encodeTimeout bounds a single ffmpeg invocation for a source of the
// given size, scaled down for faster/more-threaded machines and up for
// larger files, clamped to [minTimeoutH, maxTimeoutH].
func encodeTimeout(sourceSize int64) time.Duration {
	threads := float64(encodeThreads())
	speedFactor := cpuGHz() / baselineGHz
	score := threads * speedFactor
	if score <= 0 {
		score = 1
	}

	gb := float64(sourceSize) / (1024 * 1024 * 1024)
	hours := (baseRateH / score) * safetyMult * gb
	if hours < minTimeoutH {
		hours = minTimeoutH
	}
	if hours > maxTimeoutH {
		hours = maxTimeoutH
	}
	return time.Duration(hours * float64(time.Hour))
}
