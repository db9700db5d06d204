package video

import (
	"strconv"
	"strings"
)

// progressState accumulates key=value lines from ffmpeg's "-progress
// pipe:1" output across a single encode, grounded on sniplette's
// encoder.ProgressState stateful line parser.
type progressState struct {
	outTimeUs int64
	speed     string
	done      bool
}

// update folds one "-progress" line into the state. It returns true when
// the line carries a fresh percent-complete estimate worth reporting.
func (s *progressState) update(line string, durationSec float64) (percent float64, ok bool) {
	kv := strings.SplitN(line, "=", 2)
	if len(kv) != 2 {
		return 0, false
	}
	key := strings.TrimSpace(kv[0])
	val := strings.TrimSpace(kv[1])

	switch key {
	case "out_time_us":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			s.outTimeUs = v
		}
	case "speed":
		s.speed = val
	case "progress":
		s.done = val == "end"
		if s.done {
			return 100, true
		}
		if durationSec <= 0 {
			return 0, false
		}
		pct := float64(s.outTimeUs) / (durationSec * 1_000_000) * 100
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		return pct, true
	}
	return 0, false
}
