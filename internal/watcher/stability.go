package watcher

import (
	"os"
	"time"
)

const (
	stabilityProbes   = 60
	stabilityInterval = 200 * time.Millisecond

	requeueBaseDelay = 250 * time.Millisecond
	requeueMaxDelay  = 5 * time.Second
	requeueMaxAttempt = 24
)

// awaitStable polls path's size and modtime at stabilityInterval until
// two consecutive reads agree, or gives up after stabilityProbes
// samples — many encoders and browser downloads keep writing well past
// the fsnotify edge that triggered the event.
func awaitStable(path string) (os.FileInfo, bool) {
	var last os.FileInfo
	for i := 0; i < stabilityProbes; i++ {
		info, err := os.Stat(path)
		if err != nil {
			return nil, false
		}
		if last != nil && info.Size() == last.Size() && info.ModTime().Equal(last.ModTime()) {
			return info, true
		}
		last = info
		time.Sleep(stabilityInterval)
	}
	return last, false
}

// requeueDelay returns the backoff before retrying attempt (1-based):
// 250ms * attempt, capped at 5s.
func requeueDelay(attempt int) time.Duration {
	d := requeueBaseDelay * time.Duration(attempt)
	if d > requeueMaxDelay {
		return requeueMaxDelay
	}
	return d
}
