package watcher

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures Stop fully winds down the event loop and any
// in-flight ticket-wait goroutines dispatch spawns, mirroring
// standardbeagle-lci's leak checks on its own fsnotify-backed watcher.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("time.Sleep"),
	)
}
