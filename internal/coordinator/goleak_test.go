package coordinator

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures Stop fully winds down every worker goroutine the
// coordinator spawns, the same leak-detection discipline
// standardbeagle-lci applies to its concurrent core package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
