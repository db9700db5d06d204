package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgressState_ComputesPercentFromOutTimeUs(t *testing.T) {
	var ps progressState
	_, ok := ps.update("out_time_us=5000000", 10)
	require.False(t, ok)

	_, ok = ps.update("speed=1.2x", 10)
	require.False(t, ok)

	pct, ok := ps.update("progress=continue", 10)
	require.True(t, ok)
	require.InDelta(t, 50.0, pct, 0.001)
}

func TestProgressState_EndMarkerReportsFullCompletion(t *testing.T) {
	var ps progressState
	pct, ok := ps.update("progress=end", 10)
	require.True(t, ok)
	require.Equal(t, 100.0, pct)
}

func TestProgressState_IgnoresUnrelatedLines(t *testing.T) {
	var ps progressState
	_, ok := ps.update("frame=120", 10)
	require.False(t, ok)
}
