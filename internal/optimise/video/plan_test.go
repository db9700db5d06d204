package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecPriorityFor_WebmContainerPrefersVP9(t *testing.T) {
	priority := codecPriorityFor("webm", "vp9", []string{"av1", "vp9", "hevc", "h264"})
	require.Equal(t, []string{"vp9", "av1", "h264"}, priority)
}

func TestCodecPriorityFor_MezzanineSourceSticksToBroadCompat(t *testing.T) {
	priority := codecPriorityFor("mov,mp4,m4a,3gp,3g2,mj2", "prores", []string{"av1", "vp9", "hevc", "h264"})
	require.Equal(t, []string{"hevc", "h264"}, priority)
}

func TestCodecPriorityFor_DefaultUsesConfiguredPriority(t *testing.T) {
	configured := []string{"hevc", "h264"}
	priority := codecPriorityFor("mov,mp4,m4a,3gp,3g2,mj2", "h264", configured)
	require.Equal(t, configured, priority)
}
