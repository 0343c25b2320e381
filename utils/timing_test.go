package utils

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func TestPrintTimingStats(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevVerbose := Output, Verbose
	defer func() { Output, Verbose = prevOut, prevVerbose }()
	Output = &buf

	stats := &TimingStats{
		TotalTime:         time.Second,
		DiscriminatorTime: 500 * time.Millisecond,
	}
	PrintTimingStats(stats, 10)
	out := buf.String()
	require.Contains(t, out, "Rounds completed: 10")
	require.Contains(t, out, "Discriminator updates: 500ms (50.0%)")
	require.Contains(t, out, "Average time per round: 100ms")

	buf.Reset()
	PrintTimingStats(&TimingStats{}, 0)
	require.Contains(t, buf.String(), "Sampling: 0s (0.0%)")

	buf.Reset()
	Verbose = false
	PrintTimingStats(stats, 1)
	require.Empty(t, buf.String())
}
