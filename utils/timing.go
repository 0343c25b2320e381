package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for the phases of a training run
type TimingStats struct {
	TotalTime         time.Duration
	ModelInitTime     time.Duration
	SamplingTime      time.Duration
	DiscriminatorTime time.Duration
	GeneratorTime     time.Duration
	RollbackTime      time.Duration
	RecordTime        time.Duration
}

func percent(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, rounds int) {
	if !Verbose {
		return
	}
	if rounds <= 0 {
		rounds = 1
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total training time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Average time per round: %v\n", stats.TotalTime/time.Duration(rounds))
	fmt.Fprintf(Output, "Rounds completed: %d\n", rounds)
	fmt.Fprintln(Output, "\nBreakdown by phase:")
	fmt.Fprintf(Output, "  Model initialization: %v (%.1f%%)\n", stats.ModelInitTime, percent(stats.ModelInitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Sampling: %v (%.1f%%)\n", stats.SamplingTime, percent(stats.SamplingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Discriminator updates: %v (%.1f%%)\n", stats.DiscriminatorTime, percent(stats.DiscriminatorTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Generator updates: %v (%.1f%%)\n", stats.GeneratorTime, percent(stats.GeneratorTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Rollbacks: %v (%.1f%%)\n", stats.RollbackTime, percent(stats.RollbackTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Dashboard writes: %v (%.1f%%)\n", stats.RecordTime, percent(stats.RecordTime, stats.TotalTime))
	fmt.Fprintln(Output, "\nPerformance metrics:")
	fmt.Fprintf(Output, "  Average discriminator time: %v\n", stats.DiscriminatorTime/time.Duration(rounds))
	fmt.Fprintf(Output, "  Average generator time: %v\n", stats.GeneratorTime/time.Duration(rounds))
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
