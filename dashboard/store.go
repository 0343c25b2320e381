// Package dashboard records per-round training telemetry. Records are written during a
// run and never read back by training.
package dashboard

import (
	"context"
	"time"
)

// RunInfo identifies one training run.
type RunInfo struct {
	ID        string
	GANType   string
	Mode      string
	Seed      int64
	StartedAt time.Time
}

// RoundRecord is the telemetry of one scheduled unit of training.
type RoundRecord struct {
	RunID             string
	Round             int
	Mode              string
	DiscriminatorLoss float64
	GeneratorLoss     float64
	// Generation and Accepted are only meaningful for equilibrium rounds.
	Generation int
	Accepted   bool
	// SampleMean, SampleStd and Histogram cover the finite generated samples only;
	// NonFinite counts the NaN and ±Inf samples left out.
	SampleMean float64
	SampleStd  float64
	NonFinite  int
	// Histogram holds counts of generated samples between consecutive Edges.
	Histogram []float64
	Edges     []float64
}

// Store persists runs and their rounds.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run RunInfo) error
	AppendRound(ctx context.Context, rec RoundRecord) error
	// Rounds returns the rounds of runID in append order.
	Rounds(ctx context.Context, runID string) ([]RoundRecord, error)
	Runs(ctx context.Context) ([]RunInfo, error)
}
