package dashboard

import (
	"context"
	"math"
	"sort"
	"time"

	"gan_lib/tensor"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Recorder appends the rounds of a single run to a Store.
type Recorder struct {
	store Store
	run   RunInfo
	bins  int
	log   logrus.FieldLogger
	round int
}

// NewRecorder registers run with store. An empty run.ID gets a random UUID and a zero
// StartedAt is set to now.
func NewRecorder(ctx context.Context, store Store, run RunInfo, bins int, log logrus.FieldLogger) (*Recorder, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	if err := store.SaveRun(ctx, run); err != nil {
		return nil, errors.WithMessage(err, "dashboard")
	}
	log.WithField("run_id", run.ID).Info("dashboard run registered")
	return &Recorder{store: store, run: run, bins: bins, log: log}, nil
}

func (r *Recorder) RunID() string { return r.run.ID }

// Record fills in run id, round number and sample statistics, then appends rec.
// samples may be nil.
func (r *Recorder) Record(ctx context.Context, rec RoundRecord, samples *tensor.Tensor) (RoundRecord, error) {
	r.round++
	rec.RunID = r.run.ID
	rec.Round = r.round
	if rec.Mode == "" {
		rec.Mode = r.run.Mode
	}
	if samples != nil && len(samples.Data) > 0 {
		xs := samples.Data
		if !samples.IsFinite() {
			xs = finite(xs)
			rec.NonFinite = len(samples.Data) - len(xs)
			r.log.WithFields(logrus.Fields{
				"round":      rec.Round,
				"non_finite": rec.NonFinite,
			}).Warn("generated samples contain NaN or Inf")
		}
		rec.SampleMean, rec.SampleStd = summarize(xs)
		rec.Histogram, rec.Edges = Histogram(xs, r.bins)
	}
	if err := r.store.AppendRound(ctx, rec); err != nil {
		return rec, errors.WithMessage(err, "dashboard")
	}
	r.log.WithFields(logrus.Fields{
		"round":       rec.Round,
		"d_loss":      rec.DiscriminatorLoss,
		"g_loss":      rec.GeneratorLoss,
		"sample_mean": rec.SampleMean,
		"sample_std":  rec.SampleStd,
	}).Debug("round recorded")
	return rec, nil
}

func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

// summarize returns the mean and sample standard deviation of xs, with a zero
// deviation for fewer than two values.
func summarize(xs []float64) (mean, std float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// Histogram bins the finite values of xs into equal-width buckets spanning their range.
// It returns the counts and the bins+1 edges, or nil when no finite value remains.
func Histogram(xs []float64, bins int) (counts, edges []float64) {
	sorted := finite(xs)
	if len(sorted) == 0 || bins <= 0 {
		return nil, nil
	}
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges = make([]float64, bins+1)
	if math.IsInf(hi-lo, 0) {
		// hi-lo overflows; interpolate instead
		for i := range edges {
			f := float64(i) / float64(bins)
			edges[i] = lo*(1-f) + hi*f
		}
	} else {
		floats.Span(edges, lo, hi)
	}
	// stat.Histogram treats the last edge as exclusive
	edges[bins] = math.Nextafter(hi, math.Inf(1))
	counts = stat.Histogram(nil, edges, sorted, nil)
	edges[bins] = hi
	return counts, edges
}
