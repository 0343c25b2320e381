// Package gan drives adversarial training of a generator/discriminator pair: batch
// scheduling, Wasserstein clipping, unrolled generator steps and equilibrium rounds.
package gan

import (
	"math/rand"
	"time"

	"gan_lib/config"
	"gan_lib/nn"
	"gan_lib/tensor"
	"gan_lib/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultUnrollSteps is the discriminator look-ahead of GeneratorRoundUnrolled.
	DefaultUnrollSteps = 5
	// DefaultTemperature parameterises the equilibrium acceptance schedule.
	DefaultTemperature = 0.01
	// equilibriumBurnIn is the number of discriminator rounds after the proposal step.
	equilibriumBurnIn = 10
)

// Trainer owns the ensemble and the training schedule. It is not safe for concurrent
// use.
type Trainer struct {
	cfg        *config.Config
	ens        *Ensemble
	sampler    *Sampler
	rng        *rand.Rand
	log        *logrus.Logger
	timings    *utils.TimingStats
	generation int
}

type Option func(*Trainer)

// WithLogger replaces the default stderr logger.
func WithLogger(l *logrus.Logger) Option {
	return func(t *Trainer) { t.log = l }
}

// WithRand overrides the seed from model_config.seed.
func WithRand(r *rand.Rand) Option {
	return func(t *Trainer) { t.rng = r }
}

// WithTimings accumulates per-phase durations into s.
func WithTimings(s *utils.TimingStats) Option {
	return func(t *Trainer) { t.timings = s }
}

// NewTrainer validates cfg and builds the ensemble.
func NewTrainer(cfg *config.Config, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Trainer{cfg: cfg, log: logrus.New()}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		seed := cfg.Model.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		t.rng = rand.New(rand.NewSource(seed))
	}

	start := time.Now()
	ens, err := NewEnsemble(cfg, t.rng, t.log)
	if err != nil {
		return nil, errors.WithMessage(err, "build ensemble")
	}
	t.track(func(s *utils.TimingStats) *time.Duration { return &s.ModelInitTime }, start)

	t.ens = ens
	t.sampler = NewSampler(cfg, t.rng)
	t.log.WithFields(logrus.Fields{
		"gan_type":     cfg.GANType(),
		"target":       cfg.Target(),
		"noise_type":   cfg.NoiseType(),
		"noise_dim":    cfg.Model.Generator.NoiseDim,
		"disc_batch":   cfg.Model.Discriminator.BatchSize,
		"gen_batch":    cfg.Model.Generator.BatchSize,
		"d_iterations": cfg.Iterations(),
	}).Info("trainer ready")
	return t, nil
}

func (t *Trainer) track(field func(*utils.TimingStats) *time.Duration, start time.Time) {
	if t.timings == nil {
		return
	}
	*field(t.timings) += time.Since(start)
}

func (t *Trainer) Config() *config.Config { return t.cfg }
func (t *Trainer) Ensemble() *Ensemble    { return t.ens }
func (t *Trainer) Generation() int        { return t.generation }
func (t *Trainer) Logger() *logrus.Logger { return t.log }

// SampleReal draws n samples from the target distribution as an n×1 batch.
func (t *Trainer) SampleReal(n int) (*tensor.Tensor, error) {
	start := time.Now()
	defer t.track(func(s *utils.TimingStats) *time.Duration { return &s.SamplingTime }, start)
	return t.sampler.Real(n)
}

// SampleNoise draws an n×noise_dim batch of generator inputs.
func (t *Trainer) SampleNoise(n int) (*tensor.Tensor, error) {
	start := time.Now()
	defer t.track(func(s *utils.TimingStats) *time.Duration { return &s.SamplingTime }, start)
	return t.sampler.Noise(n)
}

// Generate runs the generator on fresh noise without touching any weights.
func (t *Trainer) Generate(n int) (*tensor.Tensor, error) {
	noise, err := t.SampleNoise(n)
	if err != nil {
		return nil, err
	}
	return t.ens.Generator.Predict(noise)
}

// Preview runs the generator on n noise vectors drawn from rng rather than the
// training source. The training sequence of a seeded run does not depend on it.
func (t *Trainer) Preview(rng *rand.Rand, n int) (*tensor.Tensor, error) {
	noise, err := t.sampler.withRand(rng).Noise(n)
	if err != nil {
		return nil, err
	}
	return t.ens.Generator.Predict(noise)
}

// DiscriminatorBatch returns batch_size/2 real and batch_size/2 generated samples
// labelled +1 and -1, shuffled with a single permutation, along with the generated
// half.
func (t *Trainer) DiscriminatorBatch() (data, labels, fake *tensor.Tensor, err error) {
	split := t.cfg.Model.Discriminator.BatchSize / 2
	realData, err := t.SampleReal(split)
	if err != nil {
		return nil, nil, nil, err
	}
	fake, err = t.Generate(split)
	if err != nil {
		return nil, nil, nil, err
	}
	joined, err := tensor.ConcatRows(realData, fake)
	if err != nil {
		return nil, nil, nil, err
	}
	ordered := tensor.New(2*split, 1)
	for i := 0; i < split; i++ {
		ordered.Data[i] = 1
		ordered.Data[split+i] = -1
	}

	perm := t.rng.Perm(2 * split)
	if data, err = tensor.TakeRows(joined, perm); err != nil {
		return nil, nil, nil, err
	}
	if labels, err = tensor.TakeRows(ordered, perm); err != nil {
		return nil, nil, nil, err
	}
	return data, labels, fake, nil
}

// DiscriminatorRound applies one discriminator update and, under the Wasserstein
// regime, clips its weights. It returns the generated half of the batch and the loss.
func (t *Trainer) DiscriminatorRound() (*tensor.Tensor, float64, error) {
	data, labels, fake, err := t.DiscriminatorBatch()
	if err != nil {
		return nil, 0, err
	}
	start := time.Now()
	defer t.track(func(s *utils.TimingStats) *time.Duration { return &s.DiscriminatorTime }, start)

	loss, err := t.ens.Discriminator.TrainOnBatch(data, labels)
	if err != nil {
		return nil, 0, errors.Wrap(err, "[Discriminator] train")
	}
	if t.cfg.GANType() == config.Wasserstein {
		t.ens.Discriminator.ClipWeights(t.cfg.ClipBound())
	}
	t.log.WithField("loss", loss).Debug("discriminator round")
	return fake, loss, nil
}

// adversarialUpdate trains the composite to score noise as real.
func (t *Trainer) adversarialUpdate(noise *tensor.Tensor) (float64, error) {
	start := time.Now()
	defer t.track(func(s *utils.TimingStats) *time.Duration { return &s.GeneratorTime }, start)

	labels := tensor.New(noise.Rows(), 1)
	for i := range labels.Data {
		labels.Data[i] = 1
	}
	loss, err := t.ens.Adversarial.TrainOnBatch(noise, labels)
	if err != nil {
		return 0, errors.Wrap(err, "[Generator] train")
	}
	t.log.WithField("loss", loss).Debug("generator round")
	return loss, nil
}

// GeneratorRound applies one update to the generator through the composite.
func (t *Trainer) GeneratorRound() (float64, error) {
	noise, err := t.SampleNoise(t.cfg.Model.Generator.BatchSize)
	if err != nil {
		return 0, err
	}
	return t.adversarialUpdate(noise)
}

// GeneratorRoundUnrolled advances the discriminator k rounds, updates the generator
// against it, and then puts the discriminator back. k <= 0 means DefaultUnrollSteps.
func (t *Trainer) GeneratorRoundUnrolled(k int) (float64, error) {
	if k <= 0 {
		k = DefaultUnrollSteps
	}
	noise, err := t.SampleNoise(t.cfg.Model.Generator.BatchSize)
	if err != nil {
		return 0, err
	}
	cp := nn.Snapshot(t.ens.Discriminator)
	defer t.rollbackUnconsumed(cp)
	for i := 0; i < k; i++ {
		if _, _, err := t.DiscriminatorRound(); err != nil {
			return 0, errors.WithMessagef(err, "unroll step %d", i)
		}
	}
	loss, err := t.adversarialUpdate(noise)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	defer t.track(func(s *utils.TimingStats) *time.Duration { return &s.RollbackTime }, start)
	if err := cp.Restore(); err != nil {
		return 0, err
	}
	return loss, nil
}

// rollbackUnconsumed restores cp when a round bails out before deciding its fate.
func (t *Trainer) rollbackUnconsumed(cp *nn.Checkpoint) {
	if cp.Consumed() {
		return
	}
	if err := cp.Restore(); err != nil {
		t.log.WithError(err).Warn("rollback after failed round")
	}
}

// BatchResult reports one TrainOneBatch call.
type BatchResult struct {
	// Fake is the generated half of the last discriminator batch.
	Fake              *tensor.Tensor
	GeneratorLoss     float64
	DiscriminatorLoss float64
}

// TrainOneBatch runs one generator round followed by discriminator_config.iterations
// discriminator rounds. DiscriminatorLoss is that of the last round.
func (t *Trainer) TrainOneBatch() (BatchResult, error) {
	return t.trainBatch(t.GeneratorRound)
}

// TrainOneBatchUnrolled is TrainOneBatch with the generator step taken by
// GeneratorRoundUnrolled(k).
func (t *Trainer) TrainOneBatchUnrolled(k int) (BatchResult, error) {
	return t.trainBatch(func() (float64, error) { return t.GeneratorRoundUnrolled(k) })
}

func (t *Trainer) trainBatch(generatorStep func() (float64, error)) (BatchResult, error) {
	var res BatchResult
	var err error
	if res.GeneratorLoss, err = generatorStep(); err != nil {
		return res, err
	}
	for i := 0; i < t.cfg.Iterations(); i++ {
		if res.Fake, res.DiscriminatorLoss, err = t.DiscriminatorRound(); err != nil {
			return res, err
		}
	}
	return res, nil
}
