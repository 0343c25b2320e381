package gan

import (
	"math/rand"

	"gan_lib/config"
	"gan_lib/tensor"

	"gonum.org/v1/gonum/stat/distuv"
)

// quantiler is satisfied by the gonum distributions drawn from here.
type quantiler interface {
	Quantile(p float64) float64
}

// Sampler draws real samples from the target distribution and generator noise.
type Sampler struct {
	target    config.TargetDistribution
	dist      config.DistributionName
	noiseType config.NoiseType
	noiseDim  int
	rng       *rand.Rand
}

// NewSampler binds a validated configuration to rng.
func NewSampler(cfg *config.Config, rng *rand.Rand) *Sampler {
	return &Sampler{
		target:    cfg.Model.TargetDistribution,
		dist:      cfg.Target(),
		noiseType: cfg.NoiseType(),
		noiseDim:  cfg.Model.Generator.NoiseDim,
		rng:       rng,
	}
}

// withRand returns a copy of s drawing from rng.
func (s *Sampler) withRand(rng *rand.Rand) *Sampler {
	c := *s
	c.rng = rng
	return &c
}

// draw inverts q at a uniform variate in (0, 1).
func (s *Sampler) draw(q quantiler) float64 {
	u := s.rng.Float64()
	for u == 0 {
		u = s.rng.Float64()
	}
	return q.Quantile(u)
}

func (s *Sampler) fill(dst []float64, q quantiler) {
	for i := range dst {
		dst[i] = s.draw(q)
	}
}

// Real draws an n×1 batch from the target distribution. A bimodal batch holds ⌈n/2⌉
// draws of the first component and ⌊n/2⌋ of the second, shuffled.
func (s *Sampler) Real(n int) (*tensor.Tensor, error) {
	out := tensor.New(n, 1)
	sd := s.target.StandardDeviation
	switch s.dist {
	case config.Normal:
		s.fill(out.Data, distuv.Normal{Mu: s.target.Mean, Sigma: sd})
	case config.Bimodal:
		first := n - n/2
		s.fill(out.Data[:first], distuv.Normal{Mu: s.target.MeanOne, Sigma: sd})
		s.fill(out.Data[first:], distuv.Normal{Mu: s.target.MeanTwo, Sigma: sd})
		s.rng.Shuffle(n, func(i, j int) {
			out.Data[i], out.Data[j] = out.Data[j], out.Data[i]
		})
	default:
		return nil, &config.ConfigError{
			Field:  "model_config.target_distribution.name",
			Value:  s.target.Name,
			Reason: "unrecognized value",
		}
	}
	return out, nil
}

// Noise draws an n×noise_dim generator input batch.
func (s *Sampler) Noise(n int) (*tensor.Tensor, error) {
	out := tensor.New(n, s.noiseDim)
	switch s.noiseType {
	case config.NoiseUniform:
		s.fill(out.Data, distuv.Uniform{Min: -1, Max: 1})
	case config.NoiseNormal:
		s.fill(out.Data, distuv.Normal{Mu: 0, Sigma: 1})
	default:
		return nil, &config.ConfigError{
			Field:  "model_config.generator_config.noise_type",
			Value:  s.noiseType.String(),
			Reason: "unrecognized value",
		}
	}
	return out, nil
}
