package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the declarative description of a GAN experiment. It is loaded once and
// treated as read-only afterwards.
type Config struct {
	Model ModelConfig `yaml:"model_config"`
	// Dashboard is passed through untouched to the telemetry sink.
	Dashboard map[string]any `yaml:"dashboard_config"`

	ganType   GANType
	target    DistributionName
	noiseType NoiseType
	validated bool
}

type ModelConfig struct {
	GANType            string              `yaml:"gan_type"`
	Seed               int64               `yaml:"seed"`
	GANParams          GANParams           `yaml:"gan_params"`
	TargetDistribution TargetDistribution  `yaml:"target_distribution"`
	Generator          GeneratorConfig     `yaml:"generator_config"`
	Discriminator      DiscriminatorConfig `yaml:"discriminator_config"`
}

// GANParams is the legacy home of the Wasserstein clipping bound.
type GANParams struct {
	Clipping float64 `yaml:"clipping"`
}

type TargetDistribution struct {
	Name              string  `yaml:"name"`
	Mean              float64 `yaml:"mean"`
	StandardDeviation float64 `yaml:"standard_deviation"`
	MeanOne           float64 `yaml:"mean_one"`
	MeanTwo           float64 `yaml:"mean_two"`
}

type Optimiser struct {
	Type         string  `yaml:"type"`
	LearningRate float64 `yaml:"learning_rate"`
}

// Layer is one entry of an ordered layer list. Units applies to dense layers and
// Alpha to leaky_relu.
type Layer struct {
	Type  string   `yaml:"type"`
	Units int      `yaml:"units,omitempty"`
	Alpha *float64 `yaml:"alpha,omitempty"`
}

type GeneratorConfig struct {
	NoiseDim        int       `yaml:"noise_dim"`
	NoiseType       string    `yaml:"noise_type"`
	SwapNoiseLabels bool      `yaml:"swap_noise_labels"`
	BatchSize       int       `yaml:"batch_size"`
	Optimiser       Optimiser `yaml:"optimiser"`
	Layers          []Layer   `yaml:"layers"`
}

type DiscriminatorConfig struct {
	BatchSize  int       `yaml:"batch_size"`
	Iterations *int      `yaml:"iterations,omitempty"`
	Clipping   *float64  `yaml:"clipping,omitempty"`
	Optimiser  Optimiser `yaml:"optimiser"`
	Layers     []Layer   `yaml:"layers"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s", path)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document. Both model_config and dashboard_config
// must be present.
func Parse(data []byte) (*Config, error) {
	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("malformed yaml: %v", err)}
	}
	for _, key := range []string{"model_config", "dashboard_config"} {
		if _, ok := top[key]; !ok {
			return nil, invalid(key, nil, "required top-level key is missing")
		}
	}

	cfg := &Config{}
	mc := top["model_config"]
	if err := mc.Decode(&cfg.Model); err != nil {
		return nil, invalid("model_config", nil, err.Error())
	}
	dc := top["dashboard_config"]
	if err := dc.Decode(&cfg.Dashboard); err != nil {
		return nil, invalid("dashboard_config", nil, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate resolves every tag into its closed enum and checks numeric fields. It must
// succeed before the typed accessors are used.
func (c *Config) Validate() error {
	m := &c.Model
	var err error

	if c.ganType, err = ParseGANType(m.GANType); err != nil {
		return err
	}
	if c.target, err = ParseDistributionName(m.TargetDistribution.Name); err != nil {
		return err
	}
	if m.TargetDistribution.StandardDeviation <= 0 {
		return invalid("model_config.target_distribution.standard_deviation", m.TargetDistribution.StandardDeviation, "must be > 0")
	}

	g := &m.Generator
	if c.noiseType, err = ParseNoiseType(g.NoiseType, g.SwapNoiseLabels); err != nil {
		return err
	}
	if g.NoiseDim <= 0 {
		return invalid("model_config.generator_config.noise_dim", g.NoiseDim, "must be > 0")
	}
	if g.BatchSize <= 0 {
		return invalid("model_config.generator_config.batch_size", g.BatchSize, "must be > 0")
	}
	if err := validateOptimiser("model_config.generator_config.optimiser", g.Optimiser); err != nil {
		return err
	}
	if err := validateLayers("model_config.generator_config", g.Layers); err != nil {
		return err
	}

	d := &m.Discriminator
	if d.BatchSize < 2 {
		return invalid("model_config.discriminator_config.batch_size", d.BatchSize, "must be >= 2 to hold one real and one fake sample")
	}
	if d.Iterations != nil && *d.Iterations < 1 {
		return invalid("model_config.discriminator_config.iterations", *d.Iterations, "must be >= 1")
	}
	if err := validateOptimiser("model_config.discriminator_config.optimiser", d.Optimiser); err != nil {
		return err
	}
	if err := validateLayers("model_config.discriminator_config", d.Layers); err != nil {
		return err
	}
	if d.Clipping != nil && *d.Clipping <= 0 {
		return invalid("model_config.discriminator_config.clipping", *d.Clipping, "must be > 0")
	}
	if c.ganType == Wasserstein && c.clipBound() <= 0 {
		return invalid("model_config.discriminator_config.clipping", nil, "wasserstein training requires a positive clipping bound")
	}

	c.validated = true
	return nil
}

func validateOptimiser(field string, o Optimiser) error {
	if _, err := ParseOptimiserType(o.Type); err != nil {
		return unrecognized(field+".type", o.Type)
	}
	if o.LearningRate <= 0 {
		return invalid(field+".learning_rate", o.LearningRate, "must be > 0")
	}
	return nil
}

func validateLayers(region string, layers []Layer) error {
	for i, l := range layers {
		field := fmt.Sprintf("%s.layers[%d]", region, i)
		lt, err := ParseLayerType(l.Type)
		if err != nil {
			return unrecognized(field+".type", l.Type)
		}
		switch lt {
		case Dense:
			if l.Units <= 0 {
				return invalid(field+".units", l.Units, "must be > 0")
			}
		case LeakyReLU:
			if l.Alpha == nil {
				return invalid(field+".alpha", nil, "is required for leaky_relu")
			}
			if *l.Alpha < 0 {
				return invalid(field+".alpha", *l.Alpha, "must be >= 0")
			}
		case Sigmoid, Tanh, ReLU:
		default:
			return unrecognized(field+".type", l.Type)
		}
	}
	return nil
}

func (c *Config) mustBeValidated() {
	if !c.validated {
		panic("config: accessor used before Validate")
	}
}

func (c *Config) GANType() GANType {
	c.mustBeValidated()
	return c.ganType
}

func (c *Config) Target() DistributionName {
	c.mustBeValidated()
	return c.target
}

func (c *Config) NoiseType() NoiseType {
	c.mustBeValidated()
	return c.noiseType
}

// Iterations is the number of discriminator rounds per generator round (default 1).
func (c *Config) Iterations() int {
	if it := c.Model.Discriminator.Iterations; it != nil {
		return *it
	}
	return 1
}

// ClipBound is the Wasserstein clipping bound. discriminator_config.clipping takes
// precedence over gan_params.clipping.
func (c *Config) ClipBound() float64 {
	return c.clipBound()
}

func (c *Config) clipBound() float64 {
	if cl := c.Model.Discriminator.Clipping; cl != nil {
		return *cl
	}
	return c.Model.GANParams.Clipping
}

// OutputDim returns the width produced by a layer list fed inputDim features: the
// units of its last dense layer, or inputDim when it has none.
func OutputDim(inputDim int, layers []Layer) int {
	out := inputDim
	for _, l := range layers {
		if l.Type == "dense" {
			out = l.Units
		}
	}
	return out
}
