package gan

import (
	"fmt"
	"math/rand"

	"gan_lib/config"
	"gan_lib/nn"
	"gan_lib/nn/layers"

	"github.com/sirupsen/logrus"
)

// Ensemble holds the generator, the discriminator and the adversarial composite. The
// composite chains the generator's and discriminator's layer stacks by reference and
// has the discriminator frozen.
type Ensemble struct {
	Generator     *nn.Model
	Discriminator *nn.Model
	Adversarial   *nn.Model
}

func newOptimiser(field string, o config.Optimiser) (nn.Optimizer, error) {
	t, err := config.ParseOptimiserType(o.Type)
	if err != nil {
		return nil, &config.ConfigError{Field: field + ".type", Value: o.Type, Reason: "unrecognized value"}
	}
	switch t {
	case config.Adam:
		return nn.NewAdam(o.LearningRate), nil
	default:
		return nil, &config.ConfigError{Field: field + ".type", Value: o.Type, Reason: "unrecognized value"}
	}
}

// lossFor maps the GAN type to the loss bound to both the discriminator and the
// composite.
func lossFor(t config.GANType) (nn.Loss, error) {
	switch t {
	case config.Standard, config.Equilibrium:
		return nn.BinaryCrossEntropy{}, nil
	case config.Wasserstein:
		return nn.Wasserstein{}, nil
	default:
		return nil, &config.ConfigError{Field: "model_config.gan_type", Value: t.String(), Reason: "unrecognized value"}
	}
}

// NewEnsemble builds and compiles the three models from a validated configuration.
func NewEnsemble(cfg *config.Config, rng *rand.Rand, log logrus.FieldLogger) (*Ensemble, error) {
	gc, dc := cfg.Model.Generator, cfg.Model.Discriminator

	loss, err := lossFor(cfg.GANType())
	if err != nil {
		return nil, err
	}

	discNet, err := layers.Build("discriminator", config.OutputDim(gc.NoiseDim, gc.Layers), dc.Layers, rng)
	if err != nil {
		return nil, err
	}
	discOpt, err := newOptimiser("model_config.discriminator_config.optimiser", dc.Optimiser)
	if err != nil {
		return nil, err
	}
	disc := nn.NewModel("discriminator", discNet)
	disc.Compile(loss, discOpt)

	genNet, err := layers.Build("generator", gc.NoiseDim, gc.Layers, rng)
	if err != nil {
		return nil, err
	}
	genOpt, err := newOptimiser("model_config.generator_config.optimiser", gc.Optimiser)
	if err != nil {
		return nil, err
	}
	// The generator is trained only through the composite.
	gen := nn.NewModel("generator", genNet)

	if d := genNet.OutputDim(); d != 1 {
		return nil, &config.ConfigError{
			Field:  "model_config.generator_config.layers",
			Value:  fmt.Sprint(d),
			Reason: "generator must produce 1-D samples to match the target distribution",
		}
	}
	if discNet.InputDim != genNet.OutputDim() {
		return nil, &config.ConfigError{
			Field:  "model_config.discriminator_config.layers",
			Value:  fmt.Sprint(discNet.InputDim),
			Reason: fmt.Sprintf("discriminator input must equal generator output %d", genNet.OutputDim()),
		}
	}
	if d := discNet.OutputDim(); d != 1 {
		return nil, &config.ConfigError{
			Field:  "model_config.discriminator_config.layers",
			Value:  fmt.Sprint(d),
			Reason: "discriminator must produce one score per sample",
		}
	}

	adv := nn.NewModel("adversarial", genNet, discNet)
	if err := adv.Freeze(discNet); err != nil {
		return nil, err
	}
	adv.Compile(loss, genOpt)

	for _, m := range []*nn.Model{gen, disc, adv} {
		log.WithField("model", m.Name()).Debug("\n" + m.Summary())
	}
	return &Ensemble{Generator: gen, Discriminator: disc, Adversarial: adv}, nil
}
