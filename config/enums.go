package config

// GANType selects the loss regime and training policy.
type GANType int

const (
	Standard GANType = iota
	Wasserstein
	Equilibrium
)

func (g GANType) String() string {
	switch g {
	case Standard:
		return "standard"
	case Wasserstein:
		return "wasserstein"
	case Equilibrium:
		return "equilibrium"
	default:
		return "unknown"
	}
}

func ParseGANType(s string) (GANType, error) {
	switch s {
	case "standard":
		return Standard, nil
	case "wasserstein":
		return Wasserstein, nil
	case "equilibrium":
		return Equilibrium, nil
	default:
		return 0, unrecognized("model_config.gan_type", s)
	}
}

// DistributionName identifies the family real samples are drawn from.
type DistributionName int

const (
	Normal DistributionName = iota
	Bimodal
)

func (d DistributionName) String() string {
	switch d {
	case Normal:
		return "normal"
	case Bimodal:
		return "bimodal"
	default:
		return "unknown"
	}
}

func ParseDistributionName(s string) (DistributionName, error) {
	switch s {
	case "normal":
		return Normal, nil
	case "bimodal":
		return Bimodal, nil
	default:
		return 0, unrecognized("model_config.target_distribution.name", s)
	}
}

// NoiseType is the distribution generator inputs are drawn from.
type NoiseType int

const (
	NoiseUniform NoiseType = iota // U[-1, 1]
	NoiseNormal                   // N(0, 1)
)

func (n NoiseType) String() string {
	switch n {
	case NoiseUniform:
		return "uniform"
	case NoiseNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// ParseNoiseType maps a noise_type tag to the draw it names. With swapLabels the
// mapping is inverted, which reproduces configs written against the older harness
// where "normal" drew uniform noise and "uniform" drew gaussian noise.
func ParseNoiseType(s string, swapLabels bool) (NoiseType, error) {
	var n NoiseType
	switch s {
	case "uniform":
		n = NoiseUniform
	case "normal":
		n = NoiseNormal
	default:
		return 0, unrecognized("model_config.generator_config.noise_type", s)
	}
	if swapLabels {
		n = 1 - n
	}
	return n, nil
}

// LayerType is one entry kind of a layer list.
type LayerType int

const (
	Dense LayerType = iota
	LeakyReLU
	Sigmoid
	Tanh
	ReLU
)

func (l LayerType) String() string {
	switch l {
	case Dense:
		return "dense"
	case LeakyReLU:
		return "leaky_relu"
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case ReLU:
		return "relu"
	default:
		return "unknown"
	}
}

func ParseLayerType(s string) (LayerType, error) {
	switch s {
	case "dense":
		return Dense, nil
	case "leaky_relu":
		return LeakyReLU, nil
	case "sigmoid":
		return Sigmoid, nil
	case "tanh":
		return Tanh, nil
	case "relu":
		return ReLU, nil
	default:
		return 0, unrecognized("layers.type", s)
	}
}

// OptimiserType names the update rule bound to a model at compile time.
type OptimiserType int

const (
	Adam OptimiserType = iota
)

func (o OptimiserType) String() string {
	switch o {
	case Adam:
		return "adam"
	default:
		return "unknown"
	}
}

func ParseOptimiserType(s string) (OptimiserType, error) {
	switch s {
	case "adam":
		return Adam, nil
	default:
		return 0, unrecognized("optimiser.type", s)
	}
}
