package layers

import (
	"fmt"
	"math/rand"

	"gan_lib/config"
	"gan_lib/nn"
)

// Build turns an ordered layer list into a Sequential fed inputDim features.
func Build(name string, inputDim int, layerList []config.Layer, rng *rand.Rand) (*nn.Sequential, error) {
	if inputDim <= 0 {
		return nil, &config.ConfigError{Field: name + ".input_dim", Value: fmt.Sprint(inputDim), Reason: "must be > 0"}
	}
	seq := &nn.Sequential{Name: name, InputDim: inputDim}
	dim := inputDim
	for i, entry := range layerList {
		field := fmt.Sprintf("%s.layers[%d]", name, i)
		lt, err := config.ParseLayerType(entry.Type)
		if err != nil {
			return nil, &config.ConfigError{Field: field + ".type", Value: entry.Type, Reason: "unrecognized value"}
		}
		switch lt {
		case config.Dense:
			if entry.Units <= 0 {
				return nil, &config.ConfigError{Field: field + ".units", Value: fmt.Sprint(entry.Units), Reason: "must be > 0"}
			}
			seq.Layers = append(seq.Layers, NewDense(dim, entry.Units, rng))
			dim = entry.Units
		case config.LeakyReLU:
			if entry.Alpha == nil {
				return nil, &config.ConfigError{Field: field + ".alpha", Reason: "is required for leaky_relu"}
			}
			seq.Layers = append(seq.Layers, NewLeakyReLU(*entry.Alpha))
		case config.Sigmoid, config.Tanh, config.ReLU:
			act, err := NewActivation(lt.String())
			if err != nil {
				return nil, err
			}
			seq.Layers = append(seq.Layers, act)
		default:
			return nil, &config.ConfigError{Field: field + ".type", Value: entry.Type, Reason: "unrecognized value"}
		}
	}
	return seq, nil
}
