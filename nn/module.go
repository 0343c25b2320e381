package nn

import (
	"gan_lib/tensor"

	"github.com/pkg/errors"
)

// Module defines a single layer/unit in the network.
// Batches flow through as 2-D tensors of shape [samples, features].
type Module interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	// Backward computes gradients and propagates them.
	// It takes the gradient of the loss with respect to the module's output,
	// and returns the gradient of the loss with respect to the module's input.
	Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error)
	// Params returns the live weight tensors in a stable order. Grads returns the
	// matching gradients from the last Backward call.
	Params() []*tensor.Tensor
	Grads() []*tensor.Tensor
	Tag() string
}

// Sequential chains multiple Modules in order.
type Sequential struct {
	Name     string
	InputDim int
	Layers   []Module
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out := x
	for i, layer := range s.Layers {
		var err error
		out, err = layer.Forward(out)
		if err != nil {
			return nil, errors.Wrapf(err, "[%s] layer %d (%s) forward", s.Name, i, layer.Tag())
		}
	}
	return out, nil
}

// Backward applies Backward in reverse order.
func (s *Sequential) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	out := grad
	for i := len(s.Layers) - 1; i >= 0; i-- {
		var err error
		out, err = s.Layers[i].Backward(out)
		if err != nil {
			return nil, errors.Wrapf(err, "[%s] layer %d (%s) backward", s.Name, i, s.Layers[i].Tag())
		}
	}
	return out, nil
}

// Params concatenates every layer's weight tensors, layer by layer.
func (s *Sequential) Params() []*tensor.Tensor {
	var out []*tensor.Tensor
	for _, layer := range s.Layers {
		out = append(out, layer.Params()...)
	}
	return out
}

// Grads mirrors Params.
func (s *Sequential) Grads() []*tensor.Tensor {
	var out []*tensor.Tensor
	for _, layer := range s.Layers {
		out = append(out, layer.Grads()...)
	}
	return out
}

// OutputDim is the width of the last layer that declares one, or InputDim.
func (s *Sequential) OutputDim() int {
	out := s.InputDim
	for _, layer := range s.Layers {
		if d, ok := layer.(interface{ OutputDim() int }); ok {
			out = d.OutputDim()
		}
	}
	return out
}
