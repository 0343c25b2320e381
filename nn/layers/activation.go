package layers

import (
	"fmt"

	"gan_lib/nn/functions"
	"gan_lib/tensor"

	"github.com/pkg/errors"
)

// Activation applies an elementwise function from the function registry.
type Activation struct {
	fn        functions.Activation
	lastInput *tensor.Tensor
}

// NewActivation looks up name in the registry. Only elementwise activations can be used
// as layers.
func NewActivation(name string) (*Activation, error) {
	fn, err := functions.GetActivation(name)
	if err != nil {
		return nil, errors.Wrap(err, "activation layer")
	}
	if !fn.Elementwise() {
		return nil, errors.Errorf("activation layer: %s is not elementwise", name)
	}
	return &Activation{fn: fn}, nil
}

func (a *Activation) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a.lastInput = x.Clone()
	y := tensor.New(x.Shape...)
	for i, v := range x.Data {
		y.Data[i] = a.fn.Elem(v)
	}
	return y, nil
}

func (a *Activation) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	input := a.lastInput
	if input == nil {
		return nil, fmt.Errorf("%s: no cached input for backward pass", a.fn.Name)
	}
	if len(gradOut.Data) != len(input.Data) {
		return nil, fmt.Errorf("shape mismatch in %s backward: input.Shape=%v, gradOut.Shape=%v", a.fn.Name, input.Shape, gradOut.Shape)
	}
	gradIn := tensor.New(input.Shape...)
	for i, v := range input.Data {
		gradIn.Data[i] = gradOut.Data[i] * a.fn.ElemDF(v)
	}
	return gradIn, nil
}

func (a *Activation) Params() []*tensor.Tensor { return nil }
func (a *Activation) Grads() []*tensor.Tensor  { return nil }
func (a *Activation) Tag() string              { return a.fn.Name }

// LeakyReLU passes positive inputs and scales the rest by Alpha.
type LeakyReLU struct {
	Alpha     float64
	lastInput *tensor.Tensor
}

func NewLeakyReLU(alpha float64) *LeakyReLU {
	return &LeakyReLU{Alpha: alpha}
}

func (l *LeakyReLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	l.lastInput = x.Clone()
	y := tensor.New(x.Shape...)
	for i, v := range x.Data {
		if v > 0 {
			y.Data[i] = v
		} else {
			y.Data[i] = l.Alpha * v
		}
	}
	return y, nil
}

func (l *LeakyReLU) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	input := l.lastInput
	if input == nil {
		return nil, fmt.Errorf("leaky_relu: no cached input for backward pass")
	}
	if len(gradOut.Data) != len(input.Data) {
		return nil, fmt.Errorf("shape mismatch in leaky_relu backward: input.Shape=%v, gradOut.Shape=%v", input.Shape, gradOut.Shape)
	}
	gradIn := tensor.New(input.Shape...)
	for i, v := range input.Data {
		deriv := l.Alpha
		if v > 0 {
			deriv = 1
		}
		gradIn.Data[i] = gradOut.Data[i] * deriv
	}
	return gradIn, nil
}

func (l *LeakyReLU) Params() []*tensor.Tensor { return nil }
func (l *LeakyReLU) Grads() []*tensor.Tensor  { return nil }
func (l *LeakyReLU) Tag() string              { return fmt.Sprintf("leaky_relu(%g)", l.Alpha) }
