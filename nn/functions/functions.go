// Package functions is a registry of differentiable functions with closed-form
// derivatives, used by the activation layers and losses and available for manual
// backpropagation experiments.
package functions

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// logPolicyGradCap bounds 1/x in the log_policy gradient.
const logPolicyGradCap = 1000.0

// Activation maps a vector to a vector. DF returns the Jacobian. Elem and ElemDF are
// set only when the function acts elementwise.
type Activation struct {
	Name   string
	F      func(x []float64) []float64
	DF     func(x []float64) *mat.Dense
	Elem   func(x float64) float64
	ElemDF func(x float64) float64
}

// Elementwise reports whether the activation has scalar forms.
func (a Activation) Elementwise() bool {
	return a.Elem != nil && a.ElemDF != nil
}

// Objective compares an output y with a target and yields a scalar. DF is the gradient
// with respect to y.
type Objective struct {
	Name string
	F    func(target, y []float64) (float64, error)
	DF   func(target, y []float64) ([]float64, error)
}

// Selector reduces a vector to the scalar at index i. DF is the gradient with respect
// to x.
type Selector struct {
	Name string
	F    func(x []float64, i int) (float64, error)
	DF   func(x []float64, i int) ([]float64, error)
}

func elementwise(name string, f, df func(float64) float64) Activation {
	return Activation{
		Name:   name,
		Elem:   f,
		ElemDF: df,
		F: func(x []float64) []float64 {
			out := make([]float64, len(x))
			for i, v := range x {
				out[i] = f(v)
			}
			return out
		},
		DF: func(x []float64) *mat.Dense {
			return diag(x, df)
		},
	}
}

func diag(x []float64, df func(float64) float64) *mat.Dense {
	n := len(x)
	if n == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(n, n, nil)
	for i, v := range x {
		out.Set(i, i, df(v))
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func dSigmoid(x float64) float64 {
	e := math.Exp(-x)
	return e / ((1 + e) * (1 + e))
}

func relu(x float64) float64 {
	return math.Max(x, 0)
}

func dRelu(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// TanhScaled returns scale·tanh(x) with its derivative.
func TanhScaled(scale float64) Activation {
	name := "tanh"
	if scale != 1 {
		name = fmt.Sprintf("tanh*%g", scale)
	}
	return elementwise(name,
		func(x float64) float64 { return scale * math.Tanh(x) },
		func(x float64) float64 {
			c := math.Cosh(x)
			return scale / (c * c)
		})
}

func softmax(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	// shift by the max so exp never overflows
	shift := floats.Max(x)
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Exp(v - shift)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

// dSoftmax is diag(s) - s·sᵀ.
func dSoftmax(x []float64) *mat.Dense {
	s := softmax(x)
	n := len(s)
	if n == 0 {
		return &mat.Dense{}
	}
	sv := mat.NewVecDense(n, s)
	out := mat.NewDense(n, n, nil)
	out.Outer(-1, sv, sv)
	for i := 0; i < n; i++ {
		out.Set(i, i, out.At(i, i)+s[i])
	}
	return out
}

func checkLen(a, b []float64) error {
	if len(a) != len(b) {
		return fmt.Errorf("length mismatch: %d != %d", len(a), len(b))
	}
	return nil
}

func squareDiff(target, y []float64) (float64, error) {
	if err := checkLen(target, y); err != nil {
		return 0, err
	}
	d := make([]float64, len(y))
	floats.SubTo(d, target, y)
	return floats.Dot(d, d), nil
}

func dSquareDiff(target, y []float64) ([]float64, error) {
	if err := checkLen(target, y); err != nil {
		return nil, err
	}
	out := make([]float64, len(y))
	floats.SubTo(out, target, y)
	floats.Scale(-2, out)
	return out, nil
}

// huber is quadratic below unit squared distance and linear above it.
func huber(target, y []float64) (float64, error) {
	sq, err := squareDiff(target, y)
	if err != nil {
		return 0, err
	}
	if sq < 1 {
		return sq / 2, nil
	}
	return math.Sqrt(sq) - 0.5, nil
}

func dHuber(target, y []float64) ([]float64, error) {
	sq, err := squareDiff(target, y)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(y))
	floats.SubTo(out, target, y)
	if sq < 1 {
		floats.Scale(-1, out)
		return out, nil
	}
	floats.Scale(-1/math.Sqrt(sq), out)
	return out, nil
}

// crossEntropy is -Σ target·log(y) for a categorical output y.
func crossEntropy(target, y []float64) (float64, error) {
	if err := checkLen(target, y); err != nil {
		return 0, err
	}
	acc := 0.0
	for i := range y {
		acc -= target[i] * math.Log(y[i])
	}
	return acc, nil
}

func dCrossEntropy(target, y []float64) ([]float64, error) {
	if err := checkLen(target, y); err != nil {
		return nil, err
	}
	out := make([]float64, len(y))
	for i := range y {
		out[i] = -target[i] / y[i]
	}
	return out, nil
}

// crossEntropy1D sums the binary cross-entropy of each output probability against its
// target.
func crossEntropy1D(target, y []float64) (float64, error) {
	if err := checkLen(target, y); err != nil {
		return 0, err
	}
	acc := 0.0
	for i, p := range y {
		acc += -target[i]*math.Log(p) - (1-target[i])*math.Log(1-p)
	}
	return acc, nil
}

func dCrossEntropy1D(target, y []float64) ([]float64, error) {
	if err := checkLen(target, y); err != nil {
		return nil, err
	}
	out := make([]float64, len(y))
	for i, p := range y {
		out[i] = -target[i]/p + (1-target[i])/(1-p)
	}
	return out, nil
}

func checkIndex(x []float64, i int) error {
	if i < 0 || i >= len(x) {
		return fmt.Errorf("index %d out of range for length %d", i, len(x))
	}
	return nil
}

func softmaxI(x []float64, i int) (float64, error) {
	if err := checkIndex(x, i); err != nil {
		return 0, err
	}
	return softmax(x)[i], nil
}

// dSoftmaxI is row i of the softmax Jacobian: s_i(δ_ij - s_j).
func dSoftmaxI(x []float64, i int) ([]float64, error) {
	if err := checkIndex(x, i); err != nil {
		return nil, err
	}
	s := softmax(x)
	out := make([]float64, len(s))
	for j := range s {
		out[j] = -s[i] * s[j]
	}
	out[i] += s[i]
	return out, nil
}

func logPolicy(x []float64, i int) (float64, error) {
	if err := checkIndex(x, i); err != nil {
		return 0, err
	}
	return math.Log(x[i]), nil
}

func dLogPolicy(x []float64, i int) ([]float64, error) {
	if err := checkIndex(x, i); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	out[i] = math.Min(1/x[i], logPolicyGradCap)
	return out, nil
}
