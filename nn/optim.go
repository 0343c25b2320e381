package nn

import (
	"math"

	"gan_lib/tensor"

	"github.com/pkg/errors"
)

// Optimizer applies one gradient update to a set of live parameter tensors.
type Optimizer interface {
	Name() string
	// Step updates params[i] in place from grads[i].
	Step(params, grads []*tensor.Tensor) error
	LearningRate() float64
}

// Adam defaults.
const (
	AdamBeta1   = 0.9
	AdamBeta2   = 0.999
	AdamEpsilon = 1e-7
)

// Adam is the adaptive-moment optimiser. Moment estimates are kept per parameter
// tensor, so one Adam instance may update any subset of the tensors it has seen.
type Adam struct {
	LR, Beta1, Beta2, Epsilon float64

	t int
	m map[*tensor.Tensor][]float64
	v map[*tensor.Tensor][]float64
}

// NewAdam returns an Adam optimiser with the usual β and ε.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:      lr,
		Beta1:   AdamBeta1,
		Beta2:   AdamBeta2,
		Epsilon: AdamEpsilon,
		m:       make(map[*tensor.Tensor][]float64),
		v:       make(map[*tensor.Tensor][]float64),
	}
}

func (a *Adam) Name() string { return "adam" }

func (a *Adam) LearningRate() float64 { return a.LR }

// Steps is the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }

func (a *Adam) Step(params, grads []*tensor.Tensor) error {
	if len(params) != len(grads) {
		return errors.Errorf("adam: %d params but %d grads", len(params), len(grads))
	}
	for i, p := range params {
		if grads[i] == nil || len(grads[i].Data) != len(p.Data) {
			return errors.Errorf("adam: gradient %d missing or mis-sized for param shape %v", i, p.Shape)
		}
	}

	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	lrT := a.LR * math.Sqrt(c2) / c1

	for i, p := range params {
		m, ok := a.m[p]
		if !ok {
			m = make([]float64, len(p.Data))
			a.m[p] = m
		}
		v, ok := a.v[p]
		if !ok {
			v = make([]float64, len(p.Data))
			a.v[p] = v
		}
		for j, g := range grads[i].Data {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			p.Data[j] -= lrT * m[j] / (math.Sqrt(v[j]) + a.Epsilon)
		}
	}
	return nil
}
