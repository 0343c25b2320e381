package nn

import (
	"fmt"
	"strings"

	"gan_lib/tensor"

	"github.com/pkg/errors"
)

var (
	ErrNotCompiled   = errors.New("model is not compiled")
	ErrShapeMismatch = errors.New("weight shape mismatch")
)

// Model is a trainable chain of Sequential parts. Parts are held by reference, so two
// models built over the same Sequential share its weights. A part can be frozen in one
// model and still be trained through another.
type Model struct {
	name   string
	parts  []*Sequential
	frozen []bool
	loss   Loss
	opt    Optimizer
}

// NewModel chains parts in order.
func NewModel(name string, parts ...*Sequential) *Model {
	return &Model{
		name:   name,
		parts:  parts,
		frozen: make([]bool, len(parts)),
	}
}

func (m *Model) Name() string { return m.name }

// Parts returns the chained Sequentials.
func (m *Model) Parts() []*Sequential { return m.parts }

// Freeze excludes part from this model's optimisation step. The part's weights are
// still used in the forward pass and gradients still flow through it.
func (m *Model) Freeze(part *Sequential) error {
	for i, p := range m.parts {
		if p == part {
			m.frozen[i] = true
			return nil
		}
	}
	return errors.Errorf("[%s] freeze: %s is not part of this model", m.name, part.Name)
}

// Compile binds the loss and optimiser used by TrainOnBatch.
func (m *Model) Compile(loss Loss, opt Optimizer) {
	m.loss = loss
	m.opt = opt
}

func (m *Model) Compiled() bool { return m.loss != nil && m.opt != nil }

func (m *Model) Loss() Loss { return m.loss }

func (m *Model) Optimizer() Optimizer { return m.opt }

// Predict runs the forward pass only.
func (m *Model) Predict(x *tensor.Tensor) (*tensor.Tensor, error) {
	out := x
	for _, p := range m.parts {
		var err error
		out, err = p.Forward(out)
		if err != nil {
			return nil, errors.Wrapf(err, "[%s] predict", m.name)
		}
	}
	return out, nil
}

// TrainOnBatch applies exactly one optimiser update and returns the loss of the batch
// measured before that update.
func (m *Model) TrainOnBatch(x, labels *tensor.Tensor) (float64, error) {
	if !m.Compiled() {
		return 0, errors.Wrap(ErrNotCompiled, m.name)
	}
	pred, err := m.Predict(x)
	if err != nil {
		return 0, err
	}
	loss, err := m.loss.Forward(pred, labels)
	if err != nil {
		return 0, errors.Wrapf(err, "[%s] loss", m.name)
	}
	grad, err := m.loss.Backward(pred, labels)
	if err != nil {
		return 0, errors.Wrapf(err, "[%s] loss gradient", m.name)
	}
	for i := len(m.parts) - 1; i >= 0; i-- {
		grad, err = m.parts[i].Backward(grad)
		if err != nil {
			return 0, errors.Wrapf(err, "[%s] backward", m.name)
		}
	}
	var params, grads []*tensor.Tensor
	for i, p := range m.parts {
		if m.frozen[i] {
			continue
		}
		params = append(params, p.Params()...)
		grads = append(grads, p.Grads()...)
	}
	if err := m.opt.Step(params, grads); err != nil {
		return 0, errors.Wrapf(err, "[%s] optimiser step", m.name)
	}
	return loss, nil
}

// params lists every live weight tensor, trainable or not.
func (m *Model) params() []*tensor.Tensor {
	var out []*tensor.Tensor
	for _, p := range m.parts {
		out = append(out, p.Params()...)
	}
	return out
}

// Weights returns a deep copy of the ordered weight collection.
func (m *Model) Weights() []*tensor.Tensor {
	live := m.params()
	out := make([]*tensor.Tensor, len(live))
	for i, w := range live {
		out[i] = w.Clone()
	}
	return out
}

// SetWeights copies ws into the live tensors in place.
func (m *Model) SetWeights(ws []*tensor.Tensor) error {
	live := m.params()
	if len(ws) != len(live) {
		return errors.Wrapf(ErrShapeMismatch, "[%s] got %d tensors, want %d", m.name, len(ws), len(live))
	}
	for i, w := range live {
		if !tensor.SameShape(w, ws[i]) {
			return errors.Wrapf(ErrShapeMismatch, "[%s] tensor %d: got %v, want %v", m.name, i, ws[i].Shape, w.Shape)
		}
	}
	for i, w := range live {
		if err := w.CopyFrom(ws[i]); err != nil {
			return err
		}
	}
	return nil
}

// ClipWeights clamps every weight into [-bound, bound].
func (m *Model) ClipWeights(bound float64) {
	for _, w := range m.params() {
		w.Clip(bound)
	}
}

// CountParams returns total and trainable scalar counts.
func (m *Model) CountParams() (total, trainable int) {
	for i, p := range m.parts {
		for _, w := range p.Params() {
			total += len(w.Data)
			if !m.frozen[i] {
				trainable += len(w.Data)
			}
		}
	}
	return total, trainable
}

// Summary renders a layer table.
func (m *Model) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model: %q\n", m.name)
	fmt.Fprintf(&b, "%-28s %-10s %-8s %s\n", "Layer", "Output", "Params", "Trainable")
	for i, p := range m.parts {
		dim := p.InputDim
		for j, layer := range p.Layers {
			if d, ok := layer.(interface{ OutputDim() int }); ok {
				dim = d.OutputDim()
			}
			n := 0
			for _, w := range layer.Params() {
				n += len(w.Data)
			}
			fmt.Fprintf(&b, "%-28s %-10s %-8d %t\n",
				fmt.Sprintf("%s/%d_%s", p.Name, j, layer.Tag()),
				fmt.Sprintf("(None, %d)", dim), n, !m.frozen[i])
		}
	}
	total, trainable := m.CountParams()
	fmt.Fprintf(&b, "Total params: %d\nTrainable params: %d\nNon-trainable params: %d\n",
		total, trainable, total-trainable)
	return b.String()
}
