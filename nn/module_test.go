package nn

import (
	"errors"
	"math"
	"strings"
	"testing"

	"gan_lib/tensor"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// affine is a 1→1 layer y = w·x + b used to exercise the model plumbing.
type affine struct {
	w, b   *tensor.Tensor
	gw, gb *tensor.Tensor
	last   *tensor.Tensor
}

func newAffine(w, b float64) *affine {
	return &affine{
		w:  tensor.NewWithData([]float64{w}),
		b:  tensor.NewWithData([]float64{b}),
		gw: tensor.New(1),
		gb: tensor.New(1),
	}
}

func (a *affine) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a.last = x.Clone()
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		out.Data[i] = a.w.Data[0]*v + a.b.Data[0]
	}
	return out, nil
}

func (a *affine) Backward(g *tensor.Tensor) (*tensor.Tensor, error) {
	a.gw.Data[0], a.gb.Data[0] = 0, 0
	out := tensor.New(g.Shape...)
	for i, v := range g.Data {
		a.gw.Data[0] += v * a.last.Data[i]
		a.gb.Data[0] += v
		out.Data[i] = v * a.w.Data[0]
	}
	return out, nil
}

func (a *affine) Params() []*tensor.Tensor { return []*tensor.Tensor{a.w, a.b} }
func (a *affine) Grads() []*tensor.Tensor  { return []*tensor.Tensor{a.gw, a.gb} }
func (a *affine) Tag() string              { return "affine" }
func (a *affine) OutputDim() int           { return 1 }

// failing errors on every pass.
type failing struct{}

func (failing) Forward(*tensor.Tensor) (*tensor.Tensor, error)  { return nil, errors.New("fail") }
func (failing) Backward(*tensor.Tensor) (*tensor.Tensor, error) { return nil, errors.New("fail") }
func (failing) Params() []*tensor.Tensor                        { return nil }
func (failing) Grads() []*tensor.Tensor                         { return nil }
func (failing) Tag() string                                     { return "failing" }

func column(vals ...float64) *tensor.Tensor {
	t, _ := tensor.NewMatrix(len(vals), 1, vals)
	return t
}

func TestSequentialChainsLayers(t *testing.T) {
	seq := &Sequential{Name: "s", InputDim: 1, Layers: []Module{newAffine(2, 1), newAffine(3, 0)}}
	out, err := seq.Forward(column(1, 2))
	require.NoError(t, err)
	require.Equal(t, []float64{9, 15}, out.Data)

	gin, err := seq.Backward(column(1, 1))
	require.NoError(t, err)
	require.Equal(t, []float64{6, 6}, gin.Data)
	require.Len(t, seq.Params(), 4)
	require.Len(t, seq.Grads(), 4)
	require.Equal(t, 1, seq.OutputDim())
}

func TestSequentialWrapsLayerErrors(t *testing.T) {
	seq := &Sequential{Name: "broken", Layers: []Module{newAffine(1, 0), failing{}}}
	_, err := seq.Forward(column(1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "[broken] layer 1 (failing) forward")
}

func TestBinaryCrossEntropy(t *testing.T) {
	var bce BinaryCrossEntropy
	loss, err := bce.Forward(column(0.5, 0.5), column(1, 0))
	require.NoError(t, err)
	require.InDelta(t, math.Ln2, loss, 1e-9)

	// probabilities are clipped before the log
	loss, err = bce.Forward(column(0), column(1))
	require.NoError(t, err)
	require.False(t, math.IsInf(loss, 0))

	pred, labels := column(0.3, 0.8), column(1, -1)
	grad, err := bce.Backward(pred, labels)
	require.NoError(t, err)
	const h = 1e-6
	for i := range pred.Data {
		p, m := pred.Clone(), pred.Clone()
		p.Data[i] += h
		m.Data[i] -= h
		lp, _ := bce.Forward(p, labels)
		lm, _ := bce.Forward(m, labels)
		require.InDelta(t, (lp-lm)/(2*h), grad.Data[i], 1e-4)
	}

	_, err = bce.Forward(column(0.5), column(1, 0))
	require.Error(t, err)
}

func TestWassersteinLoss(t *testing.T) {
	var w Wasserstein
	loss, err := w.Forward(column(2, 4), column(1, -1))
	require.NoError(t, err)
	require.InDelta(t, -1.0, loss, 1e-12)
	grad, err := w.Backward(column(2, 4), column(1, -1))
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, -0.5}, grad.Data)
}

func TestAdamFirstStepMovesByLearningRate(t *testing.T) {
	p := tensor.NewWithData([]float64{1, -1})
	g := tensor.NewWithData([]float64{0.3, -5})
	adam := NewAdam(0.01)
	require.NoError(t, adam.Step([]*tensor.Tensor{p}, []*tensor.Tensor{g}))
	require.InDeltaSlice(t, []float64{0.99, -0.99}, p.Data, 1e-6)
	require.Equal(t, 1, adam.Steps())

	err := adam.Step([]*tensor.Tensor{p}, nil)
	require.Error(t, err)
	require.Equal(t, 1, adam.Steps())
}

func TestTrainOnBatchRequiresCompile(t *testing.T) {
	m := NewModel("m", &Sequential{Name: "s", Layers: []Module{newAffine(1, 0)}})
	_, err := m.TrainOnBatch(column(1), column(1))
	require.True(t, errors.Is(err, ErrNotCompiled))
}

func TestTrainOnBatchReturnsPreUpdateLoss(t *testing.T) {
	m := NewModel("m", &Sequential{Name: "s", Layers: []Module{newAffine(0.5, 0.1)}})
	m.Compile(Wasserstein{}, NewAdam(0.1))
	x, y := column(1, 2, 3), column(1, -1, 1)

	pred, err := m.Predict(x)
	require.NoError(t, err)
	want, err := Wasserstein{}.Forward(pred, y)
	require.NoError(t, err)

	before := m.Weights()
	got, err := m.TrainOnBatch(x, y)
	require.NoError(t, err)
	require.InDelta(t, want, got, 1e-12)
	require.NotEmpty(t, cmp.Diff(before, m.Weights()))
}

func TestFrozenPartIsSharedButNotTrained(t *testing.T) {
	gen := &Sequential{Name: "generator", InputDim: 1, Layers: []Module{newAffine(1, 0)}}
	disc := &Sequential{Name: "discriminator", InputDim: 1, Layers: []Module{newAffine(2, 0)}}

	discModel := NewModel("discriminator", disc)
	discModel.Compile(Wasserstein{}, NewAdam(0.1))
	composite := NewModel("adversarial", gen, disc)
	require.NoError(t, composite.Freeze(disc))
	composite.Compile(Wasserstein{}, NewAdam(0.1))

	discBefore := discModel.Weights()
	genBefore := gen.Params()[0].Clone()
	_, err := composite.TrainOnBatch(column(1, 2), column(1, 1))
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(discBefore, discModel.Weights()))
	require.NotEqual(t, genBefore.Data, gen.Params()[0].Data)

	_, err = discModel.TrainOnBatch(column(1, 2), column(1, -1))
	require.NoError(t, err)
	require.Equal(t, discModel.Weights()[0].Data, composite.Weights()[2].Data)

	total, trainable := composite.CountParams()
	require.Equal(t, 4, total)
	require.Equal(t, 2, trainable)

	require.Error(t, discModel.Freeze(gen))
}

func TestSetWeightsWritesThroughSharedReferences(t *testing.T) {
	disc := &Sequential{Name: "d", Layers: []Module{newAffine(1, 0)}}
	a := NewModel("a", disc)
	b := NewModel("b", &Sequential{Name: "g", Layers: []Module{newAffine(1, 0)}}, disc)

	ws := a.Weights()
	ws[0].Data[0] = 7
	require.Equal(t, 1.0, a.Weights()[0].Data[0], "Weights must be a deep copy")
	require.NoError(t, a.SetWeights(ws))
	require.Equal(t, 7.0, b.Weights()[2].Data[0])

	err := a.SetWeights(ws[:1])
	require.True(t, errors.Is(err, ErrShapeMismatch))
	err = a.SetWeights([]*tensor.Tensor{tensor.New(2), tensor.New(1)})
	require.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestClipWeights(t *testing.T) {
	m := NewModel("m", &Sequential{Name: "s", Layers: []Module{newAffine(3, -0.05)}})
	m.ClipWeights(0.1)
	ws := m.Weights()
	require.Equal(t, 0.1, ws[0].Data[0])
	require.Equal(t, -0.05, ws[1].Data[0])
}

func TestCheckpointRestoresOnce(t *testing.T) {
	a := NewModel("a", &Sequential{Name: "a", Layers: []Module{newAffine(1, 2)}})
	b := NewModel("b", &Sequential{Name: "b", Layers: []Module{newAffine(3, 4)}})
	wa, wb := a.Weights(), b.Weights()

	cp := Snapshot(a, b)
	a.ClipWeights(0.5)
	b.ClipWeights(0.5)
	require.NotEmpty(t, cmp.Diff(wa, a.Weights()))

	require.NoError(t, cp.Restore())
	require.Empty(t, cmp.Diff(wa, a.Weights()))
	require.Empty(t, cmp.Diff(wb, b.Weights()))
	require.True(t, cp.Consumed())
	require.True(t, errors.Is(cp.Restore(), ErrCheckpointConsumed))

	cp = Snapshot(a)
	cp.Discard()
	require.True(t, errors.Is(cp.Restore(), ErrCheckpointConsumed))
}

func TestSummary(t *testing.T) {
	gen := &Sequential{Name: "generator", InputDim: 1, Layers: []Module{newAffine(1, 0)}}
	disc := &Sequential{Name: "discriminator", InputDim: 1, Layers: []Module{newAffine(1, 0)}}
	m := NewModel("adversarial", gen, disc)
	require.NoError(t, m.Freeze(disc))
	s := m.Summary()
	require.True(t, strings.HasPrefix(s, `Model: "adversarial"`))
	require.Contains(t, s, "generator/0_affine")
	require.Contains(t, s, "Non-trainable params: 2")
}
