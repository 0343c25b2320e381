package layers

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gan_lib/config"
	"gan_lib/nn"
	"gan_lib/tensor"

	"github.com/stretchr/testify/require"
)

func TestDenseForwardMatchesManual(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDense(3, 2, rng)
	copy(d.W.Data, []float64{1, 2, 3, 0, -1, 1})
	copy(d.B.Data, []float64{10, 20})

	x, _ := tensor.NewMatrix(2, 3, []float64{1, 2, 3, 0, 1, 0})
	out, err := d.Forward(x)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	want := []float64{1 + 4 + 9 + 10, 0 - 2 + 3 + 20, 2 + 10, -1 + 20}
	for i := range want {
		if math.Abs(out.Data[i]-want[i]) > 1e-12 {
			t.Fatalf("output[%d] = %f, want %f", i, out.Data[i], want[i])
		}
	}

	_, err = d.Forward(tensor.NewWithData([]float64{1, 2, 3}))
	require.Error(t, err)
}

func TestDenseGlorotInit(t *testing.T) {
	d := NewDense(8, 4, rand.New(rand.NewSource(3)))
	limit := math.Sqrt(6.0 / 12)
	require.LessOrEqual(t, d.W.MaxAbs(), limit)
	require.Greater(t, d.W.MaxAbs(), 0.0)
	require.Equal(t, 0.0, d.B.MaxAbs())
	require.Equal(t, "dense_8x4", d.Tag())
}

// sumLoss is L = Σ c_ij · y_ij, so dL/dy = c.
func sumLoss(out, c *tensor.Tensor) float64 {
	s := 0.0
	for i := range out.Data {
		s += out.Data[i] * c.Data[i]
	}
	return s
}

func TestDenseBackwardMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	d := NewDense(3, 2, rng)
	x, _ := tensor.NewMatrix(4, 3, []float64{0.1, -0.4, 0.3, 1, 2, -1, 0.5, 0.5, 0.5, -0.2, 0.7, 0.9})
	c, _ := tensor.NewMatrix(4, 2, []float64{1, -1, 0.5, 2, -0.3, 0.1, 0.8, -0.6})

	_, err := d.Forward(x)
	require.NoError(t, err)
	gin, err := d.Backward(c)
	require.NoError(t, err)

	const h = 1e-6
	for pi, p := range d.Params() {
		g := d.Grads()[pi]
		for i := range p.Data {
			orig := p.Data[i]
			p.Data[i] = orig + h
			up, _ := d.Forward(x)
			p.Data[i] = orig - h
			down, _ := d.Forward(x)
			p.Data[i] = orig
			num := (sumLoss(up, c) - sumLoss(down, c)) / (2 * h)
			require.InDelta(t, num, g.Data[i], 1e-5, "param %d[%d]", pi, i)
		}
	}
	for i := range x.Data {
		orig := x.Data[i]
		x.Data[i] = orig + h
		up, _ := d.Forward(x)
		x.Data[i] = orig - h
		down, _ := d.Forward(x)
		x.Data[i] = orig
		require.InDelta(t, (sumLoss(up, c)-sumLoss(down, c))/(2*h), gin.Data[i], 1e-5)
	}
}

func TestDenseBackwardWithoutForward(t *testing.T) {
	d := NewDense(1, 1, rand.New(rand.NewSource(1)))
	_, err := d.Backward(tensor.New(1, 1))
	require.Error(t, err)
}

func TestLeakyReLU(t *testing.T) {
	l := NewLeakyReLU(0.2)
	x, _ := tensor.NewMatrix(1, 3, []float64{-2, 0, 3})
	y, err := l.Forward(x)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{-0.4, 0, 3}, y.Data, 1e-12)

	g, err := l.Backward(tensor.NewWithData([]float64{1, 1, 1}))
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0.2, 0.2, 1}, g.Data, 1e-12)
	require.Equal(t, []int{1, 3}, g.Shape)
}

func TestActivationLayerUsesRegistry(t *testing.T) {
	s, err := NewActivation("sigmoid")
	require.NoError(t, err)
	x, _ := tensor.NewMatrix(2, 1, []float64{0, 2})
	y, err := s.Forward(x)
	require.NoError(t, err)
	require.InDelta(t, 0.5, y.Data[0], 1e-12)
	g, err := s.Backward(tensor.NewWithData([]float64{1, 1}))
	require.NoError(t, err)
	require.InDelta(t, 0.25, g.Data[0], 1e-12)

	_, err = NewActivation("softmax")
	require.Error(t, err)
	_, err = NewActivation("nope")
	require.Error(t, err)
}

func alpha(a float64) *float64 { return &a }

func TestBuild(t *testing.T) {
	layerList := []config.Layer{
		{Type: "dense", Units: 8},
		{Type: "leaky_relu", Alpha: alpha(0.2)},
		{Type: "dense", Units: 1},
		{Type: "sigmoid"},
	}
	seq, err := Build("discriminator", 1, layerList, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, seq.Layers, 4)
	require.Equal(t, 1, seq.OutputDim())
	require.Len(t, seq.Params(), 4)

	x, _ := tensor.NewMatrix(5, 1, []float64{-2, -1, 0, 1, 2})
	out, err := seq.Forward(x)
	require.NoError(t, err)
	require.Equal(t, []int{5, 1}, out.Shape)
	for _, p := range out.Data {
		require.True(t, p > 0 && p < 1)
	}
}

func TestBuildSharesNoWeightsAcrossCalls(t *testing.T) {
	layerList := []config.Layer{{Type: "dense", Units: 2}}
	rng := rand.New(rand.NewSource(9))
	a, err := Build("a", 2, layerList, rng)
	require.NoError(t, err)
	b, err := Build("b", 2, layerList, rng)
	require.NoError(t, err)
	require.NotSame(t, a.Params()[0], b.Params()[0])
	require.NotEqual(t, a.Params()[0].Data, b.Params()[0].Data)
}

func TestBuildRejectsBadLayers(t *testing.T) {
	cases := []struct {
		name  string
		entry config.Layer
		field string
	}{
		{"unknown type", config.Layer{Type: "conv2d"}, "g.layers[0].type"},
		{"zero units", config.Layer{Type: "dense"}, "g.layers[0].units"},
		{"missing alpha", config.Layer{Type: "leaky_relu"}, "g.layers[0].alpha"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build("g", 3, []config.Layer{tc.entry}, rand.New(rand.NewSource(1)))
			var cerr *config.ConfigError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			require.Equal(t, tc.field, cerr.Field)
		})
	}
}

func TestBuiltModelTrains(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	seq, err := Build("d", 1, []config.Layer{{Type: "dense", Units: 4}, {Type: "tanh"}, {Type: "dense", Units: 1}, {Type: "sigmoid"}}, rng)
	require.NoError(t, err)
	m := nn.NewModel("d", seq)
	m.Compile(nn.BinaryCrossEntropy{}, nn.NewAdam(0.05))

	x, _ := tensor.NewMatrix(4, 1, []float64{-1, -0.5, 0.5, 1})
	y, _ := tensor.NewMatrix(4, 1, []float64{0, 0, 1, 1})
	first, err := m.TrainOnBatch(x, y)
	require.NoError(t, err)
	last := first
	for i := 0; i < 200; i++ {
		last, err = m.TrainOnBatch(x, y)
		require.NoError(t, err)
	}
	require.Less(t, last, first)
}
