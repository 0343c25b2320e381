package functions

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// numericJacobian approximates dF/dx with central differences.
func numericJacobian(f func([]float64) []float64, x []float64) *mat.Dense {
	const h = 1e-6
	n := len(x)
	out := mat.NewDense(len(f(x)), n, nil)
	for j := 0; j < n; j++ {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[j] += h
		xm[j] -= h
		fp, fm := f(xp), f(xm)
		for i := range fp {
			out.Set(i, j, (fp[i]-fm[i])/(2*h))
		}
	}
	return out
}

func numericGrad(f func([]float64) float64, x []float64) []float64 {
	const h = 1e-6
	out := make([]float64, len(x))
	for j := range x {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[j] += h
		xm[j] -= h
		out[j] = (f(xp) - f(xm)) / (2 * h)
	}
	return out
}

func TestActivationJacobiansMatchFiniteDifferences(t *testing.T) {
	x := []float64{-1.3, -0.2, 0.4, 2.1}
	for _, name := range []string{"sigmoid", "tanh", "linear", "softmax"} {
		t.Run(name, func(t *testing.T) {
			a, err := GetActivation(name)
			require.NoError(t, err)
			got := a.DF(x)
			want := numericJacobian(a.F, x)
			require.True(t, mat.EqualApprox(got, want, 1e-5), "jacobian mismatch\n got %v\nwant %v", mat.Formatted(got), mat.Formatted(want))
		})
	}
}

func TestLogJacobian(t *testing.T) {
	x := []float64{0.5, 2, 4}
	a, err := GetActivation("log")
	require.NoError(t, err)
	require.True(t, mat.EqualApprox(a.DF(x), numericJacobian(a.F, x), 1e-5))
}

func TestReluAndScaledTanh(t *testing.T) {
	r := MustActivation("relu")
	require.Equal(t, []float64{0, 0, 3}, r.F([]float64{-1, 0, 3}))
	require.Equal(t, 0.0, r.ElemDF(0))
	require.Equal(t, 1.0, r.ElemDF(2))

	th := TanhScaled(2)
	require.InDelta(t, 2*math.Tanh(0.3), th.Elem(0.3), 1e-12)
	require.InDelta(t, 2.0, th.ElemDF(0), 1e-12)
	require.True(t, th.Elementwise())
	require.False(t, MustActivation("softmax").Elementwise())
}

func TestSoftmaxIsStable(t *testing.T) {
	s := MustActivation("softmax").F([]float64{1000, 1000})
	require.InDeltaSlice(t, []float64{0.5, 0.5}, s, 1e-12)
}

func TestObjectiveGradients(t *testing.T) {
	target := []float64{0.2, 0.7, 0.1}
	y := []float64{0.3, 0.5, 0.2}
	for _, name := range []string{"square_diff", "huber", "cross_entropy", "cross_entropy_1d"} {
		t.Run(name, func(t *testing.T) {
			o, err := GetObjective(name)
			require.NoError(t, err)
			got, err := o.DF(target, y)
			require.NoError(t, err)
			want := numericGrad(func(v []float64) float64 {
				f, err := o.F(target, v)
				require.NoError(t, err)
				return f
			}, y)
			require.InDeltaSlice(t, want, got, 1e-4)
		})
	}
}

func TestHuberLinearRegion(t *testing.T) {
	o := MustObjective("huber")
	f, err := o.F([]float64{0, 0}, []float64{3, 4})
	require.NoError(t, err)
	require.InDelta(t, 4.5, f, 1e-12)
	g, err := o.DF([]float64{0, 0}, []float64{3, 4})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0.6, 0.8}, g, 1e-12)
}

func TestObjectiveLengthMismatch(t *testing.T) {
	_, err := MustObjective("square_diff").F([]float64{1}, []float64{1, 2})
	require.Error(t, err)
}

func TestSelectors(t *testing.T) {
	x := []float64{0.1, 0.6, 0.3}

	sm, err := GetSelector("softmax_i")
	require.NoError(t, err)
	g, err := sm.DF(x, 1)
	require.NoError(t, err)
	want := numericGrad(func(v []float64) float64 {
		f, _ := sm.F(v, 1)
		return f
	}, x)
	require.InDeltaSlice(t, want, g, 1e-5)

	lp, err := GetSelector("log_policy")
	require.NoError(t, err)
	g, err = lp.DF([]float64{1e-6, 0.5}, 0)
	require.NoError(t, err)
	require.Equal(t, []float64{logPolicyGradCap, 0}, g)

	_, err = lp.F(x, 3)
	require.Error(t, err)
}

func TestRegistryLookupErrors(t *testing.T) {
	_, err := GetActivation("nope")
	require.True(t, errors.Is(err, ErrFunctionNotFound))

	_, err = GetActivation(None)
	require.True(t, errors.Is(err, ErrNoFunction))

	_, err = GetActivation("huber")
	require.True(t, errors.Is(err, ErrWrongKind))

	kind, err := KindOf("log_policy")
	require.NoError(t, err)
	require.Equal(t, KindSelector, kind)
}

func TestRegisterCustom(t *testing.T) {
	defer resetRegistryForTests()

	square := Activation{
		Name: "square",
		F: func(x []float64) []float64 {
			out := make([]float64, len(x))
			for i, v := range x {
				out[i] = v * v
			}
			return out
		},
		DF: func(x []float64) *mat.Dense { return diag(x, func(v float64) float64 { return 2 * v }) },
	}
	require.NoError(t, RegisterActivation(square))
	require.True(t, errors.Is(RegisterActivation(square), ErrFunctionExists))
	require.Error(t, RegisterActivation(Activation{Name: None, F: square.F, DF: square.DF}))
	require.Error(t, RegisterObjective(Objective{Name: "broken"}))

	j, err := Jacobian("square", []float64{3})
	require.NoError(t, err)
	require.Equal(t, 6.0, j.At(0, 0))
	require.Contains(t, Names(), "square")
}

func TestNamesIncludesBuiltIns(t *testing.T) {
	names := Names()
	for _, want := range []string{"sigmoid", "relu", "tanh", "square_diff", "softmax", "huber", "log", "log_policy", "cross_entropy", "cross_entropy_1d", "linear", "softmax_i"} {
		require.Contains(t, names, want)
	}
}
