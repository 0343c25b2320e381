package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	if len(t1.Data) != 6 {
		t.Fatalf("expected 6 elements, got %d", len(t1.Data))
	}
	if len(t1.Shape) != 2 || t1.Shape[0] != 2 || t1.Shape[1] != 3 {
		t.Fatalf("unexpected shape: %v", t1.Shape)
	}
	if t1.Rows() != 2 || t1.Cols() != 3 {
		t.Fatalf("Rows/Cols = %d/%d, want 2/3", t1.Rows(), t1.Cols())
	}
}

func TestMatMul(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3, 4}, Shape: []int{2, 2}}
	b := &Tensor{Data: []float64{5, 6, 7, 8}, Shape: []int{2, 2}}
	c, err := MatMul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{19, 22, 43, 50}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestTranspose(t *testing.T) {
	a, err := NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	tr, err := Transpose(a)
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, tr.Shape)
	require.Equal(t, []float64{1, 4, 2, 5, 3, 6}, tr.Data)
}

func TestCloneIsIndependent(t *testing.T) {
	a := NewWithData([]float64{1, 2, 3})
	b := a.Clone()
	a.Data[0] = 42
	require.Equal(t, 1.0, b.Data[0])
}

func TestCopyFromKeepsBacking(t *testing.T) {
	a := NewWithData([]float64{1, 2})
	alias := a
	require.NoError(t, a.CopyFrom(NewWithData([]float64{7, 8})))
	require.Equal(t, []float64{7, 8}, alias.Data)
	require.Error(t, a.CopyFrom(New(3)))
}

func TestConcatAndTakeRows(t *testing.T) {
	a, _ := NewMatrix(2, 1, []float64{1, 2})
	b, _ := NewMatrix(1, 1, []float64{3})
	c, err := ConcatRows(a, b)
	require.NoError(t, err)
	require.Equal(t, []int{3, 1}, c.Shape)

	p, err := TakeRows(c, []int{2, 0, 1})
	require.NoError(t, err)
	require.Equal(t, []float64{3, 1, 2}, p.Data)

	_, err = TakeRows(c, []int{5})
	require.Error(t, err)
}

func TestClipAndMaxAbs(t *testing.T) {
	a := NewWithData([]float64{-3, 0.05, 2, -0.01})
	a.Clip(0.1)
	require.Equal(t, []float64{-0.1, 0.05, 0.1, -0.01}, a.Data)
	require.InDelta(t, 0.1, a.MaxAbs(), 1e-12)
}

func TestIsFinite(t *testing.T) {
	require.True(t, NewWithData([]float64{1, 2}).IsFinite())
	require.False(t, NewWithData([]float64{1, math.NaN()}).IsFinite())
	require.False(t, NewWithData([]float64{math.Inf(-1)}).IsFinite())
	require.True(t, New(0).IsFinite())
}
