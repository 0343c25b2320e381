package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tensor is a simple n-D array backed by a flat []float64.
// Batches are 2-D tensors laid out row-major as [samples, features].
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	total := 1
	for _, d := range shape {
		total *= d
	}
	return &Tensor{
		Data:  make([]float64, total),
		Shape: append([]int(nil), shape...),
	}
}

// NewWithData creates a 1-D tensor from existing data slice.
func NewWithData(data []float64) *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: []int{len(data)},
	}
}

// NewMatrix creates a rows×cols tensor, copying data when it is non-nil.
func NewMatrix(rows, cols int, data []float64) (*Tensor, error) {
	t := New(rows, cols)
	if data == nil {
		return t, nil
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("NewMatrix: %d values do not fill a %dx%d matrix", len(data), rows, cols)
	}
	copy(t.Data, data)
	return t, nil
}

// Rows returns the first dimension of a 2-D tensor.
func (t *Tensor) Rows() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Cols returns the second dimension of a 2-D tensor, or 1 for vectors.
func (t *Tensor) Cols() int {
	if len(t.Shape) < 2 {
		return 1
	}
	return t.Shape[1]
}

// Row returns a view of row i; writes through the view mutate t.
func (t *Tensor) Row(i int) []float64 {
	c := t.Cols()
	return t.Data[i*c : (i+1)*c]
}

// Clone returns an independent deep copy of t.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), t.Data...),
		Shape: append([]int(nil), t.Shape...),
	}
}

// CopyFrom overwrites t's values with src's without reallocating, so every holder of t
// observes the new values.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !SameShape(t, src) {
		return fmt.Errorf("shape mismatch: %v vs %v", t.Shape, src.Shape)
	}
	copy(t.Data, src.Data)
	return nil
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *Tensor) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

// MatMul returns a×b (2-D only), or error if dims mismatch.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2-D tensors, got %v and %v", a.Shape, b.Shape)
	}
	r, k := a.Shape[0], a.Shape[1]
	k2, c := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("inner dimensions must match: %d vs %d", k, k2)
	}
	out := New(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum := 0.0
			for t := 0; t < k; t++ {
				sum += a.Data[i*k+t] * b.Data[t*c+j]
			}
			out.Data[i*c+j] = sum
		}
	}
	return out, nil
}

// Transpose returns the transpose of a 2-D tensor.
func Transpose(a *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 {
		return nil, fmt.Errorf("Transpose requires a 2-D tensor, got %v", a.Shape)
	}
	r, c := a.Shape[0], a.Shape[1]
	out := New(c, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Data[j*r+i] = a.Data[i*c+j]
		}
	}
	return out, nil
}

// ConcatRows stacks a on top of b. Both must be 2-D with equal column counts.
func ConcatRows(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 || a.Shape[1] != b.Shape[1] {
		return nil, fmt.Errorf("ConcatRows: incompatible shapes %v and %v", a.Shape, b.Shape)
	}
	out := New(a.Shape[0]+b.Shape[0], a.Shape[1])
	copy(out.Data, a.Data)
	copy(out.Data[len(a.Data):], b.Data)
	return out, nil
}

// TakeRows returns a new tensor whose row i is a's row idx[i].
func TakeRows(a *Tensor, idx []int) (*Tensor, error) {
	if len(a.Shape) == 0 {
		return nil, fmt.Errorf("TakeRows: scalar tensor")
	}
	out := New(append([]int{len(idx)}, a.Shape[1:]...)...)
	c := len(a.Data) / a.Shape[0]
	for i, src := range idx {
		if src < 0 || src >= a.Shape[0] {
			return nil, fmt.Errorf("TakeRows: row %d out of range for shape %v", src, a.Shape)
		}
		copy(out.Data[i*c:(i+1)*c], a.Data[src*c:(src+1)*c])
	}
	return out, nil
}

// Clip clamps every element into [-bound, bound] in place.
func (t *Tensor) Clip(bound float64) {
	if bound < 0 {
		bound = -bound
	}
	for i, v := range t.Data {
		switch {
		case v > bound:
			t.Data[i] = bound
		case v < -bound:
			t.Data[i] = -bound
		}
	}
}

// MaxAbs returns the largest absolute element, or 0 for an empty tensor.
func (t *Tensor) MaxAbs() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	return math.Max(floats.Max(t.Data), -floats.Min(t.Data))
}

// IsFinite reports whether no element is NaN or ±Inf.
func (t *Tensor) IsFinite() bool {
	if len(t.Data) == 0 {
		return true
	}
	return !floats.HasNaN(t.Data) && !math.IsInf(floats.Max(t.Data), 1) && !math.IsInf(floats.Min(t.Data), -1)
}
