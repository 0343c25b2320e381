package layers

import (
	"fmt"
	"math"
	"math/rand"

	"gan_lib/tensor"

	"gonum.org/v1/gonum/stat/distuv"
)

// Dense is a fully-connected layer y = x·Wᵀ + B over a [batch, in] input.
type Dense struct {
	W, B *tensor.Tensor // W is (out, in), B is (out)

	gradW, gradB *tensor.Tensor
	lastInput    *tensor.Tensor
}

// NewDense allocates an inDim→outDim layer with Glorot-uniform weights and zero bias.
func NewDense(inDim, outDim int, rng *rand.Rand) *Dense {
	l := &Dense{
		W:     tensor.New(outDim, inDim),
		B:     tensor.New(outDim),
		gradW: tensor.New(outDim, inDim),
		gradB: tensor.New(outDim),
	}
	limit := math.Sqrt(6 / float64(inDim+outDim))
	glorot := distuv.Uniform{Min: -limit, Max: limit}
	for i := range l.W.Data {
		l.W.Data[i] = glorot.Quantile(rng.Float64())
	}
	return l
}

func (l *Dense) InputDim() int  { return l.W.Shape[1] }
func (l *Dense) OutputDim() int { return l.W.Shape[0] }

func (l *Dense) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 2 || x.Shape[1] != l.InputDim() {
		return nil, fmt.Errorf("dense: expected [batch, %d] input, got %v", l.InputDim(), x.Shape)
	}
	// Cache input for backward
	l.lastInput = x.Clone()

	wT, err := tensor.Transpose(l.W)
	if err != nil {
		return nil, err
	}
	out, err := tensor.MatMul(x, wT)
	if err != nil {
		return nil, err
	}
	outDim := l.OutputDim()
	for i := 0; i < out.Shape[0]; i++ {
		row := out.Row(i)
		for j := 0; j < outDim; j++ {
			row[j] += l.B.Data[j]
		}
	}
	return out, nil
}

// Backward stores dL/dW and dL/dB summed over the batch and returns dL/dx. The loss
// gradient already carries the 1/batch factor.
func (l *Dense) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	input := l.lastInput
	if input == nil {
		return nil, fmt.Errorf("dense: no cached input for backward pass")
	}
	inDim, outDim := l.InputDim(), l.OutputDim()
	batch := input.Shape[0]
	if len(gradOut.Data) != batch*outDim {
		return nil, fmt.Errorf("dense: gradient shape %v does not match [%d, %d]", gradOut.Shape, batch, outDim)
	}

	for i := range l.gradW.Data {
		l.gradW.Data[i] = 0
	}
	for i := range l.gradB.Data {
		l.gradB.Data[i] = 0
	}
	gradIn := tensor.New(batch, inDim)
	for b := 0; b < batch; b++ {
		x := input.Row(b)
		gin := gradIn.Row(b)
		for j := 0; j < outDim; j++ {
			g := gradOut.Data[b*outDim+j]
			l.gradB.Data[j] += g
			w := l.W.Data[j*inDim : (j+1)*inDim]
			gw := l.gradW.Data[j*inDim : (j+1)*inDim]
			for i := 0; i < inDim; i++ {
				gw[i] += g * x[i]
				gin[i] += g * w[i]
			}
		}
	}
	return gradIn, nil
}

func (l *Dense) Params() []*tensor.Tensor { return []*tensor.Tensor{l.W, l.B} }
func (l *Dense) Grads() []*tensor.Tensor  { return []*tensor.Tensor{l.gradW, l.gradB} }

// Tag returns a string identifier for this layer.
func (l *Dense) Tag() string {
	return fmt.Sprintf("dense_%dx%d", l.InputDim(), l.OutputDim())
}
