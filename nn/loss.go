package nn

import (
	"math"

	"gan_lib/nn/functions"
	"gan_lib/tensor"

	"github.com/pkg/errors"
)

// bceEpsilon keeps probabilities away from 0 and 1 before taking logs.
const bceEpsilon = 1e-7

// Loss reduces a batch of predictions against labels to a scalar.
type Loss interface {
	Name() string
	Forward(pred, labels *tensor.Tensor) (float64, error)
	// Backward returns dLoss/dPred with pred's shape.
	Backward(pred, labels *tensor.Tensor) (*tensor.Tensor, error)
}

func checkBatch(pred, labels *tensor.Tensor) error {
	if len(pred.Data) != len(labels.Data) {
		return errors.Errorf("prediction/label size mismatch: %v vs %v", pred.Shape, labels.Shape)
	}
	if len(pred.Data) == 0 {
		return errors.New("empty batch")
	}
	return nil
}

// BinaryCrossEntropy is the mean cross-entropy of sigmoid outputs against labels.
// Labels are used as given; ±1 labels are accepted.
type BinaryCrossEntropy struct{}

func (BinaryCrossEntropy) Name() string { return "binary_crossentropy" }

func clipProbabilities(pred *tensor.Tensor) []float64 {
	out := make([]float64, len(pred.Data))
	for i, p := range pred.Data {
		out[i] = math.Min(math.Max(p, bceEpsilon), 1-bceEpsilon)
	}
	return out
}

func (BinaryCrossEntropy) Forward(pred, labels *tensor.Tensor) (float64, error) {
	if err := checkBatch(pred, labels); err != nil {
		return 0, err
	}
	total, err := functions.MustObjective("cross_entropy_1d").F(labels.Data, clipProbabilities(pred))
	if err != nil {
		return 0, err
	}
	return total / float64(len(pred.Data)), nil
}

func (BinaryCrossEntropy) Backward(pred, labels *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkBatch(pred, labels); err != nil {
		return nil, err
	}
	grad, err := functions.MustObjective("cross_entropy_1d").DF(labels.Data, clipProbabilities(pred))
	if err != nil {
		return nil, err
	}
	out := &tensor.Tensor{Data: grad, Shape: append([]int(nil), pred.Shape...)}
	n := float64(len(pred.Data))
	for i := range out.Data {
		out.Data[i] /= n
	}
	return out, nil
}

// Wasserstein is the critic loss mean(label * prediction).
type Wasserstein struct{}

func (Wasserstein) Name() string { return "wasserstein" }

func (Wasserstein) Forward(pred, labels *tensor.Tensor) (float64, error) {
	if err := checkBatch(pred, labels); err != nil {
		return 0, err
	}
	sum := 0.0
	for i, p := range pred.Data {
		sum += labels.Data[i] * p
	}
	return sum / float64(len(pred.Data)), nil
}

func (Wasserstein) Backward(pred, labels *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkBatch(pred, labels); err != nil {
		return nil, err
	}
	out := tensor.New(pred.Shape...)
	n := float64(len(pred.Data))
	for i := range out.Data {
		out.Data[i] = labels.Data[i] / n
	}
	return out, nil
}
