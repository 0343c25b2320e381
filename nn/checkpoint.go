package nn

import (
	"gan_lib/tensor"

	"github.com/pkg/errors"
)

var ErrCheckpointConsumed = errors.New("checkpoint already restored")

// Checkpoint holds deep copies of the weights of one or more models. It can be restored
// once.
type Checkpoint struct {
	models   []*Model
	weights  [][]*tensor.Tensor
	consumed bool
}

// Snapshot captures the current weights of models.
func Snapshot(models ...*Model) *Checkpoint {
	c := &Checkpoint{models: models, weights: make([][]*tensor.Tensor, len(models))}
	for i, m := range models {
		c.weights[i] = m.Weights()
	}
	return c
}

// Restore writes the captured weights back into the live models.
func (c *Checkpoint) Restore() error {
	if c.consumed {
		return ErrCheckpointConsumed
	}
	c.consumed = true
	for i, m := range c.models {
		if err := m.SetWeights(c.weights[i]); err != nil {
			return errors.Wrap(err, "restore checkpoint")
		}
	}
	return nil
}

// Discard marks the checkpoint used without restoring it.
func (c *Checkpoint) Discard() { c.consumed = true }

func (c *Checkpoint) Consumed() bool { return c.consumed }
