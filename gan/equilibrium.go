package gan

import (
	"math"
	"time"

	"gan_lib/nn"
	"gan_lib/tensor"
	"gan_lib/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// EquilibriumResult describes one accept/reject round.
type EquilibriumResult struct {
	Generation    int
	Error         float64
	ProposalError float64
	// AcceptProbability is exp(-temperature·generation); it only matters when the
	// proposal did not improve the error.
	AcceptProbability float64
	Accepted          bool
	// Samples is the generated batch of the opening discriminator round.
	Samples *tensor.Tensor
}

// TrainEquilibriumRound proposes one generator step followed by a discriminator burn-in
// and keeps it if the discriminator's error rose or, failing that, with probability
// exp(-temperature·generation). A rejected proposal restores both models.
// temperature <= 0 means DefaultTemperature.
func (t *Trainer) TrainEquilibriumRound(temperature float64) (EquilibriumResult, error) {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	t.generation++
	res := EquilibriumResult{
		Generation:        t.generation,
		AcceptProbability: math.Exp(-temperature * float64(t.generation)),
	}

	samples, loss, err := t.DiscriminatorRound()
	if err != nil {
		return res, err
	}
	res.Samples, res.Error = samples, loss

	cp := nn.Snapshot(t.ens.Discriminator, t.ens.Generator)
	defer t.rollbackUnconsumed(cp)
	if _, err := t.GeneratorRound(); err != nil {
		return res, err
	}
	for i := 0; i < equilibriumBurnIn; i++ {
		if _, res.ProposalError, err = t.DiscriminatorRound(); err != nil {
			return res, errors.WithMessagef(err, "burn-in round %d", i)
		}
	}

	res.Accepted = acceptProposal(res.Error, res.ProposalError, res.AcceptProbability, t.rng.Float64)

	fields := logrus.Fields{
		"generation":     res.Generation,
		"error":          res.Error,
		"proposal_error": res.ProposalError,
		"accepted":       res.Accepted,
	}
	if res.Accepted {
		cp.Discard()
		t.log.WithFields(fields).Debug("equilibrium proposal accepted")
		return res, nil
	}

	start := time.Now()
	defer t.track(func(s *utils.TimingStats) *time.Duration { return &s.RollbackTime }, start)
	if err := cp.Restore(); err != nil {
		return res, err
	}
	t.log.WithFields(fields).Debug("equilibrium proposal rejected")
	return res, nil
}

// acceptProposal keeps an improving proposal outright. Otherwise it draws once and
// accepts with probability p.
func acceptProposal(before, proposal, p float64, draw func() float64) bool {
	if proposal > before {
		return true
	}
	return draw() < p
}
