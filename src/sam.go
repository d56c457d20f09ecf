package samformer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// SAMOptimizer - Sharpness-Aware Minimization wrapping an injected base
// descent rule. The ascent step climbs to the worst-case point of the
// rho-ball around the current parameters; the descent step undoes the
// climb and applies the base rule with the gradient taken at the
// perturbed point. Seeking flat minima this way improves generalization
// over minimizing the point loss alone.
type SAMOptimizer struct {
	Rho     float64
	Epsilon float64
	base    Optimizer

	eW        []*tensor // cached ascent displacement, one per parameter
	perturbed bool
}

type SAMConfig struct {
	Rho     float64
	Epsilon float64 // guards the gradient-norm division; <= 0 uses 1e-12
	Base    Optimizer
}

// samDefaultEpsilon guards the gradient-norm division when the config
// leaves Epsilon unset; without it a zero gradient turns the ascent scale
// into Inf and writes NaN into every parameter.
const samDefaultEpsilon = 1e-12

// SAM wraps a base optimizer with sharpness-aware two-phase updates.
// The returned optimizer is a drop-in replacement: used through the plain
// step method it behaves exactly like the base rule.
func SAM(config SAMConfig) Optimizer {
	eps := config.Epsilon
	if eps <= 0 {
		eps = samDefaultEpsilon
	}
	return &SAMOptimizer{
		Rho:     config.Rho,
		Epsilon: eps,
		base:    config.Base,
	}
}

func (s *SAMOptimizer) init(params []*tensor) {
	s.eW = make([]*tensor, len(params))
	for i, p := range params {
		s.eW[i] = newTensor(p.shape...)
	}
	s.perturbed = false
	s.base.init(params)
}

// step applies the base rule directly, without the sharpness term.
// Training loops that want the two-phase update call ascentStep and
// descentStep instead.
func (s *SAMOptimizer) step(params []*tensor, grads []*tensor) {
	s.base.step(params, grads)
}

// ascentStep moves every parameter to p + rho * g / (||g|| + eps), where
// ||g|| is the global L2 norm over all parameter gradients, and caches the
// displacement for the matching descentStep.
func (s *SAMOptimizer) ascentStep(params, grads []*tensor, zeroGrads bool) error {
	if s.perturbed {
		return fmt.Errorf("%w: ascent step called twice without an intervening descent", ErrOptimizerProtocol)
	}
	if s.eW == nil {
		s.init(params)
	}

	scale := s.Rho / (globalGradNorm(grads) + s.Epsilon)
	for i, p := range params {
		e := s.eW[i]
		for j := range p.data {
			e.data[j] = grads[i].data[j] * scale
			p.data[j] += e.data[j]
		}
	}
	s.perturbed = true

	if zeroGrads {
		for _, g := range grads {
			g.zero()
		}
	}
	return nil
}

// descentStep restores every parameter to its unperturbed value and applies
// the base update with the gradient computed at the perturbed point.
func (s *SAMOptimizer) descentStep(params, grads []*tensor, zeroGrads bool) error {
	if !s.perturbed {
		return fmt.Errorf("%w: descent step called without a preceding ascent", ErrOptimizerProtocol)
	}

	for i, p := range params {
		e := s.eW[i]
		for j := range p.data {
			p.data[j] -= e.data[j]
		}
		e.zero() // displacement is consumed
	}
	s.perturbed = false

	s.base.step(params, grads)

	if zeroGrads {
		for _, g := range grads {
			g.zero()
		}
	}
	return nil
}

func (s *SAMOptimizer) setLR(lr float64) { s.base.setLR(lr) }
func (s *SAMOptimizer) lr() float64      { return s.base.lr() }
func (s *SAMOptimizer) name() string     { return "sam_" + s.base.name() }

// globalGradNorm computes the L2 norm of the concatenation of all gradient
// tensors as a norm of per-tensor norms, which avoids overflow in the
// intermediate squared sums.
func globalGradNorm(grads []*tensor) float64 {
	norms := make([]float64, len(grads))
	for i, g := range grads {
		norms[i] = floats.Norm(g.data, 2)
	}
	return floats.Norm(norms, 2)
}
