package samformer

import (
	"errors"
	"math"
	"testing"
)

// quadratic is a tiny convex objective (p0-3)^2 + (p1+1)^2 with an exact
// gradient, used to sanity-check the two-phase update.
func quadraticLoss(p *tensor) float64 {
	a := p.data[0] - 3
	b := p.data[1] + 1
	return a*a + b*b
}

func quadraticGrad(p, g *tensor) {
	g.data[0] = 2 * (p.data[0] - 3)
	g.data[1] = 2 * (p.data[1] + 1)
}

func TestGlobalGradNorm(t *testing.T) {
	tests := []struct {
		name  string
		grads [][]float64
		want  float64
	}{
		{name: "single tensor 3-4-5 triangle", grads: [][]float64{{3, 4}}, want: 5},
		{name: "two tensors", grads: [][]float64{{3, 4}, {12}}, want: 13},
		{name: "zeros", grads: [][]float64{{0, 0}, {0}}, want: 0},
		{name: "negatives", grads: [][]float64{{-3, 4}, {0, -12}}, want: 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grads := make([]*tensor, len(tt.grads))
			for i, g := range tt.grads {
				grads[i] = &tensor{data: g, shape: []int{len(g)}}
			}
			got := globalGradNorm(grads)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("globalGradNorm() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSAMCycleDecreasesQuadratic(t *testing.T) {
	params := []*tensor{newTensor(2)}
	params[0].data[0], params[0].data[1] = 10, -6
	grads := []*tensor{newTensor(2)}

	opt := SAM(SAMConfig{
		Rho:     0.05,
		Epsilon: 1e-12,
		Base:    SGD(SGDConfig{LR: 0.1}),
	})
	opt.init(params)
	sam := opt.(*SAMOptimizer)

	before := quadraticLoss(params[0])

	quadraticGrad(params[0], grads[0])
	if err := sam.ascentStep(params, grads, true); err != nil {
		t.Fatalf("ascentStep() error = %v", err)
	}
	quadraticGrad(params[0], grads[0]) // fresh gradient at the perturbed point
	if err := sam.descentStep(params, grads, true); err != nil {
		t.Fatalf("descentStep() error = %v", err)
	}

	after := quadraticLoss(params[0])
	if after >= before {
		t.Errorf("loss did not decrease: before %v, after %v", before, after)
	}
}

func TestSAMAscentPerturbsAndDescentRestores(t *testing.T) {
	params := []*tensor{newTensor(2)}
	params[0].data[0], params[0].data[1] = 1, 2
	grads := []*tensor{newTensor(2)}

	opt := SAM(SAMConfig{Rho: 0.5, Epsilon: 1e-12, Base: SGD(SGDConfig{LR: 0})})
	opt.init(params)
	sam := opt.(*SAMOptimizer)

	quadraticGrad(params[0], grads[0])
	gradNorm := globalGradNorm(grads)
	wantP0 := params[0].data[0] + 0.5*grads[0].data[0]/(gradNorm+1e-12)

	if err := sam.ascentStep(params, grads, false); err != nil {
		t.Fatalf("ascentStep() error = %v", err)
	}
	if math.Abs(params[0].data[0]-wantP0) > 1e-12 {
		t.Errorf("perturbed p0 = %v, want %v", params[0].data[0], wantP0)
	}

	// With a zero learning rate the descent must restore the exact
	// pre-ascent parameters.
	if err := sam.descentStep(params, grads, false); err != nil {
		t.Fatalf("descentStep() error = %v", err)
	}
	if params[0].data[0] != 1 || params[0].data[1] != 2 {
		t.Errorf("parameters not restored: got %v", params[0].data)
	}
}

func TestSAMProtocolViolations(t *testing.T) {
	params := []*tensor{newTensor(2)}
	grads := []*tensor{newTensor(2)}
	grads[0].fill(1)

	t.Run("descent before ascent", func(t *testing.T) {
		opt := SAM(SAMConfig{Rho: 0.1, Epsilon: 1e-12, Base: SGD(SGDConfig{LR: 0.1})})
		opt.init(params)
		sam := opt.(*SAMOptimizer)
		if err := sam.descentStep(params, grads, false); !errors.Is(err, ErrOptimizerProtocol) {
			t.Errorf("descentStep() error = %v, want ErrOptimizerProtocol", err)
		}
	})

	t.Run("ascent twice", func(t *testing.T) {
		opt := SAM(SAMConfig{Rho: 0.1, Epsilon: 1e-12, Base: SGD(SGDConfig{LR: 0.1})})
		opt.init(params)
		sam := opt.(*SAMOptimizer)
		if err := sam.ascentStep(params, grads, false); err != nil {
			t.Fatalf("first ascentStep() error = %v", err)
		}
		if err := sam.ascentStep(params, grads, false); !errors.Is(err, ErrOptimizerProtocol) {
			t.Errorf("second ascentStep() error = %v, want ErrOptimizerProtocol", err)
		}
	})
}

func TestSAMZeroGradientGuard(t *testing.T) {
	// An all-zero gradient must not divide by zero; the parameters simply
	// stay put through the whole cycle.
	params := []*tensor{newTensor(3)}
	params[0].fill(1.5)
	grads := []*tensor{newTensor(3)}

	opt := SAM(SAMConfig{Rho: 0.5, Epsilon: 1e-12, Base: SGD(SGDConfig{LR: 0.1})})
	opt.init(params)
	sam := opt.(*SAMOptimizer)

	if err := sam.ascentStep(params, grads, false); err != nil {
		t.Fatalf("ascentStep() error = %v", err)
	}
	if err := sam.descentStep(params, grads, false); err != nil {
		t.Fatalf("descentStep() error = %v", err)
	}
	for i, v := range params[0].data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite parameter at %d: %v", i, v)
		}
		if v != 1.5 {
			t.Errorf("parameter %d moved under zero gradient: %v", i, v)
		}
	}
}

func TestSAMDefaultEpsilonGuardsZeroGradient(t *testing.T) {
	// A config that leaves Epsilon unset must still survive an all-zero
	// gradient: the norm division falls back to the default guard instead
	// of producing Rho/0 and NaN parameters.
	params := []*tensor{newTensor(3)}
	params[0].fill(2.0)
	grads := []*tensor{newTensor(3)}

	opt := SAM(SAMConfig{Rho: 0.5, Base: SGD(SGDConfig{LR: 0.1})})
	opt.init(params)
	sam := opt.(*SAMOptimizer)

	if err := sam.ascentStep(params, grads, false); err != nil {
		t.Fatalf("ascentStep() error = %v", err)
	}
	for i, v := range params[0].data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("parameter %d corrupted after ascent with zero gradient: %v", i, v)
		}
	}
	if err := sam.descentStep(params, grads, false); err != nil {
		t.Fatalf("descentStep() error = %v", err)
	}
	for i, v := range params[0].data {
		if v != 2.0 {
			t.Errorf("parameter %d moved under zero gradient: %v", i, v)
		}
	}
}

func TestSAMStepIsDropInForBase(t *testing.T) {
	// Through the plain step method SAM must behave exactly like its base.
	p1 := []*tensor{newTensor(2)}
	p2 := []*tensor{newTensor(2)}
	p1[0].data[0], p1[0].data[1] = 4, -2
	p2[0].data[0], p2[0].data[1] = 4, -2
	g := []*tensor{newTensor(2)}
	g[0].data[0], g[0].data[1] = 1, -3

	base := SGD(SGDConfig{LR: 0.01})
	wrapped := SAM(SAMConfig{Rho: 0.5, Epsilon: 1e-12, Base: SGD(SGDConfig{LR: 0.01})})
	base.init(p1)
	wrapped.init(p2)

	base.step(p1, g)
	wrapped.step(p2, g)

	for i := range p1[0].data {
		if p1[0].data[i] != p2[0].data[i] {
			t.Errorf("drop-in mismatch at %d: base %v, wrapped %v", i, p1[0].data[i], p2[0].data[i])
		}
	}
}
