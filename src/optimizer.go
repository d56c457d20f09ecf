package samformer

import "math"

// Optimizer updates model parameters from already-computed gradients.
// Implementations are plain descent rules; they are agnostic to whether a
// sharpness-aware wrapper corrected the gradients before step is called.
type Optimizer interface {
	init(params []*tensor)
	step(params []*tensor, grads []*tensor)
	setLR(lr float64)
	lr() float64
	name() string
}

// twoPhaseOptimizer is the capability the trainer probes for once at
// construction: ascent to the worst-case neighborhood, then a corrected
// descent. The two steps must strictly alternate.
type twoPhaseOptimizer interface {
	Optimizer
	ascentStep(params, grads []*tensor, zeroGrads bool) error
	descentStep(params, grads []*tensor, zeroGrads bool) error
}

// SGDOptimizer - Stochastic Gradient Descent
type SGDOptimizer struct {
	LR          float64
	Momentum    float64
	Dampening   float64
	WeightDecay float64
	Nesterov    bool
	velocities  []*tensor
	initialized bool
}

type SGDConfig struct {
	LR          float64
	Momentum    float64
	Dampening   float64
	WeightDecay float64
	Nesterov    bool
}

func SGD(config SGDConfig) Optimizer {
	return &SGDOptimizer{
		LR:          config.LR,
		Momentum:    config.Momentum,
		Dampening:   config.Dampening,
		WeightDecay: config.WeightDecay,
		Nesterov:    config.Nesterov,
	}
}

func (s *SGDOptimizer) init(params []*tensor) {
	s.velocities = make([]*tensor, len(params))
	for i, p := range params {
		s.velocities[i] = newTensor(p.shape...)
	}
	s.initialized = true
}

func (s *SGDOptimizer) step(params []*tensor, grads []*tensor) {
	if !s.initialized {
		s.init(params)
	}
	for i, p := range params {
		g := grads[i]
		v := s.velocities[i]

		for j := range p.data {
			grad := g.data[j]
			if s.WeightDecay != 0 {
				grad += s.WeightDecay * p.data[j]
			}
			if s.Momentum != 0 {
				v.data[j] = s.Momentum*v.data[j] + (1-s.Dampening)*grad
				if s.Nesterov {
					grad = grad + s.Momentum*v.data[j]
				} else {
					grad = v.data[j]
				}
			}
			p.data[j] -= s.LR * grad
		}
	}
}

func (s *SGDOptimizer) setLR(lr float64) { s.LR = lr }
func (s *SGDOptimizer) lr() float64      { return s.LR }
func (s *SGDOptimizer) name() string     { return "sgd" }

// AdamOptimizer - Adaptive Moment Estimation
type AdamOptimizer struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64
	AMSGrad     bool
	m           []*tensor
	v           []*tensor
	vMax        []*tensor
	t           int
	initialized bool
}

type AdamConfig struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64
	AMSGrad     bool
}

func Adam(config AdamConfig) Optimizer {
	return &AdamOptimizer{
		LR:          config.LR,
		Beta1:       config.Beta1,
		Beta2:       config.Beta2,
		Epsilon:     config.Epsilon,
		WeightDecay: config.WeightDecay,
		AMSGrad:     config.AMSGrad,
	}
}

func (a *AdamOptimizer) init(params []*tensor) {
	a.m = make([]*tensor, len(params))
	a.v = make([]*tensor, len(params))
	if a.AMSGrad {
		a.vMax = make([]*tensor, len(params))
	}
	for i, p := range params {
		a.m[i] = newTensor(p.shape...)
		a.v[i] = newTensor(p.shape...)
		if a.AMSGrad {
			a.vMax[i] = newTensor(p.shape...)
		}
	}
	a.t = 0
	a.initialized = true
}

func (a *AdamOptimizer) step(params []*tensor, grads []*tensor) {
	if !a.initialized {
		a.init(params)
	}
	a.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i, p := range params {
		g := grads[i]
		m := a.m[i]
		v := a.v[i]

		for j := range p.data {
			grad := g.data[j]
			if a.WeightDecay != 0 {
				grad += a.WeightDecay * p.data[j]
			}
			m.data[j] = a.Beta1*m.data[j] + (1-a.Beta1)*grad
			v.data[j] = a.Beta2*v.data[j] + (1-a.Beta2)*grad*grad

			mHat := m.data[j] / bc1
			vHat := v.data[j] / bc2

			if a.AMSGrad {
				if vHat > a.vMax[i].data[j] {
					a.vMax[i].data[j] = vHat
				}
				vHat = a.vMax[i].data[j]
			}

			p.data[j] -= a.LR * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}

func (a *AdamOptimizer) setLR(lr float64) { a.LR = lr }
func (a *AdamOptimizer) lr() float64      { return a.LR }
func (a *AdamOptimizer) name() string     { return "adam" }

// AdamWOptimizer - Adam with decoupled weight decay
type AdamWOptimizer struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64
	m           []*tensor
	v           []*tensor
	t           int
	initialized bool
}

type AdamWConfig struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64
}

func AdamW(config AdamWConfig) Optimizer {
	return &AdamWOptimizer{
		LR:          config.LR,
		Beta1:       config.Beta1,
		Beta2:       config.Beta2,
		Epsilon:     config.Epsilon,
		WeightDecay: config.WeightDecay,
	}
}

func (a *AdamWOptimizer) init(params []*tensor) {
	a.m = make([]*tensor, len(params))
	a.v = make([]*tensor, len(params))
	for i, p := range params {
		a.m[i] = newTensor(p.shape...)
		a.v[i] = newTensor(p.shape...)
	}
	a.t = 0
	a.initialized = true
}

func (a *AdamWOptimizer) step(params []*tensor, grads []*tensor) {
	if !a.initialized {
		a.init(params)
	}
	a.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i, p := range params {
		g := grads[i]
		m := a.m[i]
		v := a.v[i]

		for j := range p.data {
			// Decoupled weight decay
			p.data[j] -= a.LR * a.WeightDecay * p.data[j]

			grad := g.data[j]
			m.data[j] = a.Beta1*m.data[j] + (1-a.Beta1)*grad
			v.data[j] = a.Beta2*v.data[j] + (1-a.Beta2)*grad*grad

			mHat := m.data[j] / bc1
			vHat := v.data[j] / bc2

			p.data[j] -= a.LR * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}

func (a *AdamWOptimizer) setLR(lr float64) { a.LR = lr }
func (a *AdamWOptimizer) lr() float64      { return a.LR }
func (a *AdamWOptimizer) name() string     { return "adamw" }
