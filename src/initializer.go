package samformer

import (
	"math"
	"math/rand"
)

// Initializer sets up initial weights for the projections
type Initializer interface {
	initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand)
	name() string
}

// LeCunUniformInit - LeCun uniform initialization. With gain 1.0 this is
// the conventional default for linear projections.
type LeCunUniformInit struct {
	Gain float64
}

func LeCunUniform(gain float64) Initializer {
	return &LeCunUniformInit{Gain: gain}
}

func (l *LeCunUniformInit) initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand) {
	limit := l.Gain * math.Sqrt(3.0/float64(fanIn))
	t.fillRandUniform(-limit, limit, rng)
}

func (l *LeCunUniformInit) name() string { return "lecun_uniform" }

// XavierUniformInit - Xavier/Glorot uniform initialization
type XavierUniformInit struct {
	Gain float64
}

func XavierUniform(gain float64) Initializer {
	return &XavierUniformInit{Gain: gain}
}

func (x *XavierUniformInit) initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand) {
	limit := x.Gain * math.Sqrt(6.0/float64(fanIn+fanOut))
	t.fillRandUniform(-limit, limit, rng)
}

func (x *XavierUniformInit) name() string { return "xavier_uniform" }

// RandomUniformInit - simple random uniform
type RandomUniformInit struct {
	MinVal float64
	MaxVal float64
}

func RandomUniform(minVal, maxVal float64) Initializer {
	return &RandomUniformInit{MinVal: minVal, MaxVal: maxVal}
}

func (r *RandomUniformInit) initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand) {
	t.fillRandUniform(r.MinVal, r.MaxVal, rng)
}

func (r *RandomUniformInit) name() string { return "random_uniform" }

// ZerosInit - initialize with zeros
type ZerosInit struct{}

func Zeros() Initializer { return &ZerosInit{} }

func (z *ZerosInit) initialize(t *tensor, fanIn, fanOut int, rng *rand.Rand) {
	t.fill(0)
}

func (z *ZerosInit) name() string { return "zeros" }
