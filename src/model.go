package samformer

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// linear - fully connected projection without activation, applied to the
// rows of a 2-D view. All four model projections are instances of this.
type linear struct {
	in, out int

	weight *tensor // (in, out)
	bias   *tensor // (out)

	gradW *tensor
	gradB *tensor

	input *tensor // cached (rows, in) view for backward
}

func newLinear(in, out int, init Initializer, rng *rand.Rand) *linear {
	l := &linear{
		in:     in,
		out:    out,
		weight: newTensor(in, out),
		bias:   newTensor(out),
		gradW:  newTensor(in, out),
		gradB:  newTensor(out),
	}
	init.initialize(l.weight, in, out, rng)
	init.initialize(l.bias, in, out, rng)
	return l
}

// forward computes x @ W + b for x of shape (rows, in).
func (l *linear) forward(x *tensor) *tensor {
	rows := x.shape[0]
	l.input = x

	out := newTensor(rows, l.out)
	out.matrix(rows, l.out).Mul(x.matrix(rows, l.in), l.weight.matrix(l.in, l.out))
	for r := 0; r < rows; r++ {
		for j := 0; j < l.out; j++ {
			out.data[r*l.out+j] += l.bias.data[j]
		}
	}
	return out
}

// backward accumulates weight and bias gradients for gradOut of shape
// (rows, out) and returns the gradient w.r.t. the cached input.
func (l *linear) backward(gradOut *tensor) *tensor {
	rows := gradOut.shape[0]

	// dW += xT @ dY
	var dW mat.Dense
	dW.Mul(l.input.matrix(rows, l.in).T(), gradOut.matrix(rows, l.out))
	for i := 0; i < l.in; i++ {
		for j := 0; j < l.out; j++ {
			l.gradW.data[i*l.out+j] += dW.At(i, j)
		}
	}

	// db += column sums of dY
	for r := 0; r < rows; r++ {
		for j := 0; j < l.out; j++ {
			l.gradB.data[j] += gradOut.data[r*l.out+j]
		}
	}

	// dX = dY @ WT
	gradIn := newTensor(rows, l.in)
	gradIn.matrix(rows, l.in).Mul(gradOut.matrix(rows, l.out), l.weight.matrix(l.in, l.out).T())
	return gradIn
}

func (l *linear) parameters() []*tensor { return []*tensor{l.weight, l.bias} }
func (l *linear) gradients() []*tensor  { return []*tensor{l.gradW, l.gradB} }

// network - the forecasting architecture: reversible instance
// normalization, channel-wise attention with a residual connection, and a
// linear forecast head. Parameters are owned here and mutated only by the
// optimizer's step functions.
type network struct {
	channels  int
	seqLen    int
	hiddenDim int
	horizon   int
	useRevIN  bool

	revin *revIN

	computeQueries   *linear // seqLen -> hiddenDim
	computeKeys      *linear // seqLen -> hiddenDim
	computeValues    *linear // seqLen -> seqLen
	linearForecaster *linear // seqLen -> horizon

	// forward caches consumed by backward
	input      *tensor
	xNorm      *tensor
	stats      *revinStats
	q, k, v    *tensor
	attWeights *tensor
	attOut     *tensor
	proj       *tensor // forecaster output before denormalization
}

func newNetwork(channels, seqLen, hiddenDim, horizon int, useRevIN bool, init Initializer, rng *rand.Rand) *network {
	n := &network{
		channels:         channels,
		seqLen:           seqLen,
		hiddenDim:        hiddenDim,
		horizon:          horizon,
		useRevIN:         useRevIN,
		computeQueries:   newLinear(seqLen, hiddenDim, init, rng),
		computeKeys:      newLinear(seqLen, hiddenDim, init, rng),
		computeValues:    newLinear(seqLen, seqLen, init, rng),
		linearForecaster: newLinear(seqLen, horizon, init, rng),
	}
	if useRevIN {
		n.revin = newRevIN(channels, revinEpsilon)
	}
	return n
}

// revinEpsilon guards the std division for constant series.
const revinEpsilon = 1e-5

// forward runs the full pass: normalize, channel attention, residual,
// forecast head, denormalize. With flatten the (batch, channels, horizon)
// output collapses to (batch, channels*horizon) for loss computation.
func (n *network) forward(x *tensor, flatten bool) (*tensor, error) {
	if err := validateShape([]int{n.channels, n.seqLen}, x.shape[1:]); err != nil {
		return nil, errorf("forward input shape %v does not match model (channels=%d, seqLen=%d)",
			x.shape[1:], n.channels, n.seqLen)
	}
	batch := x.shape[0]
	rows := batch * n.channels

	n.input = x
	if n.useRevIN {
		n.xNorm, n.stats = n.revin.normalize(x)
	} else {
		n.xNorm, n.stats = x, nil
	}

	flat := n.xNorm.reshape(rows, n.seqLen)
	n.q = n.computeQueries.forward(flat).reshape(batch, n.channels, n.hiddenDim)
	n.k = n.computeKeys.forward(flat).reshape(batch, n.channels, n.hiddenDim)
	n.v = n.computeValues.forward(flat).reshape(batch, n.channels, n.seqLen)

	n.attWeights = newTensor(batch, n.channels, n.channels)
	n.attOut = scaledDotProductAttention(n.q, n.k, n.v, n.attWeights)

	residual := newTensor(batch, n.channels, n.seqLen)
	elemAdd(n.xNorm, n.attOut, residual)

	n.proj = n.linearForecaster.forward(residual.reshape(rows, n.seqLen)).reshape(batch, n.channels, n.horizon)

	out := n.proj
	if n.useRevIN {
		var err error
		out, err = n.revin.denormalize(n.proj, n.stats)
		if err != nil {
			return nil, err
		}
	}

	if flatten {
		return out.reshape(batch, n.channels*n.horizon), nil
	}
	return out, nil
}

// backward accumulates parameter gradients from the loss gradient of the
// most recent forward pass. grad may be flattened or (batch, channels,
// horizon); the layouts are identical.
func (n *network) backward(grad *tensor) error {
	if n.xNorm == nil {
		return errorf("backward called before forward")
	}
	batch := n.input.shape[0]
	rows := batch * n.channels

	g := grad.reshape(batch, n.channels, n.horizon)

	dProj := g
	if n.useRevIN {
		dProj = n.revin.denormBackward(g, n.proj, n.stats)
	}

	dResidual := n.linearForecaster.backward(dProj.reshape(rows, n.horizon)).
		reshape(batch, n.channels, n.seqLen)

	// The residual feeds the gradient to both the attention output and the
	// normalized input.
	dXNorm := dResidual.clone()

	dq, dk, dv := attentionBackward(dResidual, n.q, n.k, n.v, n.attWeights)

	dFromQ := n.computeQueries.backward(dq.reshape(rows, n.hiddenDim))
	dFromK := n.computeKeys.backward(dk.reshape(rows, n.hiddenDim))
	dFromV := n.computeValues.backward(dv.reshape(rows, n.seqLen))

	axpy(1, dFromQ, dXNorm)
	axpy(1, dFromK, dXNorm)
	axpy(1, dFromV, dXNorm)

	if n.useRevIN {
		n.revin.normBackward(dXNorm)
	}
	return nil
}

func (n *network) parameters() []*tensor {
	params := append([]*tensor{}, n.computeQueries.parameters()...)
	params = append(params, n.computeKeys.parameters()...)
	params = append(params, n.computeValues.parameters()...)
	params = append(params, n.linearForecaster.parameters()...)
	if n.useRevIN {
		params = append(params, n.revin.parameters()...)
	}
	return params
}

func (n *network) gradients() []*tensor {
	grads := append([]*tensor{}, n.computeQueries.gradients()...)
	grads = append(grads, n.computeKeys.gradients()...)
	grads = append(grads, n.computeValues.gradients()...)
	grads = append(grads, n.linearForecaster.gradients()...)
	if n.useRevIN {
		grads = append(grads, n.revin.gradients()...)
	}
	return grads
}

func (n *network) zeroGradients() {
	for _, g := range n.gradients() {
		g.zero()
	}
}
