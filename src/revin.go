package samformer

import (
	"gonum.org/v1/gonum/stat"
)

// revinStats holds the per-sample, per-channel statistics captured by one
// normalize call. They live exactly as long as the forward pass that
// produced them: normalize returns them, the paired denormalize call
// consumes them, nothing is retained on the normalizer itself.
type revinStats struct {
	mean *tensor // (batch, channels)
	std  *tensor // (batch, channels), population std over the time axis
}

// revIN - reversible instance normalization with a learned per-channel
// affine correction. Operates on (batch, channels, length) directly,
// normalizing each channel of each sample over its time axis.
type revIN struct {
	channels int
	eps      float64

	gamma *tensor // (channels)
	beta  *tensor // (channels)

	gradGamma *tensor
	gradBeta  *tensor

	xHat *tensor // cache for backward: normalized values before the affine
}

func newRevIN(channels int, eps float64) *revIN {
	r := &revIN{
		channels:  channels,
		eps:       eps,
		gamma:     newTensor(channels),
		beta:      newTensor(channels),
		gradGamma: newTensor(channels),
		gradBeta:  newTensor(channels),
	}
	r.gamma.fill(1.0)
	return r
}

// normalize standardizes every (sample, channel) series over the time axis
// and applies the learned affine. The returned statistics must be handed
// back to the denormalize call of the same forward pass.
func (r *revIN) normalize(x *tensor) (*tensor, *revinStats) {
	batch := x.shape[0]
	channels := x.shape[1]
	length := x.shape[2]

	stats := &revinStats{
		mean: newTensor(batch, channels),
		std:  newTensor(batch, channels),
	}
	r.xHat = newTensor(x.shape...)
	out := newTensor(x.shape...)

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			base := (b*channels + c) * length
			series := x.data[base : base+length]

			mean := stat.Mean(series, nil)
			std := stat.PopStdDev(series, nil)
			stats.mean.data[b*channels+c] = mean
			stats.std.data[b*channels+c] = std

			denom := std + r.eps
			for t := 0; t < length; t++ {
				xn := (series[t] - mean) / denom
				r.xHat.data[base+t] = xn
				out.data[base+t] = r.gamma.data[c]*xn + r.beta.data[c]
			}
		}
	}

	return out, stats
}

// denormalize inverts the affine and restores the original scale using the
// statistics from the matching normalize call. The input may have any
// trailing length (the forecast horizon); only batch and channel counts
// must agree with the captured statistics.
func (r *revIN) denormalize(y *tensor, stats *revinStats) (*tensor, error) {
	if stats == nil {
		return nil, errorf("denormalize called without statistics from a preceding normalize")
	}
	if err := validateShape(stats.mean.shape, y.shape[:2]); err != nil {
		return nil, errorf("denormalize batch/channel shape %v does not match captured statistics %v",
			y.shape[:2], stats.mean.shape)
	}

	batch := y.shape[0]
	channels := y.shape[1]
	length := y.shape[2]

	out := newTensor(y.shape...)
	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			base := (b*channels + c) * length
			scale := stats.std.data[b*channels+c] + r.eps
			mean := stats.mean.data[b*channels+c]
			for t := 0; t < length; t++ {
				out.data[base+t] = (y.data[base+t]-r.beta.data[c])/r.gamma.data[c]*scale + mean
			}
		}
	}

	return out, nil
}

// denormBackward propagates a gradient through denormalize, accumulating
// the affine gradients and returning the gradient w.r.t. the denormalize
// input. y is the tensor that was passed to denormalize.
func (r *revIN) denormBackward(grad, y *tensor, stats *revinStats) *tensor {
	batch := y.shape[0]
	channels := y.shape[1]
	length := y.shape[2]

	gradIn := newTensor(y.shape...)
	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			base := (b*channels + c) * length
			scale := stats.std.data[b*channels+c] + r.eps
			gamma := r.gamma.data[c]
			for t := 0; t < length; t++ {
				g := grad.data[base+t]
				gradIn.data[base+t] = g * scale / gamma
				r.gradBeta.data[c] -= g * scale / gamma
				r.gradGamma.data[c] -= g * (y.data[base+t] - r.beta.data[c]) / (gamma * gamma) * scale
			}
		}
	}
	return gradIn
}

// normBackward accumulates the affine gradients for the normalize side
// using the cached pre-affine values. The model input itself carries no
// gradient, so nothing is returned.
func (r *revIN) normBackward(grad *tensor) {
	channels := r.channels
	length := grad.shape[2]
	batch := grad.shape[0]

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			base := (b*channels + c) * length
			for t := 0; t < length; t++ {
				r.gradGamma.data[c] += grad.data[base+t] * r.xHat.data[base+t]
				r.gradBeta.data[c] += grad.data[base+t]
			}
		}
	}
}

func (r *revIN) parameters() []*tensor {
	return []*tensor{r.gamma, r.beta}
}

func (r *revIN) gradients() []*tensor {
	return []*tensor{r.gradGamma, r.gradBeta}
}
