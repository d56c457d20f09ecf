package samformer

import "math"

// Channel-wise scaled dot-product attention. Each channel is a token:
// queries and keys are (batch, channels, hidDim), values keep the full
// sequence length (batch, channels, seqLen), and the softmax attends
// across channels, not across time steps. No masking, no dropout.

// scaledDotProductAttention computes softmax(q·kT/sqrt(hidDim))·v using
// gonum matrix products. The attention weights after softmax are written
// into weights (batch, channels, channels) for the backward pass.
func scaledDotProductAttention(q, k, v, weights *tensor) *tensor {
	batch := q.shape[0]
	channels := q.shape[1]
	hidDim := q.shape[2]
	length := v.shape[2]

	scale := 1.0 / math.Sqrt(float64(hidDim))
	out := newTensor(batch, channels, length)

	for b := 0; b < batch; b++ {
		qb := q.row(b, channels, hidDim)
		kb := k.row(b, channels, hidDim)
		vb := v.row(b, channels, length)
		wb := weights.row(b, channels, channels)

		wb.Mul(qb, kb.T())
		wb.Scale(scale, wb)
		softmaxRows(weights.data[b*channels*channels:(b+1)*channels*channels], channels)

		ob := out.row(b, channels, length)
		ob.Mul(wb, vb)
	}

	return out
}

// scaledDotProductAttentionManual is the explicit-loop fallback. It must
// stay numerically equivalent to the gonum path up to floating-point
// tolerance.
func scaledDotProductAttentionManual(q, k, v, weights *tensor) *tensor {
	batch := q.shape[0]
	channels := q.shape[1]
	hidDim := q.shape[2]
	length := v.shape[2]

	scale := 1.0 / math.Sqrt(float64(hidDim))
	out := newTensor(batch, channels, length)

	for b := 0; b < batch; b++ {
		for i := 0; i < channels; i++ {
			for j := 0; j < channels; j++ {
				score := 0.0
				for d := 0; d < hidDim; d++ {
					score += q.data[(b*channels+i)*hidDim+d] * k.data[(b*channels+j)*hidDim+d]
				}
				weights.data[(b*channels+i)*channels+j] = score * scale
			}
		}
		softmaxRows(weights.data[b*channels*channels:(b+1)*channels*channels], channels)

		for i := 0; i < channels; i++ {
			for t := 0; t < length; t++ {
				val := 0.0
				for j := 0; j < channels; j++ {
					val += weights.data[(b*channels+i)*channels+j] * v.data[(b*channels+j)*length+t]
				}
				out.data[(b*channels+i)*length+t] = val
			}
		}
	}

	return out
}

// softmaxRows applies a max-subtracted softmax to each row of a square
// cols x cols block stored row-major in data.
func softmaxRows(data []float64, cols int) {
	for i := 0; i < cols; i++ {
		row := data[i*cols : (i+1)*cols]

		maxVal := math.Inf(-1)
		for _, s := range row {
			if s > maxVal {
				maxVal = s
			}
		}

		sumExp := 0.0
		for j, s := range row {
			row[j] = math.Exp(s - maxVal)
			sumExp += row[j]
		}
		for j := range row {
			row[j] /= sumExp
		}
	}
}

// attentionBackward propagates gradOut (batch, channels, seqLen) through
// the attention computation, returning gradients w.r.t. q, k and v.
// weights must hold the softmax output cached by the forward pass.
func attentionBackward(gradOut, q, k, v, weights *tensor) (dq, dk, dv *tensor) {
	batch := q.shape[0]
	channels := q.shape[1]
	hidDim := q.shape[2]
	length := v.shape[2]

	scale := 1.0 / math.Sqrt(float64(hidDim))

	dq = newTensor(q.shape...)
	dk = newTensor(k.shape...)
	dv = newTensor(v.shape...)
	dW := newTensor(channels, channels)
	dS := newTensor(channels, channels)

	for b := 0; b < batch; b++ {
		gb := gradOut.row(b, channels, length)
		vb := v.row(b, channels, length)
		wb := weights.row(b, channels, channels)

		// dV = WT·dOut, dW = dOut·VT
		dvb := dv.row(b, channels, length)
		dvb.Mul(wb.T(), gb)
		dWm := dW.matrix(channels, channels)
		dWm.Mul(gb, vb.T())

		// Softmax backward per row: dS = w * (dW - sum(w*dW)), then the
		// 1/sqrt(hidDim) score scale.
		for i := 0; i < channels; i++ {
			sumWdW := 0.0
			for j := 0; j < channels; j++ {
				idx := i*channels + j
				sumWdW += weights.data[b*channels*channels+idx] * dW.data[idx]
			}
			for j := 0; j < channels; j++ {
				idx := i*channels + j
				w := weights.data[b*channels*channels+idx]
				dS.data[idx] = w * (dW.data[idx] - sumWdW) * scale
			}
		}

		// dQ = dS·K, dK = dST·Q
		dSm := dS.matrix(channels, channels)
		dqb := dq.row(b, channels, hidDim)
		dkb := dk.row(b, channels, hidDim)
		dqb.Mul(dSm, k.row(b, channels, hidDim))
		dkb.Mul(dSm.T(), q.row(b, channels, hidDim))
	}

	return dq, dk, dv
}
