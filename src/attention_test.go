package samformer

import (
	"math"
	"math/rand"
	"testing"
)

func TestAttentionOutputShape(t *testing.T) {
	tests := []struct {
		name     string
		batch    int
		channels int
		length   int
		hidDim   int
	}{
		{name: "small", batch: 1, channels: 2, length: 4, hidDim: 3},
		{name: "single channel", batch: 3, channels: 1, length: 8, hidDim: 4},
		{name: "hidDim larger than length", batch: 2, channels: 5, length: 6, hidDim: 16},
		{name: "wide", batch: 4, channels: 7, length: 32, hidDim: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(5))
			q := newTensor(tt.batch, tt.channels, tt.hidDim)
			k := newTensor(tt.batch, tt.channels, tt.hidDim)
			v := newTensor(tt.batch, tt.channels, tt.length)
			q.fillRandNorm(0, 1, rng)
			k.fillRandNorm(0, 1, rng)
			v.fillRandNorm(0, 1, rng)

			weights := newTensor(tt.batch, tt.channels, tt.channels)
			out := scaledDotProductAttention(q, k, v, weights)

			want := []int{tt.batch, tt.channels, tt.length}
			if err := validateShape(want, out.shape); err != nil {
				t.Fatalf("output shape = %v, want %v", out.shape, want)
			}
		})
	}
}

func TestAttentionWeightsAreDistributions(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	q := newTensor(2, 4, 8)
	k := newTensor(2, 4, 8)
	v := newTensor(2, 4, 10)
	q.fillRandNorm(0, 1, rng)
	k.fillRandNorm(0, 1, rng)
	v.fillRandNorm(0, 1, rng)

	weights := newTensor(2, 4, 4)
	scaledDotProductAttention(q, k, v, weights)

	for b := 0; b < 2; b++ {
		for i := 0; i < 4; i++ {
			sum := 0.0
			for j := 0; j < 4; j++ {
				w := weights.data[(b*4+i)*4+j]
				if w < 0 {
					t.Fatalf("negative attention weight at (%d,%d,%d): %v", b, i, j, w)
				}
				sum += w
			}
			if math.Abs(sum-1.0) > 1e-9 {
				t.Fatalf("attention row (%d,%d) sums to %v, want 1", b, i, sum)
			}
		}
	}
}

func TestManualAttentionMatchesDefault(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := newTensor(3, 5, 16)
	k := newTensor(3, 5, 16)
	v := newTensor(3, 5, 20)
	q.fillRandNorm(0, 2, rng)
	k.fillRandNorm(0, 2, rng)
	v.fillRandNorm(0, 2, rng)

	w1 := newTensor(3, 5, 5)
	w2 := newTensor(3, 5, 5)
	out1 := scaledDotProductAttention(q, k, v, w1)
	out2 := scaledDotProductAttentionManual(q, k, v, w2)

	for i := range out1.data {
		if math.Abs(out1.data[i]-out2.data[i]) > 1e-4 {
			t.Fatalf("outputs diverge at %d: gonum %v, manual %v", i, out1.data[i], out2.data[i])
		}
	}
	for i := range w1.data {
		if math.Abs(w1.data[i]-w2.data[i]) > 1e-4 {
			t.Fatalf("weights diverge at %d: gonum %v, manual %v", i, w1.data[i], w2.data[i])
		}
	}
}
