package samformer

import (
	"math"
	"math/rand"
	"testing"
)

func TestRevINRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		batch    int
		channels int
		length   int
	}{
		{name: "single sample single channel", batch: 1, channels: 1, length: 8},
		{name: "multi channel", batch: 4, channels: 3, length: 16},
		{name: "wide batch", batch: 16, channels: 7, length: 24},
		{name: "length one", batch: 2, channels: 2, length: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			x := newTensor(tt.batch, tt.channels, tt.length)
			x.fillRandNorm(2.5, 4.0, rng)

			r := newRevIN(tt.channels, revinEpsilon)
			norm, stats := r.normalize(x)
			back, err := r.denormalize(norm, stats)
			if err != nil {
				t.Fatalf("denormalize() error = %v", err)
			}

			for i := range x.data {
				if math.Abs(back.data[i]-x.data[i]) > 1e-5 {
					t.Fatalf("round trip mismatch at %d: got %v, want %v", i, back.data[i], x.data[i])
				}
			}
		})
	}
}

func TestRevINConstantSeries(t *testing.T) {
	// A constant series has zero std; the epsilon must keep everything finite.
	x := newTensor(2, 2, 10)
	x.fill(3.0)

	r := newRevIN(2, revinEpsilon)
	norm, stats := r.normalize(x)
	for i, v := range norm.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("normalize produced non-finite value at %d: %v", i, v)
		}
	}

	back, err := r.denormalize(norm, stats)
	if err != nil {
		t.Fatalf("denormalize() error = %v", err)
	}
	for i, v := range back.data {
		if math.Abs(v-3.0) > 1e-5 {
			t.Fatalf("round trip mismatch at %d: got %v, want 3.0", i, v)
		}
	}
}

func TestRevINDenormalizeGuards(t *testing.T) {
	r := newRevIN(2, revinEpsilon)
	y := newTensor(2, 2, 4)

	if _, err := r.denormalize(y, nil); err == nil {
		t.Error("denormalize(nil stats) expected error, got nil")
	}

	x := newTensor(3, 2, 4)
	_, stats := r.normalize(x)
	if _, err := r.denormalize(y, stats); err == nil {
		t.Error("denormalize with mismatched batch expected error, got nil")
	}
}

func TestRevINLearnedAffine(t *testing.T) {
	// Non-default affine parameters must still invert exactly.
	rng := rand.New(rand.NewSource(2))
	x := newTensor(2, 3, 12)
	x.fillRandNorm(0, 1, rng)

	r := newRevIN(3, revinEpsilon)
	r.gamma.data[0], r.gamma.data[1], r.gamma.data[2] = 0.5, 2.0, -1.5
	r.beta.data[0], r.beta.data[1], r.beta.data[2] = 1.0, -0.3, 0.7

	norm, stats := r.normalize(x)
	back, err := r.denormalize(norm, stats)
	if err != nil {
		t.Fatalf("denormalize() error = %v", err)
	}
	for i := range x.data {
		if math.Abs(back.data[i]-x.data[i]) > 1e-5 {
			t.Fatalf("round trip mismatch at %d: got %v, want %v", i, back.data[i], x.data[i])
		}
	}
}
