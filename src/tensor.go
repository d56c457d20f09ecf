package samformer

import (
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Tensor is the core data structure - internal only, not exposed to users.
// Storage is flat row-major; heavy matrix products go through gonum views.
type tensor struct {
	data  []float64
	shape []int
}

func newTensor(shape ...int) *tensor {
	size := 1
	for _, s := range shape {
		if s <= 0 {
			s = 1 // Ensure non-zero size
		}
		size *= s
	}
	return &tensor{
		data:  make([]float64, size),
		shape: shape,
	}
}

func (t *tensor) size() int {
	return len(t.data)
}

func (t *tensor) fill(value float64) {
	for i := range t.data {
		t.data[i] = value
	}
}

func (t *tensor) fillRandNorm(mean, std float64, rng *rand.Rand) {
	for i := range t.data {
		t.data[i] = rng.NormFloat64()*std + mean
	}
}

func (t *tensor) fillRandUniform(low, high float64, rng *rand.Rand) {
	for i := range t.data {
		t.data[i] = rng.Float64()*(high-low) + low
	}
}

func (t *tensor) zero() {
	for i := range t.data {
		t.data[i] = 0
	}
}

// reshape returns a header with a new shape sharing the same backing
// array. The element count must not change.
func (t *tensor) reshape(shape ...int) *tensor {
	return &tensor{data: t.data, shape: shape}
}

func (t *tensor) clone() *tensor {
	nt := newTensor(t.shape...)
	copy(nt.data, t.data)
	return nt
}

// matrix returns a gonum view sharing the tensor's backing array.
// Writes through the view mutate the tensor.
func (t *tensor) matrix(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, t.data[:rows*cols])
}

// row returns a gonum view over one rows x cols block starting at sample b
// of a (batch, rows, cols) tensor.
func (t *tensor) row(b, rows, cols int) *mat.Dense {
	off := b * rows * cols
	return mat.NewDense(rows, cols, t.data[off:off+rows*cols])
}

func elemAdd(a, b, out *tensor) {
	for i := range a.data {
		out.data[i] = a.data[i] + b.data[i]
	}
}

func axpy(alpha float64, x, y *tensor) {
	for i := range y.data {
		y.data[i] += alpha * x.data[i]
	}
}

func validateShape(expected, got []int) error {
	if len(expected) != len(got) {
		return errors.New("samformer: shape mismatch - different dimensions")
	}
	for i := range expected {
		if expected[i] != got[i] {
			return errors.New("samformer: shape mismatch")
		}
	}
	return nil
}
