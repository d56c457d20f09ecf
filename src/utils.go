package samformer

import (
	"fmt"
	"math/rand"
	"time"
)

// deriveRNGs expands one seed into the two generators the forecaster
// needs: one for weight initialization, one for epoch shuffling. A zero
// seed falls back to the wall clock.
func deriveRNGs(seed int64) (initRNG, shuffleRNG *rand.Rand) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	root := rand.New(rand.NewSource(seed))
	initRNG = rand.New(rand.NewSource(root.Int63()))
	shuffleRNG = rand.New(rand.NewSource(root.Int63()))
	return initRNG, shuffleRNG
}

// shuffleData shuffles input and target data in-place, keeping rows paired
func shuffleData(inputs, targets *tensor, rng *rand.Rand) {
	n := inputs.shape[0]
	inputCols := inputs.size() / n
	targetCols := targets.size() / n

	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		// Swap rows in inputs
		for k := 0; k < inputCols; k++ {
			inputs.data[i*inputCols+k], inputs.data[j*inputCols+k] =
				inputs.data[j*inputCols+k], inputs.data[i*inputCols+k]
		}
		// Swap rows in targets
		for k := 0; k < targetCols; k++ {
			targets.data[i*targetCols+k], targets.data[j*targetCols+k] =
				targets.data[j*targetCols+k], targets.data[i*targetCols+k]
		}
	}
}

// getBatch extracts a batch from data
func getBatch(data *tensor, start, batchSize int) *tensor {
	totalSamples := data.shape[0]
	end := start + batchSize
	if end > totalSamples {
		end = totalSamples
	}
	actualBatch := end - start

	batchShape := append([]int{actualBatch}, data.shape[1:]...)
	batch := newTensor(batchShape...)

	elementsPerSample := data.size() / totalSamples
	copy(batch.data, data.data[start*elementsPerSample:end*elementsPerSample])

	return batch
}

// seriesTensor packs (samples, channels, seqLen) input into a tensor.
func seriesTensor(x [][][]float64, channels, seqLen int) *tensor {
	t := newTensor(len(x), channels, seqLen)
	for i, sample := range x {
		for c, series := range sample {
			copy(t.data[(i*channels+c)*seqLen:], series)
		}
	}
	return t
}

// targetTensor packs (samples, channels*horizon) targets into a tensor.
func targetTensor(y [][]float64, cols int) *tensor {
	t := newTensor(len(y), cols)
	for i, row := range y {
		copy(t.data[i*cols:], row)
	}
	return t
}

// errorf creates a formatted error
func errorf(format string, args ...interface{}) error {
	return fmt.Errorf("samformer: "+format, args...)
}
