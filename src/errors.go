package samformer

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Sentinel errors for the two precondition failures callers are expected
// to branch on.
var (
	// ErrOptimizerProtocol reports a broken ascent/descent alternation.
	ErrOptimizerProtocol = errors.New("samformer: optimizer protocol violation")

	// ErrNotFitted reports inference on a forecaster that was never fit.
	ErrNotFitted = errors.New("samformer: forecaster has not been fit")
)

// TensorInfo captures tensor state for error reporting
type TensorInfo struct {
	Shape      []int
	Size       int
	NaNCount   int
	InfCount   int
	MinValue   float64
	MaxValue   float64
	BadIndices []int // First 10 corrupted indices
}

// Format returns a compact string representation
func (t *TensorInfo) Format() string {
	s := fmt.Sprintf("%v size=%d", t.Shape, t.Size)
	if t.NaNCount > 0 || t.InfCount > 0 {
		s += fmt.Sprintf(" (corrupt: %d NaN, %d Inf)", t.NaNCount, t.InfCount)
	} else {
		s += fmt.Sprintf(" range=[%.4f, %.4f]", t.MinValue, t.MaxValue)
	}
	return s
}

// TrainError is the structured error for failures inside a training run
type TrainError struct {
	Component  string      // "trainer", "network", "revin"
	ErrorType  string      // "NaN detected", "non-finite loss"
	Epoch      int         // 0-indexed epoch
	Batch      int         // 0-indexed batch within the epoch
	OutputInfo *TensorInfo // nil if not relevant
	Cause      string      // human-readable cause
}

// Error implements the error interface
func (e *TrainError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "samformer: %s %s at epoch %d batch %d\n", e.Component, e.ErrorType, e.Epoch, e.Batch)
	if e.OutputInfo != nil {
		fmt.Fprintf(&b, "  output: %s\n", e.OutputInfo.Format())
	}
	fmt.Fprintf(&b, "  cause:  %s", e.Cause)

	return b.String()
}

// scanTensor checks for NaN/Inf and collects stats
func scanTensor(t *tensor) *TensorInfo {
	if t == nil {
		return nil
	}

	info := &TensorInfo{
		Shape:      t.shape,
		Size:       len(t.data),
		MinValue:   math.Inf(1),
		MaxValue:   math.Inf(-1),
		BadIndices: make([]int, 0, 10),
	}

	for i, v := range t.data {
		if math.IsNaN(v) {
			info.NaNCount++
			if len(info.BadIndices) < 10 {
				info.BadIndices = append(info.BadIndices, i)
			}
		} else if math.IsInf(v, 0) {
			info.InfCount++
			if len(info.BadIndices) < 10 {
				info.BadIndices = append(info.BadIndices, i)
			}
		} else {
			if v < info.MinValue {
				info.MinValue = v
			}
			if v > info.MaxValue {
				info.MaxValue = v
			}
		}
	}

	// Handle empty or all-corrupt tensors
	if math.IsInf(info.MinValue, 1) {
		info.MinValue = 0
	}
	if math.IsInf(info.MaxValue, -1) {
		info.MaxValue = 0
	}

	return info
}
