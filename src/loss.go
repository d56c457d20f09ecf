package samformer

import "math"

// Loss computes loss and gradients
type Loss interface {
	compute(pred, target *tensor) float64
	gradient(pred, target *tensor, gradOut *tensor)
	name() string
}

// MSELoss - Mean Squared Error
type MSELoss struct {
	Reduction string // "mean" or "sum"
}

type MSEConfig struct {
	Reduction string
}

func MSE(config MSEConfig) Loss {
	return &MSELoss{Reduction: config.Reduction}
}

func (m *MSELoss) compute(pred, target *tensor) float64 {
	sum := 0.0
	for i := range pred.data {
		diff := pred.data[i] - target.data[i]
		sum += diff * diff
	}
	if m.Reduction == "mean" {
		return sum / float64(len(pred.data))
	}
	return sum
}

func (m *MSELoss) gradient(pred, target *tensor, gradOut *tensor) {
	scale := 2.0
	if m.Reduction == "mean" {
		scale = 2.0 / float64(len(pred.data))
	}
	for i := range pred.data {
		gradOut.data[i] = scale * (pred.data[i] - target.data[i])
	}
}

func (m *MSELoss) name() string { return "mse" }

// MAELoss - Mean Absolute Error
type MAELoss struct {
	Reduction string
}

type MAEConfig struct {
	Reduction string
}

func MAE(config MAEConfig) Loss {
	return &MAELoss{Reduction: config.Reduction}
}

func (m *MAELoss) compute(pred, target *tensor) float64 {
	sum := 0.0
	for i := range pred.data {
		sum += math.Abs(pred.data[i] - target.data[i])
	}
	if m.Reduction == "mean" {
		return sum / float64(len(pred.data))
	}
	return sum
}

func (m *MAELoss) gradient(pred, target *tensor, gradOut *tensor) {
	scale := 1.0
	if m.Reduction == "mean" {
		scale = 1.0 / float64(len(pred.data))
	}
	for i := range pred.data {
		if pred.data[i] > target.data[i] {
			gradOut.data[i] = scale
		} else if pred.data[i] < target.data[i] {
			gradOut.data[i] = -scale
		} else {
			gradOut.data[i] = 0
		}
	}
}

func (m *MAELoss) name() string { return "mae" }

// HuberLoss - Smooth L1 Loss
type HuberLoss struct {
	Delta     float64
	Reduction string
}

type HuberConfig struct {
	Delta     float64
	Reduction string
}

func Huber(config HuberConfig) Loss {
	return &HuberLoss{Delta: config.Delta, Reduction: config.Reduction}
}

func (h *HuberLoss) compute(pred, target *tensor) float64 {
	sum := 0.0
	for i := range pred.data {
		diff := math.Abs(pred.data[i] - target.data[i])
		if diff <= h.Delta {
			sum += 0.5 * diff * diff
		} else {
			sum += h.Delta*diff - 0.5*h.Delta*h.Delta
		}
	}
	if h.Reduction == "mean" {
		return sum / float64(len(pred.data))
	}
	return sum
}

func (h *HuberLoss) gradient(pred, target *tensor, gradOut *tensor) {
	scale := 1.0
	if h.Reduction == "mean" {
		scale = 1.0 / float64(len(pred.data))
	}
	for i := range pred.data {
		diff := pred.data[i] - target.data[i]
		if math.Abs(diff) <= h.Delta {
			gradOut.data[i] = scale * diff
		} else if diff > 0 {
			gradOut.data[i] = scale * h.Delta
		} else {
			gradOut.data[i] = -scale * h.Delta
		}
	}
}

func (h *HuberLoss) name() string { return "huber" }
