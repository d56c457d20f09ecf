package samformer

import "math"

// Metric accumulates an evaluation statistic across batches
type Metric interface {
	reset()
	update(pred, target *tensor)
	result() float64
	name() string
}

// MeanSquaredErrorMetric
type MeanSquaredErrorMetric struct {
	sum   float64
	count int
}

func MeanSquaredError() Metric {
	return &MeanSquaredErrorMetric{}
}

func (m *MeanSquaredErrorMetric) reset() {
	m.sum = 0
	m.count = 0
}

func (m *MeanSquaredErrorMetric) update(pred, target *tensor) {
	for i := range pred.data {
		diff := pred.data[i] - target.data[i]
		m.sum += diff * diff
		m.count++
	}
}

func (m *MeanSquaredErrorMetric) result() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

func (m *MeanSquaredErrorMetric) name() string { return "mse" }

// MeanAbsoluteErrorMetric
type MeanAbsoluteErrorMetric struct {
	sum   float64
	count int
}

func MeanAbsoluteError() Metric {
	return &MeanAbsoluteErrorMetric{}
}

func (m *MeanAbsoluteErrorMetric) reset() {
	m.sum = 0
	m.count = 0
}

func (m *MeanAbsoluteErrorMetric) update(pred, target *tensor) {
	for i := range pred.data {
		m.sum += math.Abs(pred.data[i] - target.data[i])
		m.count++
	}
}

func (m *MeanAbsoluteErrorMetric) result() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

func (m *MeanAbsoluteErrorMetric) name() string { return "mae" }
