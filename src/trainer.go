package samformer

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Forecaster trains and applies the attention forecasting model in the
// fit/forecast fashion. Construct with NewForecaster, call Fit once, then
// Forecast as often as needed.
type Forecaster struct {
	config  Config
	logger  *logrus.Logger
	network *network
	history map[string][]float64
}

// NewForecaster validates the configuration and returns an unfit
// forecaster. No parameters are allocated until Fit.
func NewForecaster(config Config) (*Forecaster, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Forecaster{
		config:  config,
		logger:  logger,
		history: make(map[string][]float64),
	}, nil
}

// Fit trains in place on x (samples, channels, seqLen) against targets y
// (samples, channels*horizon) for the configured number of epochs. There is
// no early stopping and no validation split; the run either completes or
// fails and aborts entirely.
func (f *Forecaster) Fit(x [][][]float64, y [][]float64) error {
	if err := f.validateData(x); err != nil {
		return err
	}
	targetCols := f.config.Channels * f.config.Horizon
	if len(y) != len(x) {
		return errorf("fit: %d input samples but %d target rows", len(x), len(y))
	}
	for i, row := range y {
		if len(row) != targetCols {
			return errorf("fit: target row %d has %d values, want channels*horizon = %d",
				i, len(row), targetCols)
		}
	}

	initRNG, shuffleRNG := deriveRNGs(f.config.Seed)

	init := f.config.Initializer
	if init == nil {
		init = LeCunUniform(1.0)
	}
	f.network = newNetwork(f.config.Channels, f.config.SeqLen, f.config.HiddenDim,
		f.config.Horizon, f.config.UseRevIN, init, initRNG)

	params := f.network.parameters()
	grads := f.network.gradients()

	optimizer := f.config.Optimizer
	optimizer.init(params)

	// Loop body is picked once here, not per batch.
	sam, twoPhase := optimizer.(twoPhaseOptimizer)

	trainX := seriesTensor(x, f.config.Channels, f.config.SeqLen)
	trainY := targetTensor(y, targetCols)

	numSamples := len(x)
	numBatches := (numSamples + f.config.BatchSize - 1) / f.config.BatchSize

	currentLR := optimizer.lr()
	for epoch := 0; epoch < f.config.Epochs; epoch++ {
		if f.config.Scheduler != nil {
			currentLR = f.config.Scheduler.step(epoch, currentLR)
			optimizer.setLR(currentLR)
		}

		shuffleData(trainX, trainY, shuffleRNG)

		epochLoss := 0.0
		for _, m := range f.config.Metrics {
			m.reset()
		}

		for batch := 0; batch < numBatches; batch++ {
			start := batch * f.config.BatchSize
			batchX := getBatch(trainX, start, f.config.BatchSize)
			batchY := getBatch(trainY, start, f.config.BatchSize)

			f.network.zeroGradients()

			out, err := f.network.forward(batchX, true)
			if err != nil {
				return err
			}
			batchLoss := f.config.Loss.compute(out, batchY)
			if err := f.checkLoss(batchLoss, epoch, batch, out); err != nil {
				return err
			}

			gradOut := newTensor(out.shape...)
			f.config.Loss.gradient(out, batchY, gradOut)
			if err := f.network.backward(gradOut); err != nil {
				return err
			}

			if twoPhase {
				if err := sam.ascentStep(params, grads, true); err != nil {
					return err
				}

				// Second pass at the perturbed parameters; its loss is the
				// one reported, matching the sharpness-aware objective.
				out, err = f.network.forward(batchX, true)
				if err != nil {
					return err
				}
				batchLoss = f.config.Loss.compute(out, batchY)
				if err := f.checkLoss(batchLoss, epoch, batch, out); err != nil {
					return err
				}

				gradOut.zero()
				f.config.Loss.gradient(out, batchY, gradOut)
				if err := f.network.backward(gradOut); err != nil {
					return err
				}
				if err := sam.descentStep(params, grads, true); err != nil {
					return err
				}
			} else {
				optimizer.step(params, grads)
			}

			epochLoss += batchLoss
			for _, m := range f.config.Metrics {
				m.update(out, batchY)
			}
		}

		trainLoss := epochLoss / float64(numBatches)
		f.history["loss"] = append(f.history["loss"], trainLoss)
		fields := logrus.Fields{"epoch": epoch, "loss": trainLoss}
		for _, m := range f.config.Metrics {
			f.history[m.name()] = append(f.history[m.name()], m.result())
			fields[m.name()] = m.result()
		}
		if f.config.Scheduler != nil {
			fields["lr"] = currentLR
		}
		if f.config.LogEvery > 0 && (epoch+1)%f.config.LogEvery == 0 {
			f.logger.WithFields(fields).Info("train epoch")
		}
	}

	return nil
}

// checkLoss aborts a diverged run before the pending optimizer step, so
// the parameters keep their last finite values.
func (f *Forecaster) checkLoss(loss float64, epoch, batch int, out *tensor) error {
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return &TrainError{
			Component:  "trainer",
			ErrorType:  "non-finite loss",
			Epoch:      epoch,
			Batch:      batch,
			OutputInfo: scanTensor(out),
			Cause:      "training diverged; lower the learning rate or rho",
		}
	}
	return nil
}

// Forecast runs inference on x (samples, channels, seqLen) and returns
// (samples, channels*horizon) predictions in input order. Deterministic
// for a given trained forecaster.
func (f *Forecaster) Forecast(x [][][]float64) ([][]float64, error) {
	if f.network == nil {
		return nil, ErrNotFitted
	}
	if err := f.validateData(x); err != nil {
		return nil, err
	}

	inputs := seriesTensor(x, f.config.Channels, f.config.SeqLen)
	numSamples := len(x)
	outCols := f.config.Channels * f.config.Horizon

	result := make([][]float64, 0, numSamples)
	for start := 0; start < numSamples; start += f.config.BatchSize {
		batchX := getBatch(inputs, start, f.config.BatchSize)
		out, err := f.network.forward(batchX, true)
		if err != nil {
			return nil, err
		}
		for i := 0; i < batchX.shape[0]; i++ {
			row := make([]float64, outCols)
			copy(row, out.data[i*outCols:(i+1)*outCols])
			result = append(result, row)
		}
	}

	return result, nil
}

// Predict is an alias for Forecast
func (f *Forecaster) Predict(x [][][]float64) ([][]float64, error) {
	return f.Forecast(x)
}

// History returns the per-epoch training history (loss and any configured
// metrics) recorded by the last Fit call.
func (f *Forecaster) History() map[string][]float64 {
	return f.history
}

// Diagnostics holds the intermediate tensors of one forward pass, for
// external visualization tooling. Projection is the forecast head output
// before denormalization.
type Diagnostics struct {
	Input          [][][]float64 // (samples, channels, seqLen)
	Queries        [][][]float64 // (samples, channels, hiddenDim)
	Keys           [][][]float64 // (samples, channels, hiddenDim)
	Values         [][][]float64 // (samples, channels, seqLen)
	AttentionScore [][][]float64 // (samples, channels, seqLen)
	Projection     [][][]float64 // (samples, channels, horizon)
}

// WeightMatrices holds the four raw projection weights, (in, out) oriented.
type WeightMatrices struct {
	Queries    [][]float64 // (seqLen, hiddenDim)
	Keys       [][]float64 // (seqLen, hiddenDim)
	Values     [][]float64 // (seqLen, seqLen)
	Forecaster [][]float64 // (seqLen, horizon)
}

// ExtractMatrices runs a forward pass and returns the intermediate
// tensors of the attention computation.
func (f *Forecaster) ExtractMatrices(x [][][]float64) (*Diagnostics, error) {
	if f.network == nil {
		return nil, ErrNotFitted
	}
	if err := f.validateData(x); err != nil {
		return nil, err
	}

	inputs := seriesTensor(x, f.config.Channels, f.config.SeqLen)
	if _, err := f.network.forward(inputs, false); err != nil {
		return nil, err
	}

	return &Diagnostics{
		Input:          tensorTo3D(inputs),
		Queries:        tensorTo3D(f.network.q),
		Keys:           tensorTo3D(f.network.k),
		Values:         tensorTo3D(f.network.v),
		AttentionScore: tensorTo3D(f.network.attOut),
		Projection:     tensorTo3D(f.network.proj),
	}, nil
}

// ExtractWeightMatrices returns the four raw projection weight matrices.
func (f *Forecaster) ExtractWeightMatrices() (*WeightMatrices, error) {
	if f.network == nil {
		return nil, ErrNotFitted
	}
	return &WeightMatrices{
		Queries:    tensorTo2D(f.network.computeQueries.weight),
		Keys:       tensorTo2D(f.network.computeKeys.weight),
		Values:     tensorTo2D(f.network.computeValues.weight),
		Forecaster: tensorTo2D(f.network.linearForecaster.weight),
	}, nil
}

// validateData checks x against the configured channel count and sequence
// length. Runs before any parameter allocation in Fit.
func (f *Forecaster) validateData(x [][][]float64) error {
	if len(x) == 0 {
		return errorf("no input samples provided")
	}
	for i, sample := range x {
		if len(sample) != f.config.Channels {
			return errorf("sample %d has %d channels, model expects %d", i, len(sample), f.config.Channels)
		}
		for c, series := range sample {
			if len(series) != f.config.SeqLen {
				return errorf("sample %d channel %d has length %d, model expects %d",
					i, c, len(series), f.config.SeqLen)
			}
		}
	}
	return nil
}

func tensorTo2D(t *tensor) [][]float64 {
	rows, cols := t.shape[0], t.shape[1]
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		copy(out[i], t.data[i*cols:(i+1)*cols])
	}
	return out
}

func tensorTo3D(t *tensor) [][][]float64 {
	n, rows, cols := t.shape[0], t.shape[1], t.shape[2]
	out := make([][][]float64, n)
	for b := 0; b < n; b++ {
		out[b] = make([][]float64, rows)
		for i := 0; i < rows; i++ {
			base := (b*rows + i) * cols
			out[b][i] = make([]float64, cols)
			copy(out[b][i], t.data[base:base+cols])
		}
	}
	return out
}
