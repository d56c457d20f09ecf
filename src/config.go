package samformer

import "github.com/sirupsen/logrus"

// Config holds the full forecaster configuration. Architecture and
// training fields are required; the trailing fields are the documented
// optional extras.
type Config struct {
	// Architecture
	Channels  int  // number of input series
	SeqLen    int  // input window length
	HiddenDim int  // attention query/key dimension
	Horizon   int  // forecast length per channel
	UseRevIN  bool // reversible instance normalization on/off

	// Training
	Epochs    int
	BatchSize int
	Optimizer Optimizer // base rule, or SAM-wrapped for two-phase updates
	Loss      Loss
	Seed      int64 // non-zero seeds model init and shuffling deterministically

	// Optional
	Metrics     []Metric       // per-epoch training metrics
	Scheduler   Scheduler      // epoch learning-rate schedule
	Initializer Initializer    // weight init; nil uses LeCunUniform(1.0)
	LogEvery    int            // log every N epochs; 0 disables
	Logger      *logrus.Logger // nil uses the logrus standard logger
}

// ValidateConfig checks all required fields before any allocation
func ValidateConfig(cfg Config) error {
	if cfg.Channels <= 0 {
		return errorf("Channels must be > 0, got %d", cfg.Channels)
	}
	if cfg.SeqLen <= 0 {
		return errorf("SeqLen must be > 0, got %d", cfg.SeqLen)
	}
	if cfg.HiddenDim <= 0 {
		return errorf("HiddenDim must be > 0, got %d", cfg.HiddenDim)
	}
	if cfg.Horizon <= 0 {
		return errorf("Horizon must be > 0, got %d", cfg.Horizon)
	}
	if cfg.Epochs <= 0 {
		return errorf("Epochs must be > 0, got %d", cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		return errorf("BatchSize must be > 0, got %d", cfg.BatchSize)
	}
	if cfg.Optimizer == nil {
		return errorf("Optimizer is required")
	}
	if cfg.Loss == nil {
		return errorf("Loss is required - use MSE(MSEConfig{Reduction: \"mean\"}) for the standard objective")
	}
	if cfg.LogEvery < 0 {
		return errorf("LogEvery must be >= 0, got %d", cfg.LogEvery)
	}
	return nil
}
