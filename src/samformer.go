// Package samformer is a lightweight attention-based time-series
// forecaster for Go, trained with sharpness-aware minimization.
//
// The model treats each input channel as an attention token: queries and
// keys project the time axis into a small hidden dimension, values keep
// the full sequence length, and a single linear head maps the residual
// sum to the forecast horizon. Reversible instance normalization wraps
// the whole forward pass so every series is forecast in its own scale.
//
// Every hyperparameter is explicit - there are no hidden defaults.
//
// Basic usage:
//
//	f, err := samformer.NewForecaster(samformer.Config{
//		Channels:  7,
//		SeqLen:    96,
//		HiddenDim: 16,
//		Horizon:   24,
//		UseRevIN:  true,
//		Epochs:    100,
//		BatchSize: 64,
//		Optimizer: samformer.SAM(samformer.SAMConfig{
//			Rho:     0.5,
//			Epsilon: 1e-12,
//			Base: samformer.Adam(samformer.AdamConfig{
//				LR:          0.001,
//				Beta1:       0.9,
//				Beta2:       0.999,
//				Epsilon:     1e-8,
//				WeightDecay: 1e-5,
//			}),
//		}),
//		Loss: samformer.MSE(samformer.MSEConfig{Reduction: "mean"}),
//		Seed: 42,
//	})
//
//	err = f.Fit(inputs, targets)  // (samples, channels, seqLen), (samples, channels*horizon)
//	preds, err := f.Forecast(inputs)
package samformer

// Version of the samformer library
const Version = "1.0.0"
