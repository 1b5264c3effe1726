package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/prediction"
)

// ModelConfig defines training and artifact settings.
type ModelConfig struct {
	Dir              string                    `json:"dir"`
	DefaultKind      string                    `json:"default_kind"`
	TestSize         float64                   `json:"test_size"`
	Seed             uint64                    `json:"seed"`
	CVFolds          int                       `json:"cv_folds"`
	WindowDays       int                       `json:"window_days"`
	RecentDays       int                       `json:"recent_days"`
	SyntheticSamples int                       `json:"synthetic_samples"`
	BootstrapSamples int                       `json:"bootstrap_samples"`
	Hyperparams      map[string]map[string]any `json:"hyperparams"`

	// RetrainInterval enables periodic retraining when positive.
	RetrainInterval   time.Duration `json:"retrain_interval"`
	RetrainRecentOnly bool          `json:"retrain_recent_only"`
}

// SetDefaults applies the reference training setup.
func (c *ModelConfig) SetDefaults() {
	d := prediction.DefaultConfig()
	if c.Dir == "" {
		c.Dir = "models"
	}
	if c.DefaultKind == "" {
		c.DefaultKind = string(d.DefaultKind)
	}
	if c.TestSize == 0 {
		c.TestSize = d.TestSize
	}
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
	if c.CVFolds == 0 {
		c.CVFolds = d.CVFolds
	}
	if c.WindowDays == 0 {
		c.WindowDays = d.WindowDays
	}
	if c.RecentDays == 0 {
		c.RecentDays = d.RecentDays
	}
	if c.SyntheticSamples == 0 {
		c.SyntheticSamples = d.SyntheticSamples
	}
	if c.BootstrapSamples == 0 {
		c.BootstrapSamples = d.BootstrapSamples
	}
}

// Validate checks the estimator kinds and ranges.
func (c ModelConfig) Validate() error {
	if !estimator.Known(estimator.Kind(c.DefaultKind)) {
		return fmt.Errorf("%w: %q", estimator.ErrUnknownKind, c.DefaultKind)
	}
	for k := range c.Hyperparams {
		if !estimator.Known(estimator.Kind(k)) {
			return fmt.Errorf("hyperparams: %w: %q", estimator.ErrUnknownKind, k)
		}
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return fmt.Errorf("test_size must be in (0, 1), got %v", c.TestSize)
	}
	if c.CVFolds < 2 {
		return fmt.Errorf("cv_folds must be at least 2, got %d", c.CVFolds)
	}
	if c.WindowDays <= 0 || c.RecentDays <= 0 {
		return fmt.Errorf("window_days and recent_days must be positive")
	}
	if c.RetrainInterval < 0 {
		return fmt.Errorf("retrain_interval must not be negative")
	}
	return nil
}

// Prediction converts the section into the model configuration.
func (c ModelConfig) Prediction() prediction.Config {
	hp := make(map[estimator.Kind]map[string]any, len(c.Hyperparams))
	for k, v := range c.Hyperparams {
		hp[estimator.Kind(k)] = v
	}
	return prediction.Config{
		DefaultKind:      estimator.Kind(c.DefaultKind),
		Hyperparams:      hp,
		TestSize:         c.TestSize,
		Seed:             c.Seed,
		CVFolds:          c.CVFolds,
		WindowDays:       c.WindowDays,
		RecentDays:       c.RecentDays,
		SyntheticSamples: c.SyntheticSamples,
		BootstrapSamples: c.BootstrapSamples,
	}
}
