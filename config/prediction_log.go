package config

import (
	"fmt"

	"github.com/kilianp07/smartrail/core/factory"
	"github.com/kilianp07/smartrail/core/predictionlog"
)

// PredictionLogConfig defines settings for prediction history storage and
// rotation.
type PredictionLogConfig struct {
	// Enabled turns the history log and /predictions/history on.
	Enabled bool `json:"enabled"`
	// Backend selects the log store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *PredictionLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "predictions.db"
		default:
			c.Path = "predictions.jsonl"
		}
	}
}

// Validate checks mandatory fields.
func (c PredictionLogConfig) Validate() error {
	known := false
	for _, b := range predictionlog.Backends() {
		if b == c.Backend {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// Module returns the store definition understood by predictionlog.Open.
func (c PredictionLogConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{
		Type: c.Backend,
		Conf: map[string]any{
			"path":         c.Path,
			"max_size_mb":  c.MaxSizeMB,
			"max_backups":  c.MaxBackups,
			"max_age_days": c.MaxAgeDays,
		},
	}
}
