package config

import (
	"fmt"
	"os"
)

// SentryConfig enables error reporting to Sentry when DSN is set.
type SentryConfig struct {
	DSN         string `json:"dsn"`
	Environment string `json:"environment"`
	Release     string `json:"release"`

	// TracesSampleRate is the share of requests traced, in [0, 1].
	TracesSampleRate float64 `json:"traces_sample_rate"`
}

// Enabled reports whether errors are sent to Sentry.
func (c SentryConfig) Enabled() bool { return c.DSN != "" }

// SetDefaults takes the environment from APP_ENV when unset.
func (c *SentryConfig) SetDefaults() {
	if c.Environment == "" {
		c.Environment = os.Getenv("APP_ENV")
	}
}

// Validate checks the sample rate.
func (c SentryConfig) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("traces_sample_rate %v out of [0, 1]", c.TracesSampleRate)
	}
	return nil
}
