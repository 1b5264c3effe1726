package config

import (
	"fmt"
	"time"
)

// DatabaseConfig defines the PostgreSQL connection. An empty DSN runs the
// service without a database: training uses synthetic data and
// /data/stats reports an error.
type DatabaseConfig struct {
	DSN                   string `json:"dsn"`
	RecordPredictions     bool   `json:"record_predictions"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds"`

	// Migrate creates missing tables at startup.
	Migrate bool `json:"migrate"`

	// DirectoryRefresh reloads trains and stations when positive.
	DirectoryRefresh time.Duration `json:"directory_refresh"`
}

// Enabled reports whether a DSN is configured.
func (c DatabaseConfig) Enabled() bool { return c.DSN != "" }

// ConnectTimeout bounds the initial connection.
func (c DatabaseConfig) ConnectTimeout() time.Duration {
	if c.ConnectTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// Validate checks option consistency.
func (c DatabaseConfig) Validate() error {
	if c.RecordPredictions && !c.Enabled() {
		return fmt.Errorf("record_predictions requires a dsn")
	}
	if c.DirectoryRefresh < 0 {
		return fmt.Errorf("directory_refresh must not be negative")
	}
	return nil
}
