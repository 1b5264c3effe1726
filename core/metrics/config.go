package metrics

import "github.com/kilianp07/smartrail/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr enables the /metrics listener when non-empty.
	PrometheusAddr string `json:"prometheus_addr"`
}
