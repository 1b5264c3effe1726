// Package metrics defines the recorder interfaces used to observe predictions,
// training runs, degraded feature extractions and HTTP traffic. Sinks such as
// the Prometheus and InfluxDB implementations in infra/metrics are created
// from configuration through a factory registry. NewMetricsSink returns a
// MultiSink when several sinks are configured.
package metrics
