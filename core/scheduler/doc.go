// Package scheduler runs maintenance jobs, such as periodic retraining and
// reference data refreshes, on a fixed interval.
package scheduler
