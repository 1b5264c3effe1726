package metrics

import "errors"

// MultiSink fans events out to multiple sinks. Optional recorder interfaces
// are forwarded only to sinks that implement them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPrediction forwards the event to all sinks and joins their errors.
func (m *MultiSink) RecordPrediction(ev PredictionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordPrediction(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordTraining forwards training runs.
func (m *MultiSink) RecordTraining(ev TrainingEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(TrainingRecorder); ok {
			if err := rec.RecordTraining(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordDegradedExtraction forwards degraded extraction events.
func (m *MultiSink) RecordDegradedExtraction(ev ExtractionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ExtractionRecorder); ok {
			if err := rec.RecordDegradedExtraction(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordHTTPRequest forwards request metrics.
func (m *MultiSink) RecordHTTPRequest(ev HTTPEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(HTTPRecorder); ok {
			if err := rec.RecordHTTPRequest(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordModelLoaded forwards model state changes.
func (m *MultiSink) RecordModelLoaded(modelType, version string, loaded bool) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ModelStateRecorder); ok {
			if err := rec.RecordModelLoaded(modelType, version, loaded); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes the sinks that hold connections.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
