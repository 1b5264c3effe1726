package metrics

import "time"

// PredictionEvent describes one served arrival prediction.
type PredictionEvent struct {
	RequestID    string
	TrainID      string
	StationID    string
	ModelType    string
	ModelVersion string
	DelayMinutes float64
	Confidence   float64
	Factors      []string
	Batch        bool
	Success      bool
	Error        string
	Latency      time.Duration
	Time         time.Time
}

// MetricsSink records prediction outcomes for observability purposes.
type MetricsSink interface {
	RecordPrediction(ev PredictionEvent) error
}

// TrainingEvent summarises a training run.
type TrainingEvent struct {
	ModelType string
	Version   string
	Source    string
	Samples   int
	MAE       float64
	RMSE      float64
	R2        float64
	CVMAE     float64
	Duration  time.Duration
	Success   bool
	Error     string
	Time      time.Time
}

// TrainingRecorder records training runs.
type TrainingRecorder interface {
	RecordTraining(ev TrainingEvent) error
}

// ExtractionEvent reports a feature extraction that fell back to defaults.
type ExtractionEvent struct {
	Reason string
	Time   time.Time
}

// ExtractionRecorder records degraded feature extractions.
type ExtractionRecorder interface {
	RecordDegradedExtraction(ev ExtractionEvent) error
}

// HTTPEvent is one handled API request.
type HTTPEvent struct {
	Method   string
	Route    string
	Status   int
	Duration time.Duration
}

// HTTPRecorder records API request counts and latency.
type HTTPRecorder interface {
	RecordHTTPRequest(ev HTTPEvent) error
}

// ModelStateRecorder exposes the live model generation.
type ModelStateRecorder interface {
	RecordModelLoaded(modelType, version string, loaded bool) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPrediction(PredictionEvent) error         { return nil }
func (NopSink) RecordTraining(TrainingEvent) error             { return nil }
func (NopSink) RecordDegradedExtraction(ExtractionEvent) error { return nil }
func (NopSink) RecordHTTPRequest(HTTPEvent) error              { return nil }
func (NopSink) RecordModelLoaded(string, string, bool) error   { return nil }
