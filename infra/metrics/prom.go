package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/smartrail/core/metrics"
)

// PromSink records prediction service metrics in Prometheus collectors.
type PromSink struct {
	predictions *prometheus.CounterVec
	delay       *prometheus.HistogramVec
	confidence  prometheus.Histogram
	latency     *prometheus.HistogramVec
	training    *prometheus.CounterVec
	trainTime   *prometheus.HistogramVec
	modelScore  *prometheus.GaugeVec
	modelInfo   *prometheus.GaugeVec
	degraded    prometheus.Counter
	httpReqs    *prometheus.CounterVec
	httpTime    *prometheus.HistogramVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.predictions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartrail_predictions_total",
		Help: "Arrival predictions served",
	}, []string{"model_type", "status", "batch"})); err != nil {
		return nil, err
	}
	if s.delay, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartrail_predicted_delay_minutes",
		Help:    "Predicted delay in minutes",
		Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 30, 45, 60},
	}, []string{"model_type"})); err != nil {
		return nil, err
	}
	if s.confidence, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartrail_prediction_confidence",
		Help:    "Confidence score of served predictions",
		Buckets: prometheus.LinearBuckets(0.3, 0.1, 8),
	})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartrail_prediction_latency_seconds",
		Help:    "Time spent extracting features and predicting",
		Buckets: prometheus.DefBuckets,
	}, []string{"model_type"})); err != nil {
		return nil, err
	}
	if s.training, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartrail_training_runs_total",
		Help: "Model training runs",
	}, []string{"model_type", "source", "status"})); err != nil {
		return nil, err
	}
	if s.trainTime, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartrail_training_duration_seconds",
		Help:    "Duration of model training runs",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"model_type"})); err != nil {
		return nil, err
	}
	if s.modelScore, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartrail_model_score",
		Help: "Held-out scores of the last trained model",
	}, []string{"model_type", "metric"})); err != nil {
		return nil, err
	}
	if s.modelInfo, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartrail_model_info",
		Help: "Live model kind and version, 1 when loaded",
	}, []string{"model_type", "version"})); err != nil {
		return nil, err
	}
	if s.degraded, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smartrail_feature_extraction_degraded_total",
		Help: "Feature extractions that fell back to the default vector",
	})); err != nil {
		return nil, err
	}
	if s.httpReqs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartrail_http_requests_total",
		Help: "HTTP requests handled by the API",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}
	if s.httpTime, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartrail_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// RecordPrediction implements coremetrics.MetricsSink.
func (s *PromSink) RecordPrediction(ev coremetrics.PredictionEvent) error {
	s.predictions.WithLabelValues(ev.ModelType, status(ev.Success), strconv.FormatBool(ev.Batch)).Inc()
	if !ev.Success {
		return nil
	}
	s.delay.WithLabelValues(ev.ModelType).Observe(ev.DelayMinutes)
	s.confidence.Observe(ev.Confidence)
	s.latency.WithLabelValues(ev.ModelType).Observe(ev.Latency.Seconds())
	return nil
}

// RecordTraining implements coremetrics.TrainingRecorder.
func (s *PromSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	s.training.WithLabelValues(ev.ModelType, ev.Source, status(ev.Success)).Inc()
	s.trainTime.WithLabelValues(ev.ModelType).Observe(ev.Duration.Seconds())
	if ev.Success {
		s.modelScore.WithLabelValues(ev.ModelType, "mae").Set(ev.MAE)
		s.modelScore.WithLabelValues(ev.ModelType, "rmse").Set(ev.RMSE)
		s.modelScore.WithLabelValues(ev.ModelType, "r2").Set(ev.R2)
		s.modelScore.WithLabelValues(ev.ModelType, "cv_mae").Set(ev.CVMAE)
	}
	return nil
}

// RecordModelLoaded implements coremetrics.ModelStateRecorder. Only the live
// model keeps a series.
func (s *PromSink) RecordModelLoaded(modelType, version string, loaded bool) error {
	s.modelInfo.Reset()
	if loaded {
		s.modelInfo.WithLabelValues(modelType, version).Set(1)
	}
	return nil
}

// RecordDegradedExtraction implements coremetrics.ExtractionRecorder.
func (s *PromSink) RecordDegradedExtraction(coremetrics.ExtractionEvent) error {
	s.degraded.Inc()
	return nil
}

// RecordHTTPRequest implements coremetrics.HTTPRecorder.
func (s *PromSink) RecordHTTPRequest(ev coremetrics.HTTPEvent) error {
	s.httpReqs.WithLabelValues(ev.Method, ev.Route, strconv.Itoa(ev.Status)).Inc()
	s.httpTime.WithLabelValues(ev.Method, ev.Route).Observe(ev.Duration.Seconds())
	return nil
}
