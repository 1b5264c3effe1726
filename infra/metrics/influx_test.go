package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/smartrail/core/metrics"
)

type lineServer struct {
	mu     sync.Mutex
	bodies []string
	srv    *httptest.Server
}

func newLineServer(t *testing.T) *lineServer {
	t.Helper()
	ls := &lineServer{}
	ls.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ls.mu.Lock()
		ls.bodies = append(ls.bodies, strings.TrimSpace(string(b)))
		ls.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ls.srv.Close)
	return ls
}

func (ls *lineServer) sink() *InfluxSink {
	return NewInfluxSink(InfluxConfig{URL: ls.srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
}

func (ls *lineServer) expectOne(t *testing.T, p *write.Point) {
	t.Helper()
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if len(ls.bodies) != 1 || ls.bodies[0] != exp {
		t.Errorf("unexpected bodies: %#v\nwant: %s", ls.bodies, exp)
	}
}

func TestInfluxSink_RecordPrediction(t *testing.T) {
	ls := newLineServer(t)
	now := time.Now()
	ev := coremetrics.PredictionEvent{
		RequestID:    "req-1",
		TrainID:      "101",
		StationID:    "5",
		ModelType:    "random_forest",
		ModelVersion: "1.0.2",
		DelayMinutes: 7.12345,
		Confidence:   0.7,
		Factors:      []string{"heavy_rainfall", "peak_hour_traffic"},
		Success:      true,
		Latency:      1500 * time.Microsecond,
		Time:         now,
	}
	if err := ls.sink().RecordPrediction(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement(MeasurementPrediction).
		AddTag("train_id", "101").
		AddTag("station_id", "5").
		AddTag("model_type", "random_forest").
		AddTag("success", "true").
		AddTag("batch", "false").
		AddField("delay_minutes", 7.123).
		AddField("confidence", 0.7).
		AddField("latency_ms", 1.5).
		AddField("factors", "heavy_rainfall,peak_hour_traffic").
		SetTime(now).
		AddTag("model_version", "1.0.2").
		AddField("request_id", "req-1")
	ls.expectOne(t, p)
}

func TestInfluxSink_RecordTraining(t *testing.T) {
	ls := newLineServer(t)
	now := time.Now()
	ev := coremetrics.TrainingEvent{
		ModelType: "linear_regression",
		Version:   "1.0.0",
		Source:    "synthetic",
		Samples:   1000,
		MAE:       3.5,
		RMSE:      4.25,
		R2:        0.61,
		CVMAE:     3.7,
		Duration:  2 * time.Second,
		Success:   true,
		Time:      now,
	}
	if err := ls.sink().RecordTraining(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement(MeasurementTraining).
		AddTag("model_type", "linear_regression").
		AddTag("source", "synthetic").
		AddTag("success", "true").
		AddField("samples", 1000).
		AddField("mae", 3.5).
		AddField("rmse", 4.25).
		AddField("r2", 0.61).
		AddField("cv_mae", 3.7).
		AddField("duration_ms", 2000.0).
		SetTime(now).
		AddTag("version", "1.0.0")
	ls.expectOne(t, p)
}

func TestInfluxSink_RecordDegradedExtraction(t *testing.T) {
	ls := newLineServer(t)
	now := time.Now()
	if err := ls.sink().RecordDegradedExtraction(coremetrics.ExtractionEvent{Reason: "invalid json", Time: now}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement(MeasurementDegraded).
		AddTag("component", "feature_engineer").
		AddField("reason", "invalid json").
		SetTime(now)
	ls.expectOne(t, p)
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
