package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	predictions int
	trainings   int
	fail        bool
}

func (r *recordSink) RecordPrediction(PredictionEvent) error {
	r.predictions++
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *recordSink) RecordTraining(TrainingEvent) error {
	r.trainings++
	return nil
}

// predictionOnly implements only the mandatory interface.
type predictionOnly struct{ n int }

func (p *predictionOnly) RecordPrediction(PredictionEvent) error {
	p.n++
	return nil
}

// TestMultiSink ensures events are forwarded to all sinks.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	p := &predictionOnly{}
	m := NewMultiSink(s1, s2, p)
	if err := m.RecordPrediction(PredictionEvent{TrainID: "101"}); err != nil {
		t.Fatalf("record prediction: %v", err)
	}
	if err := m.RecordTraining(TrainingEvent{ModelType: "linear_regression"}); err != nil {
		t.Fatalf("record training: %v", err)
	}
	if err := m.RecordHTTPRequest(HTTPEvent{Route: "/predict"}); err != nil {
		t.Fatalf("record http: %v", err)
	}
	if s1.predictions != 1 || s2.predictions != 1 || p.n != 1 {
		t.Fatalf("predictions not forwarded")
	}
	if s1.trainings != 1 || s2.trainings != 1 {
		t.Fatalf("trainings not forwarded")
	}
}

// A failing sink does not stop delivery to the others.
func TestMultiSink_JoinsErrors(t *testing.T) {
	bad := &recordSink{fail: true}
	good := &recordSink{}
	m := NewMultiSink(bad, good)
	if err := m.RecordPrediction(PredictionEvent{}); err == nil {
		t.Fatal("expected error")
	}
	if good.predictions != 1 {
		t.Fatalf("second sink skipped")
	}
}
