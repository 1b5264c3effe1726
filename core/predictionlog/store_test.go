package predictionlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kilianp07/smartrail/core/events"
)

func TestRecord_JSON(t *testing.T) {
	rec := FromEvent(events.PredictionEvent{
		TrainID:       "101",
		StationID:     "5",
		PredictedTime: "10:07:00",
		Confidence:    0.7,
		Factors:       []string{"heavy_rainfall"},
		Latency:       1500 * time.Microsecond,
		Time:          time.Unix(0, 0),
	})
	if rec.LatencyMS != 1.5 {
		t.Fatalf("latency = %v, want 1.5", rec.LatencyMS)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	keys := []string{"timestamp", "train_id", "station_id", "predicted_time", "confidence_score", "factors", "latency_ms"}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %s", k)
		}
	}
}

func TestQueryMatch(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r := Record{Timestamp: base, TrainID: "101", StationID: "5"}
	cases := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty", Query{}, true},
		{"in range", Query{Start: base.Add(-time.Minute), End: base.Add(time.Minute)}, true},
		{"bounds inclusive", Query{Start: base, End: base}, true},
		{"before start", Query{Start: base.Add(time.Second)}, false},
		{"after end", Query{End: base.Add(-time.Second)}, false},
		{"train", Query{TrainID: "101"}, true},
		{"other train", Query{TrainID: "102"}, false},
		{"other station", Query{StationID: "6"}, false},
	}
	for _, tc := range cases {
		if got := tc.q.Match(r); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

// exercise runs the shared behaviour checks against a store.
func exercise(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, train := range []string{"101", "202", "101", "303"} {
		rec := Record{Timestamp: base.Add(time.Duration(i) * time.Hour), TrainID: train, StationID: "5", DelayMinutes: float64(i)}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := store.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatalf("records not in time order")
		}
	}

	trains, err := store.Query(ctx, Query{TrainID: "101"})
	if err != nil {
		t.Fatalf("query train: %v", err)
	}
	if len(trains) != 2 {
		t.Fatalf("expected 2 records for train 101, got %d", len(trains))
	}

	window, err := store.Query(ctx, Query{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("query window: %v", err)
	}
	if len(window) != 2 || window[0].TrainID != "202" {
		t.Fatalf("unexpected window %+v", window)
	}

	latest, err := store.Query(ctx, Query{Limit: 2})
	if err != nil {
		t.Fatalf("query limit: %v", err)
	}
	if len(latest) != 2 || latest[0].DelayMinutes != 2 || latest[1].DelayMinutes != 3 {
		t.Fatalf("limit should keep the newest records in order, got %+v", latest)
	}
}
