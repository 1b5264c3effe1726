// Package predictionlog keeps an append-only history of served predictions
// and answers time and train filtered queries over it.
package predictionlog

import (
	"context"
	"time"

	"github.com/kilianp07/smartrail/core/events"
)

// Record captures one served prediction.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
	TrainID       string    `json:"train_id"`
	StationID     string    `json:"station_id"`
	ScheduledTime string    `json:"scheduled_time,omitempty"`
	PredictedTime string    `json:"predicted_time,omitempty"`
	DelayMinutes  float64   `json:"delay_minutes"`
	Confidence    float64   `json:"confidence_score"`
	Factors       []string  `json:"factors,omitempty"`
	ModelType     string    `json:"model_type,omitempty"`
	ModelVersion  string    `json:"model_version,omitempty"`
	Batch         bool      `json:"batch"`
	Error         string    `json:"error,omitempty"`
	LatencyMS     float64   `json:"latency_ms"`
}

// FromEvent converts a bus event into a Record.
func FromEvent(e events.PredictionEvent) Record {
	return Record{
		Timestamp:     e.Time.UTC(),
		RequestID:     e.RequestID,
		TrainID:       e.TrainID,
		StationID:     e.StationID,
		ScheduledTime: e.ScheduledTime,
		PredictedTime: e.PredictedTime,
		DelayMinutes:  e.DelayMinutes,
		Confidence:    e.Confidence,
		Factors:       e.Factors,
		ModelType:     e.ModelType,
		ModelVersion:  e.ModelVersion,
		Batch:         e.Batch,
		Error:         e.Error,
		LatencyMS:     float64(e.Latency) / float64(time.Millisecond),
	}
}

// Query defines filters for retrieving records. Zero values match all.
// Limit keeps the most recent matches.
type Query struct {
	Start     time.Time
	End       time.Time
	TrainID   string
	StationID string
	Limit     int
}

// Match reports whether r satisfies the time and identifier filters of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.TrainID != "" && r.TrainID != q.TrainID {
		return false
	}
	if q.StationID != "" && r.StationID != q.StationID {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

func limit(recs []Record, n int) []Record {
	if n > 0 && len(recs) > n {
		return recs[len(recs)-n:]
	}
	return recs
}
