package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every event published on the bus.
type Event interface {
	EventType() string
}

// PredictionEvent is published once per predicted train/station pair,
// including failed batch items.
type PredictionEvent struct {
	ID            string        `json:"event_id"`
	RequestID     string        `json:"request_id,omitempty"`
	TrainID       string        `json:"train_id"`
	StationID     string        `json:"station_id"`
	ScheduledTime string        `json:"scheduled_time,omitempty"`
	PredictedTime string        `json:"predicted_time,omitempty"`
	DelayMinutes  float64       `json:"delay_minutes"`
	Confidence    float64       `json:"confidence_score"`
	Factors       []string      `json:"factors,omitempty"`
	ModelType     string        `json:"model_type,omitempty"`
	ModelVersion  string        `json:"model_version,omitempty"`
	Batch         bool          `json:"batch"`
	Error         string        `json:"error,omitempty"`
	Latency       time.Duration `json:"latency_ns"`
	Time          time.Time     `json:"timestamp"`
}

// EventType implements Event.
func (PredictionEvent) EventType() string { return "prediction" }

// Failed reports whether the prediction returned an error.
func (e PredictionEvent) Failed() bool { return e.Error != "" }

// Model event actions.
const (
	ModelTrained = "trained"
	ModelLoaded  = "loaded"
)

// ModelEvent is published when the live model changes.
type ModelEvent struct {
	ID        string    `json:"event_id"`
	Action    string    `json:"action"`
	ModelType string    `json:"model_type"`
	Version   string    `json:"version"`
	Source    string    `json:"source,omitempty"`
	MAE       float64   `json:"mae,omitempty"`
	Time      time.Time `json:"timestamp"`
}

// EventType implements Event.
func (ModelEvent) EventType() string { return "model" }

// NewID returns a random event identifier.
func NewID() string { return uuid.NewString() }
