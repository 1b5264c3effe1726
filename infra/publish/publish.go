// Package publish fans prediction events out to external transports.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kilianp07/smartrail/core/events"
	"github.com/kilianp07/smartrail/core/logger"
	"github.com/kilianp07/smartrail/core/monitoring"
	"github.com/kilianp07/smartrail/internal/eventbus"
)

// Publisher delivers one prediction to an external system.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, ev events.PredictionEvent) error
}

// Func adapts a function to the Publisher interface.
type Func struct {
	ID string
	Fn func(ctx context.Context, ev events.PredictionEvent) error
}

// Name implements Publisher.
func (f Func) Name() string { return f.ID }

// Publish implements Publisher.
func (f Func) Publish(ctx context.Context, ev events.PredictionEvent) error { return f.Fn(ctx, ev) }

// Buffer is the bus subscription size of the runner.
const Buffer = 256

// DefaultTimeout bounds a single Publish call.
const DefaultTimeout = 5 * time.Second

// Payload is the wire form shared by every transport.
type Payload struct {
	TrainID       string    `json:"train_id"`
	StationID     string    `json:"station_id"`
	ScheduledTime string    `json:"scheduled_time,omitempty"`
	PredictedTime string    `json:"predicted_time"`
	DelayMinutes  float64   `json:"delay_minutes"`
	Confidence    float64   `json:"confidence_score"`
	Factors       []string  `json:"factors"`
	ModelType     string    `json:"model_type,omitempty"`
	ModelVersion  string    `json:"model_version,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Encode renders ev as the JSON payload.
func Encode(ev events.PredictionEvent) ([]byte, error) {
	factors := ev.Factors
	if factors == nil {
		factors = []string{}
	}
	return json.Marshal(Payload{
		TrainID:       ev.TrainID,
		StationID:     ev.StationID,
		ScheduledTime: ev.ScheduledTime,
		PredictedTime: ev.PredictedTime,
		DelayMinutes:  ev.DelayMinutes,
		Confidence:    ev.Confidence,
		Factors:       factors,
		ModelType:     ev.ModelType,
		ModelVersion:  ev.ModelVersion,
		RequestID:     ev.RequestID,
		Timestamp:     ev.Time.UTC(),
	})
}

// Start subscribes to the bus and hands every successful prediction to each
// publisher in turn. Failures are logged and reported, never retried here.
// The returned channel is closed once the runner has exited.
func Start(ctx context.Context, bus *eventbus.TypedBus[events.Event], pubs []Publisher, timeout time.Duration, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || len(pubs) == 0 {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	sub := bus.SubscribeSize(Buffer)
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				p, ok := ev.(events.PredictionEvent)
				if !ok || p.Failed() {
					continue
				}
				deliver(ctx, pubs, p, timeout, log)
			}
		}
	}()
	return done
}

func deliver(ctx context.Context, pubs []Publisher, ev events.PredictionEvent, timeout time.Duration, log logger.Logger) {
	for _, p := range pubs {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Publish(pctx, ev)
		cancel()
		if err != nil {
			log.Warnf("publish %s/%s via %s: %v", ev.TrainID, ev.StationID, p.Name(), err)
			monitoring.CaptureException(err, map[string]string{
				"module":     "publish",
				"publisher":  p.Name(),
				"train_id":   ev.TrainID,
				"station_id": ev.StationID,
			})
		}
	}
}
