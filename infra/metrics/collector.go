package metrics

import (
	"context"

	"github.com/kilianp07/smartrail/core/events"
	"github.com/kilianp07/smartrail/core/logger"
	coremetrics "github.com/kilianp07/smartrail/core/metrics"
	"github.com/kilianp07/smartrail/internal/eventbus"
)

// CollectorBuffer is the subscription size used by StartEventCollector so a
// full batch of predictions is not dropped.
const CollectorBuffer = 256

// StartEventCollector subscribes to the event bus and records metrics for
// prediction events. It stops when the context is canceled or the bus is
// closed. The returned channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.SubscribeSize(CollectorBuffer)
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
				if e, ok := ev.(events.PredictionEvent); ok {
					if err := sink.RecordPrediction(ToPredictionMetric(e)); err != nil {
						log.Warnf("record prediction metric: %v", err)
					}
				}
			}
		}
	}()
	return done
}

// ToPredictionMetric converts a bus event into the sink representation.
func ToPredictionMetric(e events.PredictionEvent) coremetrics.PredictionEvent {
	return coremetrics.PredictionEvent{
		RequestID:    e.RequestID,
		TrainID:      e.TrainID,
		StationID:    e.StationID,
		ModelType:    e.ModelType,
		ModelVersion: e.ModelVersion,
		DelayMinutes: e.DelayMinutes,
		Confidence:   e.Confidence,
		Factors:      e.Factors,
		Batch:        e.Batch,
		Success:      !e.Failed(),
		Error:        e.Error,
		Latency:      e.Latency,
		Time:         e.Time,
	}
}
