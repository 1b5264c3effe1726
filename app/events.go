package app

import (
	"context"
	"time"

	"github.com/kilianp07/smartrail/core/events"
	"github.com/kilianp07/smartrail/core/logger"
	coremetrics "github.com/kilianp07/smartrail/core/metrics"
	"github.com/kilianp07/smartrail/internal/eventbus"
)

// modelRecorder forwards training runs and snapshot swaps to the metrics
// sink and announces them on the bus.
type modelRecorder struct {
	sink coremetrics.MetricsSink
	bus  *eventbus.TypedBus[events.Event]
}

// RecordTraining implements coremetrics.TrainingRecorder.
func (r *modelRecorder) RecordTraining(ev coremetrics.TrainingEvent) error {
	if ev.Success && r.bus != nil {
		r.bus.Publish(events.ModelEvent{
			ID:        events.NewID(),
			Action:    events.ModelTrained,
			ModelType: ev.ModelType,
			Version:   ev.Version,
			Source:    ev.Source,
			MAE:       ev.MAE,
			Time:      ev.Time,
		})
	}
	if rec, ok := r.sink.(coremetrics.TrainingRecorder); ok {
		return rec.RecordTraining(ev)
	}
	return nil
}

// RecordModelLoaded implements coremetrics.ModelStateRecorder.
func (r *modelRecorder) RecordModelLoaded(modelType, version string, loaded bool) error {
	if r.bus != nil {
		r.bus.Publish(events.ModelEvent{
			ID:        events.NewID(),
			Action:    events.ModelLoaded,
			ModelType: modelType,
			Version:   version,
			Time:      time.Now().UTC(),
		})
	}
	if rec, ok := r.sink.(coremetrics.ModelStateRecorder); ok {
		return rec.RecordModelLoaded(modelType, version, loaded)
	}
	return nil
}

// watchModels logs every model change seen on the bus.
func watchModels(ctx context.Context, bus *eventbus.TypedBus[events.Event], log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
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
				if m, ok := ev.(events.ModelEvent); ok {
					log.Infow("model "+m.Action, map[string]any{
						"model_type": m.ModelType,
						"version":    m.Version,
						"source":     m.Source,
					})
				}
			}
		}
	}()
	return done
}
