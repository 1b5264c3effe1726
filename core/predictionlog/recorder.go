package predictionlog

import (
	"context"

	"github.com/kilianp07/smartrail/core/events"
	"github.com/kilianp07/smartrail/core/logger"
	"github.com/kilianp07/smartrail/internal/eventbus"
)

// Buffer is the bus subscription size of the recorder.
const Buffer = 256

// StartRecorder appends every prediction event, failed ones included, to
// store until ctx is done or the bus closes. The returned channel is closed
// once the recorder has exited.
func StartRecorder(ctx context.Context, bus *eventbus.TypedBus[events.Event], store Store, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || store == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
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
				if !ok {
					continue
				}
				if err := store.Append(ctx, FromEvent(p)); err != nil {
					log.Errorf("append prediction log: %v", err)
				}
			}
		}
	}()
	return done
}
