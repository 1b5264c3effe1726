// Package events defines the events emitted on the service event bus.
//
// Available event types:
//   - PredictionEvent: an arrival prediction was served or failed
//   - ModelEvent: a model snapshot was trained or loaded
package events
