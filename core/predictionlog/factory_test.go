package predictionlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartrail/core/events"
	"github.com/kilianp07/smartrail/core/factory"
	"github.com/kilianp07/smartrail/internal/eventbus"
)

func TestOpenBackends(t *testing.T) {
	assert.Equal(t, []string{"jsonl", "sqlite"}, Backends())

	js, err := Open(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{
		"path":        filepath.Join(t.TempDir(), "p.jsonl"),
		"max_size_mb": "5",
	}})
	require.NoError(t, err)
	require.IsType(t, &JSONLStore{}, js)
	require.NoError(t, js.Close())

	sq, err := Open(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": filepath.Join(t.TempDir(), "p.db")}})
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, sq)
	require.NoError(t, sq.Close())

	_, err = Open(factory.ModuleConfig{Type: "csv"})
	assert.ErrorIs(t, err, factory.ErrUnknownType)
}

func TestStartRecorder(t *testing.T) {
	store, err := NewSQLiteStore("file:recorder.db?mode=memory&cache=shared")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	bus := eventbus.NewTyped[events.Event]()
	done := StartRecorder(context.Background(), bus, store, nil)
	now := time.Now().UTC()
	bus.Publish(events.PredictionEvent{TrainID: "101", StationID: "5", PredictedTime: "10:00:00", Time: now})
	bus.Publish(events.ModelEvent{Action: events.ModelLoaded})
	bus.Publish(events.PredictionEvent{TrainID: "102", StationID: "5", Error: "model not loaded", Time: now})

	require.Eventually(t, func() bool {
		out, err := store.Query(context.Background(), Query{})
		return err == nil && len(out) == 2
	}, time.Second, 10*time.Millisecond)

	bus.Close()
	<-done

	out, err := store.Query(context.Background(), Query{TrainID: "102"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "model not loaded", out[0].Error)
}
