package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/smartrail/core/dataset"
	"github.com/kilianp07/smartrail/core/events"
	"github.com/kilianp07/smartrail/core/features"
)

func startPostgres(t *testing.T) *Postgres {
	t.Helper()
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("smartrail"),
		postgres.WithUsername("smartrail"),
		postgres.WithPassword("smartrail"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pg, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	require.NoError(t, pg.Migrate(ctx))
	return pg
}

func seed(t *testing.T, pg *Postgres) {
	t.Helper()
	ctx := context.Background()
	stmts := []string{
		`INSERT INTO stations (id, name, code, latitude, longitude) VALUES
			(1, 'Central', 'CEN', -6.17500000, 106.82700000),
			(2, 'North', 'NOR', -6.10000000, 106.80000000),
			(3, 'Unmapped', 'UNM', NULL, NULL)`,
		`INSERT INTO trains (id, number, name, type, capacity) VALUES
			(101, '101', 'Argo', 'Express', 400),
			(202, '202', 'Lokal', 'local', 300),
			(303, '303', 'Jaya', 'night_mail', 200)`,
		`INSERT INTO tracking_data (train_id, station_id, latitude, longitude, speed, heading, accuracy, timestamp) VALUES
			(101, 1, -6.2, 106.8, 60, 90, 5, NOW() - INTERVAL '1 day'),
			(202, 2, -6.1, 106.7, 30, 180, 8, NOW() - INTERVAL '2 days'),
			(202, 2, -6.1, 106.7, 30, 180, 8, NOW() - INTERVAL '40 days')`,
		`INSERT INTO predictions (train_id, station_id, predicted_time, confidence_score, actual_arrival_time, created_at) VALUES
			(101, 1, '10:00:00', 0.80, '10:12:00', NOW() - INTERVAL '1 day'),
			(202, 2, '09:00:00', 0.70, NULL, NOW() - INTERVAL '2 days')`,
	}
	for _, s := range stmts {
		_, err := pg.pool.Exec(ctx, s)
		require.NoError(t, err)
	}
}

func TestPostgresTrainingWindow(t *testing.T) {
	pg := startPostgres(t)
	seed(t, pg)

	recs, err := pg.LoadTrainingWindow(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, "101", r.TrainID)
	assert.Equal(t, "1", r.StationID)
	assert.Equal(t, "Express", r.TrainType)
	require.NotNil(t, r.Capacity)
	assert.Equal(t, 400, *r.Capacity)
	require.NotNil(t, r.Speed)
	assert.InDelta(t, 60, *r.Speed, 1e-9)
	assert.InDelta(t, 12, r.ActualDelayMinutes, 1e-9)
	require.NotNil(t, r.StationLat)
	assert.InDelta(t, -6.175, *r.StationLat, 1e-9)

	_, err = pg.LoadTrainingWindow(context.Background(), 0)
	assert.Error(t, err)
}

func TestPostgresStatistics(t *testing.T) {
	pg := startPostgres(t)
	seed(t, pg)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	pg.now = func() time.Time { return fixed }

	st, err := pg.DataStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.TotalTrackingRecords)
	assert.Equal(t, int64(2), st.UniqueTrains)
	assert.Equal(t, int64(2), st.UniqueStations)
	assert.NotNil(t, st.EarliestRecord)
	assert.NotNil(t, st.LatestRecord)
	assert.Equal(t, int64(1), st.TotalPredictions)
	assert.InDelta(t, 0.8, st.AvgConfidence, 1e-9)
	assert.InDelta(t, 12, st.AvgErrorMinutes, 1e-9)
	assert.Equal(t, fixed, st.LastUpdated)
}

func TestPostgresDirectory(t *testing.T) {
	pg := startPostgres(t)
	seed(t, pg)

	stations, trains, err := pg.Directory(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "Central", stations[0].Name)
	assert.InDelta(t, 106.827, stations[0].Location.Lon, 1e-9)
	require.Len(t, trains, 3)
	assert.Equal(t, features.Express, trains[0].Type)
	assert.Equal(t, features.Local, trains[2].Type)

	dir := dataset.NewDirectory(nil, nil)
	require.NoError(t, dir.Refresh(context.Background(), pg))
	s, tr := dir.Size()
	assert.Equal(t, 2, s)
	assert.Equal(t, 3, tr)
}

func TestPostgresSavePredictionUpserts(t *testing.T) {
	pg := startPostgres(t)
	seed(t, pg)
	ctx := context.Background()

	ev := events.PredictionEvent{
		TrainID:       "202",
		StationID:     "1",
		PredictedTime: "10:05:00",
		DelayMinutes:  4.6,
		Confidence:    0.8,
		Factors:       []string{"peak_hour"},
	}
	require.NoError(t, pg.SavePrediction(ctx, ev))
	ev.PredictedTime = "10:20:00"
	ev.DelayMinutes = 20
	ev.Factors = nil
	require.NoError(t, pg.SavePrediction(ctx, ev))

	hist, err := pg.RecentPredictions(ctx, "202", 10)
	require.NoError(t, err)
	var today []HistoryEntry
	for _, h := range hist {
		if h.StationID == "1" {
			today = append(today, h)
		}
	}
	require.Len(t, today, 1)
	assert.Equal(t, "10:20:00", today[0].PredictedTime)
	assert.Equal(t, 20, today[0].DelayMinutes)
	assert.Equal(t, PredictionMethod, today[0].Method)
	assert.Empty(t, today[0].Factors)

	assert.NoError(t, pg.SavePrediction(ctx, events.PredictionEvent{TrainID: "202", StationID: "1", Error: "boom"}))
	assert.ErrorIs(t, pg.SavePrediction(ctx, events.PredictionEvent{TrainID: "T1", StationID: "1", PredictedTime: "10:00:00"}), ErrInvalidID)
	_, err = pg.RecentPredictions(ctx, "abc", 1)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestSavePredictionValidatesWithoutDatabase(t *testing.T) {
	pg := NewWithPool(nil)
	ctx := context.Background()
	if err := pg.SavePrediction(ctx, events.PredictionEvent{TrainID: "1", StationID: "2", Error: "bad"}); err != nil {
		t.Fatalf("failed prediction should be skipped: %v", err)
	}
	err := pg.SavePrediction(ctx, events.PredictionEvent{TrainID: "1", StationID: "S2", PredictedTime: "10:00:00"})
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = pg.LoadTrainingWindow(ctx, -1)
	assert.Error(t, err)
}
