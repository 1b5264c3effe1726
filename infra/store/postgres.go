// Package store is the PostgreSQL access layer: the training window, data
// statistics, the train and station directory and prediction persistence.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/smartrail/core/dataset"
	"github.com/kilianp07/smartrail/core/events"
	"github.com/kilianp07/smartrail/core/features"
)

// Method stored with persisted predictions.
const PredictionMethod = "ml_model"

// Postgres implements dataset.Loader, dataset.StatsProvider and
// dataset.DirectorySource on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool, now: time.Now}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

const trainingQuery = `
	SELECT
		td.train_id::text,
		td.station_id::text,
		td.timestamp,
		td.latitude::float8,
		td.longitude::float8,
		td.speed::float8,
		td.heading::float8,
		td.accuracy::float8,
		COALESCE(t.type, ''),
		t.capacity,
		s.latitude::float8,
		s.longitude::float8,
		DATE(td.timestamp) + p.predicted_time,
		DATE(td.timestamp) + p.actual_arrival_time,
		p.confidence_score::float8,
		(EXTRACT(EPOCH FROM (p.actual_arrival_time - p.predicted_time)) / 60.0)::float8
	FROM tracking_data td
	JOIN trains t ON td.train_id = t.id
	JOIN stations s ON td.station_id = s.id
	LEFT JOIN predictions p
		ON p.train_id = td.train_id
		AND p.station_id = td.station_id
		AND DATE(td.timestamp) = DATE(p.created_at)
	WHERE td.timestamp > NOW() - make_interval(days => $1)
		AND p.actual_arrival_time IS NOT NULL
	ORDER BY td.timestamp DESC`

// LoadTrainingWindow returns tracking rows of the last daysBack days that
// have an observed arrival.
func (p *Postgres) LoadTrainingWindow(ctx context.Context, daysBack int) ([]dataset.Record, error) {
	if daysBack <= 0 {
		return nil, fmt.Errorf("days back must be positive, got %d", daysBack)
	}
	rows, err := p.pool.Query(ctx, trainingQuery, daysBack)
	if err != nil {
		return nil, fmt.Errorf("query training window: %w", err)
	}
	defer rows.Close()

	var out []dataset.Record
	for rows.Next() {
		var (
			r        dataset.Record
			capacity *int32
			delay    *float64
		)
		if err := rows.Scan(
			&r.TrainID,
			&r.StationID,
			&r.Timestamp,
			&r.Latitude,
			&r.Longitude,
			&r.Speed,
			&r.Heading,
			&r.Accuracy,
			&r.TrainType,
			&capacity,
			&r.StationLat,
			&r.StationLon,
			&r.PredictedTime,
			&r.ActualArrivalTime,
			&r.ConfidenceScore,
			&delay,
		); err != nil {
			return nil, fmt.Errorf("scan training row: %w", err)
		}
		if capacity != nil {
			c := int(*capacity)
			r.Capacity = &c
		}
		if delay != nil {
			r.ActualDelayMinutes = *delay
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training rows: %w", err)
	}
	return out, nil
}

const trackingStatsQuery = `
	SELECT
		COUNT(*),
		COUNT(DISTINCT train_id),
		COUNT(DISTINCT station_id),
		MIN(timestamp),
		MAX(timestamp)
	FROM tracking_data
	WHERE timestamp > NOW() - INTERVAL '30 days'`

const predictionStatsQuery = `
	SELECT
		COUNT(*),
		COALESCE(AVG(confidence_score), 0)::float8,
		COALESCE(AVG(ABS(EXTRACT(EPOCH FROM (actual_arrival_time - predicted_time)) / 60.0)), 0)::float8
	FROM predictions
	WHERE created_at > NOW() - INTERVAL '7 days'
		AND actual_arrival_time IS NOT NULL`

// DataStatistics reports tracking volume over 30 days and prediction
// accuracy over 7 days.
func (p *Postgres) DataStatistics(ctx context.Context) (dataset.Statistics, error) {
	var st dataset.Statistics
	if err := p.pool.QueryRow(ctx, trackingStatsQuery).Scan(
		&st.TotalTrackingRecords,
		&st.UniqueTrains,
		&st.UniqueStations,
		&st.EarliestRecord,
		&st.LatestRecord,
	); err != nil {
		return dataset.Statistics{}, fmt.Errorf("query tracking statistics: %w", err)
	}
	if err := p.pool.QueryRow(ctx, predictionStatsQuery).Scan(
		&st.TotalPredictions,
		&st.AvgConfidence,
		&st.AvgErrorMinutes,
	); err != nil {
		return dataset.Statistics{}, fmt.Errorf("query prediction statistics: %w", err)
	}
	st.LastUpdated = p.now().UTC()
	return st, nil
}

// Directory loads every station with coordinates and every train type.
func (p *Postgres) Directory(ctx context.Context) ([]dataset.Station, []dataset.Train, error) {
	stations, err := p.stations(ctx)
	if err != nil {
		return nil, nil, err
	}
	trains, err := p.trains(ctx)
	if err != nil {
		return nil, nil, err
	}
	return stations, trains, nil
}

func (p *Postgres) stations(ctx context.Context) ([]dataset.Station, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, COALESCE(name, ''), latitude::float8, longitude::float8
		FROM stations
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	var out []dataset.Station
	for rows.Next() {
		var s dataset.Station
		if err := rows.Scan(&s.ID, &s.Name, &s.Location.Lat, &s.Location.Lon); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stations: %w", err)
	}
	return out, nil
}

func (p *Postgres) trains(ctx context.Context) ([]dataset.Train, error) {
	rows, err := p.pool.Query(ctx, `SELECT id::text, COALESCE(type, '') FROM trains ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query trains: %w", err)
	}
	defer rows.Close()

	var out []dataset.Train
	for rows.Next() {
		var (
			t   dataset.Train
			typ string
		)
		if err := rows.Scan(&t.ID, &typ); err != nil {
			return nil, fmt.Errorf("scan train: %w", err)
		}
		t.Type = features.ParseTrainType(typ)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trains: %w", err)
	}
	return out, nil
}

// ErrInvalidID is returned when a prediction carries a non numeric train or
// station identifier.
var ErrInvalidID = errors.New("identifier is not numeric")

const upsertPrediction = `
	INSERT INTO predictions (
		train_id, station_id, predicted_time, confidence_score,
		delay_minutes, prediction_method, factors, created_at
	) VALUES ($1, $2, $3::time, $4, $5, $6, $7, NOW())
	ON CONFLICT (train_id, station_id, (DATE(created_at)))
	DO UPDATE SET
		predicted_time = EXCLUDED.predicted_time,
		confidence_score = EXCLUDED.confidence_score,
		delay_minutes = EXCLUDED.delay_minutes,
		prediction_method = EXCLUDED.prediction_method,
		factors = EXCLUDED.factors,
		updated_at = NOW()`

// SavePrediction upserts one prediction per train, station and day.
// Failed predictions are ignored.
func (p *Postgres) SavePrediction(ctx context.Context, ev events.PredictionEvent) error {
	if ev.Failed() || ev.PredictedTime == "" {
		return nil
	}
	trainID, err := strconv.Atoi(ev.TrainID)
	if err != nil {
		return fmt.Errorf("train %q: %w", ev.TrainID, ErrInvalidID)
	}
	stationID, err := strconv.Atoi(ev.StationID)
	if err != nil {
		return fmt.Errorf("station %q: %w", ev.StationID, ErrInvalidID)
	}
	factors := ev.Factors
	if factors == nil {
		factors = []string{}
	}
	_, err = p.pool.Exec(ctx, upsertPrediction,
		trainID,
		stationID,
		ev.PredictedTime,
		ev.Confidence,
		int(ev.DelayMinutes+0.5),
		PredictionMethod,
		factors,
	)
	if err != nil {
		return fmt.Errorf("upsert prediction %s/%s: %w", ev.TrainID, ev.StationID, err)
	}
	return nil
}

// HistoryEntry is a persisted prediction row.
type HistoryEntry struct {
	TrainID       string    `json:"train_id"`
	StationID     string    `json:"station_id"`
	PredictedTime string    `json:"predicted_time"`
	Confidence    float64   `json:"confidence_score"`
	DelayMinutes  int       `json:"delay_minutes"`
	Method        string    `json:"prediction_method"`
	Factors       []string  `json:"factors"`
	ActualArrival *string   `json:"actual_arrival_time,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecentPredictions lists the latest stored predictions for a train, or for
// every train when trainID is empty.
func (p *Postgres) RecentPredictions(ctx context.Context, trainID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows pgx.Rows
		err  error
	)
	const base = `
		SELECT train_id::text, station_id::text, predicted_time::text,
			confidence_score::float8, delay_minutes, COALESCE(prediction_method, ''),
			COALESCE(factors, '[]'::jsonb), actual_arrival_time::text, created_at
		FROM predictions`
	if trainID == "" {
		rows, err = p.pool.Query(ctx, base+` ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		id, convErr := strconv.Atoi(trainID)
		if convErr != nil {
			return nil, fmt.Errorf("train %q: %w", trainID, ErrInvalidID)
		}
		rows, err = p.pool.Query(ctx, base+` WHERE train_id = $1 ORDER BY created_at DESC LIMIT $2`, id, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(
			&h.TrainID, &h.StationID, &h.PredictedTime,
			&h.Confidence, &h.DelayMinutes, &h.Method,
			&h.Factors, &h.ActualArrival, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}

var (
	_ dataset.Loader          = (*Postgres)(nil)
	_ dataset.StatsProvider   = (*Postgres)(nil)
	_ dataset.DirectorySource = (*Postgres)(nil)
)
