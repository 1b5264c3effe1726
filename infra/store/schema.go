package store

import (
	"context"
	"fmt"
)

// Schema creates the tables the service reads and writes. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS stations (
	id SERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	code VARCHAR(10) UNIQUE NOT NULL,
	city VARCHAR(100) NOT NULL DEFAULT '',
	province VARCHAR(100) NOT NULL DEFAULT '',
	latitude DECIMAL(10, 8),
	longitude DECIMAL(11, 8),
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS trains (
	id SERIAL PRIMARY KEY,
	number VARCHAR(20) UNIQUE NOT NULL,
	name VARCHAR(255) NOT NULL,
	type VARCHAR(50) NOT NULL,
	capacity INTEGER NOT NULL,
	current_station_id INTEGER REFERENCES stations(id),
	status VARCHAR(20) DEFAULT 'scheduled',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tracking_data (
	id SERIAL PRIMARY KEY,
	train_id INTEGER REFERENCES trains(id) ON DELETE CASCADE,
	latitude DECIMAL(10, 8) NOT NULL,
	longitude DECIMAL(11, 8) NOT NULL,
	speed DECIMAL(5, 2),
	heading DECIMAL(5, 2),
	station_id INTEGER REFERENCES stations(id),
	arrival_time TIMESTAMP,
	departure_time TIMESTAMP,
	platform VARCHAR(10),
	estimated_arrival TIME,
	accuracy DECIMAL(5, 2),
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tracking_train_time ON tracking_data(train_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_tracking_timestamp ON tracking_data(timestamp);

CREATE TABLE IF NOT EXISTS predictions (
	id SERIAL PRIMARY KEY,
	train_id INTEGER REFERENCES trains(id) ON DELETE CASCADE,
	station_id INTEGER REFERENCES stations(id) ON DELETE CASCADE,
	predicted_time TIME NOT NULL,
	confidence_score DECIMAL(3, 2),
	delay_minutes INTEGER DEFAULT 0,
	prediction_method VARCHAR(50),
	factors JSONB,
	actual_arrival_time TIME,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_predictions_unique
	ON predictions(train_id, station_id, DATE(created_at));
`

// Migrate applies Schema.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
