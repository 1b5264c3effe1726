// Package dataset loads historical tracking samples, cleans them and turns
// them into training matrices for the prediction model.
package dataset

import (
	"context"
	"time"
)

// Record is one tracking sample joined with its train, station and the
// observed arrival. Nullable columns are pointers.
type Record struct {
	TrainID   string
	StationID string
	Timestamp time.Time

	Latitude  *float64
	Longitude *float64
	Speed     *float64
	Heading   *float64
	Accuracy  *float64

	TrainType  string
	Capacity   *int
	StationLat *float64
	StationLon *float64

	PredictedTime      *time.Time
	ActualArrivalTime  *time.Time
	ConfidenceScore    *float64
	ActualDelayMinutes float64

	WeatherTemp     *float64
	WeatherHumidity *float64
	WeatherRainfall *float64

	// Filled by Preprocess.
	Hour               int
	DayOfWeek          int
	Month              int
	IsWeekend          bool
	IsPeakHour         bool
	TrainTypeExpress   bool
	TrainTypeIntercity bool
	DistanceToStation  float64

	// Extra holds lag and rolling enrichments keyed by generated column name.
	Extra map[string]float64
}

// Column names understood by Value.
const (
	ColSpeed              = "speed"
	ColAccuracy           = "accuracy"
	ColHeading            = "heading"
	ColActualDelayMinutes = "actual_delay_minutes"
	ColDistanceToStation  = "distance_to_station"
	ColWeatherTemp        = "weather_temp"
	ColWeatherHumidity    = "weather_humidity"
	ColWeatherRainfall    = "weather_rainfall"
	ColConfidenceScore    = "confidence_score"
)

// DefaultOutlierColumns are filtered by Preprocess.
var DefaultOutlierColumns = []string{ColSpeed, ColActualDelayMinutes, ColDistanceToStation}

// Value returns a numeric column of the record. The boolean is false when the
// column is null or unknown.
func (r *Record) Value(column string) (float64, bool) {
	switch column {
	case ColSpeed:
		return deref(r.Speed)
	case ColAccuracy:
		return deref(r.Accuracy)
	case ColHeading:
		return deref(r.Heading)
	case ColActualDelayMinutes:
		return r.ActualDelayMinutes, true
	case ColDistanceToStation:
		return r.DistanceToStation, true
	case ColWeatherTemp:
		return deref(r.WeatherTemp)
	case ColWeatherHumidity:
		return deref(r.WeatherHumidity)
	case ColWeatherRainfall:
		return deref(r.WeatherRainfall)
	case ColConfidenceScore:
		return deref(r.ConfidenceScore)
	}
	if v, ok := r.Extra[column]; ok {
		return v, true
	}
	return 0, false
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

func ptr(f float64) *float64 { return &f }

// Statistics summarises recent tracking volume and prediction accuracy.
type Statistics struct {
	TotalTrackingRecords int64      `json:"total_tracking_records"`
	UniqueTrains         int64      `json:"unique_trains"`
	UniqueStations       int64      `json:"unique_stations"`
	EarliestRecord       *time.Time `json:"earliest_record"`
	LatestRecord         *time.Time `json:"latest_record"`
	TotalPredictions     int64      `json:"total_predictions"`
	AvgConfidence        float64    `json:"avg_confidence"`
	AvgErrorMinutes      float64    `json:"avg_error_minutes"`
	LastUpdated          time.Time  `json:"last_updated"`
}

// Loader reads the training window from the relational store.
type Loader interface {
	LoadTrainingWindow(ctx context.Context, daysBack int) ([]Record, error)
}

// StatsProvider reports data statistics for monitoring.
type StatsProvider interface {
	DataStatistics(ctx context.Context) (Statistics, error)
}
