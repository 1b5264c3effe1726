// Package features turns prediction requests into the fixed 13-dimensional
// vector consumed by the regression model.
package features

import "fmt"

// Dim is the number of features in a Vector.
const Dim = 13

// Feature positions. The estimator is trained and queried positionally, so the
// order is part of the persisted model contract.
const (
	Hour = iota
	DayOfWeek
	IsWeekend
	IsPeakHour
	WeatherTemp
	WeatherHumidity
	WeatherRainfall
	DistanceToStation
	CurrentSpeed
	ScheduledTimeMinutes
	TrainTypeExpress
	TrainTypeIntercity
	HistoricalAvgDelay
)

var names = [Dim]string{
	"hour",
	"day_of_week",
	"is_weekend",
	"is_peak_hour",
	"weather_temp",
	"weather_humidity",
	"weather_rainfall",
	"distance_to_station",
	"current_speed",
	"scheduled_time_minutes",
	"train_type_express",
	"train_type_intercity",
	"historical_avg_delay",
}

// Names returns a copy of the ordered feature names.
func Names() []string {
	out := make([]string, Dim)
	copy(out, names[:])
	return out
}

// SameNames reports whether got matches the engineer's feature order exactly.
func SameNames(got []string) bool {
	if len(got) != Dim {
		return false
	}
	for i, n := range got {
		if n != names[i] {
			return false
		}
	}
	return true
}

// Vector is one ordered feature row.
type Vector [Dim]float64

// Slice returns the vector as a new slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Dim)
	copy(out, v[:])
	return out
}

// Map returns the vector keyed by feature name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, Dim)
	for i, n := range names {
		m[n] = v[i]
	}
	return m
}

// Get returns the value of the named feature.
func (v Vector) Get(name string) (float64, bool) {
	for i, n := range names {
		if n == name {
			return v[i], true
		}
	}
	return 0, false
}

// FromSlice builds a Vector from a row of exactly Dim values.
func FromSlice(row []float64) (Vector, error) {
	var v Vector
	if len(row) != Dim {
		return v, fmt.Errorf("feature row has %d values, want %d", len(row), Dim)
	}
	copy(v[:], row)
	return v, nil
}
