package features

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TimeFeatureSet holds calendar features derived from a timestamp.
type TimeFeatureSet struct {
	Hour        int  `json:"hour"`
	DayOfWeek   int  `json:"day_of_week"`
	DayOfMonth  int  `json:"day_of_month"`
	Month       int  `json:"month"`
	Quarter     int  `json:"quarter"`
	IsWeekend   bool `json:"is_weekend"`
	IsPeakHour  bool `json:"is_peak_hour"`
	IsMorning   bool `json:"is_morning"`
	IsAfternoon bool `json:"is_afternoon"`
	IsEvening   bool `json:"is_evening"`
}

// TimeFeatures derives calendar features from t in its own location.
func TimeFeatures(t time.Time) TimeFeatureSet {
	h := t.Hour()
	dow := mondayFirst(t.Weekday())
	return TimeFeatureSet{
		Hour:        h,
		DayOfWeek:   dow,
		DayOfMonth:  t.Day(),
		Month:       int(t.Month()),
		Quarter:     (int(t.Month())-1)/3 + 1,
		IsWeekend:   dow >= 5,
		IsPeakHour:  IsPeak(float64(h)),
		IsMorning:   h >= 6 && h < 12,
		IsAfternoon: h >= 12 && h < 18,
		IsEvening:   h >= 18 && h < 22,
	}
}

// Rainfall categories used by WeatherFeatures.
const (
	RainNone = iota
	RainLight
	RainModerate
	RainHeavy
)

// WeatherFeatureSet holds normalised weather indicators.
type WeatherFeatureSet struct {
	TempNormalized     float64 `json:"temp_normalized"`
	HumidityNormalized float64 `json:"humidity_normalized"`
	RainfallCategory   int     `json:"rainfall_category"`
	Severity           float64 `json:"weather_severity"`
}

// WeatherFeatures normalises temperature over 20-40 °C and humidity over
// 0-100 %, buckets rainfall and combines them into a severity capped at 1.
func WeatherFeatures(w *WeatherInput) WeatherFeatureSet {
	if w == nil {
		return WeatherFeatureSet{TempNormalized: 0.5, HumidityNormalized: 0.75}
	}
	temp := (valueOr(w.Temperature, DefaultTemperature) - 20) / 20
	hum := valueOr(w.Humidity, DefaultHumidity) / 100
	rain := valueOr(w.Rainfall, DefaultRainfall)

	cat := RainHeavy
	switch {
	case rain == 0:
		cat = RainNone
	case rain < 2.5:
		cat = RainLight
	case rain < 10:
		cat = RainModerate
	}
	severity := float64(cat)*0.4 + math.Abs(temp-0.4)*0.3 + hum*0.3
	return WeatherFeatureSet{
		TempNormalized:     temp,
		HumidityNormalized: hum,
		RainfallCategory:   cat,
		Severity:           math.Min(1, severity),
	}
}

// MovementFeatureSet summarises recent speed telemetry.
type MovementFeatureSet struct {
	AvgSpeed            float64 `json:"avg_speed"`
	SpeedVariance       float64 `json:"speed_variance"`
	StopsCount          int     `json:"stops_count"`
	AccelerationChanges int     `json:"acceleration_changes"`
}

// MovementFeatures uses the non-zero speed samples in order. Without any it
// reports the default speed and no movement.
func MovementFeatures(samples []TrackingSample) MovementFeatureSet {
	speeds := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Speed != nil && s.Speed.Float() != 0 {
			speeds = append(speeds, s.Speed.Float())
		}
	}
	if len(speeds) == 0 {
		return MovementFeatureSet{AvgSpeed: DefaultSpeed}
	}
	mean, variance := stat.PopMeanVariance(speeds, nil)
	out := MovementFeatureSet{AvgSpeed: mean, SpeedVariance: variance}
	for i, s := range speeds {
		if s < 5 {
			out.StopsCount++
		}
		if i > 0 && math.Abs(s-speeds[i-1]) > 10 {
			out.AccelerationChanges++
		}
	}
	return out
}
