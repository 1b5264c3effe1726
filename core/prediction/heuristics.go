package prediction

import "github.com/kilianp07/smartrail/core/features"

// Factor tags attached to predictions.
const (
	FactorHeavyRainfall    = "heavy_rainfall"
	FactorPeakHour         = "peak_hour_traffic"
	FactorReducedSpeed     = "reduced_speed"
	FactorSignificantDelay = "significant_delay_expected"
	FactorNormal           = "normal_conditions"
)

// Confidence scores a prediction from the conditions in v. The score is a
// fixed rule table in [0.3, 1.0], not a calibrated probability. It is kept in
// hundredths so repeated adjustments stay exact.
func Confidence(v features.Vector) float64 {
	c := 80
	if v[features.WeatherRainfall] > 10 {
		c -= 20
	}
	if v[features.IsPeakHour] >= 0.5 {
		c -= 10
	}
	if v[features.TrainTypeExpress] >= 0.5 {
		c += 10
	}
	c = min(max(c, 30), 100)
	return float64(c) / 100
}

// Factors lists the conditions that explain a delay estimate. The result is
// never empty.
func Factors(v features.Vector, delay float64) []string {
	var out []string
	if v[features.WeatherRainfall] > 5 {
		out = append(out, FactorHeavyRainfall)
	}
	if v[features.IsPeakHour] >= 0.5 {
		out = append(out, FactorPeakHour)
	}
	if v[features.CurrentSpeed] < 30 {
		out = append(out, FactorReducedSpeed)
	}
	if delay > 10 {
		out = append(out, FactorSignificantDelay)
	}
	if len(out) == 0 {
		out = append(out, FactorNormal)
	}
	return out
}
