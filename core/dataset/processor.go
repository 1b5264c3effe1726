package dataset

import (
	"math"
	"sort"

	"github.com/kilianp07/smartrail/core/features"
	"github.com/kilianp07/smartrail/core/geo"
	"github.com/kilianp07/smartrail/core/logger"
)

// Static fills used when a column has no values at all.
const (
	DefaultSpeed    = 45.0
	DefaultAccuracy = 10.0
)

// Processor cleans raw records.
type Processor struct {
	// OutlierColumns are filtered one after another with the IQR rule.
	OutlierColumns []string
	log            logger.Logger
}

// NewProcessor returns a Processor filtering DefaultOutlierColumns.
func NewProcessor(log logger.Logger) *Processor {
	cols := make([]string, len(DefaultOutlierColumns))
	copy(cols, DefaultOutlierColumns)
	return &Processor{OutlierColumns: cols, log: log}
}

// Preprocess fills missing values, derives calendar, train type and distance
// fields and removes outliers. The input slice is not modified.
func (p *Processor) Preprocess(in []Record) []Record {
	if len(in) == 0 {
		return nil
	}
	recs := make([]Record, len(in))
	copy(recs, in)

	speedFill := medianOr(recs, ColSpeed, DefaultSpeed)
	accFill := medianOr(recs, ColAccuracy, DefaultAccuracy)

	for i := range recs {
		r := &recs[i]
		if r.Speed == nil {
			r.Speed = ptr(speedFill)
		}
		if r.Accuracy == nil {
			r.Accuracy = ptr(accFill)
		}
		if r.WeatherTemp == nil {
			r.WeatherTemp = ptr(features.DefaultTemperature)
		}
		if r.WeatherHumidity == nil {
			r.WeatherHumidity = ptr(features.DefaultHumidity)
		}
		if r.WeatherRainfall == nil {
			r.WeatherRainfall = ptr(features.DefaultRainfall)
		}

		tf := features.TimeFeatures(r.Timestamp)
		r.Hour, r.DayOfWeek, r.Month = tf.Hour, tf.DayOfWeek, tf.Month
		r.IsWeekend = tf.IsWeekend
		r.IsPeakHour = tf.IsPeakHour

		tt := features.ParseTrainType(r.TrainType)
		r.TrainTypeExpress = tt == features.Express
		r.TrainTypeIntercity = tt == features.Intercity

		r.DistanceToStation = distance(r)
	}

	out := RemoveOutliers(recs, p.OutlierColumns)
	if p.log != nil {
		p.log.Infof("preprocessed %d records, %d kept after outlier removal", len(in), len(out))
	}
	return out
}

func distance(r *Record) float64 {
	if r.Latitude == nil || r.Longitude == nil || r.StationLat == nil || r.StationLon == nil {
		return features.DefaultDistanceKm
	}
	return geo.HaversineKm(*r.Latitude, *r.Longitude, *r.StationLat, *r.StationLon)
}

// RemoveOutliers drops rows outside [Q1-1.5*IQR, Q3+1.5*IQR] for each column
// in turn. Quartiles are recomputed on the rows surviving the previous
// column, so a row is dropped as soon as any single column flags it. Rows
// where the column is null are dropped; columns with no values are skipped.
func RemoveOutliers(recs []Record, columns []string) []Record {
	out := recs
	for _, col := range columns {
		vals := columnValues(out, col)
		if len(vals) == 0 {
			continue
		}
		lo, hi := IQRBounds(vals)
		kept := make([]Record, 0, len(out))
		for i := range out {
			v, ok := out[i].Value(col)
			if ok && v >= lo && v <= hi {
				kept = append(kept, out[i])
			}
		}
		out = kept
	}
	return out
}

// IQRBounds returns the Tukey fences of vals. vals need not be sorted.
func IQRBounds(vals []float64) (lo, hi float64) {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	q1 := Quantile(sorted, 0.25)
	q3 := Quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

// Quantile interpolates linearly between the closest ranks of sorted
// (Hyndman-Fan type 7, the numpy and pandas default). It returns NaN for an
// empty slice.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func columnValues(recs []Record, col string) []float64 {
	vals := make([]float64, 0, len(recs))
	for i := range recs {
		if v, ok := recs[i].Value(col); ok && !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

// Median returns the middle value of vals, averaging the two central values
// for even lengths. It returns NaN for an empty slice.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func medianOr(recs []Record, col string, def float64) float64 {
	vals := columnValues(recs, col)
	if len(vals) == 0 {
		return def
	}
	return Median(vals)
}
