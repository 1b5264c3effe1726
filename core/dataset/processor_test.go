package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartrail/infra/logger"
)

// Friday 08:15 UTC.
var base = time.Date(2024, 5, 10, 8, 15, 0, 0, time.UTC)

func rec(train string, offset time.Duration, speed *float64, delay float64) Record {
	return Record{
		TrainID:            train,
		StationID:          "5",
		Timestamp:          base.Add(offset),
		Speed:              speed,
		TrainType:          "local",
		ActualDelayMinutes: delay,
	}
}

func TestPreprocess_FillsAndDerives(t *testing.T) {
	p := NewProcessor(logger.NopLogger{})
	in := []Record{
		rec("101", 0, ptr(40), 3),
		rec("101", time.Hour, nil, 4),
		rec("102", 26*time.Hour, ptr(50), 5),
	}
	in[0].TrainType = "Express"
	in[2].TrainType = "intercity"
	in[0].Latitude, in[0].Longitude = ptr(0), ptr(0)
	in[0].StationLat, in[0].StationLon = ptr(0), ptr(0.1)

	out := p.Preprocess(in)
	require.Len(t, out, 3)
	assert.Nil(t, in[1].Speed, "input untouched")

	assert.Equal(t, 45.0, *out[1].Speed, "median of 40 and 50")
	assert.Equal(t, DefaultAccuracy, *out[0].Accuracy)
	assert.Equal(t, 28.0, *out[0].WeatherTemp)
	assert.Equal(t, 75.0, *out[0].WeatherHumidity)
	assert.Equal(t, 0.0, *out[0].WeatherRainfall)

	assert.Equal(t, 8, out[0].Hour)
	assert.Equal(t, 4, out[0].DayOfWeek)
	assert.Equal(t, 5, out[0].Month)
	assert.True(t, out[0].IsPeakHour)
	assert.False(t, out[0].IsWeekend)
	assert.True(t, out[2].IsWeekend, "saturday")
	assert.True(t, out[1].IsPeakHour, "09:15 is peak")
	assert.True(t, out[0].TrainTypeExpress)
	assert.True(t, out[2].TrainTypeIntercity)

	assert.InDelta(t, 11.1195, out[0].DistanceToStation, 1e-3)
	assert.Equal(t, 10.0, out[1].DistanceToStation)
}

func TestPreprocess_Empty(t *testing.T) {
	assert.Empty(t, NewProcessor(nil).Preprocess(nil))
}

func TestRemoveOutliers_PerColumnSequential(t *testing.T) {
	var recs []Record
	for i := 0; i < 20; i++ {
		recs = append(recs, rec("101", time.Duration(i)*time.Minute, ptr(40+float64(i%5)), float64(i%4)))
	}
	recs = append(recs, rec("101", time.Hour, ptr(400), 1))  // speed outlier
	recs = append(recs, rec("101", 2*time.Hour, ptr(42), 90)) // delay outlier
	for i := range recs {
		recs[i].DistanceToStation = 10
	}

	out := RemoveOutliers(recs, DefaultOutlierColumns)
	assert.Len(t, out, 20)
	for _, r := range out {
		assert.Less(t, *r.Speed, 100.0)
		assert.Less(t, r.ActualDelayMinutes, 60.0)
	}
}

func TestRemoveOutliers_NullAndMissingColumns(t *testing.T) {
	recs := []Record{rec("1", 0, ptr(10), 1), rec("1", 0, nil, 1), rec("1", 0, ptr(11), 1)}
	out := RemoveOutliers(recs, []string{ColSpeed})
	assert.Len(t, out, 2, "null speed rows are dropped")

	out = RemoveOutliers(recs, []string{"not_a_column"})
	assert.Len(t, out, 3, "unknown column skipped")
}

func TestIQRBounds(t *testing.T) {
	lo, hi := IQRBounds([]float64{5, 1, 4, 2, 3, 6, 7, 8})
	assert.Less(t, lo, 1.0)
	assert.Greater(t, hi, 8.0)

	lo, hi = IQRBounds([]float64{3, 3, 3, 3})
	assert.Equal(t, 3.0, lo)
	assert.Equal(t, 3.0, hi)
}

func TestMedian(t *testing.T) {
	assert.True(t, math.IsNaN(Median(nil)))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
}

func TestQuantile(t *testing.T) {
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.25))
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	assert.InDelta(t, 2.75, Quantile(sorted, 0.25), 1e-12)
	assert.InDelta(t, 6.25, Quantile(sorted, 0.75), 1e-12)
	assert.Equal(t, 1.0, Quantile(sorted, 0))
	assert.Equal(t, 8.0, Quantile(sorted, 1))
}
