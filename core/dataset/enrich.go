package dataset

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SortByTrain returns a copy of recs ordered by train id then timestamp.
func SortByTrain(recs []Record) []Record {
	out := make([]Record, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TrainID != out[j].TrainID {
			return out[i].TrainID < out[j].TrainID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// LagColumn names the lag enrichment of column.
func LagColumn(column string, lag int) string { return fmt.Sprintf("%s_lag_%d", column, lag) }

// RollingMeanColumn names the rolling mean enrichment of column.
func RollingMeanColumn(column string, window int) string {
	return fmt.Sprintf("%s_rolling_mean_%d", column, window)
}

// RollingStdColumn names the rolling standard deviation enrichment of column.
func RollingStdColumn(column string, window int) string {
	return fmt.Sprintf("%s_rolling_std_%d", column, window)
}

// LagFeatures adds column_lag_N values taken from the N-th previous sample of
// the same train. Unavailable lags are NaN. The result is sorted by train and
// timestamp.
func LagFeatures(recs []Record, column string, lags []int) []Record {
	out := SortByTrain(recs)
	forEachTrain(out, func(group []Record) {
		for i := range group {
			ensureExtra(&group[i])
			for _, lag := range lags {
				v := math.NaN()
				if j := i - lag; lag > 0 && j >= 0 {
					if x, ok := group[j].Value(column); ok {
						v = x
					}
				}
				group[i].Extra[LagColumn(column, lag)] = v
			}
		}
	})
	return out
}

// RollingFeatures adds trailing window mean and sample standard deviation of
// column per train. Windows shorter than the requested size use the samples
// available; a single sample has a NaN deviation.
func RollingFeatures(recs []Record, column string, windows []int) []Record {
	out := SortByTrain(recs)
	forEachTrain(out, func(group []Record) {
		for i := range group {
			ensureExtra(&group[i])
			for _, w := range windows {
				start := i - w + 1
				if start < 0 {
					start = 0
				}
				vals := make([]float64, 0, w)
				for j := start; j <= i; j++ {
					if x, ok := group[j].Value(column); ok && !math.IsNaN(x) {
						vals = append(vals, x)
					}
				}
				mean, std := math.NaN(), math.NaN()
				if len(vals) > 0 {
					mean = stat.Mean(vals, nil)
				}
				if len(vals) > 1 {
					std = stat.StdDev(vals, nil)
				}
				group[i].Extra[RollingMeanColumn(column, w)] = mean
				group[i].Extra[RollingStdColumn(column, w)] = std
			}
		}
	})
	return out
}

// forEachTrain calls fn with each contiguous same-train run of sorted recs.
func forEachTrain(sorted []Record, fn func([]Record)) {
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].TrainID != sorted[start].TrainID {
			fn(sorted[start:i])
			start = i
		}
	}
}

func ensureExtra(r *Record) {
	if r.Extra == nil {
		r.Extra = make(map[string]float64)
		return
	}
	cp := make(map[string]float64, len(r.Extra))
	for k, v := range r.Extra {
		cp[k] = v
	}
	r.Extra = cp
}
