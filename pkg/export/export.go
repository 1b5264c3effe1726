// Package export writes model comparison reports and prediction history as
// JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/smartrail/core/prediction"
	"github.com/kilianp07/smartrail/core/predictionlog"
)

// Format is an output encoding.
type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
)

// ParseFormat accepts "json" and "csv" in any case. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", JSON:
		return JSON, nil
	case CSV:
		return CSV, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// WriteComparison writes the comparison in the given format.
func WriteComparison(w io.Writer, f Format, cmp prediction.Comparison) error {
	if f == CSV {
		return WriteComparisonCSV(w, cmp)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cmp)
}

// WriteComparisonCSV writes one row per candidate model. The winning row is
// flagged in the best column.
func WriteComparisonCSV(w io.Writer, cmp prediction.Comparison) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"model_type", "mae", "rmse", "r2", "accuracy_within_5min", "accuracy_within_10min",
		"cv_mae", "cv_std", "n_train", "n_test", "best", "error",
	}); err != nil {
		return err
	}
	for _, c := range cmp.Candidates {
		m := c.Metrics
		rec := []string{
			string(c.Kind),
			num(m.MAE), num(m.RMSE), num(m.R2), num(m.AccuracyWithin5), num(m.AccuracyWithin10),
			num(m.CVMAE), num(m.CVStd),
			strconv.Itoa(m.TrainSamples), strconv.Itoa(m.TestSamples),
			strconv.FormatBool(c.Error == "" && c.Kind == cmp.Best),
			c.Error,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHistory writes prediction log records in the given format.
func WriteHistory(w io.Writer, f Format, recs []predictionlog.Record) error {
	if f == CSV {
		return WriteHistoryCSV(w, recs)
	}
	if recs == nil {
		recs = []predictionlog.Record{}
	}
	return json.NewEncoder(w).Encode(recs)
}

// WriteHistoryCSV writes the records with factors joined by ';'.
func WriteHistoryCSV(w io.Writer, recs []predictionlog.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"timestamp", "request_id", "train_id", "station_id", "scheduled_time", "predicted_time",
		"delay_minutes", "confidence_score", "factors", "model_type", "model_version", "batch", "error", "latency_ms",
	}); err != nil {
		return err
	}
	for _, r := range recs {
		rec := []string{
			r.Timestamp.Format(time.RFC3339Nano),
			r.RequestID,
			r.TrainID,
			r.StationID,
			r.ScheduledTime,
			r.PredictedTime,
			num(r.DelayMinutes),
			num(r.Confidence),
			strings.Join(r.Factors, ";"),
			r.ModelType,
			r.ModelVersion,
			strconv.FormatBool(r.Batch),
			r.Error,
			num(r.LatencyMS),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
