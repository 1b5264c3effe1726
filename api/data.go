package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/smartrail/core/features"
	"github.com/kilianp07/smartrail/core/monitoring"
	"github.com/kilianp07/smartrail/core/predictionlog"
	"github.com/kilianp07/smartrail/pkg/export"
)

// MaxHistoryLimit caps the records returned by /predictions/history.
const MaxHistoryLimit = 10000

var errNotConfigured = errors.New("not configured")

func (h *handler) dataStats(w http.ResponseWriter, r *http.Request) {
	if h.Stats == nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to get data statistics", fmt.Errorf("database %w", errNotConfigured))
		return
	}
	stats, err := h.Stats.DataStatistics(r.Context())
	if err != nil {
		h.Log.Errorf("data stats error: %v", err)
		monitoring.CaptureException(err, map[string]string{"module": "api", "endpoint": "data_stats"})
		writeError(w, http.StatusInternalServerError, "Failed to get data statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// historyQuery parses the filters of /predictions/history.
func historyQuery(r *http.Request) (predictionlog.Query, export.Format, error) {
	v := r.URL.Query()
	var q predictionlog.Query
	for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		s := v.Get(name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, "", fmt.Errorf("%s must be RFC 3339: %w", name, err)
		}
		*dst = t
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return q, "", fmt.Errorf("end is before start")
	}
	q.TrainID = v.Get("train_id")
	q.StationID = v.Get("station_id")
	q.Limit = MaxHistoryLimit
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return q, "", fmt.Errorf("limit must be a positive integer")
		}
		q.Limit = min(n, MaxHistoryLimit)
	}
	f, err := export.ParseFormat(v.Get("format"))
	if err != nil {
		return q, "", err
	}
	return q, f, nil
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, http.StatusServiceUnavailable, "Prediction history unavailable", fmt.Errorf("prediction log %w", errNotConfigured))
		return
	}
	q, format, err := historyQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query", err)
		return
	}
	recs, err := h.History.Query(r.Context(), q)
	if err != nil {
		h.Log.Errorf("prediction history query: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to read prediction history", err)
		return
	}
	if recs == nil {
		recs = []predictionlog.Record{}
	}
	if format == export.CSV {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="predictions.csv"`)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := export.WriteHistory(w, format, recs); err != nil {
		h.Log.Errorf("write prediction history: %v", err)
	}
}

// FeaturesResponse is the debug view returned by POST /features.
type FeaturesResponse struct {
	Features  map[string]float64          `json:"features"`
	Vector    []float64                   `json:"vector"`
	Names     []string                    `json:"feature_names"`
	Time      features.TimeFeatureSet     `json:"time_features"`
	Weather   features.WeatherFeatureSet  `json:"weather_features"`
	Movement  features.MovementFeatureSet `json:"movement_features"`
	Degraded  bool                        `json:"degraded"`
	Message   string                      `json:"message,omitempty"`
	Timestamp time.Time                   `json:"timestamp"`
}

func (h *handler) features(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	now := h.Now()
	v := h.Features.ExtractJSON(body)
	req, err := features.ParseRequest(body)
	resp := FeaturesResponse{
		Features:  v.Map(),
		Vector:    v.Slice(),
		Names:     features.Names(),
		Time:      features.TimeFeatures(now),
		Weather:   features.WeatherFeatures(req.WeatherData),
		Movement:  features.MovementFeatures(req.RecentTracking),
		Timestamp: now.UTC(),
	}
	if err != nil {
		resp.Degraded = true
		resp.Message = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
