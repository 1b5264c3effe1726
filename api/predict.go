package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/smartrail/core/events"
	"github.com/kilianp07/smartrail/core/features"
	"github.com/kilianp07/smartrail/core/monitoring"
	"github.com/kilianp07/smartrail/core/prediction"
)

// PredictionMethod is reported with every served prediction.
const PredictionMethod = "ml_model"

// PredictResponse is the body of a successful POST /predict.
type PredictResponse struct {
	PredictedTime    string    `json:"predicted_time"`
	ConfidenceScore  float64   `json:"confidence_score"`
	DelayMinutes     float64   `json:"delay_minutes"`
	PredictionMethod string    `json:"prediction_method"`
	Factors          []string  `json:"factors"`
	ModelVersion     string    `json:"model_version"`
	Timestamp        time.Time `json:"timestamp"`
}

// BatchItem is one entry of a batch response. Error is set instead of the
// prediction fields when the item failed.
type BatchItem struct {
	TrainID         string   `json:"train_id"`
	StationID       string   `json:"station_id"`
	PredictedTime   string   `json:"predicted_time,omitempty"`
	ConfidenceScore float64  `json:"confidence_score,omitempty"`
	DelayMinutes    *float64 `json:"delay_minutes,omitempty"`
	Factors         []string `json:"factors,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// BatchResponse is the body of POST /batch_predict.
type BatchResponse struct {
	Predictions []BatchItem `json:"predictions"`
	Total       int         `json:"total"`
	Timestamp   time.Time   `json:"timestamp"`
}

type batchRequest struct {
	Predictions []json.RawMessage `json:"predictions"`
}

// requestKey holds the fields of a prediction payload that are decoded
// strictly. Everything else goes through the Extractor, which falls back to
// the default vector on malformed telemetry.
type requestKey struct {
	TrainID       features.ID         `json:"train_id"`
	StationID     features.ID         `json:"station_id"`
	ScheduledTime *features.ClockTime `json:"scheduled_time"`
}

func parseKey(b []byte) (requestKey, error) {
	var k requestKey
	if len(bytes.TrimSpace(b)) == 0 {
		return k, nil
	}
	if err := json.Unmarshal(b, &k); err != nil {
		return requestKey{}, fmt.Errorf("decode request: %w", err)
	}
	return k, nil
}

// errMissingField is returned when an identifier is absent.
type errMissingField string

func (e errMissingField) Error() string { return "Missing required field: " + string(e) }

func validate(req requestKey) error {
	if req.TrainID.Empty() {
		return errMissingField("train_id")
	}
	if req.StationID.Empty() {
		return errMissingField("station_id")
	}
	return nil
}

func (h *handler) predict(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := parseKey(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validate(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	start := time.Now()
	res, err := h.Model.Predict(h.Features.ExtractJSON(body))
	h.publish(r, req, res, err, false, time.Since(start))
	if err != nil {
		h.Log.Errorf("prediction for train %s station %s failed: %v", req.TrainID, req.StationID, err)
		if errors.Is(err, prediction.ErrNotLoaded) {
			writeError(w, http.StatusServiceUnavailable, "Prediction failed", err)
			return
		}
		monitoring.CaptureException(err, map[string]string{
			"module":     "api",
			"train_id":   req.TrainID.String(),
			"station_id": req.StationID.String(),
		})
		writeError(w, http.StatusInternalServerError, "Prediction failed", err)
		return
	}
	h.Log.Infof("prediction made for train %s, station %s: %s", req.TrainID, req.StationID, res.PredictedTime)
	writeJSON(w, http.StatusOK, PredictResponse{
		PredictedTime:    res.PredictedTime,
		ConfidenceScore:  round2(res.Confidence),
		DelayMinutes:     round2(res.DelayMinutes),
		PredictionMethod: PredictionMethod,
		Factors:          nonNil(res.Factors),
		ModelVersion:     res.ModelVersion,
		Timestamp:        h.Now().UTC(),
	})
}

func (h *handler) batchPredict(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var in batchRequest
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(in.Predictions) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No prediction data provided"})
		return
	}

	out := make([]BatchItem, 0, len(in.Predictions))
	for i, raw := range in.Predictions {
		item := h.batchItem(r, raw)
		if item.Error != "" {
			h.Log.Warnf("batch item %d for train %q failed: %s", i, item.TrainID, item.Error)
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, BatchResponse{
		Predictions: out,
		Total:       len(out),
		Timestamp:   h.Now().UTC(),
	})
}

// batchItem predicts one entry. Failures stay local to the item.
func (h *handler) batchItem(r *http.Request, raw json.RawMessage) BatchItem {
	req, err := parseKey(raw)
	if err != nil {
		return BatchItem{Error: err.Error()}
	}
	item := BatchItem{TrainID: req.TrainID.String(), StationID: req.StationID.String()}
	if err := validate(req); err != nil {
		item.Error = err.Error()
		return item
	}
	start := time.Now()
	res, err := h.Model.Predict(h.Features.ExtractJSON(raw))
	h.publish(r, req, res, err, true, time.Since(start))
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.PredictedTime = res.PredictedTime
	item.ConfidenceScore = round2(res.Confidence)
	delay := round2(res.DelayMinutes)
	item.DelayMinutes = &delay
	item.Factors = nonNil(res.Factors)
	return item
}

func (h *handler) publish(r *http.Request, req requestKey, res prediction.Result, err error, batch bool, latency time.Duration) {
	if h.Bus == nil {
		return
	}
	ev := events.PredictionEvent{
		ID:            events.NewID(),
		RequestID:     RequestID(r.Context()),
		TrainID:       req.TrainID.String(),
		StationID:     req.StationID.String(),
		PredictedTime: res.PredictedTime,
		DelayMinutes:  res.DelayMinutes,
		Confidence:    res.Confidence,
		Factors:       res.Factors,
		ModelType:     string(res.ModelType),
		ModelVersion:  res.ModelVersion,
		Batch:         batch,
		Latency:       latency,
		Time:          h.Now().UTC(),
	}
	if req.ScheduledTime != nil && req.ScheduledTime.IsString {
		ev.ScheduledTime = req.ScheduledTime.Value
	}
	if err != nil {
		ev.Error = err.Error()
	}
	h.Bus.Publish(ev)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
