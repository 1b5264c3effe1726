package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/monitoring"
	"github.com/kilianp07/smartrail/core/prediction"
)

type retrainRequest struct {
	ModelType         estimator.Kind `json:"model_type"`
	UseRecentDataOnly bool           `json:"use_recent_data_only"`
}

// RetrainResponse is the body of a successful POST /retrain. Warning is set
// when the model went live but could not be saved.
type RetrainResponse struct {
	Message         string                     `json:"message"`
	ModelType       estimator.Kind             `json:"model_type"`
	Version         string                     `json:"version"`
	Source          string                     `json:"source"`
	Samples         int                        `json:"samples"`
	TrainingMetrics prediction.TrainingMetrics `json:"training_metrics"`
	Warning         string                     `json:"warning,omitempty"`
	Timestamp       time.Time                  `json:"timestamp"`
}

// MetricsResponse is the body of GET /model/metrics.
type MetricsResponse struct {
	prediction.TrainingMetrics
	ModelType estimator.Kind `json:"model_type"`
	Version   string         `json:"version"`
	TrainedAt time.Time      `json:"trained_at"`
}

func (h *handler) retrain(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var in retrainRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &in); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	h.Log.Infof("retraining %q model (recent only: %t)", in.ModelType, in.UseRecentDataOnly)
	res, err := h.Model.Retrain(r.Context(), in.ModelType, in.UseRecentDataOnly)
	resp := RetrainResponse{
		Message:         "Model retrained successfully",
		ModelType:       res.ModelType,
		Version:         res.Version,
		Source:          res.Source,
		Samples:         res.Samples,
		TrainingMetrics: res.Metrics,
		Timestamp:       h.Now().UTC(),
	}
	switch {
	case err == nil:
	case errors.Is(err, prediction.ErrPersist):
		resp.Message = "Model retrained but not saved"
		resp.Warning = err.Error()
	case errors.Is(err, prediction.ErrRetrainInProgress):
		writeError(w, http.StatusConflict, "Retraining failed", err)
		return
	default:
		h.Log.Errorf("retraining error: %v", err)
		if r.Context().Err() == nil {
			monitoring.CaptureException(err, map[string]string{"module": "api", "model_type": string(in.ModelType)})
		}
		writeError(w, http.StatusInternalServerError, "Retraining failed", err)
		return
	}
	h.Log.Infof("model retrained: %s %s on %d %s samples", res.ModelType, res.Version, res.Samples, res.Source)
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) modelInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Model.Info())
}

func (h *handler) modelMetrics(w http.ResponseWriter, _ *http.Request) {
	m, meta, err := h.Model.Metrics()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, prediction.ErrNotLoaded) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "Failed to get model metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, MetricsResponse{
		TrainingMetrics: m,
		ModelType:       meta.ModelType,
		Version:         meta.Version,
		TrainedAt:       meta.TrainedAt,
	})
}
