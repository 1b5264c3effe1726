package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartrail/auth"
	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/features"
)

func TestPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "101", in["train_id"])
		assert.Equal(t, "10:00:00", in["scheduled_time"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predicted_time":"10:05:00","confidence_score":0.8,"delay_minutes":5,"prediction_method":"ml_model","factors":["normal_conditions"],"model_version":"1.0.0"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithAuth(auth.StaticKey("k")))
	out, err := c.Predict(context.Background(), features.Request{
		TrainID:       "101",
		StationID:     "5",
		ScheduledTime: features.Clock("10:00:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "10:05:00", out.PredictedTime)
	assert.Equal(t, []string{"normal_conditions"}, out.Factors)
}

func TestErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Prediction failed","message":"model not loaded"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Predict(context.Background(), features.Request{TrainID: "1", StationID: "2"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "model not loaded", apiErr.Detail)
}

func TestPlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Health(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestRetrainAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/retrain":
			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "neural_network", in["model_type"])
			assert.Equal(t, true, in["use_recent_data_only"])
			_, _ = w.Write([]byte(`{"message":"Model retrained successfully","model_type":"neural_network","training_metrics":{"mae":3.1}}`))
		case "/health":
			_, _ = w.Write([]byte(`{"status":"healthy","model_loaded":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Retrain(context.Background(), estimator.NeuralNetwork, true)
	require.NoError(t, err)
	assert.Equal(t, estimator.NeuralNetwork, res.ModelType)
	assert.Equal(t, 3.1, res.TrainingMetrics.MAE)

	loaded, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded)
}
