// Package api exposes the prediction service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kilianp07/smartrail/auth"
	"github.com/kilianp07/smartrail/core/dataset"
	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/events"
	"github.com/kilianp07/smartrail/core/features"
	"github.com/kilianp07/smartrail/core/logger"
	coremetrics "github.com/kilianp07/smartrail/core/metrics"
	"github.com/kilianp07/smartrail/core/prediction"
	"github.com/kilianp07/smartrail/core/predictionlog"
	"github.com/kilianp07/smartrail/internal/eventbus"
)

// ServiceName is reported by the health probe.
const ServiceName = "SmartRail ML Service"

// Predictor is the model surface used by the handlers. *prediction.Model
// implements it.
type Predictor interface {
	Loaded() bool
	Predict(v features.Vector) (prediction.Result, error)
	Retrain(ctx context.Context, kind estimator.Kind, recentOnly bool) (prediction.TrainResult, error)
	Info() prediction.Info
	Metrics() (prediction.TrainingMetrics, prediction.Metadata, error)
}

// Extractor turns request payloads into feature vectors. *features.Engineer
// implements it.
type Extractor interface {
	Extract(r features.Request) features.Vector
	ExtractJSON(b []byte) features.Vector
}

// Deps are the collaborators of the handlers. Model and Features are
// required; the rest may be nil.
type Deps struct {
	Model    Predictor
	Features Extractor
	Stats    dataset.StatsProvider
	History  predictionlog.Store
	Bus      *eventbus.TypedBus[events.Event]
	HTTP     coremetrics.HTTPRecorder
	Log      logger.Logger
	Now      func() time.Time
}

// Options tune the middleware stack.
type Options struct {
	CORSOrigins  []string
	APIKeys      []string
	RateLimit    float64
	RateBurst    int
	MaxBodyBytes int64
}

type handler struct {
	Deps
}

// NewRouter builds the HTTP handler serving every endpoint.
func NewRouter(d Deps, o Options) http.Handler {
	if d.Log == nil {
		d.Log = logger.NopLogger{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.HTTP == nil {
		d.HTTP = coremetrics.NopSink{}
	}
	h := &handler{Deps: d}
	keys := auth.NewKeys(o.APIKeys)

	origins := o.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(instrument(d.HTTP, d.Log))
	r.Use(recoverer(d.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(rateLimit(o.RateLimit, o.RateBurst))
	r.Use(limitBody(o.MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	})

	r.Get("/health", h.health)
	r.Post("/predict", h.predict)
	r.Post("/batch_predict", h.batchPredict)
	r.Post("/features", h.features)
	r.Get("/model/info", h.modelInfo)
	r.Get("/model/metrics", h.modelMetrics)
	r.Get("/data/stats", h.dataStats)
	r.Group(func(r chi.Router) {
		r.Use(requireKey(keys))
		r.Post("/retrain", h.retrain)
		r.Get("/predictions/history", h.history)
	})
	return r
}

type healthResponse struct {
	Status      string    `json:"status"`
	Service     string    `json:"service"`
	Timestamp   time.Time `json:"timestamp"`
	ModelLoaded bool      `json:"model_loaded"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Service:     ServiceName,
		Timestamp:   h.Now().UTC(),
		ModelLoaded: h.Model.Loaded(),
	})
}
