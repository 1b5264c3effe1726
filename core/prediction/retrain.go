package prediction

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/monitoring"
)

// TrainingSource yields feature rows and delay targets for the last daysBack
// days of history. dataset.Pipeline implements it.
type TrainingSource interface {
	TrainingSet(ctx context.Context, daysBack int) ([][]float64, []float64, error)
}

// Retrain rebuilds the model of the given kind from the store: the recent
// window when recentOnly is set, else the full configured window. Synthetic
// data is used when the store is absent or yields too few rows. Only one
// retrain runs at a time; concurrent callers get ErrRetrainInProgress.
func (m *Model) Retrain(ctx context.Context, kind estimator.Kind, recentOnly bool) (TrainResult, error) {
	if !m.flight.TryLock() {
		return TrainResult{}, ErrRetrainInProgress
	}
	defer m.flight.Unlock()

	days := m.cfg.WindowDays
	if recentOnly {
		days = m.cfg.RecentDays
	}
	x, y, source := m.trainingData(ctx, days)
	return m.train(ctx, x, y, kind, source)
}

func (m *Model) trainingData(ctx context.Context, days int) ([][]float64, []float64, string) {
	if m.source != nil {
		x, y, err := m.source.TrainingSet(ctx, days)
		switch {
		case err != nil:
			m.log.Warnf("training data over %d days unavailable, using synthetic data: %v", days, err)
			if ctx.Err() == nil {
				monitoring.CaptureException(err, map[string]string{"component": "training_data"})
			}
		case len(x) < estimator.MinSamples:
			m.log.Warnf("only %d training rows over %d days, using synthetic data", len(x), days)
		default:
			return x, y, SourceDatabase
		}
	}
	x, y := Synthesize(m.cfg.SyntheticSamples, m.cfg.Seed)
	return x, y, SourceSynthetic
}

// Candidate is one kind evaluated by CompareAndTrain.
type Candidate struct {
	Kind    estimator.Kind  `json:"model_type"`
	Metrics TrainingMetrics `json:"metrics"`
	Error   string          `json:"error,omitempty"`
}

// Comparison is the outcome of CompareAndTrain.
type Comparison struct {
	Candidates []Candidate    `json:"candidates"`
	Best       estimator.Kind `json:"best_model"`
	Final      TrainResult    `json:"final"`
}

// CompareAndTrain fits every kind on the same data, picks the one with the
// lowest held-out MAE and publishes it as the live model. source names where
// x and y came from and defaults to SourceManual.
func (m *Model) CompareAndTrain(ctx context.Context, x [][]float64, y []float64, kinds []estimator.Kind, source string) (Comparison, error) {
	if !m.flight.TryLock() {
		return Comparison{}, ErrRetrainInProgress
	}
	defer m.flight.Unlock()

	if len(kinds) == 0 {
		kinds = []estimator.Kind{estimator.RandomForest, estimator.GradientBoosting, estimator.LinearRegression}
	}
	var cmp Comparison
	var errs []error
	for _, k := range kinds {
		if !estimator.Known(k) {
			err := fmt.Errorf("%w: %q", estimator.ErrUnknownKind, k)
			cmp.Candidates = append(cmp.Candidates, Candidate{Kind: k, Error: err.Error()})
			errs = append(errs, err)
			continue
		}
		snap, err := m.fit(ctx, x, y, k)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return cmp, ctxErr
			}
			cmp.Candidates = append(cmp.Candidates, Candidate{Kind: k, Error: err.Error()})
			errs = append(errs, err)
			continue
		}
		m.log.Infof("%s: mae=%.3f rmse=%.3f r2=%.3f", k, snap.Meta.Metrics.MAE, snap.Meta.Metrics.RMSE, snap.Meta.Metrics.R2)
		cmp.Candidates = append(cmp.Candidates, Candidate{Kind: k, Metrics: snap.Meta.Metrics})
	}

	ranked := make([]Candidate, 0, len(cmp.Candidates))
	for _, c := range cmp.Candidates {
		if c.Error == "" {
			ranked = append(ranked, c)
		}
	}
	if len(ranked) == 0 {
		return cmp, fmt.Errorf("no candidate model trained: %w", errors.Join(errs...))
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Metrics.MAE < ranked[j].Metrics.MAE })
	cmp.Best = ranked[0].Kind
	m.log.Infof("best model: %s (mae=%.3f)", cmp.Best, ranked[0].Metrics.MAE)

	if source == "" {
		source = SourceManual
	}
	res, err := m.train(ctx, x, y, cmp.Best, source)
	cmp.Final = res
	return cmp, err
}
