package prediction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/features"
	"github.com/kilianp07/smartrail/core/logger"
	"github.com/kilianp07/smartrail/core/metrics"
	"github.com/kilianp07/smartrail/core/monitoring"
)

var (
	// ErrNotLoaded is returned by Predict before any snapshot is live.
	ErrNotLoaded = errors.New("model not loaded")
	// ErrRetrainInProgress is returned when a retrain is already running.
	ErrRetrainInProgress = errors.New("retrain already in progress")
	// ErrPersist wraps artifact store failures after a successful fit.
	ErrPersist = errors.New("persist model")
)

// Config holds the training parameters of a Model.
type Config struct {
	DefaultKind      estimator.Kind
	Hyperparams      map[estimator.Kind]map[string]any
	TestSize         float64
	Seed             uint64
	CVFolds          int
	WindowDays       int
	RecentDays       int
	SyntheticSamples int
	BootstrapSamples int
}

// DefaultConfig mirrors the reference training setup: random forest, 20%
// hold-out, seed 42 and 5-fold cross validation.
func DefaultConfig() Config {
	return Config{
		DefaultKind:      estimator.RandomForest,
		TestSize:         0.2,
		Seed:             42,
		CVFolds:          5,
		WindowDays:       90,
		RecentDays:       30,
		SyntheticSamples: 2000,
		BootstrapSamples: 1000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultKind == "" {
		c.DefaultKind = d.DefaultKind
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		c.TestSize = d.TestSize
	}
	if c.CVFolds < 2 {
		c.CVFolds = d.CVFolds
	}
	if c.WindowDays <= 0 {
		c.WindowDays = d.WindowDays
	}
	if c.RecentDays <= 0 {
		c.RecentDays = d.RecentDays
	}
	if c.SyntheticSamples <= 0 {
		c.SyntheticSamples = d.SyntheticSamples
	}
	if c.BootstrapSamples <= 0 {
		c.BootstrapSamples = d.BootstrapSamples
	}
	return c
}

// Source names used in training events and metadata.
const (
	SourceDatabase  = "database"
	SourceSynthetic = "synthetic"
	SourceManual    = "manual"
)

// Model serves predictions from the live snapshot and builds new ones.
type Model struct {
	cfg      Config
	current  atomic.Pointer[Snapshot]
	trainMu  sync.Mutex
	flight   sync.Mutex
	store    ArtifactStore
	source   TrainingSource
	recorder metrics.TrainingRecorder
	log      logger.Logger
	now      func() time.Time
}

// Option configures a Model.
type Option func(*Model)

// WithStore persists every trained snapshot and enables Load.
func WithStore(s ArtifactStore) Option { return func(m *Model) { m.store = s } }

// WithSource sets where Retrain reads historical training data.
func WithSource(s TrainingSource) Option { return func(m *Model) { m.source = s } }

// WithRecorder reports training runs. Recorders that also implement
// metrics.ModelStateRecorder are told about every snapshot swap.
func WithRecorder(r metrics.TrainingRecorder) Option { return func(m *Model) { m.recorder = r } }

// WithLogger sets the model logger.
func WithLogger(l logger.Logger) Option { return func(m *Model) { m.log = l } }

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option { return func(m *Model) { m.now = now } }

// New returns an unloaded model.
func New(cfg Config, opts ...Option) *Model {
	m := &Model{cfg: cfg.withDefaults(), recorder: metrics.NopSink{}, log: logger.NopLogger{}, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Config returns the effective configuration.
func (m *Model) Config() Config { return m.cfg }

// Current returns the live snapshot or nil.
func (m *Model) Current() *Snapshot { return m.current.Load() }

// Loaded reports whether a trained snapshot is live.
func (m *Model) Loaded() bool { return m.current.Load() != nil }

// TrainResult summarises a successful training run.
type TrainResult struct {
	ModelType estimator.Kind  `json:"model_type"`
	Version   string          `json:"version"`
	Source    string          `json:"source"`
	Samples   int             `json:"samples"`
	Metrics   TrainingMetrics `json:"training_metrics"`
	Duration  time.Duration   `json:"duration"`
	TrainedAt time.Time       `json:"trained_at"`
}

// Train fits a new snapshot of the given kind on x and y and publishes it.
// Unknown kinds fall back to linear regression. A failed fit leaves the
// previous snapshot live.
func (m *Model) Train(ctx context.Context, x [][]float64, y []float64, kind estimator.Kind) (TrainResult, error) {
	return m.train(ctx, x, y, kind, SourceManual)
}

func (m *Model) train(ctx context.Context, x [][]float64, y []float64, kind estimator.Kind, source string) (TrainResult, error) {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	start := m.now()
	kind = m.resolveKind(kind)
	snap, err := m.fit(ctx, x, y, kind)
	if err != nil {
		m.reportTraining(kind, "", source, len(y), TrainingMetrics{}, start, err)
		return TrainResult{}, err
	}

	prev := m.current.Load()
	if prev != nil {
		snap.Meta.Generation = prev.Meta.Generation + 1
	}
	snap.Meta.Version = Version(snap.Meta.Generation)
	snap.Meta.Source = source
	snap.Meta.TrainedAt = m.now().UTC()
	m.publish(snap)

	res := TrainResult{
		ModelType: kind,
		Version:   snap.Meta.Version,
		Source:    source,
		Samples:   len(y),
		Metrics:   snap.Meta.Metrics,
		Duration:  m.now().Sub(start),
		TrainedAt: snap.Meta.TrainedAt,
	}
	m.log.Infof("trained %s model %s on %d %s samples: mae=%.3f rmse=%.3f r2=%.3f cv_mae=%.3f",
		kind, res.Version, res.Samples, source, res.Metrics.MAE, res.Metrics.RMSE, res.Metrics.R2, res.Metrics.CVMAE)

	if m.store != nil {
		if err := m.store.Save(ctx, snap); err != nil {
			err = fmt.Errorf("%w %s: %w", ErrPersist, res.Version, err)
			m.reportTraining(kind, res.Version, source, len(y), snap.Meta.Metrics, start, err)
			return res, err
		}
	}
	m.reportTraining(kind, res.Version, source, len(y), snap.Meta.Metrics, start, nil)
	return res, nil
}

func (m *Model) resolveKind(kind estimator.Kind) estimator.Kind {
	if kind == "" {
		return m.cfg.DefaultKind
	}
	if !estimator.Known(kind) {
		m.log.Warnf("unknown model type %q, using %s", kind, estimator.LinearRegression)
		return estimator.LinearRegression
	}
	return kind
}

// fit runs split, scaling, fitting, evaluation and cross validation without
// publishing anything.
func (m *Model) fit(ctx context.Context, x [][]float64, y []float64, kind estimator.Kind) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(x) < estimator.MinSamples {
		return nil, fmt.Errorf("train %s: %w: %d samples, need %d", kind, estimator.ErrInsufficientData, len(x), estimator.MinSamples)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("train %s: %w: %d rows but %d targets", kind, estimator.ErrDegenerate, len(x), len(y))
	}
	X, err := estimator.Matrix(x)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", kind, err)
	}
	if _, c := X.Dims(); c != features.Dim {
		return nil, fmt.Errorf("train %s: %w: %d features, want %d", kind, estimator.ErrDegenerate, c, features.Dim)
	}

	split, err := estimator.TrainTestSplit(X, y, m.cfg.TestSize, m.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", kind, err)
	}
	scaler := &estimator.StandardScaler{}
	xTrain := scaler.FitTransform(split.XTrain)
	xTest := scaler.Transform(split.XTest)

	build := func() (estimator.Regressor, error) { return estimator.New(kind, m.cfg.Hyperparams[kind]) }
	reg, err := build()
	if err != nil {
		return nil, err
	}
	if err := reg.Fit(xTrain, split.YTrain); err != nil {
		return nil, fmt.Errorf("fit %s: %w", kind, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tm := TrainingMetrics{
		Scores:       estimator.Evaluate(split.YTest, estimator.PredictAll(reg, xTest)),
		TrainSamples: len(split.YTrain),
		TestSamples:  len(split.YTest),
	}
	cv, err := estimator.CrossValidateMAE(build, xTrain, split.YTrain, m.cfg.CVFolds)
	switch {
	case err == nil:
		tm.CVMAE, tm.CVStd = cv.MeanMAE, cv.StdMAE
	case errors.Is(err, estimator.ErrInsufficientData):
		m.log.Warnf("skipping cross validation: %v", err)
	default:
		return nil, fmt.Errorf("cross validate %s: %w", kind, err)
	}

	return &Snapshot{
		Estimator: reg,
		Scaler:    scaler,
		Meta: Metadata{
			ModelType:    kind,
			FeatureNames: features.Names(),
			IsTrained:    true,
			Metrics:      tm,
		},
	}, nil
}

func (m *Model) publish(s *Snapshot) {
	m.current.Store(s)
	if st, ok := m.recorder.(metrics.ModelStateRecorder); ok {
		if err := st.RecordModelLoaded(string(s.Meta.ModelType), s.Meta.Version, true); err != nil {
			m.log.Warnf("record model state: %v", err)
		}
	}
}

func (m *Model) reportTraining(kind estimator.Kind, version, source string, samples int, tm TrainingMetrics, start time.Time, err error) {
	ev := metrics.TrainingEvent{
		ModelType: string(kind),
		Version:   version,
		Source:    source,
		Samples:   samples,
		MAE:       tm.MAE,
		RMSE:      tm.RMSE,
		R2:        tm.R2,
		CVMAE:     tm.CVMAE,
		Duration:  m.now().Sub(start),
		Success:   err == nil,
		Time:      m.now(),
	}
	if err != nil {
		ev.Error = err.Error()
		m.log.Errorf("training %s failed: %v", kind, err)
		monitoring.CaptureException(err, map[string]string{"component": "training", "model_type": string(kind), "source": source})
	}
	if rerr := m.recorder.RecordTraining(ev); rerr != nil {
		m.log.Warnf("record training: %v", rerr)
	}
}

// Load replaces the live snapshot with the stored artifact. The artifact
// must match the current feature layout.
func (m *Model) Load(ctx context.Context) error {
	if m.store == nil {
		return ErrNoArtifact
	}
	s, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}
	if s.Meta.Generation == 0 {
		s.Meta.Generation = parseGeneration(s.Meta.Version)
	}
	m.trainMu.Lock()
	m.publish(s)
	m.trainMu.Unlock()
	m.log.Infof("loaded %s model %s trained at %s", s.Meta.ModelType, s.Meta.Version, s.Meta.TrainedAt.Format(time.RFC3339))
	return nil
}

// Bootstrap loads the stored artifact and falls back to training the default
// kind on synthetic data so the service always starts with a model.
func (m *Model) Bootstrap(ctx context.Context) error {
	err := m.Load(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoArtifact) {
		m.log.Infof("no saved model, training on %d synthetic samples", m.cfg.BootstrapSamples)
	} else {
		m.log.Warnf("could not load saved model, training on synthetic data: %v", err)
	}
	x, y := Synthesize(m.cfg.BootstrapSamples, m.cfg.Seed)
	if _, err := m.train(ctx, x, y, m.cfg.DefaultKind, SourceSynthetic); err != nil && !m.Loaded() {
		return err
	}
	return nil
}

// Result is the outcome of a single prediction.
type Result struct {
	PredictedTime    string
	PredictedMinutes float64
	DelayMinutes     float64
	Confidence       float64
	Factors          []string
	ModelType        estimator.Kind
	ModelVersion     string
}

// Predict estimates the arrival for v with the live snapshot. The delay is
// clamped at zero and added to the scheduled time.
func (m *Model) Predict(v features.Vector) (Result, error) {
	s := m.current.Load()
	if s == nil {
		return Result{}, ErrNotLoaded
	}
	row, err := s.Scaler.TransformRow(v.Slice())
	if err != nil {
		return Result{}, fmt.Errorf("scale features: %w", err)
	}
	d := s.Estimator.Predict(row)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return Result{}, fmt.Errorf("%s model %s produced %v", s.Meta.ModelType, s.Meta.Version, d)
	}
	delay := math.Max(0, d)
	pm := v[features.ScheduledTimeMinutes] + delay
	return Result{
		PredictedTime:    FormatClock(pm),
		PredictedMinutes: pm,
		DelayMinutes:     delay,
		Confidence:       Confidence(v),
		Factors:          Factors(v, delay),
		ModelType:        s.Meta.ModelType,
		ModelVersion:     s.Meta.Version,
	}, nil
}

// FormatClock renders minutes since midnight as HH:MM:00, wrapping at 24
// hours. Fractional minutes are truncated.
func FormatClock(minutes float64) string {
	h := math.Mod(math.Floor(minutes/60), 24)
	if h < 0 {
		h += 24
	}
	mm := math.Mod(minutes, 60)
	if mm < 0 {
		mm += 60
	}
	return fmt.Sprintf("%02d:%02d:00", int(h), int(mm))
}

// Info describes the live model.
type Info struct {
	ModelType    estimator.Kind `json:"model_type"`
	Version      string         `json:"version"`
	IsTrained    bool           `json:"is_trained"`
	FeatureCount int            `json:"feature_count"`
	FeatureNames []string       `json:"feature_names"`
	TrainedAt    *time.Time     `json:"trained_at,omitempty"`
	Source       string         `json:"source,omitempty"`
}

// Info returns the metadata of the live snapshot. Before the first load it
// reports the configured default kind as untrained.
func (m *Model) Info() Info {
	names := features.Names()
	s := m.current.Load()
	if s == nil {
		return Info{ModelType: m.cfg.DefaultKind, FeatureCount: len(names), FeatureNames: names}
	}
	at := s.Meta.TrainedAt
	return Info{
		ModelType:    s.Meta.ModelType,
		Version:      s.Meta.Version,
		IsTrained:    s.Meta.IsTrained,
		FeatureCount: len(names),
		FeatureNames: names,
		TrainedAt:    &at,
		Source:       s.Meta.Source,
	}
}

// Metrics returns the stored evaluation of the live snapshot.
func (m *Model) Metrics() (TrainingMetrics, Metadata, error) {
	s := m.current.Load()
	if s == nil {
		return TrainingMetrics{}, Metadata{}, ErrNotLoaded
	}
	return s.Meta.Metrics, s.Meta, nil
}
