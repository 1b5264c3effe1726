// Package app wires the configuration into a running prediction service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/smartrail/api"
	"github.com/kilianp07/smartrail/config"
	"github.com/kilianp07/smartrail/core/dataset"
	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/events"
	"github.com/kilianp07/smartrail/core/features"
	coremetrics "github.com/kilianp07/smartrail/core/metrics"
	"github.com/kilianp07/smartrail/core/monitoring"
	"github.com/kilianp07/smartrail/core/prediction"
	"github.com/kilianp07/smartrail/core/predictionlog"
	"github.com/kilianp07/smartrail/core/scheduler"
	"github.com/kilianp07/smartrail/infra/artifact"
	"github.com/kilianp07/smartrail/infra/logger"
	"github.com/kilianp07/smartrail/infra/metrics"
	inframon "github.com/kilianp07/smartrail/infra/monitoring"
	"github.com/kilianp07/smartrail/infra/publish"
	"github.com/kilianp07/smartrail/infra/store"
	"github.com/kilianp07/smartrail/internal/eventbus"
)

// Service owns every long lived component of the prediction service.
type Service struct {
	Model     *prediction.Model
	Engineer  *features.Engineer
	Directory *dataset.Directory

	cfg        *config.Config
	log        logger.Logger
	db         *store.Postgres
	history    predictionlog.Store
	bus        *eventbus.TypedBus[events.Event]
	sink       coremetrics.MetricsSink
	publishers []publish.Publisher
	closers    []func()
	handler    http.Handler
}

// Components are the building blocks shared by the serve and train commands.
type Components struct {
	Model     *prediction.Model
	Engineer  *features.Engineer
	Directory *dataset.Directory
	Pipeline  *dataset.Pipeline
	DB        *store.Postgres
	Sink      coremetrics.MetricsSink
	Bus       *eventbus.TypedBus[events.Event]
}

// Build initialises monitoring, metrics, the database and the model without
// loading or training it. A database that cannot be reached is logged and
// the components run on synthetic data.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Components, error) {
	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, err
	}
	c := &Components{
		Sink:      sink,
		Bus:       eventbus.NewTyped[events.Event](),
		Directory: dataset.NewDirectory(nil, nil),
	}

	if cfg.Database.Enabled() {
		c.DB = connect(ctx, cfg.Database, log)
	}
	if c.DB != nil {
		if err := c.Directory.Refresh(ctx, c.DB); err != nil {
			log.Warnf("load train and station directory: %v", err)
		} else {
			st, tr := c.Directory.Size()
			log.Infof("directory loaded: %d stations, %d trains", st, tr)
		}
	}

	engOpts := []features.Option{features.WithDirectory(c.Directory), features.WithLogger(logger.New("features"))}
	if rec, ok := sink.(coremetrics.ExtractionRecorder); ok {
		engOpts = append(engOpts, features.WithRecorder(rec))
	}
	c.Engineer = features.NewEngineer(engOpts...)

	modelOpts := []prediction.Option{
		prediction.WithStore(artifact.NewFileStore(cfg.Model.Dir)),
		prediction.WithRecorder(&modelRecorder{sink: sink, bus: c.Bus}),
		prediction.WithLogger(logger.New("model")),
	}
	if c.DB != nil {
		c.Pipeline = &dataset.Pipeline{
			Loader:    c.DB,
			Processor: dataset.NewProcessor(logger.New("dataset")),
			Engineer:  c.Engineer,
			Log:       logger.New("dataset"),
		}
		modelOpts = append(modelOpts, prediction.WithSource(c.Pipeline))
	}
	c.Model = prediction.New(cfg.Model.Prediction(), modelOpts...)
	return c, nil
}

func connect(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) *store.Postgres {
	cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()
	db, err := store.Open(cctx, cfg.DSN)
	if err != nil {
		log.Errorf("database unavailable, continuing without it: %v", err)
		monitoring.CaptureException(err, map[string]string{"module": "store"})
		return nil
	}
	if cfg.Migrate {
		if err := db.Migrate(cctx); err != nil {
			log.Errorf("migrate database: %v", err)
		}
	}
	return db
}

// New builds the service and makes sure a model is live.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	log := logger.New("service")
	c, err := Build(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	s := &Service{
		Model:     c.Model,
		Engineer:  c.Engineer,
		Directory: c.Directory,
		cfg:       cfg,
		log:       log,
		db:        c.DB,
		bus:       c.Bus,
		sink:      c.Sink,
	}
	if c.DB != nil {
		s.closers = append(s.closers, c.DB.Close)
	}
	if err := s.Model.Bootstrap(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("bootstrap model: %w", err)
	}
	if err := s.openHistory(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openPublishers(ctx); err != nil {
		s.Close()
		return nil, err
	}

	deps := api.Deps{
		Model:    s.Model,
		Features: s.Engineer,
		History:  s.history,
		Bus:      s.bus,
		Log:      logger.New("api"),
	}
	if s.db != nil {
		deps.Stats = s.db
	}
	if rec, ok := s.sink.(coremetrics.HTTPRecorder); ok {
		deps.HTTP = rec
	}
	s.handler = api.NewRouter(deps, api.Options{
		CORSOrigins:  cfg.Server.CORSOrigins,
		APIKeys:      cfg.Server.APIKeys,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	return s, nil
}

func (s *Service) openHistory() error {
	if !s.cfg.PredictionLog.Enabled {
		return nil
	}
	h, err := predictionlog.Open(s.cfg.PredictionLog.Module())
	if err != nil {
		return fmt.Errorf("prediction log: %w", err)
	}
	s.history = h
	s.closers = append(s.closers, func() {
		if err := h.Close(); err != nil {
			s.log.Warnf("close prediction log: %v", err)
		}
	})
	return nil
}

// openPublishers connects the optional Redis, MQTT and Postgres outputs.
func (s *Service) openPublishers(ctx context.Context) error {
	if s.cfg.Redis.URL != "" {
		r, err := publish.NewRedisPublisher(ctx, s.cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		s.publishers = append(s.publishers, r)
		s.closers = append(s.closers, func() { _ = r.Close() })
	}
	if s.cfg.MQTT.Broker != "" {
		m, err := publish.NewMQTTPublisher(s.cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		s.publishers = append(s.publishers, m)
		s.closers = append(s.closers, m.Disconnect)
	}
	if s.db != nil && s.cfg.Database.RecordPredictions {
		s.publishers = append(s.publishers, publish.Func{ID: "postgres", Fn: s.db.SavePrediction})
	}
	return nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler { return s.handler }

// Run serves HTTP and runs the background workers until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := []<-chan struct{}{
		metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics")),
		publish.Start(ctx, s.bus, s.publishers, publish.DefaultTimeout, logger.New("publish")),
		watchModels(ctx, s.bus, s.log),
	}
	if s.history != nil {
		done = append(done, predictionlog.StartRecorder(ctx, s.bus, s.history, logger.New("prediction-log")))
	}

	for _, sch := range s.schedulers() {
		monitoring.Go(func() {
			if err := sch.Start(ctx); err != nil {
				s.log.Errorf("scheduler: %v", err)
			}
		})
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		monitoring.Go(func() {
			if err := metrics.StartPromServer(ctx, addr, nil, logger.New("prometheus")); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		})
	}

	err := api.Serve(ctx, api.ServerConfig{
		Address:         s.cfg.Server.Address,
		ReadTimeout:     s.cfg.Server.ReadTimeout(),
		WriteTimeout:    s.cfg.Server.WriteTimeout(),
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout(),
	}, s.handler, logger.New("http"), nil)
	cancel()
	for _, d := range done {
		<-d
	}
	return err
}

func (s *Service) schedulers() []*scheduler.Scheduler {
	var out []*scheduler.Scheduler
	retrain := scheduler.New(s.cfg.Model.RetrainInterval, logger.New("scheduler"), scheduler.RetrainJob{
		Model:      s.Model,
		Kind:       estimator.Kind(s.cfg.Model.DefaultKind),
		RecentOnly: s.cfg.Model.RetrainRecentOnly,
		Log:        logger.New("scheduler"),
	})
	if retrain.Enabled() {
		out = append(out, retrain)
	}
	if s.db != nil {
		dir := scheduler.New(s.cfg.Database.DirectoryRefresh, logger.New("scheduler"), scheduler.DirectoryJob{
			Directory: s.Directory,
			Source:    s.db,
		})
		if dir.Enabled() {
			out = append(out, dir)
		}
	}
	return out
}

// Close releases every connection in reverse order of creation.
func (s *Service) Close() error {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if st := s.bus.Stats(); st.Dropped > 0 {
		s.log.Warnf("event bus dropped %d deliveries over %d events", st.Dropped, st.Published)
	}
	s.bus.Close()
	monitoring.Flush(2 * time.Second)
	return nil
}
