package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/smartrail/core/dataset"
	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/logger"
	"github.com/kilianp07/smartrail/core/monitoring"
	"github.com/kilianp07/smartrail/core/prediction"
)

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	ID string
	Fn func(ctx context.Context) error
}

// Name implements Job.
func (j JobFunc) Name() string { return j.ID }

// Run implements Job.
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Scheduler runs its jobs sequentially on every tick.
type Scheduler struct {
	interval time.Duration
	jobs     []Job
	log      logger.Logger
}

// New returns a scheduler. A non-positive interval disables it.
func New(interval time.Duration, log logger.Logger, jobs ...Job) *Scheduler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Scheduler{interval: interval, jobs: jobs, log: log}
}

// Enabled reports whether Start will run anything.
func (s *Scheduler) Enabled() bool { return s.interval > 0 && len(s.jobs) > 0 }

// Start blocks, running all jobs every interval until ctx is done. The first
// run happens one interval after Start.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Infof("scheduler started: %d jobs every %s", len(s.jobs), s.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job and returns the joined errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, j := range s.jobs {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		if err := j.Run(ctx); err != nil {
			s.log.Errorf("job %s failed: %v", j.Name(), err)
			monitoring.CaptureException(err, map[string]string{"module": "scheduler", "job": j.Name()})
			errs = append(errs, fmt.Errorf("%s: %w", j.Name(), err))
			continue
		}
		s.log.Debugf("job %s done in %s", j.Name(), time.Since(start))
	}
	return errors.Join(errs...)
}

// Retrainer is implemented by *prediction.Model.
type Retrainer interface {
	Retrain(ctx context.Context, kind estimator.Kind, recentOnly bool) (prediction.TrainResult, error)
}

// RetrainJob retrains the model. A retrain already in flight is not an error.
type RetrainJob struct {
	Model      Retrainer
	Kind       estimator.Kind
	RecentOnly bool
	Log        logger.Logger
}

// Name implements Job.
func (RetrainJob) Name() string { return "retrain" }

// Run implements Job.
func (j RetrainJob) Run(ctx context.Context) error {
	res, err := j.Model.Retrain(ctx, j.Kind, j.RecentOnly)
	if errors.Is(err, prediction.ErrRetrainInProgress) {
		if j.Log != nil {
			j.Log.Infof("scheduled retrain skipped: another retrain is running")
		}
		return nil
	}
	if err != nil && !errors.Is(err, prediction.ErrPersist) {
		return err
	}
	if j.Log != nil {
		j.Log.Infof("scheduled retrain: %s %s on %d %s samples, mae %.3f",
			res.ModelType, res.Version, res.Samples, res.Source, res.Metrics.MAE)
	}
	return err
}

// DirectoryJob reloads the train and station reference table.
type DirectoryJob struct {
	Directory *dataset.Directory
	Source    dataset.DirectorySource
}

// Name implements Job.
func (DirectoryJob) Name() string { return "directory_refresh" }

// Run implements Job.
func (j DirectoryJob) Run(ctx context.Context) error {
	return j.Directory.Refresh(ctx, j.Source)
}
