package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartrail/app"
	"github.com/kilianp07/smartrail/config"
	"github.com/kilianp07/smartrail/core/estimator"
	"github.com/kilianp07/smartrail/core/prediction"
	"github.com/kilianp07/smartrail/infra/logger"
	"github.com/kilianp07/smartrail/pkg/export"
)

var trainOpts struct {
	days      int
	kinds     []string
	synthetic int
	report    string
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Compare model kinds on historical data and save the best one",
	RunE:  runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.IntVar(&trainOpts.days, "days", 0, "days of history to train on (default model.window_days)")
	f.StringSliceVar(&trainOpts.kinds, "kinds", []string{
		string(estimator.RandomForest), string(estimator.GradientBoosting), string(estimator.LinearRegression),
	}, "model kinds to compare")
	f.IntVar(&trainOpts.synthetic, "synthetic", 0, "synthetic samples when history is unavailable (default model.synthetic_samples)")
	f.StringVar(&trainOpts.report, "report", "", "write the comparison to a .csv or .json file")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var format export.Format
	if trainOpts.report != "" {
		if format, err = export.FormatFromPath(trainOpts.report); err != nil {
			return err
		}
	}
	log := logger.New("train")
	c, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	if c.DB != nil {
		defer c.DB.Close()
	}

	x, y, source := trainingData(ctx, cfg, c, log)
	log.Infof("training on %d %s samples", len(y), source)

	kinds := make([]estimator.Kind, len(trainOpts.kinds))
	for i, k := range trainOpts.kinds {
		kinds[i] = estimator.Kind(k)
	}
	cmp, err := c.Model.CompareAndTrain(ctx, x, y, kinds, source)
	if cmp.Best != "" || len(cmp.Candidates) > 0 {
		printComparison(cmd.OutOrStdout(), cmp)
		if trainOpts.report != "" {
			if rerr := writeReport(trainOpts.report, format, cmp); rerr != nil {
				return errors.Join(err, rerr)
			}
		}
	}
	return err
}

// trainingData loads the configured window and falls back to synthetic rows
// when the database is missing or too sparse.
func trainingData(ctx context.Context, cfg *config.Config, c *app.Components, log logger.Logger) ([][]float64, []float64, string) {
	days := trainOpts.days
	if days <= 0 {
		days = cfg.Model.WindowDays
	}
	if c.Pipeline != nil {
		x, y, err := c.Pipeline.TrainingSet(ctx, days)
		switch {
		case err != nil:
			log.Warnf("no usable history over %d days: %v", days, err)
		case len(y) < estimator.MinSamples:
			log.Warnf("only %d rows of history over %d days", len(y), days)
		default:
			return x, y, prediction.SourceDatabase
		}
	}
	n := trainOpts.synthetic
	if n <= 0 {
		n = cfg.Model.SyntheticSamples
	}
	x, y := prediction.Synthesize(n, cfg.Model.Seed)
	return x, y, prediction.SourceSynthetic
}

func printComparison(w io.Writer, cmp prediction.Comparison) {
	for _, c := range cmp.Candidates {
		if c.Error != "" {
			fmt.Fprintf(w, "%-18s error: %s\n", c.Kind, c.Error)
			continue
		}
		m := c.Metrics
		fmt.Fprintf(w, "%-18s mae=%.3f rmse=%.3f r2=%.3f cv_mae=%.3f±%.3f within5=%.1f%%\n",
			c.Kind, m.MAE, m.RMSE, m.R2, m.CVMAE, m.CVStd, 100*m.AccuracyWithin5)
	}
	if cmp.Best != "" {
		fmt.Fprintf(w, "best: %s, saved as version %s\n", cmp.Best, cmp.Final.Version)
	}
}

func writeReport(path string, f export.Format, cmp prediction.Comparison) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := export.WriteComparison(out, f, cmp); err != nil {
		_ = out.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return out.Close()
}
