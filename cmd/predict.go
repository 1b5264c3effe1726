package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartrail/auth"
	"github.com/kilianp07/smartrail/core/features"
	"github.com/kilianp07/smartrail/pkg/client"
)

var predictOpts struct {
	url       string
	apiKey    string
	train     string
	station   string
	scheduled string
	rainfall  float64
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Ask a running service for an arrival prediction",
	RunE:  runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictOpts.url, "url", "", "service base URL (default client.url or http://localhost:5000)")
	f.StringVar(&predictOpts.apiKey, "api-key", "", "bearer API key (default client.api_key)")
	f.StringVar(&predictOpts.train, "train", "", "train identifier")
	f.StringVar(&predictOpts.station, "station", "", "station identifier")
	f.StringVar(&predictOpts.scheduled, "scheduled", "", "scheduled arrival as HH:MM:SS")
	f.Float64Var(&predictOpts.rainfall, "rainfall", -1, "rainfall in mm/h")
	_ = predictCmd.MarkFlagRequired("train")
	_ = predictCmd.MarkFlagRequired("station")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url := predictOpts.url
	if url == "" {
		url = cfg.Client.URL
	}
	if url == "" {
		url = "http://localhost:5000"
	}
	opts := []client.Option{}
	key := predictOpts.apiKey
	if key == "" {
		key = cfg.Client.APIKey
	}
	switch {
	case key != "":
		opts = append(opts, client.WithAuth(auth.StaticKey(key)))
	case cfg.Client.OAuth.Enabled():
		opts = append(opts, client.WithAuth(auth.NewClientCred(cfg.Client.OAuth)))
	}

	req := features.Request{
		TrainID:   features.ID(predictOpts.train),
		StationID: features.ID(predictOpts.station),
	}
	if predictOpts.scheduled != "" {
		req.ScheduledTime = features.Clock(predictOpts.scheduled)
	}
	if predictOpts.rainfall >= 0 {
		req.WeatherData = &features.WeatherInput{Rainfall: features.Num(predictOpts.rainfall)}
	}

	timeout := client.DefaultTimeout
	if cfg.Client.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Client.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	res, err := client.New(url, opts...).Predict(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
