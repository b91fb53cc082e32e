package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"FinCast/internal/domain/models"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/services/ensemble"
	"FinCast/internal/services/forecasters"
	"FinCast/pkg/config"
	"FinCast/pkg/util"
)

type forecastOutput struct {
	Training *models.TrainingResult `json:"training"`
	Forecast *models.ForecastResult `json:"forecast"`
}

func forecastCMD() *cobra.Command {
	var (
		cfgPath string
		file    string
		key     string
		horizon int
	)
	var forecast = &cobra.Command{
		Use:   "forecast",
		Short: "Train an ensemble on a CSV series (timestamp,value) and print the forecast as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				var err error
				if cfg, err = config.Load(cfgPath); err != nil {
					return err
				}
			}
			if horizon <= 0 {
				horizon = cfg.Forecast.DefaultHorizon
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open series: %w", err)
				}
				defer f.Close()
				in = f
			}
			data, err := readSeries(in)
			if err != nil {
				return err
			}

			out, err := runForecast(cmd.Context(), cfg, key, data, horizon)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	forecast.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (defaults apply when empty)")
	forecast.Flags().StringVarP(&file, "file", "f", "-", "CSV file with timestamp,value rows; - reads stdin")
	forecast.Flags().StringVar(&key, "key", "cli", "series key reported in the result")
	forecast.Flags().IntVar(&horizon, "horizon", 0, "number of steps to forecast")

	return forecast
}

func runForecast(ctx context.Context, cfg *config.Config, key string, data models.TimeSeriesData, horizon int) (*forecastOutput, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	e := cfg.Ensemble
	factory := forecasters.NewFactory(forecasters.Settings{
		Models:         e.Models,
		SESAlpha:       e.SESAlpha,
		HoltAlpha:      e.HoltAlpha,
		HoltBeta:       e.HoltBeta,
		SMAPeriod:      e.SMAPeriod,
		EMAPeriod:      e.EMAPeriod,
		RemoteURL:      e.Remote.URL,
		RemoteTimeout:  e.Remote.Timeout,
		RemoteAttempts: e.Remote.Attempts,
	}, ratelimit.New(e.Remote.RPS, e.Remote.Burst))

	ms, err := factory()
	if err != nil {
		return nil, err
	}
	reg, err := ensemble.NewRegistry(ms...)
	if err != nil {
		return nil, err
	}
	engine, err := ensemble.NewEngine(reg,
		ensemble.WithConfig(ensemble.Config{
			HoldoutFraction: e.HoldoutFraction,
			MinHoldoutSize:  e.MinHoldoutSize,
			Epsilon:         e.Epsilon,
			ModelTimeout:    e.ModelTimeout,
		}),
		ensemble.WithKey(key),
	)
	if err != nil {
		return nil, err
	}

	tr, err := engine.TrainEnsemble(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	res, err := engine.PredictEnsemble(ctx, data, horizon)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	res.Key = key
	return &forecastOutput{Training: tr, Forecast: res}, nil
}

// readSeries parses timestamp,value rows. A first row whose value is not a
// number is treated as a header.
func readSeries(r io.Reader) (models.TimeSeriesData, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var (
		stamps []string
		values []float64
	)
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.TimeSeriesData{}, fmt.Errorf("read csv: %w", err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			if row == 0 {
				continue
			}
			return models.TimeSeriesData{}, fmt.Errorf("row %d: invalid value %q", row+1, rec[1])
		}
		stamps = append(stamps, strings.TrimSpace(rec[0]))
		values = append(values, v)
	}

	ts, err := util.ParseTimes(stamps)
	if err != nil {
		return models.TimeSeriesData{}, err
	}
	return models.NewTimeSeries(ts, values, map[string]any{"source": "csv"})
}
