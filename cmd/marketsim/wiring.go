package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/marketsim/pkg/alpaca"
	"github.com/vignesh-goutham/marketsim/pkg/backtest"
	"github.com/vignesh-goutham/marketsim/pkg/config"
	"github.com/vignesh-goutham/marketsim/pkg/dynamodb"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/metrics"
	"github.com/vignesh-goutham/marketsim/pkg/notification"
	"github.com/vignesh-goutham/marketsim/pkg/pricecache"
	"github.com/vignesh-goutham/marketsim/pkg/report"
)

// priceSource builds the configured price source. The returned func
// releases it.
func priceSource(ctx context.Context) (marketdata.PriceSource, func(), error) {
	var source marketdata.PriceSource
	switch cfg.Data.Source {
	case config.SourceAlpaca:
		ac := alpaca.DefaultConfig()
		ac.APIKey = cfg.Data.AlpacaAPIKey
		ac.APISecret = cfg.Data.AlpacaSecretKey
		ac.CalendarSymbol = cfg.Data.CalendarSymbol
		s, err := alpaca.NewSource(ac)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating alpaca client: %w", err)
		}
		source = s
	default:
		source = marketdata.NewCSVSource(cfg.Data.CSVDir, cfg.Data.CalendarSymbol)
	}

	if cfg.Data.CachePath == "" {
		return source, func() {}, nil
	}

	db, err := pricecache.OpenSQLite(cfg.Data.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening price cache: %w", err)
	}
	if err := pricecache.InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("error initializing price cache: %w", err)
	}
	cache := pricecache.New(db, source, sourceNamespace(), pricecache.WithTTL(cfg.Data.CacheTTL))
	return cache, func() { db.Close() }, nil
}

// sourceNamespace identifies the configured upstream for the price cache
func sourceNamespace() string {
	switch cfg.Data.Source {
	case config.SourceAlpaca:
		return fmt.Sprintf("%s:%s", config.SourceAlpaca, cfg.Data.CalendarSymbol)
	default:
		dir, err := filepath.Abs(cfg.Data.CSVDir)
		if err != nil {
			dir = cfg.Data.CSVDir
		}
		return fmt.Sprintf("%s:%s:%s", config.SourceCSV, dir, cfg.Data.CalendarSymbol)
	}
}

type outputOptions struct {
	printLedger bool
	chartPath   string
}

// runSimulation runs req, prints the results and statistics, then stores,
// announces and pushes the run as configured. The simulation error, if
// any, is returned after the partial results have been reported.
func runSimulation(ctx context.Context, w io.Writer, source marketdata.PriceSource, req backtest.Request, out outputOptions, recorder *metrics.Recorder) error {
	result, runErr := backtest.NewBacktester(source, backtest.WithRecorder(recorder)).Run(ctx, req)
	if result == nil {
		return runErr
	}

	result.PrintResults(w)
	if out.printLedger {
		result.PrintLedger(w)
	}
	if runErr == nil {
		if err := printStatistics(ctx, w, source, result, out.chartPath); err != nil {
			log.Warn().Err(err).Msg("Failed to report statistics")
		}
	}

	summary := dynamodb.Summarize(result, runErr)
	if cfg.Store.TableName != "" {
		store, err := dynamodb.NewService(ctx, cfg.Store.DynamoDBRegion, cfg.Store.TableName)
		if err == nil {
			err = store.SaveRun(ctx, result, runErr)
		}
		if err != nil {
			log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to save run")
		}
	}

	notifier := notification.NewDiscordNotificationService(cfg.Notify.DiscordWebhookURL)
	if err := notifier.NotifyRun(ctx, summary); err != nil {
		log.Error().Err(err).Msg("Failed to send Discord notification")
	}

	if err := recorder.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		log.Error().Err(err).Msg("Failed to push metrics")
	}

	return runErr
}

// printStatistics compares the fund against the configured benchmark and
// optionally renders the normalized chart
func printStatistics(ctx context.Context, w io.Writer, source marketdata.PriceSource, result *backtest.Result, chartPath string) error {
	opts := report.Options{
		RiskFreeRate:   cfg.Report.RiskFreeRate,
		SamplesPerYear: cfg.Report.SamplesPerYear,
	}
	values := result.Values()
	fund, err := report.Compute(values, opts)
	if err != nil {
		return err
	}

	series := []report.Series{{Name: "Portfolio", Values: values}}

	var bench *report.Stats
	name := cfg.Report.Benchmark
	if name != "" {
		benchValues, err := benchmarkValues(ctx, source, result, name)
		if err != nil {
			log.Warn().Err(err).Str("benchmark", name).Msg("Benchmark unavailable")
		} else if stats, err := report.Compute(benchValues, opts); err == nil {
			bench = &stats
			series = append(series, report.Series{Name: name, Values: benchValues})
		}
	}

	fmt.Fprintf(w, "\nData Range: %s to %s\n", result.Start.Format(marketdata.DateLayout), result.End.Format(marketdata.DateLayout))
	report.PrintStats(w, fund, name, bench)

	if chartPath == "" {
		return nil
	}
	png, err := report.RenderChart("Daily portfolio value and "+name, snapshotDates(result), series...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(chartPath, png, 0o644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	log.Info().Str("path", chartPath).Msg("Wrote chart")
	return nil
}

func benchmarkValues(ctx context.Context, source marketdata.PriceSource, result *backtest.Result, symbol string) ([]decimal.Decimal, error) {
	table, err := source.GetPriceTable(ctx, []string{symbol}, result.Start, result.End)
	if err != nil {
		return nil, err
	}
	return report.Benchmark(table, symbol, snapshotDates(result), result.StartingCash)
}

func snapshotDates(result *backtest.Result) []time.Time {
	out := make([]time.Time, len(result.Snapshots))
	for i, s := range result.Snapshots {
		out[i] = s.Date
	}
	return out
}
