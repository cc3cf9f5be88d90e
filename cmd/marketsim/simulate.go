package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vignesh-goutham/marketsim/pkg/backtest"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/metrics"
	"github.com/vignesh-goutham/marketsim/pkg/orders"
)

var (
	startDate   string
	endDate     string
	ordersFile  string
	startVal    float64
	maxLeverage float64
	printLedger bool
	chartPath   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay an order file against historical prices",
	Long: `Replay an order file against historical daily closes and report the daily
portfolio value. The order file is a CSV with the columns Date, Symbol, Order
(BUY or SELL) and Shares.

The run stops with an error when leverage exceeds the configured limit (2.0 by
default), when an order side is not BUY or SELL, or when a price is missing.
Results up to the failing date are still printed.

Example:
  marketsim simulate --orders-file orders/orders.csv --start-date 2011-01-05 --end-date 2011-01-20 --start-val 1000000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applySimulationFlags(cmd)

		if cfg.Simulation.OrdersFile == "" {
			return fmt.Errorf("an orders file is required (--orders-file or simulation.orders_file)")
		}
		stream, err := orders.ReadFile(cfg.Simulation.OrdersFile)
		if err != nil {
			return err
		}
		log.Info().Str("file", cfg.Simulation.OrdersFile).Int("orders", len(stream)).Msg("Loaded orders")

		req, err := simulationRequest(stream)
		if err != nil {
			return err
		}

		source, release, err := priceSource(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		return runSimulation(cmd.Context(), os.Stdout, source, req, outputOptions{
			printLedger: printLedger,
			chartPath:   chartPath,
		}, metrics.New())
	},
}

// applySimulationFlags lets explicitly set flags override the config
func applySimulationFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("start-date") {
		cfg.Simulation.StartDate = startDate
	}
	if flags.Changed("end-date") {
		cfg.Simulation.EndDate = endDate
	}
	if flags.Changed("orders-file") {
		cfg.Simulation.OrdersFile = ordersFile
	}
	if flags.Changed("start-val") {
		cfg.Simulation.StartVal = startVal
	}
	if flags.Changed("max-leverage") {
		cfg.Simulation.MaxLeverage = maxLeverage
	}
	if !flags.Changed("chart") {
		chartPath = cfg.Report.ChartPath
	}
}

func simulationRequest(stream []orders.Order) (backtest.Request, error) {
	start, err := optionalDate(cfg.Simulation.StartDate)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := optionalDate(cfg.Simulation.EndDate)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("invalid end date: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return backtest.Request{}, err
	}

	return backtest.Request{
		Start:        start,
		End:          end,
		StartingCash: cfg.StartingCash(),
		Orders:       stream,
		MaxLeverage:  cfg.MaxLeverage(),
	}, nil
}

func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return marketdata.ParseDate(s)
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&ordersFile, "orders-file", "", "Path to the order CSV file")
	simulateCmd.Flags().StringVar(&startDate, "start-date", "", "First simulated date (YYYY-MM-DD), defaults to the first order date")
	simulateCmd.Flags().StringVar(&endDate, "end-date", "", "Last simulated date (YYYY-MM-DD), defaults to the last order date")
	simulateCmd.Flags().Float64Var(&startVal, "start-val", 1000000, "Starting cash")
	simulateCmd.Flags().Float64Var(&maxLeverage, "max-leverage", 2.0, "Leverage above which the run stops")
	simulateCmd.Flags().BoolVar(&printLedger, "ledger", false, "Print the daily ledger")
	simulateCmd.Flags().StringVar(&chartPath, "chart", "", "Write a normalized portfolio vs benchmark chart PNG to this path")
}
