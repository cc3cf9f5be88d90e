package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vignesh-goutham/marketsim/pkg/backtest"
	"github.com/vignesh-goutham/marketsim/pkg/engine"
	"github.com/vignesh-goutham/marketsim/pkg/indicator"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/metrics"
	"github.com/vignesh-goutham/marketsim/pkg/orders"
)

var (
	strategySymbols []string
	windowLength    int
	devFactor       float64
	ordersOut       string
	simulateOrders  bool
	printBands      bool
)

var bollingerCmd = &cobra.Command{
	Use:   "bollinger",
	Short: "Generate orders from the Bollinger band strategy",
	Long: `Generate an order file from the Bollinger band strategy.

For each symbol the strategy computes a rolling mean and standard deviation of
the daily close and enters long when the price crosses back above the lower
band, or short when it crosses back below the upper band. Positions are closed
when the price crosses the moving average. Each entry is sized to the starting
cash at the entry price.

Example:
  marketsim bollinger --symbols IBM --start-date 2010-01-01 --end-date 2010-12-31 --out orders/ibm.csv --simulate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyStrategyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if len(cfg.Strategy.Symbols) == 0 {
			return fmt.Errorf("at least one symbol is required (--symbols or strategy.symbols)")
		}

		start, err := marketdata.ParseDate(cfg.Simulation.StartDate)
		if err != nil {
			return fmt.Errorf("invalid start date: %w", err)
		}
		end, err := marketdata.ParseDate(cfg.Simulation.EndDate)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		if end.Before(start) {
			return fmt.Errorf("end date %s is before start date %s", cfg.Simulation.EndDate, cfg.Simulation.StartDate)
		}

		ctx := cmd.Context()
		source, release, err := priceSource(ctx)
		if err != nil {
			return err
		}
		defer release()

		table, err := source.GetPriceTable(ctx, cfg.Strategy.Symbols, start, end)
		if err != nil {
			return fmt.Errorf("failed to load prices: %w", err)
		}
		log.Info().Strs("symbols", cfg.Strategy.Symbols).Int("dates", table.Len()).Msg("Loaded prices")

		params := engine.DefaultParams(cfg.StartingCash())
		params.WindowLength = cfg.Strategy.WindowLength
		params.DevFactor = cfg.Strategy.DevFactor

		stream, plans, err := engine.GenerateAll(ctx, table, cfg.Strategy.Symbols, params)
		if err != nil {
			return err
		}

		recorder := metrics.New()
		for _, plan := range plans {
			recorder.RecordMalformed(plan.Symbol, plan.Diagnostics.Malformed())
		}

		out := tableWriter(os.Stdout, os.Stderr)
		printPlans(out, plans)
		if printBands {
			for _, plan := range plans {
				if err := printPlanBands(out, table, plan, params.WindowLength); err != nil {
					return err
				}
			}
		}

		if cfg.Strategy.OrdersOut != "" {
			if err := orders.WriteFile(cfg.Strategy.OrdersOut, stream); err != nil {
				return err
			}
			log.Info().Str("file", cfg.Strategy.OrdersOut).Int("orders", len(stream)).Msg("Wrote orders")
		} else if !simulateOrders {
			if err := orders.WriteCSV(os.Stdout, stream); err != nil {
				return err
			}
		}

		if !simulateOrders {
			return recorder.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job)
		}
		if len(stream) == 0 {
			log.Warn().Msg("Strategy produced no orders, nothing to simulate")
			return nil
		}

		return runSimulation(ctx, os.Stdout, source, backtest.Request{
			Start:        table.Dates()[0],
			End:          table.Dates()[table.Len()-1],
			StartingCash: cfg.StartingCash(),
			Orders:       stream,
			MaxLeverage:  cfg.MaxLeverage(),
		}, outputOptions{
			printLedger: printLedger,
			chartPath:   chartPath,
		}, recorder)
	},
}

func applyStrategyFlags(cmd *cobra.Command) {
	applySimulationFlags(cmd)
	flags := cmd.Flags()
	if flags.Changed("symbols") {
		cfg.Strategy.Symbols = strategySymbols
	}
	for i, s := range cfg.Strategy.Symbols {
		cfg.Strategy.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if flags.Changed("window") {
		cfg.Strategy.WindowLength = windowLength
	}
	if flags.Changed("dev-factor") {
		cfg.Strategy.DevFactor = devFactor
	}
	if flags.Changed("out") {
		cfg.Strategy.OrdersOut = ordersOut
	}
}

// tableWriter keeps stdout clean for the order file when it is written there
func tableWriter(stdout, stderr io.Writer) io.Writer {
	if cfg.Strategy.OrdersOut == "" && !simulateOrders {
		return stderr
	}
	return stdout
}

func printPlans(w io.Writer, plans []*engine.Plan) {
	fmt.Fprintln(w, "\n=== STRATEGY SIGNALS ===")
	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "Entries", "Orders", "Malformed Rows")
	for _, plan := range plans {
		table.Append(
			plan.Symbol,
			fmt.Sprintf("%d", plan.Entries()),
			fmt.Sprintf("%d", len(plan.Orders)),
			fmt.Sprintf("%d", plan.Diagnostics.Malformed()),
		)
	}
	table.Render()
}

// printPlanBands prints every row of a plan's indicator series with the
// price position inside the bands
func printPlanBands(w io.Writer, prices *marketdata.PriceTable, plan *engine.Plan, windowLength int) error {
	series, err := prices.Series(plan.Symbol)
	if err != nil {
		return err
	}
	points, err := indicator.Normalized(prices.Dates(), series, windowLength)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n=== %s BANDS ===\n", plan.Symbol)
	table := tablewriter.NewWriter(w)
	table.Header("Date", "Price", "Moving Avg", "Upper", "Lower", "Position", "State")
	for i, row := range plan.Indicators {
		ma, upper, lower, position := "-", "-", "-", "-"
		if row.Ready {
			ma = row.MovingAverage.StringFixed(2)
			upper = row.UpperBand.StringFixed(2)
			lower = row.LowerBand.StringFixed(2)
		}
		if points[i].Ready {
			position = points[i].Value.StringFixed(3)
		}
		table.Append(
			row.Date.Format(marketdata.DateLayout),
			row.Price.StringFixed(2),
			ma, upper, lower, position,
			plan.States[i].String(),
		)
	}
	table.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(bollingerCmd)

	bollingerCmd.Flags().StringSliceVar(&strategySymbols, "symbols", nil, "Comma separated symbols to trade")
	bollingerCmd.Flags().StringVar(&startDate, "start-date", "", "First date of the price history (YYYY-MM-DD)")
	bollingerCmd.Flags().StringVar(&endDate, "end-date", "", "Last date of the price history (YYYY-MM-DD)")
	bollingerCmd.Flags().IntVar(&windowLength, "window", indicator.DefaultWindowLength, "Rolling window length in trading days")
	bollingerCmd.Flags().Float64Var(&devFactor, "dev-factor", indicator.DefaultDevFactor, "Band width in standard deviations")
	bollingerCmd.Flags().Float64Var(&startVal, "start-val", 1000000, "Starting cash, also the notional of each entry")
	bollingerCmd.Flags().Float64Var(&maxLeverage, "max-leverage", 2.0, "Leverage above which the simulation stops")
	bollingerCmd.Flags().StringVar(&ordersOut, "out", "", "Write the generated orders to this CSV file instead of stdout")
	bollingerCmd.Flags().BoolVar(&simulateOrders, "simulate", false, "Simulate the generated orders")
	bollingerCmd.Flags().BoolVar(&printBands, "bands", false, "Print the band series and states of every symbol")
	bollingerCmd.Flags().BoolVar(&printLedger, "ledger", false, "Print the daily ledger of the simulation")
	bollingerCmd.Flags().StringVar(&chartPath, "chart", "", "Write a normalized portfolio vs benchmark chart PNG to this path")
}
