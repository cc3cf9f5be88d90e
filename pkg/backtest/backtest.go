package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/marketsim/pkg/ledger"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/metrics"
	"github.com/vignesh-goutham/marketsim/pkg/orders"
)

// Request describes one simulation run
type Request struct {
	// Start and End bound the simulated range. Zero values default to the
	// first and last order dates.
	Start time.Time
	End   time.Time

	StartingCash decimal.Decimal
	Orders       []orders.Order

	// MaxLeverage defaults to ledger.DefaultMaxLeverage when zero
	MaxLeverage decimal.Decimal
}

// Result is the outcome of a run. On a fatal simulation error Snapshots
// holds the dates completed before the failure.
type Result struct {
	RunID        string
	Start        time.Time
	End          time.Time
	StartingCash decimal.Decimal
	Table        *marketdata.PriceTable
	Snapshots    []ledger.Snapshot
	Executed     int
	Dropped      []orders.Order
}

// FinalValue is the portfolio value on the last completed date
func (r *Result) FinalValue() decimal.Decimal {
	if len(r.Snapshots) == 0 {
		return r.StartingCash
	}
	return r.Snapshots[len(r.Snapshots)-1].TotalValue
}

// Values returns the daily portfolio values
func (r *Result) Values() []decimal.Decimal {
	return ledger.Values(r.Snapshots)
}

// Backtester runs order streams against a price source
type Backtester struct {
	source   marketdata.PriceSource
	recorder *metrics.Recorder
}

type Option func(*Backtester)

// WithRecorder records run metrics on r
func WithRecorder(r *metrics.Recorder) Option {
	return func(b *Backtester) {
		b.recorder = r
	}
}

func NewBacktester(source marketdata.PriceSource, opts ...Option) *Backtester {
	b := &Backtester{source: source}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Simulate runs req against source without metrics
func Simulate(ctx context.Context, source marketdata.PriceSource, req Request) (*Result, error) {
	return NewBacktester(source).Run(ctx, req)
}

// Run fetches prices for every symbol in the order stream and replays the
// stream through a ledger. Orders dated outside the trading calendar of the
// range are reported in Result.Dropped and never applied.
func (b *Backtester) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	start, end, err := resolveRange(req)
	if err != nil {
		return nil, err
	}

	symbols := orders.Symbols(req.Orders)
	result := &Result{
		RunID:        uuid.New().String(),
		Start:        start,
		End:          end,
		StartingCash: req.StartingCash,
	}

	log.Info().Str("run_id", result.RunID).Str("start", start.Format(marketdata.DateLayout)).
		Str("end", end.Format(marketdata.DateLayout)).Int("orders", len(req.Orders)).
		Strs("symbols", symbols).Msg("Starting simulation")

	table, err := b.source.GetPriceTable(ctx, symbols, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	if table.Len() == 0 {
		return nil, fmt.Errorf("no trading dates between %s and %s",
			start.Format(marketdata.DateLayout), end.Format(marketdata.DateLayout))
	}
	result.Table = table

	result.Dropped = ledger.Unmatched(table, req.Orders)
	for _, o := range result.Dropped {
		log.Warn().Str("run_id", result.RunID).Str("order", o.String()).Msg("Order not on a trading date, dropped")
	}

	var opts []ledger.Option
	if !req.MaxLeverage.IsZero() {
		opts = append(opts, ledger.WithMaxLeverage(req.MaxLeverage))
	}
	l := ledger.New(req.StartingCash, opts...)

	snapshots, runErr := l.Run(table, req.Orders)
	result.Snapshots = snapshots
	result.Executed = executedBy(table, req.Orders, snapshots)

	kind := ""
	var simErr *ledger.SimulationError
	if errors.As(runErr, &simErr) {
		kind = simErr.Kind.String()
	}
	b.recorder.RecordRun(result.Executed, len(result.Dropped), result.FinalValue(), time.Since(started).Seconds(), kind)

	if runErr != nil {
		return result, runErr
	}

	log.Info().Str("run_id", result.RunID).Int("dates", len(snapshots)).Int("executed", result.Executed).
		Int("dropped", len(result.Dropped)).Str("final_value", result.FinalValue().StringFixed(2)).
		Msg("Simulation complete")
	return result, nil
}

func resolveRange(req Request) (time.Time, time.Time, error) {
	start, end := req.Start, req.End
	if first, last, ok := orders.Range(req.Orders); ok {
		if start.IsZero() {
			start = first
		}
		if end.IsZero() {
			end = last
		}
	}
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, errors.New("start and end dates are required when there are no orders")
	}

	start, end = marketdata.Day(start), marketdata.Day(end)
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s",
			end.Format(marketdata.DateLayout), start.Format(marketdata.DateLayout))
	}
	return start, end, nil
}

// executedBy counts the orders applied on the completed snapshot dates
func executedBy(table *marketdata.PriceTable, stream []orders.Order, snapshots []ledger.Snapshot) int {
	if len(snapshots) == 0 {
		return 0
	}
	last := snapshots[len(snapshots)-1].Date

	n := 0
	for _, o := range stream {
		if table.Has(o.Date) && !marketdata.Day(o.Date).After(last) {
			n++
		}
	}
	return n
}

// PrintResults writes the run summary, final holdings and dropped orders
func (r *Result) PrintResults(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
	fmt.Fprintln(w, "SIMULATION RESULTS")
	fmt.Fprintln(w, strings.Repeat("-", 40))

	fmt.Fprintf(w, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(w, "Date Range: %s to %s\n", r.Start.Format(marketdata.DateLayout), r.End.Format(marketdata.DateLayout))
	fmt.Fprintf(w, "Trading Days Simulated: %d\n", len(r.Snapshots))
	fmt.Fprintf(w, "Orders Executed: %d\n", r.Executed)
	fmt.Fprintf(w, "Orders Dropped: %d\n", len(r.Dropped))
	fmt.Fprintf(w, "Starting Value: $%s\n", r.StartingCash.StringFixed(2))
	fmt.Fprintf(w, "Final Value: $%s\n", r.FinalValue().StringFixed(2))

	if !r.StartingCash.IsZero() {
		pl := r.FinalValue().Sub(r.StartingCash)
		pct := pl.Div(r.StartingCash).Mul(decimal.NewFromInt(100))
		fmt.Fprintf(w, "Total P/L: $%s (%s%%)\n", pl.StringFixed(2), pct.StringFixed(2))
	}

	fmt.Fprintln(w, "\nFINAL HOLDINGS:")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	if len(r.Snapshots) == 0 || len(r.Snapshots[len(r.Snapshots)-1].Symbols()) == 0 {
		fmt.Fprintln(w, "No positions in account")
	} else {
		last := r.Snapshots[len(r.Snapshots)-1]
		table := tablewriter.NewWriter(w)
		table.Header("Symbol", "Shares", "Close", "Value")
		for _, symbol := range last.Symbols() {
			shares := last.Holding(symbol)
			price, _ := r.Table.Price(symbol, last.Date)
			table.Append(symbol,
				fmt.Sprintf("%d", shares),
				"$"+price.StringFixed(2),
				"$"+price.Mul(decimal.NewFromInt(shares)).StringFixed(2))
		}
		table.Append("CASH", "", "", "$"+last.Cash.StringFixed(2))
		table.Render()
	}

	if len(r.Dropped) > 0 {
		fmt.Fprintln(w, "\nDROPPED ORDERS:")
		fmt.Fprintln(w, strings.Repeat("-", 40))
		table := tablewriter.NewWriter(w)
		table.Header("Date", "Symbol", "Order", "Shares")
		for _, o := range r.Dropped {
			table.Append(o.Date.Format(marketdata.DateLayout), o.Symbol, string(o.Side), fmt.Sprintf("%d", o.Shares))
		}
		table.Render()
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

// PrintLedger writes one row per simulated date
func (r *Result) PrintLedger(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.Header("Date", "Cash", "Longs", "Shorts", "Value", "Leverage")
	for _, s := range r.Snapshots {
		table.Append(s.Date.Format(marketdata.DateLayout),
			s.Cash.StringFixed(2),
			s.Longs.StringFixed(2),
			s.Shorts.StringFixed(2),
			s.TotalValue.StringFixed(2),
			s.Leverage.StringFixed(4))
	}
	table.Render()
}
