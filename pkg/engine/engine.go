package engine

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/marketsim/pkg/indicator"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/orders"
	"github.com/vignesh-goutham/marketsim/pkg/signals"
	"golang.org/x/sync/errgroup"
)

// Params configures the Bollinger band strategy
type Params struct {
	WindowLength int
	DevFactor    float64
	StartingCash decimal.Decimal
}

// DefaultParams returns a 20 day window with bands at 2 standard deviations
func DefaultParams(startingCash decimal.Decimal) Params {
	return Params{
		WindowLength: indicator.DefaultWindowLength,
		DevFactor:    indicator.DefaultDevFactor,
		StartingCash: startingCash,
	}
}

// Plan is everything the strategy derived for one symbol
type Plan struct {
	Symbol      string
	Indicators  []signals.Indicator
	States      []signals.State
	Orders      []orders.Order
	Diagnostics signals.Diagnostics
}

// Entries counts the entry signals of the plan
func (p *Plan) Entries() int {
	n := 0
	for _, s := range p.States {
		if s.IsEntry() {
			n++
		}
	}
	return n
}

// BuildPlan runs indicator, state machine and order generator for one symbol
func BuildPlan(table *marketdata.PriceTable, symbol string, params Params) (*Plan, error) {
	prices, err := table.Series(symbol)
	if err != nil {
		return nil, err
	}
	dates := table.Dates()

	rows, err := indicator.Bollinger(dates, prices, params.WindowLength, params.DevFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to compute bands for %s: %w", symbol, err)
	}

	machine := signals.NewMachine()
	states := machine.Run(rows)
	diagnostics := machine.Diagnostics()
	if diagnostics.Malformed() > 0 {
		log.Warn().Str("symbol", symbol).Int("rows", diagnostics.Malformed()).
			Msg("Indicator bands out of order, states follow raw comparisons")
	}

	generator := NewOrderGenerator(symbol, params.StartingCash)
	out, err := generator.Generate(dates, states, prices)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("symbol", symbol).Int("dates", len(dates)).Int("orders", len(out)).Msg("Built strategy plan")
	return &Plan{
		Symbol:      symbol,
		Indicators:  rows,
		States:      states,
		Orders:      out,
		Diagnostics: diagnostics,
	}, nil
}

// GenerateOrders is the strategy entry point for one symbol
func GenerateOrders(table *marketdata.PriceTable, symbol string, windowLength int, devFactor float64, startingCash decimal.Decimal) ([]orders.Order, error) {
	plan, err := BuildPlan(table, symbol, Params{
		WindowLength: windowLength,
		DevFactor:    devFactor,
		StartingCash: startingCash,
	})
	if err != nil {
		return nil, err
	}
	return plan.Orders, nil
}

// GenerateAll builds the plans of several symbols in parallel, each with its
// own generator, and merges their orders into one date-ordered stream.
// Orders sharing a date follow the order of symbols.
func GenerateAll(ctx context.Context, table *marketdata.PriceTable, symbols []string, params Params) ([]orders.Order, []*Plan, error) {
	plans := make([]*Plan, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			plan, err := BuildPlan(table, symbol, params)
			if err != nil {
				return err
			}
			plans[i] = plan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	streams := make([][]orders.Order, len(plans))
	for i, plan := range plans {
		streams[i] = plan.Orders
	}
	return orders.Merge(streams...), plans, nil
}
