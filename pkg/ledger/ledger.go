package ledger

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/orders"
)

// DefaultMaxLeverage is the hard leverage limit of a run
var DefaultMaxLeverage = decimal.NewFromInt(2)

// Ledger replays an order stream against a price table, one trading date
// at a time. A Ledger holds only configuration, so one value can serve
// many independent runs.
type Ledger struct {
	startingCash decimal.Decimal
	maxLeverage  decimal.Decimal
}

type Option func(*Ledger)

// WithMaxLeverage overrides the leverage limit
func WithMaxLeverage(limit decimal.Decimal) Option {
	return func(l *Ledger) {
		l.maxLeverage = limit
	}
}

// New creates a ledger seeded with startingCash and no positions
func New(startingCash decimal.Decimal, opts ...Option) *Ledger {
	l := &Ledger{
		startingCash: startingCash,
		maxLeverage:  DefaultMaxLeverage,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initial is the state before the first trading date
func (l *Ledger) Initial() Snapshot {
	return Snapshot{
		Cash:       l.startingCash,
		TotalValue: l.startingCash,
		holdings:   map[string]int64{},
	}
}

// Run produces one snapshot per date of the table's calendar. Orders on
// dates outside the calendar are never applied (see Unmatched). On a fatal
// error the snapshots computed before the failing date are returned along
// with a *SimulationError.
func (l *Ledger) Run(table *marketdata.PriceTable, stream []orders.Order) ([]Snapshot, error) {
	byDate := make(map[time.Time][]orders.Order)
	for _, o := range stream {
		date := marketdata.Day(o.Date)
		byDate[date] = append(byDate[date], o)
	}

	snapshots := make([]Snapshot, 0, table.Len())
	prev := l.Initial()
	for _, date := range table.Dates() {
		next, err := l.Step(prev, date, byDate[date], table)
		if err != nil {
			log.Error().Err(err).Str("date", date.Format(marketdata.DateLayout)).
				Int("completed", len(snapshots)).Msg("Simulation aborted")
			return snapshots, err
		}
		snapshots = append(snapshots, next)
		prev = next
	}

	return snapshots, nil
}

// Step derives the snapshot of date from prev and the day's orders, applied
// in the order given.
func (l *Ledger) Step(prev Snapshot, date time.Time, day []orders.Order, table *marketdata.PriceTable) (Snapshot, error) {
	cash := prev.Cash
	holdings := prev.Holdings()

	for _, o := range day {
		if !o.Side.Valid() {
			return Snapshot{}, &SimulationError{Kind: InvalidOrderSide, Date: date, Symbol: o.Symbol, Side: o.Side}
		}
		if o.Shares <= 0 {
			return Snapshot{}, &SimulationError{Kind: InvalidOrderShares, Date: date, Symbol: o.Symbol, Side: o.Side, Shares: o.Shares}
		}

		price, ok := table.Price(o.Symbol, date)
		if !ok {
			return Snapshot{}, &SimulationError{Kind: UnknownSymbolOrDate, Date: date, Symbol: o.Symbol}
		}

		notional := price.Mul(decimal.NewFromInt(o.Shares))
		switch o.Side {
		case orders.SideBuy:
			cash = cash.Sub(notional)
			holdings[o.Symbol] += o.Shares
		case orders.SideSell:
			cash = cash.Add(notional)
			holdings[o.Symbol] -= o.Shares
		}
		if holdings[o.Symbol] == 0 {
			delete(holdings, o.Symbol)
		}

		log.Debug().Str("date", date.Format(marketdata.DateLayout)).Str("symbol", o.Symbol).
			Str("side", string(o.Side)).Int64("shares", o.Shares).Str("price", price.String()).
			Str("cash", cash.StringFixed(2)).Msg("Executed order")
	}

	next := Snapshot{
		Date:     date,
		Cash:     cash,
		holdings: holdings,
	}

	longs, shorts := decimal.Zero, decimal.Zero
	for _, symbol := range next.Symbols() {
		price, ok := table.Price(symbol, date)
		if !ok {
			return Snapshot{}, &SimulationError{Kind: UnknownSymbolOrDate, Date: date, Symbol: symbol}
		}
		notional := price.Mul(decimal.NewFromInt(holdings[symbol]))
		if notional.IsPositive() {
			longs = longs.Add(notional)
		} else {
			shorts = shorts.Add(notional)
		}
	}

	next.Longs = longs
	next.Shorts = shorts
	next.TotalValue = cash.Add(longs).Add(shorts)

	equity := next.TotalValue
	if !equity.IsPositive() {
		return Snapshot{}, &SimulationError{Kind: NonPositiveEquity, Date: date, Equity: equity}
	}

	next.Leverage = longs.Sub(shorts).Div(equity)
	if next.Leverage.GreaterThan(l.maxLeverage) {
		return Snapshot{}, &SimulationError{
			Kind:     LeverageExceeded,
			Date:     date,
			Cash:     cash,
			Longs:    longs,
			Shorts:   shorts,
			Leverage: next.Leverage,
			Limit:    l.maxLeverage,
		}
	}

	return next, nil
}

// Unmatched returns the orders whose date is not a trading date of table.
// Run never applies them.
func Unmatched(table *marketdata.PriceTable, stream []orders.Order) []orders.Order {
	var out []orders.Order
	for _, o := range stream {
		if !table.Has(o.Date) {
			out = append(out, o)
		}
	}
	return out
}
