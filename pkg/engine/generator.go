package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/orders"
	"github.com/vignesh-goutham/marketsim/pkg/signals"
)

// OrderGenerator turns the state sequence of one symbol into orders. It
// keeps a single open lot: every ENTRY sizes a new lot from cash and the
// matching EXIT closes exactly that lot.
type OrderGenerator struct {
	symbol string
	cash   decimal.Decimal
	lot    int64
}

// NewOrderGenerator creates a generator for symbol sizing entries from cash
func NewOrderGenerator(symbol string, cash decimal.Decimal) *OrderGenerator {
	return &OrderGenerator{
		symbol: symbol,
		cash:   cash,
	}
}

// Lot returns the size of the lot opened by the last entry
func (g *OrderGenerator) Lot() int64 {
	return g.lot
}

// Next returns the order implied by state on date, if any. An entry that
// cannot afford a single share opens an empty lot and emits nothing.
func (g *OrderGenerator) Next(date time.Time, state signals.State, price decimal.Decimal) (orders.Order, bool) {
	var side orders.Side
	switch state {
	case signals.StateLongEntry:
		g.lot = g.lotSize(price)
		side = orders.SideBuy
	case signals.StateShortEntry:
		g.lot = g.lotSize(price)
		side = orders.SideSell
	case signals.StateLongExit:
		side = orders.SideSell
	case signals.StateShortExit:
		side = orders.SideBuy
	default:
		return orders.Order{}, false
	}

	if g.lot <= 0 {
		log.Warn().Str("symbol", g.symbol).Str("date", date.Format(marketdata.DateLayout)).
			Str("state", state.String()).Str("price", price.String()).Msg("Lot is empty, no order emitted")
		return orders.Order{}, false
	}

	return orders.Order{
		Date:   date,
		Symbol: g.symbol,
		Side:   side,
		Shares: g.lot,
	}, true
}

// Generate walks aligned dates, states and prices and returns the orders
func (g *OrderGenerator) Generate(dates []time.Time, states []signals.State, prices []decimal.Decimal) ([]orders.Order, error) {
	if len(dates) != len(states) || len(dates) != len(prices) {
		return nil, fmt.Errorf("misaligned input: %d dates, %d states, %d prices", len(dates), len(states), len(prices))
	}

	var out []orders.Order
	for i, state := range states {
		if o, ok := g.Next(dates[i], state, prices[i]); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// lotSize is floor(cash / price)
func (g *OrderGenerator) lotSize(price decimal.Decimal) int64 {
	if !price.IsPositive() || !g.cash.IsPositive() {
		return 0
	}
	quotient, _ := g.cash.QuoRem(price, 0)
	return quotient.IntPart()
}
