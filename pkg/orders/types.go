package orders

import (
	"fmt"
	"sort"
	"time"

	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
)

// Side is the direction of an order
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is BUY or SELL
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Order is a market-on-close order for a whole number of shares
type Order struct {
	Date   time.Time
	Symbol string
	Side   Side
	Shares int64
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s %d %s", o.Date.Format(marketdata.DateLayout), o.Side, o.Shares, o.Symbol)
}

// Symbols returns the distinct symbols referenced by orders, sorted
func Symbols(orders []Order) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range orders {
		if _, ok := seen[o.Symbol]; ok {
			continue
		}
		seen[o.Symbol] = struct{}{}
		out = append(out, o.Symbol)
	}
	sort.Strings(out)
	return out
}

// Merge combines several date-ordered streams into one date-ordered stream.
// Orders sharing a date keep the order of the streams they came from.
func Merge(streams ...[]Order) []Order {
	var out []Order
	for _, s := range streams {
		out = append(out, s...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Range returns the first and last order dates
func Range(orders []Order) (first, last time.Time, ok bool) {
	if len(orders) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = orders[0].Date, orders[0].Date
	for _, o := range orders[1:] {
		if o.Date.Before(first) {
			first = o.Date
		}
		if o.Date.After(last) {
			last = o.Date
		}
	}
	return first, last, true
}
