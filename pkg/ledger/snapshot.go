package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the portfolio state at the close of one trading date.
// Holdings are not exposed for mutation; a snapshot never changes once
// the ledger has produced it.
type Snapshot struct {
	Date       time.Time
	Cash       decimal.Decimal
	Longs      decimal.Decimal
	Shorts     decimal.Decimal
	TotalValue decimal.Decimal
	Leverage   decimal.Decimal

	holdings map[string]int64
}

// Holding returns the signed share count of symbol
func (s Snapshot) Holding(symbol string) int64 {
	return s.holdings[symbol]
}

// Holdings returns a copy of the non-zero positions
func (s Snapshot) Holdings() map[string]int64 {
	out := make(map[string]int64, len(s.holdings))
	for symbol, shares := range s.holdings {
		out[symbol] = shares
	}
	return out
}

// Symbols returns the symbols with a non-zero position, sorted
func (s Snapshot) Symbols() []string {
	out := make([]string, 0, len(s.holdings))
	for symbol := range s.holdings {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Values returns the total value of each snapshot
func Values(snapshots []Snapshot) []decimal.Decimal {
	out := make([]decimal.Decimal, len(snapshots))
	for i, s := range snapshots {
		out[i] = s.TotalValue
	}
	return out
}
