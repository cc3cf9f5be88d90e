package marketdata

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// Row is one trading date of a price table
type Row struct {
	Date   time.Time
	Closes map[string]decimal.Decimal
}

// PriceTable holds closing prices indexed by trading date and symbol.
// The date index is the trading calendar. A PriceTable is never mutated
// after construction, so it can be shared across concurrent runs.
type PriceTable struct {
	dates  []time.Time
	index  map[time.Time]int
	closes []map[string]decimal.Decimal
}

// Day normalizes a timestamp to UTC midnight of its calendar date
func Day(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// NewPriceTable builds a table from rows. Dates must be strictly
// increasing and every price positive.
func NewPriceTable(rows []Row) (*PriceTable, error) {
	t := &PriceTable{
		dates:  make([]time.Time, 0, len(rows)),
		index:  make(map[time.Time]int, len(rows)),
		closes: make([]map[string]decimal.Decimal, 0, len(rows)),
	}

	for i, row := range rows {
		date := Day(row.Date)
		if i > 0 && !date.After(t.dates[i-1]) {
			return nil, fmt.Errorf("dates not strictly increasing at %s (previous %s)",
				date.Format(DateLayout), t.dates[i-1].Format(DateLayout))
		}

		closes := make(map[string]decimal.Decimal, len(row.Closes))
		for symbol, price := range row.Closes {
			if !price.IsPositive() {
				return nil, fmt.Errorf("non-positive price %s for %s on %s", price, symbol, date.Format(DateLayout))
			}
			closes[symbol] = price
		}

		t.index[date] = i
		t.dates = append(t.dates, date)
		t.closes = append(t.closes, closes)
	}

	return t, nil
}

// Len returns the number of trading dates
func (t *PriceTable) Len() int {
	return len(t.dates)
}

// Dates returns a copy of the trading calendar
func (t *PriceTable) Dates() []time.Time {
	out := make([]time.Time, len(t.dates))
	copy(out, t.dates)
	return out
}

// Date returns the i-th trading date
func (t *PriceTable) Date(i int) time.Time {
	return t.dates[i]
}

// Has reports whether date is a trading date
func (t *PriceTable) Has(date time.Time) bool {
	_, ok := t.index[Day(date)]
	return ok
}

// Price returns the close of symbol on date
func (t *PriceTable) Price(symbol string, date time.Time) (decimal.Decimal, bool) {
	i, ok := t.index[Day(date)]
	if !ok {
		return decimal.Zero, false
	}
	price, ok := t.closes[i][symbol]
	return price, ok
}

// Symbols returns every symbol present on at least one date, sorted
func (t *PriceTable) Symbols() []string {
	seen := make(map[string]struct{})
	for _, closes := range t.closes {
		for symbol := range closes {
			seen[symbol] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for symbol := range seen {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Series returns the close of symbol on every trading date. A gap is an
// error because indicators need a contiguous series.
func (t *PriceTable) Series(symbol string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(t.dates))
	for i, closes := range t.closes {
		price, ok := closes[symbol]
		if !ok {
			return nil, fmt.Errorf("no price for %s on %s", symbol, t.dates[i].Format(DateLayout))
		}
		out[i] = price
	}
	return out, nil
}

// Slice returns the sub-table with dates in [from, to]
func (t *PriceTable) Slice(from, to time.Time) *PriceTable {
	from, to = Day(from), Day(to)
	lo := sort.Search(len(t.dates), func(i int) bool { return !t.dates[i].Before(from) })
	hi := sort.Search(len(t.dates), func(i int) bool { return t.dates[i].After(to) })
	if hi < lo {
		hi = lo
	}

	out := &PriceTable{
		dates:  t.dates[lo:hi:hi],
		index:  make(map[time.Time]int, hi-lo),
		closes: t.closes[lo:hi:hi],
	}
	for i, date := range out.dates {
		out.index[date] = i
	}
	return out
}

// Assemble builds a table from per-symbol closes. The calendar is the key
// set of calendar when given, else the dates on which every symbol has a
// close. Symbols missing on a calendar date are simply absent that day.
func Assemble(bySymbol map[string]map[time.Time]decimal.Decimal, calendar map[time.Time]decimal.Decimal) (*PriceTable, error) {
	var dates []time.Time
	if calendar != nil {
		for date := range calendar {
			dates = append(dates, date)
		}
	} else {
		dates = commonDates(bySymbol)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rows := make([]Row, 0, len(dates))
	for _, date := range dates {
		row := Row{Date: date, Closes: make(map[string]decimal.Decimal, len(bySymbol))}
		for symbol, closes := range bySymbol {
			if price, ok := closes[date]; ok {
				row.Closes[symbol] = price
			}
		}
		rows = append(rows, row)
	}
	return NewPriceTable(rows)
}

func commonDates(bySymbol map[string]map[time.Time]decimal.Decimal) []time.Time {
	var out []time.Time
	first := true
	for _, closes := range bySymbol {
		if first {
			for date := range closes {
				out = append(out, date)
			}
			first = false
			continue
		}
		kept := out[:0]
		for _, date := range out {
			if _, ok := closes[date]; ok {
				kept = append(kept, date)
			}
		}
		out = kept
	}
	return out
}
