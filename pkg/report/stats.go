package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
)

// DefaultSamplesPerYear annualizes daily statistics
const DefaultSamplesPerYear = 252

// Options configures Compute
type Options struct {
	// RiskFreeRate is the daily risk free return subtracted before the
	// Sharpe ratio is taken
	RiskFreeRate   float64
	SamplesPerYear int
}

func DefaultOptions() Options {
	return Options{SamplesPerYear: DefaultSamplesPerYear}
}

// Stats summarizes a daily value series
type Stats struct {
	CumulativeReturn   float64
	AverageDailyReturn float64
	StdDailyReturn     float64
	SharpeRatio        float64
	FinalValue         decimal.Decimal
}

// DailyReturns returns v[t]/v[t-1] - 1 for every t after the first
func DailyReturns(values []decimal.Decimal) ([]float64, error) {
	out := make([]float64, 0, max(len(values)-1, 0))
	for i := 1; i < len(values); i++ {
		if !values[i-1].IsPositive() {
			return nil, fmt.Errorf("non-positive value %s at index %d", values[i-1], i-1)
		}
		r := values[i].Div(values[i-1]).Sub(decimal.NewFromInt(1))
		out = append(out, r.InexactFloat64())
	}
	return out, nil
}

// Compute derives return statistics from daily values. The standard
// deviation is the sample deviation and the Sharpe ratio is zero for a
// series without variance.
func Compute(values []decimal.Decimal, opts Options) (Stats, error) {
	if len(values) < 2 {
		return Stats{}, errors.New("at least two values are required")
	}
	if opts.SamplesPerYear <= 0 {
		opts.SamplesPerYear = DefaultSamplesPerYear
	}

	returns, err := DailyReturns(values)
	if err != nil {
		return Stats{}, err
	}

	first, last := values[0], values[len(values)-1]
	stats := Stats{
		CumulativeReturn:   last.Div(first).Sub(decimal.NewFromInt(1)).InexactFloat64(),
		AverageDailyReturn: mean(returns),
		StdDailyReturn:     sampleStd(returns),
		FinalValue:         last,
	}

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - opts.RiskFreeRate
	}
	if stats.StdDailyReturn > 0 {
		stats.SharpeRatio = math.Sqrt(float64(opts.SamplesPerYear)) * mean(excess) / stats.StdDailyReturn
	}

	return stats, nil
}

// Benchmark values holding symbol with all of startingCash from the first
// of dates. Every date needs a close in table.
func Benchmark(table *marketdata.PriceTable, symbol string, dates []time.Time, startingCash decimal.Decimal) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(dates))
	var first decimal.Decimal
	for i, date := range dates {
		price, ok := table.Price(symbol, date)
		if !ok {
			return nil, fmt.Errorf("no price for %s on %s", symbol, date.Format(marketdata.DateLayout))
		}
		if i == 0 {
			first = price
		}
		out[i] = startingCash.Mul(price).Div(first)
	}
	return out, nil
}

// Normalize divides every value by the first
func Normalize(values []decimal.Decimal) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || values[0].IsZero() {
		return out
	}
	for i, v := range values {
		out[i] = v.Div(values[0]).InexactFloat64()
	}
	return out
}

// PrintStats writes the fund statistics next to the benchmark's
func PrintStats(w io.Writer, fund Stats, benchmarkName string, benchmark *Stats) {
	table := tablewriter.NewWriter(w)
	if benchmark == nil {
		table.Header("Statistic", "Fund")
	} else {
		table.Header("Statistic", "Fund", benchmarkName)
	}

	rows := []struct {
		name  string
		value func(Stats) string
	}{
		{"Sharpe Ratio", func(s Stats) string { return fmt.Sprintf("%.4f", s.SharpeRatio) }},
		{"Cumulative Return", func(s Stats) string { return fmt.Sprintf("%.4f", s.CumulativeReturn) }},
		{"Std Daily Return", func(s Stats) string { return fmt.Sprintf("%.6f", s.StdDailyReturn) }},
		{"Avg Daily Return", func(s Stats) string { return fmt.Sprintf("%.6f", s.AverageDailyReturn) }},
		{"Final Value", func(s Stats) string { return "$" + s.FinalValue.StringFixed(2) }},
	}
	for _, row := range rows {
		if benchmark == nil {
			table.Append(row.name, row.value(fund))
		} else {
			table.Append(row.name, row.value(fund), row.value(*benchmark))
		}
	}
	table.Render()
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}
