package indicator

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/marketsim/pkg/signals"
)

const (
	DefaultWindowLength = 20
	DefaultDevFactor    = 2.0
)

// Band is the rolling statistics of one window
type Band struct {
	Mean   decimal.Decimal
	StdDev decimal.Decimal
}

// Rolling returns the mean and sample standard deviation of every window of
// windowLength closes ending at each index. The first windowLength-1
// entries are nil.
func Rolling(prices []decimal.Decimal, windowLength int) ([]*Band, error) {
	if windowLength < 2 {
		return nil, fmt.Errorf("window length must be at least 2, got %d", windowLength)
	}

	n := decimal.NewFromInt(int64(windowLength))
	n1 := decimal.NewFromInt(int64(windowLength - 1))

	out := make([]*Band, len(prices))
	for i := windowLength - 1; i < len(prices); i++ {
		window := prices[i-windowLength+1 : i+1]

		sum := decimal.Zero
		for _, p := range window {
			sum = sum.Add(p)
		}
		mean := sum.Div(n)

		squares := decimal.Zero
		for _, p := range window {
			d := p.Sub(mean)
			squares = squares.Add(d.Mul(d))
		}
		variance := squares.Div(n1)

		out[i] = &Band{
			Mean:   mean,
			StdDev: sqrt(variance),
		}
	}
	return out, nil
}

// Bollinger builds the band indicator for one symbol: moving average over
// windowLength closes and bands at devFactor standard deviations.
func Bollinger(dates []time.Time, prices []decimal.Decimal, windowLength int, devFactor float64) ([]signals.Indicator, error) {
	if len(dates) != len(prices) {
		return nil, fmt.Errorf("got %d dates and %d prices", len(dates), len(prices))
	}

	bands, err := Rolling(prices, windowLength)
	if err != nil {
		return nil, err
	}

	dev := decimal.NewFromFloat(devFactor)
	out := make([]signals.Indicator, len(prices))
	for i := range prices {
		out[i] = signals.Indicator{
			Date:  dates[i],
			Price: prices[i],
		}
		if band := bands[i]; band != nil {
			width := band.StdDev.Mul(dev)
			out[i].MovingAverage = band.Mean
			out[i].UpperBand = band.Mean.Add(width)
			out[i].LowerBand = band.Mean.Sub(width)
			out[i].Ready = true
		}
	}
	return out, nil
}

// Point is one value of a derived indicator series
type Point struct {
	Date  time.Time
	Value decimal.Decimal
	Ready bool
}

// Normalized returns the price position inside the bands, (P - MA) / (2 SD).
// Points are not ready until the window fills or while SD is zero.
func Normalized(dates []time.Time, prices []decimal.Decimal, windowLength int) ([]Point, error) {
	if len(dates) != len(prices) {
		return nil, fmt.Errorf("got %d dates and %d prices", len(dates), len(prices))
	}

	bands, err := Rolling(prices, windowLength)
	if err != nil {
		return nil, err
	}

	two := decimal.NewFromInt(2)
	out := make([]Point, len(prices))
	for i := range prices {
		out[i].Date = dates[i]
		band := bands[i]
		if band == nil || band.StdDev.IsZero() {
			continue
		}
		out[i].Value = prices[i].Sub(band.Mean).Div(two.Mul(band.StdDev))
		out[i].Ready = true
	}
	return out, nil
}

// sqrt goes through float64; decimal has no square root
func sqrt(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(d.InexactFloat64()))
}
