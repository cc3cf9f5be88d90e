package report

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
)

func values(xs ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(xs))
	for i, x := range xs {
		out[i] = decimal.RequireFromString(x)
	}
	return out
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name       string
		values     []decimal.Decimal
		opts       Options
		cumulative float64
		average    float64
		std        float64
		sharpe     float64
	}{
		{
			name:       "steady growth",
			values:     values("100", "101", "103.02"),
			opts:       DefaultOptions(),
			cumulative: 0.0302,
			average:    0.015,
			std:        math.Sqrt(0.00005),
			sharpe:     math.Sqrt(252) * 0.015 / math.Sqrt(0.00005),
		},
		{
			name:       "round trip",
			values:     values("100", "110", "99"),
			opts:       DefaultOptions(),
			cumulative: -0.01,
			average:    0,
			std:        math.Sqrt(0.02),
			sharpe:     0,
		},
		{
			name:       "flat series has no sharpe",
			values:     values("100", "100", "100"),
			opts:       DefaultOptions(),
			cumulative: 0,
			average:    0,
			std:        0,
			sharpe:     0,
		},
		{
			name:       "risk free rate and default samples",
			values:     values("100", "101", "103.02"),
			opts:       Options{RiskFreeRate: 0.005},
			cumulative: 0.0302,
			average:    0.015,
			std:        math.Sqrt(0.00005),
			sharpe:     math.Sqrt(252) * 0.01 / math.Sqrt(0.00005),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := Compute(tt.values, tt.opts)
			require.NoError(t, err)
			assert.InDelta(t, tt.cumulative, stats.CumulativeReturn, 1e-9)
			assert.InDelta(t, tt.average, stats.AverageDailyReturn, 1e-9)
			assert.InDelta(t, tt.std, stats.StdDailyReturn, 1e-9)
			assert.InDelta(t, tt.sharpe, stats.SharpeRatio, 1e-6)
			assert.True(t, stats.FinalValue.Equal(tt.values[len(tt.values)-1]))
		})
	}
}

func TestComputeErrors(t *testing.T) {
	_, err := Compute(values("100"), DefaultOptions())
	require.Error(t, err)

	_, err = Compute(values("100", "0", "50"), DefaultOptions())
	require.Error(t, err)
}

func TestBenchmarkAndNormalize(t *testing.T) {
	rows := []marketdata.Row{
		{Date: time.Date(2011, 1, 5, 0, 0, 0, 0, time.UTC), Closes: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(100)}},
		{Date: time.Date(2011, 1, 6, 0, 0, 0, 0, time.UTC), Closes: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(110)}},
		{Date: time.Date(2011, 1, 7, 0, 0, 0, 0, time.UTC), Closes: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(95)}},
	}
	table, err := marketdata.NewPriceTable(rows)
	require.NoError(t, err)

	bench, err := Benchmark(table, "SPY", table.Dates(), decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.Len(t, bench, 3)
	assert.True(t, bench[0].Equal(decimal.NewFromInt(1000)))
	assert.True(t, bench[1].Equal(decimal.NewFromInt(1100)))
	assert.True(t, bench[2].Equal(decimal.NewFromInt(950)))

	assert.Equal(t, []float64{1, 1.1, 0.95}, Normalize(bench))

	_, err = Benchmark(table, "QQQ", table.Dates(), decimal.NewFromInt(1000))
	require.Error(t, err)

	partial, err := Benchmark(table, "SPY", table.Dates()[1:], decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, partial[0].Equal(decimal.NewFromInt(1000)))
	assert.InDelta(t, 863.6364, partial[1].InexactFloat64(), 1e-4)
}

func TestRenderChart(t *testing.T) {
	dates := []time.Time{
		time.Date(2011, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 7, 0, 0, 0, 0, time.UTC),
	}

	png, err := RenderChart("Daily portfolio value and SPY", dates,
		Series{Name: "Portfolio", Values: values("1000", "1010", "1030")},
		Series{Name: "SPY", Values: values("100", "99", "101")},
	)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = RenderChart("bad", dates, Series{Name: "Portfolio", Values: values("1", "2")})
	require.Error(t, err)

	_, err = RenderChart("empty", dates)
	require.Error(t, err)
}

func TestPrintStats(t *testing.T) {
	fund, err := Compute(values("100", "101", "103.02"), DefaultOptions())
	require.NoError(t, err)
	bench, err := Compute(values("100", "99", "101"), DefaultOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintStats(&buf, fund, "SPY", &bench)
	out := buf.String()
	assert.Contains(t, out, "Sharpe Ratio")
	assert.Contains(t, out, "SPY")
	assert.Contains(t, out, "$103.02")

	buf.Reset()
	PrintStats(&buf, fund, "", nil)
	assert.NotContains(t, buf.String(), "SPY")
}
