package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewPriceTable(t *testing.T) {
	tests := []struct {
		name          string
		rows          []Row
		expectError   bool
		errorContains string
	}{
		{
			name: "valid rows",
			rows: []Row{
				{Date: day("2011-01-10"), Closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(340)}},
				{Date: day("2011-01-11"), Closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(342)}},
			},
		},
		{
			name: "duplicate date",
			rows: []Row{
				{Date: day("2011-01-10"), Closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(340)}},
				{Date: day("2011-01-10"), Closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(341)}},
			},
			expectError:   true,
			errorContains: "strictly increasing",
		},
		{
			name: "decreasing date",
			rows: []Row{
				{Date: day("2011-01-11"), Closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(340)}},
				{Date: day("2011-01-10"), Closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(341)}},
			},
			expectError:   true,
			errorContains: "strictly increasing",
		},
		{
			name: "zero price",
			rows: []Row{
				{Date: day("2011-01-10"), Closes: map[string]decimal.Decimal{"AAPL": decimal.Zero}},
			},
			expectError:   true,
			errorContains: "non-positive price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewPriceTable(tt.rows)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.rows), table.Len())
		})
	}
}

func TestPriceTableLookups(t *testing.T) {
	table, err := NewPriceTable([]Row{
		{Date: day("2011-01-10"), Closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(340), "IBM": decimal.NewFromInt(147)}},
		{Date: day("2011-01-11"), Closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(342)}},
		{Date: day("2011-01-12"), Closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(345), "IBM": decimal.NewFromInt(149)}},
	})
	require.NoError(t, err)

	price, ok := table.Price("IBM", time.Date(2011, 1, 12, 16, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(149)))

	_, ok = table.Price("IBM", day("2011-01-11"))
	assert.False(t, ok)

	_, ok = table.Price("AAPL", day("2011-01-15"))
	assert.False(t, ok)

	assert.Equal(t, []string{"AAPL", "IBM"}, table.Symbols())
	assert.True(t, table.Has(day("2011-01-11")))
	assert.False(t, table.Has(day("2011-01-13")))

	series, err := table.Series("AAPL")
	require.NoError(t, err)
	assert.Len(t, series, 3)

	_, err = table.Series("IBM")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2011-01-11")

	sub := table.Slice(day("2011-01-11"), day("2011-01-30"))
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, day("2011-01-11"), sub.Date(0))
	assert.True(t, sub.Has(day("2011-01-12")))
	assert.False(t, sub.Has(day("2011-01-10")))

	empty := table.Slice(day("2012-01-01"), day("2012-02-01"))
	assert.Equal(t, 0, empty.Len())
}

func TestParseCloses(t *testing.T) {
	input := strings.Join([]string{
		"Date,Open,High,Low,Close,Volume,Adj Close",
		"2011-01-12,100,101,99,100.5,1000,98.25",
		"2011-01-11,100,101,99,100.5,1000,null",
		"2011-01-10,100,101,99,100.5,1000,97.5",
		"2010-12-31,100,101,99,100.5,1000,90",
	}, "\n")

	closes, err := ParseCloses(strings.NewReader(input), day("2011-01-01"), day("2011-01-31"))
	require.NoError(t, err)

	assert.Len(t, closes, 2)
	assert.True(t, closes[day("2011-01-12")].Equal(decimal.RequireFromString("98.25")))
	assert.True(t, closes[day("2011-01-10")].Equal(decimal.RequireFromString("97.5")))

	_, err = ParseCloses(strings.NewReader("Day,Close\n2011-01-10,1"), day("2011-01-01"), day("2011-01-31"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing Date column")
}

func TestCSVSourceCalendar(t *testing.T) {
	dir := t.TempDir()
	write := func(symbol, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(body), 0o644))
	}
	write("SPY", "Date,Close\n2011-01-10,127\n2011-01-11,128\n2011-01-12,129\n")
	write("AAPL", "Date,Close\n2011-01-10,340\n2011-01-12,345\n2011-01-15,350\n")

	t.Run("calendar symbol defines dates", func(t *testing.T) {
		source := NewCSVSource(dir, DefaultCalendarSymbol)
		table, err := source.GetPriceTable(context.Background(), []string{"AAPL"}, day("2011-01-01"), day("2011-01-31"))
		require.NoError(t, err)

		assert.Equal(t, []time.Time{day("2011-01-10"), day("2011-01-11"), day("2011-01-12")}, table.Dates())
		assert.Equal(t, []string{"AAPL"}, table.Symbols())
		_, ok := table.Price("AAPL", day("2011-01-11"))
		assert.False(t, ok)
	})

	t.Run("no calendar keeps common dates", func(t *testing.T) {
		source := NewCSVSource(dir, "")
		table, err := source.GetPriceTable(context.Background(), []string{"AAPL", "SPY"}, day("2011-01-01"), day("2011-01-31"))
		require.NoError(t, err)

		assert.Equal(t, []time.Time{day("2011-01-10"), day("2011-01-12")}, table.Dates())
	})

	t.Run("missing file", func(t *testing.T) {
		source := NewCSVSource(dir, DefaultCalendarSymbol)
		_, err := source.GetPriceTable(context.Background(), []string{"MSFT"}, day("2011-01-01"), day("2011-01-31"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MSFT")
	})
}
