package alpaca

import (
	"context"
	"errors"
	"testing"
	"time"

	alpacadata "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	bars     map[string][]alpacadata.Bar
	err      error
	calls    int
	requests []alpacadata.GetBarsRequest
	symbols  [][]string
}

func (f *fakeClient) GetMultiBars(symbols []string, req alpacadata.GetBarsRequest) (map[string][]alpacadata.Bar, error) {
	f.calls++
	f.symbols = append(f.symbols, symbols)
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

// bar stamps a close at New York midnight, as Alpaca does for daily bars
func bar(day int, close float64) alpacadata.Bar {
	return alpacadata.Bar{
		Timestamp: time.Date(2011, 1, day, 5, 0, 0, 0, time.UTC),
		Close:     close,
	}
}

func date(day int) time.Time {
	return time.Date(2011, 1, day, 0, 0, 0, 0, time.UTC)
}

func testConfig() Config {
	return Config{
		CalendarSymbol:    "SPY",
		RequestsPerSecond: 1000,
		Burst:             10,
		FailureThreshold:  2,
		OpenTimeout:       time.Minute,
	}
}

func TestGetPriceTable(t *testing.T) {
	client := &fakeClient{bars: map[string][]alpacadata.Bar{
		"SPY":  {bar(3, 127.05), bar(4, 126.98), bar(5, 127.64), bar(6, 127.39)},
		"AAPL": {bar(3, 329.57), bar(5, 334.00), bar(6, 333.73)},
	}}
	source := NewSourceWithClient(client, testConfig())

	table, err := source.GetPriceTable(context.Background(), []string{"AAPL"}, date(3), date(5))
	require.NoError(t, err)

	require.Equal(t, 1, client.calls)
	assert.Equal(t, []string{"AAPL", "SPY"}, client.symbols[0])
	assert.Equal(t, alpacadata.OneDay, client.requests[0].TimeFrame)
	assert.Equal(t, alpacadata.All, client.requests[0].Adjustment)
	assert.Equal(t, date(6), client.requests[0].End)

	assert.Equal(t, []time.Time{date(3), date(4), date(5)}, table.Dates())
	price, ok := table.Price("AAPL", date(5))
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("334")))

	_, ok = table.Price("AAPL", date(4))
	assert.False(t, ok)
	_, ok = table.Price("SPY", date(4))
	assert.False(t, ok, "calendar symbol is not part of the table unless requested")
}

func TestGetPriceTableCommonCalendar(t *testing.T) {
	client := &fakeClient{bars: map[string][]alpacadata.Bar{
		"IBM":  {bar(3, 146.76), bar(4, 147.64), bar(5, 147.05)},
		"AAPL": {bar(3, 329.57), bar(5, 334.00)},
	}}
	cfg := testConfig()
	cfg.CalendarSymbol = ""
	source := NewSourceWithClient(client, cfg)

	table, err := source.GetPriceTable(context.Background(), []string{"AAPL", "IBM"}, date(3), date(5))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "IBM"}, client.symbols[0])
	assert.Equal(t, []time.Time{date(3), date(5)}, table.Dates())
}

func TestGetPriceTableMissingSymbol(t *testing.T) {
	client := &fakeClient{bars: map[string][]alpacadata.Bar{
		"SPY": {bar(3, 127.05)},
	}}
	source := NewSourceWithClient(client, testConfig())

	_, err := source.GetPriceTable(context.Background(), []string{"XYZ"}, date(3), date(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bars for XYZ")
}

func TestGetPriceTableBreakerOpens(t *testing.T) {
	client := &fakeClient{err: errors.New("503 service unavailable")}
	source := NewSourceWithClient(client, testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := source.GetPriceTable(ctx, []string{"AAPL"}, date(3), date(5))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	}

	_, err := source.GetPriceTable(ctx, []string{"AAPL"}, date(3), date(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, 2, client.calls)
}

func TestGetPriceTableCancelled(t *testing.T) {
	client := &fakeClient{}
	cfg := testConfig()
	cfg.RequestsPerSecond = 0.001
	cfg.Burst = 1
	source := NewSourceWithClient(client, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.GetPriceTable(ctx, []string{"AAPL"}, date(3), date(5))
	require.Error(t, err)
	assert.Equal(t, 0, client.calls)
}

func TestNewSourceRequiresCredentials(t *testing.T) {
	_, err := NewSource(Config{})
	require.Error(t, err)
}
