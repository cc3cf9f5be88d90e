package alpaca

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	alpacadata "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"golang.org/x/time/rate"
)

// BarsClient is the part of the Alpaca market data client the source uses
type BarsClient interface {
	GetMultiBars(symbols []string, req alpacadata.GetBarsRequest) (map[string][]alpacadata.Bar, error)
}

// Config configures the Alpaca price source
type Config struct {
	APIKey    string
	APISecret string

	// CalendarSymbol's trading days define the calendar. Empty means the
	// dates common to every requested symbol.
	CalendarSymbol string

	RequestsPerSecond float64
	Burst             int

	// The circuit opens after FailureThreshold consecutive failures and
	// probes again after OpenTimeout
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultConfig reads credentials from ALPACA_API_KEY and ALPACA_SECRET_KEY
func DefaultConfig() Config {
	return Config{
		APIKey:            os.Getenv("ALPACA_API_KEY"),
		APISecret:         os.Getenv("ALPACA_SECRET_KEY"),
		CalendarSymbol:    marketdata.DefaultCalendarSymbol,
		RequestsPerSecond: 3,
		Burst:             1,
		FailureThreshold:  3,
		OpenTimeout:       30 * time.Second,
	}
}

// Source implements marketdata.PriceSource with split and dividend adjusted
// daily bars
type Source struct {
	client         BarsClient
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	calendarSymbol string
}

// NewSource creates a source backed by the Alpaca REST API
func NewSource(cfg Config) (*Source, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("ALPACA_API_KEY and ALPACA_SECRET_KEY must be set")
	}

	client := alpacadata.NewClient(alpacadata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	})
	return NewSourceWithClient(client, cfg), nil
}

// NewSourceWithClient creates a source around an existing client
func NewSourceWithClient(client BarsClient, cfg Config) *Source {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 3
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}

	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:    "alpaca-bars",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit state changed")
		},
	}

	return &Source{
		client:         client,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:        gobreaker.NewCircuitBreaker(settings),
		calendarSymbol: cfg.CalendarSymbol,
	}
}

// GetPriceTable implements marketdata.PriceSource
func (s *Source) GetPriceTable(ctx context.Context, symbols []string, from, to time.Time) (*marketdata.PriceTable, error) {
	from, to = marketdata.Day(from), marketdata.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("end date %s is before start date %s",
			to.Format(marketdata.DateLayout), from.Format(marketdata.DateLayout))
	}

	request := symbols
	if s.calendarSymbol != "" && !slices.Contains(symbols, s.calendarSymbol) {
		request = append(append([]string{}, symbols...), s.calendarSymbol)
	}

	bars, err := s.fetch(ctx, request, from, to)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string]map[time.Time]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		closes := toCloses(bars[symbol], from, to)
		if len(closes) == 0 {
			return nil, fmt.Errorf("no bars for %s between %s and %s", symbol,
				from.Format(marketdata.DateLayout), to.Format(marketdata.DateLayout))
		}
		bySymbol[symbol] = closes
	}

	var calendar map[time.Time]decimal.Decimal
	if s.calendarSymbol != "" {
		calendar = toCloses(bars[s.calendarSymbol], from, to)
	}

	table, err := marketdata.Assemble(bySymbol, calendar)
	if err != nil {
		return nil, err
	}
	log.Debug().Strs("symbols", symbols).Int("dates", table.Len()).Msg("Loaded Alpaca price table")
	return table, nil
}

func (s *Source) fetch(ctx context.Context, symbols []string, from, to time.Time) (map[string][]alpacadata.Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.GetMultiBars(symbols, alpacadata.GetBarsRequest{
			TimeFrame:  alpacadata.OneDay,
			Adjustment: alpacadata.All,
			Start:      from,
			// daily bars are stamped at New York midnight, hours after UTC midnight
			End: to.AddDate(0, 0, 1),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("error getting historical bars for %v: %w", symbols, err)
	}
	return out.(map[string][]alpacadata.Bar), nil
}

// toCloses keys bar closes by UTC calendar date inside [from, to]
func toCloses(bars []alpacadata.Bar, from, to time.Time) map[time.Time]decimal.Decimal {
	out := make(map[time.Time]decimal.Decimal, len(bars))
	for _, bar := range bars {
		date := marketdata.Day(bar.Timestamp.UTC())
		if date.Before(from) || date.After(to) {
			continue
		}
		out[date] = decimal.NewFromFloat(bar.Close)
	}
	return out
}
