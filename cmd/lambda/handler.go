package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/marketsim/pkg/backtest"
	"github.com/vignesh-goutham/marketsim/pkg/config"
	"github.com/vignesh-goutham/marketsim/pkg/dynamodb"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/metrics"
	"github.com/vignesh-goutham/marketsim/pkg/orders"
	"github.com/vignesh-goutham/marketsim/pkg/types"
)

const invocationTimeout = 5 * time.Minute

// SimulationRequest is the invocation payload. Orders is an order file in
// its CSV form; zero values fall back to the configuration.
type SimulationRequest struct {
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	StartVal    float64 `json:"start_val"`
	MaxLeverage float64 `json:"max_leverage"`
	Orders      string  `json:"orders"`
}

type runStore interface {
	SaveRun(ctx context.Context, result *backtest.Result, runErr error) error
}

type runNotifier interface {
	NotifyRun(ctx context.Context, summary types.RunSummary) error
}

type handler struct {
	cfg      *config.Config
	source   marketdata.PriceSource
	store    runStore
	notifier runNotifier
}

// Handle simulates the requested orders. A run that stops on a simulation
// error still returns its summary with status FAILED; only requests that
// cannot run at all return an error.
func (h *handler) Handle(ctx context.Context, request SimulationRequest) (*types.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, invocationTimeout)
	defer cancel()

	req, err := h.backtestRequest(request)
	if err != nil {
		return nil, err
	}
	log.Info().Int("orders", len(req.Orders)).Msg("Simulation triggered")

	recorder := metrics.New()
	result, runErr := backtest.NewBacktester(h.source, backtest.WithRecorder(recorder)).Run(ctx, req)
	if result == nil {
		return nil, runErr
	}
	if runErr != nil {
		log.Warn().Err(runErr).Str("run_id", result.RunID).Msg("Simulation stopped")
	}

	summary := dynamodb.Summarize(result, runErr)
	if h.store != nil {
		if err := h.store.SaveRun(ctx, result, runErr); err != nil {
			return nil, fmt.Errorf("failed to save run %s: %w", result.RunID, err)
		}
	}
	if h.notifier != nil {
		if err := h.notifier.NotifyRun(ctx, summary); err != nil {
			log.Error().Err(err).Msg("Failed to send Discord notification")
		}
	}
	if err := recorder.Push(ctx, h.cfg.Metrics.PushgatewayURL, h.cfg.Metrics.Job); err != nil {
		log.Error().Err(err).Msg("Failed to push metrics")
	}

	log.Info().Str("run_id", summary.RunID).Str("status", string(summary.Status)).Msg("Simulation finished")
	return &summary, nil
}

func (h *handler) backtestRequest(request SimulationRequest) (backtest.Request, error) {
	stream, err := orders.ReadCSV(strings.NewReader(request.Orders))
	if err != nil {
		return backtest.Request{}, fmt.Errorf("invalid orders: %w", err)
	}

	startVal := h.cfg.Simulation.StartVal
	if request.StartVal != 0 {
		startVal = request.StartVal
	}
	maxLeverage := h.cfg.Simulation.MaxLeverage
	if request.MaxLeverage != 0 {
		maxLeverage = request.MaxLeverage
	}
	if startVal <= 0 {
		return backtest.Request{}, fmt.Errorf("start_val must be > 0, got %v", startVal)
	}
	if maxLeverage <= 0 {
		return backtest.Request{}, fmt.Errorf("max_leverage must be > 0, got %v", maxLeverage)
	}

	req := backtest.Request{
		StartingCash: decimal.NewFromFloat(startVal),
		Orders:       stream,
		MaxLeverage:  decimal.NewFromFloat(maxLeverage),
	}
	if request.StartDate != "" {
		if req.Start, err = marketdata.ParseDate(request.StartDate); err != nil {
			return backtest.Request{}, fmt.Errorf("invalid start_date: %w", err)
		}
	}
	if request.EndDate != "" {
		if req.End, err = marketdata.ParseDate(request.EndDate); err != nil {
			return backtest.Request{}, fmt.Errorf("invalid end_date: %w", err)
		}
	}
	return req, nil
}
