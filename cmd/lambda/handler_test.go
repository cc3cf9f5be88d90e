package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vignesh-goutham/marketsim/pkg/backtest"
	"github.com/vignesh-goutham/marketsim/pkg/config"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/types"
)

type fakeStore struct {
	results []*backtest.Result
	errs    []error
	fail    error
}

func (s *fakeStore) SaveRun(ctx context.Context, result *backtest.Result, runErr error) error {
	s.results = append(s.results, result)
	s.errs = append(s.errs, runErr)
	return s.fail
}

type fakeNotifier struct {
	summaries []types.RunSummary
}

func (n *fakeNotifier) NotifyRun(ctx context.Context, summary types.RunSummary) error {
	n.summaries = append(n.summaries, summary)
	return errors.New("webhook down")
}

func newTestHandler(t *testing.T) (*handler, *fakeStore, *fakeNotifier) {
	t.Helper()
	closes := []int64{100, 110, 120}
	rows := make([]marketdata.Row, len(closes))
	for i, c := range closes {
		rows[i] = marketdata.Row{
			Date:   time.Date(2011, 1, 10+i, 0, 0, 0, 0, time.UTC),
			Closes: map[string]decimal.Decimal{"IBM": decimal.NewFromInt(c)},
		}
	}
	table, err := marketdata.NewPriceTable(rows)
	require.NoError(t, err)

	store := &fakeStore{}
	notifier := &fakeNotifier{}
	return &handler{
		cfg:      config.Default(),
		source:   marketdata.NewTableSource(table),
		store:    store,
		notifier: notifier,
	}, store, notifier
}

func TestHandle(t *testing.T) {
	h, store, notifier := newTestHandler(t)

	summary, err := h.Handle(context.Background(), SimulationRequest{
		StartVal: 10000,
		Orders:   "Date,Symbol,Order,Shares\n2011-01-10,IBM,BUY,50\n2011-01-12,IBM,SELL,50\n",
	})
	require.NoError(t, err)

	assert.Equal(t, types.RunStatusCompleted, summary.Status)
	assert.Equal(t, 3, summary.Days)
	assert.Equal(t, 2, summary.Executed)
	assert.True(t, summary.FinalValue.Equal(decimal.NewFromInt(11000)))
	require.Len(t, store.results, 1)
	assert.NoError(t, store.errs[0])
	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, summary.RunID, notifier.summaries[0].RunID)
}

func TestHandleSimulationError(t *testing.T) {
	h, store, _ := newTestHandler(t)

	summary, err := h.Handle(context.Background(), SimulationRequest{
		StartVal: 10000,
		Orders:   "Date,Symbol,Order,Shares\n2011-01-11,IBM,HOLD,5\n",
	})
	require.NoError(t, err)

	assert.Equal(t, types.RunStatusFailed, summary.Status)
	assert.Equal(t, "InvalidOrderSide", summary.ErrorKind)
	require.Len(t, store.errs, 1)
	assert.Error(t, store.errs[0])
}

func TestHandleRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		request SimulationRequest
	}{
		{
			name:    "no header",
			request: SimulationRequest{Orders: ""},
		},
		{
			name:    "bad start date",
			request: SimulationRequest{StartDate: "01/10/2011", Orders: "Date,Symbol,Order,Shares\n2011-01-10,IBM,BUY,1\n"},
		},
		{
			name:    "negative start value",
			request: SimulationRequest{StartVal: -1, Orders: "Date,Symbol,Order,Shares\n2011-01-10,IBM,BUY,1\n"},
		},
		{
			name:    "unknown symbol",
			request: SimulationRequest{Orders: "Date,Symbol,Order,Shares\n2011-01-10,MSFT,BUY,1\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store, _ := newTestHandler(t)
			_, err := h.Handle(context.Background(), tt.request)
			require.Error(t, err)
			assert.Empty(t, store.results)
		})
	}
}

func TestHandleStoreFailure(t *testing.T) {
	h, store, _ := newTestHandler(t)
	store.fail = errors.New("throttled")

	_, err := h.Handle(context.Background(), SimulationRequest{
		Orders: "Date,Symbol,Order,Shares\n2011-01-10,IBM,BUY,1\n",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
