package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	r := New()

	r.RecordRun(4, 1, decimal.NewFromInt(100500), 0.2, "")
	r.RecordRun(2, 0, decimal.Zero, 0.1, "LeverageExceeded")

	assert.Equal(t, float64(6), testutil.ToFloat64(r.OrdersExecuted))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.OrdersDropped))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Runs.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Runs.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.SimulationErrors.WithLabelValues("LeverageExceeded")))
	assert.Equal(t, float64(100500), testutil.ToFloat64(r.FinalValue))
}

func TestRecordMalformed(t *testing.T) {
	r := New()

	r.RecordMalformed("IBM", 0)
	r.RecordMalformed("IBM", 3)

	assert.Equal(t, float64(3), testutil.ToFloat64(r.MalformedIndicators.WithLabelValues("IBM")))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder

	assert.NotPanics(t, func() {
		r.RecordRun(1, 1, decimal.NewFromInt(1), 1, "")
		r.RecordMalformed("IBM", 1)
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.Push(context.Background(), "http://localhost:9091", "marketsim"))
}

func TestPush(t *testing.T) {
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotMethod = req.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := New()
	r.RecordRun(1, 0, decimal.NewFromInt(10), 0.01, "")

	require.NoError(t, r.Push(context.Background(), server.URL, "marketsim"))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/metrics/job/marketsim", gotPath)
}

func TestPushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := New().Push(context.Background(), server.URL, "marketsim")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push metrics")
}
