package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/orders"
)

// ErrorKind classifies fatal simulation failures
type ErrorKind int

const (
	InvalidOrderSide ErrorKind = iota + 1
	LeverageExceeded
	UnknownSymbolOrDate
	NonPositiveEquity
	InvalidOrderShares
)

var (
	ErrInvalidOrderSide    = errors.New("invalid order side")
	ErrLeverageExceeded    = errors.New("leverage exceeded")
	ErrUnknownSymbolOrDate = errors.New("unknown symbol or date")
	ErrNonPositiveEquity   = errors.New("non-positive equity")
	ErrInvalidOrderShares  = errors.New("invalid order shares")
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidOrderSide:
		return "InvalidOrderSide"
	case LeverageExceeded:
		return "LeverageExceeded"
	case UnknownSymbolOrDate:
		return "UnknownSymbolOrDate"
	case NonPositiveEquity:
		return "NonPositiveEquity"
	case InvalidOrderShares:
		return "InvalidOrderShares"
	}
	return "Unknown"
}

func (k ErrorKind) sentinel() error {
	switch k {
	case InvalidOrderSide:
		return ErrInvalidOrderSide
	case LeverageExceeded:
		return ErrLeverageExceeded
	case UnknownSymbolOrDate:
		return ErrUnknownSymbolOrDate
	case NonPositiveEquity:
		return ErrNonPositiveEquity
	case InvalidOrderShares:
		return ErrInvalidOrderShares
	}
	return nil
}

// SimulationError is a fatal failure on one simulated date. Only the fields
// relevant to Kind are set. A LeverageExceeded error carries the cash and
// exposure the leverage was computed from.
type SimulationError struct {
	Kind     ErrorKind
	Date     time.Time
	Symbol   string
	Side     orders.Side
	Shares   int64
	Cash     decimal.Decimal
	Longs    decimal.Decimal
	Shorts   decimal.Decimal
	Leverage decimal.Decimal
	Limit    decimal.Decimal
	Equity   decimal.Decimal
}

func (e *SimulationError) Error() string {
	date := e.Date.Format(marketdata.DateLayout)
	switch e.Kind {
	case InvalidOrderSide:
		return fmt.Sprintf("%s: invalid order side %q for %s", date, string(e.Side), e.Symbol)
	case LeverageExceeded:
		return fmt.Sprintf("%s: leverage %s exceeds %s (longs %s, shorts %s, cash %s)", date,
			e.Leverage.StringFixed(4), e.Limit.String(), e.Longs.StringFixed(2), e.Shorts.StringFixed(2), e.Cash.StringFixed(2))
	case UnknownSymbolOrDate:
		return fmt.Sprintf("%s: no price for %s", date, e.Symbol)
	case NonPositiveEquity:
		return fmt.Sprintf("%s: equity %s is not positive, leverage undefined", date, e.Equity.StringFixed(2))
	case InvalidOrderShares:
		return fmt.Sprintf("%s: invalid share count %d for %s %s", date, e.Shares, string(e.Side), e.Symbol)
	}
	return fmt.Sprintf("%s: simulation error", date)
}

// Unwrap lets errors.Is match the sentinel of the error's kind
func (e *SimulationError) Unwrap() error {
	return e.Kind.sentinel()
}
