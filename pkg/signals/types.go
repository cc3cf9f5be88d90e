package signals

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the trading state of one symbol on one date
type State int

const (
	StateHold State = iota
	StateLongEntry
	StateLong
	StateLongExit
	StateShortEntry
	StateShort
	StateShortExit
)

var stateNames = [...]string{
	StateHold:       "HOLD",
	StateLongEntry:  "LONG_ENTRY",
	StateLong:       "LONG",
	StateLongExit:   "LONG_EXIT",
	StateShortEntry: "SHORT_ENTRY",
	StateShort:      "SHORT",
	StateShortExit:  "SHORT_EXIT",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

func (s State) IsEntry() bool {
	return s == StateLongEntry || s == StateShortEntry
}

func (s State) IsExit() bool {
	return s == StateLongExit || s == StateShortExit
}

// Indicator is one row of a price/band indicator series.
// Ready is false while the rolling window is still filling; every
// comparison against a row that is not ready evaluates to false.
type Indicator struct {
	Date          time.Time
	Price         decimal.Decimal
	MovingAverage decimal.Decimal
	UpperBand     decimal.Decimal
	LowerBand     decimal.Decimal
	Ready         bool
}

// Malformed reports bands that violate UpperBand >= MovingAverage >= LowerBand
func (i Indicator) Malformed() bool {
	if !i.Ready {
		return false
	}
	return i.UpperBand.LessThan(i.MovingAverage) || i.MovingAverage.LessThan(i.LowerBand)
}

func (i Indicator) aboveUpper() bool {
	return i.Ready && i.Price.GreaterThan(i.UpperBand)
}

func (i Indicator) atOrBelowUpper() bool {
	return i.Ready && i.Price.LessThanOrEqual(i.UpperBand)
}

func (i Indicator) belowLower() bool {
	return i.Ready && i.Price.LessThan(i.LowerBand)
}

func (i Indicator) atOrAboveLower() bool {
	return i.Ready && i.Price.GreaterThanOrEqual(i.LowerBand)
}

func (i Indicator) atOrAboveAverage() bool {
	return i.Ready && i.Price.GreaterThanOrEqual(i.MovingAverage)
}

func (i Indicator) atOrBelowAverage() bool {
	return i.Ready && i.Price.LessThanOrEqual(i.MovingAverage)
}
