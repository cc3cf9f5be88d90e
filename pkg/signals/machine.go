package signals

import (
	"fmt"
	"time"
)

// Diagnostics collects non-fatal conditions seen while running the machine
type Diagnostics struct {
	// MalformedDates lists dates whose bands were out of order
	MalformedDates []time.Time
}

// Malformed returns the number of malformed indicator rows
func (d Diagnostics) Malformed() int {
	return len(d.MalformedDates)
}

// Machine converts an indicator series of one symbol into trading states
type Machine struct {
	diagnostics Diagnostics
}

func NewMachine() *Machine {
	return &Machine{}
}

// Diagnostics returns what the last Run observed
func (m *Machine) Diagnostics() Diagnostics {
	return m.diagnostics
}

// Run returns one state per indicator row. The first row is always HOLD
// because it has no preceding day to compare against.
func (m *Machine) Run(series []Indicator) []State {
	m.diagnostics = Diagnostics{}
	if len(series) == 0 {
		return nil
	}

	states := make([]State, len(series))
	states[0] = StateHold
	m.observe(series[0])

	for i := 1; i < len(series); i++ {
		m.observe(series[i])
		states[i] = Next(states[i-1], series[i-1], series[i])
	}
	return states
}

func (m *Machine) observe(row Indicator) {
	if row.Malformed() {
		m.diagnostics.MalformedDates = append(m.diagnostics.MalformedDates, row.Date)
	}
}

// Next evaluates one transition from the current state using yesterday's
// and today's indicator rows.
func Next(current State, yesterday, today Indicator) State {
	switch current {
	case StateHold:
		if shortEntry(yesterday, today) {
			return StateShortEntry
		}
		if longEntry(yesterday, today) {
			return StateLongEntry
		}
		return StateHold

	case StateLongEntry, StateLong:
		if today.atOrAboveAverage() {
			return StateLongExit
		}
		return StateLong

	case StateShortEntry, StateShort:
		if today.atOrBelowAverage() {
			return StateShortExit
		}
		return StateShort

	case StateLongExit:
		if shortEntry(yesterday, today) {
			return StateShortEntry
		}
		return StateHold

	case StateShortExit:
		if longEntry(yesterday, today) {
			return StateLongEntry
		}
		return StateHold
	}

	panic(fmt.Sprintf("signals: unknown state %d", int(current)))
}

// shortEntry: price was above the upper band yesterday and is back at or under it today
func shortEntry(yesterday, today Indicator) bool {
	return yesterday.aboveUpper() && today.atOrBelowUpper()
}

// longEntry: price was below the lower band yesterday and is back at or over it today
func longEntry(yesterday, today Indicator) bool {
	return yesterday.belowLower() && today.atOrAboveLower()
}
