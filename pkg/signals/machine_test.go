package signals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func row(price, ma, upper, lower int64) Indicator {
	return Indicator{
		Price:         decimal.NewFromInt(price),
		MovingAverage: decimal.NewFromInt(ma),
		UpperBand:     decimal.NewFromInt(upper),
		LowerBand:     decimal.NewFromInt(lower),
		Ready:         true,
	}
}

func TestMachineRun(t *testing.T) {
	tests := []struct {
		name     string
		series   []Indicator
		expected []State
	}{
		{
			name:     "empty series",
			series:   nil,
			expected: nil,
		},
		{
			name:     "first date is always hold",
			series:   []Indicator{row(85, 100, 110, 90)},
			expected: []State{StateHold},
		},
		{
			name: "long entry then exit at moving average",
			series: []Indicator{
				row(85, 100, 110, 90),
				row(95, 100, 110, 90),
				row(101, 100, 110, 90),
			},
			expected: []State{StateHold, StateLongEntry, StateLongExit},
		},
		{
			name: "long held below moving average",
			series: []Indicator{
				row(85, 100, 110, 90),
				row(90, 100, 110, 90),
				row(92, 100, 110, 90),
				row(99, 100, 110, 90),
				row(100, 100, 110, 90),
				row(100, 100, 110, 90),
			},
			expected: []State{StateHold, StateLongEntry, StateLong, StateLong, StateLongExit, StateHold},
		},
		{
			name: "short entry, short, exit",
			series: []Indicator{
				row(115, 100, 110, 90),
				row(110, 100, 110, 90),
				row(102, 100, 110, 90),
				row(100, 100, 110, 90),
			},
			expected: []State{StateHold, StateShortEntry, StateShort, StateShortExit},
		},
		{
			name: "still outside the band keeps hold",
			series: []Indicator{
				row(115, 100, 110, 90),
				row(112, 100, 110, 90),
				row(113, 100, 110, 90),
				row(114, 100, 110, 90),
			},
			expected: []State{StateHold, StateHold, StateHold, StateHold},
		},
		{
			name: "long exit re-checks short entry on the next day",
			series: []Indicator{
				row(85, 100, 110, 90),
				row(95, 100, 110, 90),
				row(115, 100, 110, 90),
				row(105, 100, 110, 90),
			},
			expected: []State{StateHold, StateLongEntry, StateLongExit, StateShortEntry},
		},
		{
			name: "short exit re-checks long entry on the next day",
			series: []Indicator{
				row(115, 100, 110, 90),
				row(105, 100, 110, 90),
				row(85, 100, 110, 90),
				row(92, 100, 110, 90),
			},
			expected: []State{StateHold, StateShortEntry, StateShortExit, StateLongEntry},
		},
		{
			name: "long exit does not re-enter long",
			series: []Indicator{
				row(85, 100, 110, 90),
				row(95, 100, 110, 90),
				row(100, 100, 110, 90),
				row(85, 100, 110, 90),
				row(95, 100, 110, 90),
			},
			expected: []State{StateHold, StateLongEntry, StateLongExit, StateHold, StateLongEntry},
		},
		{
			name: "rows that are not ready never trigger",
			series: []Indicator{
				{Price: decimal.NewFromInt(85)},
				{Price: decimal.NewFromInt(95)},
				row(85, 100, 110, 90),
				row(95, 100, 110, 90),
			},
			expected: []State{StateHold, StateHold, StateHold, StateLongEntry},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewMachine()
			assert.Equal(t, tt.expected, machine.Run(tt.series))
			assert.Equal(t, 0, machine.Diagnostics().Malformed())
		})
	}
}

func TestMachineMalformedIndicator(t *testing.T) {
	bad := row(95, 100, 90, 110)
	bad.Date = time.Date(2011, 1, 11, 0, 0, 0, 0, time.UTC)

	machine := NewMachine()
	states := machine.Run([]Indicator{row(85, 100, 110, 90), bad, row(101, 100, 110, 90)})

	// raw comparisons only: 95 is under the lower band 110, then over the upper band 90
	assert.Equal(t, []State{StateHold, StateHold, StateShortEntry}, states)
	assert.Equal(t, 1, machine.Diagnostics().Malformed())
	assert.Equal(t, []time.Time{bad.Date}, machine.Diagnostics().MalformedDates)

	machine.Run([]Indicator{row(85, 100, 110, 90)})
	assert.Equal(t, 0, machine.Diagnostics().Malformed())
}

func TestNextUnknownState(t *testing.T) {
	assert.Panics(t, func() {
		Next(State(42), row(1, 1, 1, 1), row(1, 1, 1, 1))
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "HOLD", StateHold.String())
	assert.Equal(t, "SHORT_EXIT", StateShortExit.String())
	assert.Equal(t, "UNKNOWN", State(-1).String())
	assert.True(t, StateLongEntry.IsEntry())
	assert.True(t, StateShortExit.IsExit())
	assert.False(t, StateLong.IsEntry())
}
