package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultCalendarSymbol is the symbol whose trading days define the calendar
const DefaultCalendarSymbol = "SPY"

// CSVSource reads daily closes from one <SYMBOL>.csv file per symbol in a
// directory. Files need a Date column and either "Adj Close" or "Close".
type CSVSource struct {
	dir            string
	calendarSymbol string
}

// NewCSVSource creates a CSV price source. With an empty calendarSymbol the
// calendar is the set of dates on which every requested symbol has a price.
func NewCSVSource(dir, calendarSymbol string) *CSVSource {
	return &CSVSource{
		dir:            dir,
		calendarSymbol: calendarSymbol,
	}
}

// GetPriceTable implements PriceSource
func (s *CSVSource) GetPriceTable(ctx context.Context, symbols []string, from, to time.Time) (*PriceTable, error) {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("end date %s is before start date %s", to.Format(DateLayout), from.Format(DateLayout))
	}

	bySymbol := make(map[string]map[time.Time]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		closes, err := s.readSymbol(symbol, from, to)
		if err != nil {
			return nil, err
		}
		bySymbol[symbol] = closes
	}

	var calendar map[time.Time]decimal.Decimal
	if s.calendarSymbol != "" {
		var ok bool
		calendar, ok = bySymbol[s.calendarSymbol]
		if !ok {
			var err error
			calendar, err = s.readSymbol(s.calendarSymbol, from, to)
			if err != nil {
				return nil, fmt.Errorf("error reading calendar symbol: %w", err)
			}
		}
	}

	table, err := Assemble(bySymbol, calendar)
	if err != nil {
		return nil, err
	}
	log.Debug().Strs("symbols", symbols).Int("dates", table.Len()).Str("dir", s.dir).Msg("Loaded CSV price table")
	return table, nil
}

func (s *CSVSource) readSymbol(symbol string, from, to time.Time) (map[time.Time]decimal.Decimal, error) {
	path := filepath.Join(s.dir, symbol+".csv")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening price file for %s: %w", symbol, err)
	}
	defer file.Close()

	closes, err := ParseCloses(file, from, to)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return closes, nil
}

// ParseCloses reads a Date/Close CSV and returns the closes inside [from, to].
// Empty and "null" cells are skipped.
func ParseCloses(r io.Reader, from, to time.Time) (map[time.Time]decimal.Decimal, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	columnMap := make(map[string]int)
	for i, col := range header {
		columnMap[strings.TrimSpace(col)] = i
	}

	dateCol, ok := columnMap["Date"]
	if !ok {
		return nil, errors.New("missing Date column")
	}
	closeCol, ok := columnMap["Adj Close"]
	if !ok {
		closeCol, ok = columnMap["Close"]
		if !ok {
			return nil, errors.New("missing Adj Close or Close column")
		}
	}

	closes := make(map[time.Time]decimal.Decimal)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV record: %w", err)
		}

		date, err := ParseDate(strings.TrimSpace(record[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("error parsing date %q: %w", record[dateCol], err)
		}
		if date.Before(from) || date.After(to) {
			continue
		}

		cell := strings.TrimSpace(record[closeCol])
		if cell == "" || strings.EqualFold(cell, "null") {
			continue
		}
		price, err := decimal.NewFromString(cell)
		if err != nil {
			return nil, fmt.Errorf("error parsing close %q on %s: %w", cell, date.Format(DateLayout), err)
		}
		closes[date] = price
	}

	return closes, nil
}
