package marketdata

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// PriceSource is the interface for historical daily close providers
type PriceSource interface {
	// GetPriceTable returns closes for symbols over [from, to]. The
	// returned date index defines the trading calendar.
	GetPriceTable(ctx context.Context, symbols []string, from, to time.Time) (*PriceTable, error)
}

// TableSource serves requests from a table already in memory
type TableSource struct {
	table *PriceTable
}

func NewTableSource(table *PriceTable) *TableSource {
	return &TableSource{table: table}
}

// GetPriceTable implements PriceSource. Every requested symbol must appear
// somewhere in the table.
func (s *TableSource) GetPriceTable(ctx context.Context, symbols []string, from, to time.Time) (*PriceTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	known := s.table.Symbols()
	for _, symbol := range symbols {
		if !slices.Contains(known, symbol) {
			return nil, fmt.Errorf("no prices for symbol %s", symbol)
		}
	}
	return s.table.Slice(from, to), nil
}
