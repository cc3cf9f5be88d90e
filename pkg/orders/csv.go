package orders

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
)

var header = []string{"Date", "Symbol", "Order", "Shares"}

// ReadFile loads an order file
func ReadFile(path string) ([]Order, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening order file: %w", err)
	}
	defer file.Close()

	return ReadCSV(file)
}

// ReadCSV parses Date,Symbol,Order,Shares records. The side is kept verbatim;
// an unknown side is rejected by the ledger on the order's date.
func ReadCSV(r io.Reader) ([]Order, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	head, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	columnMap := make(map[string]int)
	for i, col := range head {
		columnMap[strings.TrimSpace(col)] = i
	}
	for _, col := range header {
		if _, ok := columnMap[col]; !ok {
			return nil, fmt.Errorf("missing %s column", col)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV records: %w", err)
	}

	out := make([]Order, 0, len(records))
	for i, record := range records {
		line := i + 2

		date, err := marketdata.ParseDate(strings.TrimSpace(record[columnMap["Date"]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: error parsing Date: %w", line, err)
		}

		symbol := strings.TrimSpace(record[columnMap["Symbol"]])
		if symbol == "" {
			return nil, fmt.Errorf("line %d: empty Symbol", line)
		}

		shares, err := strconv.ParseInt(strings.TrimSpace(record[columnMap["Shares"]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: error parsing Shares: %w", line, err)
		}
		if shares <= 0 {
			return nil, fmt.Errorf("line %d: Shares must be positive, got %d", line, shares)
		}

		out = append(out, Order{
			Date:   date,
			Symbol: symbol,
			Side:   Side(strings.TrimSpace(record[columnMap["Order"]])),
			Shares: shares,
		})
	}

	return out, nil
}

// WriteFile stores orders as an order file
func WriteFile(path string, orders []Order) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating order file: %w", err)
	}

	if err := WriteCSV(file, orders); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteCSV writes orders with a Date,Symbol,Order,Shares header
func WriteCSV(w io.Writer, orders []Order) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}

	for _, o := range orders {
		record := []string{
			o.Date.Format(marketdata.DateLayout),
			o.Symbol,
			string(o.Side),
			strconv.FormatInt(o.Shares, 10),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("error writing order %s: %w", o, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
