package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vicanso/go-charts/v2"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
)

// Series is one named line of a chart
type Series struct {
	Name   string
	Values []decimal.Decimal
}

// RenderChart draws every series normalized to 1.0 on the first date and
// returns the PNG bytes
func RenderChart(title string, dates []time.Time, series ...Series) ([]byte, error) {
	if len(series) == 0 {
		return nil, errors.New("no series to chart")
	}
	if len(dates) < 2 {
		return nil, errors.New("at least two dates are required")
	}

	names := make([]string, 0, len(series))
	values := make([][]float64, 0, len(series))
	yMin, yMax := 0.0, 0.0
	for i, s := range series {
		if len(s.Values) != len(dates) {
			return nil, fmt.Errorf("series %s has %d values for %d dates", s.Name, len(s.Values), len(dates))
		}
		normalized := Normalize(s.Values)
		for j, v := range normalized {
			if (i == 0 && j == 0) || v < yMin {
				yMin = v
			}
			if (i == 0 && j == 0) || v > yMax {
				yMax = v
			}
		}
		names = append(names, s.Name)
		values = append(values, normalized)
	}

	padding := (yMax - yMin) * 0.05
	if padding == 0 {
		padding = yMax * 0.05
	}
	yMin -= padding
	yMax += padding

	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = d.Format(marketdata.DateLayout)
	}

	split := 6
	if len(labels) <= 30 {
		split = max(len(labels)/3, 2)
	}

	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			SplitNumber: split,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}
