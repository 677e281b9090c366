// Package parquet reads and writes bar files in the aggregate-bar layout
// used by market data crawlers (millisecond timestamp plus OHLCV), so
// exported history can warm the indicators up directly.
package parquet

import (
	"fmt"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"trading-signalcore/internal/model"
)

// Row is one bar on disk.
type Row struct {
	Timestamp    int64   `json:"t" parquet:"t"` // open time, unix milliseconds
	Open         float64 `json:"o" parquet:"o"`
	High         float64 `json:"h" parquet:"h"`
	Low          float64 `json:"l" parquet:"l"`
	Close        float64 `json:"c" parquet:"c"`
	Volume       int64   `json:"v" parquet:"v"`
	VWAP         float64 `json:"vw,omitempty" parquet:"vw,optional"`
	Transactions int64   `json:"n,omitempty" parquet:"n,optional"`
}

// FromBar converts a bar to a row.
func FromBar(b model.Bar) Row {
	return Row{
		Timestamp: b.OpenTime.UnixMilli(),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    int64(b.Volume),
	}
}

// Bar converts a row to a bar.
func (r Row) Bar() model.Bar {
	return model.Bar{
		OpenTime: time.UnixMilli(r.Timestamp).UTC(),
		Open:     r.Open,
		High:     r.High,
		Low:      r.Low,
		Close:    r.Close,
		Volume:   float64(r.Volume),
	}
}

// WriteBars writes bars to path.
func WriteBars(path string, bars []model.Bar) error {
	rows := make([]Row, len(bars))
	for i, b := range bars {
		rows[i] = FromBar(b)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("parquet write %s: %w", path, err)
	}
	return nil
}

// ReadBars reads every bar in path sorted by open time. When last > 0 only
// the most recent last bars are returned.
func ReadBars(path string, last int) ([]model.Bar, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("parquet read %s: %w", path, err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	if last > 0 && len(rows) > last {
		rows = rows[len(rows)-last:]
	}
	bars := make([]model.Bar, len(rows))
	for i, r := range rows {
		bars[i] = r.Bar()
	}
	return bars, nil
}
