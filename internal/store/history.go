// Package store selects where historical bars come from.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"trading-signalcore/internal/model"
	parquetstore "trading-signalcore/internal/store/parquet"
	sqlitestore "trading-signalcore/internal/store/sqlite"
)

// Source describes the history to load. A parquet file takes precedence
// over the sqlite recorder database.
type Source struct {
	ParquetPath string
	SQLitePath  string
	Symbol      string
	Period      time.Duration
	Limit       int // most recent bars to return, 0 for all parquet rows
}

// LoadBars returns the history oldest first and names where it came from.
// A missing sqlite database yields no bars and no error: a first run has
// nothing recorded yet.
func LoadBars(ctx context.Context, src Source) ([]model.Bar, string, error) {
	if src.ParquetPath != "" {
		bars, err := parquetstore.ReadBars(src.ParquetPath, src.Limit)
		return bars, "parquet", err
	}
	if src.SQLitePath == "" {
		return nil, "", nil
	}
	if _, err := os.Stat(src.SQLitePath); errors.Is(err, fs.ErrNotExist) {
		return nil, "", nil
	}
	r, err := sqlitestore.NewReader(src.SQLitePath)
	if err != nil {
		return nil, "sqlite", err
	}
	defer r.Close()

	limit := src.Limit
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	bars, err := r.LastBars(ctx, src.Symbol, src.Period, limit)
	if err != nil {
		return nil, "sqlite", fmt.Errorf("load history: %w", err)
	}
	return bars, "sqlite", nil
}
