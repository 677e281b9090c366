package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trading-signalcore/internal/model"
)

// Reader provides read-only access to recorded bars.
type Reader struct {
	db *sql.DB
}

// NewReader opens the database for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// LastBars returns up to n most recent bars of symbol and period, oldest
// first, ready for replay. A negative n returns every bar.
func (r *Reader) LastBars(ctx context.Context, symbol string, period time.Duration, n int) ([]model.Bar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT open_time, open, high, low, close, volume FROM (
			SELECT open_time, open, high, low, close, volume
			FROM bars
			WHERE symbol = ? AND period_s = ?
			ORDER BY open_time DESC
			LIMIT ?
		) ORDER BY open_time ASC
	`, symbol, int64(period/time.Second), n)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var ts int64
		var vol sql.NullFloat64
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &vol); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.OpenTime = time.Unix(ts, 0).UTC()
		b.Volume = vol.Float64
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
