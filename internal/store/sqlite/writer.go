// Package sqlite records closed bars and reads them back for indicator
// warm-up. The database runs in WAL mode so a reader can warm up while the
// recorder writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-signalcore/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond

	dsnOptions = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
)

// WriterConfig configures the bar recorder.
type WriterConfig struct {
	DBPath string        // e.g. "data/bars.db"
	Period time.Duration // bar period recorded with every row
}

// Writer is a single-goroutine bar recorder with transaction batching.
type Writer struct {
	db     *sql.DB
	period int64 // seconds
	log    *slog.Logger

	// OnCommit observes each committed batch (optional).
	OnCommit func(n int, d time.Duration)
}

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("sqlite writer: bar period must be positive")
	}
	db, err := sql.Open("sqlite3", cfg.DBPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite opened", "component", "sqlite", "path", cfg.DBPath)
	return &Writer{
		db:     db,
		period: int64(cfg.Period / time.Second),
		log:    slog.With("component", "sqlite"),
	}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol    TEXT    NOT NULL,
			period_s  INTEGER NOT NULL,
			open_time INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL,
			PRIMARY KEY (symbol, period_s, open_time)
		);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// Run records the bar events read from events in batched transactions.
// Quotes are ignored. Flushes every batch size bars or every flush delay,
// whichever comes first. Blocks until ctx is cancelled or events is closed.
func (w *Writer) Run(ctx context.Context, symbol string, events <-chan model.Event) {
	batch := make([]model.Bar, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.WriteBars(symbol, batch); err != nil {
			w.log.Error("batch insert failed", "bars", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case ev, ok := <-events:
			if !ok {
				flush()
				return
			}
			if ev.Kind != model.EventBar || ev.Bar == nil {
				continue
			}
			batch = append(batch, *ev.Bar)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// WriteBars inserts bars in a single transaction. Re-recording a bar
// replaces it.
func (w *Writer) WriteBars(symbol string, bars []model.Bar) error {
	start := time.Now()
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, period_s, open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(symbol, w.period, b.OpenTime.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	d := time.Since(start)
	if w.OnCommit != nil {
		w.OnCommit(len(bars), d)
	}
	w.log.Debug("committed bars", "bars", len(bars), "duration", d)
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
