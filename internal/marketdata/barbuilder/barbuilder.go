// Package barbuilder resamples a quote stream into closed bars.
// The forming bar is updated in O(1) per quote; when a quote arrives in a
// new bucket the previous bar is closed and emitted ahead of that quote.
package barbuilder

import (
	"context"
	"log/slog"
	"time"

	"trading-signalcore/internal/model"
)

// Builder turns bid quotes into bars of one fixed period. Volume counts
// ticks. Single consumer; not safe for concurrent use.
type Builder struct {
	symbol string
	period time.Duration

	bucket  time.Time
	forming model.Bar
	started bool
	latest  time.Time // newest quote time seen

	// StaleTolerance is how far behind the newest quote an out-of-order
	// quote may be and still count. Tolerated late quotes widen the
	// forming bar's range and tick volume but never move its close. Late
	// quotes whose bar has already closed are rejected. Zero rejects
	// every out-of-order quote.
	StaleTolerance time.Duration

	OnBar   func(b model.Bar) // called on every closed bar (optional)
	OnStale func()            // called when a stale quote is rejected (optional)
}

// New creates a builder for symbol with bars of period.
func New(symbol string, period time.Duration) *Builder {
	return &Builder{
		symbol:         symbol,
		period:         period,
		StaleTolerance: 2 * time.Second,
	}
}

// Period returns the bar length.
func (b *Builder) Period() time.Duration { return b.period }

// Forming returns the bar being built and whether one exists.
func (b *Builder) Forming() (model.Bar, bool) {
	return b.forming, b.started
}

// Add merges q into the forming bar. When q starts a new bucket the
// previous bar is returned with ok set.
func (b *Builder) Add(q model.Quote) (closed model.Bar, ok bool) {
	ts := q.TS.UTC()
	bucket := ts.Truncate(b.period)

	if b.started && ts.Before(b.latest) {
		lag := b.latest.Sub(ts)
		if b.StaleTolerance == 0 || lag > b.StaleTolerance || !bucket.Equal(b.bucket) {
			if b.OnStale != nil {
				b.OnStale()
			}
			return model.Bar{}, false
		}
		b.extend(q.Bid)
		return model.Bar{}, false
	}
	b.latest = ts

	if b.started && bucket.After(b.bucket) {
		closed, ok = b.forming, true
		if b.OnBar != nil {
			b.OnBar(closed)
		}
		b.started = false
	}

	if !b.started {
		b.bucket = bucket
		b.forming = model.Bar{OpenTime: bucket, Open: q.Bid, High: q.Bid, Low: q.Bid, Close: q.Bid, Volume: 1}
		b.started = true
		return closed, ok
	}

	b.extend(q.Bid)
	b.forming.Close = q.Bid
	return closed, ok
}

// extend widens the forming bar's range with bid and counts one tick.
func (b *Builder) extend(bid float64) {
	f := &b.forming
	if bid > f.High {
		f.High = bid
	}
	if bid < f.Low {
		f.Low = bid
	}
	f.Volume++
}

// Run reads events from in and forwards them to out, inserting a bar event
// before the first quote of every new bucket. Bar events from in pass
// through unchanged. The forming bar is never emitted: it is not closed.
// Blocks until ctx is cancelled or in is closed, then closes out.
func (b *Builder) Run(ctx context.Context, in <-chan model.Event, out chan<- model.Event) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if ev.Kind == model.EventQuote && ev.Quote != nil {
				if bar, closed := b.Add(*ev.Quote); closed {
					slog.Debug("bar closed", "component", "barbuilder", "symbol", b.symbol,
						"open_time", bar.OpenTime, "close", bar.Close, "ticks", bar.Volume)
					if !send(ctx, out, model.BarEvent(b.symbol, bar)) {
						return
					}
				}
			}
			if !send(ctx, out, ev) {
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- model.Event, ev model.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
