// Package replay turns historical bars into the event stream a live feed
// would produce, for backtests. Each bar is expanded into four quotes
// walking its range (open, the nearer extreme, the other extreme, close)
// followed by the closed bar itself, so stop entries and SL/TP exits are
// exercised inside the bar the way they would be live.
package replay

import (
	"context"
	"log/slog"
	"time"

	"trading-signalcore/internal/model"
)

// Config holds replay settings.
type Config struct {
	Symbol    string
	BarPeriod time.Duration
	Spread    float64 // added to the bid to form the ask, price units

	// Speed scales the gaps between bars: 1 is real time, 100 is 100x,
	// 0 replays as fast as the consumer reads.
	Speed float64
}

// Replayer emits bar-derived events.
type Replayer struct {
	cfg Config
}

// New creates a Replayer.
func New(cfg Config) *Replayer {
	return &Replayer{cfg: cfg}
}

// Path returns the quotes synthesized for one bar, in time order. A
// bullish bar visits its low first, a bearish bar its high first.
func (r *Replayer) Path(b model.Bar) []model.Quote {
	step := r.cfg.BarPeriod / 4
	first, second := b.High, b.Low
	if b.IsBullish() {
		first, second = b.Low, b.High
	}
	prices := [4]float64{b.Open, first, second, b.Close}
	quotes := make([]model.Quote, len(prices))
	for i, p := range prices {
		quotes[i] = model.Quote{Bid: p, Ask: p + r.cfg.Spread, TS: b.OpenTime.Add(time.Duration(i) * step)}
	}
	return quotes
}

// Run emits every bar's quotes and then the bar to out, in order. It does
// not close out. Returns ctx.Err() when cancelled.
func (r *Replayer) Run(ctx context.Context, bars []model.Bar, out chan<- model.Event) error {
	if len(bars) == 0 {
		slog.Info("nothing to replay", "component", "replay")
		return nil
	}
	slog.Info("replay started", "component", "replay", "bars", len(bars), "speed", r.cfg.Speed)

	var prev time.Time
	for i, b := range bars {
		if r.cfg.Speed > 0 && !prev.IsZero() {
			if gap := b.OpenTime.Sub(prev); gap > 0 {
				wait := time.Duration(float64(gap) / r.cfg.Speed)
				if wait > 5*time.Second {
					wait = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
		}
		prev = b.OpenTime

		for _, q := range r.Path(b) {
			if err := send(ctx, out, model.QuoteEvent(r.cfg.Symbol, q)); err != nil {
				return err
			}
		}
		if err := send(ctx, out, model.BarEvent(r.cfg.Symbol, b)); err != nil {
			slog.Info("replay cancelled", "component", "replay", "emitted", i)
			return err
		}
	}
	slog.Info("replay completed", "component", "replay", "bars", len(bars))
	return nil
}

func send(ctx context.Context, out chan<- model.Event, ev model.Event) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
