// Package robot runs the single-instrument event loop.
//
// Bars and quotes are handled strictly in arrival order, one at a time, on
// the goroutine that calls Run (or OnBar/OnQuote directly). Indicator
// history and the Manager's per-cycle memory are only touched from there,
// so no locking is needed.
package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trading-signalcore/internal/execution"
	"trading-signalcore/internal/indicator"
	"trading-signalcore/internal/logger"
	"trading-signalcore/internal/metrics"
	"trading-signalcore/internal/model"
	"trading-signalcore/internal/notification"
	"trading-signalcore/internal/risk"
	"trading-signalcore/internal/strategy"
)

// Config holds robot-level settings.
type Config struct {
	Symbol      string        `yaml:"symbol" json:"symbol"`
	BarPeriod   time.Duration `yaml:"bar_period" json:"bar_period"`
	HistorySize int           `yaml:"history_size" json:"history_size"`
}

// QuoteSink receives every quote before the robot reacts to it (the paper
// broker uses it to fill orders).
type QuoteSink interface {
	OnQuote(q model.Quote)
}

// Deps are the collaborators of a Robot. Notifier, Metrics, Health and
// QuoteSink are optional.
type Deps struct {
	Strategy  strategy.Strategy
	Broker    model.Broker
	Sizer     *risk.Sizer
	Execution execution.Config
	Notifier  notification.Notifier
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
	QuoteSink QuoteSink
}

// Robot wires indicators, strategy, sizing and the order manager together.
type Robot struct {
	cfg      Config
	strat    strategy.Strategy
	eng      *indicator.Engine
	broker   model.Broker
	mgr      *execution.Manager
	sizer    *risk.Sizer
	notifier notification.Notifier
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	sink     QuoteSink
	exitRef  string
	log      *slog.Logger
}

// New builds a Robot and registers the strategy's indicators.
func New(cfg Config, d Deps) (*Robot, error) {
	if d.Strategy == nil || d.Broker == nil || d.Sizer == nil {
		return nil, errors.New("robot: strategy, broker and sizer are required")
	}
	eng := indicator.NewEngine(cfg.HistorySize)
	if err := eng.Build(d.Strategy.Indicators()); err != nil {
		return nil, fmt.Errorf("robot: %w", err)
	}
	if d.Metrics != nil {
		eng.OnUpdate = d.Metrics.ObserveIndicatorUpdate
	}
	return &Robot{
		cfg:      cfg,
		strat:    d.Strategy,
		eng:      eng,
		broker:   d.Broker,
		mgr:      execution.NewManager(d.Broker, d.Execution, d.Metrics),
		sizer:    d.Sizer,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		health:   d.Health,
		sink:     d.QuoteSink,
		exitRef:  d.Strategy.ExitReference(),
		log:      slog.With("component", "robot", "symbol", cfg.Symbol, "strategy", d.Strategy.Name()),
	}, nil
}

// Engine exposes the indicator engine.
func (r *Robot) Engine() *indicator.Engine { return r.eng }

// Warmup replays historical bars through the indicators only. No signal
// is evaluated and no order is sent.
func (r *Robot) Warmup(bars []model.Bar) {
	r.eng.Warmup(bars)
	if r.health != nil {
		r.health.SetIndicatorsReady(r.eng.Ready())
	}
	r.log.Info("indicators warmed up", "bars", len(bars), "ready", r.eng.Ready())
}

// Run consumes events until ctx is done or events is closed.
func (r *Robot) Run(ctx context.Context, events <-chan model.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if r.health != nil {
				r.health.SetLastEventTime(ev.TS())
			}
			switch ev.Kind {
			case model.EventBar:
				r.OnBar(ctx, *ev.Bar)
			case model.EventQuote:
				r.OnQuote(ctx, *ev.Quote)
			}
		}
	}
}

// OnBar handles one closed bar: update indicators, reconcile the book,
// evaluate the strategy, then carry out its decision.
func (r *Robot) OnBar(ctx context.Context, bar model.Bar) {
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(r.cfg.Symbol, bar.OpenTime))
	trace := logger.LogWithTrace(ctx)

	if r.metrics != nil {
		r.metrics.BarsTotal.Inc()
	}
	r.eng.Update(bar)
	if r.health != nil {
		r.health.SetIndicatorsReady(r.eng.Ready())
	}

	// reconciliation point: requests of the previous cycle may be reissued
	r.mgr.ResetCycle()

	sym := r.broker.Symbol(ctx)
	positions := r.mgr.Positions(ctx)
	pending := r.mgr.PendingOrders(ctx)
	r.metrics.SetBook(len(positions), len(pending))

	snap := strategy.Snapshot{
		BarIndex:  r.eng.BarCount() - 1,
		Time:      bar.OpenTime.Add(r.cfg.BarPeriod),
		Symbol:    sym,
		Positions: positions,
		Pending:   pending,
	}
	d, err := r.strat.Evaluate(r.eng, snap)
	r.housekeep(ctx, d, snap)

	if err != nil {
		reason := "error"
		if errors.Is(err, indicator.ErrInsufficientHistory) {
			reason = "insufficient_history"
			r.log.Debug("no signal", append(trace, "reason", err.Error())...)
		} else {
			r.log.Warn("strategy evaluation failed", append(trace, "error", err)...)
		}
		if r.metrics != nil {
			r.metrics.NoSignalTotal.WithLabelValues(reason).Inc()
		}
		return
	}
	if d.Rejected != "" {
		r.log.Debug("gate rejected bar", append(trace, "gate", string(d.Rejected), "spread_pips", sym.SpreadPips())...)
		if r.metrics != nil {
			r.metrics.GateRejectionsTotal.WithLabelValues(string(d.Rejected)).Inc()
		}
		return
	}
	if d.HasEntry() {
		r.enter(ctx, d, snap)
	}
}

// housekeep applies the non-entry parts of a decision.
func (r *Robot) housekeep(ctx context.Context, d strategy.Decision, snap strategy.Snapshot) {
	sym := snap.Symbol
	if d.CancelStale {
		if n := r.mgr.CancelStaleOrders(ctx, sym); n > 0 {
			r.log.Info("cancelled stale orders", append(logger.LogWithTrace(ctx), "count", n)...)
		}
	}
	if d.CloseAll {
		r.mgr.CloseAllPositionsAndOrders(ctx)
		if r.metrics != nil {
			r.metrics.Liquidations.Inc()
		}
		if d.Rejected == strategy.GateSpread {
			r.alert(ctx, notification.Alert{
				Level:      notification.AlertWarning,
				Kind:       notification.KindSpreadLiquidation,
				Title:      "spread safety liquidation",
				Message:    fmt.Sprintf("spread %.2f pips, closed all positions and orders", sym.SpreadPips()),
				SpreadPips: sym.SpreadPips(),
				BarTime:    snap.Time,
			})
		}
	}
	if d.CloseSide.Valid() {
		r.mgr.ClosePositions(ctx, d.CloseSide)
	}
}

// enter sizes and submits the decision's order.
func (r *Robot) enter(ctx context.Context, d strategy.Decision, snap strategy.Snapshot) {
	sym := snap.Symbol
	trace := logger.LogWithTrace(ctx)
	side := d.Signal.Side

	atr, atrErr := r.eng.Value(strategy.ATR, 0)
	if atrErr != nil && r.sizer.Config().Mode == risk.ModeVolatility {
		r.log.Debug("signal dropped, atr unavailable", append(trace, "side", side.String(), "error", atrErr)...)
		if r.metrics != nil {
			r.metrics.NoSignalTotal.WithLabelValues("insufficient_history").Inc()
		}
		return
	}

	sz, err := r.sizer.Size(atr, r.broker.Account(ctx), sym)
	if err != nil {
		r.log.Warn("signal dropped", append(trace, "side", side.String(), "error", err)...)
		if r.metrics != nil {
			r.metrics.SizingFailures.Inc()
		}
		r.alert(ctx, notification.Alert{
			Level:      notification.AlertWarning,
			Kind:       notification.KindSignalDropped,
			Title:      "signal dropped",
			Message:    err.Error(),
			Side:       side,
			SpreadPips: sym.SpreadPips(),
			BarTime:    snap.Time,
		})
		return
	}

	if r.metrics != nil {
		r.metrics.SignalsTotal.WithLabelValues(r.strat.Name(), side.String()).Inc()
	}
	r.log.Info("signal", append(trace,
		"side", side.String(),
		"bar_index", d.Signal.BarIndex,
		"reason", d.Signal.Reason,
		"entry", d.Entry.String(),
	)...)

	tp := sz.TakeProfitPips + d.ExtraTargetPips
	switch d.Entry {
	case strategy.EntryStop:
		r.mgr.PlaceStopOrder(ctx, model.StopOrderRequest{
			Side:           side,
			Volume:         sz.Volume,
			TriggerPrice:   r.sizer.TriggerPrice(side, sym),
			Label:          side.String(),
			StopLossPips:   sz.StopLossPips,
			TakeProfitPips: tp,
		})
	case strategy.EntryMarket:
		r.mgr.ExecuteMarketOrder(ctx, model.MarketOrderRequest{
			Side:           side,
			Volume:         sz.Volume,
			Label:          side.String(),
			StopLossPips:   sz.StopLossPips,
			TakeProfitPips: tp,
		})
	}
}

// OnQuote runs the fast exit path: close positions on the wrong side of
// the trend reference.
func (r *Robot) OnQuote(ctx context.Context, q model.Quote) {
	if r.metrics != nil {
		r.metrics.QuotesTotal.Inc()
	}
	if r.sink != nil {
		r.sink.OnQuote(q)
	}
	if r.exitRef == "" {
		return
	}
	ref, err := r.eng.Value(r.exitRef, 0)
	if err != nil {
		return
	}
	if n := r.mgr.CheckTrendExit(ctx, q, ref); n > 0 {
		r.log.Info("trend exit", "closed", n, "bid", q.Bid, "ask", q.Ask, "reference", ref)
	}
}

// alert stamps a with the robot's symbol and the bar's trace ID and sends it.
func (r *Robot) alert(ctx context.Context, a notification.Alert) {
	if r.notifier == nil {
		return
	}
	a.Symbol = r.cfg.Symbol
	a.TraceID = logger.TraceID(ctx)
	if err := r.notifier.Send(ctx, a); err != nil {
		r.log.Warn("alert failed", "kind", string(a.Kind), "error", err)
	}
}
