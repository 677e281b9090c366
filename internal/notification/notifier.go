// Package notification delivers trading alerts (liquidations, dropped
// signals) to external channels.
package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trading-signalcore/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// AlertKind names the robot event behind an alert.
type AlertKind string

const (
	KindSpreadLiquidation AlertKind = "spread_liquidation"
	KindSignalDropped     AlertKind = "signal_dropped"
)

// Alert represents a notification to be sent. Side, SpreadPips and BarTime
// describe the bar that raised it; zero values are omitted downstream.
type Alert struct {
	Level      AlertLevel
	Kind       AlertKind
	Symbol     string
	Title      string
	Message    string
	Side       model.Side
	SpreadPips float64
	BarTime    time.Time
	TraceID    string
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	attrs := []any{
		"level", string(alert.Level),
		"kind", string(alert.Kind),
		"symbol", alert.Symbol,
		"title", alert.Title,
		"message", alert.Message,
		"spread_pips", alert.SpreadPips,
		"trace_id", alert.TraceID,
	}
	if alert.Side.Valid() {
		attrs = append(attrs, "side", alert.Side.String())
	}
	slog.Warn("alert", attrs...)
	return nil
}

// Async delivers alerts on a background goroutine so senders never block.
// Alerts are dropped when the queue is full.
type Async struct {
	next    Notifier
	queue   chan Alert
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
}

// NewAsync wraps next with a queue of the given size.
func NewAsync(next Notifier, size int) *Async {
	a := &Async{
		next:    next,
		queue:   make(chan Alert, size),
		timeout: 10 * time.Second,
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer a.wg.Done()
	for alert := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Send(ctx, alert); err != nil {
			slog.Warn("alert delivery failed", "title", alert.Title, "error", err)
		}
		cancel()
	}
}

// Send enqueues alert. Never blocks; returns nil even when dropped.
func (a *Async) Send(ctx context.Context, alert Alert) error {
	select {
	case a.queue <- alert:
	default:
		slog.Warn("alert queue full, dropping", "title", alert.Title)
	}
	return nil
}

// Close drains queued alerts and stops the worker.
func (a *Async) Close() {
	a.once.Do(func() {
		close(a.queue)
		a.wg.Wait()
	})
}
