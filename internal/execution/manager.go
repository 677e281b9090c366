// Package execution manages the order lifecycle against the broker port.
//
// The Manager holds no order state of its own. Every operation re-reads the
// broker's authoritative positions and pending orders, dispatches one-way
// commands, and absorbs dispatch failures: the next bar or quote re-reads
// the book and naturally retries whatever is still outstanding.
package execution

import (
	"context"
	"log/slog"

	"trading-signalcore/internal/logger"
	"trading-signalcore/internal/metrics"
	"trading-signalcore/internal/model"
)

// Command kinds, used as metric labels.
const (
	KindMarket = "market"
	KindStop   = "stop"
	KindCancel = "cancel"
	KindClose  = "close"
)

// Config holds order lifecycle parameters.
type Config struct {
	// StaleOrderPips cancels pending orders whose trigger has drifted this
	// far from the ask.
	StaleOrderPips float64 `yaml:"stale_order_pips" json:"stale_order_pips"`
}

// DefaultConfig returns the lifecycle defaults.
func DefaultConfig() Config {
	return Config{StaleOrderPips: 10}
}

// Manager reconciles orders and positions for one instrument.
// Designed for single-goroutine usage from the robot event loop.
type Manager struct {
	broker  model.Broker
	cfg     Config
	metrics *metrics.Metrics
	log     *slog.Logger

	// IDs already asked to close/cancel in the current cycle
	closing    map[string]bool
	cancelling map[string]bool
}

// NewManager creates a Manager over broker. m may be nil.
func NewManager(broker model.Broker, cfg Config, m *metrics.Metrics) *Manager {
	return &Manager{
		broker:     broker,
		cfg:        cfg,
		metrics:    m,
		log:        slog.With("component", "execution"),
		closing:    make(map[string]bool),
		cancelling: make(map[string]bool),
	}
}

// ResetCycle forgets which requests were already sent. Called at every bar
// close, the point where the book is reconciled and failed requests may be
// reissued.
func (m *Manager) ResetCycle() {
	clear(m.closing)
	clear(m.cancelling)
}

// Positions returns the broker's open positions.
func (m *Manager) Positions(ctx context.Context) []model.Position {
	return m.broker.Positions(ctx)
}

// PendingOrders returns the broker's pending orders.
func (m *Manager) PendingOrders(ctx context.Context) []model.PendingOrder {
	return m.broker.PendingOrders(ctx)
}

// PendingCount returns the number of resting orders.
func (m *Manager) PendingCount(ctx context.Context) int {
	return len(m.broker.PendingOrders(ctx))
}

// PlaceStopOrder cancels every pending order of the same side, never the
// opposite one, then submits req.
func (m *Manager) PlaceStopOrder(ctx context.Context, req model.StopOrderRequest) {
	m.CancelOrders(ctx, req.Side)
	if req.Label == "" {
		req.Label = req.Side.String()
	}
	err := m.broker.PlaceStopOrder(ctx, req)
	m.record(ctx, KindStop, err,
		"side", req.Side.String(),
		"volume", req.Volume,
		"trigger", req.TriggerPrice,
		"sl_pips", req.StopLossPips,
		"tp_pips", req.TakeProfitPips,
	)
}

// ExecuteMarketOrder opens a position at market.
func (m *Manager) ExecuteMarketOrder(ctx context.Context, req model.MarketOrderRequest) {
	if req.Label == "" {
		req.Label = req.Side.String()
	}
	err := m.broker.ExecuteMarketOrder(ctx, req)
	m.record(ctx, KindMarket, err,
		"side", req.Side.String(),
		"volume", req.Volume,
		"sl_pips", req.StopLossPips,
		"tp_pips", req.TakeProfitPips,
	)
}

// CancelOrders cancels every pending order of side. Returns how many
// cancel requests were sent.
func (m *Manager) CancelOrders(ctx context.Context, side model.Side) int {
	n := 0
	for _, po := range m.broker.PendingOrders(ctx) {
		if po.Side == side && m.cancel(ctx, po) {
			n++
		}
	}
	return n
}

// CancelStaleOrders cancels pending orders whose trigger is at least
// StaleOrderPips away from the current ask.
func (m *Manager) CancelStaleOrders(ctx context.Context, sym model.SymbolInfo) int {
	n := 0
	for _, po := range m.broker.PendingOrders(ctx) {
		if sym.PipsBetween(po.TargetPrice, sym.Ask) >= m.cfg.StaleOrderPips && m.cancel(ctx, po) {
			n++
		}
	}
	return n
}

// ClosePositions closes every open position of side.
func (m *Manager) ClosePositions(ctx context.Context, side model.Side) int {
	n := 0
	for _, p := range m.broker.Positions(ctx) {
		if p.Side == side && m.close(ctx, p) {
			n++
		}
	}
	return n
}

// CloseAllPositionsAndOrders closes every position and cancels every
// pending order regardless of side.
func (m *Manager) CloseAllPositionsAndOrders(ctx context.Context) {
	closed, cancelled := 0, 0
	for _, p := range m.broker.Positions(ctx) {
		if m.close(ctx, p) {
			closed++
		}
	}
	for _, po := range m.broker.PendingOrders(ctx) {
		if m.cancel(ctx, po) {
			cancelled++
		}
	}
	m.log.Warn("closed all positions and orders",
		append(logger.LogWithTrace(ctx), "positions", closed, "orders", cancelled)...)
}

// CheckTrendExit closes sells while the bid is above ref and buys while
// the ask is below it. A position already asked to close this cycle is not
// asked again.
func (m *Manager) CheckTrendExit(ctx context.Context, q model.Quote, ref float64) int {
	var side model.Side
	switch {
	case q.Bid > ref:
		side = model.SideSell
	case q.Ask < ref:
		side = model.SideBuy
	default:
		return 0
	}
	return m.ClosePositions(ctx, side)
}

func (m *Manager) cancel(ctx context.Context, po model.PendingOrder) bool {
	if m.cancelling[po.ID] {
		return false
	}
	m.cancelling[po.ID] = true
	err := m.broker.CancelOrder(ctx, po)
	m.record(ctx, KindCancel, err, "order_id", po.ID, "side", po.Side.String(), "target", po.TargetPrice)
	return true
}

func (m *Manager) close(ctx context.Context, p model.Position) bool {
	if m.closing[p.ID] {
		return false
	}
	m.closing[p.ID] = true
	err := m.broker.ClosePosition(ctx, p)
	m.record(ctx, KindClose, err, "position_id", p.ID, "side", p.Side.String(), "volume", p.Volume)
	return true
}

// record logs and counts one command. Failures are absorbed.
func (m *Manager) record(ctx context.Context, kind string, err error, attrs ...any) {
	m.metrics.OrderCommand(kind, err)
	attrs = append(append(logger.LogWithTrace(ctx), "kind", kind), attrs...)
	if err != nil {
		m.log.Warn("broker command failed", append(attrs, "error", err)...)
		return
	}
	m.log.Info("broker command sent", attrs...)
}
