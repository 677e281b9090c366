package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trading-signalcore/internal/model"
)

// ErrUnknownOrder is returned when cancelling or closing an ID the paper
// broker does not hold.
var ErrUnknownOrder = errors.New("unknown order or position")

// Fill represents a simulated position close.
type Fill struct {
	PositionID string     `json:"position_id"`
	Side       model.Side `json:"side"`
	Volume     float64    `json:"volume"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	PnL        float64    `json:"pnl"`
	Reason     string     `json:"reason"` // close, stop_loss, take_profit
	ClosedAt   time.Time  `json:"closed_at"`
}

// PaperBroker simulates the broker in memory. Stop orders fill when a quote
// crosses their trigger; positions close on their stop loss or take profit.
// Safe for concurrent use.
type PaperBroker struct {
	mu        sync.RWMutex
	symbol    model.SymbolInfo
	balance   float64
	lastQuote model.Quote
	positions []model.Position
	pending   []model.PendingOrder
	fills     []Fill
	failWith  error
	now       func() time.Time
}

// NewPaperBroker creates a paper broker for sym with a starting balance.
func NewPaperBroker(sym model.SymbolInfo, balance float64) *PaperBroker {
	return &PaperBroker{
		symbol:    sym,
		balance:   balance,
		lastQuote: model.Quote{Bid: sym.Bid, Ask: sym.Ask},
		fills:     make([]Fill, 0, 256),
		now:       time.Now,
	}
}

// FailCommands makes every subsequent command return err (nil restores
// normal behaviour). Used to exercise failure absorption.
func (p *PaperBroker) FailCommands(err error) {
	p.mu.Lock()
	p.failWith = err
	p.mu.Unlock()
}

// Fills returns a snapshot of closed positions.
func (p *PaperBroker) Fills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// OnQuote updates prices, triggers stop orders and SL/TP exits.
func (p *PaperBroker) OnQuote(q model.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastQuote = q
	p.symbol.Bid, p.symbol.Ask, p.symbol.Spread = q.Bid, q.Ask, q.Spread()

	kept := p.pending[:0]
	for _, po := range p.pending {
		triggered := (po.Side == model.SideBuy && q.Ask >= po.TargetPrice) ||
			(po.Side == model.SideSell && q.Bid <= po.TargetPrice)
		if !triggered {
			kept = append(kept, po)
			continue
		}
		pos := p.open(po.Side, po.Volume, po.Label, po.StopLossPips, po.TakeProfitPips)
		slog.Debug("paper stop filled", "order_id", po.ID, "position_id", pos.ID, "price", pos.EntryPrice)
	}
	p.pending = kept

	open := p.positions[:0]
	for _, pos := range p.positions {
		exit, reason := p.exitFor(pos, q)
		if reason == "" {
			open = append(open, pos)
			continue
		}
		p.settle(pos, exit, reason)
	}
	p.positions = open
}

// exitFor returns the SL/TP exit price hit by q, if any.
func (p *PaperBroker) exitFor(pos model.Position, q model.Quote) (float64, string) {
	if pos.Side == model.SideBuy {
		switch {
		case pos.StopLoss > 0 && q.Bid <= pos.StopLoss:
			return q.Bid, "stop_loss"
		case pos.TakeProfit > 0 && q.Bid >= pos.TakeProfit:
			return q.Bid, "take_profit"
		}
		return 0, ""
	}
	switch {
	case pos.StopLoss > 0 && q.Ask >= pos.StopLoss:
		return q.Ask, "stop_loss"
	case pos.TakeProfit > 0 && q.Ask <= pos.TakeProfit:
		return q.Ask, "take_profit"
	}
	return 0, ""
}

// open appends a position at the current price. Caller holds the lock.
func (p *PaperBroker) open(side model.Side, volume float64, label string, slPips, tpPips float64) model.Position {
	entry := p.lastQuote.Ask
	dir := 1.0
	if side == model.SideSell {
		entry = p.lastQuote.Bid
		dir = -1
	}
	pos := model.Position{
		ID:         uuid.NewString(),
		Side:       side,
		EntryPrice: entry,
		Volume:     volume,
		Label:      label,
		OpenedAt:   p.now(),
	}
	if slPips > 0 {
		pos.StopLoss = entry - dir*p.symbol.PipsToPrice(slPips)
	}
	if tpPips > 0 {
		pos.TakeProfit = entry + dir*p.symbol.PipsToPrice(tpPips)
	}
	p.positions = append(p.positions, pos)
	return pos
}

// settle realizes a position at exit. Caller holds the lock and removes it.
func (p *PaperBroker) settle(pos model.Position, exit float64, reason string) {
	pnl := pos.UnrealizedPnL(exit)
	p.balance += pnl
	p.fills = append(p.fills, Fill{
		PositionID: pos.ID,
		Side:       pos.Side,
		Volume:     pos.Volume,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exit,
		PnL:        pnl,
		Reason:     reason,
		ClosedAt:   p.now(),
	})
	slog.Info("paper position closed", "position_id", pos.ID, "side", pos.Side.String(),
		"exit", exit, "pnl", pnl, "reason", reason)
}

func (p *PaperBroker) Positions(ctx context.Context) []model.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.Position, len(p.positions))
	copy(cp, p.positions)
	return cp
}

func (p *PaperBroker) PendingOrders(ctx context.Context) []model.PendingOrder {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.PendingOrder, len(p.pending))
	copy(cp, p.pending)
	return cp
}

func (p *PaperBroker) ExecuteMarketOrder(ctx context.Context, req model.MarketOrderRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	if !req.Side.Valid() || req.Volume <= 0 {
		return fmt.Errorf("paper: invalid market order %s %v", req.Side, req.Volume)
	}
	p.open(req.Side, req.Volume, req.Label, req.StopLossPips, req.TakeProfitPips)
	return nil
}

func (p *PaperBroker) PlaceStopOrder(ctx context.Context, req model.StopOrderRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	if !req.Side.Valid() || req.Volume <= 0 {
		return fmt.Errorf("paper: invalid stop order %s %v", req.Side, req.Volume)
	}
	p.pending = append(p.pending, model.PendingOrder{
		ID:             uuid.NewString(),
		Side:           req.Side,
		Volume:         req.Volume,
		TargetPrice:    req.TriggerPrice,
		StopLossPips:   req.StopLossPips,
		TakeProfitPips: req.TakeProfitPips,
		Label:          req.Label,
		CreatedAt:      p.now(),
	})
	return nil
}

func (p *PaperBroker) CancelOrder(ctx context.Context, order model.PendingOrder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	for i, po := range p.pending {
		if po.ID == order.ID {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: order %s", ErrUnknownOrder, order.ID)
}

func (p *PaperBroker) ClosePosition(ctx context.Context, pos model.Position) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	for i, open := range p.positions {
		if open.ID == pos.ID {
			exit := p.lastQuote.Bid
			if open.Side == model.SideSell {
				exit = p.lastQuote.Ask
			}
			p.settle(open, exit, "close")
			p.positions = append(p.positions[:i], p.positions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: position %s", ErrUnknownOrder, pos.ID)
}

func (p *PaperBroker) Account(ctx context.Context) model.AccountState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	equity := p.balance
	for i := range p.positions {
		pos := p.positions[i]
		exit := p.lastQuote.Bid
		if pos.Side == model.SideSell {
			exit = p.lastQuote.Ask
		}
		equity += pos.UnrealizedPnL(exit)
	}
	return model.AccountState{Balance: p.balance, Equity: equity}
}

func (p *PaperBroker) Symbol(ctx context.Context) model.SymbolInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.symbol
}

var _ model.Broker = (*PaperBroker)(nil)
