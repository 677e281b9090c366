package model

import "time"

// Position is an open exposure at the broker. StopLoss and TakeProfit are
// absolute prices fixed at creation.
type Position struct {
	ID         string    `json:"id"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Volume     float64   `json:"volume"` // units
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Label      string    `json:"label"`
	OpenedAt   time.Time `json:"opened_at"`
}

// UnrealizedPnL returns the profit in quote currency at the given exit price.
func (p *Position) UnrealizedPnL(exitPrice float64) float64 {
	if p.Side == SideSell {
		return (p.EntryPrice - exitPrice) * p.Volume
	}
	return (exitPrice - p.EntryPrice) * p.Volume
}
