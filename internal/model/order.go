package model

import "time"

// PendingOrder is a stop-entry order resting at the broker.
type PendingOrder struct {
	ID             string    `json:"id"`
	Side           Side      `json:"side"`
	Volume         float64   `json:"volume"` // units
	TargetPrice    float64   `json:"target_price"`
	StopLossPips   float64   `json:"stop_loss_pips"`
	TakeProfitPips float64   `json:"take_profit_pips"`
	Label          string    `json:"label"`
	CreatedAt      time.Time `json:"created_at"`
}

// MarketOrderRequest asks the broker to open a position at market.
type MarketOrderRequest struct {
	Side           Side    `json:"side"`
	Volume         float64 `json:"volume"`
	Label          string  `json:"label"`
	StopLossPips   float64 `json:"stop_loss_pips"`
	TakeProfitPips float64 `json:"take_profit_pips"`
}

// StopOrderRequest asks the broker to rest a stop-entry order at TriggerPrice.
type StopOrderRequest struct {
	Side           Side    `json:"side"`
	Volume         float64 `json:"volume"`
	TriggerPrice   float64 `json:"trigger_price"`
	Label          string  `json:"label"`
	StopLossPips   float64 `json:"stop_loss_pips"`
	TakeProfitPips float64 `json:"take_profit_pips"`
}
