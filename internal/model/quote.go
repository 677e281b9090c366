package model

import "time"

// Quote is a top-of-book bid/ask update. Quotes arrive more often than bars
// and are only used for exit checks and entry pricing.
type Quote struct {
	Bid float64   `json:"bid"`
	Ask float64   `json:"ask"`
	TS  time.Time `json:"ts"` // UTC timestamp
}

// Spread returns ask minus bid in price units.
func (q Quote) Spread() float64 { return q.Ask - q.Bid }

// Mid returns the midpoint between bid and ask.
func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }
