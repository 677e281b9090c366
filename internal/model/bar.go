package model

import (
	"encoding/json"
	"time"
)

// Bar represents one closed OHLCV price sample for the traded instrument.
// Bars are immutable once closed.
type Bar struct {
	OpenTime time.Time `json:"open_time"` // bucket start (UTC)
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// IsBullish reports whether the bar closed above its open.
func (b Bar) IsBullish() bool { return b.Close > b.Open }

// IsBearish reports whether the bar closed below its open.
func (b Bar) IsBearish() bool { return b.Open > b.Close }

// Body returns the absolute open-to-close distance in price units.
func (b Bar) Body() float64 {
	if b.Close > b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Range returns the high-to-low distance in price units.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
