package model

import "github.com/shopspring/decimal"

// AccountState is a read-only snapshot of the trading account.
type AccountState struct {
	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
}

// SymbolInfo describes the traded instrument as reported by the broker.
type SymbolInfo struct {
	Name      string  `json:"name"`
	PipSize   float64 `json:"pip_size"`   // price units per pip, e.g. 0.0001
	PipValue  float64 `json:"pip_value"`  // account currency per pip per unit
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Spread    float64 `json:"spread"`     // current ask-bid in price units
	LotStep   float64 `json:"lot_step"`   // volume increment in units
	MinVolume float64 `json:"min_volume"` // smallest tradable volume in units
	MaxVolume float64 `json:"max_volume"` // 0 = unbounded
}

// pipPrecision is the number of pip decimals kept by pip conversions.
// Float price differences carry representation error (a 10 pip gap can
// come out as 9.999999999998899 pips); rounding keeps >= comparisons exact.
const pipPrecision = 6

// SpreadPips returns the current spread expressed in pips.
func (s SymbolInfo) SpreadPips() float64 {
	return s.ToPips(s.Spread)
}

// Quote returns the current bid/ask as a quote.
func (s SymbolInfo) Quote() Quote {
	return Quote{Bid: s.Bid, Ask: s.Ask}
}

// ToPips converts a price distance to pips.
func (s SymbolInfo) ToPips(distance float64) float64 {
	if s.PipSize <= 0 {
		return 0
	}
	pips, _ := decimal.NewFromFloat(distance).
		Div(decimal.NewFromFloat(s.PipSize)).
		Round(pipPrecision).
		Float64()
	return pips
}

// PipsBetween returns the absolute distance between two prices in pips.
// The subtraction is done in decimal so quoted prices compare exactly.
func (s SymbolInfo) PipsBetween(a, b float64) float64 {
	if s.PipSize <= 0 {
		return 0
	}
	pips, _ := decimal.NewFromFloat(a).
		Sub(decimal.NewFromFloat(b)).
		Abs().
		Div(decimal.NewFromFloat(s.PipSize)).
		Round(pipPrecision).
		Float64()
	return pips
}

// ExceedsByPips reports whether pips is at least limit plus margin, with
// the difference rounded to pip precision.
func ExceedsByPips(pips, limit, margin float64) bool {
	over := decimal.NewFromFloat(pips).Sub(decimal.NewFromFloat(limit))
	return over.Round(pipPrecision).GreaterThanOrEqual(decimal.NewFromFloat(margin))
}

// PipsToPrice converts a pip count to a price distance.
func (s SymbolInfo) PipsToPrice(pips float64) float64 {
	return pips * s.PipSize
}

// NormalizeVolume rounds volume down to the nearest lot step and clamps it
// to the maximum. Volumes below the minimum normalize to zero.
func (s SymbolInfo) NormalizeVolume(volume float64) float64 {
	if volume <= 0 {
		return 0
	}
	v := decimal.NewFromFloat(volume)
	if s.LotStep > 0 {
		step := decimal.NewFromFloat(s.LotStep)
		v = v.Div(step).Floor().Mul(step)
	}
	if s.MaxVolume > 0 {
		max := decimal.NewFromFloat(s.MaxVolume)
		if v.GreaterThan(max) {
			v = max
		}
	}
	if v.LessThan(decimal.NewFromFloat(s.MinVolume)) || v.IsZero() {
		return 0
	}
	out, _ := v.Float64()
	return out
}
