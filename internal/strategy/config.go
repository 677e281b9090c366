package strategy

import (
	"fmt"

	"trading-signalcore/internal/indicator"
)

// Variant names a strategy.
type Variant string

const (
	VariantScalping  Variant = "scalping"
	VariantBreakout  Variant = "breakout"
	VariantMABias    Variant = "ma-bias"
	VariantEngulfing Variant = "engulfing"
	VariantParabolic Variant = "parabolic"
)

// Variants lists every known variant.
var Variants = []Variant{VariantScalping, VariantBreakout, VariantMABias, VariantEngulfing, VariantParabolic}

// MASpec is a moving average period and type.
type MASpec struct {
	Type   string `yaml:"type" json:"type"`
	Period int    `yaml:"period" json:"period"`
}

// Config holds the signal parameters of every variant. Fields a variant
// does not use are ignored.
type Config struct {
	Variant Variant `yaml:"variant" json:"variant"`

	Fast  MASpec `yaml:"fast" json:"fast"`
	Mid   MASpec `yaml:"mid" json:"mid"`
	Slow  MASpec `yaml:"slow" json:"slow"`
	Trend MASpec `yaml:"trend" json:"trend"`

	ATRPeriod    int     `yaml:"atr_period" json:"atr_period"`
	ATRSmoothing string  `yaml:"atr_smoothing" json:"atr_smoothing"`
	SARStep      float64 `yaml:"sar_step" json:"sar_step"`
	SARMax       float64 `yaml:"sar_max" json:"sar_max"`

	CrossLookback  int     `yaml:"cross_lookback" json:"cross_lookback"`
	BufferPips     float64 `yaml:"buffer_pips" json:"buffer_pips"`
	EngulfingRatio float64 `yaml:"engulfing_ratio" json:"engulfing_ratio"` // percent

	// gates
	MaxSpreadPips      float64 `yaml:"max_spread_pips" json:"max_spread_pips"`
	MaxPendingOrders   int     `yaml:"max_pending_orders" json:"max_pending_orders"`
	AfterOpenMinutes   int     `yaml:"after_open_minutes" json:"after_open_minutes"`
	BeforeCloseMinutes int     `yaml:"before_close_minutes" json:"before_close_minutes"`

	TrendExit bool `yaml:"trend_exit" json:"trend_exit"`
}

// DefaultConfig returns the defaults for a variant.
func DefaultConfig(v Variant) Config {
	c := Config{
		Variant:            v,
		Fast:               MASpec{Type: "SMA", Period: 5},
		Slow:               MASpec{Type: "SMA", Period: 14},
		Trend:              MASpec{Type: "SMA", Period: 200},
		ATRPeriod:          14,
		ATRSmoothing:       "EMA",
		SARStep:            0.02,
		SARMax:             0.2,
		BufferPips:         200,
		EngulfingRatio:     50,
		MaxSpreadPips:      2.9,
		MaxPendingOrders:   2,
		AfterOpenMinutes:   60,
		BeforeCloseMinutes: 120,
	}
	switch v {
	case VariantBreakout:
		c.TrendExit = true
	case VariantMABias:
		c.Fast = MASpec{Type: "EMA", Period: 5}
		c.Slow = MASpec{Type: "EMA", Period: 14}
		c.CrossLookback = 1
	case VariantEngulfing:
		c.Fast = MASpec{Type: "EMA", Period: 6}
		c.Mid = MASpec{Type: "EMA", Period: 18}
		c.Slow = MASpec{Type: "EMA", Period: 50}
		c.Trend = MASpec{Type: "SMA", Period: 200}
	case VariantParabolic:
		c.SARStep = 0.2
		c.SARMax = 0.2
	}
	return c
}

// Validate rejects settings that would fail mid-stream.
func (c Config) Validate() error {
	known := false
	for _, v := range Variants {
		if c.Variant == v {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown strategy variant %q", c.Variant)
	}
	for _, ic := range c.indicatorConfigs() {
		if _, err := indicator.New(ic); err != nil {
			return fmt.Errorf("%s: %w", ic.Name, err)
		}
	}
	if c.CrossLookback < 0 {
		return fmt.Errorf("cross lookback must not be negative, got %d", c.CrossLookback)
	}
	if c.BufferPips < 0 || c.EngulfingRatio < 0 || c.MaxSpreadPips < 0 {
		return fmt.Errorf("buffer pips, engulfing ratio and max spread must not be negative")
	}
	if c.MaxPendingOrders < 0 || c.AfterOpenMinutes < 0 || c.BeforeCloseMinutes < 0 {
		return fmt.Errorf("pending cap and session buffers must not be negative")
	}
	return nil
}

// indicatorConfigs lists the indicators the variant needs.
func (c Config) indicatorConfigs() []indicator.IndicatorConfig {
	ma := func(name string, s MASpec) indicator.IndicatorConfig {
		return indicator.IndicatorConfig{Name: name, Type: s.Type, Period: s.Period}
	}
	atr := indicator.IndicatorConfig{Name: ATR, Type: "ATR", Period: c.ATRPeriod, Smoothing: c.ATRSmoothing}

	switch c.Variant {
	case VariantScalping, VariantMABias:
		return []indicator.IndicatorConfig{ma(Fast, c.Fast), ma(Slow, c.Slow), atr}
	case VariantBreakout:
		return []indicator.IndicatorConfig{ma(Fast, c.Fast), ma(Slow, c.Slow), ma(Trend, c.Trend), atr}
	case VariantEngulfing:
		return []indicator.IndicatorConfig{ma(Fast, c.Fast), ma(Mid, c.Mid), ma(Slow, c.Slow), ma(Trend, c.Trend), atr}
	case VariantParabolic:
		return []indicator.IndicatorConfig{
			{Name: SAR, Type: "PSAR", Step: c.SARStep, Max: c.SARMax},
			atr,
		}
	}
	return nil
}
