// Package risk converts a directional signal into stop, target and volume.
//
// Two modes are supported: fixed pips with a fixed volume, and volatility
// sizing where the stop is a multiple of ATR and the volume risks a fixed
// share of the account balance.
package risk

import (
	"errors"
	"fmt"

	"trading-signalcore/internal/model"
)

// ErrInvalidSizing is returned when the computed stop or volume is not
// positive. The signal that asked for it must be dropped.
var ErrInvalidSizing = errors.New("invalid order sizing")

// Mode selects how orders are sized.
type Mode string

const (
	ModeFixed      Mode = "fixed"
	ModeVolatility Mode = "volatility"
)

// Config defines sizing parameters.
type Config struct {
	Mode Mode `yaml:"mode" json:"mode"`

	// fixed mode
	StopLossPips   float64 `yaml:"stop_loss_pips" json:"stop_loss_pips"`
	TakeProfitPips float64 `yaml:"take_profit_pips" json:"take_profit_pips"`
	Volume         float64 `yaml:"volume" json:"volume"` // units

	// volatility mode
	RiskPercent   float64 `yaml:"risk_percent" json:"risk_percent"`     // of balance, per trade
	ProfitToLoss  float64 `yaml:"profit_to_loss" json:"profit_to_loss"` // target = stop * ratio
	ATRMultiplier float64 `yaml:"atr_multiplier" json:"atr_multiplier"`

	// stop-entry pricing
	EntryOffsetPips  float64 `yaml:"entry_offset_pips" json:"entry_offset_pips"`
	NarrowSpreadPips float64 `yaml:"narrow_spread_pips" json:"narrow_spread_pips"`
}

// DefaultConfig returns the volatility sizing defaults.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeVolatility,
		StopLossPips:     10,
		TakeProfitPips:   10,
		Volume:           10,
		RiskPercent:      2.0,
		ProfitToLoss:     2.0,
		ATRMultiplier:    1.5,
		EntryOffsetPips:  2,
		NarrowSpreadPips: 2,
	}
}

// Validate checks the config for the selected mode.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeFixed:
		if c.StopLossPips <= 0 {
			return fmt.Errorf("%w: fixed stop loss must be positive, got %v pips", ErrInvalidSizing, c.StopLossPips)
		}
		if c.TakeProfitPips < 0 {
			return fmt.Errorf("fixed take profit must not be negative, got %v pips", c.TakeProfitPips)
		}
		if c.Volume <= 0 {
			return fmt.Errorf("fixed volume must be positive, got %v", c.Volume)
		}
	case ModeVolatility:
		if c.RiskPercent <= 0 || c.RiskPercent > 100 {
			return fmt.Errorf("risk percent must be in (0, 100], got %v", c.RiskPercent)
		}
		if c.ProfitToLoss <= 0 {
			return fmt.Errorf("profit to loss ratio must be positive, got %v", c.ProfitToLoss)
		}
		if c.ATRMultiplier <= 0 {
			return fmt.Errorf("atr multiplier must be positive, got %v", c.ATRMultiplier)
		}
	default:
		return fmt.Errorf("unknown sizing mode %q", c.Mode)
	}
	if c.EntryOffsetPips < 0 || c.NarrowSpreadPips < 0 {
		return fmt.Errorf("entry offset and narrow spread pips must not be negative")
	}
	return nil
}

// Sizing is the outcome of sizing one order.
type Sizing struct {
	StopLossPips   float64
	TakeProfitPips float64
	Volume         float64 // normalized units
}

// Sizer computes order sizes. Stateless; safe to share.
type Sizer struct {
	cfg Config
}

// NewSizer validates cfg and returns a Sizer.
func NewSizer(cfg Config) (*Sizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{cfg: cfg}, nil
}

// Config returns the sizer settings.
func (s *Sizer) Config() Config { return s.cfg }

// Size returns stop, target and normalized volume. atr is the last ATR
// value in price units and is only read in volatility mode.
func (s *Sizer) Size(atr float64, acct model.AccountState, sym model.SymbolInfo) (Sizing, error) {
	var out Sizing
	switch s.cfg.Mode {
	case ModeFixed:
		out.StopLossPips = s.cfg.StopLossPips
		if out.StopLossPips <= 0 {
			return Sizing{}, fmt.Errorf("%w: fixed stop %.2f pips", ErrInvalidSizing, out.StopLossPips)
		}
		out.TakeProfitPips = s.cfg.TakeProfitPips
		out.Volume = sym.NormalizeVolume(s.cfg.Volume)
	default:
		atrPips := sym.ToPips(atr)
		out.StopLossPips = atrPips * s.cfg.ATRMultiplier
		if out.StopLossPips <= 0 {
			return Sizing{}, fmt.Errorf("%w: stop %.2f pips from atr %.6f", ErrInvalidSizing, out.StopLossPips, atr)
		}
		if sym.PipValue <= 0 {
			return Sizing{}, fmt.Errorf("%w: pip value %v", ErrInvalidSizing, sym.PipValue)
		}
		out.TakeProfitPips = out.StopLossPips * s.cfg.ProfitToLoss
		raw := acct.Balance * (s.cfg.RiskPercent / 100) / (out.StopLossPips * sym.PipValue)
		out.Volume = sym.NormalizeVolume(raw)
	}
	if out.Volume <= 0 {
		return Sizing{}, fmt.Errorf("%w: volume normalized to zero", ErrInvalidSizing)
	}
	return out, nil
}

// TriggerPrice returns the stop-entry trigger for side. Buy stops rest two
// pips above the bid while the spread is narrow and at the ask otherwise;
// sell stops always rest below the bid.
func (s *Sizer) TriggerPrice(side model.Side, sym model.SymbolInfo) float64 {
	offset := sym.PipsToPrice(s.cfg.EntryOffsetPips)
	switch side {
	case model.SideBuy:
		if sym.PipsBetween(sym.Ask, sym.Bid) < s.cfg.NarrowSpreadPips {
			return sym.Bid + offset
		}
		return sym.Ask
	case model.SideSell:
		return sym.Bid - offset
	}
	return 0
}
